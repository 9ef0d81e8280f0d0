package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IBM/CRAIG-sub005/pkg/config"
	"github.com/IBM/CRAIG-sub005/pkg/store"
	"github.com/IBM/CRAIG-sub005/pkg/stores"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

// mutateFlags are shared by the create, save and delete subcommands.
type mutateFlags struct {
	data   string
	set    []string
	key    string
	parent string
	force  bool
}

func newMutateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mutate",
		Short: "Create, update or delete entities",
		Long: `Apply one façade operation to the document and write it back.

Sub types are addressed as parent.sub (e.g. vpcs.subnets) together with
--parent. Create and save check the candidate against the type's required
fields first and refuse to write an invalid entity unless --force is given.
Every operation is followed by a full repair pass.`,
	}

	cmd.AddCommand(newMutateCreateCommand())
	cmd.AddCommand(newMutateSaveCommand())
	cmd.AddCommand(newMutateDeleteCommand())

	return cmd
}

func newMutateCreateCommand() *cobra.Command {
	var flags mutateFlags

	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Add an entity",
		Example: `  # Add a resource group
  craig mutate create resource_groups --set name=workload-rg --set use_prefix=true

  # Add a subnet to the management VPC
  craig mutate create vpcs.subnets --parent management \
    --data '{"name": "vsi-zone-4", "cidr": "10.40.10.0/24", "zone": "1"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, "create", args[0], &flags)
		},
	}
	addMutateFlags(cmd, &flags, true)
	return cmd
}

func newMutateSaveCommand() *cobra.Command {
	var flags mutateFlags

	cmd := &cobra.Command{
		Use:   "save <type>",
		Short: "Update an entity in place",
		Long: `Merge the given properties into an existing entity. Renaming an entity
rewrites every reference to its old key.`,
		Example: `  # Rename a VPC; subnets, VSIs and gateways follow
  craig mutate save vpcs --key management --set name=mgmt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, "save", args[0], &flags)
		},
	}
	addMutateFlags(cmd, &flags, true)
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newMutateDeleteCommand() *cobra.Command {
	var flags mutateFlags

	cmd := &cobra.Command{
		Use:   "delete <type>",
		Short: "Remove an entity",
		Example: `  # Delete a subnet; references to it are cleared
  craig mutate delete vpcs.subnets --parent management --key vsi-zone-3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, "delete", args[0], &flags)
		},
	}
	addMutateFlags(cmd, &flags, false)
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func addMutateFlags(cmd *cobra.Command, flags *mutateFlags, withData bool) {
	if withData {
		cmd.Flags().StringVar(&flags.data, "data", "", "entity properties as a JSON or YAML object")
		cmd.Flags().StringArrayVar(&flags.set, "set", nil, "set one property (key=value, value parsed as YAML)")
		cmd.Flags().BoolVar(&flags.force, "force", false, "write even if required fields are invalid")
	}
	cmd.Flags().StringVar(&flags.key, "key", "", "current key of the entity")
	cmd.Flags().StringVar(&flags.parent, "parent", "", "parent key for sub types")
}

func runMutation(cmd *cobra.Command, operation, typeName string, flags *mutateFlags) (err error) {
	sess, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	path := sess.cfg.Document
	log.Info().
		Str("document", path).
		Str("operation", operation).
		Str("type", typeName).
		Str("key", flags.key).
		Str("parent", flags.parent).
		Msg("Applying mutation")

	ctx, span := sess.tel.Tracer.StartMutationSpan(sess.ctx, operation, typeName, flags.key)
	defer span.End()
	op := telemetry.StartOperation(ctx, "mutate."+operation)
	defer func() { op.End(err) }()
	logger := op.Logger.WithEntityType(typeName)

	t, err := sess.store.Type(typeName)
	if err != nil {
		return err
	}
	if t.IsSub() && flags.parent == "" {
		return fmt.Errorf("%s is a sub type, --parent is required", typeName)
	}

	if _, err := sess.load(false); err != nil {
		return err
	}

	opts := store.Options{Key: flags.key, Parent: flags.parent}
	target := typeName + "/" + mutationKey(flags)
	details := map[string]any{}
	switch operation {
	case "create", "save":
		data, err := parseEntity(flags.data, flags.set)
		if err != nil {
			return err
		}

		var original store.Entity
		candidate := data
		if operation == "save" {
			live := sess.store.Lookup(typeName, flags.parent, flags.key)
			if live == nil {
				return fmt.Errorf("%s has no entity %q", typeName, flags.key)
			}
			original = live.Clone()
			candidate = original.Clone()
			for k, v := range data {
				candidate[k] = v
			}
		}

		report := t.Check(candidate, t.Context(flags.parent, original))
		if report.Blocks && !flags.force {
			return fmt.Errorf("refusing to %s %s: invalid fields: %s",
				operation, typeName, strings.Join(describeInvalid(report), "; "))
		}

		details["fields"] = store.Document(data).Keys()
		if report.Blocks {
			details["forced"] = true
			logger.Warnf("Forcing %s past invalid fields: %s", operation, strings.Join(describeInvalid(report), "; "))
		}
		if operation == "create" {
			target = typeName + "/" + data.Str(t.KeyField())
			if flags.parent != "" {
				target = typeName + "/" + flags.parent + "/" + data.Str(t.KeyField())
			}
			t.Create(data, opts)
		} else {
			t.Save(data, opts)
		}
	case "delete":
		if sess.store.Lookup(typeName, flags.parent, flags.key) == nil {
			logger.Warnf("No entity %q, nothing to delete", flags.key)
		}
		t.Delete(opts)
	}

	if err := sess.save(stores.OperationMutate); err != nil {
		return err
	}
	if err := sess.audit(operation, target, details); err != nil {
		return err
	}
	logger.Infof("Applied %s to %s", operation, target)

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s", operation, typeName)
	if key := mutationKey(flags); key != "" {
		fmt.Fprintf(cmd.OutOrStdout(), " %s", key)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// parseEntity builds the entity of a create or save from --data and --set.
// --set values override --data.
func parseEntity(data string, set []string) (store.Entity, error) {
	entity := store.Entity{}
	if data != "" {
		doc, err := config.DecodeDocument([]byte(data), config.FormatYAML)
		if err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
		for k, v := range doc {
			entity[k] = v
		}
	}

	for _, kv := range set {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		var value interface{}
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil && raw != "null" {
			value = raw
		}
		entity[key] = value
	}

	if len(entity) == 0 {
		return nil, fmt.Errorf("no properties given, use --data or --set")
	}
	return entity, nil
}

func describeInvalid(r *store.Report) []string {
	var out []string
	for _, f := range r.Fields {
		if !f.Invalid || f.Hidden {
			continue
		}
		if f.Message != "" {
			out = append(out, fmt.Sprintf("%s (%s)", f.Name, f.Message))
		} else {
			out = append(out, f.Name)
		}
	}
	return out
}

func mutationKey(flags *mutateFlags) string {
	if flags.parent != "" {
		return flags.parent + "/" + flags.key
	}
	return flags.key
}
