package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/config"
	"github.com/IBM/CRAIG-sub005/pkg/policy"
	"github.com/IBM/CRAIG-sub005/pkg/store"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

// validationReport collects every finding of craig validate.
type validationReport struct {
	Document    string                   `json:"document" yaml:"document"`
	Valid       bool                     `json:"valid" yaml:"valid"`
	Schema      []config.ValidationError `json:"schema,omitempty" yaml:"schema,omitempty"`
	Constraints []config.ValidationError `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Fields      []*store.Report          `json:"fields,omitempty" yaml:"fields,omitempty"`
	Duplicates  []duplicateKeys          `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Policy      *policy.Result           `json:"policy,omitempty" yaml:"policy,omitempty"`
}

type duplicateKeys struct {
	Type string   `json:"type" yaml:"type"`
	Keys []string `json:"keys" yaml:"keys"`
}

func newValidateCommand() *cobra.Command {
	var (
		strict      bool
		skipSchema  bool
		skipPolicy  bool
		policyPaths []string
		constraints []string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a document against schemas and policies",
		Long: `Validate a configuration document.

This command checks:
  - Document shape against the CUE schema of the registered types
  - Extra CUE constraints from --constraints files or directories
  - Required fields of every entity, as the editor would on save
  - Duplicate keys within each collection
  - Lint policies (OPA/rego), built-in and from --policy paths

Errors fail the command. With --strict, policy warnings fail it too.`,
		Example: `  # Validate craig.json
  craig validate

  # Add custom policies and fail on warnings
  craig validate --policy ./policies --strict

  # Restrict the document with CUE constraints
  craig validate --constraints naming.cue

  # Machine-readable findings
  craig validate -o json`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			path := sess.cfg.Document
			paths := append(append([]string{}, sess.cfg.PolicyPaths...), policyPaths...)

			log.Info().
				Str("document", path).
				Bool("strict", strict).
				Strs("policies", paths).
				Msg("Validating document")

			ctx, span := sess.tel.Tracer.StartCommandSpan(sess.ctx, "validate", path)
			defer span.End()
			op := telemetry.StartOperation(ctx, "validate")
			defer func() { op.End(err) }()

			raw, err := sess.load(true)
			if err != nil {
				return err
			}

			report := &validationReport{Document: path}

			sr := config.NewSchemaRegistry()
			if _, err := sr.RegisterEntityTypes(sess.store.DescribeAllEntityTypes()); err != nil {
				return fmt.Errorf("failed to build document schema: %w", err)
			}
			parser := config.NewCUEParserWithSchemas(sr)
			if !skipSchema {
				report.Schema, err = parser.ValidateWithSchema(op.Ctx, raw)
				if err != nil {
					return err
				}
			}
			report.Constraints, err = parser.ValidateConstraints(op.Ctx, raw, constraints)
			if err != nil {
				return err
			}

			for _, r := range sess.store.CheckAll() {
				if r.Blocks || len(r.InvalidFields()) > 0 {
					report.Fields = append(report.Fields, r)
				}
			}

			for _, name := range qualifiedTypeNames(sess.store.DescribeAllEntityTypes()) {
				if keys := sess.store.DuplicateKeys(name); len(keys) > 0 {
					report.Duplicates = append(report.Duplicates, duplicateKeys{Type: name, Keys: keys})
				}
			}

			if !skipPolicy {
				engine, err := newPolicyEngine(op.Ctx, sess, paths)
				if err != nil {
					return err
				}
				report.Policy, err = lintDocument(op.Ctx, sess, engine, "validate")
				if err != nil {
					return err
				}
				span.SetAttributes(telemetry.AttrViolations.Int(len(report.Policy.Violations)))
			}

			report.Valid = report.passes(strict)

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, sess.cfg.Output, report); ok {
				if err != nil {
					return err
				}
			} else {
				printValidation(out, report)
			}

			if !report.Valid {
				return fmt.Errorf("document %s is not valid", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on policy warnings")
	cmd.Flags().BoolVar(&skipSchema, "skip-schema", false, "skip the CUE schema check")
	cmd.Flags().BoolVar(&skipPolicy, "skip-policy", false, "skip lint policies")
	cmd.Flags().StringArrayVar(&policyPaths, "policy", nil, "additional .rego files or directories")
	cmd.Flags().StringArrayVar(&constraints, "constraints", nil, "CUE constraint files or directories the document must satisfy")

	return cmd
}

// passes reports whether the findings allow the document. Entities whose
// required fields are invalid block it; other invalid fields do not.
func (r *validationReport) passes(strict bool) bool {
	if len(r.Schema) > 0 || len(r.Constraints) > 0 || len(r.Duplicates) > 0 {
		return false
	}
	for _, f := range r.Fields {
		if f.Blocks {
			return false
		}
	}
	if r.Policy != nil {
		if !r.Policy.Allowed {
			return false
		}
		if strict && len(r.Policy.Violations) > 0 {
			return false
		}
	}
	return true
}

// newPolicyEngine returns an engine with the built-in policies, the
// policies under paths and the registered type names as data.
func newPolicyEngine(ctx context.Context, sess *session, paths []string) (*policy.Engine, error) {
	engine, err := policy.NewEngine(log.Logger)
	if err != nil {
		return nil, err
	}

	names := sess.store.TypeNames()
	types := make([]interface{}, len(names))
	for i, n := range names {
		types[i] = n
	}
	if err := engine.SetData(ctx, map[string]interface{}{
		"craig": map[string]interface{}{"types": types},
	}); err != nil {
		return nil, err
	}

	if len(paths) > 0 {
		if err := engine.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// lintDocument evaluates the store's document and reports every violation
// as a metric and an event.
func lintDocument(ctx context.Context, sess *session, engine *policy.Engine, operation string) (*policy.Result, error) {
	result, err := engine.Evaluate(ctx, sess.store.Snapshot(), &policy.EvalContext{
		Operation: operation,
		Source:    sess.cfg.Document,
		Timestamp: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	for _, v := range result.Violations {
		sess.tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		_ = sess.tel.Events.PublishPolicyViolation(sess.cfg.Document, v.Policy, v.Entity, string(v.Severity), v.Message)
	}
	for _, w := range result.Warnings {
		telemetry.FromContext(ctx).Warn(w)
	}
	return result, nil
}

// qualifiedTypeNames flattens descriptions into "type" and "type.sub" names.
func qualifiedTypeNames(descs []store.TypeDescription) []string {
	var names []string
	for _, d := range descs {
		names = append(names, d.Name)
		for _, sub := range d.Subs {
			names = append(names, sub.Name)
		}
	}
	return names
}

func printValidation(w io.Writer, r *validationReport) {
	for _, e := range r.Schema {
		fmt.Fprintf(w, "✗ schema: %s\n", e.String())
	}
	for _, e := range r.Constraints {
		fmt.Fprintf(w, "✗ constraint: %s\n", e.String())
	}
	for _, f := range r.Fields {
		mark := "!"
		if f.Blocks {
			mark = "✗"
		}
		name := f.Type + "/" + f.Key
		if f.Parent != "" {
			name = f.Type + "/" + f.Parent + "/" + f.Key
		}
		fmt.Fprintf(w, "%s %s: invalid %v\n", mark, name, f.InvalidFields())
	}
	for _, d := range r.Duplicates {
		fmt.Fprintf(w, "✗ %s: duplicate keys %v\n", d.Type, d.Keys)
	}
	if r.Policy != nil {
		for _, v := range r.Policy.Violations {
			mark := "!"
			if v.Severity.Blocking() {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s [%s] %s: %s (%s)\n", mark, v.Severity, v.Entity, v.Message, v.Policy)
		}
		fmt.Fprintf(w, "\n%d policies evaluated, %d violations\n",
			len(r.Policy.EvaluatedPolicies), len(r.Policy.Violations))
	}

	if r.Valid {
		fmt.Fprintf(w, "✓ %s is valid\n", r.Document)
	} else {
		fmt.Fprintf(w, "✗ %s is not valid\n", r.Document)
	}
}
