package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/catalog"
	"github.com/IBM/CRAIG-sub005/pkg/stores"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

func newInitCommand() *cobra.Command {
	var (
		prefix string
		force  bool
		empty  bool
		sshKey string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration document",
		Long: `Create a new configuration document seeded with a minimal landing zone.

The seed contains one resource group, a key management instance with a
root key, an encrypted flow logs bucket, a management VPC with one subnet
per zone, an SSH key and a VSI deployment. Use --empty to write only the
defaults of the registered types.

With --ssh-key the seeded SSH key carries the public half of the keypair
at that path. A missing keypair is generated (ed25519).`,
		Example: `  # Seed craig.json with the default prefix
  craig init

  # Seed a YAML document with a custom prefix
  craig init --document landing-zone.yaml --prefix slz

  # Seed with a generated deployment key
  craig init --ssh-key ~/.ssh/craig_ed25519

  # Overwrite an existing document
  craig init --force`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			if prefix == "" {
				prefix = sess.cfg.Prefix
			}
			path := sess.cfg.Document

			log.Info().
				Str("document", path).
				Str("prefix", prefix).
				Bool("empty", empty).
				Msg("Initializing document")

			op := telemetry.StartOperation(sess.ctx, "init",
				telemetry.AttrDocument.String(path))
			defer func() { op.End(err) }()

			if sess.exists() && !force {
				return fmt.Errorf("document %s already exists, use --force to overwrite", path)
			}

			if !empty {
				if err := catalog.Seed(sess.store, prefix); err != nil {
					return fmt.Errorf("failed to seed document: %w", err)
				}
				if sshKey != "" {
					publicKey, generated, err := catalog.EnsureSSHKey(sshKey)
					if err != nil {
						return err
					}
					if generated {
						fmt.Fprintf(cmd.OutOrStdout(), "✓ Generated SSH keypair: %s\n", sshKey)
					}
					if err := catalog.SetSeedKey(sess.store, publicKey); err != nil {
						return err
					}
				}
			}
			passes, stable := sess.store.ReconcileUntilStable(sess.cfg.MaxPasses)
			if !stable {
				op.Logger.Warnf("Document did not settle after %d passes", passes)
			}

			if err := sess.save(stores.OperationInit); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created document: %s\n", path)
			fmt.Fprintf(out, "✓ Registered types: %d\n", len(sess.store.TypeNames()))
			fmt.Fprintf(out, "\nNext steps:\n")
			fmt.Fprintf(out, "  craig validate --document %s\n", path)
			fmt.Fprintf(out, "  craig watch --document %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "resource name prefix (default from config)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing document")
	cmd.Flags().BoolVar(&empty, "empty", false, "write registration defaults only")
	cmd.Flags().StringVar(&sshKey, "ssh-key", "", "keypair whose public key the seeded SSH key uses, generated if missing")

	return cmd
}
