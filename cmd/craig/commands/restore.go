package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/stores"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

func newRestoreCommand() *cobra.Command {
	var (
		snapshotID string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the document from a snapshot",
		Long: `Replace the document with a snapshot from its history.

The current document is recorded first, so a restore can itself be
undone. The restored document is reconciled before it is written.

Snapshots are named by id or by an unambiguous id prefix, as printed by
craig history. Restoring a snapshot taken of another document needs
--force.`,
		Example: `  # Restore a snapshot
  craig restore --from 3f2a9c1e

  # Restore a snapshot of another document here
  craig restore --from 3f2a9c1e -d staging.json --force`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			path := sess.cfg.Document
			log.Info().
				Str("document", path).
				Str("from", snapshotID).
				Bool("force", force).
				Msg("Restoring from snapshot")

			op := telemetry.StartOperation(sess.ctx, "restore")
			defer func() { op.End(err) }()

			hist, err := sess.history()
			if err != nil {
				return err
			}
			snap, err := hist.GetSnapshot(op.Ctx, snapshotID)
			if err != nil {
				return err
			}
			if snap.Document != sess.historyKey() && !force {
				return fmt.Errorf("snapshot %s was taken of %s, use --force to restore it to %s",
					snap.ShortID(), snap.Document, path)
			}
			doc, err := snap.Decode()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if sess.exists() {
				current, err := sess.load(false)
				if err != nil {
					return err
				}
				safety, saved, err := sess.snapshot(stores.OperationBackup, "before restore of "+snap.ShortID(), current)
				if err != nil {
					return err
				}
				if saved {
					fmt.Fprintf(out, "Recorded current document as %s\n", safety.ShortID())
				}
			}

			sess.store.Load(doc)
			passes, stable := sess.store.ReconcileUntilStable(sess.cfg.MaxPasses)
			if !stable {
				op.Logger.Warnf("Restored document did not settle after %d passes", passes)
			}

			if err := sess.save(stores.OperationRestore); err != nil {
				return err
			}
			if !sess.cfg.History.Enabled {
				if _, _, err := sess.snapshot(stores.OperationRestore, "", sess.store.Snapshot()); err != nil {
					return err
				}
			}
			if err := sess.audit(stores.OperationRestore, snap.ID, map[string]any{
				"from":     snap.Document,
				"snapshot": snap.Seq,
			}); err != nil {
				return err
			}

			fmt.Fprintf(out, "✓ Restored %s from snapshot %s (%s, %s)\n",
				path, snap.ShortID(), snap.Operation, snap.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotID, "from", "", "snapshot id or id prefix to restore")
	cmd.Flags().BoolVar(&force, "force", false, "restore a snapshot taken of another document")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}
