package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/config"
	"github.com/IBM/CRAIG-sub005/pkg/stores"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

func newBackupCommand() *cobra.Command {
	var (
		message string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Record the document in its history",
		Long: `Record the current document as a snapshot in the history database.

The snapshot is the document as it is on disk, before any repair. A
document identical to its latest snapshot is not recorded again.

With --out the document is also exported to a file; the extension picks
the format (.json, .yaml or .cue).

The history database is history.path from the configuration, or
.craig-history.db next to the document.`,
		Example: `  # Snapshot craig.json
  craig backup -m "before subnet rework"

  # Snapshot and export as YAML
  craig backup --out landing-zone.yaml`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			path := sess.cfg.Document
			log.Info().
				Str("document", path).
				Str("history", sess.cfg.HistoryPath()).
				Str("out", outFile).
				Msg("Creating backup")

			op := telemetry.StartOperation(sess.ctx, "backup")
			defer func() { op.End(err) }()

			raw, err := sess.load(true)
			if err != nil {
				return err
			}

			snap, saved, err := sess.snapshot(stores.OperationBackup, message, raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if saved {
				fmt.Fprintf(out, "✓ Recorded snapshot %s of %s (%d entities)\n", snap.ShortID(), path, snap.Entities)
				if err := sess.audit(stores.OperationBackup, snap.ID, map[string]any{"message": message}); err != nil {
					return err
				}
			} else {
				hist, err := sess.history()
				if err != nil {
					return err
				}
				latest, err := hist.LatestSnapshot(op.Ctx, sess.historyKey())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Document unchanged since snapshot %s\n", latest.ShortID())
			}

			if outFile != "" {
				if err := config.SaveDocument(outFile, raw); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Exported %s\n", outFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "note stored with the snapshot")
	cmd.Flags().StringVar(&outFile, "out", "", "also export the document to this file")

	return cmd
}
