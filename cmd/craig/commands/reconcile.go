package commands

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/store"
	"github.com/IBM/CRAIG-sub005/pkg/stores"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

type reconcileReport struct {
	Document    string                  `json:"document" yaml:"document"`
	Passes      int                     `json:"passes" yaml:"passes"`
	Stable      bool                    `json:"stable" yaml:"stable"`
	Changed     bool                    `json:"changed" yaml:"changed"`
	Written     bool                    `json:"written" yaml:"written"`
	Diagnostics []store.OrderDiagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func newReconcileCommand() *cobra.Command {
	var (
		dryRun    bool
		maxPasses int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair a document into a schema-valid shape",
		Long: `Load a document, run repair passes until it stops changing and write it back.

A document edited by hand or by another tool may hold references to
deleted entities, stale mirrored fields or missing collections. Reconcile
settles all of them. Types that reference types registered after them are
reported, since a single pass cannot settle those references.`,
		Example: `  # Repair craig.json in place
  craig reconcile

  # Show what would change without writing
  craig reconcile --dry-run -o json`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			path := sess.cfg.Document
			if maxPasses <= 0 {
				maxPasses = sess.cfg.MaxPasses
			}

			log.Info().
				Str("document", path).
				Int("max_passes", maxPasses).
				Bool("dry_run", dryRun).
				Msg("Reconciling document")

			ctx, span := sess.tel.Tracer.StartCommandSpan(sess.ctx, "reconcile", path)
			defer span.End()
			op := telemetry.StartOperation(ctx, "reconcile")
			defer func() { op.End(err) }()

			raw, err := sess.load(true)
			if err != nil {
				return err
			}
			before, err := raw.JSON()
			if err != nil {
				return err
			}

			passes, stable := sess.store.ReconcileUntilStable(maxPasses)
			span.SetAttributes(telemetry.AttrPasses.Int(passes))

			after, err := sess.store.JSON()
			if err != nil {
				return err
			}

			report := reconcileReport{
				Document:    path,
				Passes:      passes,
				Stable:      stable,
				Changed:     !bytes.Equal(before, after),
				Diagnostics: sess.store.OrderDiagnostics(),
			}

			if !dryRun {
				if err := sess.save(stores.OperationReconcile); err != nil {
					return err
				}
				report.Written = true
			}

			out := cmd.OutOrStdout()
			if ok, err := writeStructured(out, sess.cfg.Output, report); ok {
				return err
			}

			status := "stable"
			if !report.Stable {
				status = "not stable"
			}
			fmt.Fprintf(out, "Reconciled %s: %d passes, %s\n", path, passes, status)
			for _, d := range report.Diagnostics {
				fmt.Fprintf(out, "  ! %s.%s -> %s: %s\n", d.Type, d.Field, d.Target, d.Message)
			}
			if dryRun {
				fmt.Fprintln(out, "Dry run, document not written")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not write the repaired document")
	cmd.Flags().IntVar(&maxPasses, "max-passes", 0, "maximum repair passes (default from config)")

	return cmd
}
