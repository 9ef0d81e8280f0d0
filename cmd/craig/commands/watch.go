package commands

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/config"
	"github.com/IBM/CRAIG-sub005/pkg/policy"
	"github.com/IBM/CRAIG-sub005/pkg/store"
	"github.com/IBM/CRAIG-sub005/pkg/stores"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		write       bool
		lint        bool
		debounce    time.Duration
		policyPaths []string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reconcile a document whenever it changes",
		Long: `Watch a document file and reconcile it on every change.

Each time the file is written the document is reloaded, repaired until
stable and, with --write, written back when the repair changed it. With
--lint every reload is also checked against the lint policies; policy
files given with --policy are reloaded when they change.

Metrics are served while watching when telemetry.metrics_address is set.`,
		Example: `  # Keep craig.json repaired while editing it
  craig watch --write

  # Lint on every change with local policies
  craig watch --lint --policy ./policies`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx := sess.ctx
			path := sess.cfg.Document
			out := &syncWriter{w: cmd.OutOrStdout()}
			paths := append(append([]string{}, sess.cfg.PolicyPaths...), policyPaths...)

			log.Info().
				Str("document", path).
				Bool("write", write).
				Bool("lint", lint).
				Msg("Watching document")

			sess.tel.Events.AddFilter(telemetry.FilterByDocument(path))
			sess.tel.Events.Subscribe(func(e telemetry.Event) {
				fmt.Fprintf(out, "%s %-24s %s\n", e.Timestamp.Format("15:04:05"), e.Type, e.Message)
			}, telemetry.FilterByType(
				telemetry.EventTypeDocumentReloaded,
				telemetry.EventTypeReloadFailed,
				telemetry.EventTypeDocumentSaved,
				telemetry.EventTypePolicyViolation,
			))

			var engine *policy.Engine
			if lint {
				engine, err = newPolicyEngine(ctx, sess, nil)
				if err != nil {
					return err
				}
				if len(paths) > 0 {
					loader, err := engine.Watch(ctx, paths)
					if err != nil {
						return err
					}
					defer loader.StopWatching()
				}
			}

			watcher := config.NewDocumentWatcher(path, log.Logger)
			if debounce > 0 {
				watcher.SetDebounce(debounce)
			}

			var mu sync.Mutex
			apply := func(doc store.Document) error {
				mu.Lock()
				defer mu.Unlock()

				err := reconcileDocument(sess, watcher, doc, write)
				sess.tel.Metrics.RecordReload(err)
				_ = sess.tel.Events.PublishDocumentReloaded(path, err)
				if err != nil {
					return err
				}

				if engine != nil {
					result, err := lintDocument(ctx, sess, engine, "watch")
					if err != nil {
						return err
					}
					if len(result.Violations) == 0 {
						fmt.Fprintln(out, "✓ no policy violations")
					}
				}
				return nil
			}

			raw, err := sess.load(true)
			if err != nil {
				return err
			}
			if err := apply(raw); err != nil {
				return err
			}

			if err := watcher.Watch(ctx, apply); err != nil {
				return err
			}
			defer watcher.Stop()

			fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", path)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "write the repaired document back")
	cmd.Flags().BoolVar(&lint, "lint", false, "check lint policies on every change")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "delay after the last change before reloading")
	cmd.Flags().StringArrayVar(&policyPaths, "policy", nil, "additional .rego files or directories")

	return cmd
}

// reconcileDocument loads doc into the store and repairs it. With write set
// a changed document is saved, and the watcher told to skip the resulting
// change event.
func reconcileDocument(sess *session, watcher *config.DocumentWatcher, doc store.Document, write bool) error {
	before, err := doc.JSON()
	if err != nil {
		return err
	}

	sess.store.Load(doc)
	passes, stable := sess.store.ReconcileUntilStable(sess.cfg.MaxPasses)
	if !stable {
		log.Warn().Int("passes", passes).Msg("Document did not settle")
	}

	after, err := sess.store.JSON()
	if err != nil {
		return err
	}
	if !write || bytes.Equal(before, after) {
		return nil
	}

	watcher.IgnoreUntil(time.Now().Add(time.Second))
	return sess.save(stores.OperationWatch)
}

// syncWriter serializes writes from the watcher and event goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
