package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/IBM/CRAIG-sub005/pkg/catalog"
	"github.com/IBM/CRAIG-sub005/pkg/config"
	"github.com/IBM/CRAIG-sub005/pkg/store"
	"github.com/IBM/CRAIG-sub005/pkg/stores"
	"github.com/IBM/CRAIG-sub005/pkg/telemetry"
)

// session is the state one command runs with: the store with every catalog
// registered, the telemetry it reports through and, once opened, the
// document history.
type session struct {
	cfg   *config.AppConfig
	tel   *telemetry.Telemetry
	store *store.Store
	ctx   context.Context
	hist  *stores.SQLiteStore

	updates atomic.Uint64
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg := appConfig
	if cfg == nil {
		cfg = config.DefaultAppConfig()
	}

	tcfg := telemetryConfig(cfg)
	logger := telemetry.NewLoggerTo(cmd.ErrOrStderr(), tcfg.Logging)
	tel, err := telemetry.NewTelemetryWithLogger(tcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx := tel.WithContext(parent)
	if err := tel.StartMetricsServer(ctx); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}

	s, err := catalog.New(
		store.WithLogger(logger.NewComponentLogger("store").Zerolog()),
		store.WithRecorder(tel.Metrics),
	)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}

	if len(cfg.Catalogs) > 0 {
		ev := config.NewStarlarkEvaluator(cfg.StarlarkTimeout).
			WithLogger(logger.Zerolog())
		for _, path := range cfg.Catalogs {
			cf, err := config.LoadCatalogFile(path)
			if err != nil {
				_ = tel.Shutdown(context.Background())
				return nil, err
			}
			if err := cf.Register(s, ev); err != nil {
				_ = tel.Shutdown(context.Background())
				return nil, fmt.Errorf("catalog %s: %w", path, err)
			}
			logger.Debugf("Registered catalog %s", path)
		}
	}

	sess := &session{
		cfg:   cfg,
		tel:   tel,
		store: s,
		ctx:   ctx,
	}
	s.SetUpdateCallback(func() {
		seq := sess.updates.Add(1)
		sess.tel.Metrics.SetEntityCounts(s.Snapshot())
		if err := sess.tel.Events.PublishStoreUpdated(cfg.Document, seq); err != nil {
			logger.WithError(err).Warn("Failed to publish store update")
		}
	})

	if cfg.History.Enabled && cfg.History.Events {
		hist, err := sess.history()
		if err != nil {
			_ = sess.close()
			return nil, err
		}
		sess.tel.Events.Subscribe(func(e telemetry.Event) {
			if err := hist.AppendEvent(context.Background(), journalEvent(e)); err != nil {
				logger.WithError(err).Warn("Failed to journal event")
			}
		}, nil)
	}
	return sess, nil
}

func telemetryConfig(cfg *config.AppConfig) *telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.Logging.Level = cfg.LogLevel
	if verbose {
		tcfg.Logging.Level = "debug"
	}

	switch cfg.Telemetry.Tracing {
	case "stdout":
		tcfg.Tracing.Enabled = true
		tcfg.Tracing.Exporter = "stdout"
	case "otlp":
		tcfg.Tracing.Enabled = true
		tcfg.Tracing.Exporter = "otlp"
		tcfg.Tracing.Endpoint = cfg.Telemetry.OTLPEndpoint
	}

	tcfg.Metrics.ListenAddress = cfg.Telemetry.MetricsAddress
	return tcfg
}

// load reads the configured document into the store and returns it as read
// from disk. A missing document leaves the store with its registration
// defaults unless mustExist is set.
func (s *session) load(mustExist bool) (store.Document, error) {
	path := s.cfg.Document
	if !s.exists() {
		if mustExist {
			return nil, fmt.Errorf("document %s does not exist, run craig init first", path)
		}
		telemetry.FromContext(s.ctx).Debugf("Document %s does not exist, starting empty", path)
		return store.Document{}, nil
	}

	doc, err := config.LoadDocument(s.ctx, path)
	if err != nil {
		return nil, err
	}

	s.store.Load(doc)
	entities := stores.CountEntities(s.store.Snapshot())
	_ = s.tel.Events.PublishDocumentLoaded(path, entities)
	telemetry.FromContext(s.ctx).WithDocument(path).
		WithField("entities", entities).
		Debug("Document loaded")
	return doc, nil
}

// save writes the store back to the configured document and, with history
// enabled, records the written version.
func (s *session) save(operation string) error {
	path := s.cfg.Document
	doc := s.store.Snapshot()
	if err := config.SaveDocument(path, doc); err != nil {
		return err
	}
	_ = s.tel.Events.PublishDocumentSaved(path)

	if s.cfg.History.Enabled {
		if _, _, err := s.snapshot(operation, "", doc); err != nil {
			return err
		}
	}
	return nil
}

// history opens the snapshot database on first use.
func (s *session) history() (*stores.SQLiteStore, error) {
	if s.hist != nil {
		return s.hist, nil
	}
	path := s.cfg.HistoryPath()
	st, err := stores.Open(s.ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}
	telemetry.FromContext(s.ctx).Debugf("Opened history %s", path)
	s.hist = st
	return st, nil
}

// historyKey is the document name snapshots are recorded under.
func (s *session) historyKey() string {
	if abs, err := filepath.Abs(s.cfg.Document); err == nil {
		return abs
	}
	return s.cfg.Document
}

// snapshot records doc in the history unless it matches the latest
// version, and reports whether it did.
func (s *session) snapshot(operation, message string, doc store.Document) (*stores.Snapshot, bool, error) {
	hist, err := s.history()
	if err != nil {
		return nil, false, err
	}
	snap, err := stores.NewSnapshot(s.historyKey(), operation, message, doc)
	if err != nil {
		return nil, false, err
	}
	saved, err := stores.Record(s.ctx, hist, snap, s.cfg.History.Keep)
	if err != nil {
		return nil, false, err
	}
	if saved {
		telemetry.FromContext(s.ctx).WithDocument(s.cfg.Document).
			WithField("snapshot", snap.ShortID()).
			WithField("operation", operation).
			Debug("Recorded snapshot")
	}
	return snap, saved, nil
}

// audit records a change in the history's audit log when history is
// enabled or already open.
func (s *session) audit(action, target string, details map[string]any) error {
	if !s.cfg.History.Enabled && s.hist == nil {
		return nil
	}
	hist, err := s.history()
	if err != nil {
		return err
	}

	entry := &stores.AuditEntry{
		Action:    action,
		Actor:     actor(),
		Document:  s.historyKey(),
		Timestamp: time.Now().UTC(),
	}
	if target != "" {
		entry.Target = &target
	}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		d := string(data)
		entry.Details = &d
	}
	return hist.CreateAuditEntry(s.ctx, entry)
}

// exists reports whether the configured document is on disk.
func (s *session) exists() bool {
	_, err := os.Stat(s.cfg.Document)
	return err == nil
}

func (s *session) close() error {
	err := s.tel.Shutdown(context.Background())
	if s.hist != nil {
		if cerr := s.hist.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// journalEvent converts a telemetry event to its history record.
func journalEvent(e telemetry.Event) *stores.Event {
	ev := &stores.Event{
		EventID:   e.ID,
		Type:      e.Type,
		Source:    e.Source,
		Document:  e.Document,
		Level:     e.Level,
		Message:   e.Message,
		Timestamp: e.Timestamp.UTC(),
	}
	if e.EntityType != "" {
		ev.EntityType = &e.EntityType
	}
	if e.Entity != "" {
		ev.Entity = &e.Entity
	}
	if len(e.Data) > 0 {
		if data, err := json.Marshal(e.Data); err == nil {
			d := string(data)
			ev.Details = &d
		}
	}
	return ev
}

func actor() string {
	for _, key := range []string{"CRAIG_ACTOR", "USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}
