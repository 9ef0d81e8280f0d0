package stores

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return st
}

func testDocument(vpcs ...string) store.Document {
	list := []any{}
	for _, name := range vpcs {
		list = append(list, map[string]any{"name": name, "resource_group": nil})
	}
	return store.Document{
		"options":         map[string]any{"prefix": "slz"},
		"resource_groups": []any{map[string]any{"name": "rg"}},
		"vpcs":            list,
	}
}

func newTestSnapshot(t *testing.T, path, operation string, doc store.Document) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(path, operation, "", doc)
	if err != nil {
		t.Fatalf("failed to build snapshot: %v", err)
	}
	return snap
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	st, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()

	if err := st.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before init")
	}
	if err := st.Migrate(ctx); err == nil {
		t.Error("expected migrate to fail before init")
	}

	if err := st.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	// Running migrations twice is a no-op
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	if err := st.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpen_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	st, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	snap := newTestSnapshot(t, "craig.json", OperationBackup, testDocument("a"))
	if err := st.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	// Reopening keeps the history
	st, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer st.Close()

	got, err := st.GetSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("failed to get snapshot after reopen: %v", err)
	}
	if got.Hash != snap.Hash {
		t.Errorf("expected hash %s, got %s", snap.Hash, got.Hash)
	}
}

func TestSnapshotOperations(t *testing.T) {
	st := setupTestStore(t)
	defer st.Close()

	ctx := context.Background()
	doc := testDocument("management", "workload")

	snap := newTestSnapshot(t, "craig.json", OperationInit, doc)
	if snap.Entities != 3 {
		t.Errorf("expected 3 entities, got %d", snap.Entities)
	}

	if err := st.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}
	if snap.Seq == 0 {
		t.Error("expected sequence to be set")
	}

	// Full id
	got, err := st.GetSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("failed to get snapshot: %v", err)
	}
	if got.Document != "craig.json" || got.Operation != OperationInit {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if got.CreatedAt.Sub(snap.CreatedAt).Abs() > time.Second {
		t.Errorf("expected created_at %v, got %v", snap.CreatedAt, got.CreatedAt)
	}

	decoded, err := got.Decode()
	if err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	vpcs := decoded["vpcs"].([]any)
	if len(vpcs) != 2 {
		t.Errorf("expected 2 vpcs, got %d", len(vpcs))
	}

	// Short id
	got, err = st.GetSnapshot(ctx, snap.ShortID())
	if err != nil {
		t.Fatalf("failed to get snapshot by prefix: %v", err)
	}
	if got.ID != snap.ID {
		t.Errorf("expected ID %s, got %s", snap.ID, got.ID)
	}

	for _, id := range []string{"", "missing", "%"} {
		if _, err := st.GetSnapshot(ctx, id); !errors.Is(err, ErrSnapshotNotFound) {
			t.Errorf("GetSnapshot(%q): expected ErrSnapshotNotFound, got %v", id, err)
		}
	}

	if err := st.DeleteSnapshot(ctx, snap.ID); err != nil {
		t.Fatalf("failed to delete snapshot: %v", err)
	}
	if err := st.DeleteSnapshot(ctx, snap.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound on second delete, got %v", err)
	}
}

func TestGetSnapshot_Ambiguous(t *testing.T) {
	st := setupTestStore(t)
	defer st.Close()

	ctx := context.Background()
	for _, id := range []string{"abc-1", "abc-2"} {
		snap := newTestSnapshot(t, "craig.json", OperationBackup, testDocument())
		snap.ID = id
		if err := st.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("failed to save snapshot: %v", err)
		}
	}

	if _, err := st.GetSnapshot(ctx, "abc"); !errors.Is(err, ErrAmbiguousSnapshot) {
		t.Errorf("expected ErrAmbiguousSnapshot, got %v", err)
	}
	if _, err := st.GetSnapshot(ctx, "abc-2"); err != nil {
		t.Errorf("expected exact id to resolve, got %v", err)
	}
}

func TestListAndPruneSnapshots(t *testing.T) {
	st := setupTestStore(t)
	defer st.Close()

	ctx := context.Background()

	var ids []string
	for i, name := range []string{"a", "b", "c", "d"} {
		snap := newTestSnapshot(t, "craig.json", OperationMutate, testDocument(name))
		snap.Message = name
		if err := st.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("failed to save snapshot %d: %v", i, err)
		}
		ids = append(ids, snap.ID)
	}
	other := newTestSnapshot(t, "other.json", OperationBackup, testDocument())
	if err := st.SaveSnapshot(ctx, other); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}

	doc := "craig.json"
	list, err := st.ListSnapshots(ctx, &doc, 10, 0)
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(list))
	}
	if list[0].ID != ids[3] {
		t.Errorf("expected newest snapshot first, got %s", list[0].Message)
	}
	if list[0].Data != "" {
		t.Error("expected listing without data")
	}

	all, err := st.ListSnapshots(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list all snapshots: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 snapshots, got %d", len(all))
	}

	page, err := st.ListSnapshots(ctx, &doc, 2, 2)
	if err != nil {
		t.Fatalf("failed to list page: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[1] {
		t.Errorf("unexpected page: %+v", page)
	}

	latest, err := st.LatestSnapshot(ctx, doc)
	if err != nil {
		t.Fatalf("failed to get latest snapshot: %v", err)
	}
	if latest.ID != ids[3] || latest.Data == "" {
		t.Errorf("unexpected latest snapshot: %+v", latest)
	}

	removed, err := st.PruneSnapshots(ctx, doc, 0)
	if err != nil || removed != 0 {
		t.Errorf("keep 0 should remove nothing, got %d, %v", removed, err)
	}

	removed, err = st.PruneSnapshots(ctx, doc, 2)
	if err != nil {
		t.Fatalf("failed to prune snapshots: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 pruned snapshots, got %d", removed)
	}

	list, err = st.ListSnapshots(ctx, &doc, 10, 0)
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(list) != 2 || list[1].ID != ids[2] {
		t.Errorf("unexpected snapshots after prune: %+v", list)
	}

	// Other documents are untouched
	if _, err := st.LatestSnapshot(ctx, "other.json"); err != nil {
		t.Errorf("expected other.json history to survive, got %v", err)
	}
	if _, err := st.LatestSnapshot(ctx, "none.json"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestRecord(t *testing.T) {
	st := setupTestStore(t)
	defer st.Close()

	ctx := context.Background()

	saved, err := Record(ctx, st, newTestSnapshot(t, "craig.json", OperationInit, testDocument("a")), 2)
	if err != nil || !saved {
		t.Fatalf("expected first snapshot to be saved, got %v, %v", saved, err)
	}

	// Same content is skipped
	saved, err = Record(ctx, st, newTestSnapshot(t, "craig.json", OperationReconcile, testDocument("a")), 2)
	if err != nil || saved {
		t.Fatalf("expected unchanged snapshot to be skipped, got %v, %v", saved, err)
	}

	for _, name := range []string{"b", "c"} {
		saved, err = Record(ctx, st, newTestSnapshot(t, "craig.json", OperationMutate, testDocument(name)), 2)
		if err != nil || !saved {
			t.Fatalf("expected snapshot %s to be saved, got %v, %v", name, saved, err)
		}
	}

	doc := "craig.json"
	list, err := st.ListSnapshots(ctx, &doc, 10, 0)
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected history pruned to 2, got %d", len(list))
	}
}

func TestEventOperations(t *testing.T) {
	st := setupTestStore(t)
	defer st.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	entityType := "vpcs"
	entity := "management"
	details := `{"seq":1}`
	events := []*Event{
		{EventID: "e1", Type: "document.loaded", Source: "craig", Document: "craig.json", Level: "info", Message: "loaded", Timestamp: now},
		{EventID: "e2", Type: "store.updated", Source: "store", Document: "craig.json", Level: "info", Message: "updated", Details: &details, Timestamp: now},
		{EventID: "e3", Type: "policy.violation", Source: "policy", Document: "craig.json", EntityType: &entityType, Entity: &entity, Level: "warning", Message: "placeholder key", Timestamp: now},
		{EventID: "e4", Type: "document.loaded", Source: "craig", Document: "other.json", Level: "info", Message: "loaded", Timestamp: now},
	}
	for _, e := range events {
		if err := st.AppendEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected event ID to be set")
		}
	}

	doc := "craig.json"
	got, err := st.GetEvents(ctx, &doc, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	if got[0].EventID != "e3" {
		t.Errorf("expected newest event first, got %s", got[0].EventID)
	}
	if got[0].Entity == nil || *got[0].Entity != "management" {
		t.Errorf("expected entity to round trip, got %v", got[0].Entity)
	}
	if got[1].Details == nil || *got[1].Details != details {
		t.Errorf("expected details to round trip, got %v", got[1].Details)
	}

	eventType := "document.loaded"
	loaded, err := st.GetEvents(ctx, nil, &eventType, 10, 0)
	if err != nil {
		t.Fatalf("failed to filter events: %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("expected 2 loaded events, got %d", len(loaded))
	}
}

func TestAuditOperations(t *testing.T) {
	st := setupTestStore(t)
	defer st.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	target := "vpcs/management"
	entries := []*AuditEntry{
		{Action: "create", Actor: "alice", Document: "craig.json", Target: &target, Timestamp: now},
		{Action: "delete", Actor: "alice", Document: "craig.json", Target: &target, Timestamp: now},
		{Action: "restore", Actor: "bob", Document: "other.json", Timestamp: now},
	}
	for _, e := range entries {
		if err := st.CreateAuditEntry(ctx, e); err != nil {
			t.Fatalf("failed to create audit entry: %v", err)
		}
	}

	all, err := st.ListAuditEntries(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 entries, got %d", len(all))
	}

	doc := "craig.json"
	action := "delete"
	filtered, err := st.ListAuditEntries(ctx, &doc, &action, 10, 0)
	if err != nil {
		t.Fatalf("failed to list filtered audit entries: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 filtered entry, got %d", len(filtered))
	}
	if filtered[0].Target == nil || *filtered[0].Target != target {
		t.Errorf("expected target %s, got %v", target, filtered[0].Target)
	}
}

// TestTransactions tests transaction support
func TestTransactions(t *testing.T) {
	st := setupTestStore(t)
	defer st.Close()

	ctx := context.Background()
	snap := newTestSnapshot(t, "craig.json", OperationBackup, testDocument())

	query := `
		INSERT INTO snapshots (id, document, operation, message, hash, entities, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	// Rollback
	tx, err := st.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	if _, err := tx.ExecContext(ctx, query, snap.ID, snap.Document, snap.Operation, snap.Message,
		snap.Hash, snap.Entities, snap.Data, snap.CreatedAt); err != nil {
		_ = st.RollbackTx(tx)
		t.Fatalf("failed to insert snapshot in transaction: %v", err)
	}
	if err := st.RollbackTx(tx); err != nil {
		t.Fatalf("failed to rollback transaction: %v", err)
	}

	if _, err := st.GetSnapshot(ctx, snap.ID); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected rolled back snapshot to be missing, got %v", err)
	}

	// Commit
	tx, err = st.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin second transaction: %v", err)
	}
	if _, err := tx.ExecContext(ctx, query, snap.ID, snap.Document, snap.Operation, snap.Message,
		snap.Hash, snap.Entities, snap.Data, snap.CreatedAt); err != nil {
		_ = st.RollbackTx(tx)
		t.Fatalf("failed to insert snapshot in second transaction: %v", err)
	}
	if err := st.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}

	if _, err := st.GetSnapshot(ctx, snap.ID); err != nil {
		t.Fatalf("failed to get committed snapshot: %v", err)
	}
}

func TestCountEntities(t *testing.T) {
	doc := store.Document{
		"options": map[string]any{"prefix": "slz"},
		"vpcs":    []any{map[string]any{}, map[string]any{}},
		"vsi":     []store.Entity{{}},
		"tags":    "x",
	}
	if n := CountEntities(doc); n != 3 {
		t.Errorf("expected 3 entities, got %d", n)
	}
}
