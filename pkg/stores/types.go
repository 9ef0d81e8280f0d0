package stores

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Errors returned by lookups.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrAmbiguousSnapshot = errors.New("snapshot id is ambiguous")
)

// Snapshot operations recorded by the CLI.
const (
	OperationInit      = "init"
	OperationMutate    = "mutate"
	OperationReconcile = "reconcile"
	OperationWatch     = "watch"
	OperationBackup    = "backup"
	OperationRestore   = "restore"
)

// Snapshot is one saved version of a document.
type Snapshot struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Document  string    `json:"document"`
	Operation string    `json:"operation"`
	Message   string    `json:"message,omitempty"`
	Hash      string    `json:"hash"`
	Entities  int       `json:"entities"`
	Data      string    `json:"-"` // JSON document
	CreatedAt time.Time `json:"created_at"`
}

// Event is a persisted telemetry event.
type Event struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	Document   string    `json:"document"`
	EntityType *string   `json:"entity_type,omitempty"`
	Entity     *string   `json:"entity,omitempty"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	Details    *string   `json:"details,omitempty"` // JSON blob
	Timestamp  time.Time `json:"timestamp"`
}

// AuditEntry records a change made to a document.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"` // create, save, delete, restore
	Actor     string    `json:"actor"`
	Document  string    `json:"document"`
	Target    *string   `json:"target,omitempty"`  // type/key of the entity
	Details   *string   `json:"details,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the interface for document history storage.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Snapshot operations
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, document string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, document *string, limit, offset int) ([]*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	PruneSnapshots(ctx context.Context, document string, keep int) (int64, error)

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, document *string, eventType *string, limit, offset int) ([]*Event, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, document *string, action *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
