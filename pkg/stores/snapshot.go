package stores

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// NewSnapshot captures doc as the next version of the document at path.
func NewSnapshot(path, operation, message string, doc store.Document) (*Snapshot, error) {
	data, err := doc.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	return &Snapshot{
		ID:        uuid.New().String(),
		Document:  path,
		Operation: operation,
		Message:   message,
		Hash:      Hash(data),
		Entities:  CountEntities(doc),
		Data:      string(data),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Decode returns the document the snapshot holds.
func (s *Snapshot) Decode() (store.Document, error) {
	if s.Data == "" {
		return nil, fmt.Errorf("snapshot %s was listed without its data", s.ID)
	}
	return store.DecodeDocument([]byte(s.Data))
}

// ShortID is the id prefix shown in listings and accepted by GetSnapshot.
func (s *Snapshot) ShortID() string {
	if len(s.ID) < 8 {
		return s.ID
	}
	return s.ID[:8]
}

// Hash returns the hex sha256 of an encoded document.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CountEntities counts the records of every collection in doc.
func CountEntities(doc store.Document) int {
	n := 0
	for _, v := range doc {
		switch list := v.(type) {
		case []any:
			n += len(list)
		case []store.Entity:
			n += len(list)
		}
	}
	return n
}

// Record saves snap unless it matches the latest snapshot of its document,
// then prunes the document's history down to keep snapshots. It reports
// whether snap was saved.
func Record(ctx context.Context, st Store, snap *Snapshot, keep int) (bool, error) {
	latest, err := st.LatestSnapshot(ctx, snap.Document)
	switch {
	case err == nil && latest.Hash == snap.Hash:
		return false, nil
	case err != nil && !errors.Is(err, ErrSnapshotNotFound):
		return false, err
	}

	if err := st.SaveSnapshot(ctx, snap); err != nil {
		return false, err
	}
	if _, err := st.PruneSnapshots(ctx, snap.Document, keep); err != nil {
		return true, err
	}
	return true, nil
}
