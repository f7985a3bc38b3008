package records

import (
	"context"
	"maps"

	"github.com/namel3ss/evalgate/internal/bridge"
)

// MemoryStore keeps records in process memory. It is not safe for concurrent
// use; the gate drives it from a single goroutine.
type MemoryStore struct {
	rows map[string][]bridge.Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: map[string][]bridge.Record{}}
}

func (m *MemoryStore) Append(_ context.Context, schema string, rec bridge.Record) (int, error) {
	id := len(m.rows[schema]) + 1
	stored := maps.Clone(rec)
	if stored == nil {
		stored = bridge.Record{}
	}
	stored["id"] = id
	m.rows[schema] = append(m.rows[schema], stored)
	return id, nil
}

func (m *MemoryStore) ListRecords(_ context.Context, schema string, limit int) ([]bridge.Record, error) {
	rows := window(m.rows[schema], limit)
	out := make([]bridge.Record, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
