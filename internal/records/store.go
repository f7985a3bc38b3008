// Package records provides append-only record stores that satisfy
// bridge.RecordStore: an in-memory store for single runs and a SQLite store
// for runs that should leave an inspectable trail on disk.
package records

import (
	"context"
	"fmt"

	"github.com/namel3ss/evalgate/internal/bridge"
)

// Store drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Store is an append-only record store. Append assigns the next id within the
// schema (starting at 1), stores it under the "id" key and returns it.
type Store interface {
	bridge.RecordStore
	Append(ctx context.Context, schema string, rec bridge.Record) (int, error)
	Close() error
}

// Open returns a store for driver. path is only used by the sqlite driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown record store driver: %s", driver)
	}
}

// window returns the newest limit rows of rows, preserving oldest-first order.
// limit <= 0 returns every row.
func window(rows []bridge.Record, limit int) []bridge.Record {
	if limit > 0 && len(rows) > limit {
		return rows[len(rows)-limit:]
	}
	return rows
}
