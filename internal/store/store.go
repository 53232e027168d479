// Package store persists state snapshots so a restart can resume with the
// positions and open wagers it had. Backends: in-memory (dry runs and
// tests), PostgreSQL, and Redis.
package store

import (
	"context"

	"github.com/yanun0323/errors"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

// ErrNoSnapshot is returned by Load when the backend holds no snapshot yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Store saves and restores whole-state snapshots. Save overwrites the
// previous snapshot; partial history is not kept.
type Store interface {
	Save(ctx context.Context, snap schema.Snapshot) error
	Load(ctx context.Context) (schema.Snapshot, error)
	Close() error
}
