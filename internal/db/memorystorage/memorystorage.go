// Package memorystorage provides the storage facade backed purely by memory.
// It reuses the jsondb cache without a backing file and is the default
// storage when neither a database DSN nor a storage file is configured.
package memorystorage

import (
	"context"

	"linkfeed/internal/db/jsondb"
)

// MemoryStorage is an in-memory storage without persistence.
type MemoryStorage struct {
	*jsondb.JSONDB
}

// New creates an empty in-memory storage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

// Close is a no-op; there is nothing to flush.
func (theStorage *MemoryStorage) Close() error {
	return nil
}

// Ping is a no-op; memory is always available.
func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
