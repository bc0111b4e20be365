// Package memorystorage is the in-memory storage tier. It reuses the
// jsondb cache without persisting anything, and is the default when
// neither a database DSN nor a storage file is configured.
package memorystorage

import (
	"context"

	"github.com/mbelenkov/shrink/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.CacheStruct{},
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
