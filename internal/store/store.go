package store

import (
	"context"
)

// TableStore is the bulk reader/writer over the live customer-data store.
// ReadAll and ReadTable see committed data only. ReplaceAll is the single
// destructive entry point: it clears every protected table in reverse
// dependency order and reloads the supplied records in forward dependency
// order inside one transaction, so a failure at any point leaves the store
// untouched.
type TableStore interface {
	ReadAll(ctx context.Context) (map[string][]Record, error)
	ReadTable(ctx context.Context, table string) ([]Record, error)
	ReplaceAll(ctx context.Context, tables map[string][]Record) error
}
