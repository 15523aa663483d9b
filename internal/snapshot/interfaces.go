package snapshot

import (
	"context"
)

// StorageProvider abstracts the durable blob store holding snapshot
// artifacts. Artifacts are write-once: Store must not be called twice with
// the same ID, and a failed Store must leave no partial artifact behind.
type StorageProvider interface {
	Store(ctx context.Context, descriptor *Descriptor, artifact []byte) error
	Retrieve(ctx context.Context, snapshotID string) (*Descriptor, []byte, error)
	Delete(ctx context.Context, snapshotID string) error
	List(ctx context.Context, filter StorageFilter) ([]*Descriptor, error)
	GetDescriptor(ctx context.Context, snapshotID string) (*Descriptor, error)
}
