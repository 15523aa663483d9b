package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *LocalStorageProvider {
	t.Helper()
	provider, err := NewLocalStorageProvider(&LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return provider
}

func testDescriptor(id string, createdAt time.Time) *Descriptor {
	return &Descriptor{
		ID:            id,
		FormatVersion: FormatVersion,
		CreatedAt:     createdAt,
		CreatedBy:     "operator",
		Checksum:      "deadbeef",
		Compression:   CompressionTypeNone,
	}
}

func TestLocalStorageProvider_StoreAndRetrieve(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()
	artifact := []byte("encoded snapshot bytes")

	descriptor := testDescriptor("snap-20260830-100000-aaaaaaaa", time.Now().UTC())
	require.NoError(t, provider.Store(ctx, descriptor, artifact))
	assert.NotEmpty(t, descriptor.StorageLocation)

	got, data, err := provider.Retrieve(ctx, descriptor.ID)
	require.NoError(t, err)
	assert.Equal(t, descriptor.ID, got.ID)
	assert.Equal(t, descriptor.Checksum, got.Checksum)
	assert.Equal(t, artifact, data)
}

func TestLocalStorageProvider_StoreRejectsDuplicate(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	descriptor := testDescriptor("snap-20260830-100000-aaaaaaaa", time.Now().UTC())
	require.NoError(t, provider.Store(ctx, descriptor, []byte("v1")))

	err := provider.Store(ctx, testDescriptor(descriptor.ID, time.Now().UTC()), []byte("v2"))
	require.Error(t, err)
	assert.Equal(t, ErrTypeConflict, ErrorType(err))
}

func TestLocalStorageProvider_StoreRejectsInvalidDescriptor(t *testing.T) {
	provider := newTestProvider(t)

	err := provider.Store(context.Background(), &Descriptor{ID: "incomplete"}, []byte("x"))
	require.Error(t, err)

	// Nothing may be left behind after a refused store.
	entries, readErr := os.ReadDir(provider.basePath)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestLocalStorageProvider_RetrieveMissing(t *testing.T) {
	provider := newTestProvider(t)

	_, _, err := provider.Retrieve(context.Background(), "snap-nope")
	require.Error(t, err)
	assert.Equal(t, ErrTypeNotFound, ErrorType(err))
}

func TestLocalStorageProvider_Delete(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	descriptor := testDescriptor("snap-20260830-100000-aaaaaaaa", time.Now().UTC())
	require.NoError(t, provider.Store(ctx, descriptor, []byte("x")))
	require.NoError(t, provider.Delete(ctx, descriptor.ID))

	_, err := provider.GetDescriptor(ctx, descriptor.ID)
	assert.Equal(t, ErrTypeNotFound, ErrorType(err))

	err = provider.Delete(ctx, descriptor.ID)
	assert.Equal(t, ErrTypeNotFound, ErrorType(err))
}

func TestLocalStorageProvider_ListNewestFirst(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		descriptor := testDescriptor(fmt.Sprintf("snap-2026083%d-100000-aaaaaaa%d", i, i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, provider.Store(ctx, descriptor, []byte("x")))
	}

	descriptors, err := provider.List(ctx, StorageFilter{})
	require.NoError(t, err)
	require.Len(t, descriptors, 3)
	assert.True(t, descriptors[0].CreatedAt.After(descriptors[1].CreatedAt))
	assert.True(t, descriptors[1].CreatedAt.After(descriptors[2].CreatedAt))

	limited, err := provider.List(ctx, StorageFilter{MaxItems: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLocalStorageProvider_SanitizesSnapshotID(t *testing.T) {
	provider := newTestProvider(t)

	dir := provider.snapshotDirectory("../../escape")
	rel, err := filepath.Rel(provider.basePath, dir)
	require.NoError(t, err)
	assert.False(t, filepath.IsAbs(rel))
	assert.NotContains(t, rel, "..")
}
