package snapshot

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-data-guard/internal/store"
)

func cleanTables() map[string][]store.Record {
	return map[string][]store.Record{
		"customers": {
			{ID: "c-001", Fields: map[string]any{"id": "c-001", "first_name": "Anna", "last_name": "Keller", "email": "anna@acme-shop.de", "phone": "+49 171 2938475"}},
			{ID: "c-002", Fields: map[string]any{"id": "c-002", "first_name": "Bruno", "last_name": "Maier", "email": "bruno@maier-gmbh.de", "phone": "+49 160 5540912"}},
		},
		"sales": {
			{ID: "s-001", Fields: map[string]any{"id": "s-001", "customer_id": "c-001", "total": 129.90}},
			{ID: "s-002", Fields: map[string]any{"id": "s-002", "customer_id": "c-002", "total": 54.00}},
			{ID: "s-003", Fields: map[string]any{"id": "s-003", "customer_id": "c-001", "total": 7.25}},
		},
		"sale_items": {
			{ID: "i-001", Fields: map[string]any{"id": "i-001", "sale_id": "s-001", "sku": "SKU-100", "quantity": 2}},
		},
		"communication_logs": {
			{ID: "m-001", Fields: map[string]any{"id": "m-001", "customer_id": "c-001", "channel": "email", "delivery_status": "delivered"}},
			{ID: "m-002", Fields: map[string]any{"id": "m-002", "customer_id": "c-002", "channel": "sms", "delivery_status": "failed"}},
		},
		"settings": {
			{ID: "st-001", Fields: map[string]any{"id": "st-001", "key": "currency", "value": "EUR"}},
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore, *LocalStorageProvider) {
	t.Helper()

	memory := store.NewMemoryStore()
	memory.Seed(cleanTables())

	provider, err := NewLocalStorageProvider(&LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	config := &SystemConfig{
		Compression: CompressionConfig{Algorithm: CompressionTypeGzip, Level: 6},
	}
	engine, err := NewEngine(memory, provider, nil, nil, config)
	require.NoError(t, err)

	return engine, memory, provider
}

func TestEngine_CreateSnapshot(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.CreateSnapshot(ctx, "operator", "unit test")
	require.NoError(t, err)
	require.NotNil(t, result.Snapshot)
	assert.True(t, result.Report.IsClean)

	snap := result.Snapshot
	assert.Equal(t, FormatVersion, snap.FormatVersion)
	assert.Equal(t, "operator", snap.CreatedBy)
	assert.Len(t, snap.Fingerprints, 5)
	assert.Equal(t, 9, snap.Summary.TotalRecords)
	assert.Equal(t, 2, snap.Summary.CommunicationCount)
	assert.InDelta(t, 0.5, snap.Summary.DeliverySuccessRate, 1e-9)
	assert.NotEmpty(t, snap.Checksum)
}

func TestEngine_CreateSnapshot_RefusesDirtyData(t *testing.T) {
	engine, memory, provider := newTestEngine(t)
	ctx := context.Background()

	require.True(t, memory.MutateRecord("customers", "c-002", "email", "bruno@example.com"))

	result, err := engine.CreateSnapshot(ctx, "operator", "unit test")
	require.Error(t, err)
	assert.Equal(t, ErrTypeValidationFailed, ErrorType(err))
	require.NotNil(t, result)
	assert.Nil(t, result.Snapshot)
	require.Len(t, result.Report.Violations, 1)
	assert.Equal(t, "c-002", result.Report.Violations[0].RecordID)

	// No artifact may exist after a refusal.
	descriptors, listErr := provider.List(ctx, StorageFilter{})
	require.NoError(t, listErr)
	assert.Empty(t, descriptors)
}

func TestEngine_CreateSnapshot_RequiresCreator(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.CreateSnapshot(context.Background(), "", "no identity")
	require.Error(t, err)
	assert.Equal(t, ErrTypeUnauthorized, ErrorType(err))
}

func TestEngine_GetSnapshot_RoundTrip(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.CreateSnapshot(ctx, "operator", "round trip")
	require.NoError(t, err)

	loaded, err := engine.GetSnapshot(ctx, result.Snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Snapshot.ID, loaded.ID)
	assert.Equal(t, result.Snapshot.Fingerprints, loaded.Fingerprints)
	assert.Len(t, loaded.Tables["sales"], 3)
}

func TestEngine_GetSnapshot_DetectsTamperedArtifact(t *testing.T) {
	engine, _, provider := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.CreateSnapshot(ctx, "operator", "tamper test")
	require.NoError(t, err)
	id := result.Snapshot.ID

	// Flip bytes in the stored artifact.
	descriptor, err := provider.GetDescriptor(ctx, id)
	require.NoError(t, err)
	artifactPath := descriptor.StorageLocation + "/" + artifactFileName
	data, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(artifactPath, data, 0o644))

	_, err = engine.GetSnapshot(ctx, id)
	require.Error(t, err)
	assert.Equal(t, ErrTypeArtifactCorrupt, ErrorType(err))
}

func TestEngine_GetSnapshot_RefusesUnknownFormatVersion(t *testing.T) {
	engine, _, provider := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.CreateSnapshot(ctx, "operator", "version test")
	require.NoError(t, err)
	snap := result.Snapshot

	// Re-encode the artifact with a future format version and matching
	// checksum, bypassing the engine.
	snap.FormatVersion = FormatVersion + 7
	require.NoError(t, snap.CalculateChecksum())
	raw, err := snap.ToJSON()
	require.NoError(t, err)
	compressor, err := NewCompressor(CompressionTypeGzip)
	require.NoError(t, err)
	encoded, err := compressor.Compress(raw, 6)
	require.NoError(t, err)

	descriptor, err := provider.GetDescriptor(ctx, snap.ID)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(descriptor.StorageLocation+"/"+artifactFileName, encoded, 0o644))

	_, err = engine.GetSnapshot(ctx, snap.ID)
	require.Error(t, err)
	assert.Equal(t, ErrTypeArtifactCorrupt, ErrorType(err))
	assert.Contains(t, err.Error(), "format version")
}

func TestEngine_ListSnapshots(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.CreateSnapshot(ctx, "operator", "first")
	require.NoError(t, err)
	second, err := engine.CreateSnapshot(ctx, "operator", "second")
	require.NoError(t, err)

	descriptors, err := engine.ListSnapshots(ctx, StorageFilter{})
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	ids := []string{descriptors[0].ID, descriptors[1].ID}
	assert.Contains(t, ids, first.Snapshot.ID)
	assert.Contains(t, ids, second.Snapshot.ID)
	assert.False(t, descriptors[1].CreatedAt.After(descriptors[0].CreatedAt))
}

func TestEngine_DeleteSnapshot(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.CreateSnapshot(ctx, "operator", "delete me")
	require.NoError(t, err)

	require.NoError(t, engine.DeleteSnapshot(ctx, result.Snapshot.ID))
	_, err = engine.GetSnapshot(ctx, result.Snapshot.ID)
	assert.Equal(t, ErrTypeNotFound, ErrorType(err))
}

func TestEngine_ExportSnapshot(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := engine.CreateSnapshot(ctx, "operator", "export")
	require.NoError(t, err)
	id := result.Snapshot.ID

	jsonData, err := engine.ExportSnapshot(ctx, id, ExportFormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), id)

	yamlData, err := engine.ExportSnapshot(ctx, id, ExportFormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(yamlData), "fingerprints:")

	_, err = engine.ExportSnapshot(ctx, id, ExportFormat("xml"))
	require.Error(t, err)
	assert.Equal(t, ErrTypeConfiguration, ErrorType(err))
}

func TestEngine_CreateSnapshot_EncryptedRoundTrip(t *testing.T) {
	t.Setenv("GUARD_TEST_PASSPHRASE", "secret")

	memory := store.NewMemoryStore()
	memory.Seed(cleanTables())
	provider, err := NewLocalStorageProvider(&LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	config := &SystemConfig{
		Compression: CompressionConfig{Algorithm: CompressionTypeZstd, Level: 3},
		Encryption:  EncryptionConfig{Enabled: true, PassphraseEnv: "GUARD_TEST_PASSPHRASE"},
	}
	engine, err := NewEngine(memory, provider, nil, nil, config)
	require.NoError(t, err)

	ctx := context.Background()
	result, err := engine.CreateSnapshot(ctx, "operator", "encrypted")
	require.NoError(t, err)

	descriptor, err := engine.GetDescriptor(ctx, result.Snapshot.ID)
	require.NoError(t, err)
	assert.True(t, descriptor.Encrypted)
	assert.Equal(t, CompressionTypeZstd, descriptor.Compression)

	loaded, err := engine.GetSnapshot(ctx, result.Snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Snapshot.Fingerprints, loaded.Fingerprints)
}
