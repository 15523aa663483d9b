package snapshot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-data-guard/internal/store"
)

func validSnapshot() *Snapshot {
	return &Snapshot{
		FormatVersion: FormatVersion,
		ID:            GenerateSnapshotID(),
		CreatedAt:     time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		CreatedBy:     "operator",
		Reason:        "unit test",
		Tables: map[string][]store.Record{
			"customers": {{ID: "c-1", Fields: map[string]any{"id": "c-1", "email": "anna@acme-shop.de"}}},
		},
		Fingerprints: map[string]string{"customers": "abc123"},
		Summary:      Summary{RecordCounts: map[string]int{"customers": 1}, TotalRecords: 1},
	}
}

func TestGenerateSnapshotID(t *testing.T) {
	first := GenerateSnapshotID()
	second := GenerateSnapshotID()

	assert.True(t, strings.HasPrefix(first, "snap-"))
	assert.NotEqual(t, first, second)

	parts := strings.Split(first, "-")
	require.Len(t, parts, 4)
	assert.Len(t, parts[3], 8)
}

func TestSnapshot_ChecksumRoundTrip(t *testing.T) {
	snap := validSnapshot()
	require.NoError(t, snap.CalculateChecksum())
	assert.NotEmpty(t, snap.Checksum)
	assert.True(t, snap.VerifyChecksum())

	// Any content change invalidates the stored checksum.
	snap.Tables["customers"][0].Fields["email"] = "bob@acme-shop.de"
	assert.False(t, snap.VerifyChecksum())
}

func TestSnapshot_VerifyChecksumPreservesField(t *testing.T) {
	snap := validSnapshot()
	require.NoError(t, snap.CalculateChecksum())
	stored := snap.Checksum

	snap.VerifyChecksum()
	assert.Equal(t, stored, snap.Checksum)
}

func TestSnapshot_Validate(t *testing.T) {
	snap := validSnapshot()
	require.NoError(t, snap.CalculateChecksum())
	assert.NoError(t, snap.Validate())

	missing := validSnapshot()
	missing.Fingerprints = map[string]string{}
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint")
}

func TestSnapshot_FromJSON_RejectsIncomplete(t *testing.T) {
	var snap Snapshot
	err := snap.FromJSON([]byte(`{"id":"snap-x"}`))
	assert.Error(t, err)
}

func TestSnapshot_Descriptor(t *testing.T) {
	snap := validSnapshot()
	require.NoError(t, snap.CalculateChecksum())

	descriptor := snap.Descriptor()
	assert.Equal(t, snap.ID, descriptor.ID)
	assert.Equal(t, snap.FormatVersion, descriptor.FormatVersion)
	assert.Equal(t, snap.Checksum, descriptor.Checksum)
	assert.Equal(t, snap.Fingerprints, descriptor.Fingerprints)
	assert.Equal(t, snap.Summary, descriptor.Summary)
}

func TestSystemConfig_SetDefaults(t *testing.T) {
	config := &SystemConfig{}
	config.SetDefaults()

	assert.Equal(t, StorageProviderLocal, config.Storage.Provider)
	require.NotNil(t, config.Storage.Local)
	assert.NotEmpty(t, config.Storage.Local.BasePath)
	assert.Equal(t, CompressionTypeGzip, config.Compression.Algorithm)
	assert.Equal(t, 6, config.Compression.Level)
	assert.Equal(t, 24*time.Hour, config.Schedule.Interval)
	assert.NoError(t, config.Validate())
}

func TestSystemConfig_Validate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SystemConfig)
		want   string
	}{
		{
			"short interval",
			func(c *SystemConfig) { c.Schedule.Interval = 5 * time.Second },
			"interval",
		},
		{
			"bad compression",
			func(c *SystemConfig) { c.Compression.Algorithm = "SNAPPY" },
			"compression",
		},
		{
			"encryption without passphrase",
			func(c *SystemConfig) { c.Encryption.Enabled = true },
			"passphrase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &SystemConfig{}
			config.SetDefaults()
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), tt.want)
		})
	}
}

func TestStorageConfig_Validate(t *testing.T) {
	valid := StorageConfig{
		Provider: StorageProviderS3,
		S3:       &S3Config{Bucket: "b", Region: "eu-central-1"},
	}
	assert.NoError(t, valid.Validate())

	missingRegion := StorageConfig{Provider: StorageProviderS3, S3: &S3Config{Bucket: "b"}}
	assert.Error(t, missingRegion.Validate())

	unknown := StorageConfig{Provider: "TAPE"}
	assert.Error(t, unknown.Validate())
}
