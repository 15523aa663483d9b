package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageProvider(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		config   *StorageConfig
		wantErr  bool
		wantType any
	}{
		{
			name: "local storage provider",
			config: &StorageConfig{
				Provider: StorageProviderLocal,
				Local:    &LocalConfig{BasePath: t.TempDir(), Permissions: 0o755},
			},
			wantType: &LocalStorageProvider{},
		},
		{
			name: "S3 storage provider",
			config: &StorageConfig{
				Provider: StorageProviderS3,
				S3: &S3Config{
					Bucket:    "test-bucket",
					Region:    "eu-central-1",
					AccessKey: "test-access-key",
					SecretKey: "test-secret-key",
				},
			},
			wantType: &S3StorageProvider{},
		},
		{
			name: "Azure storage provider",
			config: &StorageConfig{
				Provider: StorageProviderAzure,
				Azure: &AzureConfig{
					AccountName:   "testaccount",
					AccountKey:    "dGVzdC1hY2NvdW50LWtleQ==",
					ContainerName: "test-container",
				},
			},
			wantType: &AzureStorageProvider{},
		},
		{
			name: "missing provider section",
			config: &StorageConfig{
				Provider: StorageProviderS3,
			},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			config:  &StorageConfig{Provider: "TAPE"},
			wantErr: true,
		},
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewStorageProvider(ctx, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, provider)
		})
	}
}
