package snapshot

import (
	"context"
	"fmt"
)

// NewStorageProvider creates the storage provider selected by the
// configuration.
func NewStorageProvider(ctx context.Context, config *StorageConfig) (StorageProvider, error) {
	if config == nil {
		return nil, NewConfigurationError("storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Provider {
	case StorageProviderLocal:
		return NewLocalStorageProvider(config.Local)
	case StorageProviderS3:
		return NewS3StorageProvider(config.S3)
	case StorageProviderGCS:
		return NewGCSStorageProvider(ctx, config.GCS)
	case StorageProviderAzure:
		return NewAzureStorageProvider(config.Azure)
	default:
		return nil, NewConfigurationError(fmt.Sprintf("unsupported storage provider: %s", config.Provider), nil)
	}
}
