package snapshot

import (
	"os"
	"time"

	"sales-data-guard/internal/integrity"
	"sales-data-guard/internal/store"
)

// FormatVersion is the artifact format this build writes and the only
// version it agrees to load. A restore must refuse an artifact whose version
// it does not recognize rather than guess at its schema.
const FormatVersion = 1

// Snapshot is an immutable point-in-time capture of every protected table
// plus the verification metadata needed to prove it was not altered. Created
// only by the Engine; never mutated after creation.
type Snapshot struct {
	FormatVersion int                       `json:"format_version"`
	ID            string                    `json:"id"`
	CreatedAt     time.Time                 `json:"created_at"`
	CreatedBy     string                    `json:"created_by"`
	Reason        string                    `json:"reason"`
	Tables        map[string][]store.Record `json:"tables"`
	Fingerprints  map[string]string         `json:"fingerprints"`
	Summary       Summary                   `json:"summary"`
	Checksum      string                    `json:"checksum"`
}

// Descriptor is the lightweight metadata view of a snapshot, stored
// alongside the artifact for listing without loading table data.
type Descriptor struct {
	ID              string            `json:"id"`
	FormatVersion   int               `json:"format_version"`
	CreatedAt       time.Time         `json:"created_at"`
	CreatedBy       string            `json:"created_by"`
	Reason          string            `json:"reason"`
	Summary         Summary           `json:"summary"`
	Fingerprints    map[string]string `json:"fingerprints"`
	Size            int64             `json:"size"`
	EncodedSize     int64             `json:"encoded_size"`
	Compression     CompressionType   `json:"compression"`
	Encrypted       bool              `json:"encrypted"`
	Checksum        string            `json:"checksum"`
	StorageLocation string            `json:"storage_location"`
}

// Summary holds the per-table counts and derived business metrics embedded
// in every snapshot.
type Summary struct {
	RecordCounts map[string]int `json:"record_counts"`
	TotalRecords int            `json:"total_records"`
	TotalBytes   int64          `json:"total_bytes"`
	// CommunicationCount is the number of communication-log records captured.
	CommunicationCount int `json:"communication_count"`
	// DeliverySuccessRate is the fraction of communication-log records whose
	// delivery status field reports success. Zero when there are none.
	DeliverySuccessRate float64 `json:"delivery_success_rate"`
}

// CreateResult pairs a created snapshot with the validation report produced
// while creating it.
type CreateResult struct {
	Snapshot *Snapshot
	Report   integrity.ValidationReport
}

// CompressionType selects the artifact compression algorithm.
type CompressionType string

const (
	CompressionTypeNone CompressionType = "NONE"
	CompressionTypeGzip CompressionType = "GZIP"
	CompressionTypeLZ4  CompressionType = "LZ4"
	CompressionTypeZstd CompressionType = "ZSTD"
)

// StorageProviderType selects the durable artifact store backend.
type StorageProviderType string

const (
	StorageProviderLocal StorageProviderType = "LOCAL"
	StorageProviderS3    StorageProviderType = "S3"
	StorageProviderAzure StorageProviderType = "AZURE"
	StorageProviderGCS   StorageProviderType = "GCS"
)

// StorageConfig defines storage provider configuration
type StorageConfig struct {
	Provider StorageProviderType `yaml:"provider" mapstructure:"provider"`
	Local    *LocalConfig        `yaml:"local,omitempty" mapstructure:"local"`
	S3       *S3Config           `yaml:"s3,omitempty" mapstructure:"s3"`
	Azure    *AzureConfig        `yaml:"azure,omitempty" mapstructure:"azure"`
	GCS      *GCSConfig          `yaml:"gcs,omitempty" mapstructure:"gcs"`
}

// LocalConfig for local file system storage
type LocalConfig struct {
	BasePath    string      `yaml:"base_path" mapstructure:"base_path"`
	Permissions os.FileMode `yaml:"permissions" mapstructure:"permissions"`
}

// S3Config for Amazon S3 storage
type S3Config struct {
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `yaml:"account_name" mapstructure:"account_name"`
	AccountKey    string `yaml:"account_key" mapstructure:"account_key"`
	ContainerName string `yaml:"container_name" mapstructure:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	CredentialsPath string `yaml:"credentials_path" mapstructure:"credentials_path"`
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
}

// StorageFilter narrows listing operations.
type StorageFilter struct {
	Prefix   string
	MaxItems int
}

// EncryptionConfig controls optional artifact encryption. Key management is
// deliberately minimal: the passphrase comes from a file or an environment
// variable, nothing else.
type EncryptionConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	PassphrasePath string `yaml:"passphrase_path" mapstructure:"passphrase_path"`
	PassphraseEnv  string `yaml:"passphrase_env" mapstructure:"passphrase_env"`
}

// CompressionConfig controls artifact compression.
type CompressionConfig struct {
	Algorithm CompressionType `yaml:"algorithm" mapstructure:"algorithm"`
	Level     int             `yaml:"level" mapstructure:"level"`
}

// ScheduleConfig controls the recurring backup cadence.
type ScheduleConfig struct {
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
	RunLogPath string        `yaml:"run_log_path" mapstructure:"run_log_path"`
}

// SystemConfig is the full backup subsystem configuration.
type SystemConfig struct {
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Compression CompressionConfig `yaml:"compression" mapstructure:"compression"`
	Encryption  EncryptionConfig  `yaml:"encryption" mapstructure:"encryption"`
	Schedule    ScheduleConfig    `yaml:"schedule" mapstructure:"schedule"`
}
