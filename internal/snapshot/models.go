package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateSnapshotID generates a unique, time-sortable snapshot ID.
func GenerateSnapshotID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	shortUUID := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("snap-%s-%s", timestamp, shortUUID)
}

// Validate validates the Snapshot struct
func (s *Snapshot) Validate() error {
	var errs ValidationErrors

	if s.FormatVersion == 0 {
		errs.Add("format_version", "artifact format version is required", s.FormatVersion)
	}
	if s.ID == "" {
		errs.Add("id", "snapshot ID is required", s.ID)
	}
	if s.CreatedAt.IsZero() {
		errs.Add("created_at", "creation timestamp is required", s.CreatedAt)
	}
	if s.CreatedBy == "" {
		errs.Add("created_by", "creator identity is required", s.CreatedBy)
	}
	if s.Tables == nil {
		errs.Add("tables", "table data is required", nil)
	}
	if len(s.Fingerprints) == 0 {
		errs.Add("fingerprints", "per-table fingerprints are required", nil)
	}
	for table := range s.Tables {
		if _, ok := s.Fingerprints[table]; !ok {
			errs.Add("fingerprints", fmt.Sprintf("missing fingerprint for table %s", table), table)
		}
	}
	if s.Checksum == "" {
		errs.Add("checksum", "artifact checksum is required", s.Checksum)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ToJSON serializes the Snapshot to JSON
func (s *Snapshot) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON deserializes JSON data into a Snapshot
func (s *Snapshot) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, s); err != nil {
		return NewArtifactCorruptError("failed to unmarshal snapshot JSON", err)
	}
	return s.Validate()
}

// CalculateChecksum calculates and sets the whole-artifact checksum. The
// checksum field itself is zeroed for the calculation.
func (s *Snapshot) CalculateChecksum() error {
	temp := *s
	temp.Checksum = ""

	data, err := json.Marshal(temp)
	if err != nil {
		return NewStorageError("failed to marshal snapshot for checksum calculation", err)
	}

	sum := sha256.Sum256(data)
	s.Checksum = hex.EncodeToString(sum[:])
	return nil
}

// VerifyChecksum verifies the snapshot's stored checksum against its content.
func (s *Snapshot) VerifyChecksum() bool {
	original := s.Checksum
	if err := s.CalculateChecksum(); err != nil {
		return false
	}
	calculated := s.Checksum
	s.Checksum = original
	return original == calculated
}

// Descriptor builds the metadata view of the snapshot.
func (s *Snapshot) Descriptor() *Descriptor {
	return &Descriptor{
		ID:            s.ID,
		FormatVersion: s.FormatVersion,
		CreatedAt:     s.CreatedAt,
		CreatedBy:     s.CreatedBy,
		Reason:        s.Reason,
		Summary:       s.Summary,
		Fingerprints:  s.Fingerprints,
		Checksum:      s.Checksum,
	}
}

// Validate validates the Descriptor struct
func (d *Descriptor) Validate() error {
	var errs ValidationErrors

	if d.ID == "" {
		errs.Add("id", "snapshot ID is required", d.ID)
	}
	if d.FormatVersion == 0 {
		errs.Add("format_version", "artifact format version is required", d.FormatVersion)
	}
	if d.CreatedAt.IsZero() {
		errs.Add("created_at", "creation timestamp is required", d.CreatedAt)
	}
	if d.CreatedBy == "" {
		errs.Add("created_by", "creator identity is required", d.CreatedBy)
	}
	if d.Checksum == "" {
		errs.Add("checksum", "artifact checksum is required", d.Checksum)
	}
	if d.Size < 0 {
		errs.Add("size", "artifact size cannot be negative", d.Size)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ToJSON serializes the Descriptor to JSON
func (d *Descriptor) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// FromJSON deserializes JSON data into a Descriptor
func (d *Descriptor) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, d); err != nil {
		return NewStorageError("failed to unmarshal snapshot descriptor JSON", err)
	}
	return d.Validate()
}

// SetDefaults fills unset SystemConfig fields with conservative defaults.
func (sc *SystemConfig) SetDefaults() {
	if sc.Storage.Provider == "" {
		sc.Storage.Provider = StorageProviderLocal
	}
	if sc.Storage.Provider == StorageProviderLocal && sc.Storage.Local == nil {
		sc.Storage.Local = &LocalConfig{
			BasePath:    filepath.Join(os.TempDir(), "sales-data-guard-snapshots"),
			Permissions: 0o755,
		}
	}
	if sc.Compression.Algorithm == "" {
		sc.Compression.Algorithm = CompressionTypeGzip
	}
	if sc.Compression.Level == 0 {
		sc.Compression.Level = 6
	}
	if sc.Schedule.Interval == 0 {
		sc.Schedule.Interval = 24 * time.Hour
	}
	if sc.Schedule.RunLogPath == "" {
		sc.Schedule.RunLogPath = filepath.Join(os.TempDir(), "sales-data-guard-runs.jsonl")
	}
}

// Validate validates the SystemConfig struct
func (sc *SystemConfig) Validate() error {
	if err := sc.Storage.Validate(); err != nil {
		return err
	}
	if !isValidCompressionType(sc.Compression.Algorithm) {
		return NewConfigurationError(fmt.Sprintf("invalid compression algorithm: %s", sc.Compression.Algorithm), nil)
	}
	if sc.Encryption.Enabled && sc.Encryption.PassphrasePath == "" && sc.Encryption.PassphraseEnv == "" {
		return NewConfigurationError("encryption enabled but no passphrase source configured", nil)
	}
	if sc.Schedule.Interval < time.Minute {
		return NewConfigurationError("schedule interval must be at least one minute", nil)
	}
	return nil
}

// Validate validates the StorageConfig struct
func (sc *StorageConfig) Validate() error {
	var errs ValidationErrors

	switch sc.Provider {
	case StorageProviderLocal:
		if sc.Local == nil {
			errs.Add("local", "local storage configuration is required", nil)
		} else if sc.Local.BasePath == "" {
			errs.Add("local.base_path", "base path is required for local storage", sc.Local.BasePath)
		}
	case StorageProviderS3:
		if sc.S3 == nil {
			errs.Add("s3", "S3 storage configuration is required", nil)
		} else {
			if sc.S3.Bucket == "" {
				errs.Add("s3.bucket", "S3 bucket name is required", sc.S3.Bucket)
			}
			if sc.S3.Region == "" {
				errs.Add("s3.region", "S3 region is required", sc.S3.Region)
			}
		}
	case StorageProviderAzure:
		if sc.Azure == nil {
			errs.Add("azure", "Azure storage configuration is required", nil)
		} else {
			if sc.Azure.AccountName == "" {
				errs.Add("azure.account_name", "Azure account name is required", sc.Azure.AccountName)
			}
			if sc.Azure.AccountKey == "" {
				errs.Add("azure.account_key", "Azure account key is required", nil)
			}
			if sc.Azure.ContainerName == "" {
				errs.Add("azure.container_name", "Azure container name is required", sc.Azure.ContainerName)
			}
		}
	case StorageProviderGCS:
		if sc.GCS == nil {
			errs.Add("gcs", "GCS storage configuration is required", nil)
		} else {
			if sc.GCS.Bucket == "" {
				errs.Add("gcs.bucket", "GCS bucket name is required", sc.GCS.Bucket)
			}
			if sc.GCS.CredentialsPath == "" {
				errs.Add("gcs.credentials_path", "GCS credentials path is required", sc.GCS.CredentialsPath)
			}
		}
	default:
		errs.Add("provider", "invalid storage provider type", sc.Provider)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func isValidCompressionType(ct CompressionType) bool {
	switch ct {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd:
		return true
	default:
		return false
	}
}
