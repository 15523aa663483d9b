package snapshot

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"sales-data-guard/internal/integrity"
	"sales-data-guard/internal/logging"
	"sales-data-guard/internal/store"
)

// ExportFormat selects the serialization of an exported snapshot.
type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "json"
	ExportFormatYAML ExportFormat = "yaml"
)

// Engine creates, verifies and manages snapshots of the protected tables.
// Creation refuses dirty data: a snapshot is only written when every record
// passes integrity validation, so every stored artifact is known-good.
type Engine struct {
	tables     store.TableStore
	storage    StorageProvider
	validator  *integrity.Validator
	gate       *store.OperationGate
	compressor Compressor
	cipher     *ArtifactCipher
	config     *SystemConfig
	logger     *logging.Logger
}

// NewEngine creates a snapshot engine from the given collaborators.
func NewEngine(tables store.TableStore, storage StorageProvider, validator *integrity.Validator, gate *store.OperationGate, config *SystemConfig) (*Engine, error) {
	if tables == nil {
		return nil, NewConfigurationError("table store is required", nil)
	}
	if storage == nil {
		return nil, NewConfigurationError("storage provider is required", nil)
	}
	if config == nil {
		config = &SystemConfig{}
	}
	config.SetDefaults()

	if validator == nil {
		validator = integrity.NewValidator()
	}
	if gate == nil {
		gate = store.NewOperationGate()
	}

	compressor, err := NewCompressor(config.Compression.Algorithm)
	if err != nil {
		return nil, err
	}

	return &Engine{
		tables:     tables,
		storage:    storage,
		validator:  validator,
		gate:       gate,
		compressor: compressor,
		cipher:     NewArtifactCipher(&config.Encryption),
		config:     config,
		logger:     logging.NewDefaultLogger(),
	}, nil
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(logger *logging.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Gate exposes the operation gate so a restore orchestrator can share it.
func (e *Engine) Gate() *store.OperationGate {
	return e.gate
}

// Storage exposes the configured storage provider.
func (e *Engine) Storage() StorageProvider {
	return e.storage
}

// CreateSnapshot captures all protected tables into a new snapshot artifact.
// The returned CreateResult always carries the validation report; when
// validation finds violations no artifact is written and the error wraps the
// report so callers can show the operator exactly which records are dirty.
func (e *Engine) CreateSnapshot(ctx context.Context, createdBy, reason string) (*CreateResult, error) {
	if createdBy == "" {
		return nil, NewUnauthorizedError("snapshot creator identity is required", nil)
	}

	if err := e.gate.BeginBackup(); err != nil {
		return nil, NewConflictError("cannot start snapshot", err)
	}
	defer e.gate.EndBackup()

	return e.capture(ctx, createdBy, reason, true)
}

// CreateSafetySnapshot captures the live tables without acquiring the
// operation gate and without refusing dirty data. It exists solely for the
// restore orchestrator, which already holds the gate and needs a reversion
// point reflecting the store as it is, clean or not.
func (e *Engine) CreateSafetySnapshot(ctx context.Context, createdBy, reason string) (*CreateResult, error) {
	if createdBy == "" {
		return nil, NewUnauthorizedError("snapshot creator identity is required", nil)
	}
	return e.capture(ctx, createdBy, reason, false)
}

func (e *Engine) capture(ctx context.Context, createdBy, reason string, refuseDirty bool) (*CreateResult, error) {
	tables, err := e.tables.ReadAll(ctx)
	if err != nil {
		return nil, NewDatabaseError("failed to read protected tables", err)
	}

	report := e.validator.Validate(tables)
	result := &CreateResult{Report: report}
	if refuseDirty && !report.IsClean {
		return result, NewValidationFailedError(
			fmt.Sprintf("refusing to snapshot dirty data: %d integrity violations", len(report.Violations)), nil)
	}

	fingerprints, err := integrity.FingerprintTables(tables)
	if err != nil {
		return result, NewStorageError("failed to fingerprint tables", err)
	}

	snap := &Snapshot{
		FormatVersion: FormatVersion,
		ID:            GenerateSnapshotID(),
		CreatedAt:     time.Now().UTC(),
		CreatedBy:     createdBy,
		Reason:        reason,
		Tables:        tables,
		Fingerprints:  fingerprints,
		Summary:       buildSummary(tables),
	}
	if err := snap.CalculateChecksum(); err != nil {
		return result, err
	}
	if err := snap.Validate(); err != nil {
		return result, NewStorageError("snapshot failed self-validation", err)
	}

	descriptor, artifact, err := e.encode(snap)
	if err != nil {
		return result, err
	}

	if err := e.storage.Store(ctx, descriptor, artifact); err != nil {
		return result, err
	}

	e.logger.LogSnapshotCreated(snap.ID, snap.Summary.TotalRecords, descriptor.EncodedSize, string(descriptor.Compression))
	result.Snapshot = snap
	return result, nil
}

// GetSnapshot loads a snapshot and proves its integrity: artifact format
// version, whole-artifact checksum and every per-table fingerprint must all
// check out or the load fails.
func (e *Engine) GetSnapshot(ctx context.Context, snapshotID string) (*Snapshot, error) {
	if snapshotID == "" {
		return nil, NewNotFoundError("snapshot ID cannot be empty", nil)
	}

	descriptor, artifact, err := e.storage.Retrieve(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return e.decode(descriptor, artifact)
}

// ListSnapshots returns descriptors of stored snapshots, newest first.
func (e *Engine) ListSnapshots(ctx context.Context, filter StorageFilter) ([]*Descriptor, error) {
	return e.storage.List(ctx, filter)
}

// GetDescriptor returns the metadata of one snapshot without loading data.
func (e *Engine) GetDescriptor(ctx context.Context, snapshotID string) (*Descriptor, error) {
	return e.storage.GetDescriptor(ctx, snapshotID)
}

// DeleteSnapshot removes a snapshot artifact from storage.
func (e *Engine) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	return e.storage.Delete(ctx, snapshotID)
}

// ExportSnapshot loads and verifies a snapshot, then renders it in the
// requested format for offline inspection.
func (e *Engine) ExportSnapshot(ctx context.Context, snapshotID string, format ExportFormat) ([]byte, error) {
	snap, err := e.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	switch format {
	case ExportFormatJSON, "":
		return snap.ToJSON()
	case ExportFormatYAML:
		data, err := yaml.Marshal(snap)
		if err != nil {
			return nil, NewStorageError("failed to render snapshot as YAML", err)
		}
		return data, nil
	default:
		return nil, NewConfigurationError(fmt.Sprintf("unsupported export format: %s", format), nil)
	}
}

// encode turns a snapshot into its stored artifact: JSON, then compression,
// then optional encryption, with the descriptor recording each step.
func (e *Engine) encode(snap *Snapshot) (*Descriptor, []byte, error) {
	raw, err := snap.ToJSON()
	if err != nil {
		return nil, nil, NewStorageError("failed to serialize snapshot", err)
	}

	compressed, err := e.compressor.Compress(raw, e.config.Compression.Level)
	if err != nil {
		return nil, nil, err
	}

	artifact, err := e.cipher.Encrypt(compressed)
	if err != nil {
		return nil, nil, err
	}

	descriptor := snap.Descriptor()
	descriptor.Size = int64(len(raw))
	descriptor.EncodedSize = int64(len(artifact))
	descriptor.Compression = e.compressor.Algorithm()
	descriptor.Encrypted = e.cipher.Enabled()
	return descriptor, artifact, nil
}

// decode reverses encode and verifies the result against the descriptor.
func (e *Engine) decode(descriptor *Descriptor, artifact []byte) (*Snapshot, error) {
	data := artifact
	if descriptor.Encrypted {
		decrypted, err := e.cipher.Decrypt(data)
		if err != nil {
			return nil, err
		}
		data = decrypted
	}

	compressor, err := NewCompressor(descriptor.Compression)
	if err != nil {
		return nil, err
	}
	raw, err := compressor.Decompress(data)
	if err != nil {
		return nil, NewArtifactCorruptError("failed to decompress snapshot artifact", err)
	}

	var snap Snapshot
	if err := snap.FromJSON(raw); err != nil {
		return nil, err
	}

	if snap.FormatVersion != FormatVersion {
		return nil, NewArtifactCorruptError(
			fmt.Sprintf("unsupported artifact format version %d (expected %d)", snap.FormatVersion, FormatVersion), nil)
	}
	if !snap.VerifyChecksum() {
		return nil, NewArtifactCorruptError("snapshot checksum verification failed", nil)
	}
	if snap.ID != descriptor.ID {
		return nil, NewArtifactCorruptError(
			fmt.Sprintf("artifact holds snapshot %s but descriptor names %s", snap.ID, descriptor.ID), nil)
	}

	// Recompute every table fingerprint from the loaded data. A mismatch
	// means the artifact was altered after it was written.
	recomputed, err := integrity.FingerprintTables(snap.Tables)
	if err != nil {
		return nil, NewArtifactCorruptError("failed to recompute table fingerprints", err)
	}
	for table, expected := range snap.Fingerprints {
		if recomputed[table] != expected {
			return nil, NewArtifactCorruptError(
				fmt.Sprintf("fingerprint mismatch for table %s", table), nil)
		}
	}

	return &snap, nil
}

// buildSummary derives the per-table counts and communication metrics.
func buildSummary(tables map[string][]store.Record) Summary {
	summary := Summary{RecordCounts: make(map[string]int)}

	for table, records := range tables {
		summary.RecordCounts[table] = len(records)
		summary.TotalRecords += len(records)
		for _, record := range records {
			if data, err := record.CanonicalJSON(nil); err == nil {
				summary.TotalBytes += int64(len(data))
			}
		}
	}

	logs := tables["communication_logs"]
	summary.CommunicationCount = len(logs)
	if len(logs) > 0 {
		delivered := 0
		for _, record := range logs {
			if status, ok := record.Fields["delivery_status"].(string); ok && status == "delivered" {
				delivered++
			}
		}
		summary.DeliverySuccessRate = float64(delivered) / float64(len(logs))
	}
	return summary
}
