package snapshot

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	artifactFileName   = "snapshot.bin"
	descriptorFileName = "descriptor.json"
)

// LocalStorageProvider implements StorageProvider on the local file system.
// Each snapshot lives in its own directory holding the encoded artifact and
// a descriptor side file for cheap listing.
type LocalStorageProvider struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalStorageProvider creates a new LocalStorageProvider instance.
func NewLocalStorageProvider(config *LocalConfig) (*LocalStorageProvider, error) {
	if config == nil {
		return nil, NewConfigurationError("local storage configuration is required", nil)
	}
	if config.BasePath == "" {
		return nil, NewConfigurationError("local storage base path is required", nil)
	}

	permissions := config.Permissions
	if permissions == 0 {
		permissions = 0o755
	}

	if err := os.MkdirAll(config.BasePath, permissions); err != nil {
		return nil, NewStorageError("failed to create snapshot base directory", err)
	}

	return &LocalStorageProvider{
		basePath:    config.BasePath,
		permissions: permissions,
	}, nil
}

// Store writes the artifact and its descriptor. On any write error the
// partially written snapshot directory is removed so no half-written
// artifact can masquerade as a successful snapshot.
func (lsp *LocalStorageProvider) Store(ctx context.Context, descriptor *Descriptor, artifact []byte) error {
	if descriptor == nil {
		return NewStorageError("snapshot descriptor cannot be nil", nil)
	}
	if err := descriptor.Validate(); err != nil {
		return NewStorageError("invalid snapshot descriptor", err)
	}

	dir := lsp.snapshotDirectory(descriptor.ID)
	if _, err := os.Stat(dir); err == nil {
		return NewConflictError(fmt.Sprintf("snapshot %s already exists", descriptor.ID), nil)
	}
	if err := os.MkdirAll(dir, lsp.permissions); err != nil {
		return NewStorageError("failed to create snapshot directory", err)
	}

	descriptor.StorageLocation = dir

	if err := lsp.writeAll(dir, descriptor, artifact); err != nil {
		// Discard the partial write before surfacing the failure.
		os.RemoveAll(dir)
		return err
	}
	return nil
}

func (lsp *LocalStorageProvider) writeAll(dir string, descriptor *Descriptor, artifact []byte) error {
	if err := os.WriteFile(filepath.Join(dir, artifactFileName), artifact, 0o644); err != nil {
		return NewStorageError("failed to write snapshot artifact", err)
	}

	descriptorData, err := descriptor.ToJSON()
	if err != nil {
		return NewStorageError("failed to serialize snapshot descriptor", err)
	}
	if err := os.WriteFile(filepath.Join(dir, descriptorFileName), descriptorData, 0o644); err != nil {
		return NewStorageError("failed to write snapshot descriptor", err)
	}
	return nil
}

// Retrieve loads the descriptor and encoded artifact for a snapshot.
func (lsp *LocalStorageProvider) Retrieve(ctx context.Context, snapshotID string) (*Descriptor, []byte, error) {
	descriptor, err := lsp.GetDescriptor(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	artifact, err := os.ReadFile(filepath.Join(lsp.snapshotDirectory(snapshotID), artifactFileName))
	if err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to read artifact of snapshot %s", snapshotID), err)
	}
	return descriptor, artifact, nil
}

// Delete removes a snapshot directory.
func (lsp *LocalStorageProvider) Delete(ctx context.Context, snapshotID string) error {
	dir := lsp.snapshotDirectory(snapshotID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return NewStorageError("failed to delete snapshot directory", err)
	}
	return nil
}

// List returns descriptors of stored snapshots, newest first.
func (lsp *LocalStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*Descriptor, error) {
	var descriptors []*Descriptor

	err := filepath.WalkDir(lsp.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == lsp.basePath {
			return nil
		}

		descriptorPath := filepath.Join(path, descriptorFileName)
		if _, statErr := os.Stat(descriptorPath); os.IsNotExist(statErr) {
			return nil
		}

		descriptor, loadErr := lsp.loadDescriptor(descriptorPath)
		if loadErr != nil {
			// Skip unreadable entries; listing should not fail wholesale
			// because one directory is damaged.
			return filepath.SkipDir
		}

		if filter.Prefix == "" || strings.HasPrefix(descriptor.ID, filter.Prefix) {
			descriptors = append(descriptors, descriptor)
		}
		return filepath.SkipDir
	})
	if err != nil {
		return nil, NewStorageError("failed to list snapshots", err)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].CreatedAt.After(descriptors[j].CreatedAt)
	})
	if filter.MaxItems > 0 && len(descriptors) > filter.MaxItems {
		descriptors = descriptors[:filter.MaxItems]
	}
	return descriptors, nil
}

// GetDescriptor loads the descriptor of a single snapshot.
func (lsp *LocalStorageProvider) GetDescriptor(ctx context.Context, snapshotID string) (*Descriptor, error) {
	descriptorPath := filepath.Join(lsp.snapshotDirectory(snapshotID), descriptorFileName)
	if _, err := os.Stat(descriptorPath); os.IsNotExist(err) {
		return nil, NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), err)
	}
	return lsp.loadDescriptor(descriptorPath)
}

func (lsp *LocalStorageProvider) loadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewStorageError("failed to read snapshot descriptor", err)
	}

	var descriptor Descriptor
	if err := descriptor.FromJSON(data); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

func (lsp *LocalStorageProvider) snapshotDirectory(snapshotID string) string {
	// Sanitize to prevent directory traversal through a crafted ID.
	sanitized := strings.ReplaceAll(snapshotID, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	return filepath.Join(lsp.basePath, sanitized)
}
