package snapshot

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStorageProvider implements StorageProvider on Google Cloud Storage.
type GCSStorageProvider struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStorageProvider creates a new GCSStorageProvider instance.
func NewGCSStorageProvider(ctx context.Context, config *GCSConfig) (*GCSStorageProvider, error) {
	if config == nil {
		return nil, NewConfigurationError("GCS storage configuration is required", nil)
	}
	if config.Bucket == "" {
		return nil, NewConfigurationError("GCS bucket is required", nil)
	}

	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}

	return &GCSStorageProvider{
		client: client,
		bucket: config.Bucket,
		prefix: "snapshots/",
	}, nil
}

// Store uploads the artifact and descriptor. If either upload fails the
// objects written so far are deleted again so no partial snapshot survives.
func (gsp *GCSStorageProvider) Store(ctx context.Context, descriptor *Descriptor, artifact []byte) error {
	if descriptor == nil {
		return NewStorageError("snapshot descriptor cannot be nil", nil)
	}
	if err := descriptor.Validate(); err != nil {
		return NewStorageError("invalid snapshot descriptor", err)
	}

	if _, err := gsp.GetDescriptor(ctx, descriptor.ID); err == nil {
		return NewConflictError(fmt.Sprintf("snapshot %s already exists", descriptor.ID), nil)
	}

	objectName := gsp.objectName(descriptor.ID)
	descriptor.StorageLocation = fmt.Sprintf("gs://%s/%s", gsp.bucket, objectName)

	bucket := gsp.client.Bucket(gsp.bucket)

	artifactWriter := bucket.Object(objectName + "/" + artifactFileName).NewWriter(ctx)
	artifactWriter.ContentType = "application/octet-stream"
	artifactWriter.Metadata = map[string]string{
		"snapshot-id": descriptor.ID,
		"created-by":  descriptor.CreatedBy,
		"checksum":    descriptor.Checksum,
	}
	if _, err := artifactWriter.Write(artifact); err != nil {
		artifactWriter.Close()
		return NewStorageError("failed to upload snapshot artifact to GCS", err)
	}
	if err := artifactWriter.Close(); err != nil {
		return NewStorageError("failed to upload snapshot artifact to GCS", err)
	}

	descriptorData, err := descriptor.ToJSON()
	if err != nil {
		gsp.deleteObjects(ctx, objectName)
		return NewStorageError("failed to serialize snapshot descriptor", err)
	}

	descriptorWriter := bucket.Object(objectName + "/" + descriptorFileName).NewWriter(ctx)
	descriptorWriter.ContentType = "application/json"
	if _, err := descriptorWriter.Write(descriptorData); err != nil {
		descriptorWriter.Close()
		gsp.deleteObjects(ctx, objectName)
		return NewStorageError("failed to upload snapshot descriptor to GCS", err)
	}
	if err := descriptorWriter.Close(); err != nil {
		gsp.deleteObjects(ctx, objectName)
		return NewStorageError("failed to upload snapshot descriptor to GCS", err)
	}

	return nil
}

// Retrieve downloads the descriptor and artifact of a snapshot.
func (gsp *GCSStorageProvider) Retrieve(ctx context.Context, snapshotID string) (*Descriptor, []byte, error) {
	descriptor, err := gsp.GetDescriptor(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	reader, err := gsp.client.Bucket(gsp.bucket).Object(gsp.objectName(snapshotID) + "/" + artifactFileName).NewReader(ctx)
	if err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to download artifact of snapshot %s", snapshotID), err)
	}
	defer reader.Close()

	artifact, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, NewStorageError("failed to read snapshot artifact", err)
	}
	return descriptor, artifact, nil
}

// Delete removes every object belonging to a snapshot.
func (gsp *GCSStorageProvider) Delete(ctx context.Context, snapshotID string) error {
	if _, err := gsp.GetDescriptor(ctx, snapshotID); err != nil {
		return err
	}
	return gsp.deleteObjects(ctx, gsp.objectName(snapshotID))
}

// List returns descriptors of stored snapshots, newest first.
func (gsp *GCSStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*Descriptor, error) {
	prefix := gsp.prefix
	if filter.Prefix != "" {
		prefix += filter.Prefix
	}

	var descriptors []*Descriptor
	it := gsp.client.Bucket(gsp.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewStorageError("failed to list snapshots from GCS", err)
		}
		if !strings.HasSuffix(attrs.Name, "/"+descriptorFileName) {
			continue
		}

		descriptor, loadErr := gsp.loadDescriptor(ctx, attrs.Name)
		if loadErr != nil {
			continue
		}
		descriptors = append(descriptors, descriptor)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].CreatedAt.After(descriptors[j].CreatedAt)
	})
	if filter.MaxItems > 0 && len(descriptors) > filter.MaxItems {
		descriptors = descriptors[:filter.MaxItems]
	}
	return descriptors, nil
}

// GetDescriptor downloads the descriptor of a single snapshot.
func (gsp *GCSStorageProvider) GetDescriptor(ctx context.Context, snapshotID string) (*Descriptor, error) {
	descriptor, err := gsp.loadDescriptor(ctx, gsp.objectName(snapshotID)+"/"+descriptorFileName)
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), err)
	}
	return descriptor, nil
}

// Close releases the underlying GCS client.
func (gsp *GCSStorageProvider) Close() error {
	return gsp.client.Close()
}

func (gsp *GCSStorageProvider) loadDescriptor(ctx context.Context, objectName string) (*Descriptor, error) {
	reader, err := gsp.client.Bucket(gsp.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var descriptor Descriptor
	if err := descriptor.FromJSON(data); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

func (gsp *GCSStorageProvider) deleteObjects(ctx context.Context, objectName string) error {
	bucket := gsp.client.Bucket(gsp.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: objectName + "/"})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return NewStorageError("failed to list snapshot objects for deletion", err)
		}
		if err := bucket.Object(attrs.Name).Delete(ctx); err != nil {
			return NewStorageError(fmt.Sprintf("failed to delete object %s", attrs.Name), err)
		}
	}
	return nil
}

func (gsp *GCSStorageProvider) objectName(snapshotID string) string {
	return gsp.prefix + snapshotID
}
