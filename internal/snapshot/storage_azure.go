package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureStorageProvider implements StorageProvider on Azure Blob Storage.
type AzureStorageProvider struct {
	serviceURL    azblob.ServiceURL
	containerName string
	prefix        string
}

// NewAzureStorageProvider creates a new AzureStorageProvider instance.
func NewAzureStorageProvider(config *AzureConfig) (*AzureStorageProvider, error) {
	if config == nil {
		return nil, NewConfigurationError("Azure storage configuration is required", nil)
	}
	if config.AccountName == "" || config.AccountKey == "" || config.ContainerName == "" {
		return nil, NewConfigurationError("Azure account name, account key and container are required", nil)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureStorageProvider{
		serviceURL:    azblob.NewServiceURL(*serviceURL, pipeline),
		containerName: config.ContainerName,
		prefix:        "snapshots/",
	}, nil
}

// Store uploads the artifact and descriptor. If the descriptor upload fails
// the blobs written so far are deleted again so no partial snapshot survives.
func (azp *AzureStorageProvider) Store(ctx context.Context, descriptor *Descriptor, artifact []byte) error {
	if descriptor == nil {
		return NewStorageError("snapshot descriptor cannot be nil", nil)
	}
	if err := descriptor.Validate(); err != nil {
		return NewStorageError("invalid snapshot descriptor", err)
	}

	if _, err := azp.GetDescriptor(ctx, descriptor.ID); err == nil {
		return NewConflictError(fmt.Sprintf("snapshot %s already exists", descriptor.ID), nil)
	}

	blobName := azp.blobName(descriptor.ID)
	descriptor.StorageLocation = fmt.Sprintf("azure://%s/%s", azp.containerName, blobName)

	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	artifactBlobURL := containerURL.NewBlockBlobURL(blobName + "/" + artifactFileName)
	_, err := azblob.UploadBufferToBlockBlob(ctx, artifact, artifactBlobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		Metadata: azblob.Metadata{
			"snapshot_id": descriptor.ID,
			"created_by":  descriptor.CreatedBy,
			"checksum":    descriptor.Checksum,
		},
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/octet-stream",
		},
	})
	if err != nil {
		return NewStorageError("failed to upload snapshot artifact to Azure", err)
	}

	descriptorData, err := descriptor.ToJSON()
	if err != nil {
		azp.deleteBlobs(ctx, blobName)
		return NewStorageError("failed to serialize snapshot descriptor", err)
	}

	descriptorBlobURL := containerURL.NewBlockBlobURL(blobName + "/" + descriptorFileName)
	_, err = azblob.UploadBufferToBlockBlob(ctx, descriptorData, descriptorBlobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/json",
		},
	})
	if err != nil {
		azp.deleteBlobs(ctx, blobName)
		return NewStorageError("failed to upload snapshot descriptor to Azure", err)
	}

	return nil
}

// Retrieve downloads the descriptor and artifact of a snapshot.
func (azp *AzureStorageProvider) Retrieve(ctx context.Context, snapshotID string) (*Descriptor, []byte, error) {
	descriptor, err := azp.GetDescriptor(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	artifact, err := azp.downloadBlob(ctx, azp.blobName(snapshotID)+"/"+artifactFileName)
	if err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to download artifact of snapshot %s", snapshotID), err)
	}
	return descriptor, artifact, nil
}

// Delete removes every blob belonging to a snapshot.
func (azp *AzureStorageProvider) Delete(ctx context.Context, snapshotID string) error {
	if _, err := azp.GetDescriptor(ctx, snapshotID); err != nil {
		return err
	}
	return azp.deleteBlobs(ctx, azp.blobName(snapshotID))
}

// List returns descriptors of stored snapshots, newest first.
func (azp *AzureStorageProvider) List(ctx context.Context, filter StorageFilter) ([]*Descriptor, error) {
	prefix := azp.prefix
	if filter.Prefix != "" {
		prefix += filter.Prefix
	}

	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	var descriptors []*Descriptor
	for marker := (azblob.Marker{}); marker.NotDone(); {
		listResponse, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: prefix,
		})
		if err != nil {
			return nil, NewStorageError("failed to list snapshots from Azure", err)
		}

		for _, blob := range listResponse.Segment.BlobItems {
			if !strings.HasSuffix(blob.Name, "/"+descriptorFileName) {
				continue
			}
			data, loadErr := azp.downloadBlob(ctx, blob.Name)
			if loadErr != nil {
				continue
			}
			var descriptor Descriptor
			if loadErr := descriptor.FromJSON(data); loadErr != nil {
				continue
			}
			descriptors = append(descriptors, &descriptor)
		}

		marker = listResponse.NextMarker
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
func (azp *AzureStorageProvider) GetDescriptor(ctx context.Context, snapshotID string) (*Descriptor, error) {
	data, err := azp.downloadBlob(ctx, azp.blobName(snapshotID)+"/"+descriptorFileName)
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), err)
	}

	var descriptor Descriptor
	if err := descriptor.FromJSON(data); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

func (azp *AzureStorageProvider) downloadBlob(ctx context.Context, blobName string) ([]byte, error) {
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)
	blobURL := containerURL.NewBlockBlobURL(blobName)

	downloadResponse, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, err
	}

	bodyStream := downloadResponse.Body(azblob.RetryReaderOptions{MaxRetryRequests: 20})
	defer bodyStream.Close()

	return io.ReadAll(bodyStream)
}

func (azp *AzureStorageProvider) deleteBlobs(ctx context.Context, blobPrefix string) error {
	containerURL := azp.serviceURL.NewContainerURL(azp.containerName)

	for marker := (azblob.Marker{}); marker.NotDone(); {
		listResponse, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: blobPrefix,
		})
		if err != nil {
			return NewStorageError("failed to list snapshot blobs for deletion", err)
		}

		for _, blob := range listResponse.Segment.BlobItems {
			blobURL := containerURL.NewBlockBlobURL(blob.Name)
			if _, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{}); err != nil {
				return NewStorageError(fmt.Sprintf("failed to delete blob %s", blob.Name), err)
			}
		}

		marker = listResponse.NextMarker
	}
	return nil
}

func (azp *AzureStorageProvider) blobName(snapshotID string) string {
	sanitized := strings.ReplaceAll(snapshotID, " ", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "/", "_")
	return azp.prefix + sanitized
}
