package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3StorageProvider implements StorageProvider on Amazon S3.
type S3StorageProvider struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3StorageProvider creates a new S3StorageProvider instance.
func NewS3StorageProvider(config *S3Config) (*S3StorageProvider, error) {
	if config == nil {
		return nil, NewConfigurationError("S3 storage configuration is required", nil)
	}
	if config.Bucket == "" || config.Region == "" {
		return nil, NewConfigurationError("S3 bucket and region are required", nil)
	}

	awsConfig := &aws.Config{Region: aws.String(config.Region)}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}

	return &S3StorageProvider{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: "snapshots/",
	}, nil
}

// Store uploads the artifact and descriptor. If the descriptor upload fails
// the artifact object is deleted again so no partial snapshot survives.
func (sp *S3StorageProvider) Store(ctx context.Context, descriptor *Descriptor, artifact []byte) error {
	if descriptor == nil {
		return NewStorageError("snapshot descriptor cannot be nil", nil)
	}
	if err := descriptor.Validate(); err != nil {
		return NewStorageError("invalid snapshot descriptor", err)
	}

	if _, err := sp.GetDescriptor(ctx, descriptor.ID); err == nil {
		return NewConflictError(fmt.Sprintf("snapshot %s already exists", descriptor.ID), nil)
	}

	key := sp.objectKey(descriptor.ID)
	descriptor.StorageLocation = fmt.Sprintf("s3://%s/%s", sp.bucket, key)

	_, err := sp.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(sp.bucket),
		Key:         aws.String(key + "/" + artifactFileName),
		Body:        bytes.NewReader(artifact),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]*string{
			"snapshot-id": aws.String(descriptor.ID),
			"created-by":  aws.String(descriptor.CreatedBy),
			"checksum":    aws.String(descriptor.Checksum),
		},
	})
	if err != nil {
		return NewStorageError("failed to upload snapshot artifact to S3", err)
	}

	descriptorData, err := descriptor.ToJSON()
	if err != nil {
		sp.deleteObjects(ctx, key)
		return NewStorageError("failed to serialize snapshot descriptor", err)
	}

	_, err = sp.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(sp.bucket),
		Key:         aws.String(key + "/" + descriptorFileName),
		Body:        bytes.NewReader(descriptorData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		sp.deleteObjects(ctx, key)
		return NewStorageError("failed to upload snapshot descriptor to S3", err)
	}

	return nil
}

// Retrieve downloads the descriptor and artifact of a snapshot.
func (sp *S3StorageProvider) Retrieve(ctx context.Context, snapshotID string) (*Descriptor, []byte, error) {
	descriptor, err := sp.GetDescriptor(ctx, snapshotID)
	if err != nil {
		return nil, nil, err
	}

	result, err := sp.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(sp.bucket),
		Key:    aws.String(sp.objectKey(snapshotID) + "/" + artifactFileName),
	})
	if err != nil {
		return nil, nil, NewStorageError(fmt.Sprintf("failed to download artifact of snapshot %s", snapshotID), err)
	}
	defer result.Body.Close()

	artifact, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, nil, NewStorageError("failed to read snapshot artifact", err)
	}
	return descriptor, artifact, nil
}

// Delete removes every object belonging to a snapshot.
func (sp *S3StorageProvider) Delete(ctx context.Context, snapshotID string) error {
	if _, err := sp.GetDescriptor(ctx, snapshotID); err != nil {
		return err
	}
	return sp.deleteObjects(ctx, sp.objectKey(snapshotID))
}

// List returns descriptors of stored snapshots, newest first.
func (sp *S3StorageProvider) List(ctx context.Context, filter StorageFilter) ([]*Descriptor, error) {
	prefix := sp.prefix
	if filter.Prefix != "" {
		prefix += filter.Prefix
	}

	var descriptors []*Descriptor
	err := sp.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(sp.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			if !strings.HasSuffix(aws.StringValue(object.Key), "/"+descriptorFileName) {
				continue
			}
			descriptor, loadErr := sp.loadDescriptor(ctx, aws.StringValue(object.Key))
			if loadErr != nil {
				continue
			}
			descriptors = append(descriptors, descriptor)
		}
		return true
	})
	if err != nil {
		return nil, NewStorageError("failed to list snapshots from S3", err)
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
func (sp *S3StorageProvider) GetDescriptor(ctx context.Context, snapshotID string) (*Descriptor, error) {
	descriptor, err := sp.loadDescriptor(ctx, sp.objectKey(snapshotID)+"/"+descriptorFileName)
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("snapshot %s not found", snapshotID), err)
	}
	return descriptor, nil
}

func (sp *S3StorageProvider) loadDescriptor(ctx context.Context, key string) (*Descriptor, error) {
	result, err := sp.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(sp.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, err
	}

	var descriptor Descriptor
	if err := descriptor.FromJSON(data); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

func (sp *S3StorageProvider) deleteObjects(ctx context.Context, key string) error {
	for _, name := range []string{artifactFileName, descriptorFileName} {
		_, err := sp.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(sp.bucket),
			Key:    aws.String(key + "/" + name),
		})
		if err != nil {
			return NewStorageError(fmt.Sprintf("failed to delete object %s/%s", key, name), err)
		}
	}
	return nil
}

func (sp *S3StorageProvider) objectKey(snapshotID string) string {
	return sp.prefix + snapshotID
}
