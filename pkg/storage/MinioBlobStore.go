package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioBlobStoreConfig struct {
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

type MinioBlobStore struct {
	bucket string
	client *minio.Client
}

func NewMinioBlobStore(config MinioBlobStoreConfig) (MinioBlobStore, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})

	if err != nil {
		return MinioBlobStore{}, fmt.Errorf("error creating minio client for '%s': %w", config.Endpoint, err)
	}

	return MinioBlobStore{
		bucket: config.Bucket,
		client: client,
	}, nil
}

func (s MinioBlobStore) ListPrefixes(ctx context.Context) ([]string, error) {
	result := []string{}

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Recursive: false,
	})

	for obj := range objects {
		if obj.Err != nil {
			if isMissingMinioBucket(obj.Err) {
				return []string{}, nil
			}

			return nil, fmt.Errorf("error listing prefixes in bucket '%s': %w", s.bucket, obj.Err)
		}

		// Non-recursive listings report common prefixes as keys ending in the separator.
		if strings.HasSuffix(obj.Key, Separator) {
			result = append(result, obj.Key)
		}
	}

	return result, nil
}

func (s MinioBlobStore) ListBlobsByPrefix(ctx context.Context, prefix string) ([]Blob, error) {
	result := []Blob{}

	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for obj := range objects {
		if obj.Err != nil {
			if isMissingMinioBucket(obj.Err) {
				return []Blob{}, nil
			}

			return nil, fmt.Errorf("error listing blobs under '%s' in bucket '%s': %w", prefix, s.bucket, obj.Err)
		}

		result = append(result, Blob{
			Key:       obj.Key,
			Size:      obj.Size,
			CreatedAt: obj.LastModified,
		})
	}

	return result, nil
}

func isMissingMinioBucket(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchBucket"
}
