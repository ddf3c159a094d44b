package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	ProviderS3     = "s3"
	ProviderMinio  = "minio"
	ProviderMemory = "memory"

	Separator = "/"
)

/*
BlobStore is the read-only view of a flat, prefix-addressable container.
Implementations are long-lived, stateless and safe for concurrent use. A
missing container is reported as empty, never as an error.
*/
type BlobStore interface {
	// ListPrefixes returns the first-level prefixes of the container,
	// each including its trailing separator.
	ListPrefixes(ctx context.Context) ([]string, error)

	// ListBlobsByPrefix returns every blob whose key starts with prefix,
	// at any depth.
	ListBlobsByPrefix(ctx context.Context, prefix string) ([]Blob, error)
}

type Blob struct {
	Key       string
	Size      int64
	CreatedAt time.Time
}

type Config struct {
	Provider string
	Bucket   string

	AwsEndpointUrl     string
	AwsRegion          string
	AwsAccessKeyId     string
	AwsSecretAccessKey string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioRegion    string
}

// New builds the BlobStore selected by config.Provider.
func New(ctx context.Context, config Config) (BlobStore, error) {
	switch config.Provider {
	case ProviderS3:
		return NewS3BlobStore(ctx, S3BlobStoreConfig{
			Bucket:          config.Bucket,
			Endpoint:        config.AwsEndpointUrl,
			Region:          config.AwsRegion,
			AccessKeyID:     config.AwsAccessKeyId,
			SecretAccessKey: config.AwsSecretAccessKey,
		})

	case ProviderMinio:
		return NewMinioBlobStore(MinioBlobStoreConfig{
			Bucket:    config.Bucket,
			Endpoint:  config.MinioEndpoint,
			AccessKey: config.MinioAccessKey,
			SecretKey: config.MinioSecretKey,
			UseSSL:    config.MinioUseSSL,
			Region:    config.MinioRegion,
		})

	case ProviderMemory:
		return NewMemoryBlobStore(), nil
	}

	return nil, fmt.Errorf("unknown storage provider '%s'", config.Provider)
}
