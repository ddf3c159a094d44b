package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3ListAPI is the slice of the S3 client the blob store needs.
type S3ListAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3BlobStoreConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

type S3BlobStore struct {
	bucket string
	client S3ListAPI
}

func NewS3BlobStore(ctx context.Context, config S3BlobStoreConfig) (S3BlobStore, error) {
	var (
		err    error
		awsCfg aws.Config
	)

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}

	if config.AccessKeyID != "" {
		options = append(options, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}

	if awsCfg, err = awsconfig.LoadDefaultConfig(ctx, options...); err != nil {
		return S3BlobStore{}, fmt.Errorf("error loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3BlobStoreWithClient(config.Bucket, client), nil
}

func NewS3BlobStoreWithClient(bucket string, client S3ListAPI) S3BlobStore {
	return S3BlobStore{
		bucket: bucket,
		client: client,
	}
}

func (s S3BlobStore) ListPrefixes(ctx context.Context) ([]string, error) {
	var (
		err  error
		page *s3.ListObjectsV2Output
	)

	result := []string{}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Delimiter: aws.String(Separator),
	})

	for paginator.HasMorePages() {
		if page, err = paginator.NextPage(ctx); err != nil {
			if isMissingBucket(err) {
				return []string{}, nil
			}

			return nil, fmt.Errorf("error listing prefixes in bucket '%s': %w", s.bucket, err)
		}

		for _, prefix := range page.CommonPrefixes {
			result = append(result, aws.ToString(prefix.Prefix))
		}
	}

	return result, nil
}

func (s S3BlobStore) ListBlobsByPrefix(ctx context.Context, prefix string) ([]Blob, error) {
	var (
		err  error
		page *s3.ListObjectsV2Output
	)

	result := []Blob{}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		if page, err = paginator.NextPage(ctx); err != nil {
			if isMissingBucket(err) {
				return []Blob{}, nil
			}

			return nil, fmt.Errorf("error listing blobs under '%s' in bucket '%s': %w", prefix, s.bucket, err)
		}

		for _, obj := range page.Contents {
			result = append(result, Blob{
				Key:       aws.ToString(obj.Key),
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}

	return result, nil
}

func isMissingBucket(err error) bool {
	var noSuchBucket *types.NoSuchBucket
	return errors.As(err, &noSuchBucket)
}
