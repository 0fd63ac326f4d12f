// Amazon S3 storage backend
package services

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// S3API is the subset of [s3.Client] used by [S3Storage].
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores files as public-read objects in a bucket.
type S3Storage struct {
	Location
	client S3API
	bucket string
	prefix string
}

var _ Storage = (*S3Storage)(nil)

// NewS3Storage builds an S3 client from the default AWS credential chain.
func NewS3Storage(ctx context.Context, cfg shared.StorageConfig) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.S3.Region != "" {
		opts = append(opts, config.WithRegion(cfg.S3.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StorageWithClient(client, cfg)
}

// NewS3StorageWithClient wraps an existing client.
func NewS3StorageWithClient(client S3API, cfg shared.StorageConfig) (*S3Storage, error) {
	loc, err := NewLocation(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &S3Storage{Location: loc, client: client, bucket: cfg.S3.Bucket, prefix: cfg.S3.Prefix}, nil
}

func (s *S3Storage) key(name string) string {
	return path.Join(s.prefix, name)
}

// Put uploads each file with a public-read ACL.
func (s *S3Storage) Put(ctx context.Context, uploads []Upload) ([]string, error) {
	urls := make([]string, 0, len(uploads))
	for _, up := range uploads {
		input := &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(up.Name)),
			Body:   up.Body,
			ACL:    types.ObjectCannedACLPublicRead,
		}
		if up.ContentType != "" {
			input.ContentType = aws.String(up.ContentType)
		}

		if _, err := s.client.PutObject(ctx, input); err != nil {
			return urls, fmt.Errorf("%w: put s3://%s/%s: %v", shared.ErrStorage, s.bucket, s.key(up.Name), err)
		}
		urls = append(urls, s.URLForName(up.Name))
	}
	return urls, nil
}

// Remove deletes each object. S3 reports success for keys that do not exist.
func (s *S3Storage) Remove(ctx context.Context, names []string) error {
	for _, name := range names {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(name)),
		})
		if err != nil {
			return fmt.Errorf("%w: delete s3://%s/%s: %v", shared.ErrStorage, s.bucket, s.key(name), err)
		}
	}
	return nil
}
