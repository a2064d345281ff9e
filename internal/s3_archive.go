package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lychee-technology/apischema"
	"go.uber.org/zap"
)

type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type bucketClient interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Archiver writes snapshots of saved APIs to an S3 compatible bucket.
// Objects are keyed <prefix><api id>/<snapshot id>.json.
type S3Archiver struct {
	uploader objectUploader
	buckets  bucketClient
	bucket   string
	prefix   string
	breaker  *archiveBreaker
}

// NewS3Archiver builds an archiver from the archive settings. Static
// credentials and a custom endpoint are used when configured, which is how
// MinIO or RustFS deployments are reached.
func NewS3Archiver(ctx context.Context, cfg apischema.ArchiveConfig) (*S3Archiver, error) {
	if err := ValidateArchiveConfig(cfg); err != nil {
		return nil, err
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3Archiver(manager.NewUploader(client), client, cfg), nil
}

func newS3Archiver(uploader objectUploader, buckets bucketClient, cfg apischema.ArchiveConfig) *S3Archiver {
	return &S3Archiver{
		uploader: uploader,
		buckets:  buckets,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		breaker:  newArchiveBreaker(cfg),
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (a *S3Archiver) EnsureBucket(ctx context.Context) error {
	if _, err := a.buckets.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err == nil {
		return nil
	}
	if _, err := a.buckets.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
				return nil
			}
		}
		return apischema.NewArchiveError("create bucket", err).WithDetail("bucket", a.bucket)
	}
	zap.S().Infow("created archive bucket", "bucket", a.bucket)
	return nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (a *S3Archiver) Ping(ctx context.Context) error {
	if _, err := a.buckets.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return fmt.Errorf("s3 bucket %s unreachable: %w", a.bucket, err)
	}
	return nil
}

func (a *S3Archiver) objectKey(id string) (string, error) {
	snapshot, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%s/%s.json", a.prefix, id, snapshot), nil
}

// Archive uploads data and returns its s3:// location.
func (a *S3Archiver) Archive(ctx context.Context, id string, data *apischema.ApiData) (string, error) {
	if err := a.breaker.allow(); err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", apischema.NewArchiveError("encode api data", err)
	}
	key, err := a.objectKey(id)
	if err != nil {
		return "", apischema.NewInternalError("generate object key", err)
	}

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.breaker.uploadFailed()
		zap.S().Warnw("archive upload failed", "id", id, "bucket", a.bucket, "key", key, "error", err)
		return "", apischema.NewArchiveError("upload api data", err).
			WithDetail("bucket", a.bucket).
			WithDetail("key", key)
	}
	a.breaker.uploadSucceeded()

	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)
	zap.S().Infow("archived api", "id", id, "location", location)
	return location, nil
}
