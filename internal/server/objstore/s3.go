package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/sfstore/sfs/internal/common"
)

// Options configures the connection to the S3-compatible backend.
type Options struct {
	Endpoint  string // base endpoint, e.g. "http://127.0.0.1:9000/" (MinIO)
	Region    string
	AccessKey string // MINIO_ROOT_USER
	SecretKey string // MINIO_ROOT_PASSWORD
	Bucket    string
}

// S3Store implements Store over a single S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds an S3 client with static credentials and a custom base
// endpoint. Path-style addressing is forced so MinIO-style backends work
// without per-bucket DNS.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	})

	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return normalize("put", key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, ObjectInfo{}, normalize("get", key, err)
	}

	info := ObjectInfo{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return out.Body, info, nil
}

func (s *S3Store) Head(ctx context.Context, key string) (ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return ObjectInfo{}, normalize("head", key, err)
	}

	info := ObjectInfo{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	// S3 DeleteObject on a missing key succeeds, which is the contract we
	// want here anyway.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return normalize("delete", key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var result []ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, normalize("list", prefix, err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			result = append(result, info)
		}
	}

	return result, nil
}

// transientCodes are API error codes worth a caller-level retry.
var transientCodes = map[string]struct{}{
	"RequestTimeout":      {},
	"SlowDown":            {},
	"InternalError":       {},
	"ServiceUnavailable":  {},
	"Throttling":          {},
	"ThrottlingException": {},
}

// normalize maps backend errors onto the shared vocabulary. Missing keys
// wrap common.ErrNotFound; timeouts, connectivity failures and throttling
// wrap common.ErrTransient; auth/permission and other API errors pass
// through as permanent.
func normalize(op, key string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%s %q: %w", op, key, common.ErrNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := transientCodes[apiErr.ErrorCode()]; ok {
			return fmt.Errorf("%s %q: %w: %w", op, key, common.ErrTransient, err)
		}
		return fmt.Errorf("%s %q: %w", op, key, err)
	}

	// Not an API-level error: request never got a response (dial failure,
	// reset, context deadline). Retryable from the backend's perspective.
	return fmt.Errorf("%s %q: %w: %w", op, key, common.ErrTransient, err)
}
