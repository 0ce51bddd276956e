package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// S3Options configures the connection to an S3-compatible endpoint
// (AWS, MinIO, or the S3 gateway of a hosted storage service).
type S3Options struct {
	Endpoint  string // Empty uses the AWS default resolver
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// NewS3Client builds an S3 API client from opts.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return client, nil
}

// S3Bucket is a Bucket backed by an S3 bucket.
// Entry IDs are name-based UUIDs of bucket and key, so they are unique per object even when
// two objects share content (and with it, an ETag).
type S3Bucket struct {
	name   string
	client *s3.Client
}

// NewS3Bucket wraps one bucket of client.
func NewS3Bucket(client *s3.Client, name string) *S3Bucket {
	return &S3Bucket{name: name, client: client}
}

// Name returns the bucket name.
func (b *S3Bucket) Name() string { return b.name }

func (b *S3Bucket) objectID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("s3://"+b.name+"/"+key)).String()
}

// List pages through ListObjectsV2 with a "/" delimiter so only direct children are returned.
func (b *S3Bucket) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.name),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}

	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", b.name, prefix, err)
		}
		for _, obj := range page.Contents {
			name, ok := relativeName(aws.ToString(obj.Key), prefix)
			if !ok {
				continue
			}
			entries = append(entries, Entry{
				Name:      name,
				ID:        b.objectID(aws.ToString(obj.Key)),
				CreatedAt: aws.ToTime(obj.LastModified),
				Size:      aws.ToInt64(obj.Size),
			})
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return applyListOptions(entries, opts), nil
}

// Upload puts the object. Without upsert the write is conditional on the key not existing.
func (b *S3Bucket) Upload(ctx context.Context, key string, data []byte, contentType string, upsert bool) (UploadResult, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("max-age=3600"),
	}
	if !upsert {
		input.IfNoneMatch = aws.String("*")
	}

	_, err := b.client.PutObject(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return UploadResult{}, fmt.Errorf("upload %s: %w", key, ErrObjectExists)
		}
		return UploadResult{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return UploadResult{ID: b.objectID(key), Path: key}, nil
}

// Download reads the whole object.
func (b *S3Bucket) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("download %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Remove deletes keys in one DeleteObjects call.
func (b *S3Bucket) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
	}

	out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.name),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("remove from %s: %w", b.name, err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("remove %s: %s", aws.ToString(first.Key), aws.ToString(first.Message))
	}
	return nil
}
