package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config describes an S3 or S3-compatible bucket (MinIO, R2, ...)
type S3Config struct {
	Bucket         string
	Region         string
	Endpoint       string // empty for AWS
	Prefix         string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// Uploader puts export files into a bucket
type Uploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewUploader builds the S3 client. Static credentials are used when an
// access key is configured, the default AWS chain otherwise.
func NewUploader(ctx context.Context, cfg S3Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("archive: region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(withScheme(cfg.Endpoint))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Uploader{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func withScheme(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		return endpoint
	}
	return "https://" + endpoint
}

// Key returns the object key for an export taken at t,
// e.g. "exports/trades/2026-10-16T140500Z.csv"
func Key(prefix string, kind Kind, t time.Time) string {
	return path.Join(prefix, string(kind), t.UTC().Format("2006-01-02T150405Z")+".csv")
}

// Upload stores body under key and returns the object location
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", key, err)
	}
	return out.Location, nil
}

// ExportToS3 renders kind as CSV and uploads it under the configured prefix
func (u *Uploader) ExportToS3(ctx context.Context, src Source, kind Kind, now time.Time) (key string, rows int, err error) {
	var buf bytes.Buffer
	rows, err = Export(ctx, src, kind, &buf)
	if err != nil {
		return "", 0, err
	}
	key = Key(u.prefix, kind, now)
	if _, err := u.Upload(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
		return "", 0, err
	}
	return key, rows, nil
}
