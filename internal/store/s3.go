package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/zulandar/flowguard/internal/config"
)

// ErrNoBucket is returned when export is requested without a bucket.
var ErrNoBucket = errors.New("store: export bucket not configured")

// objectPutter is the subset of the S3 client used by the exporter.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads collection snapshots to an S3-compatible bucket.
type S3Exporter struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Exporter builds an exporter from the export config. A custom endpoint
// switches to path-style addressing for MinIO and similar.
func NewS3Exporter(ctx context.Context, cfg config.ExportConfig) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("store: load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if cfg.Endpoint != "" || cfg.UsePathStyle {
		s3opts = append(s3opts, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = true
		})
	}
	return newS3Exporter(s3.NewFromConfig(awsCfg, s3opts...), cfg.Bucket, cfg.Prefix), nil
}

func newS3Exporter(client objectPutter, bucket, prefix string) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// ObjectKey returns the key a snapshot of env taken at t is written under.
func (e *S3Exporter) ObjectKey(env string, t time.Time) string {
	return path.Join(e.prefix, env, t.UTC().Format("20060102T150405Z")+".json")
}

// Export uploads payload and returns the object key.
func (e *S3Exporter) Export(ctx context.Context, env string, payload []byte) (string, error) {
	if payload == nil {
		payload = []byte("[]")
	}
	key := e.ObjectKey(env, e.now())
	_, err := e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("store: s3 put object: %w", err)
	}
	return key, nil
}
