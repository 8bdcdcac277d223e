package retention

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive stores an export before the exported records are deleted.
type Archive interface {
	// Write stores data under a name derived from at.
	Write(ctx context.Context, at time.Time, data []byte) error
}

// S3Archive writes JSONL exports to an S3-compatible bucket, one object per
// sweep under the configured key prefix.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archive creates an S3 archive. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Archive(ctx context.Context, bucket, prefix, region, endpoint string) (*S3Archive, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Archive{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// ObjectKey names the object for a sweep at t.
func (a *S3Archive) ObjectKey(t time.Time) string {
	return path.Join(a.prefix, "notifications-"+t.UTC().Format("20060102T150405Z")+".jsonl")
}

func (a *S3Archive) Write(ctx context.Context, at time.Time, data []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.ObjectKey(at)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
