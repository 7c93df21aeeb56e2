package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for S3Writer.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // optional, for MinIO or LocalStack
	Prefix   string
}

type s3Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer uploads artifacts as objects under <prefix>/<run-id>/<name>.
type S3Writer struct {
	client s3Putter
	bucket string
	prefix string
}

func NewS3Writer(ctx context.Context, cfg S3Config) (*S3Writer, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Writer{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// NewS3WriterWith is only for tests to inject a fake client.
func NewS3WriterWith(c s3Putter, bucket, prefix string) *S3Writer {
	return &S3Writer{client: c, bucket: bucket, prefix: prefix}
}

func (s *S3Writer) Write(ctx context.Context, a Artifact) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(s.prefix, a.RunID, a.Name)),
		Body:   bytes.NewReader(a.Data),
	}
	if a.ContentType != "" {
		in.ContentType = aws.String(a.ContentType)
	}
	if a.RunID != "" {
		in.Metadata = map[string]string{"run-id": a.RunID}
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3 put %s: %w", a.Name, err)
	}
	return nil
}
