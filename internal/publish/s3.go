package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"newsroom/internal/logger"
)

// ObjectPutter is the slice of the S3 API the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the S3 destination.
type S3Config struct {
	Bucket string
	Prefix string // e.g. "newsletters/"
	Region string
}

// S3Publisher uploads newsletters as text objects.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Publisher loads the default AWS credential chain for cfg.Region.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("S3 publishing enabled", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", region)
	return NewS3PublisherWithClient(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewS3PublisherWithClient uses an existing client.
func NewS3PublisherWithClient(client ObjectPutter, cfg S3Config) *S3Publisher {
	return &S3Publisher{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
}

// Publish uploads doc and returns its s3:// URI.
func (p *S3Publisher) Publish(ctx context.Context, doc Document) (string, error) {
	key := p.prefix + doc.Name()
	input := &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(doc.Body),
		ContentType: aws.String("text/plain; charset=utf-8"),
	}
	if doc.RunID != "" {
		input.Metadata = map[string]string{"run-id": doc.RunID}
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s to s3: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}
