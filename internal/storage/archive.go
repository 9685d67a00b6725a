package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bilgisen/newskit/internal/config"
	"github.com/google/uuid"
)

// objectPutter is the subset of the S3 client the archiver needs
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads project exports to an S3-compatible bucket (Cloudflare R2)
type Archiver struct {
	client objectPutter
	bucket string
	now    func() time.Time
}

// NewR2Archiver builds an archiver from the R2 settings
func NewR2Archiver(ctx context.Context, cfg *config.Config) (*Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.R2Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.R2AccessKey, cfg.R2SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load r2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2Endpoint)
		o.UsePathStyle = true
	})
	return newArchiver(client, cfg.R2Bucket), nil
}

func newArchiver(client objectPutter, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket, now: time.Now}
}

// Upload stores an export under exports/<timestamp>-<id>.json and returns the object key.
// The random suffix keeps archives taken within the same millisecond apart.
func (a *Archiver) Upload(ctx context.Context, data []byte) (string, error) {
	stamp := a.now().UTC().Format("20060102T150405.000Z")
	key := fmt.Sprintf("exports/%s-%s.json", stamp, uuid.NewString()[:8])
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export: %w", err)
	}
	return key, nil
}
