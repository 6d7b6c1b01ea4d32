package audit

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/google/uuid"
)

// seams for tests
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// Exporter stores a batch of audit entries and returns where it went.
type Exporter interface {
	Export(ctx context.Context, entries []*models.AuditEntry) (string, error)
}

type S3Exporter struct {
	bucket string
	client objectPutter
	now    func() time.Time
}

func NewS3Exporter(ctx context.Context, c S3Config) (*S3Exporter, error) {
	if c.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Exporter{bucket: c.Bucket, client: client, now: time.Now}, nil
}

// exportKey lays exports out by date so buckets can carry lifecycle rules.
func exportKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("audit/%d/%02d/%02d/%s.jsonl", t.Year(), t.Month(), t.Day(), uuid.New())
}

func (e *S3Exporter) Export(ctx context.Context, entries []*models.AuditEntry) (string, error) {
	body, err := EncodeJSONLines(entries)
	if err != nil {
		return "", fmt.Errorf("encode audit export: %w", err)
	}
	key := exportKey(e.now())
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", e.bucket, key), nil
}
