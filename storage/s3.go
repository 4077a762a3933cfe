package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config contains S3 storage configuration
type S3Config struct {
	Endpoint        string // Optional: Custom endpoint for MinIO or DigitalOcean Spaces
	Region          string // AWS region or DO region (e.g., "us-east-1" or "sfo3")
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	UsePathStyle    bool   // Use path-style addressing (required for MinIO)
}

// S3Storage handles S3-compatible object storage operations
type S3Storage struct {
	client *s3.Client
	bucket string
	config S3Config
}

// NewS3Storage creates a new S3Storage instance
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("S3 credentials are required")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))
	opts = append(opts, config.WithCredentialsProvider(
		credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	))

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	return &S3Storage{
		client: s3.NewFromConfig(awsConfig, s3Opts),
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// SaveImage uploads a downloaded image under images/YYYY/MM/.
// Returns the S3 key (path within bucket).
func (s *S3Storage) SaveImage(imageData []byte, slug, contentType string) (string, error) {
	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".jpg" // Default extension
	}
	key := s3Key("images", slug+ext)
	if err := s.put(key, imageData, contentType); err != nil {
		return "", fmt.Errorf("failed to upload image to S3: %w", err)
	}
	return key, nil
}

// SaveReport uploads a generated HTML report under reports/YYYY/MM/.
// Returns the S3 key (path within bucket).
func (s *S3Storage) SaveReport(html, slug string) (string, error) {
	key := s3Key("reports", slug+".html")
	if err := s.put(key, []byte(html), "text/html; charset=utf-8"); err != nil {
		return "", fmt.Errorf("failed to upload report to S3: %w", err)
	}
	return key, nil
}

func (s *S3Storage) put(key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	return err
}

func (s *S3Storage) get(key string) ([]byte, error) {
	result, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}

// ReadImage reads an image from S3
func (s *S3Storage) ReadImage(key string) ([]byte, error) {
	data, err := s.get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get image from S3: %w", err)
	}
	return data, nil
}

// ReadReport reads a report from S3
func (s *S3Storage) ReadReport(key string) (string, error) {
	data, err := s.get(key)
	if err != nil {
		return "", fmt.Errorf("failed to get report from S3: %w", err)
	}
	return string(data), nil
}

// DeleteImage deletes an image from S3
func (s *S3Storage) DeleteImage(key string) error {
	if err := s.delete(key); err != nil {
		return fmt.Errorf("failed to delete image from S3: %w", err)
	}
	return nil
}

// DeleteReport deletes a report from S3
func (s *S3Storage) DeleteReport(key string) error {
	if err := s.delete(key); err != nil {
		return fmt.Errorf("failed to delete report from S3: %w", err)
	}
	return nil
}

func (s *S3Storage) delete(key string) error {
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// GetFullPath returns the S3 key itself; keys are already full paths
// within the bucket.
func (s *S3Storage) GetFullPath(key string) string {
	return key
}

// s3Key builds an images/YYYY/MM/name style key with forward slashes.
func s3Key(kind, name string) string {
	now := time.Now()
	return path.Join(kind, fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month())), name)
}
