// Package storage provides blob storage for pet documents and photos
// over Amazon S3 or any S3-compatible service.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/HuellitasApp/HuellitasGo/pkg/config"
	"github.com/HuellitasApp/HuellitasGo/pkg/logger"
)

var (
	ErrInvalidConfig = errors.New("configuración de almacenamiento incompleta")
	ErrInvalidURL    = errors.New("la URL no pertenece a este almacenamiento")
)

// S3Client is the subset of the S3 API used by this package.
// Narrow on purpose so tests can fake it.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// BlobStorage uploads and deletes blobs by key. Public URLs are built
// from the configured base URL.
type BlobStorage struct {
	client  S3Client
	bucket  string
	baseURL string
}

// New creates a BlobStorage from the application configuration
func New(ctx context.Context, cfg *config.Config) (*BlobStorage, error) {
	if cfg.S3Bucket == "" || cfg.S3Region == "" {
		return nil, ErrInvalidConfig
	}

	awsOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		awsOptions = append(awsOptions,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, awsOptions...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true // MinIO y similares
		}
	})

	baseURL := cfg.S3BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
	}

	logger.Success(fmt.Sprintf("Almacenamiento de archivos listo (bucket: %s)", cfg.S3Bucket), "Storage")

	return &BlobStorage{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// NewWithClient creates a BlobStorage over a pre-built client.
// Useful for testing with fakes.
func NewWithClient(client S3Client, bucket, baseURL string) *BlobStorage {
	return &BlobStorage{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Upload stores a blob under the given key and returns its public URL
func (b *BlobStorage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s", b.baseURL, key), nil
}

// Delete removes the blob referenced by a URL previously returned by Upload
func (b *BlobStorage) Delete(ctx context.Context, blobURL string) error {
	key, err := b.keyFromURL(blobURL)
	if err != nil {
		return err
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return err
}

// keyFromURL extracts the object key from a public URL
func (b *BlobStorage) keyFromURL(blobURL string) (string, error) {
	if strings.HasPrefix(blobURL, b.baseURL+"/") {
		return strings.TrimPrefix(blobURL, b.baseURL+"/"), nil
	}

	// Fall back to parsing; the path is the key regardless of host
	parsed, err := url.Parse(blobURL)
	if err != nil || parsed.Path == "" {
		return "", ErrInvalidURL
	}
	return strings.TrimPrefix(parsed.Path, "/"), nil
}
