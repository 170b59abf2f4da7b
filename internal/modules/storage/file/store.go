package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appcfg "github.com/mx-space/wiki/internal/config"
)

// Store puts public objects and returns their URL.
type Store interface {
	Put(ctx context.Context, bucket, key string, payload []byte, contentType string) (string, error)
}

// S3Store writes to any S3-compatible endpoint.
type S3Store struct {
	client    *s3.Client
	publicURL string
}

// NewS3Store builds a store from cfg. It fails when the endpoint or the
// credentials are missing.
func NewS3Store(cfg appcfg.StorageConfig, httpClient *http.Client) (*S3Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("incomplete storage config: endpoint/access_key_id/secret_access_key are required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 45 * time.Second}
	}
	client := s3.New(s3.Options{
		Region:                     cfg.Region,
		BaseEndpoint:               aws.String(strings.TrimRight(cfg.Endpoint, "/")),
		Credentials:                credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle:               cfg.PathStyle,
		HTTPClient:                 httpClient,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	})
	return &S3Store{client: client, publicURL: strings.TrimRight(cfg.PublicURL, "/")}, nil
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, payload []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(payload))),
		CacheControl:  aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return s.URL(bucket, key), nil
}

// URL is the public address of an object.
func (s *S3Store) URL(bucket, key string) string {
	return s.publicURL + "/" + bucket + "/" + strings.TrimPrefix(key, "/")
}
