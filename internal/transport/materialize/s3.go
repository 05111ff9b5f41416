package materialize

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the object store connection settings.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3 fetches s3://bucket/key objects from any S3-compatible store.
type S3 struct {
	client  *minio.Client
	maxSize int64
}

// NewS3 creates an S3 fetcher. Endpoint may carry a scheme; https implies SSL.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	endpoint, useSSL := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = useSSL || u.Scheme == "https"
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3{client: client, maxSize: DefaultMaxSize}, nil
}

// Fetch implements Fetcher.
func (s *S3) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	bucket, key, err := splitS3(uri)
	if err != nil {
		return nil, "", err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = obj.Close() }()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("stat s3://%s/%s: %w", bucket, key, err)
	}
	if info.Size > s.maxSize {
		return nil, "", fmt.Errorf("%w: s3://%s/%s is %d bytes", ErrTooLarge, bucket, key, info.Size)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return data, info.ContentType, nil
}

// splitS3 parses s3://bucket/key.
func splitS3(uri string) (bucket, key string, err error) {
	rest := uri[len("s3://"):]
	slash := strings.IndexByte(rest, '/')
	if slash <= 0 || slash == len(rest)-1 {
		return "", "", fmt.Errorf("malformed s3 uri %q", uri)
	}
	return rest[:slash], rest[slash+1:], nil
}
