// Package blobarchive provides the MinIO-backed BlobArchive, storing raw
// document bytes under the content-addressed path layout the data source
// core computes.
package blobarchive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fyrsmithlabs/contextd/internal/datasource/dserr"
)

// Config configures the MinIO/S3 client.
type Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
	Bucket          string
}

// Store implements datasource.BlobArchive against a MinIO/S3-compatible
// bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New dials endpointURL and verifies the configured bucket exists,
// creating it if it does not.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("%w: blob endpoint URL is required", dserr.ErrConfig)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: blob bucket is required", dserr.ErrConfig)
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid blob endpoint URL: %v", dserr.ErrConfig, err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL || u.Scheme == "https"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating blob client: %v", dserr.ErrBlob, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: checking blob bucket: %v", dserr.ErrBlob, classify(err))
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("%w: creating blob bucket: %v", dserr.ErrBlob, classify(err))
		}
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Put writes data at path, overwriting any existing object.
func (s *Store) Put(ctx context.Context, path string, data []byte, mime string) error {
	if mime == "" {
		mime = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: mime})
	if err != nil {
		return fmt.Errorf("%w: %v", dserr.ErrBlob, classify(err))
	}
	return nil
}

// Get reads the object at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dserr.ErrBlob, classify(err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, dserr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading blob %s: %v", dserr.ErrBlob, path, err)
	}
	return data, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return dserr.ErrNotFound
	}
	return err
}

func isNotFound(err error) bool {
	if resp, ok := err.(minio.ErrorResponse); ok {
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such key") || strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}
