package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"blobbench/internal/config"
	objectstore "blobbench/pkg/storage"
)

var _ objectstore.ObjectStore = (*MinioStorage)(nil)

// MinioStorage is an ObjectStore backed by any S3-compatible service reached
// through the MinIO client.
type MinioStorage struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStorage creates a client for cfg.Endpoint. Static credentials are
// used when an access key is configured, otherwise the standard AWS/MinIO
// environment chain applies.
func NewMinioStorage(cfg config.ObjectStoreConfig, creds config.Credentials) (*MinioStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("minio bucket is required")
	}

	var provider *credentials.Credentials
	if creds.AccessKeyID != "" {
		provider = credentials.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	} else {
		provider = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.EnvMinio{},
		})
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        provider,
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// EnsureBucket checks if the bucket exists, and creates it if it does not.
func (s *MinioStorage) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", mapMinioError(err))
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", s.bucket, mapMinioError(err))
		}
		slog.Info("Created bucket", "bucket", s.bucket)
	}
	return nil
}

func (s *MinioStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, s.prefix+key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %q to bucket %q: %w", key, s.bucket, mapMinioError(err))
	}

	return nil
}

func (s *MinioStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.prefix+key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %q from bucket %q: %w", key, s.bucket, mapMinioError(err))
	}
	defer obj.Close()

	// GetObject is lazy; the request is only issued on first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q from bucket %q: %w", key, s.bucket, mapMinioError(err))
	}

	return data, nil
}

func (s *MinioStorage) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, 64)
	opts := minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}

	for info := range s.client.ListObjects(ctx, s.bucket, opts) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %q: %w", s.bucket, mapMinioError(info.Err))
		}

		key := strings.TrimPrefix(info.Key, s.prefix)
		if key == "" || strings.HasSuffix(key, "/") {
			continue
		}
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys, nil
}

// Delete stats the object first because S3 reports success when removing a
// key that does not exist.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.client.StatObject(ctx, s.bucket, s.prefix+key, minio.StatObjectOptions{}); err != nil {
		return fmt.Errorf("failed to stat object %q in bucket %q: %w", key, s.bucket, mapMinioError(err))
	}

	if err := s.client.RemoveObject(ctx, s.bucket, s.prefix+key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %q from bucket %q: %w", key, s.bucket, mapMinioError(err))
	}

	return nil
}

// mapMinioError translates missing-key responses into ErrObjectNotFound while
// keeping the original error in the chain.
func mapMinioError(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || (resp.StatusCode == http.StatusNotFound && resp.Code != "NoSuchBucket") {
		return errors.Join(objectstore.ErrObjectNotFound, err)
	}

	return err
}
