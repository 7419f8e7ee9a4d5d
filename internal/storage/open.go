package storage

import (
	"context"
	"fmt"

	"blobbench/internal/config"
	objectstore "blobbench/pkg/storage"
)

// bucketCreator is implemented by the remote backends that can provision
// their own bucket.
type bucketCreator interface {
	EnsureBucket(ctx context.Context, region string) error
}

// NewFromConfig builds the object store selected by cfg.Driver. When
// cfg.CreateBucket is set the bucket is created if it does not exist yet.
func NewFromConfig(ctx context.Context, cfg config.ObjectStoreConfig, creds config.Credentials) (objectstore.ObjectStore, error) {
	var store objectstore.ObjectStore

	switch cfg.Driver {
	case config.ObjectDriverLocal:
		return NewLocalFileStorage(cfg.DataDir, cfg.Bucket), nil
	case config.ObjectDriverMinio:
		s, err := NewMinioStorage(cfg, creds)
		if err != nil {
			return nil, err
		}
		store = s
	case config.ObjectDriverS3:
		s, err := NewS3Storage(ctx, cfg, creds)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown object store driver %q", cfg.Driver)
	}

	if cfg.CreateBucket {
		if bc, ok := store.(bucketCreator); ok {
			if err := bc.EnsureBucket(ctx, cfg.Region); err != nil {
				return nil, err
			}
		}
	}

	return store, nil
}
