package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	objectstore "blobbench/pkg/storage"
)

var _ objectstore.ObjectStore = (*LocalFileStorage)(nil)

// LocalFileStorage is an ObjectStore implementation that keeps each object
// as a plain file under dataDir/bucket, using the object key as the relative
// path. It is the zero-dependency backend used for demos and tests.
type LocalFileStorage struct {
	dataDir string
	bucket  string
}

// NewLocalFileStorage creates a new LocalFileStorage rooted at dataDir.
func NewLocalFileStorage(dataDir string, bucket string) *LocalFileStorage {
	return &LocalFileStorage{dataDir: dataDir, bucket: bucket}
}

// ObjectPath computes the full filesystem path for key within the given
// bucket directory, rejecting keys that would escape it.
func ObjectPath(directory string, bucket string, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("invalid object key: empty")
	}

	// Only canonical relative keys are accepted, so the stored path always
	// lists back as the same key.
	native := filepath.FromSlash(key)
	cleaned := filepath.Clean(native)
	if cleaned != native || cleaned == "." || filepath.IsAbs(cleaned) ||
		cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}

	return filepath.Join(directory, bucket, cleaned), nil
}

func (s *LocalFileStorage) bucketDir() string {
	return filepath.Join(s.dataDir, s.bucket)
}

func (s *LocalFileStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	objPath, err := ObjectPath(s.dataDir, s.bucket, key)
	if err != nil {
		return err
	}

	// Content type is not recorded by the filesystem backend.
	_ = contentType

	return WriteFileAtomic(objPath, data)
}

func (s *LocalFileStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	objPath, err := ObjectPath(s.dataDir, s.bucket, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(objPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", objectstore.ErrObjectNotFound, key)
	}
	return data, err
}

func (s *LocalFileStorage) List(ctx context.Context) ([]string, error) {
	root := s.bucketDir()
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *LocalFileStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	objPath, err := ObjectPath(s.dataDir, s.bucket, key)
	if err != nil {
		return err
	}

	err = os.Remove(objPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", objectstore.ErrObjectNotFound, key)
	}
	return err
}
