package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"blobbench/internal/config"
	"blobbench/internal/storage"
)

func TestNewFromConfigLocal(t *testing.T) {
	t.Parallel()

	store, err := storage.NewFromConfig(t.Context(), config.ObjectStoreConfig{
		Driver:  config.ObjectDriverLocal,
		Bucket:  "bench",
		DataDir: t.TempDir(),
	}, config.Credentials{})
	require.NoError(t, err)
	require.IsType(t, &storage.LocalFileStorage{}, store)
}

func TestNewFromConfigMinioWithoutBucketCreation(t *testing.T) {
	t.Parallel()

	store, err := storage.NewFromConfig(t.Context(), config.ObjectStoreConfig{
		Driver:   config.ObjectDriverMinio,
		Bucket:   "bench",
		Endpoint: "localhost:9000",
	}, config.Credentials{AccessKeyID: "key", SecretAccessKey: "secret"})
	require.NoError(t, err)
	require.IsType(t, &storage.MinioStorage{}, store)
}

func TestNewFromConfigUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := storage.NewFromConfig(t.Context(), config.ObjectStoreConfig{Driver: "ftp"}, config.Credentials{})
	require.ErrorContains(t, err, "unknown object store driver")
}
