package objstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchhub/config"
	"researchhub/models"
)

func TestOpen(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		cfg := config.Default()
		_, err := Open(t.Context(), cfg)
		assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	})

	t.Run("Memory", func(t *testing.T) {
		cfg := config.Default()
		cfg.StoreBackend = "memory"
		buckets, err := Open(t.Context(), cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg.DocumentsBucket, buckets.Documents.Name())
		assert.Equal(t, cfg.CredentialsBucket, buckets.Credentials.Name())
		assert.Equal(t, cfg.StatsBucket, buckets.Stats.Name())
		assert.IsType(t, &Instrumented{}, buckets.Documents)
	})

	t.Run("FS", func(t *testing.T) {
		cfg := config.Default()
		cfg.StoreBackend = "fs"
		cfg.StoreDataDir = t.TempDir()
		buckets, err := Open(t.Context(), cfg)
		require.NoError(t, err)

		_, err = buckets.Stats.Upload(t.Context(), "p1.json", []byte("{}"), "application/json", true)
		require.NoError(t, err)
		assert.DirExists(t, cfg.StoreDataDir+"/"+cfg.StatsBucket)
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := config.Default()
		cfg.StoreBackend = "ftp"
		_, err := Open(t.Context(), cfg)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrStoreUnavailable)
	})
}
