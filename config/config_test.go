package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// newFlags returns a parsed flag set with every setting bound.
func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

// baseEnv provides a JWT secret and a cheap bcrypt cost so tests stay fast and never
// write a key file.
func baseEnv(t *testing.T) {
	t.Setenv(envPrefix+"JWT_SECRET", "test-default-secret")
	t.Setenv(envPrefix+"BCRYPT_COST", "4")
}

// Helper to get absolute path for comparison, ignoring errors for simplicity in tests
func absPath(path string) string {
	abs, _ := filepath.Abs(path)
	return abs
}

func createTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	baseEnv(t)

	cfg, err := LoadConfig(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, defaultAddress, cfg.ListenAddress)
	assert.Equal(t, defaultPort, cfg.ListenPort)
	assert.Equal(t, "file", cfg.MirrorBackend)
	assert.Equal(t, absPath(defaultMirrorFile), cfg.MirrorFilePath)
	assert.Equal(t, defaultSaveInterval, cfg.SaveInterval)
	assert.Equal(t, defaultEnableBackup, cfg.EnableBackup)
	assert.Equal(t, "none", cfg.StoreBackend)
	assert.Equal(t, "research-papers", cfg.DocumentsBucket)
	assert.Equal(t, "user-credentials", cfg.CredentialsBucket)
	assert.Equal(t, "RESEARCH-STATS", cfg.StatsBucket)
	assert.Equal(t, 200, cfg.DocumentListLimit)
	assert.Equal(t, 100, cfg.StatsListLimit)
	assert.Equal(t, "/files", cfg.PublicBaseURL)
	assert.Equal(t, defaultAdminEmail, cfg.AdminEmail)
	assert.Equal(t, defaultTokenLifetime, cfg.TokenLifetime)
	assert.Equal(t, defaultMaxSessions, cfg.MaxSessions)
	assert.Equal(t, "test-default-secret", cfg.JwtSecret)

	// The built-in admin password is hashed and then discarded.
	assert.Empty(t, cfg.AdminPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cfg.AdminPasswordHash), []byte(defaultAdminPassword)))
}

func TestLoadConfig_EnvVars(t *testing.T) {
	baseEnv(t)
	t.Setenv("RESEARCHHUB_ADDRESS", "192.168.1.100")
	t.Setenv("RESEARCHHUB_PORT", "9000")
	t.Setenv("RESEARCHHUB_MIRROR_FILE", "/tmp/test_env_mirror.json")
	t.Setenv("RESEARCHHUB_SAVE_INTERVAL", "15s")
	t.Setenv("RESEARCHHUB_ENABLE_BACKUP", "false")
	t.Setenv("RESEARCHHUB_STORE_BACKEND", "MEMORY")
	t.Setenv("RESEARCHHUB_PUBLIC_BASE_URL", "https://cdn.example.com/")
	t.Setenv("RESEARCHHUB_STAT_QUEUE_SIZE", "16")

	cfg, err := LoadConfig(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.100", cfg.ListenAddress)
	assert.Equal(t, "9000", cfg.ListenPort)
	assert.Equal(t, "/tmp/test_env_mirror.json", cfg.MirrorFilePath)
	assert.Equal(t, 15*time.Second, cfg.SaveInterval)
	assert.False(t, cfg.EnableBackup)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "https://cdn.example.com", cfg.PublicBaseURL)
	assert.Equal(t, 16, cfg.StatQueueSize)
}

func TestLoadConfig_InvalidEnvIsIgnored(t *testing.T) {
	baseEnv(t)
	t.Setenv("RESEARCHHUB_SAVE_INTERVAL", "soon")
	t.Setenv("RESEARCHHUB_ENABLE_BACKUP", "maybe")

	cfg, err := LoadConfig(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, defaultSaveInterval, cfg.SaveInterval)
	assert.Equal(t, defaultEnableBackup, cfg.EnableBackup)
}

func TestLoadConfig_Flags(t *testing.T) {
	baseEnv(t)
	fs := newFlags(t,
		"--address", "127.0.0.1",
		"--port", "8888",
		"--save-interval", "500ms",
		"--enable-backup=false",
		"--mirror-backend", "redis",
		"--redis-addr", "cache:6379",
		"--redis-db", "3",
		"--store-backend", "fs",
		"--store-data-dir", "/srv/papers",
		"--token-lifetime", "30m",
		"--max-sessions", "50",
	)

	cfg, err := LoadConfig(fs)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.ListenAddress)
	assert.Equal(t, "8888", cfg.ListenPort)
	assert.Equal(t, 500*time.Millisecond, cfg.SaveInterval)
	assert.False(t, cfg.EnableBackup)
	assert.Equal(t, "redis", cfg.MirrorBackend)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "fs", cfg.StoreBackend)
	assert.Equal(t, "/srv/papers", cfg.StoreDataDir)
	assert.Equal(t, 30*time.Minute, cfg.TokenLifetime)
	assert.Equal(t, 50, cfg.MaxSessions)
}

func TestLoadConfig_BareBoolFlag(t *testing.T) {
	baseEnv(t)
	t.Setenv("RESEARCHHUB_ENABLE_BACKUP", "false")

	cfg, err := LoadConfig(newFlags(t, "--enable-backup"))
	require.NoError(t, err)
	assert.True(t, cfg.EnableBackup)
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	baseEnv(t)
	_, err := LoadConfig(newFlags(t, "--save-interval", "soon"))
	assert.ErrorContains(t, err, "--save-interval")
}

func TestLoadConfig_Precedence(t *testing.T) {
	baseEnv(t)
	file := createTempFile(t, "researchhub.yaml", `
listen_port: "7000"
listen_address: "10.0.0.1"
store_backend: memory
document_list_limit: 50
`)
	t.Setenv("RESEARCHHUB_CONFIG", file)
	t.Setenv("RESEARCHHUB_PORT", "7001")

	cfg, err := LoadConfig(newFlags(t, "--address", "10.0.0.2"))
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.ListenPort, "env beats file")
	assert.Equal(t, "10.0.0.2", cfg.ListenAddress, "flag beats file")
	assert.Equal(t, "memory", cfg.StoreBackend, "file beats default")
	assert.Equal(t, 50, cfg.DocumentListLimit)
}

func TestLoadConfig_ConfigFlag(t *testing.T) {
	baseEnv(t)
	file := createTempFile(t, "c.yaml", "user_list_limit: 5\n")

	cfg, err := LoadConfig(newFlags(t, "--config", file))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.UserListLimit)

	_, err = LoadConfig(newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)

	broken := createTempFile(t, "broken.yaml", "listen_port: [unclosed\n")
	_, err = LoadConfig(newFlags(t, "--config", broken))
	assert.Error(t, err)
}

func TestLoadConfig_Validation(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"MirrorBackend", []string{"--mirror-backend", "sqlite"}},
		{"StoreBackend", []string{"--store-backend", "ftp"}},
		{"S3WithoutRegion", []string{"--store-backend", "s3", "--s3-region", ""}},
		{"BcryptCost", []string{"--bcrypt-cost", "99"}},
		{"TokenLifetime", []string{"--token-lifetime", "0s"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			baseEnv(t)
			_, err := LoadConfig(newFlags(t, tc.args...))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_NegativeSaveInterval(t *testing.T) {
	baseEnv(t)
	cfg, err := LoadConfig(newFlags(t, "--save-interval", "-5s"))
	require.NoError(t, err)
	assert.Zero(t, cfg.SaveInterval)
}

func TestLoadConfig_MirrorPathIsDirectory(t *testing.T) {
	baseEnv(t)
	_, err := LoadConfig(newFlags(t, "--mirror-file", t.TempDir()))
	assert.ErrorContains(t, err, "directory")
}

func TestLoadConfig_AdminCredential(t *testing.T) {
	t.Run("PlainPassword", func(t *testing.T) {
		baseEnv(t)
		t.Setenv("RESEARCHHUB_ADMIN_PASSWORD", "s3cret")
		cfg, err := LoadConfig(newFlags(t))
		require.NoError(t, err)
		assert.Empty(t, cfg.AdminPassword)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cfg.AdminPasswordHash), []byte("s3cret")))
	})

	t.Run("ExplicitHashWins", func(t *testing.T) {
		baseEnv(t)
		hash, err := bcrypt.GenerateFromPassword([]byte("from-hash"), bcrypt.MinCost)
		require.NoError(t, err)
		t.Setenv("RESEARCHHUB_ADMIN_PASSWORD", "ignored")
		t.Setenv("RESEARCHHUB_ADMIN_PASSWORD_HASH", string(hash))

		cfg, err := LoadConfig(newFlags(t))
		require.NoError(t, err)
		assert.Equal(t, string(hash), cfg.AdminPasswordHash)
		assert.Empty(t, cfg.AdminPassword)
	})

	t.Run("InvalidHash", func(t *testing.T) {
		baseEnv(t)
		t.Setenv("RESEARCHHUB_ADMIN_PASSWORD_HASH", "not-a-hash")
		_, err := LoadConfig(newFlags(t))
		assert.Error(t, err)
	})
}

func TestLoadConfig_JWTSecretHandling(t *testing.T) {
	t.Run("FromFile", func(t *testing.T) {
		baseEnv(t)
		file := createTempFile(t, "jwt.key", "  file-secret \n")
		cfg, err := LoadConfig(newFlags(t, "--jwt-secret-file", file))
		require.NoError(t, err)
		assert.Equal(t, "file-secret", cfg.JwtSecret)
	})

	t.Run("MissingFileFallsBackToEnv", func(t *testing.T) {
		baseEnv(t)
		cfg, err := LoadConfig(newFlags(t, "--jwt-secret-file", filepath.Join(t.TempDir(), "none.key")))
		require.NoError(t, err)
		assert.Equal(t, "test-default-secret", cfg.JwtSecret)
	})

	t.Run("GeneratedAndSaved", func(t *testing.T) {
		t.Setenv(envPrefix+"BCRYPT_COST", "4")
		t.Setenv(envPrefix+"JWT_SECRET", "")
		t.Chdir(t.TempDir())

		cfg, err := LoadConfig(newFlags(t))
		require.NoError(t, err)
		assert.Len(t, cfg.JwtSecret, 64)

		saved, err := os.ReadFile(defaultJwtKeyFile)
		require.NoError(t, err)
		assert.Equal(t, cfg.JwtSecret, string(saved))

		// A second load reuses the saved key.
		again, err := LoadConfig(newFlags(t))
		require.NoError(t, err)
		assert.Equal(t, cfg.JwtSecret, again.JwtSecret)
	})
}

func TestLoadConfig_NilFlagSet(t *testing.T) {
	baseEnv(t)
	t.Setenv("RESEARCHHUB_PORT", "1234")
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "1234", cfg.ListenPort)
}
