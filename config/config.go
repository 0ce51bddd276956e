package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the application.
type Config struct {
	// Server settings
	ListenAddress string `yaml:"listen_address"`
	ListenPort    string `yaml:"listen_port"`
	LogLevel      string `yaml:"log_level"`

	// Local mirror settings
	MirrorBackend  string        `yaml:"mirror_backend"` // "file" or "redis"
	MirrorFilePath string        `yaml:"mirror_file"`
	SaveInterval   time.Duration `yaml:"save_interval"`
	EnableBackup   bool          `yaml:"enable_backup"`
	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	RedisPrefix    string        `yaml:"redis_prefix"`

	// Object store settings
	StoreBackend      string `yaml:"store_backend"` // "none", "memory", "fs" or "s3"
	StoreDataDir      string `yaml:"store_data_dir"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3Region          string `yaml:"s3_region"`
	S3AccessKey       string `yaml:"s3_access_key"`
	S3SecretKey       string `yaml:"s3_secret_key"`
	S3PathStyle       bool   `yaml:"s3_path_style"`
	PublicBaseURL     string `yaml:"public_base_url"`
	DocumentsBucket   string `yaml:"documents_bucket"`
	CredentialsBucket string `yaml:"credentials_bucket"`
	StatsBucket       string `yaml:"stats_bucket"`
	DocumentListLimit int    `yaml:"document_list_limit"`
	StatsListLimit    int    `yaml:"stats_list_limit"`
	UserListLimit     int    `yaml:"user_list_limit"`
	MaxUploadSize     int64  `yaml:"max_upload_size"`
	StatQueueSize     int    `yaml:"stat_queue_size"`

	// Authentication settings
	AdminEmail        string        `yaml:"admin_email"`
	AdminPassword     string        `yaml:"-"` // Only used to derive AdminPasswordHash
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	JwtSecret         string        `yaml:"-"` // The actual secret key
	JwtSecretFile     string        `yaml:"jwt_secret_file"`
	TokenLifetime     time.Duration `yaml:"token_lifetime"`
	MaxSessions       int           `yaml:"max_sessions"` // Live sessions kept; the oldest idle ones go first
	BcryptCost        int           `yaml:"bcrypt_cost"`
}

const (
	envPrefix = "RESEARCHHUB_"

	defaultAddress           = "0.0.0.0"
	defaultPort              = "8080"
	defaultLogLevel          = "info"
	defaultMirrorBackend     = "file"
	defaultMirrorFile        = "./mirror.json" // Relative to working dir
	defaultSaveInterval      = 3 * time.Second
	defaultEnableBackup      = true
	defaultRedisAddr         = "localhost:6379"
	defaultRedisPrefix       = "researchhub:"
	defaultStoreBackend      = "none"
	defaultStoreDataDir      = "./data"
	defaultS3Region          = "us-east-1"
	defaultPublicBaseURL     = "/files"
	defaultDocumentsBucket   = "research-papers"
	defaultCredentialsBucket = "user-credentials"
	defaultStatsBucket       = "RESEARCH-STATS"
	defaultDocumentListLimit = 200
	defaultStatsListLimit    = 100
	defaultUserListLimit     = 200
	defaultMaxUploadSize     = 25 * 1024 * 1024
	defaultStatQueueSize     = 256
	defaultAdminEmail        = "admin@sawata.edu.ph"
	defaultAdminPassword     = "admin123"
	defaultJwtKeyFile        = "./researchhub.key" // Default file if we generate a key
	defaultTokenLifetime     = 12 * time.Hour
	defaultMaxSessions       = 10000
	defaultBcryptCost        = 12
)

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		ListenAddress:     defaultAddress,
		ListenPort:        defaultPort,
		LogLevel:          defaultLogLevel,
		MirrorBackend:     defaultMirrorBackend,
		MirrorFilePath:    defaultMirrorFile,
		SaveInterval:      defaultSaveInterval,
		EnableBackup:      defaultEnableBackup,
		RedisAddr:         defaultRedisAddr,
		RedisPrefix:       defaultRedisPrefix,
		StoreBackend:      defaultStoreBackend,
		StoreDataDir:      defaultStoreDataDir,
		S3Region:          defaultS3Region,
		PublicBaseURL:     defaultPublicBaseURL,
		DocumentsBucket:   defaultDocumentsBucket,
		CredentialsBucket: defaultCredentialsBucket,
		StatsBucket:       defaultStatsBucket,
		DocumentListLimit: defaultDocumentListLimit,
		StatsListLimit:    defaultStatsListLimit,
		UserListLimit:     defaultUserListLimit,
		MaxUploadSize:     defaultMaxUploadSize,
		StatQueueSize:     defaultStatQueueSize,
		AdminEmail:        defaultAdminEmail,
		TokenLifetime:     defaultTokenLifetime,
		MaxSessions:       defaultMaxSessions,
		BcryptCost:        defaultBcryptCost,
	}
}

// settings lists every flag name with its help text. The env var for a flag is
// RESEARCHHUB_ + upper-cased name with dashes replaced by underscores.
var settings = []struct {
	name string
	help string
}{
	{"address", "Server listen address"},
	{"port", "Server listen port"},
	{"log-level", "Log level (debug, info, warn, error)"},
	{"mirror-backend", "Local mirror backend: file or redis"},
	{"mirror-file", "Path to the JSON mirror file"},
	{"save-interval", "Debounce interval for saving the mirror file (e.g. 5s, 100ms)"},
	{"enable-backup", "Keep a .bak copy of the mirror file before saving"},
	{"redis-addr", "Redis address for the redis mirror backend"},
	{"redis-password", "Redis password"},
	{"redis-db", "Redis database number"},
	{"redis-prefix", "Key prefix for the redis mirror backend"},
	{"store-backend", "Object store backend: none, memory, fs or s3"},
	{"store-data-dir", "Root directory for the fs store backend"},
	{"s3-endpoint", "S3-compatible endpoint URL"},
	{"s3-region", "S3 region"},
	{"s3-access-key", "S3 access key"},
	{"s3-secret-key", "S3 secret key"},
	{"s3-path-style", "Use path-style S3 addressing"},
	{"public-base-url", "Base URL for public file links"},
	{"documents-bucket", "Bucket holding documents and metadata sidecars"},
	{"credentials-bucket", "Bucket holding user records"},
	{"stats-bucket", "Bucket holding per-paper stat records"},
	{"document-list-limit", "Max objects listed from the documents bucket"},
	{"stats-list-limit", "Max objects listed from the stats bucket"},
	{"user-list-limit", "Max objects listed from the credentials bucket"},
	{"max-upload-size", "Max upload size in bytes"},
	{"stat-queue-size", "Capacity of the background stat push queue"},
	{"admin-email", "Administrator email"},
	{"admin-password", "Administrator password (hashed at startup)"},
	{"admin-password-hash", "Administrator password bcrypt hash"},
	{"jwt-secret-file", "Path to file containing the JWT secret key"},
	{"token-lifetime", "Session token lifetime"},
	{"max-sessions", "Max live sessions held in memory"},
	{"bcrypt-cost", "bcrypt cost used to hash the admin password"},
}

// BindFlags registers every setting on fs. Flag defaults are empty so that only
// explicitly provided flags override env vars and the config file.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML config file (Env: "+envPrefix+"CONFIG)")
	for _, s := range settings {
		fs.String(s.name, "", fmt.Sprintf("%s (Env: %s)", s.help, envName(s.name)))
	}
	// Bool flags should accept the bare form (--enable-backup)
	for _, name := range []string{"enable-backup", "s3-path-style"} {
		fs.Lookup(name).NoOptDefVal = "true"
	}
}

func envName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// LoadConfig loads configuration from defaults, an optional YAML file, environment variables,
// and command-line flags. Flags take precedence over environment variables, which take
// precedence over the file, which takes precedence over defaults.
// fs must have been set up with BindFlags and parsed; a nil fs skips flags.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	// --- Config file ---
	configFile := getEnv(envPrefix+"CONFIG", "")
	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Changed {
			configFile = f.Value.String()
		}
	}
	if configFile != "" {
		if err := cfg.loadFile(configFile); err != nil {
			return nil, err
		}
	}

	// --- Environment ---
	for _, s := range settings {
		if value, ok := os.LookupEnv(envName(s.name)); ok {
			if err := cfg.set(s.name, value); err != nil {
				log.Warn().Err(err).Str("env", envName(s.name)).Msg("ignoring invalid environment value")
			}
		}
	}

	// --- Flags ---
	if fs != nil {
		var flagErr error
		fs.Visit(func(f *pflag.Flag) {
			if f.Name == "config" || flagErr != nil {
				return
			}
			if err := cfg.set(f.Name, f.Value.String()); err != nil {
				flagErr = fmt.Errorf("invalid value for --%s: %w", f.Name, err)
			}
		})
		if flagErr != nil {
			return nil, flagErr
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := cfg.resolveAdminCredential(); err != nil {
		return nil, err
	}
	secretSource, err := cfg.resolveJwtSecret()
	if err != nil {
		return nil, err
	}

	logConfiguration(cfg, secretSource)
	return cfg, nil
}

// loadFile overlays values from a YAML file.
func (cfg *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file '%s': %w", path, err)
	}
	log.Info().Str("file", path).Msg("loaded config file")
	return nil
}

// set assigns one setting from its string form.
func (cfg *Config) set(name, value string) error {
	switch name {
	case "address":
		cfg.ListenAddress = value
	case "port":
		cfg.ListenPort = value
	case "log-level":
		cfg.LogLevel = value
	case "mirror-backend":
		cfg.MirrorBackend = strings.ToLower(value)
	case "mirror-file":
		cfg.MirrorFilePath = value
	case "save-interval":
		return setDuration(&cfg.SaveInterval, value)
	case "enable-backup":
		return setBool(&cfg.EnableBackup, value)
	case "redis-addr":
		cfg.RedisAddr = value
	case "redis-password":
		cfg.RedisPassword = value
	case "redis-db":
		return setInt(&cfg.RedisDB, value)
	case "redis-prefix":
		cfg.RedisPrefix = value
	case "store-backend":
		cfg.StoreBackend = strings.ToLower(value)
	case "store-data-dir":
		cfg.StoreDataDir = value
	case "s3-endpoint":
		cfg.S3Endpoint = value
	case "s3-region":
		cfg.S3Region = value
	case "s3-access-key":
		cfg.S3AccessKey = value
	case "s3-secret-key":
		cfg.S3SecretKey = value
	case "s3-path-style":
		return setBool(&cfg.S3PathStyle, value)
	case "public-base-url":
		cfg.PublicBaseURL = strings.TrimSuffix(value, "/")
	case "documents-bucket":
		cfg.DocumentsBucket = value
	case "credentials-bucket":
		cfg.CredentialsBucket = value
	case "stats-bucket":
		cfg.StatsBucket = value
	case "document-list-limit":
		return setInt(&cfg.DocumentListLimit, value)
	case "stats-list-limit":
		return setInt(&cfg.StatsListLimit, value)
	case "user-list-limit":
		return setInt(&cfg.UserListLimit, value)
	case "max-upload-size":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.MaxUploadSize = n
	case "stat-queue-size":
		return setInt(&cfg.StatQueueSize, value)
	case "admin-email":
		cfg.AdminEmail = value
	case "admin-password":
		cfg.AdminPassword = value
	case "admin-password-hash":
		cfg.AdminPasswordHash = value
	case "jwt-secret-file":
		cfg.JwtSecretFile = value
	case "token-lifetime":
		return setDuration(&cfg.TokenLifetime, value)
	case "max-sessions":
		return setInt(&cfg.MaxSessions, value)
	case "bcrypt-cost":
		return setInt(&cfg.BcryptCost, value)
	default:
		return fmt.Errorf("unknown setting '%s'", name)
	}
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// setBool recognizes "true", "1", "yes" and "false", "0", "no" (case-insensitive).
func setBool(dst *bool, value string) error {
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		return fmt.Errorf("invalid boolean '%s'", value)
	}
	return nil
}

// validate checks enumerations and resolves the mirror path.
func (cfg *Config) validate() error {
	switch cfg.MirrorBackend {
	case "file", "redis":
	default:
		return fmt.Errorf("invalid mirror backend '%s', expected 'file' or 'redis'", cfg.MirrorBackend)
	}
	switch cfg.StoreBackend {
	case "none", "memory", "fs", "s3":
	default:
		return fmt.Errorf("invalid store backend '%s', expected 'none', 'memory', 'fs' or 's3'", cfg.StoreBackend)
	}
	if cfg.StoreBackend == "s3" && cfg.S3Region == "" {
		return fmt.Errorf("s3 store backend requires a region")
	}
	if cfg.SaveInterval < 0 {
		log.Warn().Dur("save_interval", cfg.SaveInterval).Msg("negative save interval, saving immediately")
		cfg.SaveInterval = 0
	}
	if cfg.StatQueueSize <= 0 {
		cfg.StatQueueSize = defaultStatQueueSize
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.TokenLifetime <= 0 {
		return fmt.Errorf("token lifetime must be positive, got %s", cfg.TokenLifetime)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
	}

	if cfg.MirrorBackend == "file" {
		absPath, err := filepath.Abs(cfg.MirrorFilePath)
		if err != nil {
			return fmt.Errorf("could not determine absolute path for mirror-file '%s': %w", cfg.MirrorFilePath, err)
		}
		cfg.MirrorFilePath = absPath

		// The file may not exist yet; it is created on first save.
		if info, err := os.Stat(cfg.MirrorFilePath); err == nil && info.IsDir() {
			return fmt.Errorf("mirror path '%s' points to a directory, not a file", cfg.MirrorFilePath)
		}
	}
	return nil
}

// resolveAdminCredential makes sure AdminPasswordHash is set.
// An explicit hash wins over a plain admin password, which wins over the built-in default.
func (cfg *Config) resolveAdminCredential() error {
	if cfg.AdminPasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.AdminPasswordHash)); err != nil {
			return fmt.Errorf("admin password hash is not a bcrypt hash: %w", err)
		}
		cfg.AdminPassword = ""
		return nil
	}

	password := cfg.AdminPassword
	if password == "" {
		log.Warn().Str("admin_email", cfg.AdminEmail).Msg("using the built-in default administrator password; set RESEARCHHUB_ADMIN_PASSWORD_HASH")
		password = defaultAdminPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	cfg.AdminPasswordHash = string(hash)
	cfg.AdminPassword = ""
	return nil
}

// resolveJwtSecret finds the token signing secret.
// Priority: File (flag/env/config) > Env Var > Default Key File > Generate.
func (cfg *Config) resolveJwtSecret() (string, error) {
	// 1. Explicit file path
	if cfg.JwtSecretFile != "" {
		secretBytes, err := os.ReadFile(cfg.JwtSecretFile)
		if err == nil {
			if secret := strings.TrimSpace(string(secretBytes)); secret != "" {
				cfg.JwtSecret = secret
				return fmt.Sprintf("File (%s)", cfg.JwtSecretFile), nil
			}
			log.Warn().Str("file", cfg.JwtSecretFile).Msg("JWT secret file is empty, ignoring")
		} else {
			log.Warn().Err(err).Str("file", cfg.JwtSecretFile).Msg("failed to read JWT secret file, checking other sources")
		}
	}

	// 2. Environment variable
	if secret := strings.TrimSpace(getEnv(envPrefix+"JWT_SECRET", "")); secret != "" {
		cfg.JwtSecret = secret
		return "Environment Variable (" + envPrefix + "JWT_SECRET)", nil
	}

	// 3. Default key file
	secretBytes, err := os.ReadFile(defaultJwtKeyFile)
	if err == nil {
		if secret := strings.TrimSpace(string(secretBytes)); secret != "" {
			cfg.JwtSecret = secret
			return fmt.Sprintf("Default Key File (%s)", defaultJwtKeyFile), nil
		}
		log.Warn().Str("file", defaultJwtKeyFile).Msg("default JWT key file is empty, generating a new secret")
	} else if !os.IsNotExist(err) {
		log.Warn().Err(err).Str("file", defaultJwtKeyFile).Msg("failed to read default JWT key file, generating a new secret")
	}

	// 4. Generate and try to save
	newSecret, err := generateRandomKey(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.JwtSecret = newSecret
	if err := os.WriteFile(defaultJwtKeyFile, []byte(newSecret), 0600); err != nil {
		log.Warn().Err(err).Str("file", defaultJwtKeyFile).Msg("failed to save generated JWT secret, using it for this process only")
		return "Generated (In Memory)", nil
	}
	return fmt.Sprintf("Generated & Saved (%s)", defaultJwtKeyFile), nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// logConfiguration prints the loaded configuration settings.
func logConfiguration(cfg *Config, secretSource string) {
	log.Info().
		Str("address", cfg.ListenAddress).
		Str("port", cfg.ListenPort).
		Str("mirror_backend", cfg.MirrorBackend).
		Str("mirror_file", cfg.MirrorFilePath).
		Dur("save_interval", cfg.SaveInterval).
		Bool("backup", cfg.EnableBackup).
		Str("store_backend", cfg.StoreBackend).
		Str("documents_bucket", cfg.DocumentsBucket).
		Str("credentials_bucket", cfg.CredentialsBucket).
		Str("stats_bucket", cfg.StatsBucket).
		Str("admin_email", cfg.AdminEmail).
		Str("jwt_secret_source", secretSource).
		Dur("token_lifetime", cfg.TokenLifetime).
		Int("max_sessions", cfg.MaxSessions).
		Msg("configuration loaded")
}

// generateRandomKey generates a cryptographically secure random key of the specified byte length
// and returns it as a hex-encoded string.
func generateRandomKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
