// Package config centralizes how the portal reads environment variables and
// exposes them as typed values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store and blob backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	BlobFS        = "fs"
	BlobS3        = "s3"
)

// Token modes understood by the credential issuer.
const (
	TokenDigest = "digest"
	TokenRandom = "random"
)

// Config represents runtime configuration for the portal.
type Config struct {
	Address           string
	UploadDir         string
	MaxFileSize       int64
	AllowedExtensions []string
	SeedDemo          bool
	TokenMode         string

	Store       string
	DatabaseURL string

	Blob         string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3Region     string
	S3UseSSL     bool
	SignedURLTTL time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ProcessingPool int

	APIRateLimit int
	APIRateBurst int

	LogLevel  string
	LogFormat string
}

const (
	defaultAddress     = ":8080"
	defaultUploadDir   = "static/uploads"
	defaultMaxFileSize = 10 << 20 // 10 MiB
	defaultExtensions  = "pdf,jpg,jpeg,png"
	defaultSignedTTL   = 5 * time.Minute
	defaultWorkerCount = 2
	defaultBucket      = "portal-uploads"
	defaultRateLimit   = 5
	defaultRateBurst   = 10
)

// Load reads an optional .env file and then the PORTAL_* environment
// variables, falling back to defaults for anything unset or unparsable.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{
		Address:           readEnv("PORTAL_ADDRESS", defaultAddress),
		UploadDir:         readEnv("PORTAL_UPLOAD_DIR", defaultUploadDir),
		MaxFileSize:       parseInt64("PORTAL_MAX_FILE_BYTES", defaultMaxFileSize),
		AllowedExtensions: parseList("PORTAL_ALLOWED_EXTENSIONS", defaultExtensions),
		SeedDemo:          parseBool("PORTAL_SEED_DEMO", true),
		TokenMode:         strings.ToLower(readEnv("PORTAL_TOKEN_MODE", TokenDigest)),
		Store:             strings.ToLower(readEnv("PORTAL_STORE", StoreMemory)),
		DatabaseURL:       readEnv("PORTAL_DATABASE_URL", ""),
		Blob:              strings.ToLower(readEnv("PORTAL_BLOB", BlobFS)),
		S3Endpoint:        readEnv("PORTAL_S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:       readEnv("PORTAL_S3_ACCESS_KEY", ""),
		S3SecretKey:       readEnv("PORTAL_S3_SECRET_KEY", ""),
		S3Bucket:          readEnv("PORTAL_S3_BUCKET", defaultBucket),
		S3Region:          readEnv("PORTAL_S3_REGION", "us-east-1"),
		S3UseSSL:          parseBool("PORTAL_S3_USE_SSL", false),
		SignedURLTTL:      parseDuration("PORTAL_SIGNED_TTL", defaultSignedTTL),
		RedisAddr:         readEnv("PORTAL_REDIS_ADDR", ""),
		RedisPassword:     readEnv("PORTAL_REDIS_PASSWORD", ""),
		RedisDB:           parseInt("PORTAL_REDIS_DB", 0),
		ProcessingPool:    parseInt("PORTAL_WORKERS", defaultWorkerCount),
		APIRateLimit:      parseInt("PORTAL_API_RATE_LIMIT", defaultRateLimit),
		APIRateBurst:      parseInt("PORTAL_API_RATE_BURST", defaultRateBurst),
		LogLevel:          readEnv("PORTAL_LOG_LEVEL", "info"),
		LogFormat:         readEnv("PORTAL_LOG_FORMAT", "json"),
	}
	if cfg.ProcessingPool <= 0 {
		cfg.ProcessingPool = defaultWorkerCount
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.APIRateLimit <= 0 {
		cfg.APIRateLimit = defaultRateLimit
	}
	if cfg.APIRateBurst <= 0 {
		cfg.APIRateBurst = defaultRateBurst
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// permittedExtensions bounds PORTAL_ALLOWED_EXTENSIONS: configuration may
// narrow the upload policy but never widen it.
var permittedExtensions = map[string]bool{"pdf": true, "jpg": true, "jpeg": true, "png": true}

func (c *Config) validate() error {
	if len(c.AllowedExtensions) == 0 {
		return errors.New("PORTAL_ALLOWED_EXTENSIONS must name at least one extension")
	}
	for _, ext := range c.AllowedExtensions {
		if !permittedExtensions[ext] {
			return fmt.Errorf("extension %q is not permitted; choose from pdf, jpg, jpeg, png", ext)
		}
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("PORTAL_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Blob {
	case BlobFS, BlobS3:
	default:
		return fmt.Errorf("unknown blob backend %q", c.Blob)
	}
	switch c.TokenMode {
	case TokenDigest, TokenRandom:
	default:
		return fmt.Errorf("unknown token mode %q", c.TokenMode)
	}
	return nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key, def string) []string {
	val := readEnv(key, def)
	out := make([]string, 0)
	for _, item := range strings.Split(val, ",") {
		item = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(item), ".")))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
