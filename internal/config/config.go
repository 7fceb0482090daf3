// Package config centralizes how Lecturecast reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address string
	Port    int

	UploadDir   string
	OutputDir   string
	DataDir     string
	PublicDir   string
	MaxFileSize int64

	PythonBin     string
	ScriptPath    string
	GeminiModel   string
	InvokeTimeout time.Duration

	JWTSecret        []byte
	TokenTTL         time.Duration
	RememberTokenTTL time.Duration

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool
}

const (
	defaultAddress     = ":3000"
	defaultMaxFileSize = 500 << 20 // 500 MiB
	defaultTokenTTL    = 7 * 24 * time.Hour
	defaultRememberTTL = 30 * 24 * time.Hour
	defaultTimeout     = 30 * time.Minute

	// devJWTSecret is only used when LECTURECAST_JWT_SECRET is unset.
	devJWTSecret = "your-secret-key-change-in-production"
)

// Load reads configuration from environment variables falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Address:          readEnv("LECTURECAST_ADDRESS", defaultAddress),
		UploadDir:        readEnv("LECTURECAST_UPLOAD_DIR", "uploads"),
		OutputDir:        readEnv("LECTURECAST_OUTPUT_DIR", "outputs"),
		DataDir:          readEnv("LECTURECAST_DATA_DIR", "data"),
		PublicDir:        readEnv("LECTURECAST_PUBLIC_DIR", "public"),
		MaxFileSize:      parseInt64("LECTURECAST_MAX_FILE_BYTES", defaultMaxFileSize),
		PythonBin:        readEnv("LECTURECAST_PYTHON_BIN", "python"),
		ScriptPath:       readEnv("LECTURECAST_SCRIPT_PATH", "main.py"),
		GeminiModel:      readEnv("LECTURECAST_GEMINI_MODEL", "gemini-1.5-flash"),
		InvokeTimeout:    parseDuration("LECTURECAST_INVOKE_TIMEOUT", defaultTimeout),
		JWTSecret:        []byte(readEnv("LECTURECAST_JWT_SECRET", devJWTSecret)),
		TokenTTL:         parseDuration("LECTURECAST_TOKEN_TTL", defaultTokenTTL),
		RememberTokenTTL: parseDuration("LECTURECAST_REMEMBER_TOKEN_TTL", defaultRememberTTL),
		DatabaseURL:      readEnv("LECTURECAST_DATABASE_URL", ""),
		RedisAddr:        readEnv("LECTURECAST_REDIS_ADDR", ""),
		RedisPassword:    readEnv("LECTURECAST_REDIS_PASSWORD", ""),
		RedisDB:          parseInt("LECTURECAST_REDIS_DB", 0),
		S3Endpoint:       readEnv("LECTURECAST_S3_ENDPOINT", ""),
		S3AccessKey:      readEnv("LECTURECAST_S3_ACCESS_KEY", ""),
		S3SecretKey:      readEnv("LECTURECAST_S3_SECRET_KEY", ""),
		S3Bucket:         readEnv("LECTURECAST_S3_BUCKET", "lecture-archives"),
		S3Region:         readEnv("LECTURECAST_S3_REGION", "us-east-1"),
		S3UseSSL:         parseBool("LECTURECAST_S3_USE_SSL", false),
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = defaultTimeout
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.RememberTokenTTL <= 0 {
		cfg.RememberTokenTTL = defaultRememberTTL
	}
	cfg.Port = portFromAddress(cfg.Address)
	return cfg, nil
}

// DatabaseConfigured reports whether an account store backend was supplied.
func (c *Config) DatabaseConfigured() bool { return c.DatabaseURL != "" }

// ArchiveConfigured reports whether both the archival queue and the object
// store are usable.
func (c *Config) ArchiveConfigured() bool { return c.RedisAddr != "" && c.S3Endpoint != "" }

func portFromAddress(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0
	}
	return n
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
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
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
