package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            string
	MaxUploadMB     int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// StorageConfig locates the job directories and controls their retention.
type StorageConfig struct {
	MediaRoot     string
	URLPrefix     string
	Extensions    []string
	Retention     time.Duration
	SweepInterval time.Duration
}

// RateLimitConfig enables the Redis fixed-window limiter when RedisURL is set.
type RateLimitConfig struct {
	RedisURL  string
	PerMinute int
}

// SourcesConfig controls fetching inputs from file_url instead of an upload.
type SourcesConfig struct {
	AllowRemote bool
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	Region      string
	Bucket      string
	HTTPTimeout time.Duration
}

// ConverterConfig controls the LibreOffice conversion pool.
type ConverterConfig struct {
	Binary     string
	MaxWorkers int
	Timeout    time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Server    ServerConfig
	Storage   StorageConfig
	RateLimit RateLimitConfig
	Sources   SourcesConfig
	Converter ConverterConfig
}

// MaxUploadBytes is the request body limit derived from MaxUploadMB.
func (c ServerConfig) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

// Load reads an optional .env file from the working directory and then the
// environment. Variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return FromEnv(), nil
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdfdesk.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdfdesk",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		MaxUploadMB:     parseInt(getEnv("MAX_UPLOAD_MB", "50"), 50),
		ReadTimeout:     parseDuration(getEnv("READ_TIMEOUT", "60s"), 60*time.Second),
		WriteTimeout:    parseDuration(getEnv("WRITE_TIMEOUT", "120s"), 120*time.Second),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "15s"), 15*time.Second),
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 50
	}

	cfg.Storage = StorageConfig{
		MediaRoot:     getEnv("MEDIA_ROOT", "media"),
		URLPrefix:     getEnv("JOB_URL_PREFIX", "/api/jobs"),
		Extensions:    parseList(getEnv("JOB_EXTENSIONS", ".pdf,.txt")),
		Retention:     parseDuration(getEnv("JOB_RETENTION", "24h"), 24*time.Hour),
		SweepInterval: parseDuration(getEnv("JOB_SWEEP_INTERVAL", "0"), 0),
	}

	cfg.RateLimit = RateLimitConfig{
		RedisURL:  getEnv("REDIS_URL", ""),
		PerMinute: parseInt(getEnv("RATE_LIMIT_PER_MINUTE", "60"), 60),
	}

	cfg.Sources = SourcesConfig{
		AllowRemote: parseBool(getEnv("ALLOW_REMOTE_SOURCES", "0")),
		S3Endpoint:  getEnv("AWS_S3_ENDPOINT", ""),
		S3AccessKey: getEnv("AWS_S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("AWS_S3_SECRET_KEY", ""),
		Region:      getEnv("AWS_REGION", "us-east-1"),
		Bucket:      getEnv("AWS_S3_BUCKET", ""),
		HTTPTimeout: parseDuration(getEnv("SOURCE_HTTP_TIMEOUT", "30s"), 30*time.Second),
	}

	cfg.Converter = ConverterConfig{
		Binary:     getEnv("LIBREOFFICE_BIN", "libreoffice"),
		MaxWorkers: parseInt(getEnv("CONVERTER_MAX_WORKERS", "2"), 2),
		Timeout:    parseDuration(getEnv("CONVERTER_TIMEOUT", "120s"), 120*time.Second),
	}
	if cfg.Converter.MaxWorkers <= 0 {
		cfg.Converter.MaxWorkers = 1
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
