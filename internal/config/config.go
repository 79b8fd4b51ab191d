// Package config loads service settings from defaults, a .env file, an optional
// YAML file and the process environment, in increasing order of precedence.
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
	"gopkg.in/yaml.v2"
)

// Config holds runtime settings for the service.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	DatabaseDriver string `yaml:"database_driver"`
	DatabaseDSN    string `yaml:"database_dsn"`

	RedisAddr       string        `yaml:"redis_addr"`
	HistoryCacheTTL time.Duration `yaml:"history_cache_ttl"`
	HistoryLimit    int           `yaml:"history_limit"`

	InferenceAddr    string        `yaml:"inference_addr"`
	InferenceTimeout time.Duration `yaml:"inference_timeout"`

	JWTSecret     string        `yaml:"jwt_secret"`
	JWTAudience   string        `yaml:"jwt_audience"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AdminEmail    string        `yaml:"admin_email"`
	AdminPassword string        `yaml:"admin_password"`

	ArtifactBackend string `yaml:"artifact_backend"`
	UploadDir       string `yaml:"upload_dir"`
	ProcessedDir    string `yaml:"processed_dir"`
	PublicBaseURL   string `yaml:"public_base_url"`

	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	CORSOrigins []string `yaml:"cors_origins"`
}

// Defaults returns development settings. They are not safe for production.
func Defaults() Config {
	return Config{
		HTTPAddr:         ":8080",
		LogLevel:         "info",
		DatabaseDriver:   "postgres",
		DatabaseDSN:      "host=postgres user=postgres password=postgres dbname=logocheck port=5432 sslmode=disable",
		HistoryCacheTTL:  5 * time.Minute,
		InferenceAddr:    "inference:50051",
		InferenceTimeout: 10 * time.Second,
		JWTSecret:        "dev-secret",
		TokenTTL:         24 * time.Hour,
		AdminEmail:       "admin@example.com",
		AdminPassword:    "admin123",
		ArtifactBackend:  "fs",
		UploadDir:        "static/uploads",
		ProcessedDir:     "static/processed",
		PublicBaseURL:    "/static",
		S3Region:         "us-east-1",
		KafkaTopic:       "classification.completed",
		CORSOrigins:      []string{"http://localhost:3000"},
	}
}

// Load applies .env, the YAML file named by CONFIG_FILE and the environment on top of Defaults.
// The .env file never modifies the process environment.
func Load() (*Config, error) {
	dotenv, err := godotenv.Read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	cfg := Defaults()
	if err := applyEnv(&cfg, fromMap(dotenv)); err != nil {
		return nil, err
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database_driver %q", c.DatabaseDriver)
	}
	switch c.ArtifactBackend {
	case "fs":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("config: s3_bucket is required for the s3 artifact backend")
		}
	default:
		return fmt.Errorf("config: unsupported artifact_backend %q", c.ArtifactBackend)
	}
	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("config: inference_timeout must be positive")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: jwt_secret is required")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func fromMap(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func applyEnv(cfg *Config, get func(string) string) error {
	strs := map[string]*string{
		"HTTP_ADDR":        &cfg.HTTPAddr,
		"LOG_LEVEL":        &cfg.LogLevel,
		"DATABASE_DRIVER":  &cfg.DatabaseDriver,
		"DATABASE_DSN":     &cfg.DatabaseDSN,
		"REDIS_ADDR":       &cfg.RedisAddr,
		"INFERENCE_ADDR":   &cfg.InferenceAddr,
		"JWT_SECRET":       &cfg.JWTSecret,
		"JWT_AUDIENCE":     &cfg.JWTAudience,
		"ADMIN_EMAIL":      &cfg.AdminEmail,
		"ADMIN_PASSWORD":   &cfg.AdminPassword,
		"ARTIFACT_BACKEND": &cfg.ArtifactBackend,
		"UPLOAD_DIR":       &cfg.UploadDir,
		"PROCESSED_DIR":    &cfg.ProcessedDir,
		"PUBLIC_BASE_URL":  &cfg.PublicBaseURL,
		"S3_BUCKET":        &cfg.S3Bucket,
		"S3_REGION":        &cfg.S3Region,
		"S3_ENDPOINT":      &cfg.S3Endpoint,
		"S3_ACCESS_KEY":    &cfg.S3AccessKey,
		"S3_SECRET_KEY":    &cfg.S3SecretKey,
		"KAFKA_TOPIC":      &cfg.KafkaTopic,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(get(key)); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"HISTORY_CACHE_TTL": &cfg.HistoryCacheTTL,
		"INFERENCE_TIMEOUT": &cfg.InferenceTimeout,
		"TOKEN_TTL":         &cfg.TokenTTL,
	}
	for key, dst := range durations {
		if v := strings.TrimSpace(get(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := strings.TrimSpace(get("HISTORY_LIMIT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: HISTORY_LIMIT: %w", err)
		}
		cfg.HistoryLimit = n
	}

	if v := get("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := get("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}
