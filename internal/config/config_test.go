package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, 10*time.Second, cfg.InferenceTimeout)
	require.Equal(t, "fs", cfg.ArtifactBackend)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	yamlBody := []byte(`http_addr: ":9090"
database_driver: sqlite
database_dsn: "file:logos.db?_foreign_keys=on"
inference_timeout: 3s
history_limit: 50
kafka_brokers: ["k1:9092", "k2:9092"]
`)
	require.NoError(t, os.WriteFile(path, yamlBody, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("CORS_ORIGINS", "http://a.example/, http://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.HTTPAddr)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, 3*time.Second, cfg.InferenceTimeout)
	require.Equal(t, 50, cfg.HistoryLimit)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_ADDR", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REDIS_ADDR=cache:6379\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "cache:6379", cfg.RedisAddr)
	require.Empty(t, os.Getenv("REDIS_ADDR"))
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	dotenv := []byte("HTTP_ADDR=:7000\nLOG_LEVEL=debug\nHISTORY_LIMIT=5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), dotenv, 0o600))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: \":9000\"\nhistory_limit: 20\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("HISTORY_LIMIT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddr, "yaml overrides .env")
	require.Equal(t, 20, cfg.HistoryLimit, "yaml overrides .env")
	require.Equal(t, "debug", cfg.LogLevel, ".env overrides defaults")

	t.Setenv("HTTP_ADDR", ":6000")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, ":6000", cfg.HTTPAddr, "environment overrides yaml")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	t.Setenv("INFERENCE_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("INFERENCE_TIMEOUT", "")
	t.Setenv("DATABASE_DRIVER", "mysql")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("ARTIFACT_BACKEND", "s3")
	_, err = Load()
	require.ErrorContains(t, err, "s3_bucket")
}
