package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "MEDIA_ROOT", "JOB_URL_PREFIX", "JOB_EXTENSIONS", "JOB_RETENTION", "REDIS_URL", "MAX_UPLOAD_MB"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(50<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, "media", cfg.Storage.MediaRoot)
	assert.Equal(t, "/api/jobs", cfg.Storage.URLPrefix)
	assert.Equal(t, []string{".pdf", ".txt"}, cfg.Storage.Extensions)
	assert.Equal(t, 24*time.Hour, cfg.Storage.Retention)
	assert.Zero(t, cfg.Storage.SweepInterval)
	assert.Empty(t, cfg.RateLimit.RedisURL)
	assert.Equal(t, "dev_pdfdesk", cfg.Axiom.Dataset)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JOB_EXTENSIONS", " .pdf , .zip,, ")
	t.Setenv("JOB_SWEEP_INTERVAL", "5m")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")
	t.Setenv("ALLOW_REMOTE_SOURCES", "yes")
	t.Setenv("CONVERTER_MAX_WORKERS", "-3")

	cfg := FromEnv()
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{".pdf", ".zip"}, cfg.Storage.Extensions)
	assert.Equal(t, 5*time.Minute, cfg.Storage.SweepInterval)
	assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	assert.True(t, cfg.Sources.AllowRemote)
	assert.Equal(t, 1, cfg.Converter.MaxWorkers)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MEDIA_ROOT=/srv/media\nPORT=7000\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("PORT", "7100")
	// godotenv only fills variables that are unset
	os.Unsetenv("MEDIA_ROOT")
	t.Cleanup(func() { os.Unsetenv("MEDIA_ROOT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/media", cfg.Storage.MediaRoot)
	assert.Equal(t, "7100", cfg.Server.Port)
}

func TestLoadWithoutDotEnv(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = Load()
	assert.NoError(t, err)
}
