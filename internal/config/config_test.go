package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.MinIO.UseSSL)
	assert.True(t, cfg.Sweep.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Sweep.Grace)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MAX_OPEN_CONNS", "25")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SWEEP_ENABLED", "false")
	t.Setenv("SWEEP_GRACE_SEC", "60")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.False(t, cfg.Sweep.Enabled)
	assert.Equal(t, time.Minute, cfg.Sweep.Grace)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("MINIO_USE_SSL", "not-a-bool")

	cfg := Load()

	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.MinIO.UseSSL)
}
