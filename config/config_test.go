package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/piecework-payroll/config"
)

func TestLoadFile_Defaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "APP_ENV", "LOG_LEVEL", "DB_PATH", "JWT_SECRET", "CORS_ORIGINS", "PAYROLL_DIAGNOSTICS", "PAYROLL_SCHEDULE_INTERVAL"} {
		t.Setenv(key, "")
	}

	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "./data/payroll.db", cfg.Database.Path)
	assert.False(t, cfg.Payroll.Diagnostics)
	assert.Equal(t, time.Hour, cfg.Payroll.ScheduleInterval)
	assert.Len(t, cfg.CORS.AllowedOrigins, 2)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadFile_ReadsDotenvAndEnvironment(t *testing.T) {
	for _, key := range []string{"APP_PORT", "APP_ENV", "LOG_LEVEL", "DB_PATH", "JWT_SECRET", "CORS_ORIGINS", "PAYROLL_DIAGNOSTICS", "PAYROLL_SCHEDULE_INTERVAL"} {
		t.Setenv(key, "")
		// godotenv never overrides variables that are already set
		os.Unsetenv(key)
	}

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"APP_PORT=9090\nLOG_LEVEL=debug\nDB_PATH=/tmp/p.db\nCORS_ORIGINS=https://a.example, https://b.example\nPAYROLL_DIAGNOSTICS=true\nPAYROLL_SCHEDULE_INTERVAL=15m\n",
	), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "/tmp/p.db", cfg.Database.Path)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Payroll.Diagnostics)
	assert.Equal(t, 15*time.Minute, cfg.Payroll.ScheduleInterval)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFile_Invalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("APP_PORT", "eighty")
	_, err := config.LoadFile(missing)
	assert.ErrorContains(t, err, "APP_PORT")

	t.Setenv("APP_PORT", "8080")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err = config.LoadFile(missing)
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("APP_ENV", "development")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = config.LoadFile(missing)
	assert.ErrorContains(t, err, "LOG_LEVEL")

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("PAYROLL_SCHEDULE_INTERVAL", "soon")
	_, err = config.LoadFile(missing)
	assert.ErrorContains(t, err, "PAYROLL_SCHEDULE_INTERVAL")
}
