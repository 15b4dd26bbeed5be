package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8099", cfg.Listen)
	assert.Equal(t, 5*time.Minute, cfg.RosterCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.ReminderHorizon())
	assert.Equal(t, filepath.Join("/data", "taskboard.db"), cfg.DatabasePath())
	assert.True(t, cfg.URLImport)
	assert.False(t, cfg.URLImportPrivate)
	assert.NoError(t, cfg.Normalize())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "listen: \":9000\"\n" +
		"roster_cache_ttl: 30s\n" +
		"week_start: Sunday\n" +
		"timezone: Europe/Berlin\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, 30*time.Second, cfg.RosterCacheTTL)
	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.Equal(t, "/data", cfg.DataDir)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /srv/file\n"), 0o644))
	t.Setenv("TASKBOARD_DATA_DIR", "/srv/env")
	t.Setenv("TASKBOARD_REMINDER_HORIZON_HOURS", "48")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/env", cfg.DataDir)
	assert.Equal(t, 48, cfg.ReminderHorizonHours)
}

func TestLoad_URLImportSwitches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url_import: false\n"), 0o644))
	t.Setenv("TASKBOARD_URL_IMPORT_PRIVATE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.URLImport)
	assert.True(t, cfg.URLImportPrivate)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("week_start: wednesday\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "week_start")

	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\n"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "timezone")
}

func TestNormalize_FillsEmptyValues(t *testing.T) {
	cfg := &Config{RosterCacheTTL: -time.Second}
	require.NoError(t, cfg.Normalize())

	assert.Equal(t, ":8099", cfg.Listen)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, time.Duration(0), cfg.RosterCacheTTL)
	assert.Equal(t, 24, cfg.ReminderHorizonHours)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "roster_cache_ttl: 5m0s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	assert.Error(t, WriteDefault(path), "existing files are not overwritten")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TASKBOARD_WEEK_START=sunday\nTASKBOARD_LISTEN=:9100\n"), 0o644))
	t.Setenv("TASKBOARD_LISTEN", ":9200")
	t.Setenv("TASKBOARD_WEEK_START", "")
	os.Unsetenv("TASKBOARD_WEEK_START")

	require.NoError(t, LoadEnvFile(path))
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sunday", cfg.WeekStart)
	assert.Equal(t, ":9200", cfg.Listen)
}

func TestLoadEnvFile_MissingIsIgnored(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, LoadEnvFile(""))
}
