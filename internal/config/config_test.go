package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "cranetrack.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.IngestTriggerIntervalSecs)
	assert.Equal(t, 9999, cfg.Ingest.MaxFiles)
	assert.Equal(t, 1, cfg.Ingest.Workers)
	assert.Equal(t, "RMG", cfg.Ingest.EquipmentPrefix)
	assert.Equal(t, 1, cfg.Ingest.EquipmentStart)
	assert.Equal(t, 12, cfg.Ingest.EquipmentEnd)
	assert.Equal(t, "Perma", cfg.Ingest.StatisticType)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/cranetrack
ingest:
  log_dir: /var/log/cranes
  max_files: 50
  workers: 4
  equipment_end: 6
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/cranetrack", cfg.Store.DatabaseURL)
	assert.Equal(t, "/var/log/cranes", cfg.Ingest.LogDir)
	assert.Equal(t, 50, cfg.Ingest.MaxFiles)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 6, cfg.Ingest.EquipmentEnd)
	// unset keys keep defaults
	assert.Equal(t, "RMG", cfg.Ingest.EquipmentPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LogConfig{Level: "not-a-level"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
