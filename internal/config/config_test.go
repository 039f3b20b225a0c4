package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Path, cfg.Path)
	assert.Equal(t, want.Monitor, cfg.Monitor)
	assert.Equal(t, want.Lock, cfg.Lock)
	assert.Equal(t, want.Repair, cfg.Repair)
	assert.Empty(t, cfg.Source)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DiscoversFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "sharedlog.yaml"), `
path: /var/lib/agents/shared_context.json
monitor:
  interval: 2s
  snapshot: false
`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/agents/shared_context.json", cfg.Path)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)
	assert.False(t, cfg.Monitor.Snapshot)
	assert.True(t, cfg.Monitor.Watch, "unset keys keep defaults")
	assert.Equal(t, "sharedlog.yaml", filepath.Base(cfg.Source))
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, `
lock:
  timeout: 30s
repair:
  tail_lines: 5
monitor:
  history_db: /tmp/history.db
  metrics_addr: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Lock.Timeout)
	assert.Equal(t, 5, cfg.Repair.TailLines)
	assert.Equal(t, "/tmp/history.db", cfg.Monitor.HistoryDB)
	assert.Equal(t, ":9102", cfg.Monitor.MetricsAddr)
	assert.Equal(t, path, cfg.Source)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "monitor: [unclosed")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "monitor:\n  interval: 2s\n")
	t.Setenv("SHAREDLOG_MONITOR_INTERVAL", "750ms")
	t.Setenv("SHAREDLOG_PATH", "/env/log.json")
	t.Setenv("SHAREDLOG_MONITOR_WATCH", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.Monitor.Interval)
	assert.Equal(t, "/env/log.json", cfg.Path)
	assert.False(t, cfg.Monitor.Watch)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	writeFile(t, envFile, "SHAREDLOG_REPAIR_TAIL_LINES=7\n")

	// Register cleanup for the variable godotenv is about to set.
	t.Setenv("SHAREDLOG_REPAIR_TAIL_LINES", "")
	require.NoError(t, os.Unsetenv("SHAREDLOG_REPAIR_TAIL_LINES"))

	require.NoError(t, LoadDotEnv(envFile))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Repair.TailLines)
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	writeFile(t, envFile, "SHAREDLOG_PATH=/from/dotenv.json\n")
	t.Setenv("SHAREDLOG_PATH", "/from/env.json")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "/from/env.json", os.Getenv("SHAREDLOG_PATH"))
}

func TestLoadDotEnv_Missing(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty path", func(c *Config) { c.Path = "  " }, "path must not be empty"},
		{"zero interval", func(c *Config) { c.Monitor.Interval = 0 }, "monitor.interval"},
		{"negative debounce", func(c *Config) { c.Monitor.Debounce = -time.Second }, "monitor.debounce"},
		{"zero lock timeout", func(c *Config) { c.Lock.Timeout = 0 }, "lock.timeout"},
		{"negative tail", func(c *Config) { c.Repair.TailLines = -1 }, "repair.tail_lines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
