package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		EnvConfigFile, EnvPort, EnvLogLevel, EnvDataDir, EnvStorageURL, EnvStorageToken,
		EnvPublicBaseURL, EnvDefaultFrameRate, EnvRunnerPollSeconds, EnvCORSOrigins,
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studio.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port())
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel())
	assert.Equal(t, DefaultFrameRate, cfg.DefaultFrameRate())
	assert.Equal(t, 2*time.Second, cfg.RunnerPollInterval())
	assert.Empty(t, cfg.StorageURL())
	assert.Equal(t, "http://127.0.0.1:8787", cfg.PublicBaseURL())
	assert.Equal(t, filepath.Join(cfg.DataDir(), DBFilename), cfg.DBPath())
	assert.Equal(t, filepath.Join(cfg.DataDir(), LockFilename), cfg.LockPath())
	assert.Equal(t, filepath.Join(cfg.DataDir(), "exports"), cfg.ExportDir())
	assert.Empty(t, cfg.Source())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
port = 9000
log_level = "debug"
data_dir = "/srv/studio"
storage_url = "https://objects.example.com/exports"
public_base_url = "https://agent.example.com/"
default_frame_rate = 23.976
runner_poll_seconds = 5
cors_origins = ["https://studio.example.com"]
`)
	t.Setenv(EnvPort, "9100")
	t.Setenv(EnvStorageToken, "tok")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port(), "env should win over file")
	assert.Equal(t, "debug", cfg.LogLevel())
	assert.Equal(t, "/srv/studio", cfg.DataDir())
	assert.Equal(t, "https://objects.example.com/exports", cfg.StorageURL())
	assert.Equal(t, "tok", cfg.StorageToken())
	assert.Equal(t, "https://agent.example.com", cfg.PublicBaseURL())
	assert.Equal(t, 23.976, cfg.DefaultFrameRate())
	assert.Equal(t, 5*time.Second, cfg.RunnerPollInterval())
	assert.Equal(t, []string{"https://studio.example.com"}, cfg.CORSOrigins())
	assert.Equal(t, path, cfg.Source())
}

func TestNew_ConfigFileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigFile, writeFile(t, "port = 7000\n"))

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{"unknown key", "colour = \"red\"\n", nil, "parse config"},
		{"bad toml", "port = \n", nil, "parse config"},
		{"port out of range", "port = 70000\n", nil, "invalid port"},
		{"port not a number", "", map[string]string{EnvPort: "http"}, EnvPort},
		{"zero frame rate", "default_frame_rate = 0.0\n", nil, "default_frame_rate"},
		{"bad frame rate env", "", map[string]string{EnvDefaultFrameRate: "fast"}, EnvDefaultFrameRate},
		{"zero poll", "runner_poll_seconds = 0\n", nil, "runner_poll_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoad_CORSOriginsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvCORSOrigins, " https://a.example.com, ,https://b.example.com ")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins())
}
