package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenant_id: t-1
client_id: c-1
client_secret: s3cret
workspace_id: ws-1
log_level: debug
`), 0600))

	cfg, err := readConfig(path)
	require.NoError(t, err)
	require.Equal(t, &Config{
		TenantID:     "t-1",
		ClientID:     "c-1",
		ClientSecret: "s3cret",
		WorkspaceID:  "ws-1",
		LogLevel:     "debug",
	}, cfg)
	require.True(t, cfg.complete())
}

func TestReadConfig_Missing(t *testing.T) {
	_, err := readConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenant_id: [unterminated"), 0600))

	_, err := readConfig(path)
	require.Error(t, err)
	require.False(t, os.IsNotExist(err))
}

func TestWriteConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := &Config{TenantID: "t", ClientID: "c", ClientSecret: "s", WorkspaceID: "w", APIURL: "http://localhost:9000"}

	require.NoError(t, writeConfig(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := readConfig(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestApplyEnv(t *testing.T) {
	cfg := &Config{TenantID: "from-file", ClientID: "c-file", WorkspaceID: "ws-file"}
	env := map[string]string{
		"PBI_TENANT_ID":     "from-env",
		"PBI_CLIENT_SECRET": "env-secret",
		"PBI_WORKSPACE_ID":  "  ",
		"PBI_LOG_ENV":       "prod",
	}

	applyEnv(cfg, func(k string) string { return env[k] })

	require.Equal(t, &Config{
		TenantID:     "from-env",
		ClientID:     "c-file",
		ClientSecret: "env-secret",
		WorkspaceID:  "ws-file",
		LogEnv:       "prod",
	}, cfg)
}

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	t.Setenv("PBI_TENANT_ID", "t")
	t.Setenv("PBI_CLIENT_ID", "c")
	t.Setenv("PBI_CLIENT_SECRET", "s")
	t.Setenv("PBI_WORKSPACE_ID", "w")

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, "w", cfg.WorkspaceID)
}

func TestLoadConfig_NothingConfigured(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	for _, o := range envOverrides {
		t.Setenv(o.key, "")
	}

	_, err := loadConfig()
	require.True(t, os.IsNotExist(err))
}

func TestClientOptions(t *testing.T) {
	cfg := &Config{}
	require.Len(t, cfg.clientOptions(newLogger("dev", "error")), 1)

	cfg.APIURL = "http://localhost"
	cfg.AuthorityURL = "http://localhost"
	require.Len(t, cfg.clientOptions(newLogger("dev", "error")), 3)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
