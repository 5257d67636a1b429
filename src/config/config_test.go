package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// helper to temporarily set os.Args and restore on cleanup
func withArgs(t *testing.T, args []string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"bakky"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestApplyCLIOverridesLongAndEqualsForms(t *testing.T) {
	// long form
	withArgs(t, []string{
		"--config-file-path", "/tmp/bakky.yaml",
		"--config-content", "{\"a\":1}",
		"--config-format", "json",
	})
	ec := &EnvConfig{}
	applyCLIOverrides(ec)
	require.Equal(t, "/tmp/bakky.yaml", ec.ConfigFilePath)
	require.Equal(t, "{\"a\":1}", ec.ConfigContent)
	require.Equal(t, "json", ec.ConfigFormat)

	// equals form
	withArgs(t, []string{
		"--config-file-path=/var/lib/bakky/config.yml",
		"--config-content=postgres: {}",
		"--config-format=yaml",
	})
	ec2 := &EnvConfig{}
	applyCLIOverrides(ec2)
	require.Equal(t, "/var/lib/bakky/config.yml", ec2.ConfigFilePath)
	require.Equal(t, "postgres: {}", ec2.ConfigContent)
	require.Equal(t, "yaml", ec2.ConfigFormat)
}

func TestLoadEnvConfigDefaultPathWhenEmpty(t *testing.T) {
	t.Setenv("BAKKY_CONFIG_FILE_PATH", "")
	t.Setenv("BAKKY_CONFIG_CONTENT", "")
	t.Setenv("BAKKY_CONFIG_FORMAT", "")
	withArgs(t, nil)

	ec, err := loadEnvConfig()
	require.NoError(t, err)
	require.Equal(t, "/etc/bakky/config.yaml", ec.ConfigFilePath)
	require.Empty(t, ec.ConfigContent)
	require.Empty(t, ec.ConfigFormat)
}

func TestLoadConfigFileYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	yaml := "" +
		"postgres:\n" +
		"  host: db.fromfile\n" +
		"  port: 5433\n" +
		"  database: appdb\n" +
		"redis:\n" +
		"  address: cache.local:6379\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0o600))

	// override via env (prefix BAKKY_ with __ for nesting)
	t.Setenv("BAKKY_POSTGRES__HOST", "db.fromenv")
	t.Setenv("BAKKY_MONGO__DATABASE", "mongoenv")

	cfg, err := loadConfigFile(cfgPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, "db.fromenv", cfg.Postgres.Host)
	require.Equal(t, 5433, cfg.Postgres.Port)
	require.Equal(t, "appdb", cfg.Postgres.Database)
	require.Equal(t, "cache.local:6379", cfg.Redis.Address)
	require.Equal(t, "mongoenv", cfg.Mongo.Database)
}

func TestLoadConfigFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("postgres:\n  host: somewhere\n"), 0o600))

	cfg, err := loadConfigFile(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "somewhere", cfg.Postgres.Host)
	require.Equal(t, 5432, cfg.Postgres.Port)
	require.Equal(t, int32(10), cfg.Postgres.MaxConns)
	require.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	require.Equal(t, 3600, cfg.Redis.DefaultTTL)
	require.Equal(t, "nats://localhost:4222", cfg.Tasks.URL)
	require.Equal(t, "bakky.tasks", cfg.Tasks.Subject)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFileValidation(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("postgres:\n  port: -1\n"), 0o600))

	_, err := loadConfigFile(cfgPath)
	require.Error(t, err)
}

func TestLoadConfigFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("key='value'"), 0o600))

	_, err := loadConfigFile(path)
	require.Error(t, err)
	var ue *UnsupportedExtensionError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, ".toml", ue.Extension)
}

func TestLoadConfigFileFileNotFound(t *testing.T) {
	_, err := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "error opening config file")
}

func TestLoadConfigContentYAMLAndJSONAutoDetectAndExplicit(t *testing.T) {
	// YAML explicit
	yaml := strings.Join([]string{
		"postgres:",
		"  host: yamlhost",
		"redis:",
		"  db: 2",
	}, "\n")

	cfg, err := loadConfigContent(yaml, "yaml")
	require.NoError(t, err)
	require.Equal(t, "yamlhost", cfg.Postgres.Host)
	require.Equal(t, 2, cfg.Redis.DB)

	// JSON auto-detect
	json := `{"postgres":{"host":"jsonhost"},"tasks":{"subject":"jobs.main"}}`
	cfg2, err := loadConfigContent(json, "")
	require.NoError(t, err)
	require.Equal(t, "jsonhost", cfg2.Postgres.Host)
	require.Equal(t, "jobs.main", cfg2.Tasks.Subject)
}

func TestLoadConfigContentUnsupportedFormat(t *testing.T) {
	_, err := loadConfigContent("key: val", "toml")
	require.Error(t, err)
	var ue *UnsupportedExtensionError
	require.ErrorAs(t, err, &ue)
	require.Equal(t, "toml", ue.Extension)
}

func TestLoadConfigUsesEnvAndCLIPrecedence(t *testing.T) {
	t.Setenv("BAKKY_CONFIG_CONTENT", `{"postgres":{"host":"fromenv"}}`)
	t.Setenv("BAKKY_CONFIG_FORMAT", "json")

	// CLI should override env by providing different inline JSON content
	withArgs(t, []string{"--config-content", `{"postgres":{"host":"fromcli"}}`, "--config-format", "json"})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "fromcli", cfg.Postgres.Host)
}

func TestUnsupportedExtensionErrorError(t *testing.T) {
	e := &UnsupportedExtensionError{Extension: ".weird"}
	require.Equal(t, "unsupported config file extension: .weird", e.Error())
}
