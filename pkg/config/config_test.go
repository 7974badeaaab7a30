package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-kintone-forms/pkg/config"
	"github.com/goliatone/go-kintone-forms/pkg/unitpos"
)

const yamlConfig = `
kintone:
  base_url: https://${TEST_KINTONE_SUBDOMAIN}.cybozu.com
  api_tokens:
    - ${TEST_KINTONE_TOKEN}
    - ""
  timeout: 10s
units:
  before: ["$", "€"]
layout:
  auto_insert_missing: true
  sanitize_labels: false
  default_widths:
    NUMBER: "150"
server:
  base_path: /api
log:
  level: debug
  format: json
`

const tomlConfig = `
[kintone]
base_url = "https://example.cybozu.com"
username = "admin"
password = "${TEST_KINTONE_PASSWORD}"

[layout]
fallback_width = "220"

[server]
addr = "127.0.0.1:9000"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAMLExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_KINTONE_SUBDOMAIN", "acme")
	t.Setenv("TEST_KINTONE_TOKEN", "tok-1")

	cfg, err := config.Load(writeFile(t, "forms.yaml", yamlConfig))
	require.NoError(t, err)

	require.Equal(t, "https://acme.cybozu.com", cfg.Kintone.BaseURL)
	require.Equal(t, []string{"tok-1"}, cfg.Kintone.APITokens)
	require.True(t, cfg.Layout.AutoInsertMissing)
	require.NotNil(t, cfg.Layout.SanitizeLabels)
	require.False(t, *cfg.Layout.SanitizeLabels)
	require.Equal(t, "/api", cfg.Server.BasePath)
	require.Equal(t, ":8080", cfg.Server.Addr, "defaults survive partial files")
	require.NoError(t, cfg.ValidateRemote())

	timeout, err := cfg.Kintone.TimeoutDuration()
	require.NoError(t, err)
	require.Equal(t, "10s", timeout.String())

	classifier := cfg.UnitClassifier()
	require.Equal(t, unitpos.Before, classifier.Classify("€"))
	require.Len(t, cfg.CorrectorOptions(), 3)
}

func TestLoad_TOML(t *testing.T) {
	t.Setenv("TEST_KINTONE_PASSWORD", "s3cret")

	cfg, err := config.Load(writeFile(t, "forms.toml", tomlConfig))
	require.NoError(t, err)

	require.Equal(t, "admin", cfg.Kintone.Username)
	require.Equal(t, "s3cret", cfg.Kintone.Password)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, "220", cfg.Layout.FallbackWidth)
	require.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.ValidateRemote())
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("TEST_KINTONE_PASSWORD", "ignored")
	t.Setenv(config.EnvBaseURL, "https://override.cybozu.com/")
	t.Setenv(config.EnvAPIToken, "a, b,,")
	t.Setenv(config.EnvAddr, ":9999")

	cfg, err := config.Load(writeFile(t, "forms.toml", tomlConfig))
	require.NoError(t, err)

	require.Equal(t, "https://override.cybozu.com/", cfg.Kintone.BaseURL)
	require.Equal(t, []string{"a", "b"}, cfg.Kintone.APITokens)
	require.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoad_WithoutFileUsesDefaults(t *testing.T) {
	t.Setenv(config.EnvAddr, "")
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.Default().Server, cfg.Server)
}

func TestParse_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		format string
		data   string
	}{
		{name: "unknown yaml key", format: "yaml", data: "kintone:\n  base: x\n"},
		{name: "unknown toml key", format: "toml", data: "[server]\nport = 80\n"},
		{name: "malformed yaml", format: "yaml", data: "kintone: [\n"},
		{name: "unsupported format", format: "ini", data: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.data), tc.format)
			require.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "bad timeout", mutate: func(c *config.Config) { c.Kintone.Timeout = "soon" }},
		{name: "bad log level", mutate: func(c *config.Config) { c.Log.Level = "loud" }},
		{name: "bad log format", mutate: func(c *config.Config) { c.Log.Format = "xml" }},
		{name: "bad width", mutate: func(c *config.Config) { c.Layout.DefaultWidths = map[string]string{"NUMBER": "wide"} }},
		{name: "bad fallback width", mutate: func(c *config.Config) { c.Layout.FallbackWidth = "-1" }},
		{name: "relative base path", mutate: func(c *config.Config) { c.Server.BasePath = "api" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateRemote(t *testing.T) {
	cfg := config.Default()
	require.Error(t, cfg.ValidateRemote(), "base url is required")

	cfg.Kintone.BaseURL = "https://example.cybozu.com"
	require.Error(t, cfg.ValidateRemote(), "credentials are required")

	cfg.Kintone.Username = "admin"
	require.Error(t, cfg.ValidateRemote(), "password is required with a username")

	cfg.Kintone.Password = "pw"
	require.NoError(t, cfg.ValidateRemote())
}
