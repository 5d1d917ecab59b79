package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mchmarny/campusweb/pkg/nav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campusweb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, nav.DefaultLabels(), cfg.Menus)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
port: 9090
allowed_origins:
  - https://www.college.edu
cms:
  base_url: https://cms.college.edu/api
  refresh_interval: 30s
menus:
  primary: Main Menu
  footer: [About]
fallback:
  enabled: false
max_menu_depth: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://www.college.edu"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://cms.college.edu/api", cfg.CMS.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.CMS.RefreshInterval)
	assert.Equal(t, 10*time.Second, cfg.CMS.Timeout, "unset keys keep defaults")
	assert.Equal(t, "Main Menu", cfg.Menus.Primary)
	assert.Equal(t, "Mobile Menu", cfg.Menus.Mobile)
	assert.Equal(t, []string{"About"}, cfg.Menus.Footer)
	assert.False(t, cfg.Fallback.Enabled)
	assert.Equal(t, 3, cfg.MaxMenuDepth)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "port: 9090\n")
	t.Setenv("CAMPUSWEB_PORT", "7070")
	t.Setenv("CAMPUSWEB_CMS_URL", "https://env.example/api")
	t.Setenv("CAMPUSWEB_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CAMPUSWEB_REFRESH_INTERVAL", "1m")
	t.Setenv("CAMPUSWEB_ENABLE_METRICS", "0")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "https://env.example/api", cfg.CMS.BaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.CMS.RefreshInterval)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvErrors(t *testing.T) {
	t.Setenv("CAMPUSWEB_PORT", "eighty")
	t.Setenv("CAMPUSWEB_CMS_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAMPUSWEB_PORT")
	assert.Contains(t, err.Error(), "CAMPUSWEB_CMS_TIMEOUT")
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	t.Setenv("CAMPUSWEB_CMS_URL", "not a url")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.CMS.BaseURL = "https://cms.college.edu/api"
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "port: [nope"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "port", mutate: func(c *Config) { c.Port = 70000 }},
		{name: "relative cms url", mutate: func(c *Config) { c.CMS.BaseURL = "/api" }},
		{name: "timeout", mutate: func(c *Config) { c.CMS.Timeout = 0 }},
		{name: "interval", mutate: func(c *Config) { c.CMS.RefreshInterval = -time.Second }},
		{name: "depth", mutate: func(c *Config) { c.MaxMenuDepth = 0 }},
		{name: "primary label", mutate: func(c *Config) { c.Menus.Primary = " " }},
		{name: "fallback text", mutate: func(c *Config) { c.Fallback.Text = "" }},
		{name: "tls pair", mutate: func(c *Config) { c.TLSCertFile = "cert.pem" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
