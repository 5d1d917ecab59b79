// Package config loads the service configuration from built-in defaults, an
// optional YAML file and CAMPUSWEB_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mchmarny/campusweb/pkg/logger"
	"github.com/mchmarny/campusweb/pkg/menu"
	"github.com/mchmarny/campusweb/pkg/nav"
	"github.com/mchmarny/campusweb/pkg/server"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CAMPUSWEB_"

// CMS configures the backend the site data comes from.
type CMS struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Config holds all application configuration.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLSCertFile     string        `yaml:"tls_cert_file"`
	TLSKeyFile      string        `yaml:"tls_key_file"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	EnableMetrics   bool          `yaml:"enable_metrics"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	CMS CMS `yaml:"cms"`

	Menus        nav.Labels   `yaml:"menus"`
	Fallback     nav.Fallback `yaml:"fallback"`
	MaxMenuDepth int          `yaml:"max_menu_depth"`

	// SettingsDefaultsFile is an optional YAML file overriding the built-in
	// settings defaults; it is watched for changes.
	SettingsDefaultsFile string `yaml:"settings_defaults_file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:            server.DefaultPort,
		ShutdownTimeout: server.DefaultShutdownTimeout,
		EnableMetrics:   true,
		LogLevel:        "info",
		LogFormat:       logger.FormatJSON,
		CMS: CMS{
			BaseURL:         "http://localhost:5000/api",
			Timeout:         10 * time.Second,
			RefreshInterval: 5 * time.Minute,
		},
		Menus:        nav.DefaultLabels(),
		Fallback:     nav.DefaultFallback(),
		MaxMenuDepth: menu.DefaultMaxDepth,
	}
}

// Load builds the configuration: defaults, then the YAML file at path when
// path is not empty, then the environment. The result is not validated so
// callers can layer further overrides before calling Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Host = getEnv("HOST", c.Host)
	c.CMS.BaseURL = getEnv("CMS_URL", c.CMS.BaseURL)
	c.TLSCertFile = getEnv("TLS_CERT_FILE", c.TLSCertFile)
	c.TLSKeyFile = getEnv("TLS_KEY_FILE", c.TLSKeyFile)
	c.SettingsDefaultsFile = getEnv("SETTINGS_DEFAULTS_FILE", c.SettingsDefaultsFile)
	c.LogLevel = getRawEnv(logger.EnvVarLogLevel, c.LogLevel)
	c.LogFormat = getRawEnv(logger.EnvVarLogFormat, c.LogFormat)

	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitList(v)
	}

	var errs []error
	var err error
	if c.Port, err = getEnvInt("PORT", c.Port); err != nil {
		errs = append(errs, err)
	}
	if c.MaxMenuDepth, err = getEnvInt("MAX_MENU_DEPTH", c.MaxMenuDepth); err != nil {
		errs = append(errs, err)
	}
	if c.EnableMetrics, err = getEnvBool("ENABLE_METRICS", c.EnableMetrics); err != nil {
		errs = append(errs, err)
	}
	if c.Fallback.Enabled, err = getEnvBool("FALLBACK_ENABLED", c.Fallback.Enabled); err != nil {
		errs = append(errs, err)
	}
	if c.CMS.Timeout, err = getEnvDuration("CMS_TIMEOUT", c.CMS.Timeout); err != nil {
		errs = append(errs, err)
	}
	if c.CMS.RefreshInterval, err = getEnvDuration("REFRESH_INTERVAL", c.CMS.RefreshInterval); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}

	u, err := url.Parse(c.CMS.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("cms base url %q must be an absolute http(s) url", c.CMS.BaseURL))
	}

	if c.CMS.Timeout <= 0 {
		errs = append(errs, errors.New("cms timeout must be positive"))
	}
	if c.CMS.RefreshInterval <= 0 {
		errs = append(errs, errors.New("refresh interval must be positive"))
	}
	if c.MaxMenuDepth < 1 {
		errs = append(errs, errors.New("max menu depth must be at least 1"))
	}
	if strings.TrimSpace(c.Menus.Primary) == "" {
		errs = append(errs, errors.New("primary menu label is required"))
	}
	if c.Fallback.Enabled && strings.TrimSpace(c.Fallback.Text) == "" {
		errs = append(errs, errors.New("fallback text is required when the fallback is enabled"))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("tls cert and key files must be set together"))
	}

	return errors.Join(errs...)
}

// getEnv gets a prefixed environment variable with a default value
func getEnv(key, defaultValue string) string {
	return getRawEnv(EnvPrefix+key, defaultValue)
}

func getRawEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := menu.ParseFlag(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, value, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
