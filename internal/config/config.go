// Package config loads service configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAuthURL     = "https://www.amazon.com/ap/oa"
	DefaultTokenURL    = "https://api.amazon.com/auth/o2/token"
	DefaultProfilesURL = "https://advertising-api.amazon.com/v2/profiles"
	DefaultAPIBaseURL  = "https://advertising-api.amazon.com"
	DefaultPlatformID  = "amazon_ads"

	defaultListenAddr  = ":8799"
	defaultDBPath      = "adgate.db"
	defaultSkewWindow  = 5 * time.Minute
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
)

// ConfigurationError marks a fatal configuration problem detected before any
// network call is made.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: missing %s", e.Field)
}

// Provider holds everything needed to talk to the ad platform.
type Provider struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProfilesURL  string
	APIBaseURL   string
	PlatformID   string
	// ProfileIDOverride pins every exchanged credential to a fixed provider
	// profile. Deployment-specific; empty means use the provider's first
	// reported profile.
	ProfileIDOverride string
	SkewWindow        time.Duration
	HTTPTimeout       time.Duration
}

// Retry configures the invoker's transient-failure retry policy.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Config is the full service configuration.
type Config struct {
	ListenAddr string
	DBPath     string
	Provider   Provider
	Retry      Retry
}

type fileConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`
	Provider   struct {
		ClientID          string `yaml:"client_id"`
		ClientSecret      string `yaml:"client_secret"`
		AuthURL           string `yaml:"auth_url"`
		TokenURL          string `yaml:"token_url"`
		ProfilesURL       string `yaml:"profiles_url"`
		APIBaseURL        string `yaml:"api_base_url"`
		PlatformID        string `yaml:"platform_id"`
		ProfileIDOverride string `yaml:"profile_id_override"`
		SkewWindow        string `yaml:"skew_window"`
		HTTPTimeout       string `yaml:"http_timeout"`
	} `yaml:"provider"`
	Retry struct {
		MaxAttempts int    `yaml:"max_attempts"`
		BaseDelay   string `yaml:"base_delay"`
	} `yaml:"retry"`
}

// Load reads the YAML file at path (missing file is fine), applies
// environment overrides, and fills in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		Provider: Provider{
			AuthURL:     DefaultAuthURL,
			TokenURL:    DefaultTokenURL,
			ProfilesURL: DefaultProfilesURL,
			APIBaseURL:  DefaultAPIBaseURL,
			PlatformID:  DefaultPlatformID,
			SkewWindow:  defaultSkewWindow,
			HTTPTimeout: defaultHTTPTimeout,
		},
		Retry: Retry{
			MaxAttempts: defaultMaxAttempts,
			BaseDelay:   defaultBaseDelay,
		},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			var fc fileConfig
			if err := yaml.Unmarshal(raw, &fc); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			applyFile(cfg, &fc)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.DBPath, fc.DBPath)

	p := &cfg.Provider
	setString(&p.ClientID, fc.Provider.ClientID)
	setString(&p.ClientSecret, fc.Provider.ClientSecret)
	setString(&p.AuthURL, fc.Provider.AuthURL)
	setString(&p.TokenURL, fc.Provider.TokenURL)
	setString(&p.ProfilesURL, fc.Provider.ProfilesURL)
	setString(&p.APIBaseURL, fc.Provider.APIBaseURL)
	setString(&p.PlatformID, fc.Provider.PlatformID)
	setString(&p.ProfileIDOverride, fc.Provider.ProfileIDOverride)
	setDuration(&p.SkewWindow, fc.Provider.SkewWindow)
	setDuration(&p.HTTPTimeout, fc.Provider.HTTPTimeout)

	if fc.Retry.MaxAttempts > 0 {
		cfg.Retry.MaxAttempts = fc.Retry.MaxAttempts
	}
	setDuration(&cfg.Retry.BaseDelay, fc.Retry.BaseDelay)
}

func applyEnv(cfg *Config) {
	setString(&cfg.Provider.ClientID, os.Getenv("ADS_CLIENT_ID"))
	setString(&cfg.Provider.ClientSecret, os.Getenv("ADS_CLIENT_SECRET"))
	setString(&cfg.Provider.ProfileIDOverride, os.Getenv("ADS_PROFILE_ID_OVERRIDE"))
	setString(&cfg.ListenAddr, os.Getenv("ADGATE_LISTEN_ADDR"))
	setString(&cfg.DBPath, os.Getenv("ADGATE_DB_PATH"))
}

// ValidateProvider checks that the provider client credentials are present.
func (c *Config) ValidateProvider() error {
	if c.Provider.ClientID == "" {
		return &ConfigurationError{Field: "provider client_id"}
	}
	if c.Provider.ClientSecret == "" {
		return &ConfigurationError{Field: "provider client_secret"}
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
	}
}
