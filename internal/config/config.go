package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                  = "TERRAFIT"
	defaultHTTPAddress         = "0.0.0.0:8080"
	defaultDatabasePath        = "terrafit.db"
	defaultLogLevel            = "info"
	defaultTokenTTLMinutes     = 30
	defaultStatsCacheMinutes   = 10
	defaultGroupTimeoutSeconds = 30
	defaultMaxConcurrentGroups = 4
)

// AppConfig captures runtime configuration for the engine service.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	LogLevel            string
	TriggerSecret       string
	SigningSecret       string
	TokenTTL            time.Duration
	StatsCacheTTL       time.Duration
	GroupTimeout        time.Duration
	MaxConcurrentGroups int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("stats.cache_ttl_minutes", defaultStatsCacheMinutes)
	configViper.SetDefault("engine.group_timeout_seconds", defaultGroupTimeoutSeconds)
	configViper.SetDefault("engine.max_concurrent_groups", defaultMaxConcurrentGroups)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabasePath:        configViper.GetString("database.path"),
		LogLevel:            configViper.GetString("log.level"),
		TriggerSecret:       configViper.GetString("trigger.shared_secret"),
		SigningSecret:       configViper.GetString("auth.signing_secret"),
		TokenTTL:            time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		StatsCacheTTL:       time.Duration(configViper.GetInt("stats.cache_ttl_minutes")) * time.Minute,
		GroupTimeout:        time.Duration(configViper.GetInt("engine.group_timeout_seconds")) * time.Second,
		MaxConcurrentGroups: configViper.GetInt("engine.max_concurrent_groups"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.TriggerSecret) == "" {
		return fmt.Errorf("trigger.shared_secret is required")
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.MaxConcurrentGroups <= 0 {
		return fmt.Errorf("engine.max_concurrent_groups must be positive")
	}
	return nil
}
