package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// AppConfig holds the application configuration.
type AppConfig struct {
	// Backend is the API server the client exchanges tokens with
	Backend BackendConfig `mapstructure:"backend"`

	// Server configuration for the local UI
	Server ServerConfig `mapstructure:"server"`

	// Session configuration
	Session SessionConfig `mapstructure:"session"`

	// Firebase identity backend configuration
	Firebase FirebaseConfig `mapstructure:"firebase"`

	// Federated sign-in broker configuration
	Federated FederatedConfig `mapstructure:"federated"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// BackendConfig holds the API server settings.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// ServerConfig holds the local HTTP server settings.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// SessionConfig holds token storage and redirect settings.
type SessionConfig struct {
	TokenStorePath       string `mapstructure:"token_store_path"`
	RejectedRouteKey     string `mapstructure:"rejected_route_key"`
	RejectedRouteDefault string `mapstructure:"rejected_route_default"`
}

// FirebaseConfig holds the identity backend settings.
type FirebaseConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// FederatedConfig holds the interactive sign-in broker settings.
type FederatedConfig struct {
	Issuer       string   `mapstructure:"issuer"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Debug bool   `mapstructure:"debug"`
}

var _ Config = (*AppConfig)(nil)

func (c *AppConfig) GetBaseURL() string {
	return c.Backend.BaseURL
}

func (c *AppConfig) GetListenAddr() string {
	return c.Server.ListenAddr
}

func (c *AppConfig) GetTokenStorePath() string {
	return c.Session.TokenStorePath
}

func (c *AppConfig) GetRejectedRouteKey() string {
	return c.Session.RejectedRouteKey
}

func (c *AppConfig) GetRejectedRouteDefault() string {
	return c.Session.RejectedRouteDefault
}

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".lumora"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("LUMORA")
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:5000")
	v.SetDefault("server.listen_addr", ":3000")
	v.SetDefault("session.token_store_path", defaultTokenStorePath())
	v.SetDefault("session.rejected_route_key", "lumora_rejected_route")
	v.SetDefault("session.rejected_route_default", "/dashboard")
	v.SetDefault("firebase.api_key", "")
	v.SetDefault("firebase.endpoint", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("federated.issuer", "https://accounts.google.com")
	v.SetDefault("federated.client_id", "")
	v.SetDefault("federated.client_secret", "")
	v.SetDefault("federated.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.debug", false)
}

func defaultTokenStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lumora"
	}
	return filepath.Join(home, ".lumora")
}
