// Package config provides Viper-based configuration for vulnwatchctl.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the complete vulnwatchctl configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	OIDC    OIDCConfig    `mapstructure:"oidc"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig locates the backend API.
type ServerConfig struct {
	URL    string `mapstructure:"url"`
	Scheme string `mapstructure:"scheme"`
}

// StoreConfig controls the on-disk credential store. A non-empty passphrase
// enables encryption at rest.
type StoreConfig struct {
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"`
}

// OIDCConfig enables federated sign-in when issuer and client ID are set.
type OIDCConfig struct {
	Issuer      string `mapstructure:"issuer"`
	ClientID    string `mapstructure:"client_id"`
	RedirectURL string `mapstructure:"redirect_url"`
}

type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and VULNWATCH_* environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".vulnwatchctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/vulnwatchctl")
	}

	v.SetEnvPrefix("VULNWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "[config.Load] read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "[config.Load] unmarshal config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v.SetDefault("server.scheme", "JWT")
	v.SetDefault("store.path", filepath.Join(home, ".vulnwatch", "credentials.json"))
	v.SetDefault("oidc.redirect_url", "http://127.0.0.1:8765/callback")
	v.SetDefault("output.colors", true)
	v.SetDefault("logging.level", "info")
}
