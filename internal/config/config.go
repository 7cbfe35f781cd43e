// Package config loads bridge configuration from a YAML file and the
// API token from the environment or the system keyring.
package config

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
	"github.com/spf13/viper"
)

const (
	serviceName = "jmap-mail-bridge"
	// TokenEnvVar overrides the keyring when set.
	TokenEnvVar = "FASTMAIL_API_TOKEN"
	// tokenKeyringKey is the keyring entry holding the API token.
	tokenKeyringKey = "fastmail-api-token"
)

// Config is the bridge configuration.
type Config struct {
	APIURL            string  `mapstructure:"api_url"`
	SessionURL        string  `mapstructure:"session_url"`
	AccountID         string  `mapstructure:"account_id"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	SummaryModelID    string  `mapstructure:"summary_model_id"`
	SummaryMaxLength  int     `mapstructure:"summary_max_length"`
}

func defaults() *Config {
	return &Config{
		APIURL:            "https://api.fastmail.com/jmap/api/",
		SessionURL:        "https://api.fastmail.com/jmap/session",
		RequestsPerSecond: 5,
		Burst:             5,
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// default configuration.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api_url", "https://api.fastmail.com/jmap/api/")
	v.SetDefault("session_url", "https://api.fastmail.com/jmap/session")
	v.SetDefault("requests_per_second", 5)
	v.SetDefault("burst", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/jmap-mail-bridge/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("jmap-mail-bridge-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Token returns the API token, preferring the environment variable and
// falling back to the system keyring.
func Token() (string, error) {
	if token := os.Getenv(TokenEnvVar); token != "" {
		return token, nil
	}

	ring, err := openKeyring()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(tokenKeyringKey)
	if err != nil {
		return "", fmt.Errorf("getting token from keyring: %w", err)
	}
	return string(item.Data), nil
}

// StoreToken saves the API token in the system keyring.
func StoreToken(token string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: tokenKeyringKey, Data: []byte(token)}); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	return nil
}
