package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	envToken   = "SLL_TOKEN"
	envProfile = "SLL_PROFILE"
	envEnvFile = "SLL_ENV_FILE"
)

// audienceEnv maps audience names to their base URL override variables.
var audienceEnv = map[string]string{
	"fabric":  "SLL_FABRIC_URL",
	"powerbi": "SLL_POWERBI_URL",
	"azure":   "SLL_AZURE_URL",
	"graph":   "SLL_GRAPH_URL",
}

// ClientConfig contains resolved API client settings.
type ClientConfig struct {
	Profile  string
	Token    string
	BaseURLs map[string]string
	// Source is "flag", "env" or "keyring".
	Source string
}

// LoadEnvFile loads SLL_ENV_FILE, or ./.env when that exists. Variables
// already set in the environment are never overridden.
func LoadEnvFile() error {
	if path := envValue(envEnvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ResolveClientConfig determines the token and base URLs for a call.
//
// Token precedence: tokenOverride, SLL_TOKEN, then the keyring profile
// (profileOverride, SLL_PROFILE, then the current profile). Base URLs from
// the profile are overridden by SLL_<AUDIENCE>_URL.
func ResolveClientConfig(profileOverride, tokenOverride string) (ClientConfig, error) {
	cfg := ClientConfig{
		Profile:  strings.TrimSpace(profileOverride),
		BaseURLs: map[string]string{},
	}
	if cfg.Profile == "" {
		cfg.Profile = envValue(envProfile)
	}

	switch {
	case strings.TrimSpace(tokenOverride) != "":
		cfg.Token, cfg.Source = strings.TrimSpace(tokenOverride), "flag"
	case envValue(envToken) != "":
		cfg.Token, cfg.Source = envValue(envToken), "env"
	}

	if cfg.Token == "" || cfg.Profile != "" {
		profile, err := loadSelectedProfile(&cfg)
		switch {
		case err == nil:
			if cfg.Token == "" {
				cfg.Token, cfg.Source = profile.Token, "keyring"
			}
			for aud, base := range profile.BaseURLs {
				cfg.BaseURLs[aud] = base
			}
		case cfg.Token == "" || !errors.Is(err, ErrNotConfigured):
			return ClientConfig{}, err
		}
	}

	for aud, key := range audienceEnv {
		if v := envValue(key); v != "" {
			cfg.BaseURLs[aud] = v
		}
	}
	for aud, base := range cfg.BaseURLs {
		cfg.BaseURLs[aud] = strings.TrimSuffix(strings.TrimSpace(base), "/")
	}

	if cfg.Token == "" {
		return ClientConfig{}, ErrNotConfigured
	}
	return cfg, nil
}

func loadSelectedProfile(cfg *ClientConfig) (Profile, error) {
	if cfg.Profile == "" {
		current, err := CurrentProfile()
		if err != nil {
			return Profile{}, err
		}
		cfg.Profile = current
	}
	return LoadProfile(cfg.Profile)
}
