package cmd

import (
	"fmt"
	"time"

	"github.com/KornAlexander/semantic-link-labs/internal/api"
	"github.com/KornAlexander/semantic-link-labs/internal/config"
)

type clientFactory struct {
	timeout      time.Duration
	userAgent    string
	pollInterval time.Duration
	maxPolls     int
}

func newClientFactory() *clientFactory {
	return &clientFactory{
		timeout:      flags.Timeout,
		userAgent:    fmt.Sprintf("semantic-link-labs/%s", version),
		pollInterval: flags.PollInterval,
		maxPolls:     flags.MaxPolls,
	}
}

// getNormalizer creates a client and the Normalizer driving it.
func getNormalizer() (*api.Normalizer, *api.Client, error) {
	f := newClientFactory()
	client, err := f.client()
	if err != nil {
		return nil, nil, err
	}
	return f.normalizer(client), client, nil
}

func (f *clientFactory) client() (*api.Client, error) {
	cfg, err := config.ResolveClientConfig(flags.Profile, flags.Token)
	if err != nil {
		return nil, err
	}
	return f.newClient(cfg)
}

func (f *clientFactory) newClient(cfg config.ClientConfig) (*api.Client, error) {
	overrides := make(map[api.Audience]string, len(cfg.BaseURLs))
	for name, base := range cfg.BaseURLs {
		aud, err := api.ParseAudience(name)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", cfg.Profile, err)
		}
		overrides[aud] = base
	}

	client := api.New(cfg.Token, overrides)
	if f.timeout > 0 {
		client.HTTP.Timeout = f.timeout
	}
	if f.userAgent != "" {
		client.UserAgent = f.userAgent
	}
	applyRetryOverrides(client)
	return client, nil
}

func (f *clientFactory) normalizer(client *api.Client) *api.Normalizer {
	n := api.NewNormalizer(client)
	if f.pollInterval >= 0 {
		n.PollInterval = f.pollInterval
	}
	if f.maxPolls > 0 {
		n.MaxPolls = f.maxPolls
	}
	return n
}

func applyRetryOverrides(client *api.Client) {
	cfg := client.RetryConfig

	if flags.MaxRateLimitRetriesSet {
		cfg.MaxRateLimitRetries = flags.MaxRateLimitRetries
	}
	if flags.Max5xxRetriesSet {
		cfg.Max5xxRetries = flags.Max5xxRetries
	}
	if flags.RateLimitDelaySet {
		cfg.RateLimitBaseDelay = flags.RateLimitDelay
	}
	if flags.ServerErrorDelaySet {
		cfg.ServerErrorRetryDelay = flags.ServerErrorDelay
	}
	if flags.CircuitBreakerThresholdSet {
		cfg.CircuitBreakerThreshold = flags.CircuitBreakerThreshold
	}
	if flags.CircuitBreakerResetTimeSet {
		cfg.CircuitBreakerResetTime = flags.CircuitBreakerResetTime
	}

	client.SetRetryConfig(cfg)
}
