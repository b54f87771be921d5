package core

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// FactoryConfig captures the inputs required to construct a provider client.
type FactoryConfig struct {
	Provider string
	APIKey   string
	Model    string
	// Endpoint overrides the provider's API URL, for proxies and tests.
	Endpoint    string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ProviderFactory implements provider-specific Client creation.
type ProviderFactory func(FactoryConfig) (Client, error)

var (
	mu        sync.RWMutex
	providers = map[string]ProviderFactory{}
)

// RegisterProvider registers a provider factory under one or more names.
func RegisterProvider(name string, factory ProviderFactory, aliases ...string) {
	mu.Lock()
	defer mu.Unlock()

	for _, n := range append([]string{name}, aliases...) {
		providers[strings.ToLower(n)] = factory
	}
}

// NewClient returns the client registered for cfg.Provider.
func NewClient(cfg FactoryConfig) (Client, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))

	mu.RLock()
	factory := providers[name]
	mu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("ai: provider %q not registered", cfg.Provider)
	}
	return factory(cfg)
}

var providerDefaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-5",
	"openai":    "gpt-4o",
}

// ResolveModelName picks the configured model if provided, otherwise the provider's default.
func ResolveModelName(provider, configuredModel string) string {
	if m := strings.TrimSpace(configuredModel); m != "" {
		return m
	}
	if def, ok := providerDefaultModels[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return def
	}
	return "unknown"
}
