package llmfactory

import (
	"slices"

	"github.com/effective-security/x/configloader"
)

// Config describes the set of chat providers available to the service.
type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
}

// ProviderConfig describes a single chat provider endpoint.
type ProviderConfig struct {
	Name            string   `json:"name" yaml:"name"`
	Token           string   `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string   `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	// APIType specifies the type of API to use:
	// OPENAI|AZURE|ANTHROPIC|PERPLEXITY
	APIType    string `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
}

// FindModel returns the first preferred model the provider serves, or
// the provider's default model.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig loads configuration from a file, expanding environment
// variables. An empty location returns the default configuration.
func LoadConfig(file string) (*Config, error) {
	if file == "" {
		return DefaultConfig(), nil
	}

	cfg := new(Config)
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with the standard hosted
// providers, token resolution is left to each client's environment
// variable lookup.
func DefaultConfig() *Config {
	return &Config{
		DefaultProvider: "openai",
		Providers: []*ProviderConfig{
			{
				Name:         "openai",
				APIType:      "OPENAI",
				DefaultModel: "gpt-4o-mini",
			},
			{
				Name:         "anthropic",
				APIType:      "ANTHROPIC",
				DefaultModel: "claude-sonnet-4-20250514",
			},
		},
	}
}
