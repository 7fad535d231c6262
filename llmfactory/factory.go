package llmfactory

import (
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/pkg/llms/anthropic"
	"github.com/effective-security/reagent/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/reagent", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Factory is the interface for creating and managing LLM models.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its provider type, e.g.
	// OPENAI, AZURE, ANTHROPIC, PERPLEXITY
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns an LLM model by a fully specified
	// "provider/model-name" identifier or a bare model name, falling
	// back to the default model when nothing matches.
	ModelByName(name string) (llms.Model, error)
	// Models lists every configured provider model, in provider order.
	Models() []ModelInfo
}

// ModelInfo identifies one configured model.
type ModelInfo struct {
	Provider string `json:"provider"`
	Type     string `json:"type"`
	Model    string `json:"model"`
	// Default marks the service default model.
	Default bool `json:"default,omitempty"`
}

// Load returns a factory configured from the given location, or the
// default configuration when the location is empty.
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	defaultProvider *ProviderConfig
	byType          map[string]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:    cfg,
		byType: make(map[string]llms.Model),
		byName: make(map[string]llms.Model),
	}

	if cfg.DefaultProvider != "" {
		for _, provider := range cfg.Providers {
			if provider.Name == cfg.DefaultProvider {
				f.defaultProvider = provider
				break
			}
		}
	}
	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}

	return f
}

// CreateLLM creates a model client for the provider configuration.
func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	provType := strings.ToUpper(cfg.APIType)
	switch provType {
	case "OPENAI", "OPEN_AI":
		return newOpenAI(cfg, openai.APITypeOpenAI, preferredModels...)
	case "PERPLEXITY":
		return newOpenAI(cfg, openai.APITypePerplexity, preferredModels...)
	case "AZURE", "AZURE_AD":
		return newOpenAI(cfg, openai.APITypeAzure, preferredModels...)
	case "ANTHROPIC":
		return newAnthropic(cfg, preferredModels...)
	}
	return nil, errors.Errorf("unsupported provider type: %s", provType)
}

func newOpenAI(cfg *ProviderConfig, apiType openai.APIType, preferredModels ...string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithAPIType(apiType),
		openai.WithModel(cfg.FindModel(preferredModels...)),
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, openai.WithAPIVersion(cfg.APIVersion))
	}
	return openai.New(opts...)
}

func newAnthropic(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(cfg.FindModel(preferredModels...)),
	}
	if cfg.Token != "" {
		opts = append(opts, anthropic.WithToken(cfg.Token))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return anthropic.New(opts...)
}

func (f *factory) Models() []ModelInfo {
	var list []ModelInfo
	for _, cfg := range f.cfg.Providers {
		isDefault := f.defaultProvider != nil && cfg.Name == f.defaultProvider.Name
		if cfg.DefaultModel != "" {
			list = append(list, ModelInfo{
				Provider: cfg.Name,
				Type:     cfg.APIType,
				Model:    cfg.DefaultModel,
				Default:  isDefault,
			})
		}
		for _, model := range cfg.AvailableModels {
			if model == cfg.DefaultModel {
				continue
			}
			list = append(list, ModelInfo{
				Provider: cfg.Name,
				Type:     cfg.APIType,
				Model:    model,
			})
		}
	}
	return list
}

func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}
	return NewLLM(f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byType[providerType]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if strings.EqualFold(cfg.APIType, providerType) {
			model, err := NewLLM(cfg)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", cfg.APIType,
				"name", cfg.Name)

			f.byType[providerType] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", providerType)
}

func (f *factory) ModelByName(name string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byName[name]; ok {
		return client, nil
	}

	providerName, modelName := SplitModelName(name)

	for _, cfg := range f.cfg.Providers {
		if providerName != "" && !strings.EqualFold(cfg.Name, providerName) {
			continue
		}
		if providerName == "" &&
			!slices.Contains(cfg.AvailableModels, modelName) &&
			cfg.DefaultModel != modelName {
			continue
		}

		provCfg := *cfg
		if modelName != "" {
			provCfg.DefaultModel = modelName
		}
		model, err := NewLLM(&provCfg, modelName)
		if err != nil {
			logger.KV(xlog.ERROR,
				"reason", "NewLLM",
				"type", cfg.APIType,
				"model", name,
				"err", err.Error())
			continue
		}

		logger.KV(xlog.DEBUG,
			"status", "created_llm",
			"type", cfg.APIType,
			"name", cfg.Name,
			"model", modelName)

		f.byName[name] = model
		return model, nil
	}

	if f.defaultProvider == nil {
		return nil, errors.Errorf("model not found: %s", name)
	}
	return f.DefaultModel()
}

// SplitModelName splits a "provider/model-name" identifier into its
// provider and model parts. A bare model name yields an empty provider.
func SplitModelName(name string) (provider, model string) {
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[:idx], name[idx+1:]
	}
	return "", name
}
