package llmfactory_test

import (
	"context"
	"testing"

	"github.com/effective-security/reagent/llmfactory"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	provider string
	model    string
}

func (f *fakeLLM) GetName() string                    { return f.model }
func (f *fakeLLM) GetProviderType() llms.ProviderType { return llms.ProviderOpenAI }
func (f *fakeLLM) GenerateContent(_ context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, nil
}

func withFakeLLM(t *testing.T) {
	t.Helper()
	llmfactory.NewLLM = func(cfg *llmfactory.ProviderConfig, preferredModels ...string) (llms.Model, error) {
		return &fakeLLM{provider: cfg.Name, model: cfg.FindModel(preferredModels...)}, nil
	}
	t.Cleanup(func() {
		llmfactory.NewLLM = llmfactory.CreateLLM
	})
}

func testConfig() *llmfactory.Config {
	return &llmfactory.Config{
		DefaultProvider: "openai",
		Providers: []*llmfactory.ProviderConfig{
			{
				Name:            "openai",
				APIType:         "OPENAI",
				AvailableModels: []string{"gpt-4o", "gpt-4o-mini"},
				DefaultModel:    "gpt-4o-mini",
			},
			{
				Name:            "anthropic",
				APIType:         "ANTHROPIC",
				AvailableModels: []string{"claude-sonnet-4-20250514"},
				DefaultModel:    "claude-sonnet-4-20250514",
			},
		},
	}
}

func Test_Factory(t *testing.T) {
	withFakeLLM(t)

	f := llmfactory.New(testConfig())

	model, err := f.DefaultModel()
	require.NoError(t, err)
	fm := model.(*fakeLLM)
	assert.Equal(t, "gpt-4o-mini", fm.model)
	assert.Equal(t, "openai", fm.provider)

	model, err = f.ModelByName("openai/gpt-4o")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gpt-4o", fm.model)
	assert.Equal(t, "openai", fm.provider)

	// bare model name is matched against each provider's model list
	model, err = f.ModelByName("claude-sonnet-4-20250514")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "claude-sonnet-4-20250514", fm.model)
	assert.Equal(t, "anthropic", fm.provider)

	// unknown name falls back to the default model
	model, err = f.ModelByName("non-existent-model")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gpt-4o-mini", fm.model)
	assert.Equal(t, "openai", fm.provider)

	model, err = f.ModelByType("ANTHROPIC")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "anthropic", fm.provider)

	_, err = f.ModelByType("UNSUPPORTED")
	assert.EqualError(t, err, "provider not found for type: UNSUPPORTED")
}

func Test_Factory_Caching(t *testing.T) {
	withFakeLLM(t)

	f := llmfactory.New(testConfig())

	model1, err := f.ModelByName("openai/gpt-4o")
	require.NoError(t, err)
	model2, err := f.ModelByName("openai/gpt-4o")
	require.NoError(t, err)
	assert.Same(t, model1, model2)

	model3, err := f.ModelByType("OPENAI")
	require.NoError(t, err)
	model4, err := f.ModelByType("OPENAI")
	require.NoError(t, err)
	assert.Same(t, model3, model4)
}

func Test_Factory_Models(t *testing.T) {
	f := llmfactory.New(testConfig())

	assert.Equal(t, []llmfactory.ModelInfo{
		{Provider: "openai", Type: "OPENAI", Model: "gpt-4o-mini", Default: true},
		{Provider: "openai", Type: "OPENAI", Model: "gpt-4o"},
		{Provider: "anthropic", Type: "ANTHROPIC", Model: "claude-sonnet-4-20250514"},
	}, f.Models())

	assert.Empty(t, llmfactory.New(&llmfactory.Config{}).Models())
}

func Test_Factory_EmptyConfig(t *testing.T) {
	f := llmfactory.New(&llmfactory.Config{})

	_, err := f.DefaultModel()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no providers configured")

	_, err = f.ModelByName("gpt-4o")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func Test_SplitModelName(t *testing.T) {
	provider, model := llmfactory.SplitModelName("openai/gpt-4o-mini")
	assert.Equal(t, "openai", provider)
	assert.Equal(t, "gpt-4o-mini", model)

	provider, model = llmfactory.SplitModelName("gpt-4o-mini")
	assert.Empty(t, provider)
	assert.Equal(t, "gpt-4o-mini", model)
}

func Test_FindModel(t *testing.T) {
	cfg := &llmfactory.ProviderConfig{
		AvailableModels: []string{"gpt-4o", "gpt-4o-mini"},
		DefaultModel:    "gpt-4o-mini",
	}
	assert.Equal(t, "gpt-4o", cfg.FindModel("gpt-4o"))
	assert.Equal(t, "gpt-4o", cfg.FindModel("unknown", "gpt-4o"))
	assert.Equal(t, "gpt-4o-mini", cfg.FindModel("unknown"))
	assert.Equal(t, "gpt-4o-mini", cfg.FindModel())
}

func Test_LoadConfig(t *testing.T) {
	cfg, err := llmfactory.LoadConfig("")
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Providers)
	assert.Equal(t, "openai", cfg.DefaultProvider)

	_, err = llmfactory.LoadConfig("testdata/non-existent.yaml")
	require.Error(t, err)
}
