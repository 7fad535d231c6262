package openai

import (
	"net/http"
	"os"

	"github.com/effective-security/reagent/pkg/llms"
	goopenai "github.com/sashabaranov/go-openai"
)

const (
	tokenEnvVarName   = "OPENAI_API_KEY" //nolint:gosec
	baseURLEnvVarName = "OPENAI_BASE_URL"
)

// APIType selects the wire dialect of the endpoint.
type APIType string

const (
	APITypeOpenAI     APIType = "OPENAI"
	APITypeAzure      APIType = "AZURE"
	APITypePerplexity APIType = "PERPLEXITY"
)

// Options is a set of options for the OpenAI client.
type Options struct {
	Token      string
	Model      string
	BaseURL    string
	APIType    APIType
	APIVersion string
	HTTPClient *http.Client

	providerType llms.ProviderType
}

// Option is a function that applies an option to the Options.
type Option func(*Options)

// DefaultOptions returns options populated from the environment.
func DefaultOptions() *Options {
	return &Options{
		Token:        os.Getenv(tokenEnvVarName),
		BaseURL:      os.Getenv(baseURLEnvVarName),
		APIType:      APITypeOpenAI,
		providerType: llms.ProviderOpenAI,
	}
}

func (o *Options) clientConfig() goopenai.ClientConfig {
	var cfg goopenai.ClientConfig
	switch o.APIType {
	case APITypeAzure:
		cfg = goopenai.DefaultAzureConfig(o.Token, o.BaseURL)
		if o.APIVersion != "" {
			cfg.APIVersion = o.APIVersion
		}
	default:
		cfg = goopenai.DefaultConfig(o.Token)
		if o.BaseURL != "" {
			cfg.BaseURL = o.BaseURL
		}
	}
	if o.HTTPClient != nil {
		cfg.HTTPClient = o.HTTPClient
	}
	return cfg
}

// WithToken passes the API token. Defaults to the OPENAI_API_KEY
// environment variable.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel passes the model name.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL passes a custom endpoint base URL.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithAPIType selects the endpoint dialect.
func WithAPIType(apiType APIType) Option {
	return func(opts *Options) {
		opts.APIType = apiType
		switch apiType {
		case APITypeAzure:
			opts.providerType = llms.ProviderAzure
		case APITypePerplexity:
			opts.providerType = llms.ProviderPerplexity
			if opts.BaseURL == "" || opts.BaseURL == os.Getenv(baseURLEnvVarName) {
				opts.BaseURL = "https://api.perplexity.ai"
			}
		default:
			opts.providerType = llms.ProviderOpenAI
		}
	}
}

// WithAPIVersion passes the API version for Azure endpoints.
func WithAPIVersion(apiVersion string) Option {
	return func(opts *Options) {
		opts.APIVersion = apiVersion
	}
}

// WithHTTPClient passes a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}
