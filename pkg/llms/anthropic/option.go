package anthropic

import (
	"os"

	"github.com/anthropics/anthropic-sdk-go/option"
)

const tokenEnvVarName = "ANTHROPIC_API_KEY" //nolint:gosec

// Options is a set of options for the Anthropic client.
type Options struct {
	Token      string
	Model      string
	BaseURL    string
	HTTPClient option.HTTPClient

	// If supplied, the 'anthropic-beta' header will be added to the
	// request with the given value.
	BetaHeader string
}

// Option is a function that applies an option to the Options.
type Option func(*Options)

// DefaultOptions returns options populated from the environment.
func DefaultOptions() *Options {
	return &Options{
		Token:   os.Getenv(tokenEnvVarName),
		BaseURL: "https://api.anthropic.com",
	}
}

// WithToken passes the Anthropic API token to the client. If not set,
// the token is read from the ANTHROPIC_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel passes the Anthropic model to the client.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL passes the Anthropic base URL to the client.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client option.HTTPClient) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithBetaHeader adds the Anthropic Beta header to support extended
// options.
func WithBetaHeader(value string) Option {
	return func(opts *Options) {
		opts.BetaHeader = value
	}
}
