// Package config resolves the agent's runtime configuration from three
// layered sources, highest priority first: an explicit per-call override,
// a process environment variable named by the upper-cased field name, and
// a compiled-in default.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/reagent", "config")

// DefaultSystemPrompt is the compiled-in system prompt. The {system_time}
// placeholder is substituted with the current UTC timestamp on every call.
const DefaultSystemPrompt = `You are a helpful AI assistant.

System time: {system_time}`

const (
	DefaultModel            = "openai/gpt-4o-mini"
	DefaultMaxSearchResults = 10
)

// Config defines all configurable parameters for the agent. It is resolved
// per call and immutable for the duration of one request.
type Config struct {
	// SystemPrompt sets the context and behavior for the agent.
	SystemPrompt string `json:"system_prompt"`
	// Model is the name of the language model for the agent's main
	// interactions, in the form: provider/model-name.
	Model string `json:"model"`
	// MaxSearchResults is the maximum number of search results to return
	// for each search query.
	MaxSearchResults int `json:"max_search_results"`
	// ToolOnly forces the agent to rely completely on tools for answering
	// questions. When true and no tool matches, the agent refuses instead
	// of answering from its own knowledge.
	ToolOnly bool `json:"tool_only"`
	// EnableWebSearch toggles the web search tool.
	EnableWebSearch bool `json:"enable_web_search"`
	// MCPServerConfigs is a JSON string naming the MCP servers to discover
	// tools from and their connection settings.
	MCPServerConfigs string `json:"mcp_server_configs"`
	// IncludeDomains narrows web search to the given domains.
	// Per-call only; no environment override.
	IncludeDomains []string `json:"include_domains,omitempty"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		SystemPrompt:     DefaultSystemPrompt,
		Model:            DefaultModel,
		MaxSearchResults: DefaultMaxSearchResults,
		ToolOnly:         false,
		EnableWebSearch:  true,
	}
}

// Overrides is the raw per-call override mapping, as it arrives from the
// transport layer. Unknown keys are ignored.
type Overrides map[string]any

// Resolve layers the per-call overrides over environment variables over
// compiled-in defaults.
func Resolve(overrides Overrides) Config {
	cfg := Default()

	cfg.SystemPrompt = resolveString(overrides, "system_prompt", cfg.SystemPrompt)
	cfg.Model = resolveString(overrides, "model", cfg.Model)
	cfg.MaxSearchResults = resolveInt(overrides, "max_search_results", cfg.MaxSearchResults)
	cfg.ToolOnly = resolveBool(overrides, "tool_only", cfg.ToolOnly)
	cfg.EnableWebSearch = resolveBool(overrides, "enable_web_search", cfg.EnableWebSearch)
	cfg.MCPServerConfigs = resolveString(overrides, "mcp_server_configs", cfg.MCPServerConfigs)
	cfg.IncludeDomains = resolveStrings(overrides, "include_domains", cfg.IncludeDomains)

	return cfg
}

// EnvVarName maps a snake_case field name to its environment variable.
func EnvVarName(field string) string {
	return strings.ToUpper(field)
}

// ParseBool parses lenient boolean text. The second return reports whether
// the text was recognized.
func ParseBool(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}

func resolveString(overrides Overrides, field, def string) string {
	if v, ok := overrides[field]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if env := os.Getenv(EnvVarName(field)); env != "" {
		return env
	}
	return def
}

func resolveInt(overrides Overrides, field string, def int) int {
	if v, ok := overrides[field]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			// JSON numbers decode as float64
			return int(n)
		case string:
			if parsed, err := strconv.Atoi(n); err == nil {
				return parsed
			}
		}
	}
	if env := os.Getenv(EnvVarName(field)); env != "" {
		parsed, err := strconv.Atoi(env)
		if err != nil {
			logger.KV(xlog.WARNING,
				"status", "invalid_env_value",
				"var", EnvVarName(field),
				"value", env,
			)
			return def
		}
		return parsed
	}
	return def
}

func resolveBool(overrides Overrides, field string, def bool) bool {
	if v, ok := overrides[field]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, ok := ParseBool(b); ok {
				return parsed
			}
		}
	}
	if env := os.Getenv(EnvVarName(field)); env != "" {
		parsed, ok := ParseBool(env)
		if !ok {
			logger.KV(xlog.WARNING,
				"status", "invalid_env_value",
				"var", EnvVarName(field),
				"value", env,
			)
			return def
		}
		return parsed
	}
	return def
}

func resolveStrings(overrides Overrides, field string, def []string) []string {
	v, ok := overrides[field]
	if !ok {
		return def
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return def
}
