package mcptools

import (
	"context"
	"encoding/json"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/pkg/llmutils"
	"github.com/effective-security/reagent/tools"
	"github.com/effective-security/xlog"
	mcpclient "github.com/metoro-io/mcp-golang"
	mcphttp "github.com/metoro-io/mcp-golang/transport/http"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/reagent", "mcptools")

// ServerConfig describes how to reach a single MCP tool server.
type ServerConfig struct {
	URL       string            `json:"url"`
	Transport string            `json:"transport,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// ParseServerConfigs parses the JSON mapping of server name to config.
// An empty string yields no servers.
func ParseServerConfigs(configJSON string) (map[string]ServerConfig, error) {
	configJSON = strings.TrimSpace(configJSON)
	if configJSON == "" {
		return nil, nil
	}
	var cfgs map[string]ServerConfig
	if err := json.Unmarshal([]byte(configJSON), &cfgs); err != nil {
		return nil, errors.Wrap(err, "mcptools: invalid server configs")
	}
	return cfgs, nil
}

// Dialer connects to an MCP server and lists its tools. It is a variable so
// tests can substitute a fake without a live server.
type Dialer interface {
	ListTools(ctx context.Context, name string, cfg ServerConfig) ([]tools.ITool, error)
}

// LoadTools discovers tools from every configured MCP server. A server that
// cannot be reached is logged and skipped; the rest of the catalog is still
// returned. Zero servers or zero tools is not an error.
func LoadTools(ctx context.Context, configJSON string, dialer Dialer) ([]tools.ITool, error) {
	cfgs, err := ParseServerConfigs(configJSON)
	if err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = &httpDialer{}
	}

	// Dial servers in name order so the assembled catalog order is
	// stable across runs.
	names := slices.Sorted(maps.Keys(cfgs))

	var list []tools.ITool
	for _, name := range names {
		serverTools, err := dialer.ListTools(ctx, name, cfgs[name])
		if err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "mcp_server_unavailable",
				"server", name,
				"err", err.Error(),
			)
			continue
		}
		list = append(list, serverTools...)
	}
	return list, nil
}

type httpDialer struct{}

func (d *httpDialer) ListTools(ctx context.Context, name string, cfg ServerConfig) ([]tools.ITool, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "mcptools: invalid URL for server %s", name)
	}
	endpoint := u.Path
	if endpoint == "" {
		endpoint = "/"
	}

	transport := mcphttp.NewHTTPClientTransport(endpoint)
	transport.WithBaseURL(u.Scheme + "://" + u.Host)
	for k, v := range cfg.Headers {
		transport.WithHeader(k, v)
	}

	client := mcpclient.NewClient(transport)
	if _, err := client.Initialize(ctx); err != nil {
		return nil, errors.Wrapf(err, "mcptools: failed to initialize server %s", name)
	}

	resp, err := client.ListTools(ctx, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "mcptools: failed to list tools on server %s", name)
	}

	list := make([]tools.ITool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		description := ""
		if t.Description != nil {
			description = *t.Description
		}
		list = append(list, &remoteTool{
			client:      client,
			server:      name,
			name:        t.Name,
			description: description,
			funcParams:  t.InputSchema,
		})
	}
	return list, nil
}

// remoteTool adapts a discovered MCP tool into the agent's tool interface.
type remoteTool struct {
	client      *mcpclient.Client
	server      string
	name        string
	description string
	funcParams  any
}

var _ tools.ITool = (*remoteTool)(nil)

func (t *remoteTool) Name() string {
	return t.name
}

func (t *remoteTool) Description() string {
	return t.description
}

func (t *remoteTool) Parameters() any {
	return t.funcParams
}

func (t *remoteTool) Call(ctx context.Context, input string) (string, error) {
	args := map[string]any{}
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &args); err != nil {
			return "", errors.Wrap(err, "failed to unmarshal input")
		}
	}

	resp, err := t.client.CallTool(ctx, t.name, args)
	if err != nil {
		return "", errors.Wrapf(err, "mcptools: tool %s failed on server %s", t.name, t.server)
	}

	var b strings.Builder
	for _, content := range resp.Content {
		if content.TextContent != nil {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(content.TextContent.Text)
		}
	}
	return b.String(), nil
}
