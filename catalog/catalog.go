// Package catalog assembles the live tool catalog for one call: the
// statically enabled web-search capability plus the dynamically discovered
// tools from the configured MCP servers.
package catalog

import (
	"context"

	"github.com/effective-security/reagent/config"
	"github.com/effective-security/reagent/tools"
	"github.com/effective-security/reagent/tools/mcptools"
	"github.com/effective-security/reagent/tools/tavily"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/reagent", "catalog")

// Provider returns the tools available for one call, resolved from the
// per-call configuration. Implementations must tolerate zero tools.
type Provider interface {
	GetTools(ctx context.Context, cfg config.Config) ([]tools.ITool, error)
}

type provider struct {
	dialer mcptools.Dialer
}

// NewProvider creates the default catalog provider. dialer may be nil to
// use the HTTP MCP transport.
func NewProvider(dialer mcptools.Dialer) Provider {
	return &provider{dialer: dialer}
}

func (p *provider) GetTools(ctx context.Context, cfg config.Config) ([]tools.ITool, error) {
	var list []tools.ITool

	if cfg.EnableWebSearch {
		search, err := tavily.New()
		if err != nil {
			// Web search is optional capability; a missing API key must
			// not take down the rest of the catalog.
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "web_search_unavailable",
				"err", err.Error(),
			)
		} else {
			search.WithMaxResults(cfg.MaxSearchResults)
			if len(cfg.IncludeDomains) > 0 {
				search.WithIncludeDomains(cfg.IncludeDomains...)
			}
			list = append(list, search)
		}
	}

	mcpTools, err := mcptools.LoadTools(ctx, cfg.MCPServerConfigs, p.dialer)
	if err != nil {
		return nil, err
	}
	list = append(list, mcpTools...)

	logger.ContextKV(ctx, xlog.DEBUG, "status", "loaded_tools", "count", len(list))

	return list, nil
}
