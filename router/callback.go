package router

import (
	"context"

	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/tools"
)

// Callback receives events as a turn moves through the state machine.
// Implementations must be safe for concurrent use across turns.
type Callback interface {
	tools.Callback

	OnTurnStart(ctx context.Context, input string)
	OnTurnEnd(ctx context.Context, state *State)
	OnTurnError(ctx context.Context, err error)
	// OnToolsMatched reports the validated matched set. failedOpen is set
	// when matching failed and the full catalog was substituted.
	OnToolsMatched(ctx context.Context, matched []string, failedOpen bool)
	OnRefusal(ctx context.Context, content string)
	OnModelCallStart(ctx context.Context, llm llms.Model, payload []llms.Message)
	OnModelCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, name string)
}
