// Package router implements the tool-routing state machine that drives one
// agent turn: match relevant tools, decide between answering and refusing,
// then loop model calls and tool executions until the model stops asking
// for tools or the step budget runs out.
package router

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/catalog"
	"github.com/effective-security/reagent/config"
	"github.com/effective-security/reagent/llmfactory"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/pkg/llmutils"
	"github.com/effective-security/reagent/pkg/prompts"
	"github.com/effective-security/reagent/pkg/schema"
	"github.com/effective-security/reagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/reagent", "router")

// DefaultMaxSteps bounds the ModelCall/ToolExecutor loop within one turn.
const DefaultMaxSteps = 10

// ErrNotAssistantMessage reports a programming-contract violation: the
// message under routing inspection is not an assistant message.
var ErrNotAssistantMessage = errors.New("router: expected assistant message")

// Route is the outcome of the routing decision after tool matching.
type Route int

const (
	// RouteModel lets the model answer, bound to the matched tools.
	RouteModel Route = iota
	// RouteRefusal declines the turn without calling the model loop.
	RouteRefusal
)

// Decide is the routing predicate: refuse iff tool-only mode is active
// and no tools matched. Deterministic, total, no external calls.
func Decide(toolOnly bool, matchedTools []string) Route {
	if toolOnly && len(matchedTools) == 0 {
		return RouteRefusal
	}
	return RouteModel
}

// Agent runs the routing state machine. A single Agent serves concurrent
// turns; all per-turn state lives in State.
type Agent struct {
	factory  llmfactory.Factory
	catalog  catalog.Provider
	callback Callback
	maxSteps int
}

// Option configures an Agent.
type Option func(*Agent)

// WithCallback sets the event callback.
func WithCallback(cb Callback) Option {
	return func(a *Agent) {
		a.callback = cb
	}
}

// WithMaxSteps sets the per-turn step budget.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// New creates an Agent with injected collaborators. Each call returns a
// fresh instance; there is no process-wide singleton.
func New(factory llmfactory.Factory, cat catalog.Provider, opts ...Option) *Agent {
	a := &Agent{
		factory:  factory,
		catalog:  cat,
		callback: noop{},
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunOption configures a single turn.
type RunOption func(*runOptions)

type runOptions struct {
	streamingFunc func(ctx context.Context, chunk []byte) error
}

// WithStreamingFunc streams content chunks of model responses as they are
// generated.
func WithStreamingFunc(fn func(ctx context.Context, chunk []byte) error) RunOption {
	return func(o *runOptions) {
		o.streamingFunc = fn
	}
}

// Run executes one turn over the given conversation and returns the final
// state. The input messages are not mutated.
func (a *Agent) Run(ctx context.Context, cfg config.Config, messages []llms.Message, opts ...RunOption) (*State, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	state := &State{
		Messages: slices.Clone(messages),
	}
	input := llmutils.FindLastUserQuestion(state.Messages)
	a.callback.OnTurnStart(ctx, input)

	model, err := a.factory.ModelByName(cfg.Model)
	if err != nil {
		a.callback.OnTurnError(ctx, err)
		return nil, err
	}

	liveTools, err := a.catalog.GetTools(ctx, cfg)
	if err != nil {
		a.callback.OnTurnError(ctx, err)
		return nil, err
	}

	match := matchTools(ctx, model, input, liveTools)
	if match.FailedOpen {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_matching_failed_open",
			"err", match.Err.Error(),
		)
	}
	state.MatchedTools = match.Tools
	a.callback.OnToolsMatched(ctx, match.Tools, match.FailedOpen)

	if Decide(cfg.ToolOnly, state.MatchedTools) == RouteRefusal {
		if err := a.refuse(ctx, model, input, liveTools, state); err != nil {
			a.callback.OnTurnError(ctx, err)
			return nil, err
		}
		a.callback.OnTurnEnd(ctx, state)
		return state, nil
	}

	toolDefs, err := toToolDefs(boundTools(liveTools, state.MatchedTools))
	if err != nil {
		a.callback.OnTurnError(ctx, err)
		return nil, err
	}

	for step := 0; step < a.maxSteps; step++ {
		state.IsLastStep = step == a.maxSteps-1

		if err := a.callModel(ctx, model, cfg, toolDefs, state, ro.streamingFunc); err != nil {
			a.callback.OnTurnError(ctx, err)
			return nil, err
		}
		state.Steps++

		last := state.LastMessage()
		if last == nil {
			err := errors.WithMessage(ErrNotAssistantMessage, "empty state")
			a.callback.OnTurnError(ctx, err)
			return nil, err
		}
		if last.Role != llms.RoleAI {
			err := errors.WithMessagef(ErrNotAssistantMessage, "got %v", last.Role)
			a.callback.OnTurnError(ctx, err)
			return nil, err
		}

		calls := last.ToolCalls()
		if len(calls) == 0 {
			break
		}

		toolMsgs := a.executeToolCalls(ctx, liveTools, calls)
		state.Messages = append(state.Messages, toolMsgs...)
	}

	a.callback.OnTurnEnd(ctx, state)
	return state, nil
}

// callModel invokes the model with a freshly rendered system message and
// the full prior history, bound to the exposed tools. On the last budgeted
// step a response that still asks for tools is replaced by a fixed apology
// carrying the original response identifier, with its tool calls dropped.
func (a *Agent) callModel(ctx context.Context, model llms.Model, cfg config.Config, toolDefs []llms.Tool, state *State, streamingFunc func(ctx context.Context, chunk []byte) error) error {
	now := time.Now().UTC().Format(time.RFC3339)
	sysTemplate := prompts.PromptTemplate{Template: cfg.SystemPrompt}
	systemPrompt, err := sysTemplate.FormatPrompt(map[string]any{
		"system_time":  now,
		"current_time": now,
	})
	if err != nil {
		return err
	}

	payload := make([]llms.Message, 0, len(state.Messages)+1)
	payload = append(payload, llms.MessageFromTextParts(llms.RoleSystem, systemPrompt))
	payload = append(payload, state.Messages...)

	callOpts := []llms.CallOption{
		llms.WithTools(toolDefs),
	}
	if streamingFunc != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(streamingFunc))
	}

	a.callback.OnModelCallStart(ctx, model, payload)
	resp, err := model.GenerateContent(ctx, payload, callOpts...)
	if err != nil {
		return errors.WithMessage(err, "router: model call failed")
	}
	if len(resp.Choices) == 0 {
		return errors.New("router: model returned no choices")
	}
	a.callback.OnModelCallEnd(ctx, model, resp)

	choice := resp.Choices[0]
	responseID, _ := choice.GenerationInfo["ID"].(string)

	if state.IsLastStep && len(choice.ToolCalls) > 0 {
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "step_budget_exhausted",
			"dropped_tool_calls", len(choice.ToolCalls),
		)
		msg := llms.MessageFromTextParts(llms.RoleAI, ApologyMessage)
		msg.ID = responseID
		state.Messages = append(state.Messages, msg)
		return nil
	}

	var parts []llms.ContentPart
	if choice.Content != "" {
		parts = append(parts, llms.TextPart(choice.Content))
	}
	for _, tc := range choice.ToolCalls {
		parts = append(parts, tc)
	}
	if len(parts) == 0 {
		parts = append(parts, llms.TextPart(""))
	}
	msg := llms.MessageFromParts(llms.RoleAI, parts...)
	msg.ID = responseID
	state.Messages = append(state.Messages, msg)
	return nil
}

// refuse produces the terminal decline message. A model failure here is a
// hard failure of the turn; there is no fallback path.
func (a *Agent) refuse(ctx context.Context, model llms.Model, input string, liveTools []tools.ITool, state *State) error {
	prompt, err := refusalPrompt.FormatPrompt(map[string]any{
		"user_question":   input,
		"capability_info": tools.DescribeLines(liveTools...),
	})
	if err != nil {
		return err
	}

	resp, err := model.GenerateContent(ctx,
		[]llms.Message{llms.MessageFromTextParts(llms.RoleHuman, prompt)})
	if err != nil {
		return errors.WithMessage(err, "router: refusal call failed")
	}
	if len(resp.Choices) == 0 {
		return errors.New("router: refusal returned no choices")
	}

	content := resp.Choices[0].Content
	msg := llms.MessageFromTextParts(llms.RoleAI, content)
	msg.ID, _ = resp.Choices[0].GenerationInfo["ID"].(string)
	state.Messages = append(state.Messages, msg)
	state.Refused = true
	a.callback.OnRefusal(ctx, content)
	return nil
}

// boundTools returns the catalog subset the model is exposed to: the
// matched tools when any matched, the full catalog otherwise.
func boundTools(liveTools []tools.ITool, matched []string) []tools.ITool {
	if len(matched) == 0 {
		return liveTools
	}
	want := make(map[string]bool, len(matched))
	for _, name := range matched {
		want[keyOf(name)] = true
	}
	var bound []tools.ITool
	for _, tool := range liveTools {
		if want[keyOf(tool.Name())] {
			bound = append(bound, tool)
		}
	}
	return bound
}

func toToolDefs(list []tools.ITool) ([]llms.Tool, error) {
	defs := make([]llms.Tool, 0, len(list))
	for _, tool := range list {
		params, err := schema.FromAny(tool.Parameters())
		if err != nil {
			return nil, errors.WithMessagef(err, "router: invalid parameters for tool %q", tool.Name())
		}
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  params,
			},
		})
	}
	return defs, nil
}

func keyOf(name string) string {
	return strings.ToLower(name)
}

// noop discards all events.
type noop struct{}

func (noop) OnTurnStart(context.Context, string)                               {}
func (noop) OnTurnEnd(context.Context, *State)                                 {}
func (noop) OnTurnError(context.Context, error)                                {}
func (noop) OnToolsMatched(context.Context, []string, bool)                    {}
func (noop) OnRefusal(context.Context, string)                                 {}
func (noop) OnModelCallStart(context.Context, llms.Model, []llms.Message)      {}
func (noop) OnModelCallEnd(context.Context, llms.Model, *llms.ContentResponse) {}
func (noop) OnToolNotFound(context.Context, string)                            {}
func (noop) OnToolStart(context.Context, tools.ITool, string)                  {}
func (noop) OnToolEnd(context.Context, tools.ITool, string, string)            {}
func (noop) OnToolError(context.Context, tools.ITool, string, error)           {}
