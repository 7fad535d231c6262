package router_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/config"
	"github.com/effective-security/reagent/llmfactory"
	"github.com/effective-security/reagent/mocks/mockllms"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/router"
	"github.com/effective-security/reagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeFactory struct {
	model llms.Model
}

func (f fakeFactory) DefaultModel() (llms.Model, error)      { return f.model, nil }
func (f fakeFactory) ModelByType(string) (llms.Model, error) { return f.model, nil }
func (f fakeFactory) ModelByName(string) (llms.Model, error) { return f.model, nil }
func (f fakeFactory) Models() []llmfactory.ModelInfo         { return nil }

type fakeCatalog struct {
	tools []tools.ITool
}

func (f fakeCatalog) GetTools(ctx context.Context, cfg config.Config) ([]tools.ITool, error) {
	return f.tools, nil
}

type fakeTool struct {
	name        string
	description string
	call        func(ctx context.Context, input string) (string, error)
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return t.description }
func (t *fakeTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	}
}
func (t *fakeTool) Call(ctx context.Context, input string) (string, error) {
	return t.call(ctx, input)
}

func userMessages(text string) []llms.Message {
	return []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, text)}
}

func Test_Decide(t *testing.T) {
	tcases := []struct {
		name     string
		toolOnly bool
		matched  []string
		exp      router.Route
	}{
		{"tool_only_no_match", true, nil, router.RouteRefusal},
		{"tool_only_with_match", true, []string{"search"}, router.RouteModel},
		{"open_no_match", false, nil, router.RouteModel},
		{"open_with_match", false, []string{"search"}, router.RouteModel},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.exp, router.Decide(tc.toolOnly, tc.matched))
		})
	}
}

func Test_Agent_RoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	echo := &fakeTool{
		name:        "echo",
		description: "Echoes the input back.",
		call: func(ctx context.Context, input string) (string, error) {
			return "echoed: " + input, nil
		},
	}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GetName().Return("test-model").AnyTimes()

	calls := 0
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			calls++
			switch calls {
			case 1:
				// tool matching
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{Content: `{"match_tools": ["echo"]}`},
				}}, nil
			case 2:
				// model asks for one tool call
				require.Equal(t, llms.RoleSystem, messages[0].Role)
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{
						ToolCalls: []llms.ToolCall{{
							ID:   "call_1",
							Type: "function",
							FunctionCall: &llms.FunctionCall{
								Name:      "echo",
								Arguments: `{"query":"hi"}`,
							},
						}},
						GenerationInfo: map[string]any{"ID": "resp_1"},
					},
				}}, nil
			default:
				// model answers from the tool result
				last := messages[len(messages)-1]
				require.Equal(t, llms.RoleTool, last.Role)
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{
						Content:        "done",
						GenerationInfo: map[string]any{"ID": "resp_2"},
					},
				}}, nil
			}
		}).Times(3)

	agent := router.New(fakeFactory{model: mockLLM}, fakeCatalog{tools: []tools.ITool{echo}})

	state, err := agent.Run(context.Background(), config.Default(), userMessages("please echo hi"))
	require.NoError(t, err)

	assert.Equal(t, []string{"echo"}, state.MatchedTools)
	assert.Equal(t, 2, state.Steps)
	assert.False(t, state.Refused)
	assert.Equal(t, "done", state.FinalContent())

	// history: human, assistant(tool call), tool, assistant(answer)
	require.Len(t, state.Messages, 4)
	assert.Equal(t, llms.RoleHuman, state.Messages[0].Role)
	assert.Equal(t, llms.RoleAI, state.Messages[1].Role)
	assert.Equal(t, llms.RoleTool, state.Messages[2].Role)
	assert.Equal(t, llms.RoleAI, state.Messages[3].Role)

	toolResp, ok := state.Messages[2].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	assert.Equal(t, "call_1", toolResp.ToolCallID)
	assert.Equal(t, `echoed: {"query":"hi"}`, toolResp.Content)
	assert.False(t, toolResp.IsError)
}

func Test_Agent_LastStepSubstitution(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	echo := &fakeTool{
		name:        "echo",
		description: "Echoes the input back.",
		call: func(ctx context.Context, input string) (string, error) {
			return input, nil
		},
	}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GetName().Return("test-model").AnyTimes()

	calls := 0
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			calls++
			if calls == 1 {
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{Content: `{"match_tools": ["echo"]}`},
				}}, nil
			}
			// the model keeps asking for tools on every step
			return &llms.ContentResponse{Choices: []*llms.ContentChoice{
				{
					ToolCalls: []llms.ToolCall{{
						ID:   "call_loop",
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      "echo",
							Arguments: `{}`,
						},
					}},
					GenerationInfo: map[string]any{"ID": "resp_budget"},
				},
			}}, nil
		}).Times(2)

	agent := router.New(fakeFactory{model: mockLLM}, fakeCatalog{tools: []tools.ITool{echo}},
		router.WithMaxSteps(1))

	state, err := agent.Run(context.Background(), config.Default(), userMessages("loop forever"))
	require.NoError(t, err)

	last := state.LastMessage()
	require.NotNil(t, last)
	assert.Equal(t, llms.RoleAI, last.Role)
	assert.Equal(t, router.ApologyMessage, last.GetContent())
	assert.Empty(t, last.ToolCalls(), "tool calls must be dropped on budget exhaustion")
	assert.Equal(t, "resp_budget", last.ID, "response identifier must be preserved")
}

func Test_Agent_ToolErrorIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	good := &fakeTool{
		name:        "good",
		description: "Always succeeds.",
		call: func(ctx context.Context, input string) (string, error) {
			return "ok", nil
		},
	}
	bad := &fakeTool{
		name:        "bad",
		description: "Always fails.",
		call: func(ctx context.Context, input string) (string, error) {
			return "", errors.New("boom")
		},
	}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GetName().Return("test-model").AnyTimes()

	calls := 0
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			calls++
			switch calls {
			case 1:
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{Content: `{"match_tools": ["good", "bad"]}`},
				}}, nil
			case 2:
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{
						ToolCalls: []llms.ToolCall{
							{ID: "call_good", Type: "function", FunctionCall: &llms.FunctionCall{Name: "good", Arguments: `{}`}},
							{ID: "call_bad", Type: "function", FunctionCall: &llms.FunctionCall{Name: "bad", Arguments: `{}`}},
						},
					},
				}}, nil
			default:
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{Content: "finished"},
				}}, nil
			}
		}).Times(3)

	agent := router.New(fakeFactory{model: mockLLM}, fakeCatalog{tools: []tools.ITool{good, bad}})

	state, err := agent.Run(context.Background(), config.Default(), userMessages("run both"))
	require.NoError(t, err)

	var responses []llms.ToolCallResponse
	for _, msg := range state.Messages {
		if msg.Role != llms.RoleTool {
			continue
		}
		resp, ok := msg.Parts[0].(llms.ToolCallResponse)
		require.True(t, ok)
		responses = append(responses, resp)
	}
	require.Len(t, responses, 2)

	byID := map[string]llms.ToolCallResponse{}
	for _, r := range responses {
		byID[r.ToolCallID] = r
	}
	assert.Equal(t, "ok", byID["call_good"].Content)
	assert.False(t, byID["call_good"].IsError)
	assert.True(t, byID["call_bad"].IsError)
	assert.Contains(t, byID["call_bad"].Content, "Tool call failed")
	assert.Contains(t, byID["call_bad"].Content, "boom")
}

func Test_Agent_Refusal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	search := &fakeTool{
		name:        "web_search",
		description: "Searches the web.",
		call: func(ctx context.Context, input string) (string, error) {
			return "", nil
		},
	}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GetName().Return("test-model").AnyTimes()

	var refusalPrompt string
	calls := 0
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			calls++
			if calls == 1 {
				// nothing matched
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{Content: `{"match_tools": []}`},
				}}, nil
			}
			refusalPrompt = messages[0].GetContent()
			return &llms.ContentResponse{Choices: []*llms.ContentChoice{
				{Content: "I can only help with web searches."},
			}}, nil
		}).Times(2)

	agent := router.New(fakeFactory{model: mockLLM}, fakeCatalog{tools: []tools.ITool{search}})

	cfg := config.Default()
	cfg.ToolOnly = true

	state, err := agent.Run(context.Background(), cfg, userMessages("write me a poem"))
	require.NoError(t, err)

	assert.True(t, state.Refused)
	assert.Equal(t, "I can only help with web searches.", state.FinalContent())
	assert.Equal(t, 0, state.Steps, "refusal bypasses the model loop")

	// the rendered capability list and the original question reach the model
	assert.Contains(t, refusalPrompt, "- web_search: Searches the web.")
	assert.Contains(t, refusalPrompt, "write me a poem")
}

func Test_Agent_Refusal_EmptyCatalog(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GetName().Return("test-model").AnyTimes()

	// no matcher call happens with an empty catalog, only the refusal call
	var refusalPrompt string
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			refusalPrompt = messages[0].GetContent()
			return &llms.ContentResponse{Choices: []*llms.ContentChoice{
				{Content: "I have no tools available right now."},
			}}, nil
		})

	agent := router.New(fakeFactory{model: mockLLM}, fakeCatalog{})

	cfg := config.Default()
	cfg.ToolOnly = true

	state, err := agent.Run(context.Background(), cfg, userMessages("anything"))
	require.NoError(t, err)

	assert.True(t, state.Refused)
	// the capability section is present, rendered empty rather than omitted
	assert.Contains(t, refusalPrompt, "Your capabilities:\n\n")
}

func Test_Agent_RefusalFailurePropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	search := &fakeTool{
		name:        "web_search",
		description: "Searches the web.",
		call: func(ctx context.Context, input string) (string, error) {
			return "", nil
		},
	}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GetName().Return("test-model").AnyTimes()

	calls := 0
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			calls++
			if calls == 1 {
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{Content: `{"match_tools": []}`},
				}}, nil
			}
			return nil, errors.New("provider down")
		}).Times(2)

	agent := router.New(fakeFactory{model: mockLLM}, fakeCatalog{tools: []tools.ITool{search}})

	cfg := config.Default()
	cfg.ToolOnly = true

	_, err := agent.Run(context.Background(), cfg, userMessages("anything"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "provider down"))
}

func Test_Agent_UnknownToolCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	echo := &fakeTool{
		name:        "echo",
		description: "Echoes the input back.",
		call: func(ctx context.Context, input string) (string, error) {
			return input, nil
		},
	}

	mockLLM := mockllms.NewMockModel(ctrl)
	mockLLM.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	mockLLM.EXPECT().GetName().Return("test-model").AnyTimes()

	calls := 0
	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			calls++
			switch calls {
			case 1:
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{Content: `{"match_tools": []}`},
				}}, nil
			case 2:
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{
						ToolCalls: []llms.ToolCall{{
							ID:   "call_missing",
							Type: "function",
							FunctionCall: &llms.FunctionCall{
								Name:      "no_such_tool",
								Arguments: `{}`,
							},
						}},
					},
				}}, nil
			default:
				return &llms.ContentResponse{Choices: []*llms.ContentChoice{
					{Content: "recovered"},
				}}, nil
			}
		}).Times(3)

	agent := router.New(fakeFactory{model: mockLLM}, fakeCatalog{tools: []tools.ITool{echo}})

	state, err := agent.Run(context.Background(), config.Default(), userMessages("call the wrong tool"))
	require.NoError(t, err)

	var toolMsg *llms.Message
	for i := range state.Messages {
		if state.Messages[i].Role == llms.RoleTool {
			toolMsg = &state.Messages[i]
		}
	}
	require.NotNil(t, toolMsg)
	resp := toolMsg.Parts[0].(llms.ToolCallResponse)
	assert.Equal(t, "call_missing", resp.ToolCallID)
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Content, "not found")
	assert.Equal(t, "recovered", state.FinalContent())
}
