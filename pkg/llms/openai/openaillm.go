package openai

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/pkg/llms"
	goopenai "github.com/sashabaranov/go-openai"
)

var (
	ErrEmptyResponse = errors.New("openai: no response")
	ErrMissingToken  = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")
)

// LLM is an OpenAI-compatible chat model.
type LLM struct {
	client  *goopenai.Client
	options *Options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI-compatible LLM. The same client serves any
// endpoint speaking the chat-completions protocol (OpenAI, Azure,
// Perplexity, self-hosted gateways) via WithBaseURL and WithAPIType.
func New(opts ...Option) (*LLM, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.Token == "" {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	return &LLM{
		client:  goopenai.NewClientWithConfig(options.clientConfig()),
		options: options,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.options.providerType
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: o.options.Model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs, err := toChatMessages(messages)
	if err != nil {
		return nil, err
	}

	req := goopenai.ChatCompletionRequest{
		Model:       opts.Model,
		Messages:    chatMsgs,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
		MaxTokens:   opts.MaxTokens,
		Stop:        opts.StopWords,
		Tools:       toTools(opts.Tools),
	}
	if opts.Seed != 0 {
		seed := opts.Seed
		req.Seed = &seed
	}
	if opts.ToolChoice != nil {
		req.ToolChoice = opts.ToolChoice
	}
	if opts.ResponseFormat != nil {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatType(opts.ResponseFormat.Type),
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   opts.ResponseFormat.JSONSchema.Name,
				Strict: opts.ResponseFormat.JSONSchema.Strict,
				Schema: rawSchema{v: opts.ResponseFormat.JSONSchema.Schema},
			},
		}
	}

	if opts.StreamingFunc != nil {
		return o.generateStreamingContent(ctx, req, opts.StreamingFunc)
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, len(resp.Choices))
	for i, choice := range resp.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    choice.Message.Content,
			StopReason: string(choice.FinishReason),
			ToolCalls:  fromToolCalls(choice.Message.ToolCalls),
			GenerationInfo: map[string]any{
				"InputTokens":  resp.Usage.PromptTokens,
				"OutputTokens": resp.Usage.CompletionTokens,
				"TotalTokens":  resp.Usage.TotalTokens,
				"ID":           resp.ID,
			},
		}
	}

	return &llms.ContentResponse{Choices: choices}, nil
}

func (o *LLM) generateStreamingContent(ctx context.Context, req goopenai.ChatCompletionRequest, streamingFunc func(context.Context, []byte) error) (*llms.ContentResponse, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion stream")
	}
	defer stream.Close()

	var content strings.Builder
	var stopReason string
	var responseID string
	toolCalls := map[int]*llms.ToolCall{}
	maxIndex := -1

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "openai: streaming error")
		}
		if responseID == "" {
			responseID = chunk.ID
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			stopReason = string(choice.FinishReason)
		}
		if choice.Delta.Content != "" {
			content.WriteString(choice.Delta.Content)
			if err := streamingFunc(ctx, []byte(choice.Delta.Content)); err != nil {
				return nil, errors.Wrap(err, "openai: streaming function error")
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			acc := toolCalls[index]
			if acc == nil {
				acc = &llms.ToolCall{
					Type:         "function",
					FunctionCall: &llms.FunctionCall{},
				}
				toolCalls[index] = acc
			}
			if index > maxIndex {
				maxIndex = index
			}
			if tc.ID != "" {
				acc.ID = tc.ID
			}
			if tc.Function.Name != "" {
				acc.FunctionCall.Name = tc.Function.Name
			}
			acc.FunctionCall.Arguments += tc.Function.Arguments
		}
	}

	choice := &llms.ContentChoice{
		Content:    content.String(),
		StopReason: stopReason,
		GenerationInfo: map[string]any{
			"ID": responseID,
		},
	}
	for i := 0; i <= maxIndex; i++ {
		if tc := toolCalls[i]; tc != nil {
			choice.ToolCalls = append(choice.ToolCalls, *tc)
		}
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func toChatMessages(messages []llms.Message) ([]goopenai.ChatCompletionMessage, error) {
	chatMsgs := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, mc := range messages {
		msg := goopenai.ChatCompletionMessage{}
		switch mc.Role {
		case llms.RoleSystem:
			msg.Role = goopenai.ChatMessageRoleSystem
			msg.Content = mc.GetContent()
		case llms.RoleHuman:
			msg.Role = goopenai.ChatMessageRoleUser
			msg.Content = mc.GetContent()
		case llms.RoleAI:
			msg.Role = goopenai.ChatMessageRoleAssistant
			for _, part := range mc.Parts {
				switch p := part.(type) {
				case llms.TextContent:
					msg.Content += p.Text
				case llms.ToolCall:
					msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
						ID:   p.ID,
						Type: goopenai.ToolTypeFunction,
						Function: goopenai.FunctionCall{
							Name:      p.FunctionCall.Name,
							Arguments: p.FunctionCall.Arguments,
						},
					})
				default:
					return nil, errors.Newf("openai: unsupported AI message part type: %T", part)
				}
			}
		case llms.RoleTool:
			if len(mc.Parts) != 1 {
				return nil, errors.Newf("openai: expected exactly one part for role %v, got %d", mc.Role, len(mc.Parts))
			}
			p, ok := mc.Parts[0].(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Newf("openai: expected part of type ToolCallResponse for role %v, got %T", mc.Role, mc.Parts[0])
			}
			msg.Role = goopenai.ChatMessageRoleTool
			msg.ToolCallID = p.ToolCallID
			msg.Content = p.Content
		default:
			return nil, errors.WithMessagef(llms.ErrUnexpectedRole, "openai: %v", mc.Role)
		}
		chatMsgs = append(chatMsgs, msg)
	}
	return chatMsgs, nil
}

func toTools(tools []llms.Tool) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	sdkTools := make([]goopenai.Tool, len(tools))
	for i, tool := range tools {
		sdkTools[i] = goopenai.Tool{
			Type: goopenai.ToolType(tool.Type),
			Function: &goopenai.FunctionDefinition{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
				Strict:      tool.Function.Strict,
			},
		}
	}
	return sdkTools
}

func fromToolCalls(toolCalls []goopenai.ToolCall) []llms.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}
	calls := make([]llms.ToolCall, len(toolCalls))
	for i, tc := range toolCalls {
		calls[i] = llms.ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			FunctionCall: &llms.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}
	}
	return calls
}

// rawSchema adapts an already-built schema value to the json.Marshaler
// the SDK expects.
type rawSchema struct {
	v any
}

func (r rawSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.v)
}
