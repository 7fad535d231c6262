package callbacks_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/effective-security/reagent/callbacks"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/router"
	"github.com/stretchr/testify/assert"
)

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	cb := callbacks.NewPrinter(&buf, callbacks.ModeVerbose)

	model := &fakeModel{name: "gpt-4o"}
	tool := &fakeTool{name: "test-tool"}

	ctx := context.Background()
	cb.OnTurnStart(ctx, "test input")
	cb.OnToolsMatched(ctx, []string{"test-tool"}, false)
	cb.OnModelCallStart(ctx, model, []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "test input"),
	})
	cb.OnModelCallEnd(ctx, model, &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content: "test output",
			},
		},
	})
	cb.OnToolStart(ctx, tool, "test input")
	cb.OnToolEnd(ctx, tool, "test input", "test output")
	cb.OnToolError(ctx, tool, "test input", errors.New("test error"))
	cb.OnToolNotFound(ctx, "missing-tool")
	cb.OnRefusal(ctx, "I can only help with the available tools.")
	cb.OnTurnEnd(ctx, &router.State{Steps: 2})
	cb.OnTurnError(ctx, errors.New("turn failed"))

	res := buf.String()
	assert.Contains(t, res, "Turn Start")
	assert.Contains(t, res, "Input: test input")
	assert.Contains(t, res, "Tools Matched: [test-tool] (failed open: false)")
	assert.Contains(t, res, "Model Call: gpt-4o model, 1 messages")
	assert.Contains(t, res, "Model Call End: gpt-4o model, 1 choices")
	assert.Contains(t, res, "Tool Start: test-tool")
	assert.Contains(t, res, "Tool End: test-tool")
	assert.Contains(t, res, "Output: test output")
	assert.Contains(t, res, "Tool Error: test-tool: test error")
	assert.Contains(t, res, "Tool Not Found: missing-tool")
	assert.Contains(t, res, "Refusal")
	assert.Contains(t, res, "I can only help with the available tools.")
	assert.Contains(t, res, "Turn End: 2 steps")
	assert.Contains(t, res, "Turn Error: turn failed")
}

func TestFanout(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	fan := callbacks.NewFanout(callbacks.NewPrinter(&buf1, callbacks.ModeDefault))
	fan.Add(callbacks.NewPrinter(&buf2, callbacks.ModeDefault))

	fan.OnTurnStart(context.Background(), "hello")
	fan.OnToolsMatched(context.Background(), nil, true)

	assert.Contains(t, buf1.String(), "Input: hello")
	assert.Contains(t, buf2.String(), "Input: hello")
	assert.Contains(t, buf1.String(), "failed open: true")
	assert.Contains(t, buf2.String(), "failed open: true")
}

type fakeModel struct {
	name string
}

func (f *fakeModel) GetName() string {
	return f.name
}
func (f *fakeModel) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}
func (f *fakeModel) GenerateContent(context.Context, []llms.Message, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, nil
}

type fakeTool struct {
	name string
}

func (f *fakeTool) Name() string {
	return f.name
}
func (f *fakeTool) Description() string {
	return "useful tool"
}
func (f *fakeTool) Parameters() any {
	return nil
}
func (f *fakeTool) Call(context.Context, string) (string, error) {
	return "", nil
}
