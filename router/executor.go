package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/tools"
	"github.com/effective-security/xlog"
)

// executeToolCalls runs one batch of tool calls against the live catalog
// and returns one Tool message per call, in call order. Calls fan out to
// goroutines and results fan back in correlated by call id. A failing call
// produces an error-carrying Tool message instead of aborting the batch;
// sibling calls are unaffected.
func (a *Agent) executeToolCalls(ctx context.Context, liveTools []tools.ITool, calls []llms.ToolCall) []llms.Message {
	byName := tools.MapByName(liveTools...)

	type toolCallResult struct {
		toolCall llms.ToolCall
		response string
		err      error
		index    int
	}

	resultChan := make(chan toolCallResult, len(calls))

	var wg sync.WaitGroup
	wg.Add(len(calls))

	for i, toolCall := range calls {
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()
			toolName := tc.FunctionCall.Name
			toolArgs := tc.FunctionCall.Arguments

			tool := byName[keyOf(toolName)]
			if tool == nil {
				a.callback.OnToolNotFound(ctx, toolName)

				availableTools := strings.Join(tools.Names(liveTools...), ", ")
				logger.ContextKV(ctx, xlog.WARNING,
					"status", "tool_not_found",
					"tool_name", toolName,
					"available_tools", availableTools,
				)
				resultChan <- toolCallResult{
					toolCall: tc,
					err:      fmt.Errorf("tool `%s` not found, available tools: %s", toolName, availableTools),
					index:    index,
				}
				return
			}

			a.callback.OnToolStart(ctx, tool, toolArgs)

			res, err := tool.Call(ctx, toolArgs)
			if err != nil {
				a.callback.OnToolError(ctx, tool, toolArgs, err)
				resultChan <- toolCallResult{
					toolCall: tc,
					err:      err,
					index:    index,
				}
				return
			}

			a.callback.OnToolEnd(ctx, tool, toolArgs, res)
			resultChan <- toolCallResult{
				toolCall: tc,
				response: res,
				index:    index,
			}
		}(i, toolCall)
	}

	wg.Wait()
	close(resultChan)

	results := make([]toolCallResult, len(calls))
	for result := range resultChan {
		results[result.index] = result
	}

	messages := make([]llms.Message, 0, len(results))
	for _, result := range results {
		content := result.response
		isError := false
		if result.err != nil {
			content = fmt.Sprintf("Tool call failed: %s", result.err.Error())
			isError = true
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "tool_call_failed",
				"tool", result.toolCall.FunctionCall.Name,
				"err", result.err.Error(),
			)
		}

		messages = append(messages, llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: result.toolCall.ID,
			Name:       result.toolCall.FunctionCall.Name,
			Content:    content,
			IsError:    isError,
		}))
	}
	return messages
}
