package tools

import (
	"context"
	"fmt"
	"strings"
)

// ITool is a tool for the llm agent to interact with different applications.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	Parameters() any

	// Call executes the tool with the given input and returns the result.
	// If the tool fails to parse the input, it should return ErrFailedUnmarshalInput error.
	Call(context.Context, string) (string, error)
}

type Callback interface {
	OnToolStart(context.Context, ITool, string)
	OnToolEnd(context.Context, ITool, string, string)
	OnToolError(context.Context, ITool, string, error)
}

type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

// DescribeLines renders the tools as a `- name: description` bulleted list,
// one line per tool. An empty tool list renders as an empty string.
func DescribeLines(list ...ITool) string {
	var b strings.Builder
	for _, tool := range list {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name(), tool.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Names returns the names of the tools, in catalog order.
func Names(list ...ITool) []string {
	names := make([]string, 0, len(list))
	for _, tool := range list {
		names = append(names, tool.Name())
	}
	return names
}

// MapByName indexes tools by lowercase name. Names are unique within a
// catalog; a later duplicate does not replace an earlier tool.
func MapByName(list ...ITool) map[string]ITool {
	m := make(map[string]ITool, len(list))
	for _, tool := range list {
		key := strings.ToLower(tool.Name())
		if m[key] == nil {
			m[key] = tool
		}
	}
	return m
}
