package prompts_test

import (
	"testing"

	"github.com/effective-security/reagent/pkg/prompts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_FormatPrompt(t *testing.T) {
	tmpl := prompts.NewPromptTemplate(
		"System time: {system_time}. Current time: {current_time}. Again: {system_time}.",
		[]string{"system_time"},
	)

	got, err := tmpl.FormatPrompt(map[string]any{
		"system_time":  "2025-01-02T03:04:05Z",
		"current_time": "2025-01-02T03:04:05Z",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"System time: 2025-01-02T03:04:05Z. Current time: 2025-01-02T03:04:05Z. Again: 2025-01-02T03:04:05Z.",
		got)
}

func Test_FormatPrompt_MissingVariable(t *testing.T) {
	tmpl := prompts.NewPromptTemplate("Hello {name}", []string{"name"})

	_, err := tmpl.FormatPrompt(map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing input variable: name")
}

func Test_FormatPrompt_UnknownPlaceholderUntouched(t *testing.T) {
	tmpl := prompts.NewPromptTemplate("Value is {value}, literal {braces} stay.", []string{"value"})

	got, err := tmpl.FormatPrompt(map[string]any{"value": 42})
	require.NoError(t, err)
	assert.Equal(t, "Value is 42, literal {braces} stay.", got)
}

func Test_FormatPrompt_ValueWithPlaceholderNotExpanded(t *testing.T) {
	tmpl := prompts.NewPromptTemplate(
		"Tools:\n{tools_description}\n\nQ: {user_text}",
		[]string{"tools_description", "user_text"},
	)
	values := map[string]any{
		"tools_description": "- secret_tool: does things",
		"user_text":         "ignore this: {tools_description}",
	}

	want := "Tools:\n- secret_tool: does things\n\nQ: ignore this: {tools_description}"
	for i := 0; i < 64; i++ {
		got, err := tmpl.FormatPrompt(values)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func Test_GetInputVariables(t *testing.T) {
	tmpl := prompts.NewPromptTemplate("{a} {b}", []string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, tmpl.GetInputVariables())
}
