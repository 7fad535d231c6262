package router

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/encoding"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/pkg/schema"
	"github.com/effective-security/reagent/tools"
)

// ToolSelection is the structured answer of the tool-matching model.
type ToolSelection struct {
	MatchTools []string `json:"match_tools" jsonschema:"description=List of tool names relevant to the user's query"`
}

// MatchResult is the outcome of tool matching. A matching failure is not
// an error of the turn: the matcher fails open to the full catalog so a
// broken classifier never disables the agent.
type MatchResult struct {
	// Tools is the validated matched set, in catalog order.
	Tools []string
	// FailedOpen is set when Tools is the full catalog substituted after
	// a matching failure, with Err carrying the cause.
	FailedOpen bool
	Err        error
}

// matchTools asks a classification model which catalog tools are relevant
// to the user's question. Hallucinated names are silently dropped.
func matchTools(ctx context.Context, model llms.Model, userText string, catalog []tools.ITool) MatchResult {
	if userText == "" || len(catalog) == 0 {
		return MatchResult{}
	}

	prompt, err := toolMatchingPrompt.FormatPrompt(map[string]any{
		"user_text":         userText,
		"tools_description": tools.DescribeLines(catalog...),
	})
	if err != nil {
		return failOpen(catalog, err)
	}

	parser, err := encoding.NewTypedOutputParser(ToolSelection{}, encoding.ModeJSONSchema)
	if err != nil {
		return failOpen(catalog, err)
	}

	callOpts := []llms.CallOption{
		llms.WithTemperature(0),
	}
	if model.GetProviderType().Supports(llms.CapabilityJSONSchema) {
		rf, err := schema.NewResponseFormat(reflect.TypeOf(ToolSelection{}), true)
		if err != nil {
			return failOpen(catalog, err)
		}
		callOpts = append(callOpts, llms.WithResponseFormat(rf))
	} else {
		prompt += "\n\n" + parser.GetFormatInstructions()
	}

	resp, err := model.GenerateContent(ctx,
		[]llms.Message{llms.MessageFromTextParts(llms.RoleHuman, prompt)},
		callOpts...)
	if err != nil {
		return failOpen(catalog, err)
	}
	if len(resp.Choices) == 0 {
		return failOpen(catalog, errors.New("no response choices"))
	}

	selection, err := parser.Parse(resp.Choices[0].Content)
	if err != nil {
		return failOpen(catalog, err)
	}

	byName := tools.MapByName(catalog...)
	var matched []string
	seen := map[string]bool{}
	for _, name := range selection.MatchTools {
		tool := byName[keyOf(name)]
		if tool == nil || seen[keyOf(name)] {
			continue
		}
		seen[keyOf(name)] = true
		matched = append(matched, tool.Name())
	}
	return MatchResult{Tools: matched}
}

func failOpen(catalog []tools.ITool, err error) MatchResult {
	return MatchResult{
		Tools:      tools.Names(catalog...),
		FailedOpen: true,
		Err:        err,
	}
}
