package prompts

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// FormatPrompter is implemented by prompt templates that can be rendered
// from a set of named inputs.
type FormatPrompter interface {
	// FormatPrompt renders the template with the given inputs.
	FormatPrompt(values map[string]any) (string, error)
	// GetInputVariables returns the variables the template requires.
	GetInputVariables() []string
}

// PromptTemplate is a flat template with `{variable}` placeholders.
// Every occurrence of a recognized placeholder is substituted; unknown
// placeholders are left untouched so templates can carry literal braces.
type PromptTemplate struct {
	Template       string
	InputVariables []string
}

var _ FormatPrompter = (*PromptTemplate)(nil)

// NewPromptTemplate creates a template. inputVariables lists the
// placeholders that must be supplied to FormatPrompt.
func NewPromptTemplate(template string, inputVariables []string) *PromptTemplate {
	return &PromptTemplate{
		Template:       template,
		InputVariables: inputVariables,
	}
}

// FormatPrompt implements FormatPrompter. The template is rendered in a
// single pass over its text, so placeholders inside substituted values
// are emitted literally, never expanded.
func (p *PromptTemplate) FormatPrompt(values map[string]any) (string, error) {
	for _, name := range p.InputVariables {
		if _, ok := values[name]; !ok {
			return "", errors.Newf("prompts: missing input variable: %s", name)
		}
	}

	var b strings.Builder
	rest := p.Template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += open

		val, ok := values[rest[open+1:end]]
		if !ok {
			// Unknown placeholder, keep the opening brace literal and
			// keep scanning from the next character.
			b.WriteString(rest[:open+1])
			rest = rest[open+1:]
			continue
		}
		b.WriteString(rest[:open])
		fmt.Fprint(&b, val)
		rest = rest[end+1:]
	}
	return b.String(), nil
}

// GetInputVariables implements FormatPrompter.
func (p *PromptTemplate) GetInputVariables() []string {
	return p.InputVariables
}
