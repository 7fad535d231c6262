package router

import (
	"github.com/effective-security/reagent/pkg/llms"
)

// State is the conversation state of one in-flight turn. It is owned by a
// single request and never shared.
type State struct {
	// Messages is the ordered conversation history, grown as the turn
	// progresses. Appended messages are never mutated, except for the
	// step-budget substitution which replaces the last assistant message
	// wholesale.
	Messages []llms.Message
	// MatchedTools is the set of tool names judged relevant for this
	// turn, always a subset of the live catalog's names.
	MatchedTools []string
	// IsLastStep is set when the current model call is the final one the
	// step budget permits.
	IsLastStep bool
	// Steps counts completed model calls.
	Steps int
	// Refused is set when the turn ended with a refusal instead of a
	// model answer.
	Refused bool
}

// LastMessage returns the most recently appended message, or nil when the
// state is empty.
func (s *State) LastMessage() *llms.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// FinalContent returns the text of the final assistant message, empty when
// the turn produced none.
func (s *State) FinalContent() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llms.RoleAI {
			return s.Messages[i].GetContent()
		}
	}
	return ""
}
