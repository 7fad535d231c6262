// Package store persists conversation history per chat, keyed by the chat
// ID carried in the request context.
package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/reagent", "store")

// ErrNoChatID is returned when the context carries no chat identity.
var ErrNoChatID = errors.New("store: no chat ID in context")

// MessageStore stores chat history. The chat ID is taken from the request
// context via chatmodel.
type MessageStore interface {
	Messages(ctx context.Context) ([]llms.Message, error)
	Add(ctx context.Context, msgs ...llms.Message) error
	Reset(ctx context.Context) error
}

// MessageModel is the serializable form of llms.Message; the message Parts
// are an interface and cannot round-trip through JSON directly.
type MessageModel struct {
	Role         llms.Role              `json:"role"`
	ID           string                 `json:"id,omitempty"`
	Text         string                 `json:"text,omitempty"`
	ToolCalls    []llms.ToolCall        `json:"tool_calls,omitempty"`
	ToolResponse *llms.ToolCallResponse `json:"tool_response,omitempty"`
}

// ToModel converts a message into its serializable form.
func ToModel(msg llms.Message) MessageModel {
	model := MessageModel{
		Role: msg.Role,
		ID:   msg.ID,
	}
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			if model.Text != "" {
				model.Text += "\n"
			}
			model.Text += p.Text
		case llms.ToolCall:
			model.ToolCalls = append(model.ToolCalls, p)
		case llms.ToolCallResponse:
			resp := p
			model.ToolResponse = &resp
		}
	}
	return model
}

// ToMessage converts the serializable form back into a message.
func (m MessageModel) ToMessage() llms.Message {
	var parts []llms.ContentPart
	if m.Text != "" {
		parts = append(parts, llms.TextPart(m.Text))
	}
	for _, tc := range m.ToolCalls {
		parts = append(parts, tc)
	}
	if m.ToolResponse != nil {
		parts = append(parts, *m.ToolResponse)
	}
	msg := llms.MessageFromParts(m.Role, parts...)
	msg.ID = m.ID
	return msg
}

// ToMessages converts a slice of models back to messages.
func ToMessages(models []MessageModel) []llms.Message {
	msgs := make([]llms.Message, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, m.ToMessage())
	}
	return msgs
}
