package llmutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/reagent/pkg/llms"
)

// CleanJSON returns JSON by trimming prefixes and postfixes,
// as an LLM can reply like `Here you go: {json}`.
func CleanJSON(bs []byte) []byte {
	trimmedPrefix := trimPrefixBeforeJSON(bs)
	trimmedJSON := trimPostfixAfterJSON(trimmedPrefix)
	return trimmedJSON
}

// Removes any prefixes before the JSON (like "Sure, here you go:")
func trimPrefixBeforeJSON(bs []byte) []byte {
	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')

	var start int
	if startObject == -1 && startArray == -1 {
		return bs
	} else if startObject == -1 {
		start = startArray
	} else if startArray == -1 {
		start = startObject
	} else {
		start = min(startObject, startArray)
	}

	return bs[start:]
}

// Removes any postfixes after the JSON
func trimPostfixAfterJSON(bs []byte) []byte {
	endObject := bytes.LastIndexByte(bs, '}')
	endArray := bytes.LastIndexByte(bs, ']')

	var end int
	if endObject == -1 && endArray == -1 {
		return bs
	} else if endObject == -1 {
		end = endArray
	} else if endArray == -1 {
		end = endObject
	} else {
		end = max(endObject, endArray)
	}

	return bs[:end+1]
}

// ToJSON returns the compact JSON representation of the value.
func ToJSON(val any) string {
	bs, _ := json.Marshal(val)
	return string(bs)
}

// ToJSONIndent returns the indented JSON representation of the value.
func ToJSONIndent(val any) string {
	bs, _ := json.MarshalIndent(val, "", "\t")
	return string(bs)
}

// BackticksJSON wraps the JSON in a fenced code block.
func BackticksJSON(js string) string {
	return "```json\n" + js + "\n```"
}

// FindLastUserQuestion returns the text of the most recent human message,
// or an empty string if there is none.
func FindLastUserQuestion(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == llms.RoleHuman {
			for _, part := range msg.Parts {
				if textPart, ok := part.(llms.TextContent); ok {
					return textPart.Text
				}
			}
		}
	}
	return ""
}

// PrintMessages writes the messages to the writer, with the role in upper
// case, for debugging.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, mc := range msgs {
		fmt.Fprintf(w, "%s: ", strings.ToUpper(string(mc.Role)))
		fmt.Fprintln(w, mc.GetContent())
	}
}

// CountMessagesContentSize returns the total content size of the messages in bytes.
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size uint64
	for _, msg := range msgs {
		size += uint64(len(msg.GetContent()))
	}
	return size
}
