package format

import (
	"strings"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/provider/openaicompat"
)

const toolImagePlaceholder = "(see following user message for image)"

// ToOpenAI converts messages to the standard Chat Completions layout.
//
// A user message yields its tool results first, one "tool" message each,
// followed by a single user message with the remaining text and images.
// Images inside tool results cannot be sent on a tool message, so they are
// moved to an extra user message. An assistant message yields one message
// with its text joined by newlines and its tool_use blocks as tool_calls.
func ToOpenAI(messages []api.Message) []openaicompat.ChatMessage {
	out := make([]openaicompat.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.IsPlainText() {
			out = append(out, openaicompat.ChatMessage{Role: string(m.Role), Content: m.Content[0].Text})
			continue
		}
		switch m.Role {
		case api.RoleAssistant:
			out = append(out, assistantMessage(m))
		default:
			out = append(out, userMessages(m)...)
		}
	}
	return out
}

func userMessages(m api.Message) []openaicompat.ChatMessage {
	var (
		out        []openaicompat.ChatMessage
		rest       []api.ContentBlock
		toolImages []openaicompat.ChatContentPart
	)

	for _, b := range m.Content {
		if b.Type != api.BlockToolResult {
			rest = append(rest, b)
			continue
		}
		var lines []string
		for _, part := range b.Content {
			switch part.Type {
			case api.BlockText:
				lines = append(lines, part.Text)
			case api.BlockImage:
				if part.Source != nil {
					toolImages = append(toolImages, openaicompat.ImagePart(part.Source.DataURI()))
					lines = append(lines, toolImagePlaceholder)
				}
			}
		}
		out = append(out, openaicompat.ChatMessage{
			Role:       openaicompat.RoleTool,
			ToolCallID: b.ToolUseID,
			Content:    strings.Join(lines, "\n"),
		})
	}

	if len(rest) > 0 {
		out = append(out, openaicompat.ChatMessage{Role: openaicompat.RoleUser, Content: userContent(rest)})
	}
	if len(toolImages) > 0 {
		out = append(out, openaicompat.ChatMessage{Role: openaicompat.RoleUser, Content: toolImages})
	}
	return out
}

// userContent returns a string when blocks are text only, otherwise parts.
func userContent(blocks []api.ContentBlock) any {
	textOnly := true
	for _, b := range blocks {
		if b.Type != api.BlockText {
			textOnly = false
			break
		}
	}
	if textOnly {
		texts := make([]string, len(blocks))
		for i, b := range blocks {
			texts[i] = b.Text
		}
		return strings.Join(texts, "\n")
	}

	parts := make([]openaicompat.ChatContentPart, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case api.BlockText:
			parts = append(parts, openaicompat.TextPart(b.Text))
		case api.BlockImage:
			if b.Source != nil {
				parts = append(parts, openaicompat.ImagePart(b.Source.DataURI()))
			}
		case api.BlockToolUse:
			parts = append(parts, openaicompat.TextPart(toolUseText(b)))
		}
	}
	return parts
}

func assistantMessage(m api.Message) openaicompat.ChatMessage {
	msg := openaicompat.ChatMessage{Role: openaicompat.RoleAssistant}

	var texts []string
	for _, b := range m.Content {
		switch b.Type {
		case api.BlockText:
			texts = append(texts, b.Text)
		case api.BlockToolUse:
			msg.ToolCalls = append(msg.ToolCalls, openaicompat.ChatToolCall{
				ID:   b.ID,
				Type: "function",
				Function: openaicompat.ChatFunctionCall{
					Name:      b.Name,
					Arguments: arguments(b),
				},
			})
		}
	}

	// Chat Completions accepts null content on assistant messages that only
	// carry tool calls.
	if len(texts) > 0 {
		msg.Content = strings.Join(texts, "\n")
	}
	return msg
}

func arguments(b api.ContentBlock) string {
	if len(b.Input) == 0 {
		return "{}"
	}
	return string(b.Input)
}
