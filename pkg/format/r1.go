package format

import (
	"fmt"
	"strings"

	"github.com/rhuss/confwhisper/pkg/api"
	"github.com/rhuss/confwhisper/pkg/provider/openaicompat"
)

// ToR1 converts messages to the merged-turn layout. Consecutive messages
// with the same role are merged into one. Text-only content becomes a
// newline-joined string; content with images becomes an array of one text
// part followed by the image parts. Tool blocks are rendered as text.
func ToR1(messages []api.Message) []openaicompat.ChatMessage {
	var merged []openaicompat.ChatMessage
	for _, m := range messages {
		content := r1Content(m)

		if n := len(merged); n > 0 && merged[n-1].Role == string(m.Role) {
			last := &merged[n-1]
			lastText, lastIsText := last.Content.(string)
			text, isText := content.(string)
			if lastIsText && isText {
				last.Content = lastText + "\n" + text
			} else {
				last.Content = append(asParts(last.Content), asParts(content)...)
			}
			continue
		}

		merged = append(merged, openaicompat.ChatMessage{Role: string(m.Role), Content: content})
	}
	return merged
}

func r1Content(m api.Message) any {
	var (
		texts  []string
		images []openaicompat.ChatContentPart
	)
	for _, b := range m.Content {
		switch b.Type {
		case api.BlockText:
			texts = append(texts, b.Text)
		case api.BlockImage:
			if b.Source != nil {
				images = append(images, openaicompat.ImagePart(b.Source.DataURI()))
			}
		case api.BlockToolUse:
			texts = append(texts, toolUseText(b))
		case api.BlockToolResult:
			texts = append(texts, toolResultText(b))
			for _, part := range b.Content {
				if part.Type == api.BlockImage && part.Source != nil {
					images = append(images, openaicompat.ImagePart(part.Source.DataURI()))
				}
			}
		}
	}

	if len(images) == 0 {
		return strings.Join(texts, "\n")
	}
	parts := make([]openaicompat.ChatContentPart, 0, len(images)+1)
	if len(texts) > 0 {
		parts = append(parts, openaicompat.TextPart(strings.Join(texts, "\n")))
	}
	return append(parts, images...)
}

func asParts(content any) []openaicompat.ChatContentPart {
	switch c := content.(type) {
	case string:
		return []openaicompat.ChatContentPart{openaicompat.TextPart(c)}
	case []openaicompat.ChatContentPart:
		return c
	}
	return nil
}

func toolUseText(b api.ContentBlock) string {
	return fmt.Sprintf("[tool_use %s id=%s]\n%s", b.Name, b.ID, arguments(b))
}

func toolResultText(b api.ContentBlock) string {
	var lines []string
	for _, part := range b.Content {
		if part.Type == api.BlockText {
			lines = append(lines, part.Text)
		}
	}
	header := fmt.Sprintf("[tool_result id=%s]", b.ToolUseID)
	if b.IsError {
		header = fmt.Sprintf("[tool_result id=%s error]", b.ToolUseID)
	}
	return header + "\n" + strings.Join(lines, "\n")
}
