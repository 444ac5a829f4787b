package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType is the discriminator of a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ImageSource carries inline image data.
type ImageSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// DataURI renders the image as a data: URI suitable for image_url parts.
func (s ImageSource) DataURI() string {
	return "data:" + s.MediaType + ";base64," + s.Data
}

// ContentBlock is one part of a message. Only the fields matching Type are
// meaningful.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock returns a base64 image content block.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{
		Type:   BlockImage,
		Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: data},
	}
}

// ToolUseBlock returns a tool_use content block.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResultBlock returns a tool_result content block.
func ToolResultBlock(toolUseID string, content ...ContentBlock) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

// Message is one conversation turn.
//
// On the wire, content may be a plain string (one text block) or an array
// of blocks. A message built from a string remembers that form so it can be
// forwarded as a string message.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`

	plain bool
}

// NewTextMessage creates a message whose content is a single string.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{TextBlock(text)}, plain: true}
}

// NewMessage creates a message from content blocks.
func NewMessage(role Role, blocks ...ContentBlock) Message {
	return Message{Role: role, Content: blocks}
}

// IsPlainText reports whether the message content was given as a string.
func (m Message) IsPlainText() bool {
	return m.plain && len(m.Content) == 1 && m.Content[0].Type == BlockText
}

// TextContent joins the text of all text blocks with newlines.
func (m Message) TextContent() string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// MarshalJSON writes plain-text messages with string content.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.IsPlainText() {
		return json.Marshal(struct {
			Role    Role   `json:"role"`
			Content string `json:"content"`
		}{m.Role, m.Content[0].Text})
	}
	blocks := m.Content
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	return json.Marshal(struct {
		Role    Role           `json:"role"`
		Content []ContentBlock `json:"content"`
	}{m.Role, blocks})
}

// UnmarshalJSON accepts content as either a string or an array of blocks.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	switch wire.Role {
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("message role must be %q or %q, got %q", RoleUser, RoleAssistant, wire.Role)
	}

	m.Role = wire.Role
	m.plain = false
	m.Content = nil

	if len(wire.Content) == 0 || string(wire.Content) == "null" {
		return errors.New("message content is required")
	}

	if wire.Content[0] == '"' {
		var text string
		if err := json.Unmarshal(wire.Content, &text); err != nil {
			return err
		}
		m.Content = []ContentBlock{TextBlock(text)}
		m.plain = true
		return nil
	}

	return json.Unmarshal(wire.Content, &m.Content)
}
