package openaicompat

import "encoding/json"

// Chat Completions request/response types. These mirror the OpenAI Chat
// Completions API format plus the reasoning extensions used by DeepSeek and
// OpenAI reasoning models.

// ChatCompletionRequest is the request body for /chat/completions.
type ChatCompletionRequest struct {
	Model           string             `json:"model"`
	Messages        []ChatMessage      `json:"messages"`
	Temperature     *float64           `json:"temperature,omitempty"`
	MaxTokens       *int               `json:"max_tokens,omitempty"`
	ReasoningEffort *string            `json:"reasoning_effort,omitempty"`
	Stream          bool               `json:"stream"`
	StreamOptions   *ChatStreamOptions `json:"stream_options,omitempty"`
}

// ChatStreamOptions controls streaming behavior.
type ChatStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Message roles understood by Chat Completions backends.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage represents a message in the Chat Completions format.
// Content is either a string or a []ChatContentPart.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// ChatContentPart is one element of an array-valued message content.
type ChatContentPart struct {
	Type     string        `json:"type"` // "text" or "image_url"
	Text     string        `json:"text,omitempty"`
	ImageURL *ChatImageURL `json:"image_url,omitempty"`
}

// ChatImageURL references an image by URL or data URI.
type ChatImageURL struct {
	URL string `json:"url"`
}

// TextPart returns a text content part.
func TextPart(text string) ChatContentPart {
	return ChatContentPart{Type: "text", Text: text}
}

// ImagePart returns an image_url content part.
func ImagePart(url string) ChatContentPart {
	return ChatContentPart{Type: "image_url", ImageURL: &ChatImageURL{URL: url}}
}

// ChatToolCall represents a tool call in an assistant message.
type ChatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ChatFunctionCall `json:"function"`
}

// ChatFunctionCall holds function name and arguments.
type ChatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatUsage holds token usage from the Chat Completions API.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk is a single SSE chunk in a streaming response.
type ChatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Model   string            `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`
	Usage   *ChatUsage        `json:"usage,omitempty"`
}

// ChatChunkChoice represents a streaming choice delta.
type ChatChunkChoice struct {
	Index        int            `json:"index"`
	Delta        ChatChunkDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

// ChatChunkDelta holds incremental content in a streaming chunk.
type ChatChunkDelta struct {
	Role             string  `json:"role,omitempty"`
	Content          *string `json:"content,omitempty"`
	ReasoningContent *string `json:"reasoning_content,omitempty"`
}

// ChatErrorResponse is the error format returned by Chat Completions backends.
type ChatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// ChatModelsResponse is the response from /models.
type ChatModelsResponse struct {
	Object string      `json:"object"`
	Data   []ChatModel `json:"data"`
}

// ChatModel represents a model in the /models response.
type ChatModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// streamErrorFrame detects an error object sent in place of a chunk.
type streamErrorFrame struct {
	Error *json.RawMessage `json:"error"`
}
