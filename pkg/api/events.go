package api

// StreamEventType classifies a normalized streaming event.
type StreamEventType string

const (
	EventText      StreamEventType = "text"
	EventReasoning StreamEventType = "reasoning"
	EventUsage     StreamEventType = "usage"
)

// StreamEvent is a single normalized event produced while a completion
// streams. Text, reasoning, and usage are independent: one backend chunk may
// yield any combination of them.
type StreamEvent struct {
	Type StreamEventType `json:"type"`

	// Text is populated for EventText.
	Text string `json:"text,omitempty"`

	// Reasoning is populated for EventReasoning.
	Reasoning string `json:"reasoning,omitempty"`

	// InputTokens and OutputTokens are populated for EventUsage.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// TextEvent creates a text fragment event.
func TextEvent(text string) StreamEvent {
	return StreamEvent{Type: EventText, Text: text}
}

// ReasoningEvent creates a reasoning fragment event.
func ReasoningEvent(reasoning string) StreamEvent {
	return StreamEvent{Type: EventReasoning, Reasoning: reasoning}
}

// UsageEvent creates a token usage event.
func UsageEvent(inputTokens, outputTokens int) StreamEvent {
	return StreamEvent{Type: EventUsage, InputTokens: inputTokens, OutputTokens: outputTokens}
}
