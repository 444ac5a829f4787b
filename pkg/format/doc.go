// Package format converts conversation messages into Chat Completions
// messages.
//
// ToOpenAI produces the standard layout, with tool calls and tool results
// mapped to their native roles. ToR1 produces the merged-turn layout required
// by DeepSeek-R1 style models, which reject consecutive messages from the
// same role.
package format
