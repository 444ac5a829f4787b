// Package confwhisper implements a provider.Handler that streams chat
// completions from an OpenAI-compatible backend, optionally routing the
// traffic through an Oblivious HTTP relay.
//
// The handler picks the message layout from the configured model: DeepSeek
// reasoner models and models flagged in ModelInfo get the merged-turn R1
// layout, OpenAI o-series models get a developer prompt and a reasoning
// effort instead of a temperature, and everything else gets a system prompt.
package confwhisper
