package api

// DefaultModelID is reported by adapters that have no model configured.
const DefaultModelID = "deepseek-ai/DeepSeek-R1"

// ModelInfo describes a model's limits, pricing, and formatting needs.
// Prices are USD per million tokens.
type ModelInfo struct {
	MaxTokens           int      `yaml:"max_tokens" json:"max_tokens"`
	ContextWindow       int      `yaml:"context_window" json:"context_window"`
	SupportsImages      bool     `yaml:"supports_images" json:"supports_images"`
	SupportsPromptCache bool     `yaml:"supports_prompt_cache" json:"supports_prompt_cache"`
	InputPrice          float64  `yaml:"input_price" json:"input_price"`
	OutputPrice         float64  `yaml:"output_price" json:"output_price"`
	Temperature         *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// IsR1FormatRequired selects the merged-turn message format used by
	// models that reject a separate system role.
	IsR1FormatRequired bool `yaml:"is_r1_format_required" json:"is_r1_format_required"`
}

// SaneModelInfoDefaults returns the metadata assumed for an OpenAI-compatible
// model when none is configured. MaxTokens of -1 means "no limit sent".
func SaneModelInfoDefaults() ModelInfo {
	temperature := 0.0
	return ModelInfo{
		MaxTokens:           -1,
		ContextWindow:       128_000,
		SupportsImages:      true,
		SupportsPromptCache: false,
		InputPrice:          0,
		OutputPrice:         0,
		Temperature:         &temperature,
		IsR1FormatRequired:  false,
	}
}

// Cost returns the USD cost of the given token counts at this model's prices.
func (m ModelInfo) Cost(inputTokens, outputTokens int) float64 {
	return (m.InputPrice*float64(inputTokens) + m.OutputPrice*float64(outputTokens)) / 1_000_000
}
