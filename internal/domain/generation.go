package domain

import "context"

// GenerationRequest is a fully bound prompt ready for one provider call.
// Model is the upstream model name, already resolved from the public
// identifier by the registry.
type GenerationRequest struct {
	Prompt      string
	Model       string
	Temperature float32
}

// GenerationResult is the provider's output plus token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Generator produces text from a bound prompt. Implementations wrap provider
// failures in GenerationError with a retryability classification.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}
