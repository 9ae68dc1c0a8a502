// Package generate routes bound prompts to the configured generation
// provider, with retry on transient failures and token accounting.
package generate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/config"
	"github.com/lucidate/scribe/internal/domain"
	"github.com/lucidate/scribe/internal/logger"
)

const initialBackoff = 500 * time.Millisecond

// Service resolves public model identifiers against a closed registry and
// dispatches generation calls to the owning provider.
type Service struct {
	models     map[string]config.ModelConfig
	providers  Providers
	maxRetries int
}

// New creates a generation service. models is the closed registry from
// configuration; providers must cover every provider the registry names.
func New(models map[string]config.ModelConfig, providers Providers, maxRetries int) (*Service, error) {
	for name, m := range models {
		if _, ok := providers[m.Provider]; !ok {
			return nil, fmt.Errorf("model %q: no generator wired for provider %q", name, m.Provider)
		}
	}
	return &Service{models: models, providers: providers, maxRetries: maxRetries}, nil
}

// Supports reports whether model is in the registry.
func (s *Service) Supports(model string) bool {
	_, ok := s.models[model]
	return ok
}

// Models lists the registry's public model identifiers, sorted.
func (s *Service) Models() []string {
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate resolves the model, calls its provider, and retries transient
// failures with exponential backoff. Token usage lands in the request's
// usage collector.
func (s *Service) Generate(ctx context.Context, model, prompt string, temperature float32) (domain.GenerationResult, error) {
	mc, ok := s.models[model]
	if !ok {
		return domain.GenerationResult{}, fmt.Errorf("%w: %q (supported: %v)",
			domain.ErrUnsupportedModel, model, s.Models())
	}

	upstream := mc.Upstream
	if upstream == "" {
		upstream = model
	}

	req := domain.GenerationRequest{
		Prompt:      prompt,
		Model:       upstream,
		Temperature: temperature,
	}

	log := logger.FromContext(ctx)
	gen := s.providers[mc.Provider]

	var result domain.GenerationResult
	var err error
	backoff := initialBackoff

	for attempt := 0; ; attempt++ {
		result, err = gen.Generate(ctx, req)
		if err == nil {
			break
		}
		if attempt >= s.maxRetries || !domain.IsRetryableGeneration(err) {
			return domain.GenerationResult{}, err
		}

		log.Warn("Generation attempt failed, retrying",
			zap.String("model", model),
			zap.String("provider", mc.Provider),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return domain.GenerationResult{}, domain.NewGenerationError(false, ctx.Err())
		}
		backoff *= 2
	}

	domain.UsageFromContext(ctx).AddGenerationTokens(result.TotalTokens)

	log.Debug("Generation completed",
		zap.String("model", model),
		zap.String("provider", mc.Provider),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
	)

	return result, nil
}
