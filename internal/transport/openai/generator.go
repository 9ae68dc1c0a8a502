package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/domain"
	"github.com/lucidate/scribe/internal/metrics"
)

const generatorProvider = "openai"

// Generator produces article text via the OpenAI-compatible chat completion API.
type Generator struct {
	client  *openai.Client
	timeout time.Duration
	logger  *zap.Logger
}

// GeneratorConfig holds the chat completion provider settings.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat completion provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client:  openai.NewClientWithConfig(clientCfg),
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
}

// Generate implements domain.Generator. Provider failures come back as
// domain.GenerationError classified retryable or fatal.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(generatorProvider, req.Model, "error").Inc()
		return domain.GenerationResult{}, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(generatorProvider, req.Model, "error").Inc()
		return domain.GenerationResult{}, domain.NewGenerationError(
			true, fmt.Errorf("chat completion returned no choices"),
		)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(generatorProvider, req.Model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(generatorProvider, req.Model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.GenerationTokensTotal.
			WithLabelValues(generatorProvider, req.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.GenerationTokensTotal.
			WithLabelValues(generatorProvider, req.Model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	g.logger.Debug("Chat completion finished",
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return domain.GenerationResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// classifyError maps API failures onto the retryable/fatal split the caller's
// retry policy needs. Timeouts and throttling are retryable; credential and
// request shape problems are not.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewGenerationError(true, err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewGenerationError(false, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return domain.NewGenerationError(true, err)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return domain.NewGenerationError(true, err)
		default:
			// 400/401/403/404: bad request, bad credentials, unknown upstream model.
			return domain.NewGenerationError(false, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		retryable := reqErr.HTTPStatusCode == http.StatusTooManyRequests ||
			reqErr.HTTPStatusCode >= http.StatusInternalServerError
		return domain.NewGenerationError(retryable, err)
	}

	// Transport-level failure (connection refused, DNS, reset).
	return domain.NewGenerationError(true, err)
}
