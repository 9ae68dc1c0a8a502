package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/domain"
	"github.com/lucidate/scribe/internal/metrics"
)

// BudgetChecker is the local interface for budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// InstrumentedEmbedder wraps an Embedder with budget enforcement, per-request
// usage accounting, and logging. Transport metrics (requests, duration,
// tokens) are recorded in transport/openai; this layer owns budget tracking
// and budget-related metrics only.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	model  string
	budget BudgetChecker
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with budget and observability.
func NewInstrumentedEmbedder(inner domain.Embedder, model string, budget BudgetChecker, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, model: model, budget: budget, logger: logger}
}

// Embed checks budget, delegates to the inner embedder, and records usage.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := p.checkBudget(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p.recordUsage(ctx, result.TotalTokens)

	p.logger.Debug("Embedding request completed",
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// BatchEmbed checks budget and delegates, falling back to per-text Embed for
// providers without native batch support.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	if err := p.checkBudget(ctx, len(texts)); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	start := time.Now()

	var result domain.BatchEmbeddingResult
	var err error
	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		result, err = be.BatchEmbed(ctx, texts)
	} else {
		result, err = domain.BatchFallback(ctx, p.inner, texts)
	}

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Batch embedding request failed",
			zap.String("model", p.model),
			zap.Int("batch_size", len(texts)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}

	p.recordUsage(ctx, result.TotalTokens)

	p.logger.Debug("Batch embedding completed",
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

func (p *InstrumentedEmbedder) checkBudget(ctx context.Context, batchSize int) error {
	if p.budget == nil {
		return nil
	}
	if err := p.budget.Check(ctx); err != nil {
		p.logger.Error("Budget exceeded",
			zap.String("model", p.model),
			zap.Int("batch_size", batchSize),
			zap.Error(err),
		)
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (p *InstrumentedEmbedder) recordUsage(ctx context.Context, tokens int) {
	domain.UsageFromContext(ctx).AddEmbeddingTokens(tokens)

	if p.budget != nil && tokens > 0 {
		p.budget.Record(int64(tokens))
		remaining := metrics.EmbeddingBudgetTokensRemaining
		remaining.WithLabelValues("daily").Set(float64(p.budget.RemainingDaily()))
		remaining.WithLabelValues("monthly").Set(float64(p.budget.RemainingMonthly()))
	}
}
