// Package article orchestrates the full generation pipeline: extract the
// uploaded documents, build per-request semantic indexes, retrieve passages,
// bind the prompt, and call the generation provider.
package article

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucidate/scribe/internal/domain"
	"github.com/lucidate/scribe/internal/logger"
	"github.com/lucidate/scribe/internal/metrics"
	"github.com/lucidate/scribe/internal/usecase/extract"
)

// Options carries the pipeline defaults the request may omit.
type Options struct {
	DefaultTemplate    string
	DefaultTemperature float32
	RetrievalQuery     string
	TopK               int
}

// Service runs the article pipeline. Every request gets fresh indexes; no
// state survives between calls.
type Service struct {
	extractor Extractor
	indexes   IndexBuilder
	composer  Composer
	generator Generator
	opts      Options
}

// New creates the pipeline orchestrator.
func New(extractor Extractor, indexes IndexBuilder, composer Composer, generator Generator, opts Options) *Service {
	return &Service{
		extractor: extractor,
		indexes:   indexes,
		composer:  composer,
		generator: generator,
		opts:      opts,
	}
}

// Generate runs the pipeline end to end. Failures carry the stage they
// occurred in so callers can attribute them; sentinel identity is preserved
// through the stage wrapper.
func (s *Service) Generate(ctx context.Context, input domain.ArticleInput) (domain.ArticleResult, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	result, err := s.run(ctx, input)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error", string(domain.StageOf(err))).Inc()
		return domain.ArticleResult{}, err
	}

	metrics.PipelineRunsTotal.WithLabelValues("success", "").Inc()
	log.Info("Article generated",
		zap.String("model", result.Model),
		zap.Int("article_chars", len(result.Article)),
		zap.Int("embedding_tokens", result.Usage.EmbeddingTokens),
		zap.Int("generation_tokens", result.Usage.GenerationTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, input domain.ArticleInput) (domain.ArticleResult, error) {
	template, temperature, err := s.validate(&input)
	if err != nil {
		return domain.ArticleResult{}, domain.NewPipelineError(domain.StageValidating, err)
	}

	// The collector is shared with embedding and generation layers through
	// the context, unless the caller already installed one.
	usage := domain.UsageFromContext(ctx)
	if usage == nil {
		ctx, usage = domain.NewContextWithUsage(ctx)
	}

	styleCorpus, contentCorpus, err := s.extractStage(ctx, input)
	if err != nil {
		return domain.ArticleResult{}, err
	}
	if contentCorpus == "" {
		return domain.ArticleResult{}, domain.NewPipelineError(domain.StageExtractingSource,
			fmt.Errorf("%w: content documents contained no extractable text", domain.ErrNoContent))
	}

	styleIdx, contentIdx, err := s.buildStage(ctx, styleCorpus, contentCorpus)
	if err != nil {
		return domain.ArticleResult{}, domain.NewPipelineError(domain.StageBuildingIndexes, err)
	}

	stylePassages, contentPassages, err := s.retrieveStage(ctx, styleIdx, contentIdx)
	if err != nil {
		return domain.ArticleResult{}, domain.NewPipelineError(domain.StageRetrieving, err)
	}

	stageStart := time.Now()
	prompt, err := s.composer.Compose(template, stylePassages, contentPassages)
	if err != nil {
		return domain.ArticleResult{}, domain.NewPipelineError(domain.StageComposing, err)
	}
	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageComposing)).Observe(time.Since(stageStart).Seconds())

	stageStart = time.Now()
	gen, err := s.generator.Generate(ctx, input.Model, prompt, temperature)
	if err != nil {
		return domain.ArticleResult{}, domain.NewPipelineError(domain.StageGenerating, err)
	}
	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageGenerating)).Observe(time.Since(stageStart).Seconds())

	return domain.ArticleResult{
		Article: gen.Text,
		Model:   input.Model,
		Usage:   usage.Snapshot(),
	}, nil
}

// validate applies defaults and fails fast before any extraction or provider
// work: unknown model, bad template, or nothing to write from.
func (s *Service) validate(input *domain.ArticleInput) (template string, temperature float32, err error) {
	if !s.generator.Supports(input.Model) {
		return "", 0, fmt.Errorf("%w: %q", domain.ErrUnsupportedModel, input.Model)
	}

	template = input.Template
	if template == "" {
		template = s.opts.DefaultTemplate
	}
	if err := s.composer.Validate(template); err != nil {
		return "", 0, err
	}

	if len(input.ContentDocuments) == 0 {
		return "", 0, fmt.Errorf("%w: at least one content document is required", domain.ErrNoContent)
	}

	// A nil temperature means the caller left it out; an explicit zero is a
	// valid deterministic setting and passes through untouched.
	temperature = s.opts.DefaultTemperature
	if input.Temperature != nil {
		temperature = *input.Temperature
	}

	return template, temperature, nil
}

func (s *Service) extractStage(ctx context.Context, input domain.ArticleInput) (styleCorpus, contentCorpus string, err error) {
	if input.StyleDocument != nil {
		stageStart := time.Now()
		styleText, err := s.extractor.ExtractOne(ctx, *input.StyleDocument)
		if err != nil {
			return "", "", domain.NewPipelineError(domain.StageExtractingStyle, err)
		}
		metrics.PipelineStageDuration.WithLabelValues(string(domain.StageExtractingStyle)).Observe(time.Since(stageStart).Seconds())
		styleCorpus = styleText.Text
	}

	stageStart := time.Now()
	contentTexts, err := s.extractor.ExtractAll(ctx, input.ContentDocuments)
	if err != nil {
		return "", "", domain.NewPipelineError(domain.StageExtractingSource, err)
	}
	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageExtractingSource)).Observe(time.Since(stageStart).Seconds())

	return styleCorpus, extract.MergeCorpus(contentTexts), nil
}

// buildStage builds the style and content indexes concurrently. The two
// corpora never share an index.
func (s *Service) buildStage(ctx context.Context, styleCorpus, contentCorpus string) (styleIdx, contentIdx domain.Retriever, err error) {
	stageStart := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var berr error
		styleIdx, berr = s.indexes.Build(gctx, styleCorpus)
		if berr != nil {
			return fmt.Errorf("style index: %w", berr)
		}
		return nil
	})
	g.Go(func() error {
		var berr error
		contentIdx, berr = s.indexes.Build(gctx, contentCorpus)
		if berr != nil {
			return fmt.Errorf("content index: %w", berr)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageBuildingIndexes)).Observe(time.Since(stageStart).Seconds())
	return styleIdx, contentIdx, nil
}

func (s *Service) retrieveStage(ctx context.Context, styleIdx, contentIdx domain.Retriever) (style, content []domain.Passage, err error) {
	stageStart := time.Now()

	style, err = styleIdx.Retrieve(ctx, s.opts.RetrievalQuery, s.opts.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("style passages: %w", err)
	}
	content, err = contentIdx.Retrieve(ctx, s.opts.RetrievalQuery, s.opts.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("content passages: %w", err)
	}

	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageRetrieving)).Observe(time.Since(stageStart).Seconds())
	return style, content, nil
}
