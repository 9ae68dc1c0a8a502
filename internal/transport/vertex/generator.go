// Package vertex adapts Google Vertex AI generative models to the domain
// generation contract.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lucidate/scribe/internal/domain"
	"github.com/lucidate/scribe/internal/metrics"
)

const generatorProvider = "vertex"

// Generator produces article text via Vertex AI Gemini models.
type Generator struct {
	client  *genai.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewGenerator creates a Vertex AI generation provider.
func NewGenerator(ctx context.Context, projectID, region string, timeout time.Duration, logger *zap.Logger) (*Generator, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex generator: projectID and region cannot be empty")
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &Generator{client: client, timeout: timeout, logger: logger}, nil
}

// Close releases the underlying client connection.
func (g *Generator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate implements domain.Generator.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	model := g.client.GenerativeModel(req.Model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(req.Temperature),
	}

	start := time.Now()

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(generatorProvider, req.Model, "error").Inc()
		return domain.GenerationResult{}, classifyError(err)
	}

	text := collectText(resp)
	if text == "" {
		metrics.GenerationRequestsTotal.WithLabelValues(generatorProvider, req.Model, "error").Inc()
		return domain.GenerationResult{}, domain.NewGenerationError(
			false, fmt.Errorf("vertex response has no text candidates"),
		)
	}

	result := domain.GenerationResult{Text: text}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(generatorProvider, req.Model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(generatorProvider, req.Model).Observe(duration.Seconds())
	if result.TotalTokens > 0 {
		metrics.GenerationTokensTotal.
			WithLabelValues(generatorProvider, req.Model, "prompt").Add(float64(result.PromptTokens))
		metrics.GenerationTokensTotal.
			WithLabelValues(generatorProvider, req.Model, "completion").Add(float64(result.CompletionTokens))
	}

	g.logger.Debug("Vertex generation finished",
		zap.String("model", req.Model),
		zap.Duration("duration", duration),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

// collectText concatenates the text parts of the first candidate.
func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

// classifyError maps gRPC failures onto the retryable/fatal split.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewGenerationError(true, err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewGenerationError(false, err)
	}

	switch status.Code(err) {
	case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return domain.NewGenerationError(true, err)
	case codes.Unauthenticated, codes.PermissionDenied, codes.NotFound, codes.InvalidArgument:
		return domain.NewGenerationError(false, err)
	default:
		return domain.NewGenerationError(true, err)
	}
}
