package embedding

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/domain"
	"github.com/lucidate/scribe/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

// --- Mocks ---

type mockEmbedder struct {
	mu     sync.Mutex
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return m.result, nil
}

type mockBudget struct {
	checkErr error
	recorded int64
}

func (m *mockBudget) Check(_ context.Context) error { return m.checkErr }
func (m *mockBudget) Record(tokens int64)           { m.recorded += tokens }
func (m *mockBudget) RemainingDaily() int64         { return -1 }
func (m *mockBudget) RemainingMonthly() int64       { return -1 }

// --- Tests ---

func TestInstrumented_RecordsBudgetAndUsage(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 42}}
	budget := &mockBudget{}
	emb := NewInstrumentedEmbedder(inner, "test-model", budget, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())

	if _, err := emb.Embed(ctx, "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if budget.recorded != 42 {
		t.Errorf("expected 42 tokens recorded, got %d", budget.recorded)
	}
	if got := usage.Snapshot().EmbeddingTokens; got != 42 {
		t.Errorf("expected 42 usage tokens, got %d", got)
	}
}

func TestInstrumented_ConcurrentEmbedsShareUsage(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 7}}
	emb := NewInstrumentedEmbedder(inner, "test-model", nil, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())

	// Style and content indexes embed concurrently against one collector.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := emb.Embed(ctx, "text"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := usage.Snapshot().EmbeddingTokens; got != 28 {
		t.Errorf("expected 28 usage tokens from 4 concurrent embeds, got %d", got)
	}
}

func TestInstrumented_BudgetBlocksBeforeProviderCall(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	budget := &mockBudget{checkErr: domain.ErrEmbeddingQuotaExceeded}
	emb := NewInstrumentedEmbedder(inner, "test-model", budget, zap.NewNop())

	_, err := emb.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("provider must not be called when budget rejects, got %d calls", inner.calls)
	}
}

func TestInstrumented_BatchFallsBackToSingleEmbeds(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}, TotalTokens: 5}}
	emb := NewInstrumentedEmbedder(inner, "test-model", nil, zap.NewNop())

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 fallback calls, got %d", inner.calls)
	}
	if res.TotalTokens != 15 {
		t.Errorf("expected aggregated 15 tokens, got %d", res.TotalTokens)
	}
}

func TestInstrumented_BatchEmptyInput(t *testing.T) {
	inner := &mockEmbedder{}
	emb := NewInstrumentedEmbedder(inner, "test-model", nil, zap.NewNop())

	res, err := emb.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 || inner.calls != 0 {
		t.Error("empty batch must be a no-op")
	}
}
