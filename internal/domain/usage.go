package domain

import (
	"context"
	"sync"
)

type usageKey struct{}

// RequestUsage collects token usage for a single generation request. The
// handler puts a mutable pointer into the context before calling the
// orchestrator; embedding and generation layers write into it — possibly
// from concurrent index builds — so the counters are mutex-guarded. The
// handler reads a Snapshot back for the response.
type RequestUsage struct {
	mu               sync.Mutex
	embeddingTokens  int
	generationTokens int
}

// TokenUsage is a point-in-time copy of the collected counters.
type TokenUsage struct {
	EmbeddingTokens  int
	GenerationTokens int
}

// Total returns the combined token count.
func (t TokenUsage) Total() int { return t.EmbeddingTokens + t.GenerationTokens }

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(usageKey{}).(*RequestUsage)
	return u
}

// AddEmbeddingTokens records tokens consumed by embedding calls. Nil-safe and
// safe for concurrent use.
func (u *RequestUsage) AddEmbeddingTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.embeddingTokens += n
	u.mu.Unlock()
}

// AddGenerationTokens records tokens consumed by the generation call. Nil-safe
// and safe for concurrent use.
func (u *RequestUsage) AddGenerationTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.generationTokens += n
	u.mu.Unlock()
}

// Snapshot returns a consistent copy of the counters. Nil-safe.
func (u *RequestUsage) Snapshot() TokenUsage {
	if u == nil {
		return TokenUsage{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return TokenUsage{
		EmbeddingTokens:  u.embeddingTokens,
		GenerationTokens: u.generationTokens,
	}
}
