package index

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/chunk"
	"github.com/lucidate/scribe/internal/domain"
	"github.com/lucidate/scribe/internal/logger"
	"github.com/lucidate/scribe/internal/repository/memindex"
)

// Builder constructs per-request semantic indexes over extracted corpora.
// Each build produces an isolated retriever; nothing is shared or persisted
// across requests.
type Builder struct {
	embedder BatchEmbedder
	chunker  *chunk.Chunker
}

// NewBuilder creates an index builder chunking at maxChars per chunk.
func NewBuilder(embedder BatchEmbedder, maxChars int) *Builder {
	return &Builder{embedder: embedder, chunker: chunk.New(maxChars)}
}

// Build chunks the corpus, embeds every chunk in one batch call, and loads
// the vectors into a fresh in-memory index. A blank corpus yields a retriever
// that answers every query with no passages and never touches the provider.
func (b *Builder) Build(ctx context.Context, corpus string) (domain.Retriever, error) {
	chunks := b.chunker.Split(corpus)
	if len(chunks) == 0 {
		return emptyRetriever{}, nil
	}

	batch, err := b.embedder.BatchEmbed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: embed %d chunks: %w", domain.ErrIndexBuild, len(chunks), err)
	}
	if len(batch.Embeddings) != len(chunks) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d chunks",
			domain.ErrIndexBuild, len(batch.Embeddings), len(chunks))
	}

	idx := memindex.New()
	for i, c := range chunks {
		if err := idx.Add(c, batch.Embeddings[i]); err != nil {
			return nil, fmt.Errorf("%w: load chunk %d: %w", domain.ErrIndexBuild, i, err)
		}
	}

	logger.FromContext(ctx).Debug("Built semantic index",
		zap.Int("chunks", len(chunks)),
		zap.Int("corpus_chars", len(corpus)),
	)

	return &retriever{embedder: b.embedder, index: idx}, nil
}

// retriever answers similarity queries against one built index.
type retriever struct {
	embedder BatchEmbedder
	index    *memindex.Index
}

func (r *retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error) {
	res, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.index.Search(res.Embedding, topK), nil
}

// emptyRetriever stands in for an absent corpus, such as a request without a
// style sample.
type emptyRetriever struct{}

func (emptyRetriever) Retrieve(context.Context, string, int) ([]domain.Passage, error) {
	return nil, nil
}
