package index

import (
	"github.com/lucidate/scribe/internal/domain"
)

// BatchEmbedder vectorizes chunk batches and retrieval queries.
type BatchEmbedder interface {
	domain.Embedder
	domain.BatchEmbedder
}
