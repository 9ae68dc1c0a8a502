package article

import (
	"context"

	"github.com/lucidate/scribe/internal/domain"
)

// Extractor turns uploaded documents into plain text.
type Extractor interface {
	ExtractOne(ctx context.Context, doc domain.UploadedDocument) (domain.ExtractedText, error)
	ExtractAll(ctx context.Context, docs []domain.UploadedDocument) ([]domain.ExtractedText, error)
}

// IndexBuilder builds a per-request semantic index over one corpus.
type IndexBuilder interface {
	Build(ctx context.Context, corpus string) (domain.Retriever, error)
}

// Composer validates templates and binds passages into a final prompt.
type Composer interface {
	Validate(template string) error
	Compose(template string, style, content []domain.Passage) (string, error)
}

// Generator resolves a public model identifier and produces text.
type Generator interface {
	Supports(model string) bool
	Generate(ctx context.Context, model, prompt string, temperature float32) (domain.GenerationResult, error)
}
