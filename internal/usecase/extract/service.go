package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucidate/scribe/internal/domain"
	"github.com/lucidate/scribe/internal/logger"
)

// DocumentSeparator joins extracted document texts into one corpus. The
// record separator keeps document boundaries visible to the chunker without
// leaking markup into retrieved passages.
const DocumentSeparator = "\n\n\x1e\n\n"

// Service extracts uploaded documents into plain-text corpora.
type Service struct {
	parser      Parser
	parallelism int
	maxDocs     int
}

// New creates an extraction service. parallelism caps concurrent document
// extractions; maxDocs caps the accepted batch size (0 means unlimited).
func New(parser Parser, parallelism, maxDocs int) *Service {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Service{parser: parser, parallelism: parallelism, maxDocs: maxDocs}
}

// ExtractOne extracts a single document. Used for the style sample.
func (s *Service) ExtractOne(ctx context.Context, doc domain.UploadedDocument) (domain.ExtractedText, error) {
	return s.parser.Extract(ctx, doc)
}

// ExtractAll extracts every document concurrently and returns the texts in
// upload order regardless of completion order. Extraction is all-or-nothing:
// one unreadable document fails the whole batch, with the failing document
// named in the error.
func (s *Service) ExtractAll(ctx context.Context, docs []domain.UploadedDocument) ([]domain.ExtractedText, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if s.maxDocs > 0 && len(docs) > s.maxDocs {
		return nil, fmt.Errorf("%w: %d documents exceeds the limit of %d",
			domain.ErrExtraction, len(docs), s.maxDocs)
	}

	log := logger.FromContext(ctx)
	texts := make([]domain.ExtractedText, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for i, doc := range docs {
		g.Go(func() error {
			text, err := s.parser.Extract(gctx, doc)
			if err != nil {
				return fmt.Errorf("extract %q: %w", doc.Name, err)
			}
			texts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug("Extracted document batch",
		zap.Int("documents", len(docs)),
		zap.Int("parallelism", s.parallelism),
	)

	return texts, nil
}

// MergeCorpus joins extracted texts into one corpus string, skipping
// documents that produced no text. Returns "" when nothing survives.
func MergeCorpus(texts []domain.ExtractedText) string {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if t.Empty() {
			continue
		}
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, DocumentSeparator)
}
