package extract

import (
	"context"

	"github.com/lucidate/scribe/internal/domain"
)

// Parser turns one uploaded document into plain text.
type Parser interface {
	Extract(ctx context.Context, doc domain.UploadedDocument) (domain.ExtractedText, error)
}
