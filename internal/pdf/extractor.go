// Package pdf extracts plain text from uploaded PDF payloads.
package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ledong "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/lucidate/scribe/internal/domain"
)

// Extractor converts a PDF payload into page-ordered plain text. The parser
// works on files, so each call writes the payload to a scoped temp directory
// that is removed on every exit path.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a PDF extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the document's text with pages concatenated in source
// order. Fails wrapping domain.ErrExtraction for anything that is not a
// parseable PDF of the declared type.
func (e *Extractor) Extract(ctx context.Context, doc domain.UploadedDocument) (domain.ExtractedText, error) {
	if doc.MediaType != "" && doc.MediaType != domain.MediaTypePDF {
		return domain.ExtractedText{}, fmt.Errorf(
			"%s: declared media type %q is not %s: %w",
			doc.Name, doc.MediaType, domain.MediaTypePDF, domain.ErrExtraction,
		)
	}
	if len(doc.Data) == 0 {
		return domain.ExtractedText{}, fmt.Errorf("%s: empty payload: %w", doc.Name, domain.ErrExtraction)
	}

	tempDir, err := os.MkdirTemp("", "scribe-extract-*")
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	path := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(path, doc.Data, 0o600); err != nil {
		return domain.ExtractedText{}, fmt.Errorf("write temp file: %w", err)
	}

	// Cheap structural validation before the text parser touches the file.
	if err := api.ValidateFile(path, nil); err != nil {
		return domain.ExtractedText{}, fmt.Errorf("%s: invalid pdf: %v: %w", doc.Name, err, domain.ErrExtraction)
	}
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("%s: page count: %v: %w", doc.Name, err, domain.ErrExtraction)
	}

	text, skipped, err := e.extractText(ctx, path, pageCount)
	if err != nil {
		return domain.ExtractedText{}, fmt.Errorf("%s: %w", doc.Name, err)
	}

	if skipped > 0 {
		e.logger.Warn("Skipped unreadable pages",
			zap.String("name", doc.Name),
			zap.Int("pages_skipped", skipped),
			zap.Int("pages", pageCount),
		)
	}
	e.logger.Debug("Extracted document",
		zap.String("name", doc.Name),
		zap.Int("pages", pageCount),
		zap.Int("chars", len(text)),
	)

	return domain.ExtractedText{Name: doc.Name, Pages: pageCount, PagesSkipped: skipped, Text: text}, nil
}

// pageSource is the subset of the parser's reader the page loop needs.
type pageSource interface {
	Page(pageNumber int) ledong.Page
}

func (e *Extractor) extractText(ctx context.Context, path string, pageCount int) (string, int, error) {
	f, reader, err := ledong.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %v: %w", err, domain.ErrExtraction)
	}
	defer f.Close()

	return readPages(ctx, reader, pageCount)
}

// readPages reads every page in source order. A page the parser cannot
// resolve is counted as skipped; a page that resolves but fails to decode
// fails the whole document.
func readPages(ctx context.Context, src pageSource, pageCount int) (string, int, error) {
	var sb strings.Builder
	skipped := 0
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("extraction cancelled at page %d: %w", i, err)
		}

		page := src.Page(i)
		if page.V.IsNull() {
			skipped++
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %v: %w", i, err, domain.ErrExtraction)
		}
		if sb.Len() > 0 && pageText != "" {
			sb.WriteByte('\n')
		}
		sb.WriteString(pageText)
	}
	return sb.String(), skipped, nil
}
