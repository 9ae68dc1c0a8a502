// Package chunk splits a text corpus into passages suitable for embedding.
package chunk

import (
	"regexp"
	"strings"
)

var sentenceSplitter = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Chunker accumulates whole sentences into chunks of at most maxChars bytes.
// A single sentence longer than maxChars becomes its own oversized chunk
// rather than being cut mid-sentence.
type Chunker struct {
	maxChars int
}

// New creates a Chunker. maxChars <= 0 selects a sane default.
func New(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = 1200
	}
	return &Chunker{maxChars: maxChars}
}

// Split breaks text into passages. Returns nil for blank input.
func (c *Chunker) Split(text string) []string {
	sentences := sentenceSplitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		sentences = []string{trimmed}
	}

	var chunks []string
	var sb strings.Builder
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if sb.Len() > 0 && sb.Len()+1+len(s) > c.maxChars {
			chunks = append(chunks, sb.String())
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}
	if sb.Len() > 0 {
		chunks = append(chunks, sb.String())
	}
	return chunks
}
