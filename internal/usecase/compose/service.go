// Package compose binds retrieved passages into a prompt template.
package compose

import (
	"fmt"
	"strings"

	"github.com/lucidate/scribe/internal/domain"
)

// Template placeholders. Both must appear in every template; each occurrence
// is substituted.
const (
	StylePlaceholder   = "{style}"
	ContextPlaceholder = "{context}"
)

// Composer validates templates and binds them into final prompts.
type Composer struct{}

// New creates a Composer.
func New() *Composer {
	return &Composer{}
}

// Validate checks that the template carries both placeholders. Called before
// any extraction or embedding work so a bad template fails fast.
func (c *Composer) Validate(template string) error {
	if !strings.Contains(template, StylePlaceholder) {
		return fmt.Errorf("%w: missing %s placeholder", domain.ErrTemplate, StylePlaceholder)
	}
	if !strings.Contains(template, ContextPlaceholder) {
		return fmt.Errorf("%w: missing %s placeholder", domain.ErrTemplate, ContextPlaceholder)
	}
	return nil
}

// Compose substitutes the style and content passages into the template.
// Passages for each slot are joined with blank lines, in retrieval rank order.
// Substitution is a single pass over the template, so a placeholder literal
// inside a retrieved passage is never re-substituted.
func (c *Composer) Compose(template string, style, content []domain.Passage) (string, error) {
	if err := c.Validate(template); err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		StylePlaceholder, joinPassages(style),
		ContextPlaceholder, joinPassages(content),
	)
	return r.Replace(template), nil
}

func joinPassages(passages []domain.Passage) string {
	if len(passages) == 0 {
		return ""
	}
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n\n")
}
