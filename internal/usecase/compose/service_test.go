package compose

import (
	"errors"
	"strings"
	"testing"

	"github.com/lucidate/scribe/internal/domain"
)

func TestCompose_SubstitutesBothPlaceholders(t *testing.T) {
	c := New()

	prompt, err := c.Compose(
		"Style:\n{style}\n\nFacts:\n{context}\n\nWrite.",
		[]domain.Passage{{Text: "witty tone"}},
		[]domain.Passage{{Text: "fact one"}, {Text: "fact two"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Style:\nwitty tone\n\nFacts:\nfact one\n\nfact two\n\nWrite."
	if prompt != want {
		t.Errorf("got %q, want %q", prompt, want)
	}
}

func TestCompose_SubstitutesEveryOccurrence(t *testing.T) {
	c := New()

	prompt, err := c.Compose(
		"{style} and again {style} with {context}",
		[]domain.Passage{{Text: "S"}},
		[]domain.Passage{{Text: "C"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != "S and again S with C" {
		t.Errorf("got %q", prompt)
	}
}

func TestCompose_EmptyPassagesLeaveSlotBlank(t *testing.T) {
	c := New()

	prompt, err := c.Compose("[{style}][{context}]", nil, []domain.Passage{{Text: "facts"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != "[][facts]" {
		t.Errorf("got %q", prompt)
	}
}

func TestCompose_PassageContainingPlaceholderStaysLiteral(t *testing.T) {
	c := New()

	prompt, err := c.Compose(
		"{style} | {context}",
		[]domain.Passage{{Text: "quote a {context} tag verbatim"}},
		[]domain.Passage{{Text: "facts"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt != "quote a {context} tag verbatim | facts" {
		t.Errorf("substituted text must not be rescanned, got %q", prompt)
	}
}

func TestValidate_MissingPlaceholders(t *testing.T) {
	c := New()

	cases := []struct {
		name     string
		template string
	}{
		{"no style", "only {context} here"},
		{"no context", "only {style} here"},
		{"neither", "plain text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.Validate(tc.template)
			if !errors.Is(err, domain.ErrTemplate) {
				t.Fatalf("expected ErrTemplate, got %v", err)
			}
		})
	}
}

func TestValidate_ErrorNamesMissingPlaceholder(t *testing.T) {
	c := New()

	err := c.Validate("has {style} only")
	if err == nil || !strings.Contains(err.Error(), "{context}") {
		t.Errorf("error should name the missing placeholder: %v", err)
	}
}
