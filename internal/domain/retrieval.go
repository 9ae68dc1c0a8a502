package domain

import "context"

// Passage is one retrieved fragment of a corpus with its similarity score.
type Passage struct {
	Text  string
	Score float32
}

// Retriever answers similarity queries against exactly one corpus. A
// retriever lives for a single generation request and is never reused.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Passage, error)
}
