package domain

// ArticleInput is the plain input structure the orchestrator accepts. The
// presentation layer (HTTP handler, CLI) is an adapter on each side of it.
type ArticleInput struct {
	// StyleDocument is optional; nil means no style sample was provided and
	// the style context is empty.
	StyleDocument *UploadedDocument
	// ContentDocuments is the factual basis of the article. Must be non-empty.
	ContentDocuments []UploadedDocument
	// Template must contain the {style} and {context} placeholders. Empty
	// selects the configured default template.
	Template string
	// Model is a public model identifier from the configured closed set.
	Model string
	// Temperature in [0, 1]. Nil selects the configured default; an explicit
	// zero is honored as-is.
	Temperature *float32
}

// ArticleResult is the generated article plus accounting metadata.
type ArticleResult struct {
	Article string
	Model   string
	Usage   TokenUsage
}
