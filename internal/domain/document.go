package domain

// UploadedDocument is a caller-owned binary payload handed to the extractor
// for the duration of one request.
type UploadedDocument struct {
	Name      string
	MediaType string
	Data      []byte
}

// MediaTypePDF is the only media type the extractor currently accepts.
const MediaTypePDF = "application/pdf"

// ExtractedText is the page-ordered text of one document. Pages and
// PagesSkipped are kept so callers can report how much of the document
// survived extraction; Text is the concatenation in source page order.
type ExtractedText struct {
	Name         string
	Pages        int
	PagesSkipped int
	Text         string
}

// Empty reports whether extraction produced no usable text.
func (e ExtractedText) Empty() bool { return e.Text == "" }
