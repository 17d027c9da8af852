package driven

import "context"

// ImageData is an embedded image sub-artifact of a page.
type ImageData struct {
	// Data is the raw image bytes.
	Data []byte

	// MIMEType is the image media type (e.g. image/png).
	MIMEType string
}

// SourcePage is one page yielded by a DocumentSource.
type SourcePage struct {
	// Number is the 1-based page number.
	Number int

	// Raw is the page as a self-contained single-page sub-document.
	Raw []byte

	// Text is the extracted plain text of the page.
	Text string

	// Images are the embedded image sub-artifacts, in document order.
	Images []ImageData
}

// SectionEntry is one table-of-contents entry of a source document.
type SectionEntry struct {
	// Title is the section heading.
	Title string

	// StartPage is the 1-based page the section starts on.
	StartPage int
}

// DocumentSource yields the ordered pages and structure of one input
// document. Implementations wrap the concrete parsing library; the
// pipeline only consumes this contract.
type DocumentSource interface {
	// Title returns the document's title, falling back to a stable
	// identifier (such as the file basename) when the document carries
	// no metadata title.
	Title() string

	// PageCount returns the number of pages.
	PageCount() int

	// Page returns the 1-based page n. Text extraction failures
	// propagate as errors.
	Page(ctx context.Context, n int) (*SourcePage, error)

	// FrontMatter renders the first n pages as one self-contained
	// sub-document, used as input to the abstracting stage.
	FrontMatter(ctx context.Context, n int) ([]byte, error)

	// Sections returns the table-of-contents structure, outermost
	// entries in document order. Empty when the document has none.
	Sections() []SectionEntry

	// Close releases resources held by the source.
	Close() error
}
