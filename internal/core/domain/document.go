package domain

// Document represents an ingested multi-page document.
// The title is the natural key: a document is created once per unique
// title and never duplicated, which is what makes re-runs idempotent.
type Document struct {
	// ID is the store-assigned row identifier.
	ID int64

	// Title is the unique, human-readable identity of the document.
	Title string

	// Description is an optional whole-document abstract.
	// Nil when no abstracting stage has run yet.
	Description *string

	// PageCount is the number of pages in the source document.
	PageCount int
}

// Page is a single page of a document.
// At most one Page exists per (document, page number) pair.
type Page struct {
	// ID is the store-assigned row identifier.
	ID int64

	// DocumentID links to the owning Document.
	DocumentID int64

	// Number is the 1-based page number within the document.
	Number int

	// Data is the raw single-page sub-document bytes.
	Data []byte

	// Text is the extracted plain text of the page.
	Text string

	// Gist is an optional short rolling summary of the page.
	// Nil until a summarisation stage fills it in.
	Gist *string
}

// Figure is an image artifact extracted from exactly one page.
type Figure struct {
	// ID is the store-assigned row identifier.
	ID int64

	// PageID links to the originating Page.
	PageID int64

	// Data is the raw image bytes.
	Data []byte

	// MIMEType is the image media type (e.g. image/png).
	MIMEType string

	// Description is an optional natural-language description.
	// Populated lazily by the vision stage and never overwritten
	// once set, to avoid redundant paid recomputation.
	Description *string
}

// Table is a detected tabular region on a page.
// Tables are appended, not deduplicated by content; re-extraction is
// guarded at the page level by the caller.
type Table struct {
	// ID is the store-assigned row identifier.
	ID int64

	// PageID links to the owning Page.
	PageID int64

	// Text is the markdown rendering of the table cells.
	Text string

	// Image is a rendered raster of the table region.
	Image []byte

	// CaptionAbove is the caption found above the table, if any.
	CaptionAbove string

	// CaptionBelow is the caption found below the table, if any.
	CaptionBelow string

	// BBox holds the bounding coordinates (xmin, ymin, xmax, ymax).
	BBox [4]float64
}

// Section is a table-of-contents entry belonging to a document.
// The (document, title) pair is unique; duplicate entries across runs
// are silently skipped.
type Section struct {
	// ID is the store-assigned row identifier.
	ID int64

	// DocumentID links to the owning Document.
	DocumentID int64

	// Title is the section heading.
	Title string

	// StartPage is the 1-based page the section starts on.
	StartPage int
}

// EmbeddingRecord is an opaque vector record produced by the embedding
// stage, keyed by document and section ordinal.
type EmbeddingRecord struct {
	// ID is the store-assigned row identifier.
	ID int64

	// DocumentID links to the owning Document.
	DocumentID int64

	// SectionTitle names the section the vector was computed for.
	SectionTitle string

	// Ordinal is the position of the section within the document.
	Ordinal int

	// Content is the text that was embedded.
	Content string

	// Vector is the embedding itself.
	Vector []float32
}

// HasDescription reports whether the document already carries an abstract.
// The abstracting stage is gated on this so an existing description is
// never regenerated or overwritten.
func (d *Document) HasDescription() bool {
	return d.Description != nil && *d.Description != ""
}

// HasGist reports whether the page already carries a rolling summary.
func (p *Page) HasGist() bool {
	return p.Gist != nil && *p.Gist != ""
}

// Described reports whether the figure already carries a description.
func (f *Figure) Described() bool {
	return f.Description != nil && *f.Description != ""
}
