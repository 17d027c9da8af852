package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Configuration errors. These are fatal and reported before any
	// mutation takes place.

	// ErrInvalidPDF indicates the input file is not a valid PDF.
	ErrInvalidPDF = errors.New("input file is not a valid PDF")

	// ErrInvalidDatabase indicates the target file is not a SQLite database.
	ErrInvalidDatabase = errors.New("target file is not a valid SQLite database")

	// ErrVisionUnsupported indicates the configured model cannot accept
	// image inputs. Checked before any figure-description call is made.
	ErrVisionUnsupported = errors.New("model does not support image inputs")

	// Collaborator availability errors.

	// ErrLLMUnavailable indicates the generative service is not configured.
	// Stages requiring it (abstract, gist, figure description) are disabled.
	ErrLLMUnavailable = errors.New("generative service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. The semantic embedding stage is disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmptyResponse indicates the generative service returned no
	// content. Surfaced as a distinguishable error, never as a silent
	// empty string.
	ErrEmptyResponse = errors.New("generative service returned an empty response")

	// Extraction errors. Caught at the narrowest scope (one table, one
	// page) and reported without aborting sibling work.

	// ErrMalformedTable indicates a detected table could not be rendered.
	ErrMalformedTable = errors.New("malformed table")

	// ErrUnreadablePage indicates text extraction failed for a page.
	ErrUnreadablePage = errors.New("unreadable page")
)
