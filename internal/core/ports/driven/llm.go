package driven

import "context"

// Attachment is an inline binary payload carried by a message.
type Attachment struct {
	// MIMEType is the payload media type (application/pdf, image/png, ...).
	MIMEType string

	// Data is the raw payload bytes.
	Data []byte
}

// Message is one role-tagged entry in a conversation.
type Message struct {
	// Role is one of "system" or "user".
	Role string

	// Text is the message text.
	Text string

	// Attachments are optional inline binary payloads (a PDF page or a
	// figure image).
	Attachments []Attachment
}

// GenerativeService produces text completions for the enrichment
// stages. This is an optional service - when nil, the stages that need
// it are disabled and no placeholder values are written.
//
// Implementations may include:
//   - OpenAI-compatible APIs (chat completions)
//   - Ollama (local models)
type GenerativeService interface {
	// Complete sends the messages and returns the full text result.
	// Failure surfaces as a distinguishable error, never as a silent
	// empty string.
	Complete(ctx context.Context, messages []Message) (string, error)

	// CompleteStream sends the messages and forwards incremental text
	// chunks to onChunk as they arrive, returning the final accumulated
	// text. Chunks arrive in order; no other ordering guarantee exists.
	CompleteStream(ctx context.Context, messages []Message, onChunk func(string)) (string, error)

	// SupportsVision reports whether the configured model accepts image
	// inputs. Callers must check this before any image-bearing call;
	// an unsupported model is a configuration error, not a per-figure
	// failure.
	SupportsVision() bool

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
