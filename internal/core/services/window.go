package services

// DefaultWindowSize is the number of recent page gists kept as context
// for the next summarisation call.
const DefaultWindowSize = 5

// ContextWindow is a fixed-capacity ordered buffer of the most recent
// page gists for one document, in page order. Eviction is strict FIFO:
// recency of position, not of use, governs which gist leaves first.
//
// A window is created fresh per document and discarded when the
// document finishes; it is never persisted.
type ContextWindow struct {
	capacity int
	gists    []string
}

// NewContextWindow creates a window holding at most capacity gists.
// A capacity below one falls back to DefaultWindowSize.
func NewContextWindow(capacity int) *ContextWindow {
	if capacity < 1 {
		capacity = DefaultWindowSize
	}
	return &ContextWindow{capacity: capacity}
}

// Append adds a gist to the tail, evicting from the head when the
// window is full.
func (w *ContextWindow) Append(gist string) {
	w.gists = append(w.gists, gist)
	if len(w.gists) > w.capacity {
		w.gists = w.gists[1:]
	}
}

// Snapshot returns a read-only copy of the window, oldest first.
func (w *ContextWindow) Snapshot() []string {
	out := make([]string, len(w.gists))
	copy(out, w.gists)
	return out
}

// Len returns the number of gists currently held.
func (w *ContextWindow) Len() int {
	return len(w.gists)
}
