// Package progress models long-running, nested work as an explicit
// task stack. The Tracker holds the stack; an injected Observer renders
// snapshots of it. Keeping the rendering behind an interface allows
// headless testing without a terminal dependency.
package progress

import "sync"

// Observer receives a renderable snapshot of the current task stack,
// ordered from outermost to innermost. Implementations must never
// block indefinitely.
type Observer interface {
	// Render displays the stack. Detail carries optional streaming
	// text for the innermost task (partial completion output), empty
	// otherwise.
	Render(stack []string, detail string)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(stack []string, detail string)

// Render calls the function.
func (f ObserverFunc) Render(stack []string, detail string) {
	f(stack, detail)
}

// Tracker is a nested, stack-shaped model of "current work".
// Every Push, UpdateCurrent, Pop and Detail triggers exactly one
// observer notification. Safe for use from a single pipeline goroutine
// plus concurrent Snapshot readers.
type Tracker struct {
	mu     sync.Mutex
	stack  []string
	detail string
	obs    Observer
}

// NewTracker creates a tracker reporting to obs. A nil observer is
// allowed; the tracker then only records state.
func NewTracker(obs Observer) *Tracker {
	return &Tracker{obs: obs}
}

// Push enters a nested unit of work.
func (t *Tracker) Push(label string) {
	t.mu.Lock()
	t.stack = append(t.stack, label)
	t.detail = ""
	t.notifyLocked()
	t.mu.Unlock()
}

// UpdateCurrent relabels the innermost unit of work.
// No-op on an empty stack.
func (t *Tracker) UpdateCurrent(label string) {
	t.mu.Lock()
	if n := len(t.stack); n > 0 {
		t.stack[n-1] = label
		t.notifyLocked()
	}
	t.mu.Unlock()
}

// Detail forwards streaming text for the innermost unit of work, such
// as partial completion output.
func (t *Tracker) Detail(text string) {
	t.mu.Lock()
	t.detail = text
	t.notifyLocked()
	t.mu.Unlock()
}

// Pop leaves the innermost unit of work. No-op on an empty stack.
func (t *Tracker) Pop() {
	t.mu.Lock()
	if n := len(t.stack); n > 0 {
		t.stack = t.stack[:n-1]
		t.detail = ""
		t.notifyLocked()
	}
	t.mu.Unlock()
}

// Step pushes label and returns the matching pop. Callers defer the
// returned func to scope a unit of work:
//
//	defer tracker.Step("summarising page 3")()
func (t *Tracker) Step(label string) func() {
	t.Push(label)
	return t.Pop
}

// Snapshot returns a copy of the stack, outermost first.
func (t *Tracker) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.stack))
	copy(out, t.stack)
	return out
}

func (t *Tracker) notifyLocked() {
	if t.obs == nil {
		return
	}
	snap := make([]string, len(t.stack))
	copy(snap, t.stack)
	t.obs.Render(snap, t.detail)
}
