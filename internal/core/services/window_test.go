package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextWindow_FIFOEviction(t *testing.T) {
	w := NewContextWindow(5)

	for _, gist := range []string{"a", "b", "c", "d", "e", "f"} {
		w.Append(gist)
	}

	// Six appends into a capacity-5 window leave the last five,
	// oldest evicted first.
	assert.Equal(t, []string{"b", "c", "d", "e", "f"}, w.Snapshot())
	assert.Equal(t, 5, w.Len())
}

func TestContextWindow_SnapshotIsACopy(t *testing.T) {
	w := NewContextWindow(3)
	w.Append("a")
	w.Append("b")

	snap := w.Snapshot()
	snap[0] = "mutated"

	assert.Equal(t, []string{"a", "b"}, w.Snapshot())
}

func TestContextWindow_EmptySnapshot(t *testing.T) {
	w := NewContextWindow(5)
	assert.Empty(t, w.Snapshot())
}

func TestContextWindow_DefaultCapacity(t *testing.T) {
	w := NewContextWindow(0)

	for i := 0; i < 10; i++ {
		w.Append("g")
	}
	assert.Equal(t, DefaultWindowSize, w.Len())
}
