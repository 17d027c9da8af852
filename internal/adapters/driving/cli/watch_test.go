package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPDFPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"manual.pdf", true},
		{"MANUAL.PDF", true},
		{"/drop/dir/report.Pdf", true},
		{"notes.txt", false},
		{"archive.pdf.gz", false},
		{"pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, isPDFPath(tt.path))
		})
	}
}

func TestWaitForStable(t *testing.T) {
	t.Run("returns once size holds", func(t *testing.T) {
		path := writeTestFile(t, "steady.pdf", []byte("%PDF-1.7 content"))
		assert.NoError(t, waitForStable(context.Background(), path))
	})

	t.Run("errors on missing file", func(t *testing.T) {
		err := waitForStable(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))
		assert.Error(t, err)
	})

	t.Run("respects cancellation", func(t *testing.T) {
		// An empty file never settles, so cancellation is what ends the wait.
		path := writeTestFile(t, "empty.pdf", nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := waitForStable(ctx, path)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
