package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
)

func TestNewSource_RejectsNonPDF(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "not-a-pdf.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a pdf"), 0600))

	_, err := NewSource(path)
	assert.ErrorIs(t, err, domain.ErrInvalidPDF)
}

func TestNewSource_RejectsMissingFile(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "absent.pdf"))
	assert.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Pump Manual", firstLine("\n\n  Pump Manual  \nRevision 3\n"))
	assert.Equal(t, "", firstLine("   \n\t\n"))
	assert.Equal(t, "", firstLine(""))
}

func TestFirstLine_CapsLength(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "abcdefghij"
	}
	got := firstLine(long)
	assert.Len(t, got, maxTitleLength)
}

func TestBaseTitle(t *testing.T) {
	assert.Equal(t, "pump-manual", baseTitle("/data/docs/pump-manual.pdf"))
	assert.Equal(t, "report", baseTitle("report.PDF"))
	assert.Equal(t, "noext", baseTitle("noext"))
}

func TestMimeTypeForImage(t *testing.T) {
	assert.Equal(t, "image/png", mimeTypeForImage("png"))
	assert.Equal(t, "image/jpeg", mimeTypeForImage("jpg"))
	assert.Equal(t, "image/jpeg", mimeTypeForImage("JPEG"))
	assert.Equal(t, "image/tiff", mimeTypeForImage("tif"))
	assert.Equal(t, "application/octet-stream", mimeTypeForImage("bin"))
}

func TestAssemble_EmptyInput(t *testing.T) {
	_, err := NewAssembler().Assemble(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAssemble_SinglePagePassesThrough(t *testing.T) {
	page := []byte("%PDF-1.7 single page")
	out, err := NewAssembler().Assemble([][]byte{page})
	require.NoError(t, err)
	assert.Equal(t, page, out)
}

func TestAssemble_InvalidPagesFail(t *testing.T) {
	_, err := NewAssembler().Assemble([][]byte{[]byte("junk"), []byte("junk")})
	assert.ErrorIs(t, err, domain.ErrInvalidPDF)
}
