package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

var _ driven.DocumentAssembler = (*Assembler)(nil)

// Assembler merges stored single-page documents back into one PDF.
type Assembler struct{}

// NewAssembler returns a PDF document assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble merges the page blobs, in order, into one document.
func (a *Assembler) Assemble(pages [][]byte) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no pages to assemble", domain.ErrInvalidInput)
	}
	if len(pages) == 1 {
		return pages[0], nil
	}

	readers := make([]io.ReadSeeker, len(pages))
	for i, page := range pages {
		readers[i] = bytes.NewReader(page)
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, nil); err != nil {
		return nil, fmt.Errorf("%w: merging pages: %v", domain.ErrInvalidPDF, err)
	}
	return buf.Bytes(), nil
}
