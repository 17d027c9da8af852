// Package textgrid detects tabular regions in extracted page text.
//
// The detector looks for runs of lines sharing an aligned column
// structure (multi-space gutters, tabs or pipe separators) and renders
// each run as a markdown table. It works purely on text, so detected
// tables carry line-based coordinates and no raster image.
package textgrid

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

// minTableRows is the smallest run of aligned lines treated as a table.
const minTableRows = 2

// minColumns is the smallest column count treated as tabular.
const minColumns = 2

var _ driven.TableExtractor = (*Extractor)(nil)

// Extractor is a text-based table detector.
type Extractor struct{}

// NewExtractor returns a text-grid table extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractTables scans every page of the source and returns detected
// tables keyed by 1-based page number. Pages whose text cannot be
// extracted are skipped; the pre-pass itself only fails on context
// cancellation.
func (e *Extractor) ExtractTables(ctx context.Context, source driven.DocumentSource) (map[int][]domain.Table, error) {
	result := make(map[int][]domain.Table)

	for n := 1; n <= source.PageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := source.Page(ctx, n)
		if err != nil {
			continue
		}

		tables := DetectTables(page.Text)
		if len(tables) > 0 {
			result[n] = tables
		}
	}
	return result, nil
}

// DetectTables finds aligned-column regions in one page's text.
func DetectTables(text string) []domain.Table {
	lines := strings.Split(text, "\n")

	var tables []domain.Table
	var block []string
	blockStart := 0

	flush := func(end int) {
		if len(block) >= minTableRows {
			if table, ok := renderTable(lines, block, blockStart, end); ok {
				tables = append(tables, table)
			}
		}
		block = nil
	}

	for i, line := range lines {
		if cells := splitColumns(line); len(cells) >= minColumns {
			if len(block) == 0 {
				blockStart = i
			}
			block = append(block, line)
			continue
		}
		flush(i - 1)
	}
	flush(len(lines) - 1)

	return tables
}

// renderTable turns a run of aligned lines into a markdown table.
// Rows with a cell count differing from the header are ragged; a block
// that is mostly ragged is rejected as prose rather than a table.
func renderTable(lines, block []string, start, end int) (domain.Table, bool) {
	header := splitColumns(block[0])
	columns := len(header)

	ragged := 0
	rows := make([][]string, 0, len(block))
	for _, line := range block {
		cells := splitColumns(line)
		if len(cells) != columns {
			ragged++
			cells = padCells(cells, columns)
		}
		rows = append(rows, cells)
	}
	if ragged*2 > len(block) {
		return domain.Table{}, false
	}

	var sb strings.Builder
	writeRow(&sb, rows[0])
	sb.WriteString("|")
	for i := 0; i < columns; i++ {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for _, row := range rows[1:] {
		writeRow(&sb, row)
	}

	return domain.Table{
		Text:         strings.TrimSuffix(sb.String(), "\n"),
		CaptionAbove: nearestCaption(lines, start-1, -1),
		CaptionBelow: nearestCaption(lines, end+1, +1),
		BBox:         [4]float64{0, float64(start + 1), 0, float64(end + 1)},
	}, true
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, cell := range cells {
		fmt.Fprintf(sb, " %s |", cell)
	}
	sb.WriteString("\n")
}

// columnGap matches the separators between table cells: a pipe, a tab,
// or a gutter of two or more spaces.
var columnGap = regexp.MustCompile(`\s*\|\s*|\t+| {2,}`)

// splitColumns splits a line into cells. Lines that are blank or have
// a single cell yield nothing tabular.
func splitColumns(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	trimmed = strings.Trim(trimmed, "|")

	parts := columnGap.Split(trimmed, -1)
	cells := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			cells = append(cells, part)
		}
	}
	return cells
}

func padCells(cells []string, n int) []string {
	for len(cells) < n {
		cells = append(cells, "")
	}
	return cells[:n]
}

// captionSearch is how many lines around a block are checked for a
// caption.
const captionSearch = 2

// nearestCaption returns the closest non-empty line in the given
// direction, but only when it reads like a caption.
func nearestCaption(lines []string, from, step int) string {
	for i, seen := from, 0; i >= 0 && i < len(lines) && seen < captionSearch; i, seen = i+step, seen+1 {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if isCaption(line) {
			return line
		}
		return ""
	}
	return ""
}

// isCaption reports whether a line looks like a table caption.
func isCaption(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "table") || strings.HasPrefix(lower, "tab.")
}
