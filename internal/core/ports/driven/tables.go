package driven

import (
	"context"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
)

// TableExtractor detects tabular regions across a whole document in a
// single pre-pass, keyed by 1-based page number. This is an optional
// service - when nil, the table extraction stage is disabled.
type TableExtractor interface {
	// ExtractTables runs the pre-pass and returns every candidate
	// table grouped by page number. A table that cannot be rendered is
	// the caller's per-table failure to handle, not a reason to fail
	// the pre-pass.
	ExtractTables(ctx context.Context, source DocumentSource) (map[int][]domain.Table, error)
}
