// Package pdf adapts PDF files to the pipeline's document source
// contract. Structure-level work (splitting, page extraction, images,
// bookmarks) goes through pdfcpu; per-page plain text comes from the
// dslipak reader, which handles font decoding.
package pdf
