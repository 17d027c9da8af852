package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	dslipak "github.com/dslipak/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

// maxTitleLength caps titles sniffed from page text.
const maxTitleLength = 200

var _ driven.DocumentSource = (*Source)(nil)

// Source is a PDF-backed document source. Opening a Source validates
// and optimizes the input into a temp directory and splits it into
// single-page files there; Close removes the directory.
type Source struct {
	tempDir   string
	optimized string
	title     string
	pageCount int
	sections  []driven.SectionEntry
	reader    *dslipak.Reader
}

// NewSource opens the PDF at path.
func NewSource(path string) (*Source, error) {
	tempDir, err := os.MkdirTemp("", "docstash-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}

	s := &Source{
		tempDir:   tempDir,
		optimized: filepath.Join(tempDir, "source.pdf"),
	}

	if err := s.prepare(path); err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}
	return s, nil
}

func (s *Source) prepare(path string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(path, s.optimized, cfg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPDF, err)
	}

	pageCount, err := api.PageCountFile(s.optimized)
	if err != nil {
		return fmt.Errorf("%w: page count: %v", domain.ErrInvalidPDF, err)
	}
	s.pageCount = pageCount

	if err := api.SplitFile(s.optimized, s.tempDir, 1, nil); err != nil {
		return fmt.Errorf("%w: splitting pages: %v", domain.ErrInvalidPDF, err)
	}

	reader, err := dslipak.Open(s.optimized)
	if err != nil {
		return fmt.Errorf("%w: opening reader: %v", domain.ErrInvalidPDF, err)
	}
	s.reader = reader

	s.sections = readBookmarks(s.optimized)
	s.title = s.resolveTitle(path)
	return nil
}

// resolveTitle sniffs the first non-empty line of page one, falling
// back to the file basename when the page yields no text.
func (s *Source) resolveTitle(path string) string {
	if s.pageCount > 0 {
		if text, err := s.pageText(1); err == nil {
			if title := firstLine(text); title != "" {
				return title
			}
		}
	}
	return baseTitle(path)
}

// readBookmarks returns the outermost bookmark level as sections.
// Documents without bookmarks yield nil; bookmark read errors are
// treated the same way since structure is an optional enrichment.
func readBookmarks(path string) []driven.SectionEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	bookmarks, err := api.Bookmarks(f, nil)
	if err != nil {
		return nil
	}

	sections := make([]driven.SectionEntry, 0, len(bookmarks))
	for _, b := range bookmarks {
		title := strings.TrimSpace(b.Title)
		if title == "" {
			continue
		}
		sections = append(sections, driven.SectionEntry{
			Title:     title,
			StartPage: b.PageFrom,
		})
	}
	return sections
}

// Title returns the document title.
func (s *Source) Title() string {
	return s.title
}

// PageCount returns the number of pages.
func (s *Source) PageCount() int {
	return s.pageCount
}

// Page returns the 1-based page n with its raw sub-document bytes,
// extracted text and embedded images.
func (s *Source) Page(ctx context.Context, n int) (*driven.SourcePage, error) {
	if n < 1 || n > s.pageCount {
		return nil, fmt.Errorf("%w: page %d of %d", domain.ErrInvalidInput, n, s.pageCount)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.pageFile(n))
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", domain.ErrUnreadablePage, n, err)
	}

	text, err := s.pageText(n)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", domain.ErrUnreadablePage, n, err)
	}

	images, err := s.pageImages(n)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d images: %v", domain.ErrUnreadablePage, n, err)
	}

	return &driven.SourcePage{
		Number: n,
		Raw:    raw,
		Text:   text,
		Images: images,
	}, nil
}

// pageFile returns the path of the split single-page file for page n.
// SplitFile names output files after the input base name.
func (s *Source) pageFile(n int) string {
	base := strings.TrimSuffix(s.optimized, filepath.Ext(s.optimized))
	return fmt.Sprintf("%s_%d.pdf", base, n)
}

// pageText extracts plain text for page n. The reader panics on some
// malformed content streams, so the panic is converted to an error
// here rather than taking the whole run down.
func (s *Source) pageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text extraction: %v", r)
		}
	}()

	page := s.reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d has no content", n)
	}
	return page.GetPlainText(nil)
}

// pageImages extracts the embedded images of page n.
func (s *Source) pageImages(n int) ([]driven.ImageData, error) {
	f, err := os.Open(s.optimized)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var images []driven.ImageData
	extracted, err := api.ExtractImagesRaw(f, []string{strconv.Itoa(n)}, nil)
	if err != nil {
		return nil, err
	}
	for _, pageImages := range extracted {
		for _, img := range pageImages {
			data, err := readAll(img)
			if err != nil {
				return nil, err
			}
			if len(data) == 0 {
				continue
			}
			images = append(images, driven.ImageData{
				Data:     data,
				MIMEType: mimeTypeForImage(img.FileType),
			})
		}
	}
	return images, nil
}

// FrontMatter renders the first n pages as one self-contained document.
func (s *Source) FrontMatter(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n >= s.pageCount {
		return os.ReadFile(s.optimized)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: front matter of %d pages", domain.ErrInvalidInput, n)
	}

	out := filepath.Join(s.tempDir, "front.pdf")
	pages := []string{fmt.Sprintf("1-%d", n)}
	if err := api.TrimFile(s.optimized, out, pages, nil); err != nil {
		return nil, fmt.Errorf("%w: trimming front matter: %v", domain.ErrInvalidPDF, err)
	}
	return os.ReadFile(out)
}

// Sections returns the outermost table-of-contents entries.
func (s *Source) Sections() []driven.SectionEntry {
	return s.sections
}

// Close removes the temp directory holding the optimized copy and the
// split pages.
func (s *Source) Close() error {
	return os.RemoveAll(s.tempDir)
}

// readAll drains an extracted image's reader.
func readAll(img model.Image) ([]byte, error) {
	if img.Reader == nil {
		return nil, nil
	}
	return io.ReadAll(img.Reader)
}

// firstLine returns the first non-empty line, capped at maxTitleLength.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > maxTitleLength {
			line = line[:maxTitleLength]
		}
		return line
	}
	return ""
}

// baseTitle derives a title from a file path by stripping directory
// and extension.
func baseTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// mimeTypeForImage maps a pdfcpu image file type to a media type.
func mimeTypeForImage(fileType string) string {
	switch strings.ToLower(fileType) {
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
