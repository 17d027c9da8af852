package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
)

var (
	pdfMagic    = []byte("%PDF")
	sqliteMagic = []byte("SQLite format 3\x00")
)

// sniffPDF rejects inputs that do not start with the PDF header before
// any database mutation happens.
func sniffPDF(path string) error {
	header, err := readHeader(path, len(pdfMagic))
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(header, pdfMagic) {
		return fmt.Errorf("%w: %s is not a PDF file", domain.ErrInvalidPDF, path)
	}
	return nil
}

// sniffDatabase rejects an existing non-empty file that is not a
// SQLite database. A missing or empty file is fine, the store will
// initialise it.
func sniffDatabase(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a database file", path)
	}
	if info.Size() == 0 {
		return nil
	}

	header, err := readHeader(path, len(sqliteMagic))
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(header, sqliteMagic) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidDatabase, path)
	}
	return nil
}

func readHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	header := make([]byte, n)
	read, err := f.Read(header)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return header[:read], nil
}
