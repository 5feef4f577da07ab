// Package pdftext extracts plain text from PDF documents.
//
// Extraction is page-ordered: each page contributes its extractable text,
// and pages with no extractable text contribute an empty string rather
// than failing the document.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction is returned when a document cannot be opened or parsed.
var ErrExtraction = errors.New("failed to extract document text")

// Document is an opaque handle to an uploaded source document.
type Document struct {
	// Filename is the base name of the source file.
	Filename string

	// Data is the raw document bytes.
	Data []byte
}

// Open reads a document from disk.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return &Document{
		Filename: filepath.Base(path),
		Data:     data,
	}, nil
}

// Extract returns the page-ordered plain-text concatenation of the document.
// Individual pages that yield no text are skipped silently; a document that
// cannot be parsed at all returns ErrExtraction.
func Extract(doc *Document) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrExtraction)
	}

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Unreadable page contributes nothing.
			continue
		}
		text.WriteString(pageText)
	}

	return text.String(), nil
}
