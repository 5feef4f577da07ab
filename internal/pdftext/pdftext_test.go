package pdftext_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/pdftext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_NilDocument(t *testing.T) {
	_, err := pdftext.Extract(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, pdftext.ErrExtraction)
}

func TestExtract_EmptyDocument(t *testing.T) {
	_, err := pdftext.Extract(&pdftext.Document{Filename: "empty.pdf"})
	require.Error(t, err)
	assert.ErrorIs(t, err, pdftext.ErrExtraction)
}

func TestExtract_CorruptDocument(t *testing.T) {
	doc := &pdftext.Document{
		Filename: "corrupt.pdf",
		Data:     []byte("this is not a pdf"),
	}
	_, err := pdftext.Extract(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, pdftext.ErrExtraction)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := pdftext.Open(filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pdftext.ErrExtraction)
}

func TestOpen_UsesBaseName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o600))

	doc, err := pdftext.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.NotEmpty(t, doc.Data)
}
