// Package documents extracts per-page text from uploaded documents.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
)

var (
	// ErrNoContent is returned when a document has no extractable text.
	ErrNoContent = errors.New("no content extracted")

	// ErrLoad is returned when a document cannot be opened or parsed.
	ErrLoad = errors.New("failed to load document")
)

// Page is the text of one source page.
type Page struct {
	// Number is 1-based; 0 means unknown.
	Number int
	Text   string
}

// Extractor turns a document into pages of text.
type Extractor interface {
	Extract(ctx context.Context, r io.ReaderAt, size int64) ([]Page, error)
}

// PDFExtractor extracts text layers from PDF files. Scanned pages without a
// text layer yield empty text.
type PDFExtractor struct {
	// Password opens encrypted documents.
	Password string
}

// Extract returns one Page per PDF page that carries any text.
func (e PDFExtractor) Extract(ctx context.Context, r io.ReaderAt, size int64) (pages []Page, err error) {
	if size <= 0 {
		return nil, ErrNoContent
	}
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("%w: %v", ErrLoad, rec)
		}
	}()

	var opts []documentloaders.PDFOptions
	if e.Password != "" {
		opts = append(opts, documentloaders.WithPassword(e.Password))
	}
	docs, err := documentloaders.NewPDF(r, size, opts...).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	for i, d := range docs {
		if strings.TrimSpace(d.PageContent) == "" {
			continue
		}
		number := i + 1
		if n, ok := d.Metadata["page"].(int); ok {
			number = n
		}
		pages = append(pages, Page{Number: number, Text: d.PageContent})
	}
	if len(pages) == 0 {
		return nil, ErrNoContent
	}
	return pages, nil
}
