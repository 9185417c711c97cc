package documents

import (
	"bytes"
	"context"
	"testing"

	"github.com/fyrsmithlabs/landrag/internal/documents/documentstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extract(t *testing.T, data []byte) ([]Page, error) {
	t.Helper()
	return PDFExtractor{}.Extract(context.Background(), bytes.NewReader(data), int64(len(data)))
}

func TestPDFExtractor_Pages(t *testing.T) {
	data := documentstest.PDF("Land plot regulations", "", "Second text page")

	pages, err := extract(t, data)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].Number)
	assert.Contains(t, pages[0].Text, "Land plot regulations")
	assert.Equal(t, 3, pages[1].Number, "blank pages are skipped but numbering is kept")
	assert.Contains(t, pages[1].Text, "Second text page")
}

func TestPDFExtractor_NoContent(t *testing.T) {
	_, err := extract(t, documentstest.PDF("", ""))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = extract(t, nil)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestPDFExtractor_NotAPDF(t *testing.T) {
	_, err := extract(t, []byte("this is plain text, not a pdf"))
	assert.ErrorIs(t, err, ErrLoad)
}
