package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fyrsmithlabs/landrag/internal/documents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticText() string {
	var b strings.Builder
	for p := range 6 {
		for s := range 9 {
			b.WriteString("Участок номер ")
			b.WriteString(strings.Repeat("ab", p+s))
			b.WriteString(" расположен у дороги. ")
		}
		b.WriteString("\n")
		b.WriteString(strings.Repeat("строка без точек ", 5))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Repeat("x", 1200))
	return b.String()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		size, overlap int
		wantErr       bool
	}{
		{500, 100, false},
		{10, 0, false},
		{0, 0, true},
		{100, 100, true},
		{100, -1, true},
	}
	for _, tt := range tests {
		_, err := New(tt.size, tt.overlap)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidSettings)
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	s, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	assert.Equal(t, []string{"Короткий текст."}, s.Split("Короткий текст."))
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("  \n\n "))
}

func TestSplit_Coverage(t *testing.T) {
	text := syntheticText()
	s, err := New(DefaultSize, DefaultOverlap)
	require.NoError(t, err)

	chunks := s.split(text)
	require.Greater(t, len(chunks), 3)

	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c.Body())
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), s.Size+s.Overlap)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Body()), s.Size)
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplit_DropsWhitespacePieces(t *testing.T) {
	s := Splitter{Size: 5, Overlap: 0, Separators: DefaultSeparators}
	chunks := s.split("abcd\n     \nefgh")
	require.Len(t, chunks, 2)

	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c.Body())
	}
	assert.Equal(t, "abcd\nefgh", rebuilt.String())
}

func TestSplit_PrefersCoarseSeparators(t *testing.T) {
	para := strings.Repeat("слово ", 10)
	text := para + "\n\n" + para + "\n\n" + para
	s := Splitter{Size: 70, Overlap: 0, Separators: DefaultSeparators}

	got := s.Split(text)
	require.Len(t, got, 3)
	assert.Equal(t, para+"\n\n", got[0])
	assert.Equal(t, para, got[2])
}

func TestSplit_HardCut(t *testing.T) {
	s := Splitter{Size: 4, Overlap: 0, Separators: DefaultSeparators}
	assert.Equal(t, []string{"абвг", "деёж", "з"}, s.Split("абвгдеёжз"))
}

func TestSplit_OverlapStartsAtWordBoundary(t *testing.T) {
	s := Splitter{Size: 20, Overlap: 8, Separators: DefaultSeparators}
	chunks := s.split("alpha beta gamma delta epsilon zeta eta theta")
	require.Greater(t, len(chunks), 1)

	assert.Zero(t, chunks[0].overlap)
	for _, c := range chunks[1:] {
		prefix := c.Text[:c.overlap]
		assert.LessOrEqual(t, utf8.RuneCountInString(prefix), 8)
		assert.False(t, strings.HasPrefix(prefix, " "))
	}
}

func TestSplitPages(t *testing.T) {
	s := Splitter{Size: 30, Overlap: 5, Separators: DefaultSeparators}
	pages := []documents.Page{
		{Number: 1, Text: strings.Repeat("один два три ", 6)},
		{Number: 2, Text: "   "},
		{Number: 3, Text: "короткая страница"},
		{Number: 0, Text: "без номера"},
	}

	chunks := s.SplitPages(pages)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "indexes must be contiguous")
	}

	last := chunks[len(chunks)-1]
	assert.Nil(t, last.Page)
	assert.Equal(t, "без номера", last.Text)

	prev := chunks[len(chunks)-2]
	require.NotNil(t, prev.Page)
	assert.Equal(t, 3, *prev.Page)
	assert.Equal(t, "короткая страница", prev.Text, "overlap must not cross pages")

	for _, c := range chunks {
		if c.Page != nil {
			assert.NotEqual(t, 2, *c.Page, "blank pages yield no chunks")
		}
	}
}

func TestSplitText_Interface(t *testing.T) {
	_, err := Splitter{Size: 0}.SplitText("x")
	assert.ErrorIs(t, err, ErrInvalidSettings)

	out, err := Splitter{Size: 10, Overlap: 2}.SplitText("hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, out)
}
