// Package chunker splits extracted document text into bounded, overlapping
// chunks for embedding.
//
// Text is cut at the coarsest separator that keeps a piece within Size
// runes, falling back to finer separators and finally to a hard cut.
// Separators stay attached to the piece they end, so the bodies of
// consecutive chunks concatenate back to the input, except that pieces
// holding only whitespace are dropped rather than merged into a neighbour,
// which would push it past Size. Each chunk after the first on a page is
// prefixed with up to Overlap runes of the text before it, dropped runs
// included.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fyrsmithlabs/landrag/internal/documents"
	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults used when no settings are configured.
const (
	DefaultSize    = 500
	DefaultOverlap = 100
)

// DefaultSeparators lists boundaries from coarsest to finest. The empty
// separator means a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// ErrInvalidSettings is returned by Validate.
var ErrInvalidSettings = errors.New("invalid chunker settings")

// Splitter splits text into chunks of at most Size+Overlap runes.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

var _ textsplitter.TextSplitter = Splitter{}

// New returns a Splitter with the default separators.
func New(size, overlap int) (Splitter, error) {
	s := Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
	return s, s.Validate()
}

// Validate checks the size settings.
func (s Splitter) Validate() error {
	if s.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidSettings, s.Size)
	}
	if s.Overlap < 0 || s.Overlap >= s.Size {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidSettings, s.Size, s.Overlap)
	}
	return nil
}

// Chunk is one retrieval unit.
type Chunk struct {
	// Text is the overlap prefix followed by the body.
	Text string
	// Page is the 1-based source page, nil when unknown.
	Page *int
	// Index is the zero-based position across the whole document.
	Index int

	overlap int
}

// Body returns the chunk text without its overlap prefix.
func (c Chunk) Body() string {
	return c.Text[c.overlap:]
}

// Split returns the chunk texts for text.
func (s Splitter) Split(text string) []string {
	chunks := s.split(text)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// SplitText implements textsplitter.TextSplitter.
func (s Splitter) SplitText(text string) ([]string, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s.Split(text), nil
}

// SplitPages chunks each page separately and numbers chunks contiguously
// across pages. Overlap never crosses a page boundary.
func (s Splitter) SplitPages(pages []documents.Page) []Chunk {
	var out []Chunk
	for _, p := range pages {
		var page *int
		if p.Number > 0 {
			n := p.Number
			page = &n
		}
		for _, c := range s.split(p.Text) {
			c.Page = page
			c.Index = len(out)
			out = append(out, c)
		}
	}
	return out
}

func (s Splitter) split(text string) []Chunk {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	bodies := s.pieces(text, seps)

	var out []Chunk
	consumed := 0
	for _, body := range bodies {
		prefix := overlapPrefix(text[:consumed], s.Overlap)
		consumed += len(body)
		// Dropped, but still counted so later prefixes see the real text.
		if strings.TrimSpace(body) == "" {
			continue
		}
		out = append(out, Chunk{Text: prefix + body, overlap: len(prefix)})
	}
	return out
}

// pieces cuts text into consecutive pieces of at most Size runes, greedily
// merging neighbours split at the same separator.
func (s Splitter) pieces(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.Size {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	sep, rest := "", []string(nil)
	for i, c := range seps {
		if c == "" || strings.Contains(text, c) {
			sep, rest = c, seps[i+1:]
			break
		}
	}
	if sep == "" {
		return hardCut(text, s.Size)
	}

	var out []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	for _, part := range splitAfter(text, sep) {
		n := utf8.RuneCountInString(part)
		if n > s.Size {
			flush()
			out = append(out, s.pieces(part, rest)...)
			continue
		}
		if curLen+n > s.Size {
			flush()
		}
		cur.WriteString(part)
		curLen += n
	}
	flush()
	return out
}

// splitAfter splits text after each occurrence of sep, keeping sep on the
// left piece.
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

func hardCut(text string, size int) []string {
	var out []string
	for text != "" {
		i, n := 0, 0
		for i < len(text) && n < size {
			_, w := utf8.DecodeRuneInString(text[i:])
			i += w
			n++
		}
		out = append(out, text[:i])
		text = text[i:]
	}
	return out
}

// overlapPrefix returns at most limit runes from the end of before, starting
// after the first whitespace in that window so words are not cut.
func overlapPrefix(before string, limit int) string {
	if limit <= 0 || before == "" {
		return ""
	}
	start := len(before)
	for n := 0; n < limit && start > 0; n++ {
		_, w := utf8.DecodeLastRuneInString(before[:start])
		start -= w
	}
	tail := before[start:]
	if start == 0 {
		return tail
	}
	if i := strings.IndexFunc(tail, unicode.IsSpace); i >= 0 {
		tail = strings.TrimLeftFunc(tail[i:], unicode.IsSpace)
	}
	return tail
}
