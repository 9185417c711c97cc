package embeddings

import "context"

// Default prefixes for e5-family models.
const (
	DefaultDocumentPrefix = "passage: "
	DefaultQueryPrefix    = "query: "
)

// Prefixed prepends mode-specific prefixes before delegating.
type Prefixed struct {
	next           Provider
	documentPrefix string
	queryPrefix    string
}

// NewPrefixed wraps next so documents and queries get their own prefix.
func NewPrefixed(next Provider, documentPrefix, queryPrefix string) *Prefixed {
	return &Prefixed{next: next, documentPrefix: documentPrefix, queryPrefix: queryPrefix}
}

// EmbedDocuments prefixes every text with the document prefix.
func (p *Prefixed) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = p.documentPrefix + t
	}
	return p.next.EmbedDocuments(ctx, prefixed)
}

// EmbedQuery prefixes text with the query prefix.
func (p *Prefixed) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return p.next.EmbedQuery(ctx, text)
	}
	return p.next.EmbedQuery(ctx, p.queryPrefix+text)
}

func (p *Prefixed) Dimension() int { return p.next.Dimension() }

func (p *Prefixed) Close() error { return p.next.Close() }
