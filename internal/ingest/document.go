package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fyrsmithlabs/landrag/internal/chunker"
	"github.com/fyrsmithlabs/landrag/internal/documents"
	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"go.uber.org/zap"
)

// Source is an uploaded document.
type Source struct {
	// Name is the original file name, stored as the chunk source.
	Name   string
	Reader io.ReaderAt
	Size   int64
}

// DocumentPipeline ingests PDF documents as chunked text points.
//
// Chunk ids are random, so ingesting the same document twice stores two
// copies of its chunks.
type DocumentPipeline struct {
	deps      Deps
	extractor documents.Extractor
	splitter  chunker.Splitter
	log       *logging.Logger
}

// NewDocumentPipeline creates a document pipeline. The splitter must be valid.
func NewDocumentPipeline(deps Deps, extractor documents.Extractor, splitter chunker.Splitter) (*DocumentPipeline, error) {
	if err := splitter.Validate(); err != nil {
		return nil, err
	}
	if extractor == nil {
		extractor = documents.PDFExtractor{}
	}
	return &DocumentPipeline{
		deps:      deps,
		extractor: extractor,
		splitter:  splitter,
		log:       deps.logger().Named("ingest.document"),
	}, nil
}

// IngestDocument appends the document's chunks to collection, creating the
// collection when it is missing. An existing collection is never dropped.
func (p *DocumentPipeline) IngestDocument(ctx context.Context, src Source, collection string) (res DocumentResult) {
	ctx, done := p.deps.track(ctx, PipelineDocument, "ingest", collection)
	defer func() { done(res.Status, res.Message) }()

	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return DocumentResult{Status: StatusError, Message: err.Error()}
	}

	chunks, errRes, ok := p.chunk(ctx, src)
	if !ok {
		return errRes
	}

	store := p.deps.Store
	exists, err := store.CollectionExists(ctx, collection)
	if err != nil {
		return p.storeFailure(ctx, collection, len(chunks), err)
	}
	if !exists {
		dim := p.deps.Embedder.Dimension()
		p.log.Info(ctx, "creating collection", zap.Int("dimension", dim))
		if err := store.CreateCollection(ctx, collection, dim); err != nil && !errors.Is(err, vectorstore.ErrCollectionExists) {
			return p.storeFailure(ctx, collection, len(chunks), err)
		}
	}

	points, err := p.buildPoints(ctx, src.Name, chunks)
	if err != nil {
		return DocumentResult{
			Status:         StatusError,
			Message:        "Embedding generation failed: " + err.Error(),
			CollectionName: collection,
			TotalChunks:    len(chunks),
		}
	}
	if len(points) == 0 {
		return DocumentResult{
			Status:         StatusError,
			Message:        "No valid chunks to ingest",
			CollectionName: collection,
			TotalChunks:    len(chunks),
		}
	}

	p.log.Info(ctx, "inserting chunk points", zap.Int("points", len(points)))
	if err := store.Insert(ctx, collection, points); err != nil {
		return p.storeFailure(ctx, collection, len(chunks), err)
	}
	p.deps.wrote(ctx, PipelineDocument, len(points))

	msg := fmt.Sprintf("Successfully ingested %d chunks from '%s' into '%s'.", len(points), src.Name, collection)
	p.log.Info(ctx, msg)
	return DocumentResult{
		Status:         StatusSuccess,
		Message:        msg,
		CollectionName: collection,
		TotalChunks:    len(chunks),
		IngestedPoints: len(points),
	}
}

// UpdateDocument upserts the document's chunks into an existing collection.
func (p *DocumentPipeline) UpdateDocument(ctx context.Context, src Source, collection string) (res DocumentResult) {
	ctx, done := p.deps.track(ctx, PipelineDocument, "update", collection)
	defer func() { done(res.Status, res.Message) }()

	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return DocumentResult{Status: StatusError, Message: err.Error()}
	}

	exists, err := p.deps.Store.CollectionExists(ctx, collection)
	if err != nil {
		return p.storeFailure(ctx, collection, 0, err)
	}
	if !exists {
		p.log.Error(ctx, "collection does not exist, cannot update")
		return DocumentResult{
			Status:         StatusError,
			Message:        missingCollectionMessage(collection),
			CollectionName: collection,
		}
	}

	chunks, errRes, ok := p.chunk(ctx, src)
	if !ok {
		errRes.CollectionName = collection
		return errRes
	}

	points, err := p.buildPoints(ctx, src.Name, chunks)
	if err != nil {
		return DocumentResult{
			Status:         StatusError,
			Message:        "Embedding generation failed: " + err.Error(),
			CollectionName: collection,
			TotalChunks:    len(chunks),
		}
	}
	if len(points) == 0 {
		return DocumentResult{
			Status:         StatusError,
			Message:        "No valid chunks to ingest",
			CollectionName: collection,
			TotalChunks:    len(chunks),
		}
	}

	p.log.Info(ctx, "upserting chunk points", zap.Int("points", len(points)))
	if err := p.deps.Store.Upsert(ctx, collection, points); err != nil {
		return p.storeFailure(ctx, collection, len(chunks), err)
	}
	p.deps.wrote(ctx, PipelineDocument, len(points))

	msg := fmt.Sprintf("Successfully upserted %d chunks from '%s' into '%s'.", len(points), src.Name, collection)
	p.log.Info(ctx, msg)
	return DocumentResult{
		Status:         StatusSuccess,
		Message:        msg,
		CollectionName: collection,
		TotalChunks:    len(chunks),
		IngestedPoints: len(points),
	}
}

// chunk extracts and splits the document. Extraction failures end the
// request before any store mutation.
func (p *DocumentPipeline) chunk(ctx context.Context, src Source) ([]chunker.Chunk, DocumentResult, bool) {
	pages, err := p.extractor.Extract(ctx, src.Reader, src.Size)
	switch {
	case errors.Is(err, documents.ErrNoContent):
		p.log.Warn(ctx, "no text extracted", zap.String("source", src.Name))
		return nil, DocumentResult{Status: StatusError, Message: "No content extracted from PDF"}, false
	case err != nil:
		p.log.Error(ctx, "failed to load document", zap.String("source", src.Name), zap.Error(err))
		return nil, DocumentResult{Status: StatusError, Message: "Failed to load PDF: " + err.Error()}, false
	}

	chunks := p.splitter.SplitPages(pages)
	if len(chunks) == 0 {
		return nil, DocumentResult{Status: StatusError, Message: "No content extracted from PDF"}, false
	}
	p.log.Debug(ctx, "document split",
		zap.String("source", src.Name),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))
	return chunks, DocumentResult{}, true
}

// buildPoints embeds all chunk texts in one batch. A vector of the wrong
// length skips its chunk only.
func (p *DocumentPipeline) buildPoints(ctx context.Context, source string, chunks []chunker.Chunk) ([]vectorstore.Point, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.deps.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		p.log.Error(ctx, "embedding generation failed", zap.Error(err))
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	dim := p.deps.Embedder.Dimension()
	points := make([]vectorstore.Point, 0, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != dim {
			p.log.Warn(ctx, "skipping chunk", zap.Int("chunk_index", c.Index), zap.String("reason", ReasonDimension))
			p.deps.Metrics.skip(PipelineDocument, ReasonDimension)
			continue
		}
		// Stored pages are 0-based page indexes.
		var page any
		if c.Page != nil {
			page = int64(*c.Page - 1)
		}
		points = append(points, vectorstore.Point{
			ID:     vectorstore.NewUUID(),
			Vector: vectors[i],
			Payload: map[string]any{
				"text":        c.Text,
				"source":      source,
				"page":        page,
				"chunk_index": int64(c.Index),
			},
		})
	}
	return points, nil
}

func (p *DocumentPipeline) storeFailure(ctx context.Context, collection string, total int, err error) DocumentResult {
	p.log.Error(ctx, "vector store call failed", zap.Error(err))
	return DocumentResult{
		Status:         StatusError,
		Message:        storeErrorMessage(err),
		CollectionName: collection,
		TotalChunks:    total,
	}
}
