package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("landrag.vectorstore.chromem")

// errPrecomputedOnly is returned if chromem ever tries to embed text itself.
var errPrecomputedOnly = errors.New("chromem store accepts precomputed vectors only")

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string

	// Compress enables gzip compression of persisted documents.
	Compress bool

	// Dimension is the vector size assumed for collections this process
	// did not create itself (e.g. after reopening a persistent DB).
	Dimension int
}

// ChromemStore is a Store backed by chromem-go.
//
// Payloads are kept as protojson in the document content so integer and
// double kinds survive a round trip. Top-level scalar fields are mirrored
// into metadata as typed strings for filtering.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger

	dims sync.Map // collection name -> int
}

// NewChromemStore opens an in-memory or persistent chromem database.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Dimension < 0 {
		return nil, fmt.Errorf("%w: dimension must not be negative", ErrInvalidConfig)
	}

	var db *chromem.DB
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		path, err := expandHome(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", path, err)
		}
		db, err = chromem.NewPersistentDB(path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = path
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.Bool("persistent", config.Path != ""),
		zap.Int("dimension", config.Dimension),
	)

	return &ChromemStore{db: db, config: config, logger: logger}, nil
}

func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	c := s.db.GetCollection(name, noEmbed)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (s *ChromemStore) dimension(name string) int {
	if d, ok := s.dims.Load(name); ok {
		return d.(int)
	}
	return s.config.Dimension
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error { return nil }

// Health always succeeds for the embedded store.
func (s *ChromemStore) Health(context.Context) error { return nil }

// CollectionExists checks if a collection exists.
func (s *ChromemStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	return s.db.GetCollection(name, noEmbed) != nil, nil
}

// CreateCollection creates a collection. chromem only supports cosine.
func (s *ChromemStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CreateCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("vector_size", dimension))

	if err := ValidateCollectionName(name); err != nil {
		return fail(span, err)
	}
	if dimension <= 0 {
		return fail(span, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension))
	}
	// chromem's CreateCollection is idempotent, so existence is checked here.
	if s.db.GetCollection(name, noEmbed) != nil {
		return fail(span, fmt.Errorf("%w: %s", ErrCollectionExists, name))
	}
	if _, err := s.db.CreateCollection(name, nil, noEmbed); err != nil {
		return fail(span, fmt.Errorf("creating collection %s: %w", name, err))
	}
	s.dims.Store(name, dimension)

	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteCollection drops a collection; absent collections are not an error.
func (s *ChromemStore) DeleteCollection(ctx context.Context, name string) error {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return fail(span, err)
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fail(span, fmt.Errorf("deleting collection %s: %w", name, err))
	}
	s.dims.Delete(name)

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Insert writes points. chromem writes are synchronous.
func (s *ChromemStore) Insert(ctx context.Context, name string, points []Point) error {
	return s.write(ctx, "ChromemStore.Insert", name, points)
}

// Upsert writes points; an existing document with the same id is replaced whole.
func (s *ChromemStore) Upsert(ctx context.Context, name string, points []Point) error {
	return s.write(ctx, "ChromemStore.Upsert", name, points)
}

func (s *ChromemStore) write(ctx context.Context, op, name string, points []Point) error {
	ctx, span := chromemTracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("point_count", len(points)))

	c, err := s.collection(name)
	if err != nil {
		return fail(span, err)
	}
	if len(points) == 0 {
		span.SetStatus(codes.Ok, "nothing to write")
		return nil
	}

	dim := s.dimension(name)
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		if dim > 0 && len(p.Vector) != dim {
			return fail(span, fmt.Errorf("%w: point %s has %d values, collection %s expects %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), name, dim))
		}
		content, err := marshalPayload(p.Payload)
		if err != nil {
			return fail(span, fmt.Errorf("point %s: %w", p.ID, err))
		}
		docs[i] = chromem.Document{
			ID:        p.ID.String(),
			Metadata:  scalarMetadata(p.Payload),
			Embedding: p.Vector,
			Content:   content,
		}
	}

	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return fail(span, fmt.Errorf("writing %d points to %s: %w", len(points), name, err))
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Scroll returns one page of a filtered scan ordered by point id.
// chromem has no listing API, so the page is cut from an exhaustive
// query with a fixed unit vector.
func (s *ChromemStore) Scroll(ctx context.Context, req ScrollRequest) (ScrollPage, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Scroll")
	defer span.End()
	span.SetAttributes(attribute.String("collection", req.Collection), attribute.Int("limit", req.Limit))

	c, err := s.collection(req.Collection)
	if err != nil {
		return ScrollPage{}, fail(span, err)
	}

	matches, err := s.matching(ctx, c, req.Collection, req.Filter)
	if err != nil {
		return ScrollPage{}, fail(span, err)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID.Less(matches[j].ID) })

	start := 0
	if req.Offset != nil {
		start = sort.Search(len(matches), func(i int) bool { return !matches[i].ID.Less(*req.Offset) })
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	end := min(start+limit, len(matches))

	page := ScrollPage{Records: matches[start:end]}
	if end < len(matches) {
		next := matches[end].ID
		page.Next = &next
	}

	span.SetAttributes(attribute.Int("record_count", len(page.Records)), attribute.Bool("has_next", page.Next != nil))
	span.SetStatus(codes.Ok, "success")
	return page, nil
}

func (s *ChromemStore) matching(ctx context.Context, c *chromem.Collection, name string, filter *FieldMatch) ([]Record, error) {
	n := c.Count()
	if n == 0 {
		return nil, nil
	}
	dim := s.dimension(name)
	if dim <= 0 {
		return nil, fmt.Errorf("%w: unknown dimension for collection %s", ErrInvalidConfig, name)
	}

	var where map[string]string
	accept := map[string]bool{}
	if filter != nil {
		if filter.Key == "" || len(filter.Values) == 0 {
			return nil, errors.New("field match needs a key and at least one value")
		}
		for _, v := range filter.Values {
			key, ok := matchKey(v)
			if !ok {
				return nil, fmt.Errorf("unsupported match value type %T", v)
			}
			accept[key] = true
		}
		if len(filter.Values) == 1 {
			k, _ := matchKey(filter.Values[0])
			where = map[string]string{filter.Key: k}
		}
	}

	unit := make([]float32, dim)
	unit[0] = 1
	results, err := c.QueryEmbedding(ctx, unit, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", name, err)
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		if filter != nil && !accept[r.Metadata[filter.Key]] {
			continue
		}
		rec, err := toRecord(r.ID, r.Content)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRecord(id, content string) (Record, error) {
	pid, err := ParsePointID(id)
	if err != nil {
		return Record{}, err
	}
	payload, err := unmarshalPayload(content)
	if err != nil {
		return Record{}, fmt.Errorf("point %s: %w", id, err)
	}
	return Record{ID: pid, Payload: payload}, nil
}

// Retrieve fetches a single point by id.
func (s *ChromemStore) Retrieve(ctx context.Context, name string, id PointID) (*Record, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.String("point_id", id.String()))

	c, err := s.collection(name)
	if err != nil {
		return nil, fail(span, err)
	}
	// GetByID only fails for unknown ids.
	doc, err := c.GetByID(ctx, id.String())
	if err != nil {
		span.SetStatus(codes.Ok, "not found")
		return nil, nil
	}
	rec, err := toRecord(doc.ID, doc.Content)
	if err != nil {
		return nil, fail(span, err)
	}

	span.SetStatus(codes.Ok, "success")
	return &rec, nil
}

// Search returns the k most similar points.
func (s *ChromemStore) Search(ctx context.Context, name string, vector []float32, k int) ([]ScoredPoint, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("k", k))

	c, err := s.collection(name)
	if err != nil {
		return nil, fail(span, err)
	}
	if k <= 0 {
		return nil, fail(span, errors.New("k must be positive"))
	}
	n := min(k, c.Count())
	if n == 0 {
		span.SetStatus(codes.Ok, "empty collection")
		return nil, nil
	}

	results, err := c.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fail(span, fmt.Errorf("searching %s: %w", name, err))
	}

	hits := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		rec, err := toRecord(r.ID, r.Content)
		if err != nil {
			return nil, fail(span, err)
		}
		hits = append(hits, ScoredPoint{Record: rec, Score: r.Similarity})
	}

	span.SetAttributes(attribute.Int("result_count", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}
