package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

var tracer = otel.Tracer("landrag.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string

	// Port is the gRPC port (6334), not the REST port.
	Port int

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// APIKey is sent as the api-key header when set.
	APIKey string

	// MaxMessageSize bounds gRPC messages in both directions.
	// Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("%w: max message size must be positive", ErrInvalidConfig)
	}
	return nil
}

// QdrantStore is a Store backed by Qdrant's native gRPC API.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
}

// NewQdrantStore connects to Qdrant and verifies the connection with a
// health check.
func NewQdrantStore(ctx context.Context, config QdrantConfig) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, config: config}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Health(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return store, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Health performs a health check on the Qdrant connection.
func (s *QdrantStore) Health(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.Health")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fail(span, fmt.Errorf("health check failed: %w", err))
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// fail records err on the span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// CollectionExists checks if a collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.CollectionExists")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return false, fail(span, err)
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fail(span, fmt.Errorf("checking collection %s: %w", name, err))
	}

	span.SetAttributes(attribute.Bool("exists", exists))
	span.SetStatus(codes.Ok, "success")
	return exists, nil
}

// CreateCollection creates a cosine collection.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.CreateCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("vector_size", dimension),
	)

	if err := ValidateCollectionName(name); err != nil {
		return fail(span, err)
	}
	if dimension <= 0 {
		return fail(span, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension))
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fail(span, fmt.Errorf("checking collection %s: %w", name, err))
	}
	if exists {
		return fail(span, fmt.Errorf("%w: %s", ErrCollectionExists, name))
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fail(span, fmt.Errorf("creating collection %s: %w", name, err))
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// DeleteCollection drops a collection; absent collections are not an error.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name))

	if err := ValidateCollectionName(name); err != nil {
		return fail(span, err)
	}

	// Qdrant reports success for unknown collections.
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fail(span, fmt.Errorf("deleting collection %s: %w", name, err))
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Insert writes points with wait=true.
func (s *QdrantStore) Insert(ctx context.Context, name string, points []Point) error {
	return s.write(ctx, "QdrantStore.Insert", name, points)
}

// Upsert writes points with wait=true. Qdrant upsert replaces the whole
// point, so stale payload keys never survive.
func (s *QdrantStore) Upsert(ctx context.Context, name string, points []Point) error {
	return s.write(ctx, "QdrantStore.Upsert", name, points)
}

func (s *QdrantStore) write(ctx context.Context, op, name string, points []Point) error {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("point_count", len(points)),
	)

	if err := ValidateCollectionName(name); err != nil {
		return fail(span, err)
	}
	if len(points) == 0 {
		span.SetStatus(codes.Ok, "nothing to write")
		return nil
	}

	structs := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload, err := toValueMap(p.Payload)
		if err != nil {
			return fail(span, fmt.Errorf("point %s: %w", p.ID, err))
		}
		structs[i] = &qdrant.PointStruct{
			Id:      toPointID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fail(span, fmt.Errorf("writing %d points to %s: %w", len(points), name, err))
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Scroll returns one page of a filtered scan.
func (s *QdrantStore) Scroll(ctx context.Context, req ScrollRequest) (ScrollPage, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Scroll")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", req.Collection),
		attribute.Int("limit", req.Limit),
	)

	if err := ValidateCollectionName(req.Collection); err != nil {
		return ScrollPage{}, fail(span, err)
	}

	scroll := &qdrant.ScrollPoints{
		CollectionName: req.Collection,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if req.Limit > 0 {
		scroll.Limit = qdrant.PtrOf(uint32(req.Limit))
	}
	if req.Offset != nil {
		scroll.Offset = toPointID(*req.Offset)
	}
	if req.Filter != nil {
		filter, err := toFilter(*req.Filter)
		if err != nil {
			return ScrollPage{}, fail(span, err)
		}
		scroll.Filter = filter
	}

	points, next, err := s.client.ScrollAndOffset(ctx, scroll)
	if err != nil {
		return ScrollPage{}, fail(span, fmt.Errorf("scrolling %s: %w", req.Collection, err))
	}

	page := ScrollPage{Records: make([]Record, 0, len(points))}
	for _, p := range points {
		page.Records = append(page.Records, Record{
			ID:      fromPointID(p.GetId()),
			Payload: fromValueMap(p.GetPayload()),
		})
	}
	if next != nil {
		id := fromPointID(next)
		page.Next = &id
	}

	span.SetAttributes(
		attribute.Int("record_count", len(page.Records)),
		attribute.Bool("has_next", page.Next != nil),
	)
	span.SetStatus(codes.Ok, "success")
	return page, nil
}

// Retrieve fetches a single point by id.
func (s *QdrantStore) Retrieve(ctx context.Context, name string, id PointID) (*Record, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.String("point_id", id.String()),
	)

	if err := ValidateCollectionName(name); err != nil {
		return nil, fail(span, err)
	}

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: name,
		Ids:            []*qdrant.PointId{toPointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("retrieving point %s from %s: %w", id, name, err))
	}

	span.SetStatus(codes.Ok, "success")
	if len(points) == 0 {
		return nil, nil
	}
	return &Record{
		ID:      fromPointID(points[0].GetId()),
		Payload: fromValueMap(points[0].GetPayload()),
	}, nil
}

// Search runs a nearest-neighbour query.
func (s *QdrantStore) Search(ctx context.Context, name string, vector []float32, k int) ([]ScoredPoint, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", name),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(name); err != nil {
		return nil, fail(span, err)
	}
	if k <= 0 {
		return nil, fail(span, errors.New("k must be positive"))
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("searching %s: %w", name, err))
	}

	results := make([]ScoredPoint, 0, len(hits))
	for _, h := range hits {
		results = append(results, ScoredPoint{
			Record: Record{ID: fromPointID(h.GetId()), Payload: fromValueMap(h.GetPayload())},
			Score:  h.GetScore(),
		})
	}

	span.SetAttributes(attribute.Int("result_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

func toPointID(id PointID) *qdrant.PointId {
	if id.IsNum() {
		return qdrant.NewIDNum(id.Num())
	}
	return qdrant.NewIDUUID(id.UUID())
}

func fromPointID(id *qdrant.PointId) PointID {
	if u := id.GetUuid(); u != "" {
		return UUIDID(u)
	}
	return NumID(id.GetNum())
}

// toFilter builds a "should" filter: any value may match.
func toFilter(m FieldMatch) (*qdrant.Filter, error) {
	if m.Key == "" || len(m.Values) == 0 {
		return nil, errors.New("field match needs a key and at least one value")
	}
	should := make([]*qdrant.Condition, 0, len(m.Values))
	for _, v := range m.Values {
		switch val := v.(type) {
		case string:
			should = append(should, qdrant.NewMatchKeyword(m.Key, val))
		case int64:
			should = append(should, qdrant.NewMatchInt(m.Key, val))
		case bool:
			should = append(should, qdrant.NewMatchBool(m.Key, val))
		default:
			return nil, fmt.Errorf("unsupported match value type %T", v)
		}
	}
	return &qdrant.Filter{Should: should}, nil
}
