package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/landrag/internal/geometry"
	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/plots"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"go.uber.org/zap"
)

// GeoPipeline ingests GeoJSON land-plot feature collections.
type GeoPipeline struct {
	deps Deps
	log  *logging.Logger
}

// NewGeoPipeline creates a plot pipeline.
func NewGeoPipeline(deps Deps) *GeoPipeline {
	return &GeoPipeline{deps: deps, log: deps.logger().Named("ingest.geo")}
}

// IngestFeatures replaces the collection with the plots in payload: an
// existing collection is dropped and recreated before insertion.
func (p *GeoPipeline) IngestFeatures(ctx context.Context, payload []byte, collection string) (res GeoResult) {
	ctx, done := p.deps.track(ctx, PipelineGeo, "ingest", collection)
	defer func() { done(res.Status, res.Message) }()

	fc, errRes, ok := p.parse(ctx, payload, collection)
	if !ok {
		return errRes
	}

	store := p.deps.Store
	exists, err := store.CollectionExists(ctx, collection)
	if err != nil {
		return p.storeFailure(ctx, collection, len(fc.Features), err)
	}
	if exists {
		p.log.Info(ctx, "dropping existing collection for full replace")
		if err := store.DeleteCollection(ctx, collection); err != nil {
			return p.storeFailure(ctx, collection, len(fc.Features), err)
		}
	}
	dim := p.deps.Embedder.Dimension()
	p.log.Info(ctx, "creating collection", zap.Int("dimension", dim))
	if err := store.CreateCollection(ctx, collection, dim); err != nil {
		return p.storeFailure(ctx, collection, len(fc.Features), err)
	}

	points := p.buildPoints(ctx, fc)
	if len(points) > 0 {
		p.log.Info(ctx, "inserting plot points", zap.Int("points", len(points)))
		if err := store.Insert(ctx, collection, points); err != nil {
			return p.storeFailure(ctx, collection, len(fc.Features), err)
		}
	}
	p.deps.wrote(ctx, PipelineGeo, len(points))

	return GeoResult{
		Status:         StatusSuccess,
		Message:        fmt.Sprintf("Successfully ingested %d land plots into '%s'.", len(points), collection),
		CollectionName: collection,
		TotalFeatures:  len(fc.Features),
		IngestedPoints: len(points),
	}
}

// UpdateFeatures upserts the plots in payload into an existing collection.
// Plots absent from payload are left untouched.
func (p *GeoPipeline) UpdateFeatures(ctx context.Context, payload []byte, collection string) (res GeoResult) {
	ctx, done := p.deps.track(ctx, PipelineGeo, "update", collection)
	defer func() { done(res.Status, res.Message) }()

	fc, errRes, ok := p.parse(ctx, payload, collection)
	if !ok {
		return errRes
	}

	exists, err := p.deps.Store.CollectionExists(ctx, collection)
	if err != nil {
		return p.storeFailure(ctx, collection, len(fc.Features), err)
	}
	if !exists {
		p.log.Error(ctx, "collection does not exist, cannot update")
		return GeoResult{
			Status:         StatusError,
			Message:        missingCollectionMessage(collection),
			CollectionName: collection,
			TotalFeatures:  len(fc.Features),
		}
	}

	points := p.buildPoints(ctx, fc)
	if len(points) == 0 {
		p.log.Warn(ctx, "no valid points to upsert")
	} else {
		p.log.Info(ctx, "upserting plot points", zap.Int("points", len(points)))
		if err := p.deps.Store.Upsert(ctx, collection, points); err != nil {
			return p.storeFailure(ctx, collection, len(fc.Features), err)
		}
	}
	p.deps.wrote(ctx, PipelineGeo, len(points))

	return GeoResult{
		Status:         StatusSuccess,
		Message:        fmt.Sprintf("Successfully upserted %d land plots into '%s'.", len(points), collection),
		CollectionName: collection,
		TotalFeatures:  len(fc.Features),
		IngestedPoints: len(points),
	}
}

func (p *GeoPipeline) parse(ctx context.Context, payload []byte, collection string) (*plots.FeatureCollection, GeoResult, bool) {
	if err := vectorstore.ValidateCollectionName(collection); err != nil {
		return nil, GeoResult{Status: StatusError, Message: err.Error()}, false
	}
	fc, err := plots.Parse(payload)
	if err != nil {
		p.log.Error(ctx, "feature collection validation failed", zap.Error(err))
		return nil, GeoResult{Status: StatusError, Message: err.Error()}, false
	}
	return fc, GeoResult{}, true
}

// buildPoints turns features into points in input order, skipping features
// whose geometry is missing or unrepairable or whose embedding fails.
func (p *GeoPipeline) buildPoints(ctx context.Context, fc *plots.FeatureCollection) []vectorstore.Point {
	dim := p.deps.Embedder.Dimension()
	points := make([]vectorstore.Point, 0, len(fc.Features))
	for _, f := range fc.Features {
		id := f.Properties.ID
		if !f.HasGeometry() {
			p.skipFeature(ctx, id, ReasonMissingGeometry, nil)
			continue
		}
		center, err := geometry.ValidateAndCenter(f.Geometry)
		if err != nil {
			p.skipFeature(ctx, id, ReasonGeometry, err)
			continue
		}

		description := plots.Describe(f.Properties)
		vectors, err := p.deps.Embedder.EmbedDocuments(ctx, []string{description})
		if err != nil {
			p.skipFeature(ctx, id, ReasonEmbedding, err)
			continue
		}
		if len(vectors) != 1 || len(vectors[0]) != dim {
			p.skipFeature(ctx, id, ReasonDimension, errors.New("embedding has unexpected shape"))
			continue
		}

		payload := f.Properties.Payload()
		payload["description"] = description
		payload["geometry"] = string(f.Geometry)
		payload["location"] = map[string]any{"lon": center.Lon, "lat": center.Lat}

		points = append(points, vectorstore.Point{
			ID:      vectorstore.NumID(uint64(id)),
			Vector:  vectors[0],
			Payload: payload,
		})
	}
	return points
}

func (p *GeoPipeline) skipFeature(ctx context.Context, id int64, reason string, err error) {
	fields := []zap.Field{zap.Int64("feature_id", id), zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	p.log.Warn(ctx, "skipping feature", fields...)
	p.deps.Metrics.skip(PipelineGeo, reason)
}

func (p *GeoPipeline) storeFailure(ctx context.Context, collection string, total int, err error) GeoResult {
	p.log.Error(ctx, "vector store call failed", zap.Error(err))
	return GeoResult{
		Status:         StatusError,
		Message:        storeErrorMessage(err),
		CollectionName: collection,
		TotalFeatures:  total,
	}
}
