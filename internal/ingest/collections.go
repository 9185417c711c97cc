package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/landrag/internal/logging"
	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
	"go.uber.org/zap"
)

// SelectPageSize is the scroll page size used by SelectByValue.
const SelectPageSize = 1000

// Collections implements the collection-level operations.
type Collections struct {
	deps Deps
	log  *logging.Logger
}

// NewCollections creates the collection operations.
func NewCollections(deps Deps) *Collections {
	return &Collections{deps: deps, log: deps.logger().Named("ingest.collections")}
}

// Delete drops the named collection. A missing collection is not an error.
func (c *Collections) Delete(ctx context.Context, name string) (res Result) {
	ctx, done := c.deps.track(ctx, PipelineCollections, "delete", name)
	defer func() { done(res.Status, res.Message) }()

	if err := vectorstore.ValidateCollectionName(name); err != nil {
		return Result{Status: StatusError, Message: err.Error()}
	}
	exists, err := c.deps.Store.CollectionExists(ctx, name)
	if err != nil {
		c.log.Error(ctx, "vector store call failed", zap.Error(err))
		return Result{Status: StatusError, Message: storeErrorMessage(err), CollectionName: name}
	}
	if !exists {
		c.log.Info(ctx, "collection does not exist, nothing to delete")
		return Result{Status: StatusSuccess, Message: fmt.Sprintf("'%s' does not exist", name), CollectionName: name}
	}

	c.log.Info(ctx, "deleting collection")
	if err := c.deps.Store.DeleteCollection(ctx, name); err != nil {
		c.log.Error(ctx, "vector store call failed", zap.Error(err))
		return Result{Status: StatusError, Message: storeErrorMessage(err), CollectionName: name}
	}
	return Result{Status: StatusSuccess, Message: fmt.Sprintf("'%s' was successfully deleted", name), CollectionName: name}
}

// SelectByValue returns every point whose payload field equals value.
// The value matches as a keyword and, when it parses as one, as an integer
// or a boolean.
func (c *Collections) SelectByValue(ctx context.Context, name, field, value string) (res SelectResult) {
	ctx, done := c.deps.track(ctx, PipelineCollections, "select", name)
	defer func() { done(res.Status, res.Message) }()

	if errRes, ok := c.requireCollection(ctx, name); !ok {
		return errRes
	}

	c.log.Info(ctx, "scrolling collection", zap.String("field", field), zap.String("value", value))
	records, err := vectorstore.ScanAll(ctx, c.deps.Store, vectorstore.ScrollRequest{
		Collection: name,
		Filter:     &vectorstore.FieldMatch{Key: field, Values: MatchValues(value)},
		Limit:      SelectPageSize,
	})
	if err != nil {
		c.log.Error(ctx, "scroll failed", zap.Error(err))
		return SelectResult{Status: StatusError, Message: storeErrorMessage(err), Points: []vectorstore.Record{}}
	}
	if records == nil {
		records = []vectorstore.Record{}
	}
	c.log.Info(ctx, "scroll finished", zap.Int("count", len(records)))
	return SelectResult{Status: StatusSuccess, Count: len(records), Points: records}
}

// GetPoint returns the plot point with the given id, if any.
func (c *Collections) GetPoint(ctx context.Context, name string, id uint64) (res SelectResult) {
	ctx, done := c.deps.track(ctx, PipelineCollections, "get", name)
	defer func() { done(res.Status, res.Message) }()

	if errRes, ok := c.requireCollection(ctx, name); !ok {
		return errRes
	}

	rec, err := c.deps.Store.Retrieve(ctx, name, vectorstore.NumID(id))
	if err != nil {
		c.log.Error(ctx, "retrieve failed", zap.Uint64("point_id", id), zap.Error(err))
		return SelectResult{Status: StatusError, Message: storeErrorMessage(err), Points: []vectorstore.Record{}}
	}
	points := []vectorstore.Record{}
	if rec != nil {
		points = append(points, *rec)
	}
	return SelectResult{Status: StatusSuccess, Count: len(points), Points: points}
}

func (c *Collections) requireCollection(ctx context.Context, name string) (SelectResult, bool) {
	if err := vectorstore.ValidateCollectionName(name); err != nil {
		return SelectResult{Status: StatusError, Message: err.Error(), Points: []vectorstore.Record{}}, false
	}
	exists, err := c.deps.Store.CollectionExists(ctx, name)
	if err != nil {
		c.log.Error(ctx, "vector store call failed", zap.Error(err))
		return SelectResult{Status: StatusError, Message: storeErrorMessage(err), Points: []vectorstore.Record{}}, false
	}
	if !exists {
		c.log.Error(ctx, "collection does not exist")
		return SelectResult{
			Status:  StatusError,
			Message: fmt.Sprintf("Collection with name '%s' is not exist", name),
			Points:  []vectorstore.Record{},
		}, false
	}
	return SelectResult{}, true
}

// MatchValues returns the typed values a query-string value can match.
func MatchValues(value string) []any {
	values := []any{value}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		values = append(values, n)
	}
	switch strings.ToLower(value) {
	case "true":
		values = append(values, true)
	case "false":
		values = append(values, false)
	}
	return values
}
