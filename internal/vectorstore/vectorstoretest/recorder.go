// Package vectorstoretest provides Store wrappers for tests.
package vectorstoretest

import (
	"context"
	"sync"

	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
)

// Recorder wraps a Store and counts calls per method. Setting an error
// in Fail makes the named method return it without reaching the store.
type Recorder struct {
	vectorstore.Store

	mu    sync.Mutex
	calls map[string]int
	Fail  map[string]error
}

// NewRecorder wraps store.
func NewRecorder(store vectorstore.Store) *Recorder {
	return &Recorder{Store: store, calls: map[string]int{}, Fail: map[string]error{}}
}

func (r *Recorder) record(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[method]++
	return r.Fail[method]
}

// Calls returns how many times method was invoked.
func (r *Recorder) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// Writes returns the number of Insert and Upsert calls.
func (r *Recorder) Writes() int {
	return r.Calls("Insert") + r.Calls("Upsert")
}

// Total returns the number of calls across all methods.
func (r *Recorder) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *Recorder) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := r.record("CollectionExists"); err != nil {
		return false, err
	}
	return r.Store.CollectionExists(ctx, name)
}

func (r *Recorder) CreateCollection(ctx context.Context, name string, dimension int) error {
	if err := r.record("CreateCollection"); err != nil {
		return err
	}
	return r.Store.CreateCollection(ctx, name, dimension)
}

func (r *Recorder) DeleteCollection(ctx context.Context, name string) error {
	if err := r.record("DeleteCollection"); err != nil {
		return err
	}
	return r.Store.DeleteCollection(ctx, name)
}

func (r *Recorder) Insert(ctx context.Context, name string, points []vectorstore.Point) error {
	if err := r.record("Insert"); err != nil {
		return err
	}
	return r.Store.Insert(ctx, name, points)
}

func (r *Recorder) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	if err := r.record("Upsert"); err != nil {
		return err
	}
	return r.Store.Upsert(ctx, name, points)
}

func (r *Recorder) Scroll(ctx context.Context, req vectorstore.ScrollRequest) (vectorstore.ScrollPage, error) {
	if err := r.record("Scroll"); err != nil {
		return vectorstore.ScrollPage{}, err
	}
	return r.Store.Scroll(ctx, req)
}

func (r *Recorder) Retrieve(ctx context.Context, name string, id vectorstore.PointID) (*vectorstore.Record, error) {
	if err := r.record("Retrieve"); err != nil {
		return nil, err
	}
	return r.Store.Retrieve(ctx, name, id)
}

func (r *Recorder) Search(ctx context.Context, name string, vector []float32, k int) ([]vectorstore.ScoredPoint, error) {
	if err := r.record("Search"); err != nil {
		return nil, err
	}
	return r.Store.Search(ctx, name, vector, k)
}
