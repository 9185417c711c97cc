// Package vectorstore stores (id, vector, payload) points in named,
// cosine-metric collections.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating a collection that is already present.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector of the wrong length for its collection.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateCollectionName rejects names that are empty, longer than 64
// characters, or contain anything besides letters, digits, '_' and '-'.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidCollectionName, name, collectionNamePattern)
	}
	return nil
}

// PointID identifies a point: either an unsigned integer or a UUID string.
type PointID struct {
	num  uint64
	uuid string
}

// NumID returns an integer point id.
func NumID(n uint64) PointID { return PointID{num: n} }

// UUIDID returns a UUID point id.
func UUIDID(id string) PointID { return PointID{uuid: id} }

// NewUUID returns a fresh random UUID point id.
func NewUUID() PointID { return PointID{uuid: uuid.New().String()} }

// IsNum reports whether the id is an integer id.
func (p PointID) IsNum() bool { return p.uuid == "" }

// Num returns the integer value of the id, or 0 for UUID ids.
func (p PointID) Num() uint64 { return p.num }

// UUID returns the UUID string, or "" for integer ids.
func (p PointID) UUID() string { return p.uuid }

func (p PointID) String() string {
	if p.IsNum() {
		return strconv.FormatUint(p.num, 10)
	}
	return p.uuid
}

// Less orders integer ids numerically before UUID ids, UUIDs lexically.
func (p PointID) Less(o PointID) bool {
	switch {
	case p.IsNum() && o.IsNum():
		return p.num < o.num
	case p.IsNum() != o.IsNum():
		return p.IsNum()
	default:
		return p.uuid < o.uuid
	}
}

// ParsePointID parses a decimal integer or a UUID.
func ParsePointID(s string) (PointID, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return NumID(n), nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return PointID{}, fmt.Errorf("point id %q is neither an unsigned integer nor a UUID", s)
	}
	return UUIDID(s), nil
}

// MarshalJSON encodes integer ids as numbers and UUID ids as strings.
func (p PointID) MarshalJSON() ([]byte, error) {
	if p.IsNum() {
		return []byte(strconv.FormatUint(p.num, 10)), nil
	}
	return json.Marshal(p.uuid)
}

// UnmarshalJSON accepts a number or a UUID string.
func (p *PointID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id, err := ParsePointID(s)
		if err != nil {
			return err
		}
		*p = id
		return nil
	}
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid point id %s: %w", data, err)
	}
	*p = NumID(n)
	return nil
}

// Point is the unit written to a collection.
type Point struct {
	ID      PointID
	Vector  []float32
	Payload map[string]any
}

// Record is a stored point without its vector.
type Record struct {
	ID      PointID        `json:"id"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a similarity search hit.
type ScoredPoint struct {
	Record
	Score float32 `json:"score"`
}

// FieldMatch selects records whose payload field Key equals any of Values.
// Values may be string (keyword match), int64 or bool.
type FieldMatch struct {
	Key    string
	Values []any
}

// ScrollRequest asks for one page of a filtered scan.
type ScrollRequest struct {
	Collection string
	Filter     *FieldMatch
	Limit      int
	Offset     *PointID
}

// ScrollPage is one page of a scan. Next is nil once the scan is exhausted.
type ScrollPage struct {
	Records []Record
	Next    *PointID
}

// Store is the vector collection store used by the pipelines.
//
// Every method issues at most one backend call per underlying RPC; there are
// no retries. Implementations are safe for concurrent use.
type Store interface {
	// CollectionExists reports whether the named collection is present.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates a cosine collection of the given dimension.
	// Returns ErrCollectionExists if it is already present.
	CreateCollection(ctx context.Context, name string, dimension int) error

	// DeleteCollection drops a collection. Deleting an absent collection succeeds.
	DeleteCollection(ctx context.Context, name string) error

	// Insert writes points and returns once they are visible to reads.
	Insert(ctx context.Context, name string, points []Point) error

	// Upsert writes points, fully replacing vector and payload of existing ids,
	// and returns once they are visible to reads.
	Upsert(ctx context.Context, name string, points []Point) error

	// Scroll returns one page of records matching the request.
	Scroll(ctx context.Context, req ScrollRequest) (ScrollPage, error)

	// Retrieve returns one record, or nil when the id is absent.
	Retrieve(ctx context.Context, name string, id PointID) (*Record, error)

	// Search returns up to k records most similar to vector, best first.
	Search(ctx context.Context, name string, vector []float32, k int) ([]ScoredPoint, error)

	// Health reports whether the backend is reachable.
	Health(ctx context.Context) error

	// Close releases connections.
	Close() error
}
