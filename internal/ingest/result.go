package ingest

import (
	"fmt"

	"github.com/fyrsmithlabs/landrag/internal/vectorstore"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of a collection operation without counts.
type Result struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CollectionName string `json:"collection_name,omitempty"`
}

// GeoResult is the outcome of a plot ingestion.
type GeoResult struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CollectionName string `json:"collection_name,omitempty"`
	TotalFeatures  int    `json:"total_features"`
	IngestedPoints int    `json:"ingested_points"`
}

// DocumentResult is the outcome of a document ingestion.
type DocumentResult struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	CollectionName string `json:"collection_name,omitempty"`
	TotalChunks    int    `json:"total_chunks"`
	IngestedPoints int    `json:"ingested_points"`
}

// SelectResult lists stored points.
type SelectResult struct {
	Status  string               `json:"status"`
	Message string               `json:"message,omitempty"`
	Count   int                  `json:"count"`
	Points  []vectorstore.Record `json:"points"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool         { return r.Status == StatusSuccess }
func (r GeoResult) OK() bool      { return r.Status == StatusSuccess }
func (r DocumentResult) OK() bool { return r.Status == StatusSuccess }
func (r SelectResult) OK() bool   { return r.Status == StatusSuccess }

func missingCollectionMessage(name string) string {
	return fmt.Sprintf("Collection with name '%s' does not exist", name)
}

func storeErrorMessage(err error) string {
	return "Vector store error: " + err.Error()
}
