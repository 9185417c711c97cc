// Package ingest implements the write and lookup paths over vector
// collections: GeoJSON land plots, PDF documents and collection operations.
//
// Every operation returns a result value with status "success" or "error"
// instead of an error. Input validation and extraction failures are reported
// before any store mutation. Per-item failures (a broken geometry, a bad
// vector) skip that item and are logged and counted. Store failures are not
// retried.
package ingest
