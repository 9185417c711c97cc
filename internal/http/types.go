package http

import "github.com/fyrsmithlabs/landrag/internal/rag"

// ChatRequest is the request body for POST /chat.
type ChatRequest struct {
	Messages []rag.Message `json:"messages"`
	// CollectionName defaults to the plot collection.
	CollectionName string `json:"collection_name,omitempty"`
}

// ChatResponse is the response body for POST /chat.
type ChatResponse struct {
	Response string `json:"response"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	// Error is set when a backend check fails.
	Error string `json:"error,omitempty"`
}
