// Package embeddings turns text into dense vectors.
//
// Every backend implements Provider, which distinguishes document mode
// (texts being stored) from query mode (a question being searched for).
// Models of the e5 family expect asymmetric "passage: " and "query: "
// prefixes; Prefixed adds them for backends that send raw text.
//
// Backends:
//   - TEIProvider: HuggingFace text-embeddings-inference over HTTP
//   - OpenAIProvider: any OpenAI-compatible /embeddings endpoint
//   - fastembed: local ONNX models (cgo builds only)
//
// NewProvider assembles a backend with the optional Redis cache and the
// metrics decorator from configuration.
package embeddings
