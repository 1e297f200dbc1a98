// Package embedding wraps an OpenAI-compatible embeddings endpoint for the
// semantic search layer.
package embedding
