// Package llm provides the generative and embedding model clients used by
// the retrieval pipeline. All prompting is deterministic (temperature 0)
// so repeated ingestion and query runs are comparable across retrievers.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors for model operations.
var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCompletionFailed indicates a chat completion call failure.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// CompletionRequest describes a single chat completion.
type CompletionRequest struct {
	// System is the system prompt framing the model's role.
	System string

	// Prompt is the user-turn content.
	Prompt string

	// MaxTokens bounds the generated output.
	MaxTokens int
}

// ChatModel generates text from prompts.
type ChatModel interface {
	// Complete returns the generated text for the request, stripped of
	// surrounding whitespace.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder generates vector embeddings from text.
//
// Embeddings have a fixed dimensionality for the lifetime of the vector
// store; callers must not mix models against one collection.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts in one
	// batched call. Returns one embedding per input text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
