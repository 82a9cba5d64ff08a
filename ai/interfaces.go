package ai

import (
	"context"
	"iter"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationRequest is a single prompt sent to a Generator.
type GenerationRequest struct {
	// System is the fixed instruction sent as the system message.
	System string

	// Prompt is the human message: history, question and retrieved context.
	Prompt string
}

// Generator produces an answer as an incremental sequence of text chunks.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Stream starts generation and returns a single-use sequence of chunks.
	// Each element is either a text chunk with a nil error, or an empty
	// string with the error that ended generation, after which the sequence
	// stops. Breaking out of the loop cancels the underlying request.
	Stream(ctx context.Context, req GenerationRequest) iter.Seq2[string, error]
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// The embedder and generator share configuration and resources.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the streaming answer generator.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
