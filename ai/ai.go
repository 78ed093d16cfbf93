// Package ai is the domain root for the retrieval pipeline: embedding
// provider interface, tuning configuration, and shared sentinel errors.
package ai

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable is returned when the embedding provider is not
// configured or an embedding call fails. The seed selector treats it as a
// signal to degrade to text-only retrieval, never as a fatal error.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// EmbeddingService is the vector embedding service interface.
type EmbeddingService interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}
