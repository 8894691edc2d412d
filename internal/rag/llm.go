package rag

import "context"

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelName() string
}

// Generator turns an assembled prompt into raw model text.
type Generator interface {
	Generate(ctx context.Context, prompt PromptContext) (string, error)
}

// VectorIndex is the read path (plus a minimal insert) over the document store.
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, vector []float32, opts SearchOptions) ([]ScoredDocument, error)
	Insert(ctx context.Context, doc Document) error
	Describe(ctx context.Context) (IndexInfo, error)
}
