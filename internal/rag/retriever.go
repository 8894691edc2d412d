package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultTopK bounds the prompt to a handful of passages.
const DefaultTopK = 3

// Retriever returns the ranked context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) (RetrievalResult, error)
}

// VectorRetriever embeds the question and runs a similarity search.
//
// Backend ordering is not trusted: results are re-sorted, filtered by
// MinScore and truncated to K before they leave this type.
type VectorRetriever struct {
	embedder Embedder
	index    VectorIndex
	opts     SearchOptions
	logger   *zap.Logger
}

func NewVectorRetriever(embedder Embedder, index VectorIndex, opts SearchOptions, logger *zap.Logger) *VectorRetriever {
	if opts.K <= 0 {
		opts.K = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorRetriever{
		embedder: embedder,
		index:    index,
		opts:     opts,
		logger:   logger,
	}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, question string) (RetrievalResult, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return RetrievalResult{}, classify(KindEmbeddingService, "embed question", err)
	}
	if want := r.embedder.Dimension(); want > 0 && len(vec) != want {
		return RetrievalResult{}, NewPipelineError(KindEmbeddingService, "embed question",
			fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), want))
	}

	docs, err := r.index.SimilaritySearch(ctx, vec, r.opts)
	if err != nil {
		return RetrievalResult{}, classify(KindIndexUnavailable, "similarity search", err)
	}

	ranked := rank(docs, r.opts)
	r.logger.Debug("retrieved context",
		zap.Int("raw", len(docs)),
		zap.Int("kept", len(ranked)),
	)
	return RetrievalResult{Documents: ranked}, nil
}

// rank sorts descending by score, drops anything under the floor and keeps
// the first K. Passages without text and NaN scores never count as context.
func rank(docs []ScoredDocument, opts SearchOptions) []ScoredDocument {
	out := make([]ScoredDocument, 0, len(docs))
	for _, d := range docs {
		if math.IsNaN(d.Score) || strings.TrimSpace(d.Text) == "" {
			continue
		}
		if opts.MinScore != nil && !(d.Score >= *opts.MinScore) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if opts.K > 0 && len(out) > opts.K {
		out = out[:opts.K]
	}
	return out
}
