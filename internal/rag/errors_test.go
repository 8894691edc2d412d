package rag

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError_IsMatchesKind(t *testing.T) {
	cause := errors.New("503 service unavailable")
	err := fmt.Errorf("answer: %w", NewPipelineError(KindGeneration, "generate answer", cause))

	assert.ErrorIs(t, err, ErrGeneration)
	assert.NotErrorIs(t, err, ErrEmbeddingService)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindGeneration, KindOf(err))
	assert.Equal(t, "generation: generate answer: 503 service unavailable", NewPipelineError(KindGeneration, "generate answer", cause).Error())
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(KindGeneration, "op", nil))

	existing := NewPipelineError(KindIndexNotFound, "describe", nil)
	assert.Same(t, existing, classify(KindIndexUnavailable, "search", existing))

	err := classify(KindEmbeddingService, "embed question", fmt.Errorf("post: %w", context.DeadlineExceeded))
	var pe *PipelineError
	if assert.ErrorAs(t, err, &pe) {
		assert.Equal(t, KindEmbeddingService, pe.Kind)
		assert.Equal(t, "embed question (timeout)", pe.Op)
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
