package rag

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures.
type ErrorKind string

const (
	KindEmbeddingService ErrorKind = "embedding_service"
	KindIndexUnavailable ErrorKind = "index_unavailable"
	KindIndexNotFound    ErrorKind = "index_not_found"
	KindGeneration       ErrorKind = "generation"
)

// PipelineError is a failure in one of the external stages of the pipeline.
type PipelineError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches any *PipelineError of the same kind, so the sentinels below work
// with errors.Is.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewPipelineError builds a PipelineError.
func NewPipelineError(kind ErrorKind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

var (
	ErrEmbeddingService = NewPipelineError(KindEmbeddingService, "embedding service error", nil)
	ErrIndexUnavailable = NewPipelineError(KindIndexUnavailable, "vector index unavailable", nil)
	ErrIndexNotFound    = NewPipelineError(KindIndexNotFound, "vector index not found", nil)
	ErrGeneration       = NewPipelineError(KindGeneration, "generation error", nil)
)

// KindOf returns the kind of a pipeline error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// classify keeps an existing classification and otherwise tags err with the
// kind of the stage it came out of. Deadlines are treated like the stage's
// own failure.
func classify(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewPipelineError(kind, op+" (timeout)", err)
	}
	return NewPipelineError(kind, op, err)
}
