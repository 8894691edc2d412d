package rag

import (
	"context"
	"sync"
)

// callLog records the order in which pipeline collaborators are hit.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	dim   int
	err   error
	log   *callLog
	texts []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.log.add("embed")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Dimension() int    { return f.dim }
func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

type fakeIndex struct {
	mu       sync.Mutex
	docs     []ScoredDocument
	err      error
	log      *callLog
	lastOpts SearchOptions
	lastVec  []float32
}

func (f *fakeIndex) SimilaritySearch(ctx context.Context, vec []float32, opts SearchOptions) ([]ScoredDocument, error) {
	f.log.add("search")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	f.lastVec = vec
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func (f *fakeIndex) Insert(ctx context.Context, doc Document) error {
	f.docs = append(f.docs, ScoredDocument{Document: doc})
	return nil
}

func (f *fakeIndex) Describe(ctx context.Context) (IndexInfo, error) {
	return IndexInfo{Name: "fake", Dimension: 3, Backend: "memory"}, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	out     string
	err     error
	log     *callLog
	prompts []PromptContext
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt PromptContext) (string, error) {
	f.log.add("generate")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func scored(id, text string, score float64) ScoredDocument {
	return ScoredDocument{Document: Document{ID: id, Text: text}, Score: score}
}

func ptr(f float64) *float64 { return &f }
