package rag

import (
	"strings"
)

// MetaSource is the metadata key holding a document's source reference.
const MetaSource = "source"

// Document
// One indexed chunk of the tax-service knowledge base. Written by the
// ingestion path, read-only here.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Source returns the source reference recorded in the metadata, if any.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// ScoredDocument pairs a document with its similarity to the query.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

// SearchOptions
// Parameters for one similarity search. MinScore nil means no floor.
type SearchOptions struct {
	K        int
	MinScore *float64
}

// IndexInfo describes the backing vector index. Dimension 0 means the
// backend could not report it.
type IndexInfo struct {
	Name      string
	Dimension int
	Backend   string
}

// RetrievalResult
// Ranked documents for one question: at most K entries, scores non-increasing.
type RetrievalResult struct {
	Documents []ScoredDocument
}

// Empty reports whether nothing qualified as context.
func (r RetrievalResult) Empty() bool {
	return len(r.Documents) == 0
}

// TopScore returns the best score, or 0 for an empty result.
func (r RetrievalResult) TopScore() float64 {
	if r.Empty() {
		return 0
	}
	return r.Documents[0].Score
}

// PromptContext
// Everything the generator needs for one request. Built fresh per request.
type PromptContext struct {
	Template string
	Context  string
	Question string
	Language string
	Blocks   []string
}

// Render substitutes context, question and language into the template in a
// single pass; inserted values are never re-scanned for placeholders.
func (p PromptContext) Render() string {
	return strings.TrimSpace(p.replacer().Replace(p.Template))
}

// Split cuts the rendered prompt at the first context or question slot.
// instructions holds only template text and the language name, so it can go
// in a system role; input holds the passages and the user's question.
func (p PromptContext) Split() (instructions, input string) {
	cut := len(p.Template)
	for _, slot := range []string{PlaceholderContext, PlaceholderQuestion} {
		if i := strings.Index(p.Template, slot); i >= 0 && i < cut {
			cut = i
		}
	}
	lang := strings.NewReplacer(PlaceholderLanguage, p.Language)
	instructions = strings.TrimSpace(lang.Replace(p.Template[:cut]))
	input = strings.TrimSpace(p.replacer().Replace(p.Template[cut:]))
	return instructions, input
}

func (p PromptContext) replacer() *strings.Replacer {
	return strings.NewReplacer(
		PlaceholderContext, p.Context,
		PlaceholderQuestion, p.Question,
		PlaceholderLanguage, p.Language,
	)
}

// AnswerResult
// What the caller gets back from Service.Answer.
type AnswerResult struct {
	Text     string `json:"text"`
	Fallback bool   `json:"isFallback"`
}
