package llm

import (
	"net/http"
	"strings"
	"time"
)

// maxEmbedRunes keeps embedding input under provider token limits.
const maxEmbedRunes = 8000

// Options are the model identifiers and generation parameters shared by the
// provider clients.
type Options struct {
	EmbeddingModel string
	Dimension      int
	ChatModel      string
	Temperature    float64
	MaxTokens      int
	BaseURL        string
	Timeout        time.Duration
}

func (o Options) withDefaults(embedModel, chatModel string, dim int) Options {
	if o.EmbeddingModel == "" {
		o.EmbeddingModel = embedModel
	}
	if o.ChatModel == "" {
		o.ChatModel = chatModel
	}
	if o.Dimension <= 0 {
		o.Dimension = dim
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

func (o Options) httpClient() *http.Client {
	return &http.Client{Timeout: o.Timeout}
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
