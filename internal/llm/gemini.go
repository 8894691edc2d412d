package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/astrax-djp/astrax-rag/internal/rag"
	"google.golang.org/genai"
)

const (
	DefaultGeminiEmbeddingModel = "text-embedding-004"
	DefaultGeminiChatModel      = "gemini-2.5-flash"
	DefaultGeminiDimension      = 768
)

type GeminiClient struct {
	client    *genai.Client
	opts      Options
	dimension int
}

func NewGeminiClient(ctx context.Context, apiKey string, opts Options) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}

	opts = opts.withDefaults(DefaultGeminiEmbeddingModel, DefaultGeminiChatModel, DefaultGeminiDimension)

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.httpClient(),
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: c, opts: opts, dimension: opts.Dimension}, nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	clean := normalizeWhitespace(text)
	if clean == "" {
		return nil, rag.NewPipelineError(rag.KindEmbeddingService, "gemini embed", errors.New("empty text for embedding"))
	}

	resp, err := g.client.Models.EmbedContent(
		ctx,
		g.opts.EmbeddingModel,
		genai.Text(truncateRunes(clean, maxEmbedRunes)),
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.dimension)),
		},
	)
	if err != nil {
		return nil, rag.NewPipelineError(rag.KindEmbeddingService, "gemini embed", err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, rag.NewPipelineError(rag.KindEmbeddingService, "gemini embed", errors.New("no embeddings returned"))
	}

	values := resp.Embeddings[0].Values
	if len(values) != g.dimension {
		return nil, rag.NewPipelineError(rag.KindEmbeddingService, "gemini embed",
			fmt.Errorf("unexpected embedding size %d (expected %d)", len(values), g.dimension))
	}

	out := make([]float32, g.dimension)
	for i, v := range values {
		out[i] = float32(v)
	}
	return out, nil
}

func (g *GeminiClient) Dimension() int {
	return g.dimension
}

func (g *GeminiClient) ModelName() string {
	return g.opts.EmbeddingModel
}

func (g *GeminiClient) Generate(ctx context.Context, prompt rag.PromptContext) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(g.opts.Temperature)),
	}
	if g.opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.opts.MaxTokens)
	}

	instructions, input := prompt.Split()
	if instructions != "" {
		cfg.SystemInstruction = genai.Text(instructions)[0]
	}

	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.opts.ChatModel,
		genai.Text(input),
		cfg,
	)
	if err != nil {
		return "", rag.NewPipelineError(rag.KindGeneration, "gemini generate", err)
	}

	if resp == nil {
		return "", rag.NewPipelineError(rag.KindGeneration, "gemini generate", errors.New("empty response from gemini"))
	}

	txt := strings.TrimSpace(resp.Text())
	if txt == "" {
		return "", rag.NewPipelineError(rag.KindGeneration, "gemini generate", errors.New("model returned empty text"))
	}

	return txt, nil
}

var _ rag.Embedder = (*GeminiClient)(nil)
var _ rag.Generator = (*GeminiClient)(nil)
