package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/astrax-djp/astrax-rag/internal/rag"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIEmbeddingModel = "text-embedding-3-small"
	DefaultOpenAIChatModel      = "gpt-4"
	DefaultOpenAIDimension      = 1536
)

// OpenAIClient embeds with the embeddings API and answers with chat
// completions. Safe for concurrent use.
type OpenAIClient struct {
	client *openai.Client
	opts   Options
}

func NewOpenAIClient(apiKey string, opts Options) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}

	opts = opts.withDefaults(DefaultOpenAIEmbeddingModel, DefaultOpenAIChatModel, DefaultOpenAIDimension)

	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = opts.httpClient()

	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), opts: opts}, nil
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	clean := normalizeWhitespace(text)
	if clean == "" {
		return nil, rag.NewPipelineError(rag.KindEmbeddingService, "openai embed", errors.New("empty text for embedding"))
	}

	req := openai.EmbeddingRequest{
		Input: []string{truncateRunes(clean, maxEmbedRunes)},
		Model: openai.EmbeddingModel(c.opts.EmbeddingModel),
	}
	// Only the text-embedding-3 family accepts a dimensions override.
	if strings.HasPrefix(c.opts.EmbeddingModel, "text-embedding-3") {
		req.Dimensions = c.opts.Dimension
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, rag.NewPipelineError(rag.KindEmbeddingService, "openai embed", err)
	}
	if len(resp.Data) == 0 {
		return nil, rag.NewPipelineError(rag.KindEmbeddingService, "openai embed", errors.New("no embeddings returned"))
	}

	vec := resp.Data[0].Embedding
	if len(vec) != c.opts.Dimension {
		return nil, rag.NewPipelineError(rag.KindEmbeddingService, "openai embed",
			fmt.Errorf("unexpected embedding size %d (expected %d)", len(vec), c.opts.Dimension))
	}
	return vec, nil
}

func (c *OpenAIClient) Dimension() int {
	return c.opts.Dimension
}

func (c *OpenAIClient) ModelName() string {
	return c.opts.EmbeddingModel
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt rag.PromptContext) (string, error) {
	instructions, input := prompt.Split()
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: instructions})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: input})

	req := openai.ChatCompletionRequest{
		Model:       c.opts.ChatModel,
		Messages:    messages,
		Temperature: temperature(c.opts.Temperature),
		MaxTokens:   c.opts.MaxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", rag.NewPipelineError(rag.KindGeneration, "openai chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", rag.NewPipelineError(rag.KindGeneration, "openai chat completion", errors.New("no choices returned"))
	}

	txt := strings.TrimSpace(resp.Choices[0].Message.Content)
	if txt == "" {
		return "", rag.NewPipelineError(rag.KindGeneration, "openai chat completion", errors.New("model returned empty text"))
	}
	return txt, nil
}

// temperature works around omitempty on the request field: a literal 0 would
// be dropped and the API would fall back to its default of 1.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

var _ rag.Embedder = (*OpenAIClient)(nil)
var _ rag.Generator = (*OpenAIClient)(nil)
