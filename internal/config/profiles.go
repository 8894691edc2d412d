package config

import "github.com/astrax-djp/astrax-rag/internal/rag"

const DefaultProfile = "professional"

// Profile bundles the defaults of one deployment variant. Individual values
// can still be overridden from the environment.
type Profile struct {
	Provider            string
	EmbeddingModel      string
	EmbeddingDimensions int
	ChatModel           string
	Temperature         float64
	MaxTokens           int
	TopK                int
	MinScore            *float64
	Template            string
}

var Profiles = map[string]Profile{
	"standard": {
		Provider:            ProviderOpenAI,
		EmbeddingModel:      "text-embedding-ada-002",
		EmbeddingDimensions: 1536,
		ChatModel:           "gpt-3.5-turbo",
		TopK:                rag.DefaultTopK,
		Template:            rag.StandardTemplate,
	},
	"professional": {
		Provider:            ProviderOpenAI,
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 1536,
		ChatModel:           "gpt-4",
		MaxTokens:           800,
		TopK:                rag.DefaultTopK,
		MinScore:            floatPtr(0.78),
		Template:            rag.ProfessionalTemplate,
	},
}

func floatPtr(f float64) *float64 {
	return &f
}
