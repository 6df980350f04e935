package deepseek

import "ocs-worker/api/internal/answerer/openai"

const (
	BaseURL      = "https://api.deepseek.com/v1"
	DefaultModel = "deepseek-chat"
)

// New возвращает источник DeepSeek. API совместим с OpenAI chat completions.
func New(key, model string, opts ...openai.Option) *openai.Provider {
	if model == "" {
		model = DefaultModel
	}
	base := []openai.Option{
		openai.WithBaseURL(BaseURL),
		openai.WithName("deepseek"),
		openai.WithHomepage("https://www.deepseek.com"),
	}
	return openai.New(key, model, append(base, opts...)...)
}
