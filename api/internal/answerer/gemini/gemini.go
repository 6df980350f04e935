package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/answerer/prompt"
)

const DefaultModel = "gemini-1.5-flash"

// generateFunc — один вызов модели: system + user → текст.
type generateFunc func(ctx context.Context, system, user string) (string, error)

type Provider struct {
	APIKey string
	Model  string

	attempts int
	pause    time.Duration
	generate generateFunc
}

func New(apiKey, model string) *Provider {
	p := &Provider{
		APIKey:   strings.TrimSpace(apiKey),
		Model:    strings.TrimSpace(model),
		attempts: 3,
		pause:    300 * time.Millisecond,
	}
	if p.Model == "" {
		p.Model = DefaultModel
	}
	p.generate = p.callModel
	return p
}

func (p *Provider) Name() string     { return "gemini" }
func (p *Provider) Homepage() string { return "https://ai.google.dev" }

func (p *Provider) Search(ctx context.Context, q answerer.Query) ([]answerer.Pair, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	user := prompt.User(q)

	// ретраи на случай 5xx/транзиентных сбоёв
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		txt, err := p.generate(ctx, prompt.System, user)
		if err == nil {
			if strings.TrimSpace(txt) == "" {
				return nil, fmt.Errorf("gemini: empty response")
			}
			return prompt.Pairs(q, txt)
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt < p.attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * p.pause):
			}
		}
	}
	return nil, fmt.Errorf("gemini: %w", lastErr)
}

func (p *Provider) callModel(ctx context.Context, system, user string) (string, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(p.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(p.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", err
	}
	return firstText(resp), nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
