package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/answerer/prompt"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// Provider — источник ответов поверх OpenAI-совместимого chat completions.
type Provider struct {
	APIKey string
	Model  string

	name     string
	homepage string
	baseURL  string
	httpc    *http.Client
	limiter  *rate.Limiter
}

type Option func(*Provider)

func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) Option { return func(p *Provider) { p.httpc = c } }

func WithName(name string) Option { return func(p *Provider) { p.name = name } }

func WithHomepage(u string) Option { return func(p *Provider) { p.homepage = u } }

// WithRate ограничивает частоту запросов (в секунду). 0 — без ограничения.
func WithRate(rps float64) Option {
	return func(p *Provider) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func New(key, model string, opts ...Option) *Provider {
	if model == "" {
		model = DefaultModel
	}
	p := &Provider{
		APIKey:   key,
		Model:    model,
		name:     "openai",
		homepage: "https://openai.com",
		baseURL:  DefaultBaseURL,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string     { return p.name }
func (p *Provider) Homepage() string { return p.homepage }

func (p *Provider) Search(ctx context.Context, q answerer.Query) ([]answerer.Pair, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("%s: api key not set", p.name)
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	text, err := p.complete(ctx, prompt.System, prompt.User(q))
	if err != nil {
		return nil, err
	}
	return prompt.Pairs(q, text)
}

func (p *Provider) complete(ctx context.Context, system, user string) (string, error) {
	body := map[string]any{
		"model": p.Model,
		"messages": []any{
			map[string]any{"role": "system", "content": system},
			map[string]any{"role": "user", "content": user},
		},
		"temperature":     0,
		"response_format": map[string]any{"type": "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("%s completion %d: %s", p.name, resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("%s completion: %w", p.name, err)
	}
	if len(raw.Choices) == 0 {
		return "", fmt.Errorf("%s completion: empty response", p.name)
	}
	return strings.TrimSpace(raw.Choices[0].Message.Content), nil
}
