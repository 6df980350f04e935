package registry

import (
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/answerer/cache"
	"ocs-worker/api/internal/answerer/deepseek"
	"ocs-worker/api/internal/answerer/gemini"
	"ocs-worker/api/internal/answerer/httpapi"
	"ocs-worker/api/internal/answerer/openai"
	"ocs-worker/api/internal/config"
)

// Deps — общие зависимости источников. Redis нужен только для cache: true.
type Deps struct {
	Log      *zap.Logger
	Redis    goredis.UniversalClient
	CacheTTL time.Duration
	Observer cache.Observer
}

// Build собирает источники в порядке конфига.
func Build(cfgs []config.AnswererConfig, d Deps) ([]answerer.Provider, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	out := make([]answerer.Provider, 0, len(cfgs))
	for i, c := range cfgs {
		p, err := build(c, d.Log)
		if err != nil {
			return nil, fmt.Errorf("answerers[%d]: %w", i, err)
		}
		if c.Cache {
			if d.Redis == nil {
				return nil, fmt.Errorf("answerers[%d] %s: cache enabled without redis", i, p.Name())
			}
			cp := cache.Wrap(p, d.Redis, d.CacheTTL, d.Log)
			if d.Observer != nil {
				cp = cp.WithObserver(d.Observer)
			}
			p = cp
		}
		d.Log.Info("answerer ready", zap.String("name", p.Name()), zap.String("kind", c.Kind), zap.Bool("cache", c.Cache))
		out = append(out, p)
	}
	return out, nil
}

func build(c config.AnswererConfig, log *zap.Logger) (answerer.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(c.Kind)) {
	case "", "http":
		return httpapi.New(httpapi.Config{
			Name:         c.Name,
			Homepage:     c.Homepage,
			URL:          c.URL,
			Method:       c.Method,
			Headers:      c.Headers,
			Data:         c.Data,
			AnswerPath:   c.AnswerPath,
			QuestionPath: c.QuestionPath,
			ErrorPath:    c.ErrorPath,
			Rate:         c.Rate,
			Retries:      c.Retries,
			Timeout:      c.Timeout,
		}, httpapi.WithLogger(log))
	case "gemini":
		return gemini.New(c.APIKey, c.Model), nil
	case "openai", "gpt":
		return openai.New(c.APIKey, c.Model, llmOptions(c)...), nil
	case "deepseek":
		return deepseek.New(c.APIKey, c.Model, llmOptions(c)...), nil
	default:
		return nil, fmt.Errorf("unknown answerer kind %q; use http | gemini | openai | deepseek", c.Kind)
	}
}

func llmOptions(c config.AnswererConfig) []openai.Option {
	var opts []openai.Option
	if c.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(c.BaseURL))
	}
	if c.Name != "" {
		opts = append(opts, openai.WithName(c.Name))
	}
	if c.Homepage != "" {
		opts = append(opts, openai.WithHomepage(c.Homepage))
	}
	return append(opts, openai.WithRate(c.Rate))
}
