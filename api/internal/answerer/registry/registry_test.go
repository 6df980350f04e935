package registry

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocs-worker/api/internal/answerer/cache"
	"ocs-worker/api/internal/config"
)

func TestBuild(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ps, err := Build([]config.AnswererConfig{
		{Kind: "http", Name: "tiku", URL: "https://tiku.example/api?q=${title}", Cache: true},
		{Kind: "gemini", APIKey: "g"},
		{Kind: "openai", Name: "gpt", APIKey: "o"},
		{Kind: "deepseek", APIKey: "d"},
	}, Deps{Redis: rdb})
	require.NoError(t, err)
	require.Len(t, ps, 4)

	assert.IsType(t, &cache.Provider{}, ps[0])
	names := []string{}
	for _, p := range ps {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"tiku", "gemini", "gpt", "deepseek"}, names)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AnswererConfig
	}{
		{"unknown kind", config.AnswererConfig{Kind: "ftp", Name: "x"}},
		{"cache without redis", config.AnswererConfig{Kind: "gemini", Cache: true}},
		{"http without url", config.AnswererConfig{Kind: "http", Name: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build([]config.AnswererConfig{tt.cfg}, Deps{})
			assert.Error(t, err)
		})
	}
}
