package deepseek

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocs-worker/api/internal/answerer"
	"ocs-worker/api/internal/answerer/openai"
)

func TestNew(t *testing.T) {
	p := New("k", "")
	assert.Equal(t, "deepseek", p.Name())
	assert.Equal(t, DefaultModel, p.Model)
	assert.Equal(t, "https://www.deepseek.com", p.Homepage())
}

func TestBaseURLOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"answer\":\"错\"}"}}]}`))
	}))
	defer srv.Close()

	p := New("k", "deepseek-reasoner", openai.WithBaseURL(srv.URL))
	pairs, err := p.Search(context.Background(), answerer.Query{Type: answerer.Judgement, Title: "地球是平的"})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "错", pairs[0].Answer)
}
