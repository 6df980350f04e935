package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocs-worker/api/internal/answerer"
)

func TestSearch(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		content := "```json\n{\"answer\":\"北京\"}\n```"
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		}))
	}))
	defer srv.Close()

	p := New("k", "m", WithBaseURL(srv.URL+"/"))
	pairs, err := p.Search(context.Background(), answerer.Query{Type: answerer.Single, Title: "首都", Options: []string{"北京", "上海"}})
	require.NoError(t, err)
	assert.Equal(t, []answerer.Pair{{Question: "首都", Answer: "北京"}}, pairs)
	assert.Equal(t, "m", got["model"])
	assert.Equal(t, "openai", p.Name())
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"status", http.StatusTooManyRequests, `{"error":"slow down"}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"bad json", http.StatusOK, `not json`},
		{"empty answer", http.StatusOK, `{"choices":[{"message":{"content":"{\"answer\":\"\"}"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New("k", "", WithBaseURL(srv.URL)).Search(context.Background(), answerer.Query{Type: answerer.Judgement, Title: "q"})
			assert.Error(t, err)
		})
	}
}

func TestSearchNoKey(t *testing.T) {
	_, err := New("", "").Search(context.Background(), answerer.Query{Title: "q"})
	assert.ErrorContains(t, err, "api key not set")
}
