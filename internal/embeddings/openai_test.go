package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lcembeddings "github.com/tmc/langchaingo/embeddings"

	"github.com/fyrsmithlabs/repovec/internal/config"
)

// fakeOpenAI serves /embeddings, returning [len(text), index, 1] per input.
func fakeOpenAI(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Object string `json:"object"`
			Data   []item `json:"data"`
			Model  string `json:"model"`
		}{Object: "list", Model: req.Model}
		for i, in := range req.Input {
			resp.Data = append(resp.Data, item{Object: "embedding", Embedding: []float32{float32(len(in)), float32(i), 1}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_HTTP(t *testing.T) {
	var calls atomic.Int32
	srv := fakeOpenAI(t, &calls)

	p, err := NewOpenAIProvider(config.EmbeddingsConfig{
		BaseURL: srv.URL + "/v1",
		Model:   "text-embedding-ada-002",
		APIKey:  "sk-test",
	})
	require.NoError(t, err)
	defer p.Close()

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "bbb"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0, 1}, vectors[0])
	assert.Equal(t, []float32{3, 1, 1}, vectors[1])

	q, err := p.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, float32(5), q[0])

	assert.Equal(t, 1536, p.Dimension())
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestOpenAIProvider_KeylessBaseURL(t *testing.T) {
	var calls atomic.Int32
	srv := fakeOpenAI(t, &calls)

	p, err := NewOpenAIProvider(config.EmbeddingsConfig{BaseURL: srv.URL, Model: "bge"})
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Dimension())
}

func TestNewOpenAIProvider_MissingKey(t *testing.T) {
	_, err := NewOpenAIProvider(config.EmbeddingsConfig{Model: "text-embedding-ada-002"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestOpenAIProvider_Errors(t *testing.T) {
	failing := lcembeddings.EmbedderClientFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("upstream 500")
	})
	p, err := NewWithClient(failing, "m")
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptyInput))

	_, err = p.EmbedQuery(context.Background(), "")
	assert.True(t, errors.Is(err, ErrEmptyInput))

	_, err = p.EmbedDocuments(context.Background(), []string{"a"})
	assert.True(t, errors.Is(err, ErrEmbeddingFailed))

	_, err = p.EmbedQuery(context.Background(), "a")
	assert.True(t, errors.Is(err, ErrEmbeddingFailed))
}

func TestOpenAIProvider_ShortResponse(t *testing.T) {
	short := lcembeddings.EmbedderClientFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	})
	p, err := NewWithClient(short, "m")
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.True(t, errors.Is(err, ErrEmbeddingFailed))
}

func TestNew(t *testing.T) {
	p, err := New(config.EmbeddingsConfig{Provider: "openai", APIKey: "sk-test", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)
	assert.Equal(t, 3072, p.Dimension())

	_, err = New(config.EmbeddingsConfig{Provider: "word2vec"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = New(config.EmbeddingsConfig{Provider: "openai"})
	assert.Error(t, err)
}

func TestDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-ada-002", 1536},
		{" text-embedding-3-small ", 1536},
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := Dimension(tt.model); got != tt.want {
			t.Errorf("Dimension(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}
