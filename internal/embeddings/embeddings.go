package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/repovec/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrFastEmbedNotAvailable is returned when FastEmbed is not available (requires CGO).
	ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use the openai provider instead)")
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderFastEmbed = "fastembed"
)

// Embedder converts text to vectors. It matches langchaingo's
// embeddings.Embedder so a Provider can back any langchaingo vector store.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a known output size.
type Provider interface {
	Embedder
	// Dimension returns the vector size, or 0 when unknown.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// New builds the provider selected by cfg.Provider.
func New(cfg config.EmbeddingsConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		p, err := NewOpenAIProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case ProviderFastEmbed:
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

var modelDimensions = map[string]int{
	"text-embedding-ada-002":                 1536,
	"text-embedding-3-small":                 1536,
	"text-embedding-3-large":                 3072,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// Dimension returns the vector size of a known model, or 0.
func Dimension(model string) int {
	return modelDimensions[strings.TrimSpace(model)]
}
