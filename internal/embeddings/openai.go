package embeddings

import (
	"context"
	"fmt"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/config"
)

// placeholderToken satisfies the client when a keyless endpoint such as a
// local TEI server is configured.
const placeholderToken = "unused"

// OpenAIProvider embeds through an OpenAI-compatible /embeddings API.
type OpenAIProvider struct {
	embedder lcembeddings.Embedder
	model    string
	metrics  *Metrics
}

// NewOpenAIProvider builds a client from cfg. An API key is required
// unless BaseURL points somewhere else.
func NewOpenAIProvider(cfg config.EmbeddingsConfig) (*OpenAIProvider, error) {
	token := cfg.APIKey.Value()
	if token == "" {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: api key required", ErrInvalidConfig)
		}
		token = placeholderToken
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.Organization != "" {
		opts = append(opts, openai.WithOrganization(cfg.Organization))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return NewWithClient(llm, cfg.Model)
}

// NewWithClient wraps any langchaingo embedder client, for example an
// lcembeddings.EmbedderClientFunc in tests.
func NewWithClient(client lcembeddings.EmbedderClient, model string) (*OpenAIProvider, error) {
	embedder, err := lcembeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &OpenAIProvider{
		embedder: embedder,
		model:    model,
		metrics:  NewMetrics(zap.NewNop()),
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	if len(vectors) != len(texts) {
		genErr = fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
		return nil, genErr
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}
	return vector, nil
}

// Dimension returns the model's vector size when known.
func (p *OpenAIProvider) Dimension() int {
	return Dimension(p.model)
}

// Close is a no-op; the HTTP client holds no resources.
func (p *OpenAIProvider) Close() error {
	return nil
}
