package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/chunker"
	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/embeddings"
	"github.com/fyrsmithlabs/repovec/internal/logging"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/repovec/internal/vectorstore")

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownProvider is returned by New for an unsupported provider.
	ErrUnknownProvider = errors.New("unknown vector store provider")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Provider names.
const (
	ProviderPinecone = "pinecone"
	ProviderQdrant   = "qdrant"
	ProviderChromem  = "chromem"
)

// Metadata keys stored with every record.
const (
	KeyText       = "text"
	KeyDocumentID = chunker.MetaDocumentID
	KeyChunkIndex = chunker.MetaChunkIndex
	KeyNamespace  = "namespace"
)

// Loader writes chunks to a vector index.
type Loader interface {
	// Load embeds and upserts chunks in a single call.
	Load(ctx context.Context, chunks []chunker.Chunk) error
	Close() error
}

// collectionNamePattern accepts Pinecone and Qdrant style index names.
var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,254}$`)

// ValidateCollectionName rejects empty names, path separators and other
// characters no provider accepts.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidCollectionName, name, collectionNamePattern)
	}
	return nil
}

// New builds the loader selected by cfg.VectorStore.Provider.
func New(cfg *config.Config, embedder embeddings.Embedder, log *logging.Logger) (Loader, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("vectorstore")

	provider := strings.ToLower(cfg.VectorStore.Provider)
	if provider == "" {
		provider = ProviderPinecone
	}

	var (
		inner Loader
		err   error
	)
	switch provider {
	case ProviderPinecone:
		inner, err = NewPineconeLoader(PineconeConfig{
			APIKey:    cfg.Pinecone.APIKey.Value(),
			Host:      cfg.Pinecone.Host,
			Index:     cfg.VectorStore.Index,
			Env:       cfg.VectorStore.Environment,
			Namespace: cfg.VectorStore.Namespace,
		}, embedder, log)
	case ProviderQdrant:
		inner, err = NewQdrantLoader(QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.VectorStore.Index,
			Namespace:  cfg.VectorStore.Namespace,
			VectorSize: uint64(cfg.Qdrant.VectorSize),
		}, embedder, log)
	case ProviderChromem:
		inner, err = NewChromemLoader(ChromemConfig{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			Collection: ChromemCollection(cfg.VectorStore.Index, cfg.VectorStore.Namespace),
		}, embedder, log)
	default:
		return nil, fmt.Errorf("%w: %q (must be %s, %s or %s)", ErrUnknownProvider, cfg.VectorStore.Provider, ProviderPinecone, ProviderQdrant, ProviderChromem)
	}
	if err != nil {
		return nil, err
	}
	return &tracedLoader{inner: inner, provider: provider, log: log}, nil
}

// tracedLoader adds the empty-input rule, a span and logging around a
// provider.
type tracedLoader struct {
	inner    Loader
	provider string
	log      *logging.Logger
}

func (l *tracedLoader) Load(ctx context.Context, chunks []chunker.Chunk) error {
	if len(chunks) == 0 {
		l.log.Warn(ctx, "no chunks to load", zap.String("provider", l.provider))
		return nil
	}

	ctx, span := tracer.Start(ctx, "vectorstore.Load")
	defer span.End()
	span.SetAttributes(
		attribute.String("vectorstore.provider", l.provider),
		attribute.Int("vectorstore.chunk_count", len(chunks)),
	)

	l.log.Info(ctx, "loading chunks", zap.String("provider", l.provider), zap.Int("chunks", len(chunks)))
	if err := l.inner.Load(ctx, chunks); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s load: %w", l.provider, err)
	}
	span.SetStatus(codes.Ok, "loaded")
	return nil
}

func (l *tracedLoader) Close() error {
	return l.inner.Close()
}

// texts returns the chunk texts in order.
func texts(chunks []chunker.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// embed vectorizes every chunk with one call and checks the count.
func embed(ctx context.Context, embedder embeddings.Embedder, chunks []chunker.Chunk) ([][]float32, error) {
	vectors, err := embedder.EmbedDocuments(ctx, texts(chunks))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingFailed, len(vectors), len(chunks))
	}
	return vectors, nil
}
