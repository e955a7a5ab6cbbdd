package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/repovec/internal/chunker"
	"github.com/fyrsmithlabs/repovec/internal/embeddings"
	"github.com/fyrsmithlabs/repovec/internal/logging"
)

// ChromemConfig configures the embedded store.
type ChromemConfig struct {
	// Path is the database directory. "~" expands to the home directory.
	Path       string
	Compress   bool
	Collection string
}

// Validate validates the configuration.
func (c ChromemConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// ChromemCollection names the collection for an index and namespace.
func ChromemCollection(index, namespace string) string {
	if namespace == "" {
		return index
	}
	return index + "_" + namespace
}

// ChromemLoader writes to a persistent chromem-go database.
type ChromemLoader struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	config     ChromemConfig
	log        *logging.Logger
}

// NewChromemLoader opens (creating if needed) the database and collection.
func NewChromemLoader(cfg ChromemConfig, embedder embeddings.Embedder, log *logging.Logger) (*ChromemLoader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if log == nil {
		log = logging.NewNop()
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	queryFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, queryFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", cfg.Collection, err)
	}

	return &ChromemLoader{db: db, collection: collection, embedder: embedder, config: cfg, log: log}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Load embeds chunks and adds them to the collection. Existing documents
// with the same chunk ID are replaced.
func (l *ChromemLoader) Load(ctx context.Context, chunks []chunker.Chunk) error {
	ctx, span := tracer.Start(ctx, "ChromemLoader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("collection", l.config.Collection))

	vectors, err := embed(ctx, l.embedder, chunks)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				KeyDocumentID: c.DocumentID(),
				KeyChunkIndex: strconv.Itoa(c.Index),
			},
		}
	}

	// Embeddings are precomputed, so one worker suffices.
	if err := l.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}

	l.log.Debug(ctx, "added documents to chromem",
		zap.String("collection", l.config.Collection),
		zap.Int("count", len(docs)),
		zap.Int("total", l.collection.Count()),
	)
	return nil
}

// Count returns the number of documents in the collection.
func (l *ChromemLoader) Count() int {
	return l.collection.Count()
}

// Query returns the n documents most similar to text.
func (l *ChromemLoader) Query(ctx context.Context, text string, n int) ([]chromem.Result, error) {
	if c := l.collection.Count(); n > c {
		n = c
	}
	if n <= 0 {
		return nil, nil
	}
	return l.collection.Query(ctx, text, n, nil, nil)
}

// Close is a no-op; the persistent DB writes on every add.
func (l *ChromemLoader) Close() error { return nil }
