package vectorstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fyrsmithlabs/repovec/internal/chunker"
	"github.com/fyrsmithlabs/repovec/internal/embeddings"
	"github.com/fyrsmithlabs/repovec/internal/logging"
)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the gRPC port (6334), not the REST port.
	Port int

	APIKey string
	UseTLS bool

	// Collection is the target collection, named after the index.
	Collection string

	// Namespace is stored in every payload and salts point IDs so the same
	// chunk may live in several namespaces of one collection.
	Namespace string

	// VectorSize must match the embedder output. Examples: 384 (bge-small),
	// 1536 (text-embedding-ada-002).
	VectorSize uint64

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB (one bulk upsert per run)
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// QdrantLoader upserts points through Qdrant's native gRPC API.
type QdrantLoader struct {
	client   *qdrant.Client
	embedder embeddings.Embedder
	config   QdrantConfig
	log      *logging.Logger

	ensured sync.Once
	ensErr  error
}

// NewQdrantLoader validates cfg and opens a client. The connection is
// lazy; the first Load reports an unreachable server.
func NewQdrantLoader(cfg QdrantConfig, embedder embeddings.Embedder, log *logging.Logger) (*QdrantLoader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if log == nil {
		log = logging.NewNop()
	}

	if !cfg.UseTLS && cfg.APIKey != "" {
		fmt.Fprintf(os.Stderr, "WARNING: Qdrant API key sent over plaintext gRPC (TLS disabled).\n")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant client: %v", ErrInvalidConfig, err)
	}

	return &QdrantLoader{client: client, embedder: embedder, config: cfg, log: log}, nil
}

// Load embeds chunks, creates the collection if needed and upserts all
// points in one request.
func (l *QdrantLoader) Load(ctx context.Context, chunks []chunker.Chunk) error {
	ctx, span := tracer.Start(ctx, "QdrantLoader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("collection", l.config.Collection))

	vectors, err := embed(ctx, l.embedder, chunks)
	if err != nil {
		return err
	}
	for i, v := range vectors {
		if uint64(len(v)) != l.config.VectorSize {
			return fmt.Errorf("%w: chunk %d has %d dimensions, collection expects %d", ErrInvalidConfig, i, len(v), l.config.VectorSize)
		}
	}

	if err := l.ensureCollection(ctx); err != nil {
		return err
	}

	_, err = l.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: l.config.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         QdrantPoints(l.config.Namespace, chunks, vectors),
	})
	if err != nil {
		return fmt.Errorf("upserting points to collection %s: %w", l.config.Collection, err)
	}
	span.SetAttributes(attribute.Int("points_upserted", len(chunks)))
	return nil
}

func (l *QdrantLoader) ensureCollection(ctx context.Context) error {
	l.ensured.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		exists, err := l.client.CollectionExists(ctx, l.config.Collection)
		if err != nil {
			l.ensErr = fmt.Errorf("checking collection %s: %w", l.config.Collection, err)
			return
		}
		if exists {
			return
		}

		err = l.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: l.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     l.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			l.ensErr = fmt.Errorf("creating collection %s: %w", l.config.Collection, err)
			return
		}
		l.log.Info(ctx, "created qdrant collection",
			zap.String("collection", l.config.Collection),
			zap.Uint64("vector_size", l.config.VectorSize),
		)
	})
	return l.ensErr
}

// Close closes the gRPC connection.
func (l *QdrantLoader) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

// QdrantPointID derives a stable point ID from the namespace and chunk ID.
func QdrantPointID(namespace, chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+chunkID)).String()
}

// QdrantPoints builds one point per chunk. vectors must align with chunks.
func QdrantPoints(namespace string, chunks []chunker.Chunk, vectors [][]float32) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(QdrantPointID(namespace, c.ID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				KeyText:       c.Text,
				KeyDocumentID: c.DocumentID(),
				KeyChunkIndex: c.Index,
				KeyNamespace:  namespace,
			}),
		}
	}
	return points
}
