package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fyrsmithlabs/repovec/internal/chunker"
	"github.com/fyrsmithlabs/repovec/internal/embeddings"
	"github.com/fyrsmithlabs/repovec/internal/logging"
)

// pineconeUpsertBatch keeps each upsert request under Pinecone's 2MB
// limit for 1536 dimension vectors.
const pineconeUpsertBatch = 100

// PineconeConfig addresses a Pinecone index.
type PineconeConfig struct {
	APIKey string

	// Host is the index data plane host. When empty it is looked up by
	// Index through the control plane.
	Host  string
	Index string

	// Env is the legacy environment name; it is only logged.
	Env string

	Namespace string
}

// Validate reports missing values.
func (c PineconeConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: pinecone api key required", ErrInvalidConfig)
	}
	if c.Namespace == "" {
		return fmt.Errorf("%w: namespace required", ErrInvalidConfig)
	}
	if c.Host == "" {
		return ValidateCollectionName(c.Index)
	}
	return nil
}

// pineconeControl is the control plane call the loader needs.
type pineconeControl interface {
	DescribeIndex(ctx context.Context, name string) (*pinecone.Index, error)
}

// pineconeIndex is the data plane of one index namespace.
type pineconeIndex interface {
	UpsertVectors(ctx *context.Context, in []*pinecone.Vector) (uint32, error)
	Close() error
}

// PineconeLoader embeds chunks and upserts them through the Pinecone
// data plane with the chunk ID as vector ID, so a re-run overwrites the
// vectors of an unchanged document.
type PineconeLoader struct {
	config   PineconeConfig
	embedder embeddings.Embedder
	log      *logging.Logger

	control pineconeControl
	dial    func(host, namespace string) (pineconeIndex, error)

	connected sync.Once
	index     pineconeIndex
	connErr   error
}

// NewPineconeLoader validates cfg and creates the client. The index
// connection is opened on the first Load.
func NewPineconeLoader(cfg PineconeConfig, embedder embeddings.Embedder, log *logging.Logger) (*PineconeLoader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNop()
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: cfg.APIKey, SourceTag: "repovec"})
	if err != nil {
		return nil, fmt.Errorf("%w: pinecone: %v", ErrInvalidConfig, err)
	}
	return &PineconeLoader{
		config:   cfg,
		embedder: embedder,
		log:      log,
		control:  client,
		dial: func(host, namespace string) (pineconeIndex, error) {
			idx, err := client.IndexWithNamespace(host, namespace)
			if err != nil {
				return nil, err
			}
			return idx, nil
		},
	}, nil
}

// Load embeds every chunk with one call and upserts the vectors in
// batches.
func (l *PineconeLoader) Load(ctx context.Context, chunks []chunker.Chunk) error {
	ctx, span := tracer.Start(ctx, "PineconeLoader.Load")
	defer span.End()
	span.SetAttributes(attribute.String("namespace", l.config.Namespace))

	vectors, err := embed(ctx, l.embedder, chunks)
	if err != nil {
		return err
	}
	records, err := PineconeVectors(chunks, vectors)
	if err != nil {
		return err
	}

	index, err := l.connect(ctx)
	if err != nil {
		return err
	}

	var upserted uint32
	for start := 0; start < len(records); start += pineconeUpsertBatch {
		end := min(start+pineconeUpsertBatch, len(records))
		n, err := index.UpsertVectors(&ctx, records[start:end])
		if err != nil {
			return fmt.Errorf("pinecone upsert: %w", err)
		}
		upserted += n
	}
	span.SetAttributes(attribute.Int("vectors_upserted", int(upserted)))
	return nil
}

// connect resolves the index host and dials the data plane once.
func (l *PineconeLoader) connect(ctx context.Context) (pineconeIndex, error) {
	l.connected.Do(func() {
		host := l.config.Host
		if host == "" {
			lookupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			idx, err := l.control.DescribeIndex(lookupCtx, l.config.Index)
			if err != nil {
				l.connErr = fmt.Errorf("describe pinecone index %s: %w", l.config.Index, err)
				return
			}
			host = idx.Host
		}
		host = pineconeHost(host)
		if host == "" {
			l.connErr = fmt.Errorf("%w: pinecone index %s has no host", ErrInvalidConfig, l.config.Index)
			return
		}

		// The SDK dial blocks without a context.
		type dialed struct {
			index pineconeIndex
			err   error
		}
		ch := make(chan dialed, 1)
		go func() {
			idx, err := l.dial(host, l.config.Namespace)
			ch <- dialed{idx, err}
		}()
		select {
		case d := <-ch:
			if d.err != nil {
				l.connErr = fmt.Errorf("connect pinecone index %s: %w", host, d.err)
				return
			}
			l.index = d.index
		case <-ctx.Done():
			l.connErr = fmt.Errorf("connect pinecone index %s: %w", host, ctx.Err())
			return
		}
		l.log.Info(ctx, "connected to pinecone index",
			zap.String("host", host),
			zap.String("namespace", l.config.Namespace),
			zap.String("environment", l.config.Env),
		)
	})
	return l.index, l.connErr
}

// Close closes the data plane connection if one was opened.
func (l *PineconeLoader) Close() error {
	if l.index != nil {
		return l.index.Close()
	}
	return nil
}

// pineconeHost strips a scheme and trailing slash; the SDK dials
// host:443.
func pineconeHost(host string) string {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}

// PineconeVectors builds one vector per chunk, keyed by the chunk ID.
// vectors must align with chunks.
func PineconeVectors(chunks []chunker.Chunk, vectors [][]float32) ([]*pinecone.Vector, error) {
	out := make([]*pinecone.Vector, len(chunks))
	for i, c := range chunks {
		meta, err := structpb.NewStruct(map[string]any{
			KeyText:       c.Text,
			KeyDocumentID: c.DocumentID(),
			KeyChunkIndex: c.Index,
		})
		if err != nil {
			return nil, fmt.Errorf("chunk %s metadata: %w", c.ID, err)
		}
		out[i] = &pinecone.Vector{
			Id:       c.ID,
			Values:   vectors[i],
			Metadata: meta,
		}
	}
	return out, nil
}
