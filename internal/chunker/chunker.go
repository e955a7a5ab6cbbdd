// Package chunker splits corpus documents into overlapping chunks for
// embedding.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/repovec/internal/config"
	"github.com/fyrsmithlabs/repovec/internal/tokenizer"
)

// ErrInvalidConfig is returned for an unusable size, overlap or unit.
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// Length units.
const (
	UnitChars  = "chars"
	UnitTokens = "tokens"
)

// Metadata keys attached to every chunk.
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
)

// Separators are tried in order: paragraph, line, word, character.
var Separators = []string{"\n\n", "\n", " ", ""}

// Document is the text of one corpus entry.
type Document struct {
	ID   string
	Text string
}

// Chunk is a bounded span of a document.
type Chunk struct {
	ID       string
	Text     string
	Index    int
	Metadata map[string]any
}

// DocumentID returns the document the chunk was cut from.
func (c Chunk) DocumentID() string {
	id, _ := c.Metadata[MetaDocumentID].(string)
	return id
}

// Chunker splits documents. It holds no per-document state.
type Chunker struct {
	size     int
	overlap  int
	unit     string
	splitter textsplitter.RecursiveCharacter
}

// New validates cfg and builds a Chunker. The tokens unit loads the
// configured encoding.
func New(cfg config.ChunkConfig) (*Chunker, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be greater than zero, got %d", ErrInvalidConfig, cfg.Size)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, cfg.Overlap, cfg.Size)
	}

	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(cfg.Size),
		textsplitter.WithChunkOverlap(cfg.Overlap),
		textsplitter.WithSeparators(Separators),
	}

	unit := strings.ToLower(strings.TrimSpace(cfg.Unit))
	switch unit {
	case "", UnitChars:
		unit = UnitChars
	case UnitTokens:
		counter, err := tokenizer.ForEncoding(cfg.Encoding)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		opts = append(opts, textsplitter.WithLenFunc(counter.Count))
	default:
		return nil, fmt.Errorf("%w: unknown unit %q (must be %s or %s)", ErrInvalidConfig, cfg.Unit, UnitChars, UnitTokens)
	}

	return &Chunker{
		size:     cfg.Size,
		overlap:  cfg.Overlap,
		unit:     unit,
		splitter: textsplitter.NewRecursiveCharacter(opts...),
	}, nil
}

// Split returns the ordered chunks of doc. Whitespace-only pieces are
// dropped and indexes stay contiguous.
func (c *Chunker) Split(doc Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}

	pieces, err := c.splitter.SplitText(doc.Text)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", doc.ID, err)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, Chunk{
			ID:    ChunkID(doc.ID, idx),
			Text:  piece,
			Index: idx,
			Metadata: map[string]any{
				MetaDocumentID: doc.ID,
				MetaChunkIndex: idx,
			},
		})
	}
	return chunks, nil
}

// SplitAll splits docs in order.
func (c *Chunker) SplitAll(docs []Document) ([]Chunk, error) {
	var all []Chunk
	for _, d := range docs {
		chunks, err := c.Split(d)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// ChunkID is a UUIDv5 of documentID#index, stable across runs so
// re-ingesting a document overwrites its vectors.
func ChunkID(documentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentID+"#"+strconv.Itoa(index))).String()
}

// Unit returns the length unit in use.
func (c *Chunker) Unit() string { return c.unit }
