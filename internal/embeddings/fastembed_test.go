package embeddings

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/repovec/internal/config"
)

func TestNewFastEmbedProvider_UnknownModel(t *testing.T) {
	_, err := NewFastEmbedProvider(FastEmbedConfig{Model: "not-a-model"})
	require.Error(t, err)
	if !errors.Is(err, ErrInvalidConfig) && !errors.Is(err, ErrFastEmbedNotAvailable) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFastEmbedProvider_Embed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping FastEmbed test in short mode")
	}
	if os.Getenv("ONNX_PATH") == "" {
		t.Skip("ONNX runtime not available, skipping FastEmbed test")
	}

	p, err := New(config.EmbeddingsConfig{Provider: ProviderFastEmbed, Model: "BAAI/bge-small-en-v1.5", CacheDir: t.TempDir()})
	if errors.Is(err, ErrFastEmbedNotAvailable) {
		t.Skip(err)
	}
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 384, p.Dimension())

	vectors, err := p.EmbedDocuments(context.Background(), []string{"func main() {}", "hello world"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 384)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEmptyInput))
}
