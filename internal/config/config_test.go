package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Source.URL = "https://example.com/repo.zip"
	cfg.Chunk.Size = 500
	cfg.Chunk.Overlap = 50
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		wantMissing bool
	}{
		{name: "valid zip", mutate: func(*Config) {}},
		{name: "missing url", mutate: func(c *Config) { c.Source.URL = "" }, wantErr: true, wantMissing: true},
		{name: "github needs owner", mutate: func(c *Config) {
			c.Source.Mode = ModeGitHub
			c.Source.URL = ""
		}, wantErr: true, wantMissing: true},
		{name: "github ok", mutate: func(c *Config) {
			c.Source.Mode = ModeGitHub
			c.Source.Owner = "octo"
			c.Source.Repo = "hello"
		}},
		{name: "unknown mode", mutate: func(c *Config) { c.Source.Mode = "svn" }, wantErr: true},
		{name: "zero chunk size", mutate: func(c *Config) { c.Chunk.Size = 0 }, wantErr: true, wantMissing: true},
		{name: "overlap equals size", mutate: func(c *Config) { c.Chunk.Overlap = 500 }, wantErr: true},
		{name: "negative overlap", mutate: func(c *Config) { c.Chunk.Overlap = -1 }, wantErr: true},
		{name: "bad unit", mutate: func(c *Config) { c.Chunk.Unit = "lines" }, wantErr: true},
		{name: "bad secrets action", mutate: func(c *Config) { c.Secrets.Action = "shred" }, wantErr: true},
		{name: "bad action ignored when disabled", mutate: func(c *Config) {
			c.Secrets.Enabled = false
			c.Secrets.Action = "shred"
		}},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "full history depth", mutate: func(c *Config) { c.Source.Depth = DepthFull }},
		{name: "depth below full", mutate: func(c *Config) { c.Source.Depth = -2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMissing, errors.Is(err, ErrMissingValue))
		})
	}
}

func TestConfig_ValidateLoad(t *testing.T) {
	pinecone := func() *Config {
		cfg := validConfig()
		cfg.VectorStore.Index = "docs"
		cfg.VectorStore.Namespace = "repo"
		cfg.VectorStore.Environment = "us-west1-gcp"
		cfg.Pinecone.APIKey = "pc"
		cfg.Embeddings.APIKey = "sk"
		return cfg
	}

	require.NoError(t, pinecone().ValidateLoad())

	cfg := pinecone()
	cfg.Pinecone.APIKey = ""
	assert.ErrorIs(t, cfg.ValidateLoad(), ErrMissingValue)

	cfg = pinecone()
	cfg.VectorStore.Index = ""
	assert.ErrorIs(t, cfg.ValidateLoad(), ErrMissingValue)

	cfg.Pinecone.Host = "docs-abc.svc.pinecone.io"
	assert.NoError(t, cfg.ValidateLoad())

	cfg = pinecone()
	cfg.Embeddings.APIKey = ""
	assert.ErrorIs(t, cfg.ValidateLoad(), ErrMissingValue)

	cfg = pinecone()
	cfg.VectorStore.Provider = "chromem"
	cfg.VectorStore.Namespace = ""
	assert.NoError(t, cfg.ValidateLoad())

	cfg = pinecone()
	cfg.VectorStore.Provider = "qdrant"
	cfg.Qdrant.Port = 70000
	assert.Error(t, cfg.ValidateLoad())

	cfg = pinecone()
	cfg.VectorStore.Provider = "milvus"
	assert.Error(t, cfg.ValidateLoad())
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-very-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-very-secret")

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestSecret_UnmarshalKeepsValue(t *testing.T) {
	tests := []string{"sk-live", "[REDACTED]", ""}
	for _, raw := range tests {
		data, err := json.Marshal(map[string]string{"key": raw})
		require.NoError(t, err)

		var got struct {
			Key Secret `json:"key"`
		}
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, raw, got.Key.Value())
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, "1m30s", d.Duration().String())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
