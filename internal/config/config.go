// Package config provides configuration loading for repovec.
//
// Configuration is assembled from defaults, an optional YAML file, an
// optional .env file and the process environment. See Load for precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingValue is returned by Validate when a required value is absent.
var ErrMissingValue = errors.New("missing required configuration value")

// Source modes.
const (
	ModeZip    = "zip"
	ModeGit    = "git"
	ModeGitHub = "github"
)

// DepthFull as source.depth clones the complete git history.
const DepthFull = -1

// DefaultScanCommand is the external scanner template. {path} is the file
// to scan and {report} the JSON report the command must write.
const DefaultScanCommand = "gitleaks dir --no-banner --redact --exit-code 0 --report-format json --report-path {report} {path}"

// Config holds the complete repovec configuration.
type Config struct {
	Source      SourceConfig      `koanf:"source"`
	Filter      FilterConfig      `koanf:"filter"`
	Secrets     SecretsConfig     `koanf:"secrets"`
	Chunk       ChunkConfig       `koanf:"chunk"`
	Summary     SummaryConfig     `koanf:"summary"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Pinecone    PineconeConfig    `koanf:"pinecone"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// SourceConfig describes where the corpus comes from.
type SourceConfig struct {
	Mode string `koanf:"mode"` // zip (default), git, github
	URL  string `koanf:"url"`  // zip URL or git remote

	// Token is sent as a bearer token (zip), basic auth password (git)
	// or OAuth token (github).
	Token Secret `koanf:"token"`

	// Dest is the local directory that receives the corpus.
	Dest string `koanf:"dest"`

	// ArchivePath is where the downloaded zip is persisted.
	ArchivePath string `koanf:"archive_path"`

	// Depth limits git history. 0 means the default of 1 and -1 fetches
	// the full history.
	Depth int `koanf:"depth"`

	Branch  string   `koanf:"branch"`
	Timeout Duration `koanf:"timeout"`

	// GitHub mode.
	Owner string `koanf:"owner"`
	Repo  string `koanf:"repo"`
	Ref   string `koanf:"ref"`
}

// FilterConfig holds deny lists and size limits.
type FilterConfig struct {
	UnwantedNamesFile      string   `koanf:"unwanted_names_file"`
	UnwantedExtensionsFile string   `koanf:"unwanted_extensions_file"`
	UnwantedNames          []string `koanf:"unwanted_names"`
	UnwantedExtensions     []string `koanf:"unwanted_extensions"`
	ExcludeGlobs           []string `koanf:"exclude_globs"`
	MaxFileSize            int64    `koanf:"max_file_size"`
}

// SecretsConfig configures secret scanning and remediation.
type SecretsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Scanner       string `koanf:"scanner"` // gitleaks (default), command, rules
	Command       string `koanf:"command"`
	Action        string `koanf:"action"` // delete (default), quarantine, report
	QuarantineDir string `koanf:"quarantine_dir"`
	AllowlistFile string `koanf:"allowlist_file"`
}

// ChunkConfig configures the text splitter.
type ChunkConfig struct {
	Size     int    `koanf:"size"`
	Overlap  int    `koanf:"overlap"`
	Unit     string `koanf:"unit"` // chars (default) or tokens
	Encoding string `koanf:"encoding"`
}

// SummaryConfig configures the corpus summary table.
type SummaryConfig struct {
	Path string `koanf:"path"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider     string `koanf:"provider"` // openai (default), fastembed
	BaseURL      string `koanf:"base_url"`
	Model        string `koanf:"model"`
	APIKey       Secret `koanf:"api_key"`
	Organization string `koanf:"organization"`
	CacheDir     string `koanf:"cache_dir"` // fastembed model cache
}

// VectorStoreConfig selects and addresses the vector index.
type VectorStoreConfig struct {
	Provider    string `koanf:"provider"` // pinecone (default), qdrant, chromem
	Index       string `koanf:"index"`
	Namespace   string `koanf:"namespace"`
	Environment string `koanf:"environment"`
}

// PineconeConfig holds Pinecone specific settings.
type PineconeConfig struct {
	APIKey Secret `koanf:"api_key"`

	// Host is the index data plane host. When empty it is looked up by
	// index name.
	Host string `koanf:"host"`
}

// QdrantConfig holds Qdrant gRPC settings.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	APIKey     Secret `koanf:"api_key"`
	UseTLS     bool   `koanf:"use_tls"`
	VectorSize int    `koanf:"vector_size"`
}

// ChromemConfig holds settings for the embedded chromem store.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// MetricsConfig configures the Prometheus textfile output.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

// TelemetryConfig configures OpenTelemetry trace and metric export.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"` // grpc (default) or http/protobuf
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`

	// MetricsInterval is the OTLP metric export period.
	MetricsInterval Duration `koanf:"metrics_interval"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Secrets.Enabled = true
	cfg.Telemetry.Insecure = true
	cfg.Telemetry.SampleRate = 1.0
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Source.Mode == "" {
		cfg.Source.Mode = ModeZip
	}
	if cfg.Source.Dest == "" {
		cfg.Source.Dest = "data/repo"
	}
	if cfg.Source.ArchivePath == "" {
		cfg.Source.ArchivePath = "data/downloaded_zip.zip"
	}
	if cfg.Source.Depth == 0 {
		cfg.Source.Depth = 1
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = Duration(5 * time.Minute)
	}

	if cfg.Secrets.Scanner == "" {
		cfg.Secrets.Scanner = "gitleaks"
	}
	if cfg.Secrets.Command == "" {
		cfg.Secrets.Command = DefaultScanCommand
	}
	if cfg.Secrets.Action == "" {
		cfg.Secrets.Action = "delete"
	}
	if cfg.Secrets.QuarantineDir == "" {
		cfg.Secrets.QuarantineDir = "data/quarantine"
	}

	if cfg.Chunk.Unit == "" {
		cfg.Chunk.Unit = "chars"
	}
	if cfg.Chunk.Encoding == "" {
		cfg.Chunk.Encoding = "cl100k_base"
	}

	if cfg.Summary.Path == "" {
		cfg.Summary.Path = "data/corpus_summary.csv"
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "openai"
	}
	if cfg.Embeddings.Model == "" {
		if cfg.Embeddings.Provider == "fastembed" {
			cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
		} else {
			cfg.Embeddings.Model = "text-embedding-ada-002"
		}
	}
	if cfg.Embeddings.CacheDir == "" {
		cfg.Embeddings.CacheDir = "data/models"
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "pinecone"
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 1536 // text-embedding-ada-002
	}

	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "data/vectorstore"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = Duration(15 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks the values every run needs: source location and chunking.
//
// Vector store settings are checked separately by ValidateLoad so that
// dry runs (--skip-load) do not require credentials.
func (c *Config) Validate() error {
	switch c.Source.Mode {
	case ModeZip, ModeGit:
		if c.Source.URL == "" {
			return fmt.Errorf("%w: source.url (ZIP_URL) is required in %s mode", ErrMissingValue, c.Source.Mode)
		}
	case ModeGitHub:
		if c.Source.Owner == "" || c.Source.Repo == "" {
			return fmt.Errorf("%w: source.owner and source.repo are required in github mode", ErrMissingValue)
		}
	default:
		return fmt.Errorf("invalid source mode %q (must be zip, git or github)", c.Source.Mode)
	}
	if c.Source.Dest == "" {
		return fmt.Errorf("%w: source.dest", ErrMissingValue)
	}
	if c.Source.Depth < DepthFull {
		return fmt.Errorf("invalid source depth: %d (must be %d for full history or positive)", c.Source.Depth, DepthFull)
	}

	if c.Chunk.Size <= 0 {
		return fmt.Errorf("%w: chunk.size (CHUNK_SIZE) must be positive", ErrMissingValue)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("invalid chunk overlap %d: must be in [0, %d)", c.Chunk.Overlap, c.Chunk.Size)
	}
	if c.Chunk.Unit != "chars" && c.Chunk.Unit != "tokens" {
		return fmt.Errorf("invalid chunk unit %q (must be chars or tokens)", c.Chunk.Unit)
	}

	if c.Secrets.Enabled {
		switch c.Secrets.Action {
		case "delete", "quarantine", "report":
		default:
			return fmt.Errorf("invalid secrets action %q (must be delete, quarantine or report)", c.Secrets.Action)
		}
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid logging format %q (must be json or console)", c.Logging.Format)
	}

	return nil
}

// ValidateLoad checks the values required to reach the vector index.
func (c *Config) ValidateLoad() error {
	if c.VectorStore.Index == "" {
		return fmt.Errorf("%w: vectorstore.index (PINECONE_INDEX)", ErrMissingValue)
	}
	switch c.Embeddings.Provider {
	case "openai", "":
		if c.Embeddings.BaseURL == "" && !c.Embeddings.APIKey.IsSet() {
			return fmt.Errorf("%w: embeddings.api_key (OPENAI_API_KEY)", ErrMissingValue)
		}
	case "fastembed":
	default:
		return fmt.Errorf("unknown embeddings provider %q (must be openai or fastembed)", c.Embeddings.Provider)
	}

	switch strings.ToLower(c.VectorStore.Provider) {
	case "pinecone":
		if c.VectorStore.Namespace == "" {
			return fmt.Errorf("%w: vectorstore.namespace (NAMESPACE)", ErrMissingValue)
		}
		if !c.Pinecone.APIKey.IsSet() {
			return fmt.Errorf("%w: pinecone.api_key (PINECONE_API_KEY)", ErrMissingValue)
		}
		if c.Pinecone.Host == "" && c.VectorStore.Index == "" {
			return fmt.Errorf("%w: vectorstore.index (PINECONE_INDEX) or pinecone.host", ErrMissingValue)
		}
	case "qdrant":
		if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d (must be 1-65535)", c.Qdrant.Port)
		}
		if c.Qdrant.VectorSize <= 0 {
			return fmt.Errorf("invalid qdrant vector size: %d", c.Qdrant.VectorSize)
		}
	case "chromem":
		if c.Chromem.Path == "" {
			return fmt.Errorf("%w: chromem.path", ErrMissingValue)
		}
	default:
		return fmt.Errorf("invalid vector store provider %q (must be pinecone, qdrant or chromem)", c.VectorStore.Provider)
	}

	return nil
}
