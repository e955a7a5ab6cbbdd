package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every structured environment variable.
	EnvPrefix = "REPOVEC_"
)

// legacyEnv maps the flat variable names used by existing .env files onto
// config keys.
var legacyEnv = map[string]string{
	"ZIP_URL":          "source.url",
	"GITHUB_TOKEN":     "source.token",
	"OPENAI_API_KEY":   "embeddings.api_key",
	"OPENAI_ORG_ID":    "embeddings.organization",
	"PINECONE_API_KEY": "pinecone.api_key",
	"PINECONE_INDEX":   "vectorstore.index",
	"ENVIRONMENT":      "vectorstore.environment",
	"NAMESPACE":        "vectorstore.namespace",
	"CHUNK_SIZE":       "chunk.size",
	"CHUNK_OVERLAP":    "chunk.overlap",
}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"filter.unwanted_names":      true,
	"filter.unwanted_extensions": true,
	"filter.exclude_globs":       true,
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an optional YAML file. A missing file is an error
	// only when the path was given explicitly.
	ConfigFile string

	// EnvFile is an optional dotenv file. Values already present in the
	// process environment are not overwritten.
	EnvFile string
}

// Load assembles the configuration.
//
// Precedence (highest to lowest):
//  1. REPOVEC_<SECTION>_<FIELD> environment variables (REPOVEC_CHUNK_SIZE -> chunk.size)
//  2. Legacy flat variables (ZIP_URL, CHUNK_SIZE, PINECONE_INDEX, ...)
//  3. Variables from the dotenv file, which never override the process environment
//  4. YAML config file
//  5. Hardcoded defaults
//
// Command line flags are applied by the caller on the returned Config and
// take precedence over everything here. Load does not call Validate.
//
// # Security Considerations
//
// The YAML file must not be world-writable and must be smaller than 1MB.
// It is opened once and validated through the open descriptor.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	// Defaults whose zero value is meaningful.
	for key, val := range map[string]interface{}{
		"secrets.enabled":       true,
		"telemetry.insecure":    true,
		"telemetry.sample_rate": 1.0,
	} {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to seed default %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		content, err := readConfigFile(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	// Legacy names first so the prefixed form wins when both are set.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		path, ok := legacyEnv[key]
		if !ok {
			return "", nil
		}
		return path, envValue(path, value)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load legacy environment variables: %w", err)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		path := envKey(key)
		if path == "" {
			return "", nil
		}
		return path, envValue(path, value)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// envKey maps a prefixed variable to a config key.
// Strategy: split on the first underscore only (section.field_name).
//
//	REPOVEC_CHUNK_SIZE          -> chunk.size
//	REPOVEC_SOURCE_ARCHIVE_PATH -> source.archive_path
//	REPOVEC_VECTORSTORE_INDEX   -> vectorstore.index
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[0] + "." + parts[1]
}

func envValue(path, value string) interface{} {
	if !listKeys[path] {
		return value
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// readConfigFile opens path once and validates size and permissions
// using the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file type, permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config file is not a regular file")
	}

	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0o002 != 0 {
			return fmt.Errorf("insecure config file permissions: %v (must not be world-writable)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
