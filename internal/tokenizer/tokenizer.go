// Package tokenizer counts BPE tokens the way OpenAI embedding models do.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"golang.org/x/sync/singleflight"
)

// The BPE ranks ship with the binary; nothing is downloaded at runtime.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// DefaultEncoding is used by text-embedding-ada-002 and the gpt-4 family.
const DefaultEncoding = "cl100k_base"

var (
	counters sync.Map
	builds   singleflight.Group
)

// Counter counts tokens for one encoding. It is safe for concurrent use.
type Counter struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// New returns a Counter for an encoding or model name. Empty means
// DefaultEncoding.
func New(encodingOrModel string) (*Counter, error) {
	name := strings.TrimSpace(encodingOrModel)
	if name == "" {
		name = DefaultEncoding
	}

	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		var modelErr error
		enc, modelErr = tiktoken.EncodingForModel(name)
		if modelErr != nil {
			return nil, fmt.Errorf("get encoding %q: %w", name, err)
		}
	}
	return &Counter{encoding: name, enc: enc}, nil
}

// ForEncoding returns a shared Counter, building it at most once per name.
func ForEncoding(encodingOrModel string) (*Counter, error) {
	name := strings.TrimSpace(encodingOrModel)
	if name == "" {
		name = DefaultEncoding
	}
	if c, ok := counters.Load(name); ok {
		return c.(*Counter), nil
	}

	v, err, _ := builds.Do(name, func() (any, error) {
		return New(name)
	})
	if err != nil {
		return nil, err
	}
	c := v.(*Counter)
	counters.Store(name, c)
	return c, nil
}

// Encoding returns the encoding or model name the counter was built for.
func (c *Counter) Encoding() string {
	return c.encoding
}

// Count returns the number of tokens in text. Special token markers such
// as <|endoftext|> are encoded as ordinary text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}
