package retrieval

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Chunk is one embeddable window of a course document.
type Chunk struct {
	ID      string
	Content string
	Ordinal int
}

// TokenChunker splits documents into token-bounded windows with overlap, so
// chunk size tracks what the embedding model actually sees.
type TokenChunker struct {
	enc     *tiktoken.Tiktoken
	size    int
	overlap int
}

// ChunkerOption customizes the token chunker.
type ChunkerOption func(*TokenChunker)

// WithChunkTokens overrides the default window size (tokens).
func WithChunkTokens(size int) ChunkerOption {
	return func(c *TokenChunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlapTokens configures overlap (tokens) between consecutive windows.
func WithOverlapTokens(overlap int) ChunkerOption {
	return func(c *TokenChunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewTokenChunker constructs a chunker using the encoding for the given
// model (or encoding name).
func NewTokenChunker(model string, opts ...ChunkerOption) (*TokenChunker, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(model)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer %q: %w", model, err)
		}
	}

	c := &TokenChunker{
		enc:     enc,
		size:    400,
		overlap: 60,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d", c.overlap, c.size)
	}
	return c, nil
}

// Chunk splits the document content into bounded token windows.
func (c *TokenChunker) Chunk(docID, content string) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	ids := c.enc.Encode(content, nil, nil)
	if len(ids) <= c.size {
		return []Chunk{{
			ID:      fmt.Sprintf("%s#0", docID),
			Content: content,
			Ordinal: 0,
		}}
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, len(ids)/step+1)
	ordinal := 0
	for start := 0; start < len(ids); start += step {
		end := start + c.size
		if end > len(ids) {
			end = len(ids)
		}
		text := strings.TrimSpace(c.enc.Decode(ids[start:end]))
		if text != "" {
			chunks = append(chunks, Chunk{
				ID:      fmt.Sprintf("%s#%d", docID, ordinal),
				Content: text,
				Ordinal: ordinal,
			})
			ordinal++
		}
		if end == len(ids) {
			break
		}
	}
	return chunks
}

// CountTokens reports how many tokens the text occupies.
func (c *TokenChunker) CountTokens(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
