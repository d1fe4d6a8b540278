// Package retrieval indexes course material into a vector store and serves
// the course_rag stage with cited passages.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ravivarmakumar/prism/eval"
	"github.com/ravivarmakumar/prism/pkg/logging"
	"github.com/ravivarmakumar/prism/vector"
)

// Document is one piece of course material to index.
type Document struct {
	ID       string
	Course   string
	Title    string
	Content  string
	Citation string
}

// Config controls retrieval behaviour.
type Config struct {
	SearchTopK int
	// MinSimilarity filters out weak matches so an empty result correctly
	// routes the pipeline to web search.
	MinSimilarity float32
}

// Option customizes retriever config.
type Option func(*Config)

// WithSearchTopK sets the number of neighbors fetched from the vector store.
func WithSearchTopK(k int) Option {
	return func(cfg *Config) {
		if k > 0 {
			cfg.SearchTopK = k
		}
	}
}

// WithMinSimilarity sets the similarity floor for a passage to count as found.
func WithMinSimilarity(min float32) Option {
	return func(cfg *Config) {
		if min >= 0 {
			cfg.MinSimilarity = min
		}
	}
}

// Retriever coordinates chunking, embedding, and similarity search over
// course material.
type Retriever struct {
	store    vector.VectorStore
	embedder vector.Embedder
	chunker  *TokenChunker
	cfg      Config
	logger   *slog.Logger
}

// New creates a retriever.
func New(store vector.VectorStore, emb vector.Embedder, chunker *TokenChunker, opts ...Option) *Retriever {
	cfg := Config{
		SearchTopK:    6,
		MinSimilarity: 0.35,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Retriever{
		store:    store,
		embedder: emb,
		chunker:  chunker,
		cfg:      cfg,
		logger:   logging.WithComponent("retrieval"),
	}
}

// Index ingests documents: chunk, embed, store with citation metadata.
func (r *Retriever) Index(ctx context.Context, docs ...Document) error {
	if r.store == nil || r.embedder == nil || r.chunker == nil {
		return fmt.Errorf("retriever not fully configured")
	}

	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document ID cannot be empty")
		}
		chunks := r.chunker.Chunk(doc.ID, doc.Content)
		for _, chunk := range chunks {
			vec, err := r.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
			}
			embedding := &vector.Embedding{
				ID:     chunk.ID,
				Vector: vec,
				Text:   chunk.Content,
				Metadata: map[string]string{
					"course":   doc.Course,
					"title":    doc.Title,
					"citation": doc.Citation,
				},
			}
			if err := r.store.AddEmbedding(ctx, embedding); err != nil {
				return fmt.Errorf("store chunk %s: %w", chunk.ID, err)
			}
		}
		r.logger.Info("document indexed", "document", doc.ID, "chunks", len(chunks))
	}
	return nil
}

// Retrieve returns cited passages matching the query, restricted to the
// given course when set. An empty result means no course content was found.
func (r *Retriever) Retrieve(ctx context.Context, query, course string) ([]eval.Passage, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.Search(ctx, queryVec, r.cfg.SearchTopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]eval.Passage, 0, len(hits))
	for _, hit := range hits {
		if course != "" && hit.Metadata["course"] != "" && hit.Metadata["course"] != course {
			continue
		}
		if vector.CosineSimilarity(queryVec, hit.Vector) < r.cfg.MinSimilarity {
			continue
		}
		passages = append(passages, eval.Passage{
			Text:     hit.Text,
			Citation: hit.Metadata["citation"],
		})
	}
	return passages, nil
}

// Count returns the number of indexed chunks.
func (r *Retriever) Count(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}

// Clear drops all indexed material.
func (r *Retriever) Clear(ctx context.Context) error {
	return r.store.Clear(ctx)
}
