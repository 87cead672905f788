// Package embedding prepares chunk text and drives batch embedding calls
// through an llm.Provider, grounded on the teacher's internal/vector
// Embedder (spec §4.4: C4).
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcelens/coderag/internal/llm"
	"github.com/sourcelens/coderag/internal/models"
)

// DefaultMaxTextLength bounds the assembled text handed to the provider,
// after the structural prefix is applied and before truncation.
const DefaultMaxTextLength = 8000

// DefaultBatchSize bounds how many chunks are embedded per provider call.
const DefaultBatchSize = 64

// Embedder wraps an llm.Provider to embed CodeChunks in place.
type Embedder struct {
	provider   llm.Provider
	maxTextLen int
	batchSize  int
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithMaxTextLength overrides DefaultMaxTextLength.
func WithMaxTextLength(n int) Option {
	return func(e *Embedder) { e.maxTextLen = n }
}

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(e *Embedder) { e.batchSize = n }
}

// New creates an Embedder over provider.
func New(provider llm.Provider, opts ...Option) *Embedder {
	e := &Embedder{provider: provider, maxTextLen: DefaultMaxTextLength, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedChunks embeds chunks in fixed-size batches issued sequentially in
// input order, and assigns each resulting vector back to the chunk at the
// same position. Reordering is forbidden: a provider that returns vectors
// out of order relative to its input would silently corrupt every chunk
// after the first mismatch, so this is a correctness invariant, not a
// convenience (spec §4.4).
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []models.CodeChunk) error {
	for start := 0; start < len(chunks); start += e.batchSize {
		end := start + e.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = truncate(buildEmbeddingText(c), e.maxTextLen)
		}

		vectors, err := e.provider.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding: batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedding: batch %d-%d: got %d vectors, want %d", start, end, len(vectors), len(batch))
		}
		for i := range batch {
			chunks[start+i].Embedding = vectors[i]
		}
	}
	return nil
}

// EmbedQuery embeds a single query string using the same provider, for use
// by the retriever's vector leg.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.provider.Embed(ctx, []string{truncate(query, e.maxTextLen)})
	if err != nil {
		return nil, fmt.Errorf("embedding: query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding: query: got %d vectors, want 1", len(vectors))
	}
	return vectors[0], nil
}

// buildEmbeddingText prefixes structured context before the code so the
// embedding captures location and symbol identity, not just raw text
// (spec §4.4): "File: <path>", symbol type/name if present, language,
// optional namespace/parent class, then "Code:\n<content>".
func buildEmbeddingText(c models.CodeChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", c.FilePath)
	if c.SymbolName != "" {
		fmt.Fprintf(&b, "%s: %s\n", symbolLabel(c.ChunkType), c.SymbolName)
	}
	fmt.Fprintf(&b, "Language: %s\n", c.Language)
	if c.Metadata.Namespace != "" {
		fmt.Fprintf(&b, "Namespace: %s\n", c.Metadata.Namespace)
	}
	if c.Metadata.ParentClass != "" {
		fmt.Fprintf(&b, "Parent class: %s\n", c.Metadata.ParentClass)
	}
	b.WriteString("Code:\n")
	b.WriteString(c.Content)
	return b.String()
}

func symbolLabel(t models.ChunkType) string {
	switch t {
	case models.ChunkTypeClass:
		return "Class"
	case models.ChunkTypeMethod:
		return "Method"
	case models.ChunkTypeFunc:
		return "Function"
	case models.ChunkTypeComment:
		return "Comment"
	default:
		return "Symbol"
	}
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
