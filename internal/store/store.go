// Package store defines the persistence contract over the three logical
// collections named in spec §4.2/§6.3: chunks, repositories, conversations.
package store

import (
	"context"

	"github.com/sourcelens/coderag/internal/models"
)

// ScoredChunk pairs a chunk with its vector distance from a query, in
// ascending distance order from ChunkStore.VectorTopK.
type ScoredChunk struct {
	Chunk    models.CodeChunk
	Distance float32
}

// ChunkStore persists CodeChunks, partitioned by RepositoryID.
type ChunkStore interface {
	Upsert(ctx context.Context, chunk models.CodeChunk) error
	BulkUpsert(ctx context.Context, chunks []models.CodeChunk) error
	// DeleteByRepository is best-effort: it enumerates the partition and
	// removes each item, and may be partial on failure. Callers MUST
	// tolerate leftover chunks on retry (spec §4.2).
	DeleteByRepository(ctx context.Context, repositoryID string) error
	QueryByRepository(ctx context.Context, repositoryID string) ([]models.CodeChunk, error)
	// VectorTopK returns the K chunks in repositoryID minimizing cosine
	// distance to queryEmbedding, ascending by distance.
	VectorTopK(ctx context.Context, repositoryID string, queryEmbedding []float32, k int) ([]ScoredChunk, error)
	Close() error
}

// RepositoryStore persists Repository records, partitioned by ID.
// Not-found reads return (nil, nil), never an error (spec §4.2).
type RepositoryStore interface {
	Upsert(ctx context.Context, repo models.Repository) error
	Get(ctx context.Context, id string) (*models.Repository, error)
	ListAll(ctx context.Context) ([]models.Repository, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// ConversationStore persists ConversationContext records, partitioned by ID,
// with an optional TTL sweep. Not-found reads return (nil, nil).
type ConversationStore interface {
	Upsert(ctx context.Context, conv models.ConversationContext) error
	Get(ctx context.Context, id string) (*models.ConversationContext, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
