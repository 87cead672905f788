// Package ingestion wires the chunker, embedder, and keyword index into
// the repository-indexing pipeline named in spec §4.1/§6.1: chunk a
// repository tree, embed the chunks, replace the repository's chunk
// partition and keyword index, and record the resulting Repository.
// Grounded on the teacher's internal/migration pipeline: a sequence of
// named stages run against one input, each stage's failure aborting the
// run without leaving the store worse off than a clean delete-then-insert.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sourcelens/coderag/internal/chunker"
	"github.com/sourcelens/coderag/internal/embedding"
	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/observability"
	"github.com/sourcelens/coderag/internal/retrieval/keywordindex"
	"github.com/sourcelens/coderag/internal/store"
)

// Pipeline runs the ingestion stages against the chunk store, repository
// store, and keyword index (spec §4.1: C1's Repository lifecycle plus
// C3/C4/C5's chunking, embedding, and indexing stages).
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder *embedding.Embedder
	keywords *keywordindex.Index
	chunks   store.ChunkStore
	repos    store.RepositoryStore
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(c *chunker.Chunker, e *embedding.Embedder, kw *keywordindex.Index, chunks store.ChunkStore, repos store.RepositoryStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{chunker: c, embedder: e, keywords: kw, chunks: chunks, repos: repos, logger: logger}
}

// Request describes a repository to (re-)index.
type Request struct {
	ID          string // empty generates a new id
	Name        string
	Path        string
	Description string
}

// Run chunks Path, embeds the resulting chunks, rebuilds the repository's
// keyword index, replaces its chunk partition, and upserts the Repository
// record with the derived chunkCount and languages. Re-indexing an
// existing id is not transactional: the chunk partition is deleted then
// re-inserted, and a crash between the two steps leaves that repository's
// chunks empty until the next successful run (spec §5, §8 idempotence).
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.Repository, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	name := req.Name
	if name == "" {
		name = id
	}

	ctx, span := observability.StartIngestionSpan(ctx, id, 0)
	defer span.End()
	observability.Audit().LogIngestionStart(ctx, id, 0)
	start := time.Now()

	chunks, err := p.chunker.ChunkRepository(id, req.Path)
	if err != nil {
		observability.RecordIngestionResult(span, 0, err)
		observability.Audit().LogIngestionError(ctx, id, err)
		return nil, fmt.Errorf("ingestion: chunk repository: %w", err)
	}

	if err := p.embedder.EmbedChunks(ctx, chunks); err != nil {
		observability.RecordIngestionResult(span, 0, err)
		observability.Audit().LogIngestionError(ctx, id, err)
		return nil, fmt.Errorf("ingestion: embed chunks: %w", err)
	}

	if err := p.chunks.DeleteByRepository(ctx, id); err != nil {
		p.logger.Warn("ingestion: delete old chunks", "repositoryId", id, "err", err)
	}
	if err := p.chunks.BulkUpsert(ctx, chunks); err != nil {
		observability.RecordIngestionResult(span, 0, err)
		observability.Audit().LogIngestionError(ctx, id, err)
		return nil, fmt.Errorf("ingestion: bulk upsert chunks: %w", err)
	}

	if err := p.keywords.Build(id, chunks); err != nil {
		observability.RecordIngestionResult(span, len(chunks), err)
		observability.Audit().LogIngestionError(ctx, id, err)
		return nil, fmt.Errorf("ingestion: build keyword index: %w", err)
	}

	now := time.Now()
	repo := models.Repository{
		ID:          id,
		Name:        name,
		Path:        req.Path,
		Description: req.Description,
		IndexedAt:   &now,
		ChunkCount:  len(chunks),
		Languages:   languagesOf(chunks),
	}
	if err := p.repos.Upsert(ctx, repo); err != nil {
		observability.RecordIngestionResult(span, len(chunks), err)
		observability.Audit().LogIngestionError(ctx, id, err)
		return nil, fmt.Errorf("ingestion: upsert repository: %w", err)
	}

	observability.RecordIngestionResult(span, len(chunks), nil)
	observability.Metrics().RecordIngestion(time.Since(start), len(chunks), nil)
	observability.Audit().LogIngestionComplete(ctx, id, len(chunks), time.Since(start))
	observability.Audit().LogRepositoryCreate(ctx, id, req.Path)

	return &repo, nil
}

// Delete removes a repository's chunk partition, keyword index, and
// Repository record.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	if err := p.chunks.DeleteByRepository(ctx, id); err != nil {
		return fmt.Errorf("ingestion: delete chunks: %w", err)
	}
	if err := p.keywords.Delete(id); err != nil {
		p.logger.Warn("ingestion: drop keyword index", "repositoryId", id, "err", err)
	}
	if err := p.repos.Delete(ctx, id); err != nil {
		return fmt.Errorf("ingestion: delete repository: %w", err)
	}
	observability.Audit().LogRepositoryDelete(ctx, id)
	return nil
}

// Stats aggregates a repository's chunk partition (spec §6.1's
// GET /api/ingestion/repositories/{id}/stats).
type Stats struct {
	RepositoryID string         `json:"repositoryId"`
	ChunkCount   int            `json:"chunkCount"`
	Languages    []string       `json:"languages"`
	ChunksByType map[string]int `json:"chunksByType"`
}

// StatsFor computes Stats by scanning the repository's stored chunks.
func (p *Pipeline) StatsFor(ctx context.Context, id string) (*Stats, error) {
	chunks, err := p.chunks.QueryByRepository(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ingestion: query chunks: %w", err)
	}
	byType := make(map[string]int)
	for _, c := range chunks {
		byType[string(c.ChunkType)]++
	}
	return &Stats{
		RepositoryID: id,
		ChunkCount:   len(chunks),
		Languages:    languagesOf(chunks),
		ChunksByType: byType,
	}, nil
}

func languagesOf(chunks []models.CodeChunk) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range chunks {
		if c.Language == "" || seen[c.Language] {
			continue
		}
		seen[c.Language] = true
		out = append(out, c.Language)
	}
	return out
}
