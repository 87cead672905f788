// Package retrieval implements the hybrid vector+keyword retriever (spec
// §4.5: C5).
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sourcelens/coderag/internal/embedding"
	"github.com/sourcelens/coderag/internal/models"
	"github.com/sourcelens/coderag/internal/retrieval/keywordindex"
	"github.com/sourcelens/coderag/internal/store"
)

const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// Result pairs a chunk with the score it was ranked by.
type Result struct {
	Chunk models.CodeChunk
	Score float64
}

// Filter narrows hybridSearch results. All non-zero fields are
// conjunctive and matched case-insensitively (spec §4.5).
type Filter struct {
	Language  string
	ChunkType models.ChunkType
	FileName  string   // substring match against FileName
	FilePaths []string // any-of substring match against FilePath
}

func (f *Filter) matches(c models.CodeChunk) bool {
	if f == nil {
		return true
	}
	if f.Language != "" && !strings.EqualFold(f.Language, c.Language) {
		return false
	}
	if f.ChunkType != "" && !strings.EqualFold(string(f.ChunkType), string(c.ChunkType)) {
		return false
	}
	if f.FileName != "" && !strings.Contains(strings.ToLower(c.FileName), strings.ToLower(f.FileName)) {
		return false
	}
	if len(f.FilePaths) > 0 {
		lowerPath := strings.ToLower(c.FilePath)
		matched := false
		for _, p := range f.FilePaths {
			if strings.Contains(lowerPath, strings.ToLower(p)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Retriever implements the C5 search/hybridSearch operations.
type Retriever struct {
	chunks   store.ChunkStore
	embedder *embedding.Embedder
	keywords *keywordindex.Index
}

// New creates a Retriever.
func New(chunks store.ChunkStore, embedder *embedding.Embedder, keywords *keywordindex.Index) *Retriever {
	return &Retriever{chunks: chunks, embedder: embedder, keywords: keywords}
}

// Search embeds the query, runs a K=topK vector search, and returns raw
// cosine-similarity-scored results (spec §4.5: "implementations MAY
// substitute the raw cosine similarity when available" — this
// implementation does, since Qdrant reports it directly).
func (r *Retriever) Search(ctx context.Context, repositoryID, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return nil, nil
	}
	scored, err := r.vectorSearch(ctx, repositoryID, query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]Result, len(scored))
	for i, s := range scored {
		out[i] = Result{Chunk: s.Chunk, Score: 1 - float64(s.Distance)}
	}
	return out, nil
}

func (r *Retriever) vectorSearch(ctx context.Context, repositoryID, query string, k int) ([]store.ScoredChunk, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}
	scored, err := r.chunks.VectorTopK(ctx, repositoryID, vec, k)
	if err != nil {
		return nil, fmt.Errorf("retrieval: vector top-k: %w", err)
	}
	return scored, nil
}

// HybridSearch implements spec §4.5's hybridSearch: a vector leg (K=2*topK)
// and a keyword leg (bleve-generated candidates, rescored with
// matches/|tokens|, top topK, score>0 only), merged 0.7/0.3 by chunk id,
// filtered, and returned as the top topK by combined score. Empty query
// returns an empty list, not an error.
func (r *Retriever) HybridSearch(ctx context.Context, repositoryID, query string, filter *Filter, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return nil, nil
	}

	vectorHits, err := r.vectorSearch(ctx, repositoryID, query, 2*topK)
	if err != nil {
		return nil, err
	}

	keywordHits, err := r.keywordSearch(repositoryID, query, topK)
	if err != nil {
		return nil, err
	}

	type entry struct {
		chunk       models.CodeChunk
		combined    float64
		vectorOrder int
	}
	merged := make(map[string]*entry)
	order := make(map[string]int)

	for i, s := range vectorHits {
		similarity := 1 - float64(s.Distance)
		merged[s.Chunk.ID] = &entry{chunk: s.Chunk, combined: similarity * vectorWeight, vectorOrder: i}
		order[s.Chunk.ID] = i
	}

	nextOrder := len(vectorHits)
	for _, kh := range keywordHits {
		if e, ok := merged[kh.chunk.ID]; ok {
			e.combined += kh.score * keywordWeight
			continue
		}
		merged[kh.chunk.ID] = &entry{chunk: kh.chunk, combined: kh.score * keywordWeight, vectorOrder: nextOrder}
		nextOrder++
	}

	var results []*entry
	for _, e := range merged {
		if !filter.matches(e.chunk) {
			continue
		}
		results = append(results, e)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.combined != b.combined {
			return a.combined > b.combined
		}
		if a.vectorOrder != b.vectorOrder {
			return a.vectorOrder < b.vectorOrder
		}
		return a.chunk.ID < b.chunk.ID
	})

	if len(results) > topK {
		results = results[:topK]
	}

	out := make([]Result, len(results))
	for i, e := range results {
		out[i] = Result{Chunk: e.chunk, Score: e.combined}
	}
	return out, nil
}

type keywordHit struct {
	chunk models.CodeChunk
	score float64
}

// keywordSearch tokenizes query on whitespace, fetches a bleve candidate
// set, and rescores each candidate by matches/|tokens| where a token
// matches when it occurs as a case-insensitive substring of the chunk's
// content or symbolName (spec §4.5). Only candidates with score > 0 are
// kept, sorted descending, capped at topK.
func (r *Retriever) keywordSearch(repositoryID, query string, topK int) ([]keywordHit, error) {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	// Cast a wider net than topK since bleve's own ranking need not agree
	// with the matches/|tokens| formula recomputed below.
	candidates, err := r.keywords.Candidates(repositoryID, query, topK*4+20)
	if err != nil {
		return nil, fmt.Errorf("retrieval: keyword candidates: %w", err)
	}

	hits := make([]keywordHit, 0, len(candidates))
	for _, c := range candidates {
		score := keywordScore(c, tokens)
		if score <= 0 {
			continue
		}
		hits = append(hits, keywordHit{chunk: c, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].chunk.ID < hits[j].chunk.ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func keywordScore(c models.CodeChunk, tokens []string) float64 {
	haystack := strings.ToLower(c.Content) + "\n" + strings.ToLower(c.SymbolName)
	matches := 0
	for _, t := range tokens {
		if strings.Contains(haystack, strings.ToLower(t)) {
			matches++
		}
	}
	return float64(matches) / float64(len(tokens))
}
