// Package keywordindex maintains a per-repository bleve full-text index
// used as the candidate-set generator for the keyword leg of hybrid
// search (spec §4.5: C5), grounded on sha1n-mcp-relic-server's
// internal/gitrepos/indexer.go mapping/analyzer setup.
package keywordindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/sourcelens/coderag/internal/models"
)

const indexSuffix = ".bleve"

// document is the bleve-stored shape of a CodeChunk. Every field the
// keyword-scoring formula and citation formatting need is stored (not just
// indexed) so a candidate hit can be turned back into a CodeChunk without a
// round trip to the chunk store.
type document struct {
	RepositoryID string `json:"repositoryId"`
	FilePath     string `json:"filePath"`
	FileName     string `json:"fileName"`
	Language     string `json:"language"`
	Content      string `json:"content"`
	StartLine    int    `json:"startLine"`
	EndLine      int    `json:"endLine"`
	ChunkType    string `json:"chunkType"`
	SymbolName   string `json:"symbolName"`
	ParentClass  string `json:"parentClass"`
	Namespace    string `json:"namespace"`
}

func toDocument(c models.CodeChunk) document {
	return document{
		RepositoryID: c.RepositoryID,
		FilePath:     c.FilePath,
		FileName:     c.FileName,
		Language:     c.Language,
		Content:      c.Content,
		StartLine:    c.StartLine,
		EndLine:      c.EndLine,
		ChunkType:    string(c.ChunkType),
		SymbolName:   c.SymbolName,
		ParentClass:  c.Metadata.ParentClass,
		Namespace:    c.Metadata.Namespace,
	}
}

func (d document) toChunk(id string) models.CodeChunk {
	return models.CodeChunk{
		ID:           id,
		RepositoryID: d.RepositoryID,
		FilePath:     d.FilePath,
		FileName:     d.FileName,
		Language:     d.Language,
		Content:      d.Content,
		StartLine:    d.StartLine,
		EndLine:      d.EndLine,
		ChunkType:    models.ChunkType(d.ChunkType),
		SymbolName:   d.SymbolName,
		Metadata: models.ChunkMetadata{
			ParentClass: d.ParentClass,
			Namespace:   d.Namespace,
		},
	}
}

// Index manages one bleve index per repository under baseDir.
type Index struct {
	baseDir string
}

// New creates an Index rooted at baseDir. baseDir is created lazily on the
// first Build call.
func New(baseDir string) *Index {
	return &Index{baseDir: baseDir}
}

func (idx *Index) path(repositoryID string) string {
	return filepath.Join(idx.baseDir, repositoryID+indexSuffix)
}

func buildMapping() mapping.IndexMapping {
	analyzed := bleve.NewTextFieldMapping()
	analyzed.Analyzer = standard.Name
	analyzed.Store = true

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", analyzed)
	doc.AddFieldMappingsAt("symbolName", analyzed)
	doc.AddFieldMappingsAt("repositoryId", exact)
	doc.AddFieldMappingsAt("filePath", exact)
	doc.AddFieldMappingsAt("fileName", exact)
	doc.AddFieldMappingsAt("chunkType", exact)
	doc.AddFieldMappingsAt("language", exact)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Build replaces the index for repositoryID with one built from chunks. It
// is called once per ingestion run; there is no incremental update path
// since re-ingestion always rebuilds a repository's full chunk set.
func (idx *Index) Build(repositoryID string, chunks []models.CodeChunk) error {
	path := idx.path(repositoryID)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("keywordindex: clear old index: %w", err)
	}
	if err := os.MkdirAll(idx.baseDir, 0o755); err != nil {
		return fmt.Errorf("keywordindex: create base dir: %w", err)
	}

	index, err := bleve.New(path, buildMapping())
	if err != nil {
		return fmt.Errorf("keywordindex: create index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, c := range chunks {
		if err := batch.Index(c.ID, toDocument(c)); err != nil {
			return fmt.Errorf("keywordindex: batch chunk %s: %w", c.ID, err)
		}
		if batch.Size() >= 200 {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("keywordindex: flush batch at %d: %w", i, err)
			}
			batch = index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("keywordindex: flush final batch: %w", err)
		}
	}
	return nil
}

// Delete removes the on-disk index for repositoryID, if any.
func (idx *Index) Delete(repositoryID string) error {
	return os.RemoveAll(idx.path(repositoryID))
}

// Candidates runs a disjunction match query over content and symbolName and
// returns up to limit matching chunks reconstructed from stored fields.
// This is a candidate set, not the final ranking: the caller recomputes
// the exact matches/|tokens| score spec §4.5 requires over these
// candidates so keyword scoring stays independent of bleve's own TF-IDF
// weighting.
func (idx *Index) Candidates(repositoryID, queryText string, limit int) ([]models.CodeChunk, error) {
	if queryText == "" {
		return nil, nil
	}
	index, err := bleve.Open(idx.path(repositoryID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("keywordindex: open %s: %w", repositoryID, err)
	}
	defer index.Close()

	contentQuery := bleve.NewMatchQuery(queryText)
	contentQuery.SetField("content")
	symbolQuery := bleve.NewMatchQuery(queryText)
	symbolQuery.SetField("symbolName")
	symbolQuery.SetBoost(2.0)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(contentQuery, symbolQuery))
	req.Size = limit
	req.Fields = []string{"repositoryId", "filePath", "fileName", "language", "content", "startLine", "endLine", "chunkType", "symbolName", "parentClass", "namespace"}

	result, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keywordindex: search: %w", err)
	}

	out := make([]models.CodeChunk, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, documentFromFields(hit.Fields).toChunk(hit.ID))
	}
	return out, nil
}

func documentFromFields(fields map[string]interface{}) document {
	str := func(key string) string {
		v, _ := fields[key].(string)
		return v
	}
	num := func(key string) int {
		switch v := fields[key].(type) {
		case float64:
			return int(v)
		case string:
			n, _ := strconv.Atoi(v)
			return n
		default:
			return 0
		}
	}
	return document{
		RepositoryID: str("repositoryId"),
		FilePath:     str("filePath"),
		FileName:     str("fileName"),
		Language:     str("language"),
		Content:      str("content"),
		StartLine:    num("startLine"),
		EndLine:      num("endLine"),
		ChunkType:    str("chunkType"),
		SymbolName:   str("symbolName"),
		ParentClass:  str("parentClass"),
		Namespace:    str("namespace"),
	}
}
