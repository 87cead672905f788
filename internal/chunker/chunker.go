// Package chunker walks a repository tree and produces semantically typed
// CodeChunks, preferring class/method/function cuts and falling back to
// fixed-size chunking (spec §4.3). The regex-probe-then-balanced-brace-scan
// approach is grounded on the teacher's internal/plugins/source family
// (cobol/fortran/perl), generalized from IR extraction to chunk extraction.
package chunker

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sourcelens/coderag/internal/models"
)

// Config controls fixed-size fallback chunking (spec §6.4 chunking block).
type Config struct {
	MaxChunkSize int // default ~1500 characters
	OverlapSize  int // default ~100; overlap lines = OverlapSize/50
}

// DefaultConfig returns the spec's suggested defaults.
func DefaultConfig() Config {
	return Config{MaxChunkSize: 1500, OverlapSize: 100}
}

// Chunker walks a directory and emits CodeChunks.
type Chunker struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Chunker.
func New(cfg Config, logger *slog.Logger) *Chunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{cfg: cfg, logger: logger}
}

// ChunkRepository walks root and returns chunks for every recognized file,
// ordered by file path then by ascending StartLine within a file. A file
// that fails to read is logged and skipped; the walk continues (spec §4.3
// partial-failure policy).
func (c *Chunker) ChunkRepository(repositoryID, root string) ([]models.CodeChunk, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("chunker: walk error", "path", path, "err", err)
			return nil
		}
		if d.IsDir() {
			if excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if excludedFiles[d.Name()] {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, _, ok := LanguageFor(ext); !ok {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []models.CodeChunk
	for _, path := range files {
		chunks, err := c.chunkFile(repositoryID, root, path)
		if err != nil {
			c.logger.Warn("chunker: skipping file", "path", path, "err", err)
			continue
		}
		out = append(out, chunks...)
	}
	return out, nil
}

func (c *Chunker) chunkFile(repositoryID, root, path string) ([]models.CodeChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	ext := strings.ToLower(filepath.Ext(path))
	language, mode, _ := LanguageFor(ext)
	lines := splitLines(string(data))

	var chunks []chunkSpan
	switch mode {
	case ModeBrace:
		chunks = braceChunks(lines)
	case ModeIndent:
		chunks = indentChunks(lines)
	}
	if len(chunks) == 0 {
		chunks = fallbackChunks(lines, c.cfg)
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartLine < chunks[j].StartLine })

	now := time.Now()
	out := make([]models.CodeChunk, 0, len(chunks))
	for _, span := range chunks {
		out = append(out, models.CodeChunk{
			ID:           uuid.NewString(),
			RepositoryID: repositoryID,
			FilePath:     rel,
			FileName:     filepath.Base(rel),
			Language:     language,
			Content:      span.Content,
			StartLine:    span.StartLine,
			EndLine:      span.EndLine,
			ChunkType:    span.ChunkType,
			SymbolName:   span.SymbolName,
			Metadata: models.ChunkMetadata{
				ParentClass: span.ParentClass,
				Namespace:   span.Namespace,
			},
			CreatedAt: now,
		})
	}
	return out, nil
}

// chunkSpan is the intermediate result of a language-specific scanner,
// before embedding and ID assignment.
type chunkSpan struct {
	Content     string
	StartLine   int // 1-based, inclusive
	EndLine     int // 1-based, inclusive
	ChunkType   models.ChunkType
	SymbolName  string
	ParentClass string
	Namespace   string
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(content, "\n")
}

func joinLines(lines []string, start, end int) string {
	// start/end are 1-based inclusive; lines is 0-based.
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
