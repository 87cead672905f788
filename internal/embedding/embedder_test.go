package embedding

import (
	"context"
	"strings"
	"testing"

	"github.com/sourcelens/coderag/internal/llm"
	"github.com/sourcelens/coderag/internal/models"
)

type stubProvider struct {
	calls [][]string
}

func (s *stubProvider) Chat(context.Context, *llm.Prompt, []llm.ToolDef, *llm.RequestOptions) (*llm.Response, error) {
	return nil, nil
}

func (s *stubProvider) StreamChat(context.Context, *llm.Prompt, *llm.RequestOptions) (<-chan llm.Fragment, error) {
	return nil, nil
}

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls = append(s.calls, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (s *stubProvider) Name() string { return "stub" }

func TestEmbedChunks_AssignsVectorsPositionally(t *testing.T) {
	provider := &stubProvider{}
	e := New(provider, WithBatchSize(2))

	chunks := []models.CodeChunk{
		{FilePath: "a.go", SymbolName: "Foo", ChunkType: models.ChunkTypeFunc, Language: "go", Content: "func Foo() {}"},
		{FilePath: "b.go", SymbolName: "Bar", ChunkType: models.ChunkTypeFunc, Language: "go", Content: "func Bar() {}"},
		{FilePath: "c.go", SymbolName: "Baz", ChunkType: models.ChunkTypeFunc, Language: "go", Content: "func Baz() {}"},
	}

	if err := e.EmbedChunks(context.Background(), chunks); err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	for i, c := range chunks {
		if len(c.Embedding) != 1 {
			t.Fatalf("chunk %d: expected an embedding, got %v", i, c.Embedding)
		}
	}
	if len(provider.calls) != 2 {
		t.Fatalf("expected 2 batches for batchSize=2 over 3 chunks, got %d", len(provider.calls))
	}
	if len(provider.calls[0]) != 2 || len(provider.calls[1]) != 1 {
		t.Fatalf("unexpected batch sizes: %v", []int{len(provider.calls[0]), len(provider.calls[1])})
	}
}

func TestBuildEmbeddingText_IncludesStructuralPrefix(t *testing.T) {
	c := models.CodeChunk{
		FilePath:   "internal/foo/bar.go",
		SymbolName: "Compute",
		ChunkType:  models.ChunkTypeMethod,
		Language:   "go",
		Content:    "func (r *R) Compute() int { return 1 }",
		Metadata:   models.ChunkMetadata{ParentClass: "R", Namespace: "foo"},
	}
	text := buildEmbeddingText(c)

	for _, want := range []string{
		"File: internal/foo/bar.go",
		"Method: Compute",
		"Language: go",
		"Namespace: foo",
		"Parent class: R",
		"Code:\nfunc (r *R) Compute() int { return 1 }",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected embedding text to contain %q, got:\n%s", want, text)
		}
	}
}

func TestEmbedChunks_TruncatesLongText(t *testing.T) {
	provider := &stubProvider{}
	e := New(provider, WithMaxTextLength(20))

	chunks := []models.CodeChunk{
		{FilePath: "a.go", Language: "go", Content: strings.Repeat("x", 500)},
	}
	if err := e.EmbedChunks(context.Background(), chunks); err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if len(provider.calls[0][0]) != 20 {
		t.Fatalf("expected truncation to 20 chars, got %d", len(provider.calls[0][0]))
	}
}

func TestEmbedChunks_ErrorsOnVectorCountMismatch(t *testing.T) {
	provider := &mismatchProvider{}
	e := New(provider)

	err := e.EmbedChunks(context.Background(), []models.CodeChunk{{FilePath: "a.go"}, {FilePath: "b.go"}})
	if err == nil {
		t.Fatal("expected an error on vector count mismatch")
	}
}

type mismatchProvider struct{ stubProvider }

func (m *mismatchProvider) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{{1}}, nil
}
