package chunker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sourcelens/coderag/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestChunkRepository_GoFileProducesFunctionChunks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", `package main

func greet(name string) string {
	return "hello " + name
}

func main() {
	println(greet("world"))
}
`)

	c := New(DefaultConfig(), nil)
	chunks, err := c.ChunkRepository("repo-1", dir)
	if err != nil {
		t.Fatalf("ChunkRepository: %v", err)
	}

	var names []string
	for _, ch := range chunks {
		if ch.ChunkType == models.ChunkTypeFunc {
			names = append(names, ch.SymbolName)
		}
	}
	if len(names) != 2 || names[0] != "greet" || names[1] != "main" {
		t.Fatalf("expected [greet main], got %v", names)
	}
}

func TestChunkRepository_ClassMethodsGetParentClass(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "widget.java", `package com.example;

public class Widget {
	public int compute(int x) {
		return x * 2;
	}
}
`)

	c := New(DefaultConfig(), nil)
	chunks, err := c.ChunkRepository("repo-1", dir)
	if err != nil {
		t.Fatalf("ChunkRepository: %v", err)
	}

	var method *models.CodeChunk
	for i := range chunks {
		if chunks[i].ChunkType == models.ChunkTypeMethod {
			method = &chunks[i]
		}
	}
	if method == nil {
		t.Fatal("expected a method chunk")
	}
	if method.Metadata.ParentClass != "Widget" {
		t.Errorf("expected ParentClass Widget, got %q", method.Metadata.ParentClass)
	}
	if method.Metadata.Namespace != "com.example" {
		t.Errorf("expected namespace com.example, got %q", method.Metadata.Namespace)
	}

	for _, c := range chunks {
		if c.ChunkType == models.ChunkTypeClass {
			t.Errorf("expected no class chunk for a class with members, got one for %q", c.SymbolName)
		}
	}
}

func TestChunkRepository_PythonIndentChunking(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "model.py", `class Model:
    def train(self):
        pass

    def predict(self):
        pass


def standalone():
    pass
`)

	c := New(DefaultConfig(), nil)
	chunks, err := c.ChunkRepository("repo-1", dir)
	if err != nil {
		t.Fatalf("ChunkRepository: %v", err)
	}

	var classChunk *models.CodeChunk
	methodCount := 0
	funcCount := 0
	for i := range chunks {
		switch chunks[i].ChunkType {
		case models.ChunkTypeClass:
			classChunk = &chunks[i]
		case models.ChunkTypeMethod:
			methodCount++
		case models.ChunkTypeFunc:
			funcCount++
		}
	}
	if classChunk == nil || classChunk.SymbolName != "Model" {
		t.Fatalf("expected a Model class chunk, got %+v", classChunk)
	}
	if methodCount != 2 {
		t.Errorf("expected 2 methods, got %d", methodCount)
	}
	if funcCount != 1 {
		t.Errorf("expected 1 standalone function, got %d", funcCount)
	}
}

func TestChunkRepository_FallbackForUnstructuredLanguage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "line one\nline two\nline three\n")

	c := New(Config{MaxChunkSize: 20, OverlapSize: 0}, nil)
	chunks, err := c.ChunkRepository("repo-1", dir)
	if err != nil {
		t.Fatalf("ChunkRepository: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected at least one fallback chunk")
	}
	for _, ch := range chunks {
		if ch.ChunkType != models.ChunkTypeCode {
			t.Errorf("expected fallback chunk type code, got %s", ch.ChunkType)
		}
		if ch.EndLine < ch.StartLine {
			t.Errorf("invalid line range %d-%d", ch.StartLine, ch.EndLine)
		}
	}
}

func TestChunkRepository_SkipsExcludedDirsAndFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "vendor/dep/dep.go", "package dep\n")
	writeFile(t, dir, "go.sum", "checksum data\n")

	c := New(DefaultConfig(), nil)
	chunks, err := c.ChunkRepository("repo-1", dir)
	if err != nil {
		t.Fatalf("ChunkRepository: %v", err)
	}
	for _, ch := range chunks {
		if ch.FilePath != "main.go" {
			t.Errorf("expected only main.go to be chunked, saw %s", ch.FilePath)
		}
	}
}

func TestLanguageFor_UnknownExtensionNotOK(t *testing.T) {
	if _, _, ok := LanguageFor(".bin"); ok {
		t.Error("expected .bin to be unrecognized")
	}
	if name, mode, ok := LanguageFor(".go"); !ok || name != "go" || mode != ModeBrace {
		t.Errorf("unexpected LanguageFor(.go): %s %v %v", name, mode, ok)
	}
}
