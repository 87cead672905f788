package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sourcelens/coderag/internal/agent/tools"
	"github.com/sourcelens/coderag/internal/models"
)

type fakeTool struct {
	name       string
	lastArgs   string
	lastRepoID string
	response   string
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "a fake tool" }
func (f *fakeTool) Schema() []byte {
	return []byte(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`)
}
func (f *fakeTool) Execute(ctx context.Context, argumentsJSON, repositoryID string) string {
	f.lastArgs = argumentsJSON
	f.lastRepoID = repositoryID
	return f.response
}

type fakeRepoStore struct {
	repos []models.Repository
}

func (f *fakeRepoStore) Upsert(context.Context, models.Repository) error { return nil }
func (f *fakeRepoStore) Get(context.Context, string) (*models.Repository, error) {
	return nil, nil
}
func (f *fakeRepoStore) ListAll(context.Context) ([]models.Repository, error) { return f.repos, nil }
func (f *fakeRepoStore) Delete(context.Context, string) error                 { return nil }
func (f *fakeRepoStore) Close() error                                         { return nil }

func TestToMCPTool_InjectsRequiredRepositoryID(t *testing.T) {
	ft := &fakeTool{name: "code_search"}
	mcpTool, err := toMCPTool(ft)
	if err != nil {
		t.Fatalf("toMCPTool: %v", err)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(mcpTool.RawInputSchema, &schema); err != nil {
		t.Fatalf("decode raw schema: %v", err)
	}

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected properties map, got %v", schema["properties"])
	}
	if _, ok := props["repository_id"]; !ok {
		t.Fatalf("expected repository_id property, got %v", props)
	}
	if _, ok := props["query"]; !ok {
		t.Fatalf("expected original query property preserved, got %v", props)
	}

	required, ok := schema["required"].([]interface{})
	if !ok {
		t.Fatalf("expected required array, got %v", schema["required"])
	}
	found := false
	for _, r := range required {
		if r == "repository_id" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected repository_id in required, got %v", required)
	}
}

func TestMakeToolHandler_MissingRepositoryID_ReturnsError(t *testing.T) {
	registry := tools.NewRegistry()
	ft := &fakeTool{name: "code_search", response: "ok"}
	registry.Register(ft)

	handler := makeToolHandler(registry, "code_search")
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"query": "auth"}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected an error result for missing repository_id")
	}
}

func TestMakeToolHandler_ForwardsArgumentsAndRepository(t *testing.T) {
	registry := tools.NewRegistry()
	ft := &fakeTool{name: "code_search", response: "found it"}
	registry.Register(ft)

	handler := makeToolHandler(registry, "code_search")
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"query": "auth", "repository_id": "repo-1"}

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result")
	}
	if ft.lastRepoID != "repo-1" {
		t.Errorf("expected repository id repo-1, got %q", ft.lastRepoID)
	}
	if !strings.Contains(ft.lastArgs, `"query":"auth"`) {
		t.Errorf("expected query forwarded, got %q", ft.lastArgs)
	}
	if strings.Contains(ft.lastArgs, "repository_id") {
		t.Errorf("expected repository_id stripped from forwarded arguments, got %q", ft.lastArgs)
	}
}

func TestMakeListRepositoriesHandler_FormatsRepositories(t *testing.T) {
	repos := &fakeRepoStore{repos: []models.Repository{
		{ID: "r1", Name: "demo", ChunkCount: 42, Languages: []string{"go", "python"}},
	}}
	handler := makeListRepositoriesHandler(repos)

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result")
	}
}

func TestMakeListRepositoriesHandler_EmptyReturnsMessage(t *testing.T) {
	repos := &fakeRepoStore{}
	handler := makeListRepositoriesHandler(repos)

	result, err := handler(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result")
	}
}

func TestNew_RegistersAllToolsAndListRepositories(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&fakeTool{name: "code_search"})
	registry.Register(&fakeTool{name: "read_file"})
	repos := &fakeRepoStore{}

	s, err := New(registry, repos)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s == nil {
		t.Fatal("expected a non-nil server")
	}
}
