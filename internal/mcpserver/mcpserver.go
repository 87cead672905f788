// Package mcpserver exposes the agent's tool catalogue (spec §4.6: C6)
// to external MCP clients, grounded on SloanGwaltney-synapse's
// cmd/mcp.go: one mcp.Tool plus ToolHandlerFunc per registered tool,
// backed by mark3labs/mcp-go's stdio server. Unlike synapse's
// single-index CLI, this service is multi-repository, so every exposed
// tool gains a required repository_id argument that the handler
// forwards to tools.Registry.Execute.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/sourcelens/coderag/internal/agent/tools"
	"github.com/sourcelens/coderag/internal/store"
)

const serverName = "coderag"
const serverVersion = "0.1.0"

// New builds an MCP server exposing every tool in registry plus a
// list_repositories tool backed by repos.
func New(registry *tools.Registry, repos store.RepositoryStore) (*mcpserver.MCPServer, error) {
	s := mcpserver.NewMCPServer(serverName, serverVersion, mcpserver.WithToolCapabilities(false))

	for _, t := range registry.All() {
		mcpTool, err := toMCPTool(t)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: build tool %s: %w", t.Name(), err)
		}
		s.AddTool(mcpTool, makeToolHandler(registry, t.Name()))
	}

	s.AddTool(listRepositoriesTool(), makeListRepositoriesHandler(repos))
	return s, nil
}

// toMCPTool wraps a tools.Tool's raw JSON schema with a required
// repository_id property, since the underlying Registry.Execute call
// needs to know which repository's chunks to search.
func toMCPTool(t tools.Tool) (mcp.Tool, error) {
	var schema map[string]interface{}
	if err := json.Unmarshal(t.Schema(), &schema); err != nil {
		return mcp.Tool{}, fmt.Errorf("decode schema: %w", err)
	}

	props, _ := schema["properties"].(map[string]interface{})
	if props == nil {
		props = map[string]interface{}{}
	}
	props["repository_id"] = map[string]interface{}{
		"type":        "string",
		"description": "ID of the indexed repository to operate on",
	}
	schema["properties"] = props

	required, _ := schema["required"].([]interface{})
	schema["required"] = append(required, "repository_id")

	raw, err := json.Marshal(schema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("encode schema: %w", err)
	}
	return mcp.NewToolWithRawSchema(t.Name(), t.Description(), raw), nil
}

// makeToolHandler forwards an MCP tool call onto the shared registry,
// re-marshaling the client-supplied arguments back into the JSON string
// Registry.Execute expects.
func makeToolHandler(registry *tools.Registry, name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repositoryID := req.GetString("repository_id", "")
		if repositoryID == "" {
			return mcp.NewToolResultError("repository_id is required"), nil
		}

		args := req.GetArguments()
		delete(args, "repository_id")
		argsJSON, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result := registry.Execute(ctx, name, string(argsJSON), repositoryID)
		if strings.HasPrefix(result, "Error:") {
			return mcp.NewToolResultError(result), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

func listRepositoriesTool() mcp.Tool {
	return mcp.NewTool("list_repositories",
		mcp.WithDescription("List indexed repositories available to search, with id, chunk count, and languages."),
	)
}

func makeListRepositoriesHandler(repos store.RepositoryStore) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		all, err := repos.ListAll(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list repositories failed: %v", err)), nil
		}
		if len(all) == 0 {
			return mcp.NewToolResultText("No repositories indexed yet."), nil
		}

		var b strings.Builder
		for _, r := range all {
			fmt.Fprintf(&b, "- %s (%s): %d chunks, languages: %s\n", r.ID, r.Name, r.ChunkCount, strings.Join(r.Languages, ", "))
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

// ServeStdio runs s over stdio until the client disconnects.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}
