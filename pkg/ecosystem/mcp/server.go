// Package mcp exposes grimoire itself as an MCP server, so AI agents can
// list, validate, and run recipes over stdio.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with grimoire tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"grimoire",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("grimoire/list",
			mcp.WithDescription("List the recipes available in a directory"),
			mcp.WithString("dir", mcp.Description("Recipe directory (default: recipes)")),
		),
		HandleList,
	)

	s.AddTool(
		mcp.NewTool("grimoire/validate",
			mcp.WithDescription("Validate a grimoire recipe YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the recipe YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("grimoire/run",
			mcp.WithDescription("Run a recipe in dry-run mode: resolves variables and returns the rendered prompts without calling a model"),
			mcp.WithString("recipe", mcp.Required(), mcp.Description("Recipe name")),
			mcp.WithString("dir", mcp.Description("Recipe directory (default: recipes)")),
			mcp.WithString("args", mcp.Description("Positional arguments, whitespace-separated")),
		),
		HandleRun,
	)

	s.AddTool(
		mcp.NewTool("grimoire/schema",
			mcp.WithDescription("Export the grimoire recipe JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
