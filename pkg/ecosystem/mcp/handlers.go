package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/recipes"
	"github.com/ormasoftchile/grimoire/pkg/runtime"
	"github.com/ormasoftchile/grimoire/pkg/schema"
	"github.com/ormasoftchile/grimoire/pkg/toolkit"
)

// HandleList implements the grimoire/list MCP tool.
func HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	dir, _ := args["dir"].(string)
	if dir == "" {
		dir = "recipes"
	}

	summaries, err := recipes.NewStore(dir).List()
	if err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return textResult(string(data)), nil
}

// HandleValidate implements the grimoire/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	rec, errs := schema.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d variables)", rec.Name, len(rec.Vars))), nil
}

// HandleRun implements the grimoire/run MCP tool. Runs are always dry-run:
// the server resolves variables with the read-only built-in providers and
// returns the rendered prompts, never calling a model or writing files.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["recipe"].(string)
	if name == "" {
		return errorResult("recipe argument is required"), nil
	}
	dir, _ := args["dir"].(string)
	if dir == "" {
		dir = "recipes"
	}
	var external []string
	if raw, _ := args["args"].(string); raw != "" {
		external = strings.Fields(raw)
	}

	e := &runtime.Executor{
		Store:     recipes.NewStore(dir),
		Providers: []catalog.Provider{&toolkit.FS{}, &toolkit.Git{}},
		DryRun:    true,
	}

	res, err := e.Run(ctx, name, runtime.RunOptions{ExternalArgs: external})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	response := map[string]any{
		"run_id": res.RunID,
		"recipe": res.Recipe,
		"user":   res.UserPrompt,
	}
	if res.SystemPrompt != "" {
		response["system"] = res.SystemPrompt
	}
	data, _ := json.MarshalIndent(response, "", "  ")
	return textResult(string(data)), nil
}

// HandleSchema implements the grimoire/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func hasErrors(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
