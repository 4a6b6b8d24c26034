// mock-mcp-server is a test helper binary that implements a minimal MCP server
// over stdio. Useful for exercising the --mcp bridge by hand:
//
//	grimoire tools --mcp "go run testdata/tools/mock-mcp-server.go"
//
//go:build ignore

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   any    `json:"error,omitempty"`
}

func textContent(text string, isError bool) map[string]any {
	result := map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	}
	if isError {
		result["isError"] = true
	}
	return result
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			continue
		}
		if req.ID == nil {
			continue // notification
		}

		resp := response{JSONRPC: "2.0", ID: *req.ID}

		switch req.Method {
		case "initialize":
			resp.Result = map[string]any{
				"protocolVersion": "2024-11-05",
				"capabilities":    map[string]any{"tools": map[string]any{}},
				"serverInfo":      map[string]any{"name": "mock-mcp-server", "version": "1.0.0"},
			}

		case "tools/list":
			resp.Result = map[string]any{
				"tools": []map[string]any{
					{
						"name":        "upper",
						"description": "Uppercase the input",
						"inputSchema": map[string]any{
							"type":       "object",
							"properties": map[string]any{"text": map[string]any{"type": "string"}},
							"required":   []string{"text"},
						},
					},
					{
						"name":        "failing",
						"description": "Always returns an error",
						"inputSchema": map[string]any{
							"type":       "object",
							"properties": map[string]any{},
						},
					},
				},
			}

		case "tools/call":
			var params struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			}
			json.Unmarshal(req.Params, &params)

			switch params.Name {
			case "upper":
				text, _ := params.Arguments["text"].(string)
				resp.Result = textContent(strings.ToUpper(text), false)
			case "failing":
				resp.Result = textContent("something went wrong", true)
			default:
				resp.Error = map[string]any{
					"code":    -32601,
					"message": fmt.Sprintf("unknown tool %q", params.Name),
				}
			}

		default:
			resp.Error = map[string]any{
				"code":    -32601,
				"message": fmt.Sprintf("method %q not found", req.Method),
			}
		}

		data, _ := json.Marshal(resp)
		fmt.Fprintln(os.Stdout, string(data))
	}
}
