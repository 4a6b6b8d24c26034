package toolkit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ormasoftchile/grimoire/pkg/catalog"
	"github.com/ormasoftchile/grimoire/pkg/dynamic"
)

// MCP bridges an external MCP server into the tool catalog. The server is
// spawned once, handshaken over stdio (JSON-RPC 2.0), and every tool it
// advertises becomes a catalog tool. Remote tools take named arguments;
// positional recipe args are mapped onto the tool's required parameters
// first, then the remaining declared parameters in name order.
type MCP struct {
	Command string
	Args    []string
	Timeout time.Duration

	mu    sync.Mutex
	proc  *mcpProcess
	tools []mcpToolInfo
}

type mcpToolInfo struct {
	name        string
	description string
	params      []string
}

// Start spawns the server and performs the initialize handshake and tool
// discovery. It must be called before Tools.
func (m *MCP) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc != nil {
		return nil
	}

	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	proc, err := spawnMCP(ctx, m.Command, m.Args, timeout)
	if err != nil {
		return err
	}
	m.proc = proc
	m.tools = proc.discovered
	log.Info().Str("command", m.Command).Int("tools", len(m.tools)).Msg("mcp server initialized")
	return nil
}

// Close terminates the server process.
func (m *MCP) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.proc == nil {
		return nil
	}
	err := m.proc.shutdown(2 * time.Second)
	m.proc = nil
	return err
}

func (m *MCP) Tools() []catalog.Tool {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]catalog.Tool, 0, len(m.tools))
	for _, info := range m.tools {
		info := info
		params := make([]catalog.Param, len(info.params))
		for i, name := range info.params {
			params[i] = catalog.Param{Name: name, Type: dynamic.TypeString}
		}
		out = append(out, catalog.Tool{
			Name:        info.name,
			Description: info.description,
			Params:      params,
			Handler: func(ctx context.Context, args []any) (any, error) {
				named := make(map[string]any, len(info.params))
				for i, name := range info.params {
					if i < len(args) && args[i] != nil {
						named[name] = args[i]
					}
				}
				m.mu.Lock()
				proc := m.proc
				m.mu.Unlock()
				if proc == nil {
					return nil, fmt.Errorf("mcp server %q not started", m.Command)
				}
				return proc.callTool(ctx, info.name, named)
			},
		})
	}
	return out
}

// mcpProcess manages a persistent MCP server process over stdio.
type mcpProcess struct {
	cmd        *exec.Cmd
	stdin      *json.Encoder
	reader     *bufio.Reader
	nextID     int64
	discovered []mcpToolInfo
	done       chan struct{}
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type mcpCallResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func spawnMCP(ctx context.Context, binary string, argv []string, timeout time.Duration) (*mcpProcess, error) {
	cmd := exec.Command(binary, argv...)
	cmd.Env = os.Environ()

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start MCP process %q: %w", binary, err)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			log.Debug().Str("server", binary).Msg(scanner.Text())
		}
	}()

	p := &mcpProcess{
		cmd:    cmd,
		stdin:  json.NewEncoder(stdinPipe),
		reader: bufio.NewReader(stdout),
		done:   done,
	}

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.initialize(initCtx); err != nil {
		p.kill()
		return nil, fmt.Errorf("MCP initialize: %w", err)
	}
	p.notify("notifications/initialized", nil)

	if err := p.discoverTools(initCtx); err != nil {
		p.kill()
		return nil, fmt.Errorf("MCP tools/list: %w", err)
	}
	return p, nil
}

func (p *mcpProcess) initialize(ctx context.Context) error {
	resp, err := p.call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "grimoire",
			"version": "0.1.0",
		},
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize error [%d]: %s", resp.Error.Code, resp.Error.Message)
	}
	return nil
}

func (p *mcpProcess) discoverTools(ctx context.Context) error {
	resp, err := p.call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("tools/list error [%d]: %s", resp.Error.Code, resp.Error.Message)
	}

	var listResult struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema struct {
				Properties map[string]json.RawMessage `json:"properties"`
				Required   []string                   `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &listResult); err != nil {
		return fmt.Errorf("parse tools/list result: %w", err)
	}

	for _, t := range listResult.Tools {
		info := mcpToolInfo{name: t.Name, description: t.Description}
		seen := make(map[string]bool)
		for _, r := range t.InputSchema.Required {
			info.params = append(info.params, r)
			seen[r] = true
		}
		var optional []string
		for name := range t.InputSchema.Properties {
			if !seen[name] {
				optional = append(optional, name)
			}
		}
		sort.Strings(optional)
		info.params = append(info.params, optional...)
		p.discovered = append(p.discovered, info)
	}
	sort.Slice(p.discovered, func(i, j int) bool { return p.discovered[i].name < p.discovered[j].name })
	return nil
}

func (p *mcpProcess) callTool(ctx context.Context, name string, args map[string]any) (string, error) {
	select {
	case <-p.done:
		return "", fmt.Errorf("MCP process has exited")
	default:
	}

	resp, err := p.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", fmt.Errorf("tools/call: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("tools/call error [%d]: %s", resp.Error.Code, resp.Error.Message)
	}

	var result mcpCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return string(resp.Result), nil
	}

	var texts []string
	for _, c := range result.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("MCP tool error: %s", strings.Join(texts, "; "))
	}
	return strings.Join(texts, "\n"), nil
}

// call sends one request and waits for its response.
func (p *mcpProcess) call(ctx context.Context, method string, params any) (*rpcResponse, error) {
	id := atomic.AddInt64(&p.nextID, 1)
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	if err := p.stdin.Encode(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	return p.readResponse(ctx)
}

func (p *mcpProcess) notify(method string, params any) {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	p.stdin.Encode(msg)
}

// readResponse reads the next JSON-RPC response, skipping server-initiated
// notifications.
func (p *mcpProcess) readResponse(ctx context.Context) (*rpcResponse, error) {
	type readResult struct {
		resp *rpcResponse
		err  error
	}

	ch := make(chan readResult, 1)
	go func() {
		for {
			line, err := p.reader.ReadString('\n')
			if err != nil {
				ch <- readResult{err: fmt.Errorf("read: %w", err)}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			var peek struct {
				ID     *int64 `json:"id"`
				Method string `json:"method"`
			}
			if err := json.Unmarshal([]byte(line), &peek); err != nil {
				continue
			}
			if peek.ID == nil && peek.Method != "" {
				continue
			}

			var resp rpcResponse
			if err := json.Unmarshal([]byte(line), &resp); err != nil {
				ch <- readResult{err: fmt.Errorf("parse response: %w", err)}
				return
			}
			ch <- readResult{resp: &resp}
			return
		}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, fmt.Errorf("MCP process exited while waiting for response")
	}
}

func (p *mcpProcess) shutdown(grace time.Duration) error {
	p.cmd.Process.Signal(os.Interrupt)
	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
		return p.kill()
	}
}

func (p *mcpProcess) kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if p.cmd.Process != nil {
		return p.cmd.Process.Kill()
	}
	return nil
}
