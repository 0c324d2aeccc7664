// Package mcpbridge publishes the tools reachable through a react.Toolbox as
// an MCP server, so MCP hosts can call broker-routed methods directly.
package mcpbridge

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
	"github.com/RAIL-Suite/RAIL-sub001/src/manifest"
	"github.com/RAIL-Suite/RAIL-sub001/src/react"
)

// Bridge keeps an MCP server's tool list in step with a Toolbox.
type Bridge struct {
	tools   react.Toolbox
	server  *server.MCPServer
	logger  *zap.Logger
	refresh time.Duration

	mu    sync.Mutex
	names map[string]struct{}
}

type config struct {
	name    string
	version string
	logger  *zap.Logger
	refresh time.Duration
}

// Option customises a Bridge.
type Option func(*config)

// WithServerInfo sets the name and version reported to MCP hosts.
func WithServerInfo(name, version string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
		if version != "" {
			c.version = version
		}
	}
}

// WithLogger sets the bridge logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRefreshInterval re-reads the tool list periodically while serving.
// Zero disables refreshing.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *config) { c.refresh = d }
}

// New creates a bridge over tools.
func New(tools react.Toolbox, opts ...Option) *Bridge {
	cfg := &config{name: "rail", version: "dev", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Bridge{
		tools:   tools,
		server:  server.NewMCPServer(cfg.name, cfg.version, server.WithToolCapabilities(true)),
		logger:  cfg.logger,
		refresh: cfg.refresh,
		names:   make(map[string]struct{}),
	}
}

// Server returns the underlying MCP server.
func (b *Bridge) Server() *server.MCPServer { return b.server }

// Sync replaces the published tools with the toolbox's current list and
// returns the published names.
func (b *Bridge) Sync(ctx context.Context) ([]string, error) {
	tools, err := b.tools.Tools(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		mt, err := toMCPTool(t)
		if err != nil {
			b.logger.Warn("skipping tool with unencodable schema", zap.String("method", t.Name), zap.Error(err))
			continue
		}
		b.server.AddTool(mt, b.handler(t.Name))
		current[t.Name] = struct{}{}
	}
	var stale []string
	for name := range b.names {
		if _, ok := current[name]; !ok {
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		b.server.DeleteTools(stale...)
	}
	b.names = current

	names := make([]string, 0, len(current))
	for name := range current {
		names = append(names, name)
	}
	sort.Strings(names)
	b.logger.Debug("mcp tools synced", zap.Int("tools", len(names)), zap.Int("removed", len(stale)))
	return names, nil
}

// Call executes one tool call the way the MCP server does.
func (b *Bridge) Call(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return b.handler(req.Params.Name)(ctx, req)
}

func (b *Bridge) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		raw, err := b.tools.Call(ctx, name, args)
		if err != nil {
			b.logger.Info("mcp tool call failed", zap.String("method", name), zap.Error(err))
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(resultText(raw)), nil
	}
}

// ServeStdio syncs the tools and serves MCP over in and out until ctx ends.
func (b *Bridge) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	if _, err := b.Sync(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if b.refresh > 0 {
		go b.refreshLoop(ctx)
	}
	return server.NewStdioServer(b.server).Listen(ctx, in, out)
}

func (b *Bridge) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(b.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.Sync(ctx); err != nil && ctx.Err() == nil {
				b.logger.Warn("mcp tool refresh failed", zap.Error(err))
			}
		}
	}
}

func toMCPTool(t manifest.Tool) (mcp.Tool, error) {
	schema, err := inputSchema(t.Parameters)
	if err != nil {
		return mcp.Tool{}, err
	}
	return mcp.NewToolWithRawSchema(t.Name, t.Description, schema), nil
}

// inputSchema renders an object schema that always carries type and
// properties.
func inputSchema(s manifest.Schema) (json.RawMessage, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	if _, ok := m["type"]; !ok {
		m["type"] = string(manifest.KindObject)
	}
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	return json.Marshal(m)
}

func resultText(raw json.RawMessage) string {
	var s string
	if len(raw) > 0 && raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}
