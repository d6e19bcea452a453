// Package mcpserver exposes the registered attendance operations as MCP
// tools so desktop assistants can query the database directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/tracer"
)

const serverName = "absensi-ai"

// emptyObjectSchema is advertised for operations without parameters.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Server wraps an MCP server whose tools are the registered operations.
type Server struct {
	mcp    *server.MCPServer
	tools  domain.ToolExecutor
	logger *slog.Logger
}

// New builds an MCP server exposing every tool known to tools.
func New(tools domain.ToolExecutor, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:    server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
		tools:  tools,
		logger: logger,
	}
	for _, schema := range tools.Schemas() {
		params := schema.Parameters
		if len(params) == 0 {
			params = emptyObjectSchema
		}
		s.mcp.AddTool(mcp.NewToolWithRawSchema(schema.Name, schema.Description, params), s.handler(schema.Name))
	}
	logger.Debug("mcp tools registered", "count", len(tools.Schemas()))
	return s
}

// MCP returns the underlying server, for in-process clients.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve speaks MCP over the given streams until ctx is cancelled or stdin
// is closed. Stdout carries protocol frames only, so diagnostics go to the
// logger.
func (s *Server) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(slogWriter{s.logger}, "", 0))
	s.logger.Info("mcp server listening on stdio")
	if err := stdio.Listen(ctx, stdin, stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp serve: %w", err)
	}
	return nil
}

// handler runs one operation. Operation failures become tool errors so the
// client sees them instead of a protocol error.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracer.StartSpan(ctx, "mcp.call_tool",
			trace.WithAttributes(tracer.StringAttr("tool.name", name)))
		defer span.End()

		params := json.RawMessage("{}")
		if req.Params.Arguments != nil {
			data, err := json.Marshal(req.Params.Arguments)
			if err != nil {
				tracer.RecordError(span, err)
				return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
			}
			params = data
		}

		t, err := s.tools.Get(name)
		if err != nil {
			tracer.RecordError(span, err)
			return mcp.NewToolResultError(fmt.Sprintf("Function %s tidak tersedia", name)), nil
		}

		res, err := t.Execute(ctx, params)
		if err != nil {
			tracer.RecordError(span, err)
			s.logger.Warn("mcp tool failed", "tool", name, "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("Error menjalankan %s: %v", name, err)), nil
		}
		tracer.SetOK(span)
		if res == nil {
			return mcp.NewToolResultText("null"), nil
		}
		return mcp.NewToolResultText(res.Content), nil
	}
}

// slogWriter forwards the stdio server's log lines to slog.
type slogWriter struct{ logger *slog.Logger }

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Warn("mcp stdio", "line", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
