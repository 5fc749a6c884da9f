package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/crev/internal/config"
	"github.com/joescharf/crev/internal/health"
	"github.com/joescharf/crev/internal/review"
)

// Server exposes the review pipeline as MCP tools.
type Server struct {
	reviewer *review.Reviewer
	cfg      config.Config
	version  string
}

// NewServer creates the MCP server wrapper. The reviewer may be nil when no
// API key is configured; review calls then fail with a tool error.
func NewServer(rv *review.Reviewer, cfg config.Config, version string) *Server {
	return &Server{
		reviewer: rv,
		cfg:      cfg,
		version:  version,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(health.ServiceName, s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.reviewFileTool())
	srv.AddTool(s.healthTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// crev_review_file
func (s *Server) reviewFileTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crev_review_file",
		mcp.WithDescription("Review a source file with the configured LLM. Pass either a local path, or the file content together with a filename. Returns the review as JSON with filename, processing_time_ms, model_used and review_report."),
		mcp.WithString("path", mcp.Description("Path of a local file to review")),
		mcp.WithString("content", mcp.Description("Source text to review (used when path is empty)")),
		mcp.WithString("filename", mcp.Description("Filename for content; its extension is the language hint")),
	)
	return tool, s.handleReviewFile
}

func (s *Server) handleReviewFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.reviewer == nil {
		return mcp.NewToolResultError(fmt.Sprintf("LLM not configured: no API key for provider %q", s.cfg.Provider)), nil
	}

	path := request.GetString("path", "")
	filename := request.GetString("filename", "")
	var data []byte

	switch {
	case path != "":
		b, err := s.readFile(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data = b
		if filename == "" {
			filename = filepath.Base(path)
		}
	case request.GetString("content", "") != "":
		if filename == "" {
			return mcp.NewToolResultError("filename is required when passing content"), nil
		}
		data = []byte(request.GetString("content", ""))
	default:
		return mcp.NewToolResultError("either path or content is required"), nil
	}

	resp, err := s.reviewer.Review(ctx, filename, data)
	if err != nil {
		var re *review.Error
		if errors.As(err, &re) {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", re.Kind, re.Message)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("review failed: %v", err)), nil
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal review: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// readFile reads at most one byte past the upload limit so the reviewer can
// reject oversized files without loading them whole.
func (s *Server) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	data, err := io.ReadAll(io.LimitReader(f, s.reviewer.Config().MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// crev_health
func (s *Server) healthTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("crev_health",
		mcp.WithDescription("Report whether reviews can run: provider, model, API key presence, upload limit and timeout."),
	)
	return tool, s.handleHealth
}

func (s *Server) handleHealth(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep := health.Check(s.cfg, s.version)
	data, err := json.Marshal(rep)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal health: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
