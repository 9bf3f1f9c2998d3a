// Package mcpadapter exposes fault explanation and evidence search as MCP tools over stdio.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/plc-fault-explainer/internal/core/domain"
	"github.com/kirillkom/plc-fault-explainer/internal/core/ports"
)

const (
	serverName    = "plc-fault-explainer"
	serverVersion = "v1.0.0"

	maxTopK = 50
)

type Server struct {
	mcp         *server.MCPServer
	explainer   ports.FaultExplainer
	searcher    ports.ChunkSearcher
	defaultTopK int
}

func NewServer(explainer ports.FaultExplainer, searcher ports.ChunkSearcher, defaultTopK int) *Server {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	s := &Server{
		mcp:         server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
		explainer:   explainer,
		searcher:    searcher,
		defaultTopK: defaultTopK,
	}

	s.mcp.AddTool(mcp.NewTool("explain_fault",
		mcp.WithDescription("Explain a PLC alarm or fault using indexed logs, manuals and knowledge-base documents. Returns summary, evidence, root_cause, actions and confidence."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Fault code or free-text symptom, e.g. ALM_3021 vacuum loss")),
		mcp.WithNumber("top_k", mcp.Description("Number of evidence chunks to use")),
	), s.handleExplain)

	s.mcp.AddTool(mcp.NewTool("search_chunks",
		mcp.WithDescription("Hybrid dense plus keyword search over indexed chunks without generation."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithNumber("k", mcp.Description("Number of chunks to return")),
	), s.handleSearch)

	return s
}

// Serve blocks until ctx is done or stdin is closed.
func (s *Server) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, stdin, stdout)
}

func (s *Server) handleExplain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topK, err := s.topK(request.GetInt("top_k", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.explainer.Explain(ctx, query, topK)
	if err != nil {
		return toolError("explain_fault", err)
	}
	return jsonResult(result)
}

type searchOutput struct {
	Mode         domain.RetrievalMode `json:"mode"`
	DenseFailed  bool                 `json:"dense_failed,omitempty"`
	SparseFailed bool                 `json:"sparse_failed,omitempty"`
	Chunks       []domain.ScoredChunk `json:"chunks"`
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	k, err := s.topK(request.GetInt("k", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	retrieval, err := s.searcher.Retrieve(ctx, query, k)
	if err != nil {
		return toolError("search_chunks", err)
	}
	return jsonResult(searchOutput{
		Mode:         retrieval.Mode,
		DenseFailed:  retrieval.DenseFailed,
		SparseFailed: retrieval.SparseFailed,
		Chunks:       retrieval.Chunks,
	})
}

func (s *Server) topK(requested int) (int, error) {
	switch {
	case requested == 0:
		return s.defaultTopK, nil
	case requested < 0 || requested > maxTopK:
		return 0, fmt.Errorf("top_k must be between 1 and %d", maxTopK)
	default:
		return requested, nil
	}
}

// toolError turns failures into tool results. Only cancellation surfaces as a protocol error.
func toolError(tool string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		slog.Error("mcp_tool_failed", "tool", tool, "error_kind", domain.KindLabel(err), "error", err.Error())
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
