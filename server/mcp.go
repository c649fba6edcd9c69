package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/jonwraymond/biasdaily/content"
	"github.com/jonwraymond/toolfoundation/model"
)

// MCPRequest represents an incoming MCP JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r MCPRequest) IsNotification() bool {
	return r.ID == nil
}

// MCPResponse represents an MCP JSON-RPC response.
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError is a JSON-RPC error object.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func errorResponse(id any, code int, msg string) MCPResponse {
	return MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &MCPError{Code: code, Message: msg},
	}
}

// HandleRequest processes an MCP request and returns a response.
// Responses to notifications are built but should not be sent.
func (s *Server) HandleRequest(ctx context.Context, req MCPRequest) MCPResponse {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, ErrCodeInvalidRequest, `jsonrpc must be "2.0"`)
	}

	s.logger.Debug("mcp request", zap.String("method", req.Method), zap.Any("id", req.ID))

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req.ID)
	case "ping":
		return MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	case "notifications/initialized":
		return MCPResponse{JSONRPC: "2.0", ID: req.ID}
	case "tools/list":
		return s.handleToolsList(req.ID)
	case "tools/call":
		return s.handleToolsCall(ctx, req.ID, req.Params)
	default:
		return errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %s not found", req.Method))
	}
}

func (s *Server) handleInitialize(id any) MCPResponse {
	result := map[string]any{
		"protocolVersion": model.MCPVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    s.config.ServerInfo.Name,
			"version": s.config.ServerInfo.Version,
		},
	}
	return MCPResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func (s *Server) handleToolsList(id any) MCPResponse {
	tools := s.ListAll()
	mcpTools := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		mcpTools = append(mcpTools, toMCPTool(tool.Tool))
	}
	return MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  map[string]any{"tools": mcpTools},
	}
}

type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleToolsCall(ctx context.Context, id any, params json.RawMessage) MCPResponse {
	var callParams toolsCallParams
	if len(params) == 0 {
		return errorResponse(id, ErrCodeInvalidParams, "params are required")
	}
	if err := json.Unmarshal(params, &callParams); err != nil {
		return errorResponse(id, ErrCodeInvalidParams, err.Error())
	}

	result, err := s.Execute(ctx, callParams.Name, callParams.Arguments)
	if err != nil {
		code := errorCode(err)
		s.logger.Warn("tool call failed",
			zap.String("tool", callParams.Name),
			zap.Int("code", code),
			zap.Error(err),
		)
		return errorResponse(id, code, err.Error())
	}

	out, err := toCallToolResult(result)
	if err != nil {
		return errorResponse(id, ErrCodeInternal, err.Error())
	}
	return MCPResponse{JSONRPC: "2.0", ID: id, Result: out}
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrToolNotFound):
		return ErrCodeToolNotFound
	case errors.Is(err, ErrInvalidParams), errors.Is(err, content.ErrNotFound):
		return ErrCodeInvalidParams
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeInternal
	default:
		return ErrCodeToolExecFailed
	}
}

// toCallToolResult carries the result both as JSON text, for clients
// that only read content, and as structured content.
func toCallToolResult(result any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(data)}},
		StructuredContent: result,
	}, nil
}

func toMCPTool(tool mcp.Tool) map[string]any {
	return map[string]any{
		"name":        tool.Name,
		"description": tool.Description,
		"inputSchema": tool.InputSchema,
	}
}
