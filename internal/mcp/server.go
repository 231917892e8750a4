package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"ainews/internal/contextutil"
	"ainews/internal/service"
)

const (
	// SessionHeader carries the session id issued on initialize.
	SessionHeader = "Mcp-Session-Id"

	maxRequestSize = 1 << 20 // 1MB
)

// Server implements the MCP tool-call boundary over the catalog service.
// It serves JSON-RPC over HTTP (ServeHTTP) and over newline-delimited stdio (Run).
type Server struct {
	tools *ToolHandler
	info  ServerInfo
}

// NewServer creates a new MCP server.
func NewServer(tools *ToolHandler, name, version string) *Server {
	return &Server{
		tools: tools,
		info:  ServerInfo{Name: name, Version: version},
	}
}

// Run serves newline-delimited JSON-RPC messages from r until EOF or ctx is done.
// Responses are written to w, one per line. Notifications get no response.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	logger := contextutil.LoggerFromContext(ctx)
	reader := bufio.NewReader(r)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if resp := s.HandleMessage(ctx, line); resp != nil {
				if werr := writeResponse(w, resp); werr != nil {
					return werr
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				logger.DebugContext(ctx, "stdio input closed")
				return nil
			}
			return err
		}
	}
}

// ServeHTTP handles a single JSON-RPC message posted to the MCP endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
	if err != nil {
		logger.WarnContext(ctx, "failed to read request body", "error", err)
		writeHTTPResponse(w, http.StatusBadRequest, errorResponse(nil, CodeParseError, "Parse error"))
		return
	}
	if len(body) > maxRequestSize {
		writeHTTPResponse(w, http.StatusRequestEntityTooLarge, errorResponse(nil, CodeInvalidRequest, "Request too large"))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		logger.WarnContext(ctx, "invalid JSON-RPC message", "error", err)
		writeHTTPResponse(w, http.StatusBadRequest, errorResponse(nil, CodeParseError, "Parse error"))
		return
	}

	if req.Method == "initialize" {
		w.Header().Set(SessionHeader, uuid.NewString())
	}

	resp := s.handleRequest(ctx, &req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeHTTPResponse(w, http.StatusOK, resp)
}

// HandleMessage decodes one raw JSON-RPC message and returns its response,
// or nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "Parse error")
	}
	return s.handleRequest(ctx, &req)
}

func (s *Server) handleRequest(ctx context.Context, req *Request) *Response {
	logger := contextutil.LoggerFromContext(ctx)

	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, CodeInvalidRequest, "Invalid Request")
	}

	var resp *Response
	switch req.Method {
	case "initialize":
		resp = s.handleInitialize(req)
	case "ping":
		resp = &Response{JSONRPC: "2.0", ID: req.ID, Result: struct{}{}}
	case "tools/list":
		resp = &Response{JSONRPC: "2.0", ID: req.ID, Result: ListToolsResult{Tools: s.tools.Definitions()}}
	case "tools/call":
		resp = s.handleCallTool(ctx, req)
	case "notifications/initialized", "notifications/cancelled":
		return nil
	default:
		logger.DebugContext(ctx, "unknown MCP method", "method", req.Method)
		resp = errorResponse(req.ID, CodeMethodNotFound, "Method not found")
	}

	if req.IsNotification() {
		return nil
	}
	return resp
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      s.info,
			Capabilities: ServerCapabilities{
				Tools: &ToolsCapability{},
			},
		},
	}
}

func (s *Server) handleCallTool(ctx context.Context, req *Request) *Response {
	logger := contextutil.LoggerFromContext(ctx)

	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "Invalid params")
	}

	logger = logger.With("tool", params.Name)
	ctx = contextutil.WithLogger(ctx, logger)

	result, err := s.tools.Handle(ctx, params.Name, params.Arguments)
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.Is(err, ErrUnknownTool):
			logger.WarnContext(ctx, "unknown tool requested")
			return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name))
		case errors.As(err, &validationErr):
			logger.WarnContext(ctx, "invalid tool arguments", "error", err)
			return errorResponse(req.ID, CodeInvalidParams, fmt.Sprintf("Invalid params: %s", validationErr.Error()))
		case errors.Is(err, service.ErrStoreUnavailable):
			logger.ErrorContext(ctx, "record store unavailable", "error", err)
			return toolError(req.ID, "Error: record store unavailable")
		default:
			logger.ErrorContext(ctx, "tool call failed", "error", err)
			return toolError(req.ID, fmt.Sprintf("Error: %v", err))
		}
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		logger.ErrorContext(ctx, "failed to encode tool result", "error", err)
		return errorResponse(req.ID, CodeInternalError, "Internal error")
	}

	logger.InfoContext(ctx, "tool call completed", "bytes", len(resultJSON))
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ToolContent{{Type: "text", Text: string(resultJSON)}},
		},
	}
}

func toolError(id json.RawMessage, text string) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Result: CallToolResult{
			Content: []ToolContent{{Type: "text", Text: text}},
			IsError: true,
		},
	}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

func writeResponse(w io.Writer, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func writeHTTPResponse(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
