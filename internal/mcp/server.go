package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ServerInfo identifies the server in the initialize reply.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CallError carries a protocol-level tool call failure that must
// surface as a JSON-RPC error rather than a tool result.
type CallError struct {
	Code    int
	Message string
}

func (e *CallError) Error() string { return e.Message }

// InvalidParams builds a -32602 call error.
func InvalidParams(format string, args ...any) *CallError {
	return &CallError{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// Handler is the tool surface the dispatch loop serves. Call returns
// the text for the result envelope; a *CallError return becomes a
// JSON-RPC error reply, any other error is an internal fault of the
// handler layer (handlers are expected to encode their own failures
// into the returned text instead).
type Handler interface {
	Tools() []Tool
	Call(ctx context.Context, name string, params, args map[string]any) (string, error)
}

// Server owns one client connection over one stream pair.
type Server struct {
	framer  *Framer
	handler Handler
	info    ServerInfo

	// onReady fires once per session when the client signals (or is
	// assumed) ready; it triggers the metadata cache warmup.
	onReady   func(context.Context)
	readyOnce sync.Once
}

// NewServer builds a server over the given streams.
func NewServer(r io.Reader, w io.Writer, handler Handler, info ServerInfo, onReady func(context.Context)) *Server {
	if onReady == nil {
		onReady = func(context.Context) {}
	}
	return &Server{
		framer:  NewFramer(r, w),
		handler: handler,
		info:    info,
		onReady: onReady,
	}
}

// Serve runs the dispatch loop until end of input. It returns nil on
// clean EOF; any other error is a transport fault.
func (s *Server) Serve(ctx context.Context) error {
	for {
		payload, err := s.framer.ReadMessage()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrOversizeBody):
			s.reply(errorResponse(nil, CodeInvalidRequest, "message body exceeds 1 MiB"))
			continue
		case err != nil:
			return fmt.Errorf("read message: %w", err)
		}

		s.dispatch(ctx, payload)
	}
}

// dispatch processes one message to completion, writing at most one
// reply. Handlers never crash the loop.
func (s *Server) dispatch(ctx context.Context, payload []byte) {
	var probe any
	if err := json.Unmarshal(payload, &probe); err != nil {
		s.reply(errorResponse(nil, CodeParseError, "parse error"))
		return
	}
	if _, ok := probe.(map[string]any); !ok {
		s.reply(errorResponse(nil, CodeInvalidRequest, "request must be a JSON object"))
		return
	}

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		s.reply(errorResponse(nil, CodeInvalidRequest, "malformed request fields"))
		return
	}

	if req.Method == "" {
		if !req.isNotification() {
			s.reply(errorResponse(req.ID, CodeInvalidRequest, "missing method"))
		}
		return
	}

	if req.Method != "initialize" {
		s.markReady(ctx)
	}

	switch req.Method {
	case "initialize":
		requested, _ := req.Params["protocolVersion"].(string)
		result := map[string]any{
			"protocolVersion": negotiateVersion(requested),
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			"serverInfo": s.info,
		}
		if !req.isNotification() {
			s.reply(resultResponse(req.ID, result))
		}

	case "notifications/initialized", "initialized":
		// The spec'd form is a notification, but a request variant
		// gets its reply so the client is not left hanging.
		if !req.isNotification() {
			s.reply(resultResponse(req.ID, map[string]any{}))
		}

	case "tools/list":
		if req.isNotification() {
			return
		}
		s.reply(resultResponse(req.ID, map[string]any{"tools": s.handler.Tools()}))

	case "tools/call":
		s.handleCall(ctx, &req)

	case "ping":
		if req.isNotification() {
			return
		}
		s.reply(resultResponse(req.ID, map[string]any{}))

	default:
		if req.isNotification() {
			slog.Debug("ignoring unknown notification", "method", req.Method)
			return
		}
		s.reply(errorResponse(req.ID, CodeMethodNotFound, "Method not found: "+req.Method))
	}
}

// emptyParams is the immutable sentinel used when a call omits an
// optional object.
var emptyParams = map[string]any{}

func (s *Server) handleCall(ctx context.Context, req *request) {
	params := req.Params
	if params == nil {
		params = emptyParams
	}

	name, ok := params["name"].(string)
	if !ok || name == "" {
		s.replyIfRequest(req, errorResponse(req.ID, CodeInvalidParams, "tools/call requires params.name"))
		return
	}

	var args map[string]any
	switch v := params["arguments"].(type) {
	case nil:
		args = emptyParams
	case map[string]any:
		args = v
	default:
		s.replyIfRequest(req, errorResponse(req.ID, CodeInvalidParams, "params.arguments must be an object"))
		return
	}

	text, err := s.handler.Call(ctx, name, params, args)
	if err != nil {
		var callErr *CallError
		if errors.As(err, &callErr) {
			s.replyIfRequest(req, errorResponse(req.ID, callErr.Code, callErr.Message))
		} else {
			s.replyIfRequest(req, errorResponse(req.ID, CodeInternalError, err.Error()))
		}
		return
	}

	s.replyIfRequest(req, resultResponse(req.ID, textResult(text)))
}

func (s *Server) replyIfRequest(req *request, resp response) {
	if req.isNotification() {
		return
	}
	s.reply(resp)
}

// markReady fires the session warmup exactly once. The first message
// after initialize counts as the ready signal even when the client
// never sends notifications/initialized.
func (s *Server) markReady(ctx context.Context) {
	s.readyOnce.Do(func() {
		s.onReady(ctx)
	})
}

// reply encodes and writes one response, falling back to the canned
// internal error so the client always hears back.
func (s *Server) reply(resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("encode reply failed", "error", err)
		s.framer.WriteStaticInternalError()
		return
	}
	if err := s.framer.WriteMessage(data); err != nil {
		// A broken client pipe must not kill the server; the read
		// side will see EOF and end the loop.
		slog.Warn("write reply failed", "error", err)
	}
}
