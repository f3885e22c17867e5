// Package agent drives the external coding agent through its
// line-delimited JSON-RPC protocol.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gitcrew/gitcrew/internal/version"
)

// Sandbox is the filesystem policy forwarded to the agent.
type Sandbox string

const (
	SandboxReadOnly     Sandbox = "read-only"
	SandboxUnrestricted Sandbox = "unrestricted"
)

// TurnRequest is one prompt for the agent.
type TurnRequest struct {
	Prompt  string
	Cwd     string
	Sandbox Sandbox
}

// Runner is the agent abstraction the tools and the swarm program
// against. The production implementation launches one child process
// per call; tests substitute a stub.
type Runner interface {
	// Run executes one agent turn and returns the concatenated
	// agent message text.
	Run(ctx context.Context, req TurnRequest) (string, error)
}

// RunTurn performs the full handshake and one turn over an already
// connected stream, appending streamed agent text to out.
//
// Protocol: initialize (id 0) → initialized notification →
// thread/start (id 1) → turn/start (id 2) → notifications until
// turn/completed.
func RunTurn(ctx context.Context, rw io.ReadWriter, req TurnRequest, out *strings.Builder) error {
	id0, id1, id2 := int64(0), int64(1), int64(2)

	if err := writeLine(rw, message{
		ID:     &id0,
		Method: "initialize",
		Params: mustJSON(map[string]any{
			"clientInfo": map[string]any{"name": "gitcrew", "version": version.Version},
		}),
	}); err != nil {
		return err
	}
	if _, err := awaitResponse(rw, id0); err != nil {
		return fmt.Errorf("agent initialize: %w", err)
	}

	if err := writeLine(rw, message{Method: "initialized"}); err != nil {
		return err
	}

	sandbox := req.Sandbox
	if sandbox == "" {
		sandbox = SandboxReadOnly
	}
	if err := writeLine(rw, message{
		ID:     &id1,
		Method: "thread/start",
		Params: mustJSON(map[string]any{
			"approvalPolicy": "never",
			"sandboxPolicy":  string(sandbox),
			"cwd":            req.Cwd,
		}),
	}); err != nil {
		return err
	}
	resp, err := awaitResponse(rw, id1)
	if err != nil {
		return fmt.Errorf("agent thread/start: %w", err)
	}
	var threadResult struct {
		Thread struct {
			ID string `json:"id"`
		} `json:"thread"`
	}
	if err := json.Unmarshal(resp.Result, &threadResult); err != nil || threadResult.Thread.ID == "" {
		return fmt.Errorf("agent thread/start returned no thread id")
	}

	if err := writeLine(rw, message{
		ID:     &id2,
		Method: "turn/start",
		Params: mustJSON(map[string]any{
			"threadId": threadResult.Thread.ID,
			"input": []map[string]any{
				{"type": "text", "text": req.Prompt},
			},
		}),
	}); err != nil {
		return err
	}

	return streamTurn(rw, out)
}

// streamTurn consumes notifications until the turn completes.
func streamTurn(r io.Reader, out *strings.Builder) error {
	for {
		msg, err := readMessage(r)
		if err != nil {
			return fmt.Errorf("agent stream: %w", err)
		}
		switch msg.Method {
		case "item/agentMessage/delta":
			var params struct {
				Delta string `json:"delta"`
			}
			if err := json.Unmarshal(msg.Params, &params); err == nil {
				out.WriteString(params.Delta)
			}
		case "turn/completed":
			var params struct {
				Turn struct {
					Status string `json:"status"`
					Error  struct {
						Message string `json:"message"`
					} `json:"error"`
				} `json:"turn"`
			}
			if err := json.Unmarshal(msg.Params, &params); err != nil {
				return fmt.Errorf("parse turn/completed: %w", err)
			}
			if params.Turn.Status == "failed" {
				if out.Len() > 0 {
					out.WriteString("\n")
				}
				msg := params.Turn.Error.Message
				if msg == "" {
					msg = "turn failed"
				}
				out.WriteString("[agent error] " + msg)
			}
			return nil
		default:
			// Other item notifications (tool calls, reasoning) are
			// progress detail the caller does not need.
			slog.Debug("agent notification", "method", msg.Method)
		}
	}
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
