package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHandler serves two tools and records calls.
type stubHandler struct {
	calls []string
}

func (h *stubHandler) Tools() []Tool {
	return []Tool{
		{Name: "echo", Description: "echoes its input", InputSchema: json.RawMessage(`{"type":"object"}`)},
		{Name: "boom", Description: "always fails", InputSchema: json.RawMessage(`{"type":"object"}`)},
	}
}

func (h *stubHandler) Call(ctx context.Context, name string, params, args map[string]any) (string, error) {
	h.calls = append(h.calls, name)
	switch name {
	case "echo":
		data, _ := json.Marshal(args)
		return string(data), nil
	case "boom":
		return `{"error":"it broke"}`, nil
	default:
		return "", InvalidParams("unknown tool %q", name)
	}
}

// serve feeds newline-delimited messages through a server and returns
// the parsed replies in order.
func serve(t *testing.T, handler Handler, onReady func(context.Context), lines ...string) []map[string]any {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")

	srv := NewServer(in, &out, handler, ServerInfo{Name: "gitcrew", Version: "test"}, onReady)
	require.NoError(t, srv.Serve(context.Background()))

	var replies []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var reply map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &reply), "reply line %q", line)
		replies = append(replies, reply)
	}
	return replies
}

func TestHandshake(t *testing.T) {
	warmups := 0
	replies := serve(t, &stubHandler{}, func(context.Context) { warmups++ },
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	)

	require.Len(t, replies, 1, "notification produces no reply")
	reply := replies[0]
	assert.Equal(t, float64(1), reply["id"])

	result := reply["result"].(map[string]any)
	assert.Equal(t, "2024-11-05", result["protocolVersion"])
	tools := result["capabilities"].(map[string]any)["tools"].(map[string]any)
	assert.Equal(t, false, tools["listChanged"])
	assert.Equal(t, "gitcrew", result["serverInfo"].(map[string]any)["name"])

	assert.Equal(t, 1, warmups, "initialized notification triggers warmup")
}

func TestInitializeNegotiatesNewerVersion(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil,
		`{"id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`,
	)
	result := replies[0]["result"].(map[string]any)
	assert.Equal(t, "2025-03-26", result["protocolVersion"])
}

func TestWarmupFiresOnceEvenWithoutInitialized(t *testing.T) {
	warmups := 0
	serve(t, &stubHandler{}, func(context.Context) { warmups++ },
		`{"id":1,"method":"initialize","params":{}}`,
		`{"id":2,"method":"tools/list"}`,
		`{"id":3,"method":"tools/list"}`,
	)
	assert.Equal(t, 1, warmups, "first post-initialize message implies ready")
}

func TestToolsList(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	)

	require.Len(t, replies, 1)
	assert.Equal(t, float64(2), replies[0]["id"])
	tools := replies[0]["result"].(map[string]any)["tools"].([]any)
	require.NotEmpty(t, tools)
	for _, raw := range tools {
		tool := raw.(map[string]any)
		assert.NotEmpty(t, tool["name"])
		assert.NotEmpty(t, tool["description"])
		assert.NotNil(t, tool["inputSchema"])
	}
}

func TestToolCallEnvelope(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil,
		`{"id":3,"method":"tools/call","params":{"name":"echo","arguments":{"x":1}}}`,
	)

	require.Len(t, replies, 1)
	result := replies[0]["result"].(map[string]any)
	assert.Equal(t, false, result["isError"])
	content := result["content"].([]any)
	require.Len(t, content, 1)
	first := content[0].(map[string]any)
	assert.Equal(t, "text", first["type"])
	assert.JSONEq(t, `{"x":1}`, first["text"].(string))
}

func TestToolCallErrorIsolation(t *testing.T) {
	handler := &stubHandler{}
	replies := serve(t, handler, nil,
		`{"id":1,"method":"tools/call","params":{"name":"echo","arguments":42}}`,
		`{"id":2,"method":"tools/call","params":{"name":"echo","arguments":{"ok":true}}}`,
	)

	require.Len(t, replies, 2)
	errObj := replies[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])

	_, hasResult := replies[1]["result"]
	assert.True(t, hasResult, "next valid call still succeeds")
	assert.Equal(t, []string{"echo"}, handler.calls, "invalid call never reaches the handler")
}

func TestHandlerErrorStaysInEnvelope(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil,
		`{"id":1,"method":"tools/call","params":{"name":"boom","arguments":{}}}`,
	)

	result := replies[0]["result"].(map[string]any)
	text := result["content"].([]any)[0].(map[string]any)["text"].(string)
	assert.JSONEq(t, `{"error":"it broke"}`, text)
}

func TestPing(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil, `{"id":9,"method":"ping"}`)
	require.Len(t, replies, 1)
	assert.Equal(t, map[string]any{}, replies[0]["result"])
}

func TestUnknownMethod(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil,
		`{"id":4,"method":"resources/list"}`,
		`{"method":"resources/ping"}`,
		`{"id":5,"method":"ping"}`,
	)

	require.Len(t, replies, 2, "unknown notification is silently ignored")
	errObj := replies[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObj["code"])
	assert.Equal(t, float64(5), replies[1]["id"])
}

func TestParseErrorResilience(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil,
		`{this is not json`,
		`{"id":6,"method":"ping"}`,
	)

	require.Len(t, replies, 2)
	assert.Nil(t, replies[0]["id"], "parse error replies with null id")
	errObj := replies[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeParseError), errObj["code"])
	assert.Equal(t, float64(6), replies[1]["id"])
}

func TestNonObjectRoot(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil,
		`[1,2,3]`,
		`"hello"`,
	)
	require.Len(t, replies, 2)
	for _, r := range replies {
		errObj := r["error"].(map[string]any)
		assert.Equal(t, float64(CodeInvalidRequest), errObj["code"])
	}
}

func TestRepliesPreserveRequestOrder(t *testing.T) {
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, fmt.Sprintf(`{"id":%d,"method":"ping"}`, i))
	}
	replies := serve(t, &stubHandler{}, nil, lines...)

	require.Len(t, replies, 10)
	for i, r := range replies {
		assert.Equal(t, float64(i+1), r["id"])
	}
}

func TestStringIDEchoedVerbatim(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil, `{"id":"req-abc","method":"ping"}`)
	require.Len(t, replies, 1)
	assert.Equal(t, "req-abc", replies[0]["id"])
}

func TestHeaderFramedSessionSticksForWrites(t *testing.T) {
	body := `{"id":1,"method":"initialize","params":{}}`
	var out bytes.Buffer
	in := strings.NewReader(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))

	srv := NewServer(in, &out, &stubHandler{}, ServerInfo{Name: "gitcrew", Version: "test"}, nil)
	require.NoError(t, srv.Serve(context.Background()))

	assert.True(t, strings.HasPrefix(out.String(), "Content-Length: "),
		"replies use header framing after a header-framed request")
}

func TestToolCallMissingName(t *testing.T) {
	replies := serve(t, &stubHandler{}, nil,
		`{"id":1,"method":"tools/call","params":{"arguments":{}}}`,
	)
	errObj := replies[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidParams), errObj["code"])
}
