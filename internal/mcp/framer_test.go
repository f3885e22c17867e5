package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLineDelimited(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	f := NewFramer(in, io.Discard)

	msg, err := f.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, string(msg))

	msg, err = f.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"method":"ping"}`, string(msg))

	_, err = f.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadHeaderFramed(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":7,"method":"ping"}`
	in := strings.NewReader(fmt.Sprintf("Content-Length: %d\r\n\r\n%s\r\n", len(body), body))
	f := NewFramer(in, io.Discard)

	msg, err := f.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, body, string(msg))
}

func TestReadHeaderCaseInsensitive(t *testing.T) {
	body := `{"id":1,"method":"ping"}`
	in := strings.NewReader(fmt.Sprintf("User-Agent: test\r\ncontent-length: %d\r\n\r\n%s", len(body), body))
	f := NewFramer(in, io.Discard)

	msg, err := f.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, body, string(msg))
}

func TestReadHeaderMissingLength(t *testing.T) {
	in := strings.NewReader("User-Agent: test\r\n\r\nbody")
	f := NewFramer(in, io.Discard)

	_, err := f.ReadMessage()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Content-Length")
}

func TestReadOversizeBodyKeepsStreamUsable(t *testing.T) {
	big := strings.Repeat("x", maxBodyBytes+1)
	next := `{"id":1,"method":"ping"}`
	in := strings.NewReader(fmt.Sprintf("Content-Length: %d\r\n\r\n%s\r\nContent-Length: %d\r\n\r\n%s",
		len(big), big, len(next), next))
	f := NewFramer(in, io.Discard)

	_, err := f.ReadMessage()
	assert.ErrorIs(t, err, ErrOversizeBody)

	msg, err := f.ReadMessage()
	require.NoError(t, err, "stream resynchronizes after the oversize frame")
	assert.JSONEq(t, next, string(msg))
}

func TestWriteFollowsObservedFraming(t *testing.T) {
	t.Run("line mode", func(t *testing.T) {
		var out bytes.Buffer
		f := NewFramer(strings.NewReader(`{"id":1,"method":"ping"}`+"\n"), &out)
		_, err := f.ReadMessage()
		require.NoError(t, err)

		require.NoError(t, f.WriteMessage([]byte(`{"id":1,"result":{}}`)))
		assert.Equal(t, `{"id":1,"result":{}}`+"\n", out.String())
	})

	t.Run("header mode", func(t *testing.T) {
		var out bytes.Buffer
		body := `{"id":1,"method":"ping"}`
		f := NewFramer(strings.NewReader(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)), &out)
		_, err := f.ReadMessage()
		require.NoError(t, err)

		payload := `{"id":1,"result":{}}`
		require.NoError(t, f.WriteMessage([]byte(payload)))
		assert.Equal(t, fmt.Sprintf("Content-Length: %d\r\n\r\n%s\r\n", len(payload), payload), out.String())
	})
}

func TestWriteStripsEmbeddedNewlines(t *testing.T) {
	var out bytes.Buffer
	f := NewFramer(strings.NewReader(""), &out)

	require.NoError(t, f.WriteMessage([]byte("{\"a\":\n 1}")))
	assert.Equal(t, "{\"a\": 1}\n", out.String())
}

func TestFramingRoundTrip(t *testing.T) {
	// Every outbound reply, re-read by the framer, must parse back to
	// the JSON it was built from.
	original := map[string]any{
		"jsonrpc": "2.0",
		"id":      float64(9),
		"result":  map[string]any{"tools": []any{}},
	}
	payload, err := json.Marshal(original)
	require.NoError(t, err)

	for _, prime := range []string{
		`{"id":0,"method":"ping"}` + "\n",
		fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(`{"id":0,"method":"ping"}`), `{"id":0,"method":"ping"}`),
	} {
		var wire bytes.Buffer
		writer := NewFramer(strings.NewReader(prime), &wire)
		_, err := writer.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, writer.WriteMessage(payload))

		reader := NewFramer(bytes.NewReader(wire.Bytes()), io.Discard)
		got, err := reader.ReadMessage()
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(got, &decoded))
		assert.Equal(t, original, decoded)
	}
}

func TestStaticInternalErrorIsValidJSON(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(staticInternalError), &decoded))
	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, float64(CodeInternalError), errObj["code"])
}
