package agent

import (
	"encoding/json"
	"fmt"
	"io"
)

// The agent speaks newline-delimited JSON-RPC without the "jsonrpc"
// envelope field. Requests carry integer ids; notifications carry
// none.
type message struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// maxLineBytes bounds one agent line. Agents embed whole file
// contents in deltas, so the ceiling is generous.
const maxLineBytes = 4 * 1024 * 1024

// readLine reads one newline-terminated line byte-at-a-time. The
// agent does not flush on message boundaries reliably enough for
// buffered reads to be safe: a bufio reader could swallow bytes of the
// next message into its buffer while this line's consumer still owns
// the stream.
func readLine(r io.Reader) ([]byte, error) {
	var line []byte
	one := make([]byte, 1)
	for {
		n, err := r.Read(one)
		if n > 0 {
			if one[0] == '\n' {
				return line, nil
			}
			line = append(line, one[0])
			if len(line) > maxLineBytes {
				return nil, fmt.Errorf("agent line exceeds %d bytes", maxLineBytes)
			}
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
	}
}

func writeLine(w io.Writer, msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode agent message: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write to agent: %w", err)
	}
	return nil
}

func readMessage(r io.Reader) (message, error) {
	for {
		line, err := readLine(r)
		if err != nil {
			return message{}, err
		}
		if len(line) == 0 {
			continue
		}
		var msg message
		if err := json.Unmarshal(line, &msg); err != nil {
			return message{}, fmt.Errorf("parse agent message: %w", err)
		}
		return msg, nil
	}
}

// awaitResponse reads messages until the response with the wanted id
// arrives, discarding interleaved notifications.
func awaitResponse(r io.Reader, id int64) (message, error) {
	for {
		msg, err := readMessage(r)
		if err != nil {
			return message{}, err
		}
		if msg.ID != nil && *msg.ID == id && msg.Method == "" {
			if msg.Error != nil {
				return message{}, fmt.Errorf("agent error %d: %s", msg.Error.Code, msg.Error.Message)
			}
			return msg, nil
		}
	}
}
