package mcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxBodyBytes is the hard ceiling for a header-framed body.
const maxBodyBytes = 1 << 20

// ErrOversizeBody marks a header-framed message whose declared body
// exceeds the ceiling. The body is consumed so the stream stays in
// sync and the loop can keep serving.
var ErrOversizeBody = errors.New("framed body exceeds 1 MiB limit")

// frameMode is the sticky write framing, chosen by the first inbound
// message.
type frameMode int

const (
	modeUnknown frameMode = iota
	modeLine
	modeHeader
)

// staticInternalError is pre-encoded so a reply can always be sent
// even when encoding the real one fails.
const staticInternalError = `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`

// Framer reads and writes JSON-RPC messages over a byte stream,
// accepting either line-delimited JSON or Content-Length framed
// messages and answering in kind.
type Framer struct {
	r    *bufio.Reader
	w    io.Writer
	mode frameMode
}

// NewFramer wraps the connection's read and write halves.
func NewFramer(r io.Reader, w io.Writer) *Framer {
	return &Framer{r: bufio.NewReaderSize(r, 64*1024), w: w}
}

// ReadMessage returns the next message payload. The first message
// chooses the connection's framing: a first non-blank character of
// '{' or '[' means one JSON document per line, anything else starts a
// header block. The choice is sticky for both directions.
func (f *Framer) ReadMessage() ([]byte, error) {
	line, err := f.readNonBlankLine()
	if err != nil {
		return nil, err
	}

	if f.mode == modeUnknown {
		trimmed := strings.TrimSpace(line)
		if trimmed[0] == '{' || trimmed[0] == '[' {
			f.mode = modeLine
		} else {
			f.mode = modeHeader
		}
	}

	if f.mode == modeLine {
		return []byte(strings.TrimSpace(line)), nil
	}
	return f.readHeaderFramed(line)
}

// readNonBlankLine skips blank lines (including the CRLF tail of a
// previous header frame) and returns the first line with content.
func (f *Framer) readNonBlankLine() (string, error) {
	for {
		line, err := f.r.ReadString('\n')
		if len(line) == 0 && err != nil {
			return "", err
		}
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// readHeaderFramed consumes the remaining header lines and the body.
// firstLine is the header line ReadMessage already took.
func (f *Framer) readHeaderFramed(firstLine string) ([]byte, error) {
	contentLength := -1

	line := firstLine
	for {
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		name, value, ok := strings.Cut(trimmed, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("bad Content-Length %q", strings.TrimSpace(value))
			}
			contentLength = n
		}
		var err error
		line, err = f.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
	}

	if contentLength < 0 {
		return nil, errors.New("header frame missing Content-Length")
	}
	if contentLength > maxBodyBytes {
		// Drain the declared body so the next read starts at a frame
		// boundary.
		if _, err := io.CopyN(io.Discard, f.r, int64(contentLength)); err != nil {
			return nil, err
		}
		return nil, ErrOversizeBody
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// WriteMessage emits one payload in the framing observed so far.
// Before any inbound message, line framing is used.
func (f *Framer) WriteMessage(payload []byte) error {
	switch f.mode {
	case modeHeader:
		if _, err := fmt.Fprintf(f.w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
			return err
		}
		if _, err := f.w.Write(payload); err != nil {
			return err
		}
		_, err := io.WriteString(f.w, "\r\n")
		return err
	default:
		// Embedded newlines would end the frame early; the payload is
		// a single JSON document, so stripping them cannot change its
		// meaning outside string literals, which encoding/json never
		// emits with raw newlines.
		cleaned := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, string(payload))
		_, err := io.WriteString(f.w, cleaned+"\n")
		return err
	}
}

// WriteStaticInternalError sends the canned -32603 reply used when
// building a real reply failed.
func (f *Framer) WriteStaticInternalError() {
	_ = f.WriteMessage([]byte(staticInternalError))
}
