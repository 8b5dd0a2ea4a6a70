package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/apmas/apmas/internal/apmaserr"
)

// frameTerminator ends each header line, in HTTP's CRLF style; a second
// one right after the last header forms the blank line that separates
// the headers from the body.
const frameTerminator = "\r\n"

// reader frames incoming JSON-RPC messages off r: read headers
// byte-by-byte until the CRLFCRLF boundary, then read exactly
// Content-Length body bytes. Reads go through one bufio.Reader kept for
// the reader's lifetime, so bytes of a following frame that it buffers
// ahead stay available to the next ReadMessage.
type reader struct {
	br *bufio.Reader
}

func newReader(r io.Reader) *reader {
	return &reader{br: bufio.NewReader(r)}
}

// ReadMessage returns the next frame's raw JSON body, or an error
// (including io.EOF) that the caller must treat as connection-ending —
// per spec §4.6, malformed framing drops the message and closes.
func (rd *reader) ReadMessage() ([]byte, error) {
	headers := make(map[string]string)
	for {
		line, err := rd.readHeaderLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, apmaserr.Validation("malformed header line %q", line)
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	lengthStr, ok := headers["content-length"]
	if !ok {
		return nil, apmaserr.Validation("missing Content-Length header")
	}
	length, err := strconv.Atoi(lengthStr)
	if err != nil || length < 0 {
		return nil, apmaserr.Validation("invalid Content-Length %q", lengthStr)
	}

	contentType := headers["content-type"]
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		return nil, apmaserr.Validation("unsupported Content-Type %q", contentType)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(rd.br, body); err != nil {
		return nil, apmaserr.Validation("short read of %d-byte frame body: %v", length, err)
	}
	return body, nil
}

// readHeaderLine reads one CRLF-terminated header line, byte-by-byte, and
// strips the trailing CRLF. An empty return signals the blank line that
// terminates the header block.
func (rd *reader) readHeaderLine() (string, error) {
	var line []byte
	for {
		b, err := rd.br.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			break
		}
		line = append(line, b)
	}
	return strings.TrimRight(string(line), "\r"), nil
}

// writer serializes outgoing frames so concurrent dispatch goroutines
// never interleave partial writes (spec §4.6's "serialized by a
// transport-level lock").
type writer struct {
	mu sync.Mutex
	w  io.Writer
}

func newWriter(w io.Writer) *writer {
	return &writer{w: w}
}

func (wr *writer) WriteMessage(v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return apmaserr.Wrap(apmaserr.KindProtocolError, "marshal frame", err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d%sContent-Type: application/json%s%s",
		len(body), frameTerminator, frameTerminator, frameTerminator)
	if _, err := io.WriteString(wr.w, header); err != nil {
		return apmaserr.Wrap(apmaserr.KindTransportError, "write frame header", err)
	}
	if _, err := wr.w.Write(body); err != nil {
		return apmaserr.Wrap(apmaserr.KindTransportError, "write frame body", err)
	}
	return nil
}
