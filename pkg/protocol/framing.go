// Package protocol implements a raw TCP wire protocol, one request per
// connection, framed by a literal terminator rather than a length prefix.
// Grounded on the reference coordinator's receive/send and handle_client.
package protocol

import (
	"bytes"
	"fmt"
	"net"

	"github.com/daniel-olson-code/pipeline/pkg/types"
)

// Terminator ends every frame on the wire, request and response alike.
const Terminator = "[-_-]"

// Separator splits a request frame's method from its payload.
const Separator = "|-**-|"

// readBufSize is the per-recv chunk size used while accumulating a frame.
const readBufSize = 4096

// ReadFrame reads from conn until the accumulated bytes end with
// Terminator, then returns everything before it. Mirrors the reference
// implementation's receive(conn): no length prefix, just scan-until-suffix.
func ReadFrame(conn net.Conn) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readBufSize)
	term := []byte(Terminator)

	for {
		if buf.Len() >= len(term) && bytes.HasSuffix(buf.Bytes(), term) {
			return buf.Bytes()[:buf.Len()-len(term)], nil
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
	}
}

// WriteFrame writes data followed by Terminator.
func WriteFrame(conn net.Conn, data []byte) error {
	_, err := conn.Write(append(data, []byte(Terminator)...))
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// SplitMethod splits a request frame on Separator into method and payload.
// Returns types.ErrProtocolMalformed-wrapping error if the separator is
// absent.
func SplitMethod(frame []byte) (method string, payload []byte, err error) {
	idx := bytes.Index(frame, []byte(Separator))
	if idx < 0 {
		return "", nil, fmt.Errorf("split method: %w", types.ErrProtocolMalformed)
	}
	return string(frame[:idx]), frame[idx+len(Separator):], nil
}
