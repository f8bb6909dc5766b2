package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/beesaferoot/diff-sync/pkg/errors"
)

// Codec reads and writes newline-delimited JSON messages over a
// bufio.Reader/Writer pair, mirroring the way karoo's connection
// package wraps a net.Conn for line-oriented protocols.
type Codec struct {
	r *bufio.Reader
	w *bufio.Writer
}

// NewCodec wraps an existing bufio.Reader/Writer pair.
func NewCodec(r *bufio.Reader, w *bufio.Writer) *Codec {
	return &Codec{r: r, w: w}
}

// ReadMessage blocks for one line, skipping blank lines, and decodes it
// into an Envelope.
func (c *Codec) ReadMessage() (Envelope, error) {
	for {
		line, err := c.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return Envelope{}, err
		}
		trimmed := trimLine(line)
		if len(trimmed) == 0 {
			if err != nil {
				return Envelope{}, err
			}
			continue
		}
		env, decodeErr := Decode(trimmed)
		if decodeErr != nil {
			return Envelope{}, apperrors.Wrap(apperrors.CodeProtocol, "decode message", decodeErr)
		}
		return env, err
	}
}

// IsProtocolError reports whether err came from a malformed or unrecognized
// message rather than a transport/I/O failure. Callers that see a protocol
// error should surface an Error message and keep reading; any other error
// means the connection itself is no longer usable.
func IsProtocolError(err error) bool {
	var appErr *apperrors.AppError
	return err != nil && errors.As(err, &appErr) && appErr.Code == apperrors.CodeProtocol
}

// WriteMessage marshals msg to JSON, appends a trailing newline, and
// flushes it to the underlying writer.
func (c *Codec) WriteMessage(msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("protocol: encode: %w", err)
	}
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return err
	}
	return c.w.Flush()
}

func trimLine(line []byte) []byte {
	start, end := 0, len(line)
	for start < end && isSpace(line[start]) {
		start++
	}
	for end > start && isSpace(line[end-1]) {
		end--
	}
	return line[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}
