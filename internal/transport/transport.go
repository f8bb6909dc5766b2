// Package transport wraps a net.Conn with buffered line-framed JSON
// I/O, the same shape karoo's internal/connection package wraps a
// Stratum connection: a bufio.Reader/Writer pair plus the peer's
// address, sized from configurable buffer limits.
package transport

import (
	"bufio"
	"net"
	"time"

	"github.com/beesaferoot/diff-sync/internal/protocol"
)

// Config sizes the buffered reader/writer. Matches karoo's
// Proxy.ReadBuf/WriteBuf naming.
type Config struct {
	ReadBufBytes  int
	WriteBufBytes int
}

// DefaultConfig uses generous buffers; sync payloads are small JSON
// lines, not the multi-kilobyte mining job broadcasts karoo handles.
func DefaultConfig() Config {
	return Config{ReadBufBytes: 16 * 1024, WriteBufBytes: 16 * 1024}
}

// Conn is one connection's line-framed codec plus its underlying
// net.Conn, so callers can still set deadlines or close it directly.
type Conn struct {
	raw   net.Conn
	codec *protocol.Codec
	addr  string
}

// New wraps conn for line-framed JSON messaging.
func New(conn net.Conn, cfg Config) *Conn {
	r := bufio.NewReaderSize(conn, cfg.ReadBufBytes)
	w := bufio.NewWriterSize(conn, cfg.WriteBufBytes)
	return &Conn{
		raw:   conn,
		codec: protocol.NewCodec(r, w),
		addr:  conn.RemoteAddr().String(),
	}
}

// Addr returns the remote peer's address.
func (c *Conn) Addr() string { return c.addr }

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.raw.Close() }

// SetReadDeadline proxies to the underlying net.Conn, used by read
// loops that want to distinguish "no message yet" from a dead peer.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.raw.SetReadDeadline(t)
}

// ReadMessage blocks for the next line-framed message.
func (c *Conn) ReadMessage() (protocol.Envelope, error) {
	return c.codec.ReadMessage()
}

// WriteMessage encodes and flushes msg as one line.
func (c *Conn) WriteMessage(msg any) error {
	return c.codec.WriteMessage(msg)
}

// IsTimeout reports whether err is a network timeout, the condition a
// read-deadline-based liveness loop should treat as "nothing to do"
// rather than a fatal connection error.
func IsTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
