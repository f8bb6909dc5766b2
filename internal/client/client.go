// Package client is the collaborative editing client: it dials the
// server, completes the connect handshake, and then runs a reader
// task and a periodic-sender task against one shared, mutex-protected
// SyncEngine, mirroring the two-task-per-connection model described
// for both sides of the wire protocol.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beesaferoot/diff-sync/internal/diffsync"
	"github.com/beesaferoot/diff-sync/internal/protocol"
	"github.com/beesaferoot/diff-sync/internal/transport"
	"github.com/beesaferoot/diff-sync/pkg/logger"
)

// Config controls connection and timer behavior.
type Config struct {
	ServerAddress string
	ClientID      string
	Transport     transport.Config
	SyncTick      time.Duration
	Heartbeat     time.Duration
	ReadDeadline  time.Duration
}

// DefaultConfig matches the protocol's 500ms sync tick and 30s
// heartbeat.
func DefaultConfig(serverAddress, clientID string) Config {
	return Config{
		ServerAddress: serverAddress,
		ClientID:      clientID,
		Transport:     transport.DefaultConfig(),
		SyncTick:      500 * time.Millisecond,
		Heartbeat:     30 * time.Second,
		ReadDeadline:  60 * time.Second,
	}
}

// Client owns one SyncEngine behind a mutex, shared by the reader
// task, the sync-tick task, and any interactive caller of Edit/Text.
type Client struct {
	cfg  Config
	conn *transport.Conn
	log  *logger.Logger

	mu     sync.Mutex
	engine *diffsync.Engine

	// OnServerVersion, if set, is called with the server's version
	// counter from every ServerSync message. The ConnectOk handshake
	// happens inside Connect, before this can be set, and does not call it.
	OnServerVersion func(uint64)
}

// Connect dials the server and performs the Connect/ConnectOk
// handshake, seeding the local engine from the document the server
// returns.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Default
	}
	raw, err := (&net.Dialer{}).DialContext(ctx, "tcp", cfg.ServerAddress)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", cfg.ServerAddress, err)
	}
	conn := transport.New(raw, cfg.Transport)

	if err := conn.WriteMessage(protocol.NewConnect(cfg.ClientID)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: send connect: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(cfg.ReadDeadline))
	env, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: await connect_ok: %w", err)
	}
	if env.Error != nil {
		conn.Close()
		return nil, fmt.Errorf("client: server rejected connect: %s", env.Error.Message)
	}
	if env.ConnectOk == nil {
		conn.Close()
		return nil, fmt.Errorf("client: expected connect_ok, got other message")
	}

	return &Client{
		cfg:    cfg,
		conn:   conn,
		log:    log,
		engine: diffsync.New(env.ConnectOk.Document.Content, cfg.ClientID),
	}, nil
}

// Text returns the client's current document content.
func (c *Client) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Text()
}

// Edit applies a local change, as if from user input.
func (c *Client) Edit(newContent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.Edit(newContent)
}

// Close sends a graceful Disconnect and closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(protocol.NewDisconnect(c.cfg.ClientID))
	return c.conn.Close()
}

// Run drives the reader and periodic-sender tasks until ctx is
// canceled or the connection fails. It returns the terminal error, or
// nil on a clean cancellation.
func (c *Client) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.syncTickLoop(gctx) })
	g.Go(func() error { return c.heartbeatLoop(gctx) })

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadDeadline))
		env, err := c.conn.ReadMessage()
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if protocol.IsProtocolError(err) {
				c.log.Error("protocol error from server: %v", err)
				continue
			}
			return fmt.Errorf("client: read: %w", err)
		}
		c.handleMessage(env)
	}
}

func (c *Client) handleMessage(env protocol.Envelope) {
	switch {
	case env.ServerSync != nil:
		c.mu.Lock()
		if err := c.engine.ApplyEdits(env.ServerSync.Edits); err != nil {
			c.log.Error("apply server edits: %v", err)
		}
		c.mu.Unlock()
		if c.OnServerVersion != nil {
			c.OnServerVersion(env.ServerSync.ServerVersion)
		}
	case env.Pong != nil:
		// liveness only
	case env.Error != nil:
		c.log.Error("server error: %s", env.Error.Message)
	}
}

func (c *Client) syncTickLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SyncTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.sendSync(); err != nil {
				return err
			}
		}
	}
}

func (c *Client) sendSync() error {
	c.mu.Lock()
	edits := c.engine.DiffAndUpdateShadow()
	c.mu.Unlock()

	return c.conn.WriteMessage(protocol.NewClientSync(c.cfg.ClientID, edits, 0))
}

func (c *Client) heartbeatLoop(ctx context.Context) error {
	if c.cfg.Heartbeat <= 0 {
		return nil
	}
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.conn.WriteMessage(protocol.NewPing()); err != nil {
				return err
			}
		}
	}
}
