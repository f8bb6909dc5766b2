package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beesaferoot/diff-sync/internal/protocol"
	"github.com/beesaferoot/diff-sync/internal/ratelimit"
	"github.com/beesaferoot/diff-sync/internal/transport"
)

// ListenerConfig controls the accept loop and its background timers.
type ListenerConfig struct {
	Address              string
	Transport            transport.Config
	StaleSweepInterval   time.Duration
	StaleTimeout         time.Duration
	StatusReportInterval time.Duration
	ReadDeadline         time.Duration
}

// DefaultListenerConfig matches the sync protocol's timer model:
// 30s stale-sweep with a 120s staleness window, 10s status reports,
// and a 60s read deadline so a quiet connection is polled rather than
// treated as dead.
func DefaultListenerConfig(address string) ListenerConfig {
	return ListenerConfig{
		Address:              address,
		Transport:            transport.DefaultConfig(),
		StaleSweepInterval:   30 * time.Second,
		StaleTimeout:         DefaultStaleTimeout,
		StatusReportInterval: 10 * time.Second,
		ReadDeadline:         60 * time.Second,
	}
}

// Listener accepts TCP connections and dispatches each to its own
// connection handler, while a pair of background goroutines run the
// server's stale-sweep and status-report timers. Structurally this
// plays the role karoo's Proxy.AcceptLoop/ReportLoop pair does.
type Listener struct {
	srv     *Server
	cfg     ListenerConfig
	limiter *ratelimit.Limiter

	// staleTimeout is read by staleSweepLoop on every tick and may be
	// updated live via SetStaleTimeout, so a config hot-reload can
	// widen or tighten the liveness window without restarting the
	// listener (the sweep interval itself, bound into the ticker, is
	// not live-reloadable).
	staleTimeout atomic.Int64
}

// NewListener builds a Listener over srv. limiter may be nil to
// disable per-client sync throttling.
func NewListener(srv *Server, cfg ListenerConfig, limiter *ratelimit.Limiter) *Listener {
	l := &Listener{srv: srv, cfg: cfg, limiter: limiter}
	l.staleTimeout.Store(int64(cfg.StaleTimeout))
	return l
}

// SetStaleTimeout updates the staleness window the next sweep tick
// will use.
func (l *Listener) SetStaleTimeout(d time.Duration) {
	l.staleTimeout.Store(int64(d))
	l.srv.log.Info("stale timeout updated to %s", d)
}

// Run binds cfg.Address and serves until ctx is canceled. It returns
// nil on a clean shutdown.
func (l *Listener) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.cfg.Address)
	if err != nil {
		return err
	}
	return l.Serve(ctx, ln)
}

// Serve runs the accept loop and background timers over an
// already-bound listener until ctx is canceled. Exposed separately
// from Run so callers (and tests) can bind an ephemeral port
// themselves and learn its address before serving.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	l.srv.log.Info("diffsync server listening on %s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		l.staleSweepLoop(gctx)
		return nil
	})
	g.Go(func() error {
		l.statusReportLoop(gctx)
		return nil
	})
	g.Go(func() error {
		return l.acceptLoop(gctx, ln)
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.srv.log.Error("accept error: %v", err)
			continue
		}
		go l.handleConn(ctx, conn)
	}
}

func (l *Listener) handleConn(ctx context.Context, raw net.Conn) {
	conn := transport.New(raw, l.cfg.Transport)
	defer conn.Close()

	clientID, err := l.awaitConnect(conn)
	if err != nil {
		l.srv.log.Error("connect handshake with %s failed: %v", conn.Addr(), err)
		return
	}
	defer func() {
		l.srv.DisconnectClient(clientID)
		if l.limiter != nil {
			l.limiter.Forget(clientID)
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadDeadline))
		env, err := conn.ReadMessage()
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if protocol.IsProtocolError(err) {
				l.srv.log.Error("protocol error from %s: %v", conn.Addr(), err)
				_ = conn.WriteMessage(protocol.NewError(err.Error()))
				continue
			}
			return
		}
		if !l.dispatch(conn, clientID, env) {
			return
		}
	}
}

// awaitConnect blocks for the handshake Connect message and replies
// with ConnectOk or Error, returning the negotiated client ID.
func (l *Listener) awaitConnect(conn *transport.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(l.cfg.ReadDeadline))
	env, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	if env.Connect == nil {
		_ = conn.WriteMessage(protocol.NewError("expected connect message"))
		return "", errors.New("server: expected connect message")
	}

	doc, err := l.srv.ConnectClient(env.Connect.ClientID)
	if err != nil {
		_ = conn.WriteMessage(protocol.NewError(err.Error()))
		return "", err
	}
	if err := conn.WriteMessage(protocol.NewConnectOk(l.srv.Version(), doc)); err != nil {
		return "", err
	}
	return env.Connect.ClientID, nil
}

// dispatch handles one decoded message and reports whether the
// connection should stay open.
func (l *Listener) dispatch(conn *transport.Conn, clientID string, env protocol.Envelope) bool {
	switch {
	case env.ClientSync != nil:
		if l.limiter != nil && !l.limiter.Allow(clientID) {
			_ = conn.WriteMessage(protocol.NewError("sync rate limit exceeded"))
			return true
		}
		serverEdits, err := l.srv.SyncWithClient(clientID, env.ClientSync.Edits)
		if err != nil {
			_ = conn.WriteMessage(protocol.NewError(err.Error()))
			return true
		}
		_ = conn.WriteMessage(protocol.NewServerSync(serverEdits, l.srv.Version()))
		return true

	case env.Ping != nil:
		l.srv.mu.Lock()
		if session, ok := l.srv.sessions[clientID]; ok {
			session.touch()
		}
		l.srv.mu.Unlock()
		_ = conn.WriteMessage(protocol.NewPong())
		return true

	case env.Disconnect != nil:
		return false

	case env.Connect != nil:
		_ = conn.WriteMessage(protocol.NewError("already connected"))
		return true

	default:
		return true
	}
}

func (l *Listener) staleSweepLoop(ctx context.Context) {
	if l.cfg.StaleSweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(l.cfg.StaleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			timeout := time.Duration(l.staleTimeout.Load())
			if n := l.srv.CleanupStaleClients(timeout); n > 0 {
				l.srv.log.Info("stale sweep evicted %d client(s)", n)
			}
		}
	}
}

func (l *Listener) statusReportLoop(ctx context.Context) {
	if l.cfg.StatusReportInterval <= 0 {
		return
	}
	ticker := time.NewTicker(l.cfg.StatusReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			clients := l.srv.ConnectedClients()
			l.srv.log.Info("status: %d client(s) connected, server version %d", len(clients), l.srv.Version())
		}
	}
}
