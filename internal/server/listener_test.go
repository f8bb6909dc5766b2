package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/beesaferoot/diff-sync/internal/diffsync"
	"github.com/beesaferoot/diff-sync/internal/protocol"
	"github.com/beesaferoot/diff-sync/internal/store"
	"github.com/beesaferoot/diff-sync/internal/transport"
)

func startTestListener(t *testing.T) (addr string, stop func()) {
	addr, _, stop = startTestListenerWithHandle(t)
	return addr, stop
}

func startTestListenerWithHandle(t *testing.T) (addr string, l *Listener, stop func()) {
	t.Helper()
	srv := New(store.NewMemoryStore(), "main", nil, nil)
	cfg := DefaultListenerConfig("127.0.0.1:0")
	cfg.StaleSweepInterval = 50 * time.Millisecond
	cfg.StaleTimeout = time.Hour
	cfg.StatusReportInterval = 0
	cfg.ReadDeadline = time.Second

	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	l = NewListener(srv, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go l.Serve(ctx, ln)

	return ln.Addr().String(), l, func() {
		cancel()
		ln.Close()
	}
}

func dialAndConnect(t *testing.T, addr, clientID string) *transport.Conn {
	t.Helper()
	raw, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := transport.New(raw, transport.DefaultConfig())
	if err := conn.WriteMessage(protocol.NewConnect(clientID)); err != nil {
		t.Fatalf("write connect: %v", err)
	}
	env, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read connect_ok: %v", err)
	}
	if env.ConnectOk == nil {
		t.Fatalf("expected connect_ok, got %+v", env)
	}
	return conn
}

func TestListenerHandshakeAndEmptySyncRoundTrip(t *testing.T) {
	addr, stop := startTestListener(t)
	defer stop()

	conn := dialAndConnect(t, addr, "alice")
	defer conn.Close()

	edits := diffsync.EmptyEditList(store.DefaultDocumentContent)
	if err := conn.WriteMessage(protocol.NewClientSync("alice", edits, 0)); err != nil {
		t.Fatalf("write client_sync: %v", err)
	}
	env, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read server_sync: %v", err)
	}
	if env.ServerSync == nil {
		t.Fatalf("expected server_sync, got %+v", env)
	}
	if !env.ServerSync.Edits.IsEmpty() {
		t.Errorf("expected empty server edits on quiescent sync, got %v", env.ServerSync.Edits)
	}
}

func TestListenerRejectsDuplicateConnect(t *testing.T) {
	addr, stop := startTestListener(t)
	defer stop()

	conn := dialAndConnect(t, addr, "dup")
	defer conn.Close()

	raw, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer raw.Close()
	second := transport.New(raw, transport.DefaultConfig())
	if err := second.WriteMessage(protocol.NewConnect("dup")); err != nil {
		t.Fatalf("write second connect: %v", err)
	}
	env, err := second.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Error == nil {
		t.Fatalf("expected error for duplicate connect, got %+v", env)
	}
}

func TestSetStaleTimeoutIsPickedUpByNextSweep(t *testing.T) {
	addr, l, stop := startTestListenerWithHandle(t)
	defer stop()

	conn := dialAndConnect(t, addr, "alice")
	defer conn.Close()

	l.SetStaleTimeout(10 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(l.srv.ConnectedClients()) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("alice was not evicted after lowering stale timeout")
}

func TestListenerSurvivesMalformedMessage(t *testing.T) {
	addr, stop := startTestListener(t)
	defer stop()

	raw, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer raw.Close()
	conn := transport.New(raw, transport.DefaultConfig())

	if err := conn.WriteMessage(protocol.NewConnect("malformed")); err != nil {
		t.Fatalf("write connect: %v", err)
	}
	if _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read connect_ok: %v", err)
	}

	if _, err := raw.Write([]byte("{not json}\n")); err != nil {
		t.Fatalf("write malformed line: %v", err)
	}
	env, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read after malformed line: %v", err)
	}
	if env.Error == nil {
		t.Fatalf("expected an error reply, got %+v", env)
	}

	edits := diffsync.EmptyEditList(store.DefaultDocumentContent)
	if err := conn.WriteMessage(protocol.NewClientSync("malformed", edits, 0)); err != nil {
		t.Fatalf("write client_sync after malformed line: %v", err)
	}
	env, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read server_sync after malformed line: %v", err)
	}
	if env.ServerSync == nil {
		t.Fatalf("expected server_sync, connection should have survived, got %+v", env)
	}
}

func TestListenerPingPong(t *testing.T) {
	addr, stop := startTestListener(t)
	defer stop()

	conn := dialAndConnect(t, addr, "pinger")
	defer conn.Close()

	if err := conn.WriteMessage(protocol.NewPing()); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	env, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if env.Pong == nil {
		t.Fatalf("expected pong, got %+v", env)
	}
}
