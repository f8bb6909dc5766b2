package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/beesaferoot/diff-sync/internal/diffsync"
)

func TestCodecRoundTripEachMessageType(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	enc := NewCodec(nil, w)

	doc := diffsync.NewDocument("hello")
	edits := diffsync.Diff("hello", "hello world")

	messages := []any{
		NewConnect("client-1"),
		NewConnectOk(3, doc),
		NewClientSync("client-1", edits, 1),
		NewServerSync(edits, 4),
		NewDisconnect("client-1"),
		NewPing(),
		NewPong(),
		NewError("boom"),
	}
	for _, msg := range messages {
		if err := enc.WriteMessage(msg); err != nil {
			t.Fatalf("write %T: %v", msg, err)
		}
	}

	dec := NewCodec(bufio.NewReader(&buf), nil)
	for i, want := range messages {
		env, err := dec.ReadMessage()
		if err != nil {
			t.Fatalf("read message %d: %v", i, err)
		}
		switch want.(type) {
		case Connect:
			if env.Connect == nil || env.Connect.ClientID != "client-1" {
				t.Errorf("message %d: expected Connect, got %+v", i, env)
			}
		case ConnectOk:
			if env.ConnectOk == nil || env.ConnectOk.ServerVersion != 3 {
				t.Errorf("message %d: expected ConnectOk, got %+v", i, env)
			}
		case ClientSync:
			if env.ClientSync == nil || env.ClientSync.ClientID != "client-1" {
				t.Errorf("message %d: expected ClientSync, got %+v", i, env)
			}
		case ServerSync:
			if env.ServerSync == nil || env.ServerSync.ServerVersion != 4 {
				t.Errorf("message %d: expected ServerSync, got %+v", i, env)
			}
		case Disconnect:
			if env.Disconnect == nil {
				t.Errorf("message %d: expected Disconnect, got %+v", i, env)
			}
		case Ping:
			if env.Ping == nil {
				t.Errorf("message %d: expected Ping, got %+v", i, env)
			}
		case Pong:
			if env.Pong == nil {
				t.Errorf("message %d: expected Pong, got %+v", i, env)
			}
		case Error:
			if env.Error == nil || env.Error.Message != "boom" {
				t.Errorf("message %d: expected Error, got %+v", i, env)
			}
		}
	}
}

func TestCodecSkipsBlankLines(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\n\n")
	buf.WriteString(`{"type":"ping"}` + "\n")

	dec := NewCodec(bufio.NewReader(&buf), nil)
	env, err := dec.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Ping == nil {
		t.Errorf("expected Ping, got %+v", env)
	}
}

func TestDecodeUnknownTypeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"bogus"}`))
	if err == nil {
		t.Fatal("expected an error for unknown message type")
	}
	if _, ok := err.(*UnknownTypeError); !ok {
		t.Errorf("expected *UnknownTypeError, got %T", err)
	}
}

func TestReadMessageFlagsMalformedLineAsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("{not json}\n")

	dec := NewCodec(bufio.NewReader(&buf), nil)
	_, err := dec.ReadMessage()
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	if !IsProtocolError(err) {
		t.Errorf("expected a protocol error, got %T: %v", err, err)
	}
}

func TestReadMessageFlagsUnknownTypeAsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"bogus"}` + "\n")

	dec := NewCodec(bufio.NewReader(&buf), nil)
	_, err := dec.ReadMessage()
	if err == nil {
		t.Fatal("expected an error for unknown message type")
	}
	if !IsProtocolError(err) {
		t.Errorf("expected a protocol error, got %T: %v", err, err)
	}
}

func TestIsProtocolErrorFalseForOtherErrors(t *testing.T) {
	if IsProtocolError(nil) {
		t.Error("nil should not be a protocol error")
	}
	if IsProtocolError(errors.New("boom")) {
		t.Error("a plain error should not be a protocol error")
	}
}
