// Package protocol defines the wire messages exchanged between a
// diffsync client and server, and the line-framed JSON codec that puts
// them on the network.
package protocol

import "github.com/beesaferoot/diff-sync/internal/diffsync"

// Message type discriminators, carried in every message's Type field.
const (
	TypeConnect    = "connect"
	TypeConnectOk  = "connect_ok"
	TypeClientSync = "client_sync"
	TypeServerSync = "server_sync"
	TypeDisconnect = "disconnect"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// Connect is sent by a client wanting to join the shared document.
type Connect struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

func NewConnect(clientID string) Connect {
	return Connect{Type: TypeConnect, ClientID: clientID}
}

// ConnectOk confirms a connection and hands back the current document
// so the client can seed its engine before syncing.
type ConnectOk struct {
	Type          string            `json:"type"`
	ServerVersion uint64            `json:"server_version"`
	Document      diffsync.Document `json:"document"`
}

func NewConnectOk(serverVersion uint64, doc diffsync.Document) ConnectOk {
	return ConnectOk{Type: TypeConnectOk, ServerVersion: serverVersion, Document: doc}
}

// ClientSync carries a client's locally-produced edits up to the server.
type ClientSync struct {
	Type          string            `json:"type"`
	ClientID      string            `json:"client_id"`
	Edits         diffsync.EditList `json:"edits"`
	ClientVersion uint64            `json:"client_version"`
}

func NewClientSync(clientID string, edits diffsync.EditList, clientVersion uint64) ClientSync {
	return ClientSync{Type: TypeClientSync, ClientID: clientID, Edits: edits, ClientVersion: clientVersion}
}

// ServerSync carries the server's reconciled edits back down to a client.
type ServerSync struct {
	Type          string            `json:"type"`
	Edits         diffsync.EditList `json:"edits"`
	ServerVersion uint64            `json:"server_version"`
}

func NewServerSync(edits diffsync.EditList, serverVersion uint64) ServerSync {
	return ServerSync{Type: TypeServerSync, Edits: edits, ServerVersion: serverVersion}
}

// Disconnect announces a client is leaving voluntarily.
type Disconnect struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

func NewDisconnect(clientID string) Disconnect {
	return Disconnect{Type: TypeDisconnect, ClientID: clientID}
}

// Ping/Pong are the heartbeat pair exchanged to keep a connection's
// last-seen timestamp fresh and detect dead peers before the OS does.
type Ping struct {
	Type string `json:"type"`
}

func NewPing() Ping { return Ping{Type: TypePing} }

type Pong struct {
	Type string `json:"type"`
}

func NewPong() Pong { return Pong{Type: TypePong} }

// Error reports a protocol-level or application-level failure.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}
