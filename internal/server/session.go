package server

import (
	"time"

	"github.com/beesaferoot/diff-sync/internal/diffsync"
)

// Session is a connected client's server-side bookkeeping: its diff-sync
// engine (advanced only by the reconciliation loop; its document tracks
// what the client was last sent, and its shadow moves only with the
// client's own edits) plus the timestamp used by the stale-client sweep.
type Session struct {
	ClientID string
	Engine   *diffsync.Engine
	LastSeen time.Time
}

// newSession builds a session whose engine starts seeded with the
// server's current authoritative content.
func newSession(clientID, content string) *Session {
	return &Session{
		ClientID: clientID,
		Engine:   diffsync.NewServerEngine(content, clientID),
		LastSeen: time.Now(),
	}
}

func (s *Session) touch() {
	s.LastSeen = time.Now()
}

func (s *Session) idleFor(now time.Time) time.Duration {
	return now.Sub(s.LastSeen)
}
