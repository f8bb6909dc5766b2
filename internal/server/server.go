// Package server implements the authoritative side of differential
// synchronization: it holds one ClientSession per connected client,
// reconciles each sync round against a persistent DocumentStore, and
// sweeps sessions that go quiet for too long.
package server

import (
	"sync"
	"time"

	"github.com/beesaferoot/diff-sync/internal/diffsync"
	"github.com/beesaferoot/diff-sync/internal/store"
	apperrors "github.com/beesaferoot/diff-sync/pkg/errors"
	"github.com/beesaferoot/diff-sync/pkg/logger"
	"github.com/beesaferoot/diff-sync/pkg/metrics"
)

// DefaultStaleTimeout matches the 120s liveness window from the sync
// protocol's timer model.
const DefaultStaleTimeout = 120 * time.Second

// Server is the single shared authority for one document. Every public
// method acquires the same mutex, making the load-then-commit sequence
// in SyncWithClient a critical section, same as a single rusqlite
// connection made it one in the reference implementation.
type Server struct {
	mu sync.Mutex

	store        store.DocumentStore
	documentName string
	sessions     map[string]*Session
	version      uint64

	metrics *metrics.Collector
	log     *logger.Logger
}

// New builds a Server backed by st, reconciling against the named
// document. mx and log may be nil: a nil log defaults to logger.Default,
// and a nil mx turns metrics recording off.
func New(st store.DocumentStore, documentName string, mx *metrics.Collector, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default
	}
	return &Server{
		store:        st,
		documentName: documentName,
		sessions:     make(map[string]*Session),
		metrics:      mx,
		log:          log,
	}
}

// ConnectClient registers a new session for clientID, seeded with the
// authoritative document's current content.
func (s *Server) ConnectClient(clientID string) (diffsync.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[clientID]; exists {
		return diffsync.Document{}, apperrors.New(apperrors.CodeDuplicateClient, "client "+clientID+" already connected")
	}

	doc, err := s.store.Load(s.documentName)
	if err != nil {
		return diffsync.Document{}, apperrors.Wrap(apperrors.CodeStore, "load document on connect", err)
	}

	s.sessions[clientID] = newSession(clientID, doc.Content)
	s.version++
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(len(s.sessions)))
	}
	s.log.Info("client %s connected (server version %d)", clientID, s.version)
	return doc, nil
}

// SyncWithClient runs one reconciliation round for clientID, following
// the fixed eight-step sequence: commit the client's edits (if any),
// advance its session shadow past them so they are never echoed back,
// then diff the session against the freshest authoritative content to
// find what other clients have contributed since this client last
// synced.
func (s *Server) SyncWithClient(clientID string, clientEdits diffsync.EditList) (diffsync.EditList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[clientID]
	if !ok {
		return diffsync.EditList{}, apperrors.New(apperrors.CodeUnknownClient, "client "+clientID+" not found")
	}

	doc, err := s.store.Load(s.documentName)
	if err != nil {
		return diffsync.EditList{}, apperrors.Wrap(apperrors.CodeStore, "load document on sync", err)
	}

	if !clientEdits.IsEmpty() {
		newContent, patchErr := diffsync.Patch(doc.Content, clientEdits)
		if patchErr != nil {
			if s.metrics != nil {
				s.metrics.SyncErrorsTotal.Inc()
			}
			return diffsync.EditList{}, apperrors.Wrap(apperrors.CodePatch, "patch client edits", patchErr)
		}

		doc, err = s.store.Update(s.documentName, newContent)
		if err != nil {
			if s.metrics != nil {
				s.metrics.SyncErrorsTotal.Inc()
			}
			return diffsync.EditList{}, apperrors.Wrap(apperrors.CodeStore, "commit client edits", err)
		}
		s.version++
		if s.metrics != nil {
			s.metrics.EditsAppliedTotal.Add(float64(clientEdits.Len()))
			s.metrics.DocumentVersion.Set(float64(doc.Version))
		}
		s.log.Info("client %s updated document (v%d)", clientID, doc.Version)
	}

	session.touch()

	if !clientEdits.IsEmpty() {
		if err := session.Engine.ApplyEdits(clientEdits); err != nil {
			if s.metrics != nil {
				s.metrics.SyncErrorsTotal.Inc()
			}
			return diffsync.EditList{}, apperrors.Wrap(apperrors.CodePatch, "apply client edits to session shadow", err)
		}
	}

	serverEdits := diffsync.Diff(session.Engine.Text(), doc.Content)

	if !serverEdits.IsEmpty() {
		session.Engine.Edit(doc.Content)
		s.log.Debug("sending %d edits to client %s", serverEdits.Len(), clientID)
	}

	if s.metrics != nil {
		s.metrics.SyncRoundsTotal.Inc()
	}
	return serverEdits, nil
}

// DisconnectClient removes a client's session. Idempotent.
func (s *Server) DisconnectClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[clientID]; !ok {
		return
	}
	delete(s.sessions, clientID)
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(len(s.sessions)))
	}
	s.log.Info("client %s disconnected", clientID)
}

// CleanupStaleClients evicts every session whose last_seen exceeds
// timeout, returning how many were removed. This is the only path
// that disconnects a live session purely for liveness reasons.
func (s *Server) CleanupStaleClients(timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var evicted []string
	for id, session := range s.sessions {
		if session.idleFor(now) > timeout {
			evicted = append(evicted, id)
		}
	}
	for _, id := range evicted {
		delete(s.sessions, id)
		s.log.Info("evicted stale client %s", id)
	}
	if len(evicted) > 0 && s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(len(s.sessions)))
		s.metrics.StaleClientsEvicted.Add(float64(len(evicted)))
	}
	return len(evicted)
}

// ConnectedClients lists currently connected client IDs.
func (s *Server) ConnectedClients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// DocumentContent returns the authoritative document's current content.
func (s *Server) DocumentContent() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.Load(s.documentName)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStore, "load document content", err)
	}
	return doc.Content, nil
}

// Version returns the server's internal reconciliation counter,
// bumped on every connect and every committed client edit.
func (s *Server) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}
