package diffsync

import "fmt"

// Engine is the per-participant differential synchronization state
// machine. It owns a live Document (what the user or server-side session
// sees) and a shadow (its belief about what the peer also has), plus an
// optional backup shadow used for recovery from duplicate or lost
// messages.
type Engine struct {
	document     Document
	shadow       Document
	backupShadow *Document
	nodeID       string
}

// New creates an engine with document == shadow == content, version 0,
// and no backup shadow. Suitable for a client-side engine.
func New(content, nodeID string) *Engine {
	return &Engine{
		document: NewDocument(content),
		shadow:   NewDocument(content),
		nodeID:   nodeID,
	}
}

// NewServerEngine creates an engine the same way New does, but also seeds
// a backup shadow equal to the initial shadow. This is the shape a
// ClientSession holds server-side: its document field is never
// user-facing. The reconciliation loop advances the document with Edit,
// which leaves the shadow where ApplyEdits last put it.
func NewServerEngine(content, nodeID string) *Engine {
	e := New(content, nodeID)
	shadow := e.shadow
	e.backupShadow = &shadow
	return e
}

// NodeID returns the engine's stable identity.
func (e *Engine) NodeID() string {
	return e.nodeID
}

// Edit mutates the live document directly, as if by local user input (or,
// server-side, as the freshly-committed authoritative content). Shadow is
// left untouched.
func (e *Engine) Edit(newContent string) {
	e.document.Update(newContent)
}

// Text returns the current document content.
func (e *Engine) Text() string {
	return e.document.Content
}

// Document returns a copy of the current document.
func (e *Engine) Document() Document {
	return e.document
}

// ShadowChecksum returns the checksum of the shadow's current content.
func (e *Engine) ShadowChecksum() string {
	return Checksum(e.shadow.Content)
}

// DiffAndUpdateShadow computes the diff from shadow to document, then
// advances shadow to match document. After this call,
// shadow.Content == document.Content.
func (e *Engine) DiffAndUpdateShadow() EditList {
	edits := Diff(e.shadow.Content, e.document.Content)
	e.shadow = e.document
	return edits
}

// ApplyEdits applies incoming edits to the shadow first, then to the
// document, each with fuzzy patching. If the edit list is empty this is a
// no-op. If the shadow patch fails the document is left untouched. The
// document's version is bumped on a successful application.
func (e *Engine) ApplyEdits(edits EditList) error {
	if edits.IsEmpty() {
		return nil
	}

	newShadow, err := Patch(e.shadow.Content, edits)
	if err != nil {
		return err
	}
	e.shadow.Update(newShadow)

	newDoc, err := Patch(e.document.Content, edits)
	if err != nil {
		return err
	}
	e.document.Update(newDoc)
	return nil
}

// BackupShadow snapshots the current shadow for later recovery.
func (e *Engine) BackupShadow() {
	shadow := e.shadow
	e.backupShadow = &shadow
}

// RestoreShadow restores shadow from the backup, if one exists. It reports
// whether a backup was present.
func (e *Engine) RestoreShadow() bool {
	if e.backupShadow == nil {
		return false
	}
	e.shadow = *e.backupShadow
	return true
}

// Stats is a point-in-time snapshot of engine state, for observability.
type Stats struct {
	DocumentVersion uint64
	DocumentLength  int
	ShadowChecksum  string
	HasBackup       bool
}

// Stats returns a snapshot of the engine's current state.
func (e *Engine) Stats() Stats {
	return Stats{
		DocumentVersion: e.document.Version,
		DocumentLength:  e.document.Len(),
		ShadowChecksum:  e.ShadowChecksum(),
		HasBackup:       e.backupShadow != nil,
	}
}

// Result is the outcome of one half of a sync_with round: the edits sent,
// the resulting shadow checksum, and whether application succeeded.
type Result struct {
	Edits          EditList
	ShadowChecksum string
	Success        bool
	Message        string
}

// SyncWith runs a full peer-to-peer synchronization cycle: self diffs and
// sends to other, then other diffs and sends back to self. It returns the
// (otherResult, selfResult) pair describing each leg. This is a
// convenience for direct engine-to-engine testing and the demo binary; the
// server's reconciliation loop (internal/server) implements the
// client/server variant of this same cycle against a persistent store.
func (e *Engine) SyncWith(other *Engine) (Result, Result) {
	clientEdits := e.DiffAndUpdateShadow()
	otherResult := Result{Edits: clientEdits}
	if err := other.ApplyEdits(clientEdits); err != nil {
		otherResult.Message = err.Error()
	} else {
		otherResult.Success = true
	}
	otherResult.ShadowChecksum = other.ShadowChecksum()

	serverEdits := other.DiffAndUpdateShadow()
	selfResult := Result{Edits: serverEdits}
	if err := e.ApplyEdits(serverEdits); err != nil {
		selfResult.Message = err.Error()
	} else {
		selfResult.Success = true
	}
	selfResult.ShadowChecksum = e.ShadowChecksum()

	return otherResult, selfResult
}

func (e *Engine) String() string {
	content := e.document.Content
	if len(content) > 50 {
		content = content[:47] + "..."
	}
	checksum := e.ShadowChecksum()
	if len(checksum) > 8 {
		checksum = checksum[:8]
	}
	return fmt.Sprintf("Engine[%s]: doc=%q (v%d), shadow_checksum=%s",
		e.nodeID, content, e.document.Version, checksum)
}
