// Package store persists documents across server restarts. Both
// implementations bootstrap a default "main" document the first time
// they see an empty backing store, matching the collaborative editor's
// out-of-the-box demo experience.
package store

import (
	"time"

	"github.com/beesaferoot/diff-sync/internal/diffsync"
)

// DefaultDocumentContent seeds a freshly created store.
const DefaultDocumentContent = "Welcome to collaborative editing with persistence!"

// DocumentStore loads and durably updates named documents. Every
// implementation must be safe for concurrent use.
type DocumentStore interface {
	// Load returns the named document, creating it with
	// DefaultDocumentContent if it does not yet exist.
	Load(name string) (diffsync.Document, error)

	// Update applies newContent to the named document, bumping its
	// version, and returns the updated document.
	Update(name, newContent string) (diffsync.Document, error)

	// Stats reports store-wide bookkeeping for observability.
	Stats() (Stats, error)

	// Close releases any resources the store holds open.
	Close() error
}

// Stats is a point-in-time snapshot of the store's bookkeeping.
type Stats struct {
	TotalDocuments int
	LatestUpdate   time.Time
}
