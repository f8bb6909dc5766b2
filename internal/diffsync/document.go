package diffsync

import "fmt"

// Document is a piece of content plus a monotonic version counter. Version
// starts at 0 and increments by exactly 1 on every Update. The JSON shape
// is {"content": "...", "version": N}, carried verbatim inside ConnectOk.
type Document struct {
	Content string `json:"content"`
	Version uint64 `json:"version"`
}

// NewDocument builds a Document at version 0.
func NewDocument(content string) Document {
	return Document{Content: content, Version: 0}
}

// NewDocumentWithVersion builds a Document pinned to a specific version,
// used when reconstituting a document loaded from a store.
func NewDocumentWithVersion(content string, version uint64) Document {
	return Document{Content: content, Version: version}
}

// Update replaces the content and bumps the version.
func (d *Document) Update(content string) {
	d.Content = content
	d.Version++
}

// Len returns the byte length of the content.
func (d Document) Len() int {
	return len(d.Content)
}

// IsEmpty reports whether the content is empty.
func (d Document) IsEmpty() bool {
	return len(d.Content) == 0
}

func (d Document) String() string {
	return fmt.Sprintf("%s (v%d)", d.Content, d.Version)
}
