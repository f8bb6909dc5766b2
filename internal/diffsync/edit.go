// Package diffsync implements Neil Fraser's differential synchronization
// algorithm: a diff/patch primitive plus the per-participant engine that
// keeps a live document and a shadow in lockstep with a remote peer.
package diffsync

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the variant of an Edit.
type Kind int

const (
	KindInsert Kind = iota
	KindDelete
	KindReplace
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "Insert"
	case KindDelete:
		return "Delete"
	case KindReplace:
		return "Replace"
	default:
		return "Unknown"
	}
}

// Edit is a single edit operation. Pos and Len/OldLen are UTF-8 byte
// offsets into the pre-edit string the edit was computed against. Only the
// fields relevant to Kind are meaningful; the zero value of the others is
// ignored by Patch.
type Edit struct {
	Kind    Kind
	Pos     int
	Len     int    // Delete: number of bytes to remove
	OldLen  int    // Replace: number of bytes to replace
	Text    string // Insert: text to splice in
	NewText string // Replace: replacement text
}

// Insert builds an Insert edit.
func Insert(pos int, text string) Edit {
	return Edit{Kind: KindInsert, Pos: pos, Text: text}
}

// Delete builds a Delete edit.
func Delete(pos, length int) Edit {
	return Edit{Kind: KindDelete, Pos: pos, Len: length}
}

// Replace builds a Replace edit.
func Replace(pos, oldLen int, newText string) Edit {
	return Edit{Kind: KindReplace, Pos: pos, OldLen: oldLen, NewText: newText}
}

func (e Edit) String() string {
	switch e.Kind {
	case KindInsert:
		return fmt.Sprintf("Insert{pos:%d text:%q}", e.Pos, e.Text)
	case KindDelete:
		return fmt.Sprintf("Delete{pos:%d len:%d}", e.Pos, e.Len)
	case KindReplace:
		return fmt.Sprintf("Replace{pos:%d old_len:%d new_text:%q}", e.Pos, e.OldLen, e.NewText)
	default:
		return "Edit{unknown}"
	}
}

// insertBody, deleteBody, and replaceBody are the wire bodies nested under
// each Edit variant's tag, per the wire protocol's adjacent-tag convention.
type insertBody struct {
	Pos  int    `json:"pos"`
	Text string `json:"text"`
}

type deleteBody struct {
	Pos int `json:"pos"`
	Len int `json:"len"`
}

type replaceBody struct {
	Pos     int    `json:"pos"`
	OldLen  int    `json:"old_len"`
	NewText string `json:"new_text"`
}

// MarshalJSON encodes an Edit as a single-key tagged-union object, e.g.
// {"Insert": {"pos": 0, "text": "hi"}}, matching the wire protocol exactly.
func (e Edit) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindInsert:
		return json.Marshal(map[string]insertBody{"Insert": {Pos: e.Pos, Text: e.Text}})
	case KindDelete:
		return json.Marshal(map[string]deleteBody{"Delete": {Pos: e.Pos, Len: e.Len}})
	case KindReplace:
		return json.Marshal(map[string]replaceBody{"Replace": {Pos: e.Pos, OldLen: e.OldLen, NewText: e.NewText}})
	default:
		return nil, fmt.Errorf("diffsync: marshal edit: unknown kind %d", e.Kind)
	}
}

// UnmarshalJSON decodes the tagged-union shape MarshalJSON produces.
func (e *Edit) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if body, ok := raw["Insert"]; ok {
		var b insertBody
		if err := json.Unmarshal(body, &b); err != nil {
			return fmt.Errorf("diffsync: unmarshal Insert edit: %w", err)
		}
		*e = Edit{Kind: KindInsert, Pos: b.Pos, Text: b.Text}
		return nil
	}
	if body, ok := raw["Delete"]; ok {
		var b deleteBody
		if err := json.Unmarshal(body, &b); err != nil {
			return fmt.Errorf("diffsync: unmarshal Delete edit: %w", err)
		}
		*e = Edit{Kind: KindDelete, Pos: b.Pos, Len: b.Len}
		return nil
	}
	if body, ok := raw["Replace"]; ok {
		var b replaceBody
		if err := json.Unmarshal(body, &b); err != nil {
			return fmt.Errorf("diffsync: unmarshal Replace edit: %w", err)
		}
		*e = Edit{Kind: KindReplace, Pos: b.Pos, OldLen: b.OldLen, NewText: b.NewText}
		return nil
	}
	return fmt.Errorf("diffsync: unmarshal edit: no recognized variant in %s", data)
}

// EditList is an ordered sequence of edits produced by a single Diff call,
// plus a checksum of the source text they were derived from. Edits are
// listed in production order but applied in reverse by Patch so that
// earlier positions remain valid across the application of later ones.
// The JSON shape is {"edits": [...], "checksum": "<hex>"}.
type EditList struct {
	Edits    []Edit `json:"edits"`
	Checksum string `json:"checksum"`
}

// editListWire mirrors EditList for marshaling, except Edits is never nil
// on the wire: an empty list encodes as [], not null.
type editListWire struct {
	Edits    []Edit `json:"edits"`
	Checksum string `json:"checksum"`
}

// MarshalJSON encodes an EditList, normalizing a nil Edits slice to [].
func (l EditList) MarshalJSON() ([]byte, error) {
	edits := l.Edits
	if edits == nil {
		edits = []Edit{}
	}
	return json.Marshal(editListWire{Edits: edits, Checksum: l.Checksum})
}

// UnmarshalJSON decodes an EditList.
func (l *EditList) UnmarshalJSON(data []byte) error {
	var w editListWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	l.Edits = w.Edits
	l.Checksum = w.Checksum
	return nil
}

// NewEditList builds an EditList, computing its checksum over source.
func NewEditList(edits []Edit, source string) EditList {
	return EditList{Edits: edits, Checksum: Checksum(source)}
}

// EmptyEditList returns an EditList with no edits, checksummed over source.
func EmptyEditList(source string) EditList {
	return NewEditList(nil, source)
}

// IsEmpty reports whether the list carries no edits.
func (l EditList) IsEmpty() bool {
	return len(l.Edits) == 0
}

// Len returns the number of edits in the list.
func (l EditList) Len() int {
	return len(l.Edits)
}

func (l EditList) String() string {
	if l.IsEmpty() {
		return "No edits"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d edits:", len(l.Edits))
	for i, e := range l.Edits {
		fmt.Fprintf(&b, "\n  %d: %s", i+1, e)
	}
	return b.String()
}

// Checksum computes a cheap, advisory content fingerprint:
// hex(byte_length XOR sum_of_codepoint_values). It is never consulted to
// gate patch application; it exists for observability and to seed future
// guaranteed-delivery logic.
func Checksum(text string) string {
	var sum int
	for _, r := range text {
		sum += int(r)
	}
	return fmt.Sprintf("%x", len(text)^sum)
}
