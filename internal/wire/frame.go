// Package wire defines the over-the-wire encoding of operations: a
// variant-tagged dictionary (Frame) and its JSON serialization. Wire
// knows nothing about operation semantics — it is the leaf of the
// dependency graph, the same role the teacher's json-tagged Op/Char
// structs played in agent/crdt.go and server/crdt.go.
package wire

import "encoding/json"

// Kind discriminates the four operation variants on the wire.
type Kind string

const (
	KindDelete          Kind = "Delete"
	KindInsert          Kind = "Insert"
	KindImmutableObject Kind = "ImmutableObject"
	KindDelimiter       Kind = "Delimiter"
)

// FrameIdentifier is the wire shape of ident.Identifier: a two-field
// record per spec §6.
type FrameIdentifier struct {
	Creator  string `json:"creator"`
	OpNumber uint64 `json:"op_number"`
}

// Frame is the tagged dictionary every operation variant encodes to
// and decodes from, per §4.6. Fields are omitted (left as the zero
// pointer) where the variant and situation call for it: Origin is
// omitted when it equals Prev, Delimiter's Prev/Next are each
// individually optional, and Content only appears on
// ImmutableObject.
type Frame struct {
	Type    Kind             `json:"type"`
	UID     FrameIdentifier  `json:"uid"`
	Deletes *FrameIdentifier `json:"deletes,omitempty"`
	Prev    *FrameIdentifier `json:"prev,omitempty"`
	Next    *FrameIdentifier `json:"next,omitempty"`
	Origin  *FrameIdentifier `json:"origin,omitempty"`
	Content []byte           `json:"content,omitempty"`
}

// Marshal and Unmarshal move a Frame to and from the bytes a
// transport actually sends. Kept as free functions, not methods, so
// callers that only ever see []byte (cmd/agent's websocket hub,
// cmd/server's redis relay) don't need to import anything but wire.
func Marshal(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

func Unmarshal(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}
