// Package stream tracks the live streams of one session together with their
// receive credit. It does no I/O and no locking; the owning session
// serializes access.
package stream

import (
	"sort"

	"github.com/Astatine-Development/uWisp-Server/pkg/wisp"
)

// Kind is the transport of a stream.
type Kind = wisp.StreamType

// Socket is the outbound connection owned by a stream entry.
type Socket interface {
	Write(p []byte) error
	// AfterWrites runs fn once all writes queued so far are delivered.
	AfterWrites(fn func()) error
	Close() error
}

// Entry is one live stream.
type Entry struct {
	ID     uint32
	Kind   Kind
	Socket Socket
	Target string

	credit Credit
}

// Credit returns the frames left in the entry's current window.
func (e *Entry) Credit() uint32 {
	return e.credit.Remaining()
}

// Table maps stream IDs to entries.
type Table struct {
	entries map[uint32]*Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[uint32]*Entry)}
}

// Insert adds a stream with a full credit window. An existing entry for the
// same ID is replaced and returned; closing its socket is up to the caller.
func (t *Table) Insert(id uint32, kind Kind, sock Socket, target string) (replaced *Entry) {
	replaced = t.entries[id]
	t.entries[id] = &Entry{
		ID:     id,
		Kind:   kind,
		Socket: sock,
		Target: target,
		credit: NewCredit(),
	}
	return replaced
}

// Get looks up a stream.
func (t *Table) Get(id uint32) (*Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// Remove deletes a stream and returns it so the caller can release its socket.
func (t *Table) Remove(id uint32) (*Entry, bool) {
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return e, ok
}

// RemoveIf deletes a stream only while it still owns sock. Events of a socket
// that was replaced by a later CONNECT on the same ID must not evict the new
// entry.
func (t *Table) RemoveIf(id uint32, sock Socket) (*Entry, bool) {
	e, ok := t.entries[id]
	if !ok || e.Socket != sock {
		return nil, false
	}
	delete(t.entries, id)
	return e, true
}

// ConsumeCredit accounts for one DATA frame received on id. ok is false for
// unknown streams.
func (t *Table) ConsumeCredit(id uint32) (remaining uint32, exhausted bool, ok bool) {
	e, ok := t.entries[id]
	if !ok {
		return 0, false, false
	}
	remaining, exhausted = e.credit.Consume()
	return remaining, exhausted, true
}

// Len returns the number of live streams.
func (t *Table) Len() int {
	return len(t.entries)
}

// IDs returns the live stream IDs in ascending order.
func (t *Table) IDs() []uint32 {
	ids := make([]uint32, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Drain removes and returns every entry.
func (t *Table) Drain() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, id := range t.IDs() {
		out = append(out, t.entries[id])
	}
	t.entries = make(map[uint32]*Entry)
	return out
}
