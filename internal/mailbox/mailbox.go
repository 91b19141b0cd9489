// Package mailbox is the bounded-multiset storage behind a network node's
// inbox: the same capacity bookkeeping style as a circular byte buffer
// (GetSpace/GetOccupied), generalized from a byte ring (ordered,
// single-typed stream) to a bag of c3dmsg.Message values with no ordering
// guarantee, since messages here may be picked up for delivery in any
// order, not just the order they arrived in.
package mailbox

import "github.com/samsamfire/c3d/pkg/c3dmsg"

// Mailbox holds every message in flight to one node, unordered, up to a
// fixed capacity.
type Mailbox struct {
	items    []c3dmsg.Message
	capacity int
}

func New(capacity int) *Mailbox {
	return &Mailbox{items: make([]c3dmsg.Message, 0, capacity), capacity: capacity}
}

func (mb *Mailbox) GetOccupied() int { return len(mb.items) }

func (mb *Mailbox) GetSpace() int { return mb.capacity - len(mb.items) }

// Clone deep-copies the contents so the model checker can fork exploration
// without two mailboxes sharing a backing array.
func (mb *Mailbox) Clone() *Mailbox {
	out := &Mailbox{items: make([]c3dmsg.Message, len(mb.items)), capacity: mb.capacity}
	copy(out.items, mb.items)
	return out
}

// Put appends a message, failing if the mailbox is already at capacity.
func (mb *Mailbox) Put(m c3dmsg.Message) error {
	if mb.GetSpace() <= 0 {
		return c3dmsg.ErrMailboxFull
	}
	mb.items = append(mb.items, m)
	return nil
}

// Items returns a read-only snapshot of everything currently queued, in
// whatever internal order they happen to be stored — callers must not treat
// that order as meaningful.
func (mb *Mailbox) Items() []c3dmsg.Message {
	out := make([]c3dmsg.Message, len(mb.items))
	copy(out, mb.items)
	return out
}

// Take removes the message at index i (as returned by Items) and returns it.
// Order of the remaining elements is not preserved, since none is promised.
func (mb *Mailbox) Take(i int) c3dmsg.Message {
	m := mb.items[i]
	last := len(mb.items) - 1
	mb.items[i] = mb.items[last]
	mb.items = mb.items[:last]
	return m
}
