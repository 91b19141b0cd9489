// Package network is the message and channel layer: the envelope format,
// the three virtual channels, and the per-destination mailbox with a
// capacity cap. It fans out to one mailbox per node and hands the model
// checker's environment driver the full set of pending deliveries on
// request, since delivery here is a discrete, model-checked step rather
// than a live goroutine dispatch.
package network

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/samsamfire/c3d/internal/mailbox"
	"github.com/samsamfire/c3d/pkg/c3dmsg"
)

var ErrUnknownNode = errors.New("network: unknown destination node")

// DefaultCapacity is the mailbox capacity floor: at least twice the socket
// count plus one, enough room for a full invalidation broadcast plus an ack
// in flight without ever needing the Send precondition to fail in a
// reachable trace.
func DefaultCapacity(sockets int) int { return 2*sockets + 1 }

// Pending names one (node, index-within-mailbox) message, the unit the
// nondeterministic receive-one-message step picks from.
type Pending struct {
	Node  c3dmsg.Node
	Index int
	Msg   c3dmsg.Message
}

// Network owns one mailbox per node (the directory plus every socket).
type Network struct {
	logger    *slog.Logger
	capacity  int
	sockets   int
	mailboxes map[c3dmsg.Node]*mailbox.Mailbox
}

func New(sockets int, capacity int, logger *slog.Logger) *Network {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Network{
		logger:    logger.With("service", "[NET]"),
		capacity:  capacity,
		sockets:   sockets,
		mailboxes: make(map[c3dmsg.Node]*mailbox.Mailbox, sockets+1),
	}
	n.mailboxes[c3dmsg.DirectoryNode] = mailbox.New(capacity)
	for s := 0; s < sockets; s++ {
		n.mailboxes[c3dmsg.SocketNode(c3dmsg.Socket(s))] = mailbox.New(capacity)
	}
	return n
}

// Send implements c3dmsg.Sender: it appends to the destination mailbox and
// fails if that mailbox is already at capacity. A failure here is always a
// protocol bug — staying under capacity is an obligation of the caller, not
// something Send can enforce after the fact.
func (n *Network) Send(m c3dmsg.Message) error {
	if !m.WellFormed() {
		return fmt.Errorf("%w: %s", c3dmsg.ErrMalformed, m)
	}
	mb, ok := n.mailboxes[m.Dst]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, m.Dst)
	}
	if err := mb.Put(m); err != nil {
		return fmt.Errorf("send %s to %s: %w", m.Type, m.Dst, err)
	}
	n.logger.Debug("sent", "msg", m.String())
	return nil
}

// Clone deep-copies every mailbox so the model checker can fork exploration.
func (n *Network) Clone() *Network {
	cp := &Network{
		logger:    n.logger,
		capacity:  n.capacity,
		sockets:   n.sockets,
		mailboxes: make(map[c3dmsg.Node]*mailbox.Mailbox, len(n.mailboxes)),
	}
	for node, mb := range n.mailboxes {
		cp.mailboxes[node] = mb.Clone()
	}
	return cp
}

// Occupied reports how many messages are queued for node.
func (n *Network) Occupied(node c3dmsg.Node) int {
	mb, ok := n.mailboxes[node]
	if !ok {
		return 0
	}
	return mb.GetOccupied()
}

// Pending flattens every mailbox into the list of (node, index, message)
// triples the environment driver enumerates as network-receive rules.
func (n *Network) Pending() []Pending {
	var out []Pending
	for node, mb := range n.mailboxes {
		for i, m := range mb.Items() {
			out = append(out, Pending{Node: node, Index: i, Msg: m})
		}
	}
	return out
}

// Deliver attempts delivery of the message at (node, index): it invokes
// handler, and only removes the message from the mailbox if handler reports
// it was consumed. This is the atomic consume-or-stall discipline every
// controller follows: either the message is fully handled, or it is left
// untouched for a later step, never partially applied.
func (n *Network) Deliver(node c3dmsg.Node, index int, handler func(c3dmsg.Message) bool) (consumed bool, err error) {
	mb, ok := n.mailboxes[node]
	if !ok {
		return false, ErrUnknownNode
	}
	items := mb.Items()
	if index < 0 || index >= len(items) {
		return false, fmt.Errorf("network: index %d out of range for %s (%d pending)", index, node, len(items))
	}
	msg := items[index]
	if handler(msg) {
		mb.Take(index)
		n.logger.Debug("delivered", "msg", msg.String())
		return true, nil
	}
	n.logger.Debug("stalled", "msg", msg.String())
	return false, nil
}

// AllMessages is used by the invariant checker to sweep every in-flight
// message for the directory-addressing invariant.
func (n *Network) AllMessages() []c3dmsg.Message {
	var out []c3dmsg.Message
	for _, mb := range n.mailboxes {
		out = append(out, mb.Items()...)
	}
	return out
}
