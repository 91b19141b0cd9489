package c3dmsg

import (
	"errors"
	"fmt"
)

// Sentinel errors: short, flat, reusable across controllers.
var (
	ErrIllegalArgument = errors.New("c3dmsg: illegal argument")
	ErrMailboxFull     = errors.New("c3dmsg: mailbox at capacity")
	ErrMalformed       = errors.New("c3dmsg: message fails WellFormed check")
	ErrSCViolation     = errors.New("c3dmsg: sequential consistency violation")
)

// ProtocolViolation is the fatal diagnostic raised for an unhandled
// (state, event) pair or a broken invariant. It always names the state, the
// event and the offending node so a human can reconstruct what happened
// without re-deriving it from the trace. A capacity overflow and a failed
// SC-per-location check are reported as wrapped ErrMailboxFull and
// ErrSCViolation errors instead.
type ProtocolViolation struct {
	Node  Node
	State fmt.Stringer
	Event fmt.Stringer
	Msg   string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation at %s in state %s on %s: %s", e.Node, e.State, e.Event, e.Msg)
}

// NewUnhandled reports an unhandled (state, event) pair.
func NewUnhandled(node Node, state fmt.Stringer, event fmt.Stringer) *ProtocolViolation {
	return &ProtocolViolation{Node: node, State: state, Event: event, Msg: "no handler for this (state, event) pair"}
}

type stringerMsg string

func (s stringerMsg) String() string { return string(s) }

// NewViolation reports a broken invariant or another failed check. event
// is free text describing what was being checked.
func NewViolation(node Node, state fmt.Stringer, event string, msg string) *ProtocolViolation {
	return &ProtocolViolation{Node: node, State: state, Event: stringerMsg(event), Msg: msg}
}
