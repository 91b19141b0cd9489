package environment

import (
	"fmt"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
)

// Kind classifies one enabled rule the driver may choose to fire next.
type Kind uint8

const (
	KindRead Kind = iota
	KindWrite
	KindReplace
	KindReplaceDC
	KindReplaceDirS
	KindReplaceDirM
	KindReceive
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindReplace:
		return "replace"
	case KindReplaceDC:
		return "DC-replace"
	case KindReplaceDirS:
		return "directory-replace(S)"
	case KindReplaceDirM:
		return "directory-replace(M)"
	case KindReceive:
		return "receive"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Rule is one member of the enabled set the driver picks from at each step.
// WriteValue is only meaningful for KindWrite. Node/Index are only
// meaningful for KindReceive (the mailbox and position of the message to
// attempt delivery of).
type Rule struct {
	Kind       Kind
	Socket     c3dmsg.Socket
	WriteValue c3dmsg.Value
	Node       c3dmsg.Node
	Index      int
	Msg        c3dmsg.Message
}

func (r Rule) String() string {
	switch r.Kind {
	case KindWrite:
		return fmt.Sprintf("write(S%d, %s)", int(r.Socket), r.WriteValue)
	case KindRead, KindReplace, KindReplaceDC:
		return fmt.Sprintf("%s(S%d)", r.Kind, int(r.Socket))
	case KindReplaceDirS, KindReplaceDirM:
		return r.Kind.String()
	case KindReceive:
		return fmt.Sprintf("receive(%s)", r.Msg)
	default:
		return r.Kind.String()
	}
}
