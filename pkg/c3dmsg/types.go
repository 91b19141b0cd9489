// Package c3dmsg defines the wire-level vocabulary shared by every C3D
// controller: sockets, nodes, virtual channels, message types and the
// message envelope itself. Controllers in pkg/directory, pkg/dc and pkg/llc
// build their state machines on top of these types; nothing here knows about
// any particular state machine.
package c3dmsg

import "fmt"

// Socket identifies one NUMA socket. The model is parameterised over the
// socket count; three is the smallest witness sufficient to exercise SWMR.
type Socket int

// Level identifies which controller within a socket a message is addressed
// to or originates from. LevelUndefined marks a field that is not live,
// which is always the case for messages addressed to or sourced from the
// directory.
type Level int8

const (
	LevelUndefined Level = -1
	LevelLLC       Level = 0
	LevelDC        Level = 1
)

func (l Level) String() string {
	switch l {
	case LevelLLC:
		return "LLC"
	case LevelDC:
		return "DC"
	case LevelUndefined:
		return "-"
	default:
		return fmt.Sprintf("Level(%d)", int8(l))
	}
}

// Node is either the directory or a socket. The directory is represented by
// the sentinel DirectoryNode; every non-negative value is a socket id.
type Node int

const DirectoryNode Node = -1

func SocketNode(s Socket) Node { return Node(s) }

func (n Node) IsDirectory() bool { return n == DirectoryNode }

// Socket returns the socket id this node refers to. Callers must check
// IsDirectory first; calling Socket on the directory node panics.
func (n Node) Socket() Socket {
	if n.IsDirectory() {
		panic("c3dmsg: Socket() called on the directory node")
	}
	return Socket(n)
}

func (n Node) String() string {
	if n.IsDirectory() {
		return "DIR"
	}
	return fmt.Sprintf("S%d", int(n))
}

// VC is a virtual channel. Priorities are REQ < RES < UNB; no controller may
// originate a message on a channel lower than or equal to one it is
// currently blocked waiting for progress on.
type VC uint8

const (
	VCReq VC = iota
	VCRes
	VCUnb
)

func (vc VC) String() string {
	switch vc {
	case VCReq:
		return "REQ"
	case VCRes:
		return "RES"
	case VCUnb:
		return "UNB"
	default:
		return fmt.Sprintf("VC(%d)", uint8(vc))
	}
}

// Value is an opaque symbolic datum from a small finite domain; equality is
// its only operation. ValueUndefined marks a data field that is not live.
type Value int

const ValueUndefined Value = -1

func (v Value) String() string {
	if v == ValueUndefined {
		return "-"
	}
	return fmt.Sprintf("v%d", int(v))
}
