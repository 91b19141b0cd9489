package directory

import "github.com/samsamfire/c3d/pkg/c3dmsg"

// sharerSet is a small membership set over sockets; uniqueness is enforced
// at Add rather than relying on callers to dedup.
type sharerSet map[c3dmsg.Socket]struct{}

func newSharerSet() sharerSet { return make(sharerSet) }

func (s sharerSet) Add(sock c3dmsg.Socket) { s[sock] = struct{}{} }

func (s sharerSet) Remove(sock c3dmsg.Socket) { delete(s, sock) }

func (s sharerSet) Has(sock c3dmsg.Socket) bool {
	_, ok := s[sock]
	return ok
}

func (s sharerSet) Len() int { return len(s) }

func (s sharerSet) clone() sharerSet {
	out := make(sharerSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Sockets returns the membership as a slice, in nondeterministic map order;
// callers that need a stable order must sort it themselves.
func (s sharerSet) Sockets() []c3dmsg.Socket {
	out := make([]c3dmsg.Socket, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}
