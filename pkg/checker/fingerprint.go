package checker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/samsamfire/c3d/pkg/environment"
)

// fingerprint builds a canonical string encoding of the full configuration —
// every controller's state and data, the directory's bookkeeping, every
// in-flight message, and the auxiliary last-written value — so that two
// configurations reached by different rule orderings hash identically.
func fingerprint(e *environment.Environment) uint64 {
	var b strings.Builder

	fmt.Fprintf(&b, "dir:%d,%d,%d;", e.Directory.State, e.Directory.Owner, e.Directory.Data)
	sharers := e.Directory.Sharers.Sockets()
	sort.Slice(sharers, func(i, j int) bool { return sharers[i] < sharers[j] })
	fmt.Fprintf(&b, "sharers:%v;", sharers)

	for i, d := range e.DCs {
		fmt.Fprintf(&b, "dc%d:%d,%d;", i, d.State, d.Data)
	}
	for i, l := range e.LLCs {
		fmt.Fprintf(&b, "llc%d:%d,%d,%d;", i, l.State, l.Data, l.PendingWrite)
	}
	fmt.Fprintf(&b, "aux:%d;", e.Aux.Value)

	msgs := e.Net.AllMessages()
	strs := make([]string, len(msgs))
	for i, m := range msgs {
		strs[i] = m.String()
	}
	sort.Strings(strs)
	fmt.Fprintf(&b, "net:%v", strs)

	return xxhash.Sum64String(b.String())
}
