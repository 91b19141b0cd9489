// Package llc implements the per-socket last-level-cache controller: the
// tier the processor actually reads and writes, never holding data in I and
// tracking the single outstanding write value while a request is in flight.
package llc

import "fmt"

// State is one of the ten LLC states.
type State uint8

const (
	I State = iota
	IS
	IS_I
	IM
	IM_S
	S
	SM
	M
	MI
	MS
)

var stateNames = map[State]string{
	I:    "I",
	IS:   "IS",
	IS_I: "IS_I",
	IM:   "IM",
	IM_S: "IM_S",
	S:    "S",
	SM:   "SM",
	M:    "M",
	MI:   "MI",
	MS:   "MS",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}
