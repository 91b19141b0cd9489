// Package checker holds the global invariants and the bounded state-space
// explorer that checks them after every step.
package checker

import (
	"fmt"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
	"github.com/samsamfire/c3d/pkg/dc"
	"github.com/samsamfire/c3d/pkg/directory"
	"github.com/samsamfire/c3d/pkg/environment"
	"github.com/samsamfire/c3d/pkg/llc"
)

// CheckAll runs every global invariant against the current configuration,
// returning the first one that fails.
func CheckAll(e *environment.Environment) error {
	if err := checkSWMR(e); err != nil {
		return err
	}
	if err := checkOwnerCleanliness(e); err != nil {
		return err
	}
	if err := checkNoDataInI(e); err != nil {
		return err
	}
	if err := checkDirectoryAddressing(e); err != nil {
		return err
	}
	if err := checkSharerSetCleanliness(e); err != nil {
		return err
	}
	return nil
}

func isWriter(e *environment.Environment, s int) bool {
	return e.DCs[s].State == dc.M || e.LLCs[s].State == llc.M || e.LLCs[s].State == llc.MI || e.LLCs[s].State == llc.MS
}

func isReader(e *environment.Environment, s int) bool {
	return e.DCs[s].State == dc.S || e.LLCs[s].State == llc.S
}

// checkSWMR is the single-writer/multiple-reader invariant: at most one
// socket may hold the line exclusively, and if one does, no other socket may
// simultaneously hold a readable copy.
func checkSWMR(e *environment.Environment) error {
	writers := 0
	writer := -1
	for s := range e.LLCs {
		if isWriter(e, s) {
			writers++
			writer = s
		}
	}
	readers := 0
	for s := range e.LLCs {
		if s != writer && isReader(e, s) {
			readers++
		}
	}
	if writers > 1 {
		return c3dmsg.NewViolation(c3dmsg.DirectoryNode, e.Directory.State, "SWMR", fmt.Sprintf("%d sockets simultaneously hold exclusive access", writers))
	}
	if writers == 1 && readers > 0 {
		return c3dmsg.NewViolation(c3dmsg.DirectoryNode, e.Directory.State, "SWMR", "one socket holds exclusive access while another holds a readable copy")
	}
	return nil
}

// checkOwnerCleanliness requires Directory.Owner to be undefined exactly
// when the directory is stably uncached or stably shared, and defined when
// stably owned.
func checkOwnerCleanliness(e *environment.Environment) error {
	switch e.Directory.State {
	case directory.I, directory.S:
		if !e.Directory.Owner.IsDirectory() {
			return c3dmsg.NewViolation(c3dmsg.DirectoryNode, e.Directory.State, "owner cleanliness", "owner is defined while directory is stably uncached or shared")
		}
	case directory.M:
		if e.Directory.Owner.IsDirectory() {
			return c3dmsg.NewViolation(c3dmsg.DirectoryNode, e.Directory.State, "owner cleanliness", "owner is undefined while directory is stably owned")
		}
	}
	return nil
}

// checkNoDataInI requires that a controller holds no data while invalid.
func checkNoDataInI(e *environment.Environment) error {
	for s, l := range e.LLCs {
		if l.State == llc.I && l.Data != c3dmsg.ValueUndefined {
			return c3dmsg.NewViolation(c3dmsg.SocketNode(c3dmsg.Socket(s)), l.State, "no-data-in-I", "LLC caches a defined value while invalid")
		}
	}
	for s, d := range e.DCs {
		if d.State == dc.I && d.Data != c3dmsg.ValueUndefined {
			return c3dmsg.NewViolation(c3dmsg.SocketNode(c3dmsg.Socket(s)), d.State, "no-data-in-I", "DC caches a defined value while invalid")
		}
	}
	return nil
}

// checkDirectoryAddressing re-sweeps every in-flight message: every message
// addressed to or from the directory must carry an undefined level.
func checkDirectoryAddressing(e *environment.Environment) error {
	for _, m := range e.Net.AllMessages() {
		if !m.WellFormed() {
			return c3dmsg.NewViolation(m.Dst, stateless{}, "directory addressing", fmt.Sprintf("malformed in-flight message: %s", m))
		}
	}
	return nil
}

// checkSharerSetCleanliness requires the directory's sharer set to be empty
// whenever the directory is stably uncached or stably owned: I and M both
// name no readers, only S (and the transient sharer-collecting states) ever
// carry a nonempty set.
func checkSharerSetCleanliness(e *environment.Environment) error {
	switch e.Directory.State {
	case directory.I, directory.M:
		if e.Directory.Sharers.Len() > 0 {
			return c3dmsg.NewViolation(c3dmsg.DirectoryNode, e.Directory.State, "sharer set cleanliness", "sharer set is nonempty while directory is stably uncached or owned")
		}
	}
	return nil
}

type stateless struct{}

func (stateless) String() string { return "-" }
