package scenario

import (
	"fmt"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
	"github.com/samsamfire/c3d/pkg/environment"
)

type step func(e *environment.Environment) error

func run(e *environment.Environment, steps ...step) error {
	for i, s := range steps {
		if err := s(e); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func read(sock c3dmsg.Socket) step {
	return func(e *environment.Environment) error {
		return e.Fire(environment.Rule{Kind: environment.KindRead, Socket: sock})
	}
}

func write(sock c3dmsg.Socket, v c3dmsg.Value) step {
	return func(e *environment.Environment) error {
		return e.Fire(environment.Rule{Kind: environment.KindWrite, Socket: sock, WriteValue: v})
	}
}

func replace(sock c3dmsg.Socket) step {
	return func(e *environment.Environment) error {
		return e.Fire(environment.Rule{Kind: environment.KindReplace, Socket: sock})
	}
}

func replaceDirS() step {
	return func(e *environment.Environment) error { return e.Directory.ReplaceS(e.Net) }
}

func replaceDirM() step {
	return func(e *environment.Environment) error { return e.Directory.ReplaceM(e.Net) }
}

// deliver fires the single enabled KindReceive rule matching pred.
func deliver(pred func(c3dmsg.Message) bool) step {
	return func(e *environment.Environment) error { return recv(e, pred) }
}

// drain delivers every message queued for node, in any order, until none
// remain; used where the exact sequencing within a broadcast doesn't matter.
func drain(node c3dmsg.Node) step {
	return func(e *environment.Environment) error { return recvAt(e, node) }
}

var (
	basicReadThenWrite = Scenario{
		Name:        "basic-read-then-write",
		Description: "a single socket misses on read, then upgrades the line to exclusive on write",
		Sockets:     2,
		Run: func(e *environment.Environment) error {
			s0 := c3dmsg.Socket(0)
			return run(e,
				read(s0),
				deliver(toSocket(c3dmsg.Gets, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Gets)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelLLC)),
				write(s0, 1),
				deliver(toSocket(c3dmsg.Upgrade, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Upgrade)),
				deliver(toSocket(c3dmsg.UpgradeAck, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.UpgradeAck, s0, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.DataAck)),
			)
		},
	}

	sharedUpgrade = Scenario{
		Name:        "shared-upgrade",
		Description: "two sockets read the same line, then the first upgrades it and invalidates the second",
		Sockets:     2,
		Run: func(e *environment.Environment) error {
			s0, s1 := c3dmsg.Socket(0), c3dmsg.Socket(1)
			return run(e,
				read(s0),
				deliver(toSocket(c3dmsg.Gets, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Gets)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelLLC)),
				read(s1),
				deliver(toSocket(c3dmsg.Gets, s1, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Gets)),
				deliver(toSocket(c3dmsg.DATA, s1, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s1, c3dmsg.LevelLLC)),
				write(s0, 1),
				deliver(toSocket(c3dmsg.Upgrade, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Upgrade)),
				deliver(toSocket(c3dmsg.Inv, s1, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.Inv, s1, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.InvAck)),
				deliver(toSocket(c3dmsg.UpgradeAck, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.UpgradeAck, s0, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.DataAck)),
			)
		},
	}

	ownershipTransfer = Scenario{
		Name:        "ownership-transfer",
		Description: "exclusive ownership moves directly from one socket to another on a competing write",
		Sockets:     2,
		Run: func(e *environment.Environment) error {
			s0, s1 := c3dmsg.Socket(0), c3dmsg.Socket(1)
			return run(e,
				write(s0, 1),
				deliver(toSocket(c3dmsg.Getx, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Getx)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.DataAck)),
				write(s1, 2),
				deliver(toSocket(c3dmsg.Getx, s1, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Getx)),
				deliver(toSocket(c3dmsg.Inv, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.Inv, s0, c3dmsg.LevelLLC)),
				deliver(toSocket(c3dmsg.Putx, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Putx)),
				deliver(toSocket(c3dmsg.PutAck, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.PutAck, s0, c3dmsg.LevelLLC)),
				deliver(toSocket(c3dmsg.DATA, s1, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s1, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.DataAck)),
			)
		},
	}

	downgradeRoundTrip = Scenario{
		Name:        "downgrade-round-trip",
		Description: "a reader asks for a line an owner holds exclusively; the owner downgrades to shared rather than giving it up",
		Sockets:     2,
		Run: func(e *environment.Environment) error {
			s0, s1 := c3dmsg.Socket(0), c3dmsg.Socket(1)
			return run(e,
				write(s0, 1),
				deliver(toSocket(c3dmsg.Getx, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Getx)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.DataAck)),
				read(s1),
				deliver(toSocket(c3dmsg.Gets, s1, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Gets)),
				deliver(toSocket(c3dmsg.Downgrade, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.Downgrade, s0, c3dmsg.LevelLLC)),
				deliver(toSocket(c3dmsg.Putx, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.DowngradeAck)),
				deliver(toDirectory(c3dmsg.Putx)),
				deliver(toSocket(c3dmsg.DATA, s1, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s1, c3dmsg.LevelLLC)),
				deliver(toSocket(c3dmsg.PutAck, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.PutAck, s0, c3dmsg.LevelLLC)),
			)
		},
	}

	// silentReplacementRace exercises LLC/DC IS_I: a socket's own read miss
	// races against an unrelated writer's invalidation of the very line it is
	// waiting on, so the eventual DATA for the abandoned read arrives only to
	// be discarded.
	silentReplacementRace = Scenario{
		Name:        "silent-replacement-race",
		Description: "a pending read is invalidated before its DATA arrives and must discard it on completion",
		Sockets:     3,
		Run: func(e *environment.Environment) error {
			s0, s2 := c3dmsg.Socket(0), c3dmsg.Socket(2)
			return run(e,
				read(s0),
				deliver(toSocket(c3dmsg.Gets, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Gets)),
				// directory answered and moved to S; DC0/LLC0 are still IS,
				// the DATA for the completed miss not yet delivered to them.
				write(s2, 1),
				deliver(toSocket(c3dmsg.Getx, s2, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Getx)),
				// the directory's INV to S0 overtakes the stale DATA still
				// sitting in DC0's mailbox.
				deliver(toSocket(c3dmsg.Inv, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.Inv, s0, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.InvAck)),
				deliver(toSocket(c3dmsg.DATA, s2, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s2, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.DataAck)),
				// only now does S0's abandoned DATA surface, first at its DC
				// (IS_I, discards and forwards down) then at its LLC (IS_I,
				// discards for good).
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelLLC)),
			)
		},
	}

	directoryForcedEviction = Scenario{
		Name:        "directory-forced-eviction",
		Description: "the directory reclaims a shared line and then a modified line with no requester behind either reclamation",
		Sockets:     2,
		Run: func(e *environment.Environment) error {
			s0, s1 := c3dmsg.Socket(0), c3dmsg.Socket(1)
			return run(e,
				read(s0),
				deliver(toSocket(c3dmsg.Gets, s0, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Gets)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s0, c3dmsg.LevelLLC)),
				replaceDirS(),
				deliver(toSocket(c3dmsg.Inv, s0, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.Inv, s0, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.InvAck)),
				write(s1, 1),
				deliver(toSocket(c3dmsg.Getx, s1, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Getx)),
				deliver(toSocket(c3dmsg.DATA, s1, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.DATA, s1, c3dmsg.LevelLLC)),
				deliver(toDirectory(c3dmsg.DataAck)),
				replaceDirM(),
				deliver(toSocket(c3dmsg.Inv, s1, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.Inv, s1, c3dmsg.LevelLLC)),
				deliver(toSocket(c3dmsg.Putx, s1, c3dmsg.LevelDC)),
				deliver(toDirectory(c3dmsg.Putx)),
				deliver(toSocket(c3dmsg.PutAck, s1, c3dmsg.LevelDC)),
				deliver(toSocket(c3dmsg.PutAck, s1, c3dmsg.LevelLLC)),
			)
		},
	}
)
