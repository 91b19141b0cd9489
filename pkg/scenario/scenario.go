// Package scenario replays named, fixed interleavings end to end: each one
// is a worked example from the protocol's happy and unhappy paths, useful
// both as a regression test and as a CLI demo.
package scenario

import (
	"fmt"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
	"github.com/samsamfire/c3d/pkg/config"
	"github.com/samsamfire/c3d/pkg/environment"
)

// Scenario is one named, replayable trace.
type Scenario struct {
	Name        string
	Description string
	Sockets     int
	Run         func(e *environment.Environment) error
}

// All lists every scenario in the library, in the order they appear in
// scenarios.go.
var All = []Scenario{
	basicReadThenWrite,
	sharedUpgrade,
	ownershipTransfer,
	downgradeRoundTrip,
	silentReplacementRace,
	directoryForcedEviction,
}

// Find looks a scenario up by name, the way the CLI's run subcommand does.
func Find(name string) (Scenario, bool) {
	for _, s := range All {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// New builds an Environment sized for a scenario.
func New(sockets int) *environment.Environment {
	cfg := config.Default()
	cfg.Sockets = sockets
	return environment.New(environment.Config{
		Sockets:         cfg.Sockets,
		MailboxCapacity: cfg.MailboxCapacity,
		Values:          cfg.Values,
	}, nil)
}

// recv fires the single pending KindReceive rule whose message matches pred.
// Every step in the scenarios below names its target message precisely
// enough that exactly one such rule is enabled at the time it runs.
func recv(e *environment.Environment, pred func(c3dmsg.Message) bool) error {
	var match *environment.Rule
	for _, r := range e.EnabledRules() {
		if r.Kind != environment.KindReceive {
			continue
		}
		if pred(r.Msg) {
			if match != nil {
				return fmt.Errorf("scenario: ambiguous receive, multiple messages matched")
			}
			rc := r
			match = &rc
		}
	}
	if match == nil {
		return fmt.Errorf("scenario: no pending message matched the expected step")
	}
	return e.Fire(*match)
}

// recvAt delivers every message currently queued for node, in whatever
// order EnabledRules happens to list them, used where the exact message
// shape doesn't matter (e.g. draining an invalidation broadcast).
func recvAt(e *environment.Environment, node c3dmsg.Node) error {
	for {
		progressed := false
		for _, r := range e.EnabledRules() {
			if r.Kind == environment.KindReceive && r.Node == node {
				if err := e.Fire(r); err != nil {
					return err
				}
				progressed = true
				break
			}
		}
		if !progressed {
			return nil
		}
	}
}

func toSocket(t c3dmsg.MessageType, dst c3dmsg.Socket, lvl c3dmsg.Level) func(c3dmsg.Message) bool {
	return func(m c3dmsg.Message) bool {
		return m.Type == t && m.Dst == c3dmsg.SocketNode(dst) && m.DstLevel == lvl
	}
}

func toDirectory(t c3dmsg.MessageType) func(c3dmsg.Message) bool {
	return func(m c3dmsg.Message) bool {
		return m.Type == t && m.Dst.IsDirectory()
	}
}
