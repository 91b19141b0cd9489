package checker

import (
	"log/slog"

	"github.com/rs/xid"

	"github.com/samsamfire/c3d/pkg/environment"
)

// Step is one fired rule recorded on the path to a configuration.
type Step = environment.Rule

// Result is the outcome of a bounded exploration: either a fatal violation
// with the trace that reproduces it, or a clean exhaustion report.
type Result struct {
	RunID          string
	StatesExplored int
	Violation      error
	Trace          []Step
}

type frontierNode struct {
	env   *environment.Environment
	trace []Step
}

// Explore runs a bounded breadth-first search from root, firing every
// enabled rule at every reachable configuration and checking every
// invariant after each step, until it finds a violation or exhausts
// maxStates distinct configurations (deduplicated by fingerprint) or
// maxDepth steps from the root, whichever comes first.
func Explore(root *environment.Environment, maxStates, maxDepth int, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "[CHECK]")
	runID := xid.New().String()

	visited := make(map[uint64]bool)
	queue := []frontierNode{{env: root, trace: nil}}
	visited[fingerprint(root)] = true

	explored := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		explored++

		if err := CheckAll(cur.env); err != nil {
			logger.Error("invariant violation", "run", runID, "err", err, "steps", len(cur.trace))
			return Result{RunID: runID, StatesExplored: explored, Violation: err, Trace: cur.trace}
		}

		if len(cur.trace) >= maxDepth || explored >= maxStates {
			continue
		}

		for _, rule := range cur.env.EnabledRules() {
			child := cur.env.Clone()
			if err := child.Fire(rule); err != nil {
				trace := append(append([]Step{}, cur.trace...), rule)
				logger.Error("invariant violation", "run", runID, "err", err, "steps", len(trace))
				return Result{RunID: runID, StatesExplored: explored, Violation: err, Trace: trace}
			}
			fp := fingerprint(child)
			if visited[fp] {
				continue
			}
			visited[fp] = true
			trace := append(append([]Step{}, cur.trace...), rule)
			queue = append(queue, frontierNode{env: child, trace: trace})
			if len(visited) >= maxStates {
				break
			}
		}
	}

	logger.Info("exploration exhausted with no violation", "run", runID, "states", explored)
	return Result{RunID: runID, StatesExplored: explored}
}
