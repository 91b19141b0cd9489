// Package environment is the nondeterministic driver: at every step it
// enumerates every rule currently enabled across all controllers and lets a
// caller (the explorer, a scenario script, or a human) pick one to fire.
// Firing a rule is the only way state changes; nothing here runs on its own
// clock.
package environment

import (
	"fmt"
	"log/slog"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
	"github.com/samsamfire/c3d/pkg/dc"
	"github.com/samsamfire/c3d/pkg/directory"
	"github.com/samsamfire/c3d/pkg/llc"
	"github.com/samsamfire/c3d/pkg/network"
)

// Config parameterises one Environment instance.
type Config struct {
	Sockets         int
	MailboxCapacity int
	Values          []c3dmsg.Value
}

// Environment owns one directory, one DC+LLC pair per socket, the network
// connecting them, and the auxiliary last-written tracker.
type Environment struct {
	logger *slog.Logger
	cfg    Config

	Net       *network.Network
	Directory *directory.Directory
	DCs       []*dc.DC
	LLCs      []*llc.LLC
	Aux       *c3dmsg.LastWritten
}

func New(cfg Config, logger *slog.Logger) *Environment {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MailboxCapacity == 0 {
		cfg.MailboxCapacity = network.DefaultCapacity(cfg.Sockets)
	}
	if len(cfg.Values) == 0 {
		cfg.Values = []c3dmsg.Value{0, 1}
	}
	env := &Environment{
		logger:    logger.With("service", "[ENV]"),
		cfg:       cfg,
		Net:       network.New(cfg.Sockets, cfg.MailboxCapacity, logger),
		Directory: directory.New(cfg.Sockets, logger),
		Aux:       &c3dmsg.LastWritten{},
	}
	for s := 0; s < cfg.Sockets; s++ {
		env.DCs = append(env.DCs, dc.New(c3dmsg.Socket(s), logger))
		env.LLCs = append(env.LLCs, llc.New(c3dmsg.Socket(s), logger))
	}
	return env
}

// Clone deep-copies every controller so the explorer can fork a branch of
// the search without aliasing mutable state with the parent.
func (e *Environment) Clone() *Environment {
	aux := *e.Aux
	cp := &Environment{
		logger:    e.logger,
		cfg:       e.cfg,
		Net:       e.Net.Clone(),
		Directory: e.Directory.Clone(),
		Aux:       &aux,
	}
	for _, d := range e.DCs {
		cp.DCs = append(cp.DCs, d.Clone())
	}
	for _, l := range e.LLCs {
		cp.LLCs = append(cp.LLCs, l.Clone())
	}
	return cp
}

// EnabledRules enumerates every rule the driver may fire from the current
// configuration.
func (e *Environment) EnabledRules() []Rule {
	var rules []Rule
	for s := 0; s < e.cfg.Sockets; s++ {
		sock := c3dmsg.Socket(s)
		l := e.LLCs[s]
		if l.CanRead() {
			rules = append(rules, Rule{Kind: KindRead, Socket: sock})
		}
		if l.CanWrite() {
			for _, v := range e.cfg.Values {
				rules = append(rules, Rule{Kind: KindWrite, Socket: sock, WriteValue: v})
			}
		}
		if l.CanReplace() {
			rules = append(rules, Rule{Kind: KindReplace, Socket: sock})
		}
		if e.DCs[s].CanReplace() {
			rules = append(rules, Rule{Kind: KindReplaceDC, Socket: sock})
		}
	}
	if e.Directory.ReplaceSEnabled() {
		rules = append(rules, Rule{Kind: KindReplaceDirS})
	}
	if e.Directory.ReplaceMEnabled() {
		rules = append(rules, Rule{Kind: KindReplaceDirM})
	}
	for _, p := range e.Net.Pending() {
		rules = append(rules, Rule{Kind: KindReceive, Node: p.Node, Index: p.Index, Msg: p.Msg})
	}
	return rules
}

// Fire applies one rule previously returned by EnabledRules. A non-nil
// error is always fatal — a *c3dmsg.ProtocolViolation, a wrapped
// c3dmsg.ErrSCViolation, ErrMailboxFull or ErrMalformed from the step, or an
// unknown rule kind — there is no recoverable failure mode here.
func (e *Environment) Fire(r Rule) error {
	switch r.Kind {
	case KindRead:
		_, _, err := e.LLCs[r.Socket].Read(e.Net, e.Aux)
		return err
	case KindWrite:
		return e.LLCs[r.Socket].Write(r.WriteValue, e.Net, e.Aux)
	case KindReplace:
		return e.LLCs[r.Socket].Replace(e.Net)
	case KindReplaceDC:
		return e.DCs[r.Socket].Replace(e.Net)
	case KindReplaceDirS:
		return e.Directory.ReplaceS(e.Net)
	case KindReplaceDirM:
		return e.Directory.ReplaceM(e.Net)
	case KindReceive:
		return e.fireReceive(r)
	default:
		return fmt.Errorf("environment: unknown rule kind %v", r.Kind)
	}
}

func (e *Environment) fireReceive(r Rule) error {
	var handlerErr error
	consumed, err := e.Net.Deliver(r.Node, r.Index, func(msg c3dmsg.Message) bool {
		ok, herr := e.dispatch(msg)
		if herr != nil {
			handlerErr = herr
			return false
		}
		return ok
	})
	if handlerErr != nil {
		return handlerErr
	}
	if err != nil {
		return err
	}
	_ = consumed
	return nil
}

func (e *Environment) dispatch(msg c3dmsg.Message) (bool, error) {
	if msg.Dst.IsDirectory() {
		return e.Directory.HandleMessage(msg, e.Net)
	}
	sock := msg.Dst.Socket()
	switch msg.DstLevel {
	case c3dmsg.LevelDC:
		return e.DCs[sock].Handle(msg, e.Net)
	case c3dmsg.LevelLLC:
		return e.LLCs[sock].Handle(msg, e.Net, e.Aux)
	default:
		return false, c3dmsg.NewViolation(msg.Dst, stateUnknown{}, msg.Type.String(), "message addressed to a socket with an undefined level")
	}
}

type stateUnknown struct{}

func (stateUnknown) String() string { return "?" }
