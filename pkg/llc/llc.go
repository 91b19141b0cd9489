package llc

import (
	"log/slog"
	"sync"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
)

// LLC is one socket's last-level-cache controller: what the processor
// actually reads and writes.
type LLC struct {
	mu     sync.Mutex
	logger *slog.Logger

	Socket       c3dmsg.Socket
	State        State
	Data         c3dmsg.Value
	PendingWrite c3dmsg.Value
}

func New(sock c3dmsg.Socket, logger *slog.Logger) *LLC {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLC{
		logger:       logger.With("service", "[LLC]", "socket", int(sock)),
		Socket:       sock,
		State:        I,
		Data:         c3dmsg.ValueUndefined,
		PendingWrite: c3dmsg.ValueUndefined,
	}
}

func (l *LLC) Clone() *LLC {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *l
	cp.mu = sync.Mutex{}
	return &cp
}

func (l *LLC) self() c3dmsg.Node { return c3dmsg.SocketNode(l.Socket) }

func (l *LLC) toDC(net c3dmsg.Sender, t c3dmsg.MessageType, vc c3dmsg.VC, data c3dmsg.Value) error {
	return net.Send(c3dmsg.Message{
		Type:     t,
		Dst:      l.self(),
		DstLevel: c3dmsg.LevelDC,
		Src:      l.self(),
		SrcLevel: c3dmsg.LevelLLC,
		VC:       vc,
		Data:     data,
	})
}

func (l *LLC) toDirectory(net c3dmsg.Sender, t c3dmsg.MessageType, vc c3dmsg.VC) error {
	return net.Send(c3dmsg.Message{
		Type:     t,
		Dst:      c3dmsg.DirectoryNode,
		DstLevel: c3dmsg.LevelUndefined,
		Src:      l.self(),
		SrcLevel: c3dmsg.LevelLLC,
		VC:       vc,
		Data:     c3dmsg.ValueUndefined,
	})
}

// CanRead reports whether a processor read is a legal event in the current
// state: only the three stable states admit a new processor request.
func (l *LLC) CanRead() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.State == I || l.State == S || l.State == M
}

func (l *LLC) CanWrite() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.State == I || l.State == S || l.State == M
}

// CanReplace reports whether a processor replacement is legal: only from a
// stable cached state.
func (l *LLC) CanReplace() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.State == S || l.State == M
}

// Read performs a processor read. If the line is already cached (S or M) it
// completes immediately and aux is checked against the returned value; if
// the line is invalid it issues a GETS miss and returns ValueUndefined with
// completed=false.
func (l *LLC) Read(net c3dmsg.Sender, aux c3dmsg.Aux) (value c3dmsg.Value, completed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.State {
	case I:
		l.State = IS
		return c3dmsg.ValueUndefined, false, l.toDC(net, c3dmsg.Gets, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case S, M:
		if err := aux.CheckRead(l.self(), l.Data); err != nil {
			return c3dmsg.ValueUndefined, false, err
		}
		return l.Data, true, nil
	default:
		return c3dmsg.ValueUndefined, false, c3dmsg.NewUnhandled(l.self(), l.State, c3dmsg.Load)
	}
}

// Write performs a processor write of v.
func (l *LLC) Write(v c3dmsg.Value, net c3dmsg.Sender, aux c3dmsg.Aux) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.State {
	case I:
		l.PendingWrite = v
		l.State = IM
		return l.toDC(net, c3dmsg.Getx, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case S:
		l.PendingWrite = v
		l.State = SM
		return l.toDC(net, c3dmsg.Upgrade, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case M:
		l.Data = v
		aux.RecordWrite(v)
		return nil
	default:
		return c3dmsg.NewUnhandled(l.self(), l.State, c3dmsg.Store)
	}
}

// Replace performs a processor replacement of the cached line.
func (l *LLC) Replace(net c3dmsg.Sender) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.State {
	case S:
		l.Data = c3dmsg.ValueUndefined
		l.State = I
		return nil
	case M:
		data := l.Data
		l.Data = c3dmsg.ValueUndefined
		l.State = MI
		return l.toDC(net, c3dmsg.Putx, c3dmsg.VCReq, data)
	default:
		return c3dmsg.NewUnhandled(l.self(), l.State, c3dmsg.Replacement)
	}
}

// Handle dispatches one message forwarded down from the local DC.
func (l *LLC) Handle(msg c3dmsg.Message, net c3dmsg.Sender, aux c3dmsg.Aux) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.State {
	case I:
		if msg.Type == c3dmsg.Inv {
			return true, l.toDirectory(net, c3dmsg.InvAck, c3dmsg.VCUnb)
		}
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	case IS:
		return l.handleIS(msg, net, aux)
	case IS_I:
		return l.handleISI(msg, net)
	case IM:
		return l.handleIM(msg, net, aux)
	case IM_S:
		return l.handleIMS(msg, net, aux)
	case S:
		return l.handleS(msg, net)
	case SM:
		return l.handleSM(msg, net, aux)
	case M:
		return l.handleM(msg, net)
	case MI:
		return l.handleMI(msg, net)
	case MS:
		return l.handleMS(msg, net)
	default:
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	}
}

func (l *LLC) handleIS(msg c3dmsg.Message, net c3dmsg.Sender, aux c3dmsg.Aux) (bool, error) {
	switch msg.Type {
	case c3dmsg.DATA:
		if err := aux.CheckRead(l.self(), msg.Data); err != nil {
			return false, err
		}
		l.Data = msg.Data
		l.State = S
		return true, nil
	case c3dmsg.Inv, c3dmsg.PutAck:
		l.State = IS_I
		return true, l.toDirectory(net, c3dmsg.InvAck, c3dmsg.VCUnb)
	default:
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	}
}

func (l *LLC) handleISI(msg c3dmsg.Message, _ c3dmsg.Sender) (bool, error) {
	if msg.Type == c3dmsg.DATA {
		l.State = I
		return true, nil
	}
	return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
}

func (l *LLC) handleIM(msg c3dmsg.Message, net c3dmsg.Sender, aux c3dmsg.Aux) (bool, error) {
	switch msg.Type {
	case c3dmsg.DATA:
		l.Data = l.PendingWrite
		aux.RecordWrite(l.Data)
		l.State = M
		return true, l.toDirectory(net, c3dmsg.DataAck, c3dmsg.VCUnb)
	case c3dmsg.UpgradeAck:
		// Defensive: the underlying DC request can resolve as an UPGRADE-ACK
		// instead of DATA depending on directory sharer bookkeeping even
		// though this LLC fell back to IM from SM; treat it the same as a
		// DATA completion since the previously cached value is still valid.
		aux.RecordWrite(l.PendingWrite)
		l.Data = l.PendingWrite
		l.State = M
		return true, l.toDirectory(net, c3dmsg.DataAck, c3dmsg.VCUnb)
	case c3dmsg.Downgrade:
		l.State = IM_S
		return true, l.toDirectory(net, c3dmsg.DowngradeAck, c3dmsg.VCUnb)
	case c3dmsg.Inv, c3dmsg.PutAck:
		l.State = I
		l.PendingWrite = c3dmsg.ValueUndefined
		return true, l.toDirectory(net, c3dmsg.InvAck, c3dmsg.VCUnb)
	default:
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	}
}

func (l *LLC) handleIMS(msg c3dmsg.Message, net c3dmsg.Sender, aux c3dmsg.Aux) (bool, error) {
	if msg.Type != c3dmsg.DATA {
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	}
	l.Data = l.PendingWrite
	aux.RecordWrite(l.Data)
	if err := l.toDC(net, c3dmsg.Putx, c3dmsg.VCRes, l.Data); err != nil {
		return false, err
	}
	l.State = MS
	return true, nil
}

func (l *LLC) handleS(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	if msg.Type == c3dmsg.Inv {
		l.Data = c3dmsg.ValueUndefined
		l.State = I
		return true, l.toDirectory(net, c3dmsg.InvAck, c3dmsg.VCUnb)
	}
	return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
}

func (l *LLC) handleSM(msg c3dmsg.Message, net c3dmsg.Sender, aux c3dmsg.Aux) (bool, error) {
	switch msg.Type {
	case c3dmsg.DATA:
		l.Data = l.PendingWrite
		aux.RecordWrite(l.Data)
		l.State = M
		return true, l.toDirectory(net, c3dmsg.DataAck, c3dmsg.VCUnb)
	case c3dmsg.UpgradeAck:
		l.Data = l.PendingWrite
		aux.RecordWrite(l.Data)
		l.State = M
		return true, l.toDirectory(net, c3dmsg.DataAck, c3dmsg.VCUnb)
	case c3dmsg.Inv:
		l.Data = c3dmsg.ValueUndefined
		l.State = IM
		return true, l.toDirectory(net, c3dmsg.InvAck, c3dmsg.VCUnb)
	default:
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	}
}

func (l *LLC) handleM(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.Downgrade:
		data := l.Data
		if err := l.toDC(net, c3dmsg.Putx, c3dmsg.VCRes, data); err != nil {
			return false, err
		}
		if err := l.toDirectory(net, c3dmsg.DowngradeAck, c3dmsg.VCUnb); err != nil {
			return false, err
		}
		l.State = MS
		return true, nil
	case c3dmsg.Inv:
		data := l.Data
		l.Data = c3dmsg.ValueUndefined
		l.State = MI
		return true, l.toDC(net, c3dmsg.Putx, c3dmsg.VCRes, data)
	default:
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	}
}

func (l *LLC) handleMI(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.Inv, c3dmsg.PutAck:
		l.State = I
		return true, nil
	case c3dmsg.Downgrade:
		return true, l.toDirectory(net, c3dmsg.DowngradeAck, c3dmsg.VCUnb)
	default:
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	}
}

func (l *LLC) handleMS(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.PutAck:
		l.State = S
		return true, nil
	case c3dmsg.Inv:
		l.Data = c3dmsg.ValueUndefined
		l.State = MI
		return true, l.toDirectory(net, c3dmsg.InvAck, c3dmsg.VCUnb)
	default:
		return false, c3dmsg.NewUnhandled(l.self(), l.State, msg.Type)
	}
}
