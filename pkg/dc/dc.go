package dc

import (
	"log/slog"
	"sync"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
)

// DC is one socket's DRAM-cache controller.
type DC struct {
	mu     sync.Mutex
	logger *slog.Logger

	Socket c3dmsg.Socket
	State  State
	Data   c3dmsg.Value
}

func New(sock c3dmsg.Socket, logger *slog.Logger) *DC {
	if logger == nil {
		logger = slog.Default()
	}
	return &DC{
		logger: logger.With("service", "[DC]", "socket", int(sock)),
		Socket: sock,
		State:  I,
		Data:   c3dmsg.ValueUndefined,
	}
}

func (dc *DC) Clone() *DC {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	cp := *dc
	cp.mu = sync.Mutex{}
	return &cp
}

func (dc *DC) self() c3dmsg.Node { return c3dmsg.SocketNode(dc.Socket) }

func (dc *DC) toDirectory(net c3dmsg.Sender, t c3dmsg.MessageType, vc c3dmsg.VC, data c3dmsg.Value) error {
	return net.Send(c3dmsg.Message{
		Type:     t,
		Dst:      c3dmsg.DirectoryNode,
		DstLevel: c3dmsg.LevelUndefined,
		Src:      dc.self(),
		SrcLevel: c3dmsg.LevelDC,
		VC:       vc,
		Data:     data,
	})
}

func (dc *DC) toLLC(net c3dmsg.Sender, t c3dmsg.MessageType, vc c3dmsg.VC, data c3dmsg.Value) error {
	return net.Send(c3dmsg.Message{
		Type:     t,
		Dst:      dc.self(),
		DstLevel: c3dmsg.LevelLLC,
		Src:      dc.self(),
		SrcLevel: c3dmsg.LevelDC,
		VC:       vc,
		Data:     data,
	})
}

// CanReplace reports whether an environment-driven DC eviction is legal:
// only from S. M is left out deliberately — it mirrors the owning LLC's own
// exclusive copy, and unlike the LLC's own Replace the DC has no transient
// state to wait out the directory's PUT-ACK in independently of the LLC.
func (dc *DC) CanReplace() bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.State == S
}

// Replace silently deallocates a shared DC entry, independent of whatever
// the local LLC is doing with its own copy of the line.
func (dc *DC) Replace(net c3dmsg.Sender) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.State != S {
		return c3dmsg.NewUnhandled(dc.self(), dc.State, c3dmsg.Replacement)
	}
	dc.Data = c3dmsg.ValueUndefined
	dc.State = I
	return nil
}

// Handle dispatches one delivered message, from the directory or from the
// local LLC (a GETS/GETX/UPGRADE/PUTX request the LLC addressed to its own
// socket's DC level).
func (dc *DC) Handle(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	// DOWNGRADE and PUT-ACK only ever matter to the LLC; the DC's own cached
	// copy (if any) is untouched, so every state forwards them unconditionally.
	switch msg.Type {
	case c3dmsg.Downgrade:
		return true, dc.toLLC(net, c3dmsg.Downgrade, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case c3dmsg.PutAck:
		return true, dc.toLLC(net, c3dmsg.PutAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined)
	}

	switch dc.State {
	case I:
		return dc.handleI(msg, net)
	case IS:
		return dc.handleIS(msg, net)
	case IS_I:
		return dc.handleISI(msg, net)
	case IM:
		return dc.handleIM(msg, net)
	case S:
		return dc.handleS(msg, net)
	case M:
		return dc.handleM(msg, net)
	case SM:
		return dc.handleSM(msg, net)
	case SM_U:
		return dc.handleSMU(msg, net)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}

func fromLocalLLC(msg c3dmsg.Message) bool { return msg.SrcLevel == c3dmsg.LevelLLC }

func (dc *DC) handleI(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch {
	case msg.Type == c3dmsg.Gets && fromLocalLLC(msg):
		dc.State = IS
		return true, dc.toDirectory(net, c3dmsg.Gets, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case msg.Type == c3dmsg.Getx && fromLocalLLC(msg):
		dc.State = IM
		return true, dc.toDirectory(net, c3dmsg.Getx, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case msg.Type == c3dmsg.Upgrade && fromLocalLLC(msg):
		dc.State = SM_U
		return true, dc.toDirectory(net, c3dmsg.Upgrade, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case msg.Type == c3dmsg.Putx && fromLocalLLC(msg):
		return true, dc.toDirectory(net, c3dmsg.Putx, c3dmsg.VCRes, msg.Data)
	case msg.Type == c3dmsg.Inv:
		return true, dc.toLLC(net, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}

func (dc *DC) handleIS(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch {
	case msg.Type == c3dmsg.DATA:
		dc.Data = msg.Data
		dc.State = S
		return true, dc.toLLC(net, c3dmsg.DATA, c3dmsg.VCRes, msg.Data)
	case msg.Type == c3dmsg.Inv:
		dc.State = IS_I
		return true, dc.toLLC(net, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case msg.Type == c3dmsg.Putx && fromLocalLLC(msg):
		return true, dc.toDirectory(net, c3dmsg.Putx, c3dmsg.VCRes, msg.Data)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}

func (dc *DC) handleISI(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.DATA:
		// Stale: the LLC already fell back to IS_I on its own INV forward and
		// is waiting for this DATA to discard in turn, not to cache.
		dc.State = I
		return true, dc.toLLC(net, c3dmsg.DATA, c3dmsg.VCRes, msg.Data)
	case c3dmsg.Inv:
		dc.State = I
		return true, dc.toDirectory(net, c3dmsg.InvAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}

func (dc *DC) handleIM(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch {
	case msg.Type == c3dmsg.DATA:
		dc.Data = msg.Data
		dc.State = M
		return true, dc.toLLC(net, c3dmsg.DATA, c3dmsg.VCRes, msg.Data)
	case msg.Type == c3dmsg.Inv:
		return true, dc.toDirectory(net, c3dmsg.InvAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined)
	case msg.Type == c3dmsg.Putx && fromLocalLLC(msg):
		return true, dc.toDirectory(net, c3dmsg.Putx, c3dmsg.VCRes, msg.Data)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}

func (dc *DC) handleS(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch {
	case msg.Type == c3dmsg.Gets && fromLocalLLC(msg):
		return true, dc.toLLC(net, c3dmsg.DATA, c3dmsg.VCRes, dc.Data)
	case msg.Type == c3dmsg.Getx && fromLocalLLC(msg):
		dc.State = SM
		return true, dc.toDirectory(net, c3dmsg.Getx, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case msg.Type == c3dmsg.Upgrade && fromLocalLLC(msg):
		dc.State = SM_U
		return true, dc.toDirectory(net, c3dmsg.Upgrade, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	case msg.Type == c3dmsg.Inv:
		dc.Data = c3dmsg.ValueUndefined
		dc.State = I
		return true, dc.toLLC(net, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}

func (dc *DC) handleM(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch {
	case msg.Type == c3dmsg.Putx && fromLocalLLC(msg):
		dc.Data = msg.Data
		dc.State = S
		return true, dc.toDirectory(net, c3dmsg.Putx, c3dmsg.VCRes, msg.Data)
	case msg.Type == c3dmsg.Inv:
		dc.Data = c3dmsg.ValueUndefined
		dc.State = I
		return true, dc.toLLC(net, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}

func (dc *DC) handleSM(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.DATA:
		dc.Data = msg.Data
		dc.State = M
		return true, dc.toLLC(net, c3dmsg.DATA, c3dmsg.VCRes, msg.Data)
	case c3dmsg.Inv:
		dc.State = IM
		return true, dc.toLLC(net, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}

func (dc *DC) handleSMU(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.DATA:
		dc.Data = msg.Data
		dc.State = M
		return true, dc.toLLC(net, c3dmsg.DATA, c3dmsg.VCRes, msg.Data)
	case c3dmsg.UpgradeAck:
		dc.State = M
		return true, dc.toLLC(net, c3dmsg.UpgradeAck, c3dmsg.VCRes, c3dmsg.ValueUndefined)
	case c3dmsg.Inv:
		dc.State = IM
		return true, dc.toLLC(net, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined)
	default:
		return false, c3dmsg.NewUnhandled(dc.self(), dc.State, msg.Type)
	}
}
