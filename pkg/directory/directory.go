package directory

import (
	"log/slog"
	"sync"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
)

// Directory is the memory-side controller for one cache line. Owner and
// Sharers are repurposed across states the way the state table describes:
// in MS2/MS1, Owner names the pending requester that data is headed to, not
// the current data owner; in S, Sharers is the set of sockets holding a
// readable copy, and the *_IA states clear it and count the outstanding
// INV-ACKs in needAcks instead.
type Directory struct {
	mu     sync.Mutex
	logger *slog.Logger

	sockets int
	State   State
	Owner   c3dmsg.Node
	Sharers sharerSet
	Data    c3dmsg.Value

	needAcks int
	evicting bool

	gotDowngradeAck bool
	gotPutx         bool
}

// New builds a directory for a line shared by the given number of sockets,
// starting uncached (state I) with a defined initial value so early reads
// have something to return.
func New(sockets int, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		logger:  logger.With("service", "[DIR]"),
		sockets: sockets,
		State:   I,
		Owner:   c3dmsg.DirectoryNode,
		Sharers: newSharerSet(),
		Data:    0,
	}
}

// Clone deep-copies enough state for the model checker to fork exploration
// without two Directory values sharing a sharer set or a lock.
func (d *Directory) Clone() *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &Directory{
		logger:          d.logger,
		sockets:         d.sockets,
		State:           d.State,
		Owner:           d.Owner,
		Sharers:         d.Sharers.clone(),
		Data:            d.Data,
		needAcks:        d.needAcks,
		evicting:        d.evicting,
		gotDowngradeAck: d.gotDowngradeAck,
		gotPutx:         d.gotPutx,
	}
}

func (d *Directory) sendToSocketDC(net c3dmsg.Sender, sock c3dmsg.Socket, t c3dmsg.MessageType, vc c3dmsg.VC, data c3dmsg.Value) error {
	return net.Send(c3dmsg.Message{
		Type:     t,
		Dst:      c3dmsg.SocketNode(sock),
		DstLevel: c3dmsg.LevelDC,
		Src:      c3dmsg.DirectoryNode,
		SrcLevel: c3dmsg.LevelUndefined,
		VC:       vc,
		Data:     data,
	})
}

// invalidateOthers sends INV to every socket in sharers except requester,
// returning the number of INV messages sent (the acks still outstanding).
func (d *Directory) invalidateOthers(net c3dmsg.Sender, sharers sharerSet, requester c3dmsg.Socket, hasRequester bool) (int, error) {
	n := 0
	for _, sock := range sharers.Sockets() {
		if hasRequester && sock == requester {
			continue
		}
		if err := d.sendToSocketDC(net, sock, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// HandleMessage dispatches one in-flight message addressed to the
// directory. It returns (true, nil) if the message was consumed, (false,
// nil) if it was an unexpected request that must stall in a transient
// state, or a non-nil *c3dmsg.ProtocolViolation for anything else.
func (d *Directory) HandleMessage(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.State {
	case I:
		return d.handleI(msg, net)
	case S:
		return d.handleS(msg, net)
	case M:
		return d.handleM(msg, net)
	case IM_IA, SM_IA:
		return d.handleCollectIA(msg, net)
	case SM_U_IA:
		return d.handleSMUIA(msg, net)
	case IM_DA, SM_DA:
		return d.handleDA(msg, net)
	case MM_P:
		return d.handleMMP(msg, net)
	case MM_DA:
		return d.handleDA(msg, net)
	case MS2:
		return d.handleMS2(msg, net)
	case MS1:
		return d.handleMS1(msg, net)
	case MI:
		return d.handleMI(msg, net)
	default:
		return false, c3dmsg.NewUnhandled(c3dmsg.DirectoryNode, d.State, msg.Type)
	}
}

func (d *Directory) stallIfRequest(msg c3dmsg.Message) (bool, error) {
	switch msg.Type {
	case c3dmsg.Gets, c3dmsg.Getx, c3dmsg.Upgrade:
		return false, nil
	default:
		return false, c3dmsg.NewUnhandled(c3dmsg.DirectoryNode, d.State, msg.Type)
	}
}

func (d *Directory) handleI(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.Gets:
		sock := msg.Src.Socket()
		if err := d.sendToSocketDC(net, sock, c3dmsg.DATA, c3dmsg.VCRes, d.Data); err != nil {
			return false, err
		}
		d.Sharers = newSharerSet()
		d.Sharers.Add(sock)
		d.State = S
		return true, nil
	case c3dmsg.Getx, c3dmsg.Upgrade:
		sock := msg.Src.Socket()
		n, err := d.invalidateOthers(net, newSharerSet(), sock, true)
		if err != nil {
			return false, err
		}
		d.Owner = msg.Src
		d.needAcks = n
		d.Sharers = newSharerSet()
		d.State = IM_IA
		return true, d.completeIfReady(net, IM_DA)
	default:
		return false, c3dmsg.NewUnhandled(c3dmsg.DirectoryNode, d.State, msg.Type)
	}
}

func (d *Directory) handleS(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.Gets:
		sock := msg.Src.Socket()
		d.Sharers.Add(sock)
		return true, d.sendToSocketDC(net, sock, c3dmsg.DATA, c3dmsg.VCRes, d.Data)
	case c3dmsg.Getx:
		sock := msg.Src.Socket()
		if d.Sharers.Len() == 1 && d.Sharers.Has(sock) {
			return false, c3dmsg.NewViolation(c3dmsg.DirectoryNode, d.State, msg.Type.String(),
				"GETX arrived from the sole current sharer; a write from a cached-shared line must use UPGRADE")
		}
		n, err := d.invalidateOthers(net, d.Sharers, sock, true)
		if err != nil {
			return false, err
		}
		d.Owner = msg.Src
		d.needAcks = n
		d.Sharers = newSharerSet()
		d.State = SM_IA
		return true, d.completeIfReady(net, SM_DA)
	case c3dmsg.Upgrade:
		sock := msg.Src.Socket()
		wasSharer := d.Sharers.Has(sock)
		n, err := d.invalidateOthers(net, d.Sharers, sock, true)
		if err != nil {
			return false, err
		}
		d.Owner = msg.Src
		d.needAcks = n
		d.Sharers = newSharerSet()
		if wasSharer {
			d.State = SM_U_IA
			return true, d.completeSMUIfReady(net)
		}
		d.State = SM_IA
		return true, d.completeIfReady(net, SM_DA)
	default:
		return false, c3dmsg.NewUnhandled(c3dmsg.DirectoryNode, d.State, msg.Type)
	}
}

func (d *Directory) handleM(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.Gets:
		sock := msg.Src.Socket()
		oldOwner := d.Owner.Socket()
		if err := d.sendToSocketDC(net, oldOwner, c3dmsg.Downgrade, c3dmsg.VCReq, c3dmsg.ValueUndefined); err != nil {
			return false, err
		}
		d.Sharers = newSharerSet()
		d.Sharers.Add(sock)
		d.Sharers.Add(oldOwner)
		d.Owner = msg.Src
		d.gotDowngradeAck = false
		d.gotPutx = false
		d.State = MS2
		return true, nil
	case c3dmsg.Getx, c3dmsg.Upgrade:
		oldOwner := d.Owner.Socket()
		if err := d.sendToSocketDC(net, oldOwner, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined); err != nil {
			return false, err
		}
		d.Sharers = newSharerSet()
		d.Owner = msg.Src
		d.State = MM_P
		return true, nil
	case c3dmsg.Putx:
		d.Data = msg.Data
		sock := msg.Src.Socket()
		d.Owner = c3dmsg.DirectoryNode
		d.State = I
		return true, d.sendToSocketDC(net, sock, c3dmsg.PutAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined)
	default:
		return false, c3dmsg.NewUnhandled(c3dmsg.DirectoryNode, d.State, msg.Type)
	}
}

// handleCollectIA is IM_IA/SM_IA: collect INV-ACKs, then hand DATA to the
// new owner and wait for its DATA-ACK.
func (d *Directory) handleCollectIA(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	if msg.Type != c3dmsg.InvAck {
		return d.stallIfRequest(msg)
	}
	d.needAcks--
	next := IM_DA
	if d.State == SM_IA {
		next = SM_DA
	}
	return true, d.completeIfReady(net, next)
}

func (d *Directory) handleSMUIA(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	if msg.Type != c3dmsg.InvAck {
		return d.stallIfRequest(msg)
	}
	d.needAcks--
	return true, d.completeSMUIfReady(net)
}

// completeIfReady finishes an *_IA state once needAcks reaches zero: either
// the reconciliation path for directory-replace(S) (straight back to I, no
// new owner to supply) or the normal path (DATA to the new owner, move to
// next awaiting its DATA-ACK).
func (d *Directory) completeIfReady(net c3dmsg.Sender, next State) error {
	if d.needAcks > 0 {
		return nil
	}
	if d.evicting {
		d.evicting = false
		d.Owner = c3dmsg.DirectoryNode
		d.State = I
		return nil
	}
	if err := d.sendToSocketDC(net, d.Owner.Socket(), c3dmsg.DATA, c3dmsg.VCRes, d.Data); err != nil {
		return err
	}
	d.State = next
	return nil
}

func (d *Directory) completeSMUIfReady(net c3dmsg.Sender) error {
	if d.needAcks > 0 {
		return nil
	}
	if err := d.sendToSocketDC(net, d.Owner.Socket(), c3dmsg.UpgradeAck, c3dmsg.VCRes, c3dmsg.ValueUndefined); err != nil {
		return err
	}
	d.State = SM_DA
	return nil
}

// handleDA is IM_DA/SM_DA/MM_DA: waiting for the new owner's DATA-ACK, with
// the early-PUTX race (the new owner was itself replaced before acking)
// handled uniformly.
func (d *Directory) handleDA(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.DataAck:
		d.State = M
		return true, nil
	case c3dmsg.Putx:
		d.Data = msg.Data
		sock := msg.Src.Socket()
		d.Owner = c3dmsg.DirectoryNode
		d.State = MI
		return true, d.sendToSocketDC(net, sock, c3dmsg.PutAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined)
	default:
		return d.stallIfRequest(msg)
	}
}

// handleMMP is MM_P: wait for the evicted owner's PUTX, ack it directly (it
// has no further role in this transfer), and forward the data on to the new
// owner as DATA.
func (d *Directory) handleMMP(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	if msg.Type != c3dmsg.Putx {
		return d.stallIfRequest(msg)
	}
	d.Data = msg.Data
	evicted := msg.Src.Socket()
	if err := d.sendToSocketDC(net, evicted, c3dmsg.PutAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined); err != nil {
		return false, err
	}
	if err := d.sendToSocketDC(net, d.Owner.Socket(), c3dmsg.DATA, c3dmsg.VCRes, d.Data); err != nil {
		return false, err
	}
	d.State = MM_DA
	return true, nil
}

func (d *Directory) handleMS2(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.DowngradeAck:
		d.gotDowngradeAck = true
	case c3dmsg.Putx:
		d.Data = msg.Data
		d.gotPutx = true
	default:
		return d.stallIfRequest(msg)
	}
	d.State = MS1
	return true, d.completeMSIfReady(net)
}

func (d *Directory) handleMS1(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.DowngradeAck:
		d.gotDowngradeAck = true
	case c3dmsg.Putx:
		d.Data = msg.Data
		d.gotPutx = true
	default:
		return d.stallIfRequest(msg)
	}
	return true, d.completeMSIfReady(net)
}

func (d *Directory) completeMSIfReady(net c3dmsg.Sender) error {
	if !d.gotDowngradeAck || !d.gotPutx {
		return nil
	}
	requester := d.Owner.Socket()
	if err := d.sendToSocketDC(net, requester, c3dmsg.DATA, c3dmsg.VCRes, d.Data); err != nil {
		return err
	}
	oldOwner := c3dmsg.Socket(-1)
	for _, sock := range d.Sharers.Sockets() {
		if sock != requester {
			oldOwner = sock
			break
		}
	}
	if oldOwner >= 0 {
		if err := d.sendToSocketDC(net, oldOwner, c3dmsg.PutAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined); err != nil {
			return err
		}
	}
	d.Owner = c3dmsg.DirectoryNode
	d.gotDowngradeAck = false
	d.gotPutx = false
	d.State = S
	return nil
}

// handleMI drains whichever stale completion arrives (PUTX/DATA-ACK/INV-ACK)
// and always lands in I.
func (d *Directory) handleMI(msg c3dmsg.Message, net c3dmsg.Sender) (bool, error) {
	switch msg.Type {
	case c3dmsg.Putx:
		d.Data = msg.Data
		sock := msg.Src.Socket()
		d.Owner = c3dmsg.DirectoryNode
		d.State = I
		return true, d.sendToSocketDC(net, sock, c3dmsg.PutAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined)
	case c3dmsg.DataAck, c3dmsg.InvAck:
		d.Owner = c3dmsg.DirectoryNode
		d.State = I
		return true, nil
	default:
		return d.stallIfRequest(msg)
	}
}

// ReplaceSEnabled reports whether directory-replace(S) may fire: the
// directory is stably shared with at least one sharer to evict.
func (d *Directory) ReplaceSEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.State == S && d.Sharers.Len() > 0
}

// ReplaceMEnabled reports whether directory-replace(M) may fire.
func (d *Directory) ReplaceMEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.State == M
}

// ReplaceS is the environment-invoked reclamation of every current sharer,
// reusing the SM_IA collection machinery with no real requester behind it:
// when the last INV-ACK lands the line goes straight to I instead of
// supplying DATA to anyone.
func (d *Directory) ReplaceS(net c3dmsg.Sender) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.State != S {
		return c3dmsg.NewViolation(c3dmsg.DirectoryNode, d.State, "directory-replace(S)", "only legal from state S")
	}
	n, err := d.invalidateOthers(net, d.Sharers, 0, false)
	if err != nil {
		return err
	}
	d.Sharers = newSharerSet()
	d.needAcks = n
	d.evicting = true
	d.State = SM_IA
	return d.completeIfReady(net, SM_DA)
}

// ReplaceM is the environment-invoked forced eviction of the current owner:
// send it INV and wait in MI for the resulting PUTX, identical to the drain
// path the *_DA states already use when an early PUTX arrives.
func (d *Directory) ReplaceM(net c3dmsg.Sender) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.State != M {
		return c3dmsg.NewViolation(c3dmsg.DirectoryNode, d.State, "directory-replace(M)", "only legal from state M")
	}
	if err := d.sendToSocketDC(net, d.Owner.Socket(), c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined); err != nil {
		return err
	}
	d.State = MI
	return nil
}
