package directory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
	"github.com/samsamfire/c3d/pkg/directory"
)

// recorder is a minimal c3dmsg.Sender fake that just appends every sent
// message, so a test can assert on exactly what a controller emitted
// without wiring a full network.
type recorder struct {
	sent []c3dmsg.Message
}

func (r *recorder) Send(m c3dmsg.Message) error {
	r.sent = append(r.sent, m)
	return nil
}

func gets(sock c3dmsg.Socket) c3dmsg.Message {
	return c3dmsg.Message{Type: c3dmsg.Gets, Dst: c3dmsg.DirectoryNode, DstLevel: c3dmsg.LevelUndefined,
		Src: c3dmsg.SocketNode(sock), SrcLevel: c3dmsg.LevelDC, VC: c3dmsg.VCReq, Data: c3dmsg.ValueUndefined}
}

func getx(sock c3dmsg.Socket) c3dmsg.Message {
	return c3dmsg.Message{Type: c3dmsg.Getx, Dst: c3dmsg.DirectoryNode, DstLevel: c3dmsg.LevelUndefined,
		Src: c3dmsg.SocketNode(sock), SrcLevel: c3dmsg.LevelDC, VC: c3dmsg.VCReq, Data: c3dmsg.ValueUndefined}
}

func upgrade(sock c3dmsg.Socket) c3dmsg.Message {
	return c3dmsg.Message{Type: c3dmsg.Upgrade, Dst: c3dmsg.DirectoryNode, DstLevel: c3dmsg.LevelUndefined,
		Src: c3dmsg.SocketNode(sock), SrcLevel: c3dmsg.LevelDC, VC: c3dmsg.VCReq, Data: c3dmsg.ValueUndefined}
}

func invAck(sock c3dmsg.Socket) c3dmsg.Message {
	return c3dmsg.Message{Type: c3dmsg.InvAck, Dst: c3dmsg.DirectoryNode, DstLevel: c3dmsg.LevelUndefined,
		Src: c3dmsg.SocketNode(sock), SrcLevel: c3dmsg.LevelLLC, VC: c3dmsg.VCUnb, Data: c3dmsg.ValueUndefined}
}

func TestGetsFromIRecordsSharerAndMovesToS(t *testing.T) {
	d := directory.New(3, nil)
	rec := &recorder{}

	consumed, err := d.HandleMessage(gets(0), rec)
	require.NoError(t, err)
	assert.True(t, consumed)

	assert.Equal(t, directory.S, d.State)
	require.Len(t, rec.sent, 1)
	assert.Equal(t, c3dmsg.DATA, rec.sent[0].Type)
	assert.Equal(t, c3dmsg.SocketNode(0), rec.sent[0].Dst)
}

func TestGetxFromSoleSharerIsAViolation(t *testing.T) {
	d := directory.New(2, nil)
	rec := &recorder{}
	_, err := d.HandleMessage(gets(0), rec)
	require.NoError(t, err)
	require.Equal(t, directory.S, d.State)

	_, err = d.HandleMessage(getx(0), rec)
	require.Error(t, err)
	var viol *c3dmsg.ProtocolViolation
	require.ErrorAs(t, err, &viol)
}

func TestUpgradeFromSoleSharerCompletesImmediately(t *testing.T) {
	d := directory.New(2, nil)
	rec := &recorder{}
	_, err := d.HandleMessage(gets(0), rec)
	require.NoError(t, err)

	consumed, err := d.HandleMessage(upgrade(0), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, directory.SM_DA, d.State)
	require.Len(t, rec.sent, 2)
	assert.Equal(t, c3dmsg.UpgradeAck, rec.sent[1].Type)
}

func TestUpgradeWithOtherSharerInvalidatesFirst(t *testing.T) {
	d := directory.New(3, nil)
	rec := &recorder{}
	require.NoError(t, requireConsumed(d.HandleMessage(gets(0), rec)))
	require.NoError(t, requireConsumed(d.HandleMessage(gets(1), rec)))

	consumed, err := d.HandleMessage(upgrade(0), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, directory.SM_U_IA, d.State)

	// still waiting on socket 1's INV-ACK
	require.Len(t, rec.sent, 3) // DATA, DATA, INV
	assert.Equal(t, c3dmsg.Inv, rec.sent[2].Type)
	assert.Equal(t, c3dmsg.SocketNode(1), rec.sent[2].Dst)

	consumed, err = d.HandleMessage(invAck(1), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, directory.SM_DA, d.State)
}

func TestReplaceSRequiresStateS(t *testing.T) {
	d := directory.New(2, nil)
	rec := &recorder{}
	err := d.ReplaceS(rec)
	require.Error(t, err)
}

func TestReplaceSEvictsAllSharers(t *testing.T) {
	d := directory.New(2, nil)
	rec := &recorder{}
	require.NoError(t, requireConsumed(d.HandleMessage(gets(0), rec)))
	require.True(t, d.ReplaceSEnabled())

	require.NoError(t, d.ReplaceS(rec))
	assert.Equal(t, directory.SM_IA, d.State)

	_, err := d.HandleMessage(invAck(0), rec)
	require.NoError(t, err)
	assert.Equal(t, directory.I, d.State)
	assert.True(t, d.Owner.IsDirectory())
}

func TestReplaceMDrainsOwnerViaPutx(t *testing.T) {
	d := directory.New(2, nil)
	rec := &recorder{}
	require.NoError(t, requireConsumed(d.HandleMessage(getx(0), rec)))
	// with no other sharers to invalidate, needAcks was already 0 so the
	// directory fell straight through IM_IA to IM_DA in the same step.
	require.Equal(t, directory.IM_DA, d.State)

	_, err := d.HandleMessage(c3dmsg.Message{Type: c3dmsg.DataAck, Dst: c3dmsg.DirectoryNode, DstLevel: c3dmsg.LevelUndefined,
		Src: c3dmsg.SocketNode(0), SrcLevel: c3dmsg.LevelLLC, VC: c3dmsg.VCUnb}, rec)
	require.NoError(t, err)
	require.Equal(t, directory.M, d.State)
	require.True(t, d.ReplaceMEnabled())

	require.NoError(t, d.ReplaceM(rec))
	assert.Equal(t, directory.MI, d.State)

	putx := c3dmsg.Message{Type: c3dmsg.Putx, Dst: c3dmsg.DirectoryNode, DstLevel: c3dmsg.LevelUndefined,
		Src: c3dmsg.SocketNode(0), SrcLevel: c3dmsg.LevelDC, VC: c3dmsg.VCRes, Data: 5}
	consumed, err := d.HandleMessage(putx, rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, directory.I, d.State)
	assert.Equal(t, c3dmsg.Value(5), d.Data)
}

func requireConsumed(consumed bool, err error) error {
	if err != nil {
		return err
	}
	if !consumed {
		return assertionError("message was not consumed")
	}
	return nil
}

type assertionError string

func (a assertionError) Error() string { return string(a) }
