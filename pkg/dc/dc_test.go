package dc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
	"github.com/samsamfire/c3d/pkg/dc"
)

type recorder struct {
	sent []c3dmsg.Message
}

func (r *recorder) Send(m c3dmsg.Message) error {
	r.sent = append(r.sent, m)
	return nil
}

func fromLLC(sock c3dmsg.Socket, t c3dmsg.MessageType, vc c3dmsg.VC, data c3dmsg.Value) c3dmsg.Message {
	return c3dmsg.Message{Type: t, Dst: c3dmsg.SocketNode(sock), DstLevel: c3dmsg.LevelDC,
		Src: c3dmsg.SocketNode(sock), SrcLevel: c3dmsg.LevelLLC, VC: vc, Data: data}
}

func fromDirectory(sock c3dmsg.Socket, t c3dmsg.MessageType, vc c3dmsg.VC, data c3dmsg.Value) c3dmsg.Message {
	return c3dmsg.Message{Type: t, Dst: c3dmsg.SocketNode(sock), DstLevel: c3dmsg.LevelDC,
		Src: c3dmsg.DirectoryNode, SrcLevel: c3dmsg.LevelUndefined, VC: vc, Data: data}
}

func TestLocalGetsForwardsToDirectory(t *testing.T) {
	d := dc.New(0, nil)
	rec := &recorder{}

	consumed, err := d.Handle(fromLLC(0, c3dmsg.Gets, c3dmsg.VCReq, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, dc.IS, d.State)
	require.Len(t, rec.sent, 1)
	assert.True(t, rec.sent[0].Dst.IsDirectory())
	assert.Equal(t, c3dmsg.Gets, rec.sent[0].Type)
}

func TestDataCompletesISAndForwardsToLLC(t *testing.T) {
	d := dc.New(0, nil)
	rec := &recorder{}
	_, err := d.Handle(fromLLC(0, c3dmsg.Gets, c3dmsg.VCReq, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)

	consumed, err := d.Handle(fromDirectory(0, c3dmsg.DATA, c3dmsg.VCRes, 9), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, dc.S, d.State)
	assert.Equal(t, c3dmsg.Value(9), d.Data)
	last := rec.sent[len(rec.sent)-1]
	assert.Equal(t, c3dmsg.DATA, last.Type)
	assert.Equal(t, c3dmsg.LevelLLC, last.DstLevel)
}

func TestInvOnISFallsBackToISI(t *testing.T) {
	d := dc.New(0, nil)
	rec := &recorder{}
	_, err := d.Handle(fromLLC(0, c3dmsg.Gets, c3dmsg.VCReq, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)

	consumed, err := d.Handle(fromDirectory(0, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, dc.IS_I, d.State)
}

func TestStaleDataInISIIsForwardedDownThenDropped(t *testing.T) {
	d := dc.New(0, nil)
	rec := &recorder{}
	_, err := d.Handle(fromLLC(0, c3dmsg.Gets, c3dmsg.VCReq, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)
	_, err = d.Handle(fromDirectory(0, c3dmsg.Inv, c3dmsg.VCReq, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)
	require.Equal(t, dc.IS_I, d.State)

	consumed, err := d.Handle(fromDirectory(0, c3dmsg.DATA, c3dmsg.VCRes, 3), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, dc.I, d.State)
	last := rec.sent[len(rec.sent)-1]
	assert.Equal(t, c3dmsg.DATA, last.Type)
	assert.Equal(t, c3dmsg.LevelLLC, last.DstLevel)
}

func TestDowngradeAndPutAckAlwaysForwardRegardlessOfState(t *testing.T) {
	d := dc.New(0, nil)
	rec := &recorder{}

	consumed, err := d.Handle(fromDirectory(0, c3dmsg.Downgrade, c3dmsg.VCReq, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, dc.I, d.State) // unaffected
	require.Len(t, rec.sent, 1)
	assert.Equal(t, c3dmsg.Downgrade, rec.sent[0].Type)
	assert.Equal(t, c3dmsg.LevelLLC, rec.sent[0].DstLevel)

	consumed, err = d.Handle(fromDirectory(0, c3dmsg.PutAck, c3dmsg.VCUnb, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, dc.I, d.State) // unaffected
	require.Len(t, rec.sent, 2)
	assert.Equal(t, c3dmsg.PutAck, rec.sent[1].Type)
	assert.Equal(t, c3dmsg.LevelLLC, rec.sent[1].DstLevel)
}

func TestReplaceFromSDropsDataSilently(t *testing.T) {
	d := dc.New(0, nil)
	rec := &recorder{}
	_, err := d.Handle(fromLLC(0, c3dmsg.Gets, c3dmsg.VCReq, c3dmsg.ValueUndefined), rec)
	require.NoError(t, err)
	_, err = d.Handle(fromDirectory(0, c3dmsg.DATA, c3dmsg.VCRes, 7), rec)
	require.NoError(t, err)
	require.Equal(t, dc.S, d.State)

	assert.True(t, d.CanReplace())
	require.NoError(t, d.Replace(rec))
	assert.Equal(t, dc.I, d.State)
	assert.Equal(t, c3dmsg.ValueUndefined, d.Data)
	assert.Len(t, rec.sent, 2) // only the GETS forward and the DATA forward to the LLC; replace itself is silent
}

func TestReplaceIsIllegalOutsideS(t *testing.T) {
	d := dc.New(0, nil)
	rec := &recorder{}
	assert.False(t, d.CanReplace())
	err := d.Replace(rec)
	require.Error(t, err)
	var viol *c3dmsg.ProtocolViolation
	require.ErrorAs(t, err, &viol)
}

func TestUnhandledPairIsAProtocolViolation(t *testing.T) {
	d := dc.New(0, nil)
	rec := &recorder{}
	_, err := d.Handle(fromDirectory(0, c3dmsg.DATA, c3dmsg.VCRes, 1), rec)
	require.Error(t, err)
	var viol *c3dmsg.ProtocolViolation
	require.ErrorAs(t, err, &viol)
}
