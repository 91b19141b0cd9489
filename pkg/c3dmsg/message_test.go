package c3dmsg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
)

func TestMessageWellFormed(t *testing.T) {
	good := c3dmsg.Message{
		Type: c3dmsg.Gets, Dst: c3dmsg.SocketNode(0), DstLevel: c3dmsg.LevelDC,
		Src: c3dmsg.SocketNode(0), SrcLevel: c3dmsg.LevelLLC, VC: c3dmsg.VCReq,
		Data: c3dmsg.ValueUndefined,
	}
	assert.True(t, good.WellFormed())

	badDst := good
	badDst.Dst = c3dmsg.DirectoryNode
	badDst.DstLevel = c3dmsg.LevelDC
	assert.False(t, badDst.WellFormed())

	badSrc := good
	badSrc.Src = c3dmsg.DirectoryNode
	badSrc.SrcLevel = c3dmsg.LevelLLC
	assert.False(t, badSrc.WellFormed())

	toDirectory := c3dmsg.Message{
		Type: c3dmsg.Gets, Dst: c3dmsg.DirectoryNode, DstLevel: c3dmsg.LevelUndefined,
		Src: c3dmsg.SocketNode(1), SrcLevel: c3dmsg.LevelDC, VC: c3dmsg.VCReq,
		Data: c3dmsg.ValueUndefined,
	}
	assert.True(t, toDirectory.WellFormed())
}

func TestNodeSocket(t *testing.T) {
	n := c3dmsg.SocketNode(3)
	require.False(t, n.IsDirectory())
	assert.Equal(t, c3dmsg.Socket(3), n.Socket())
	assert.Panics(t, func() { c3dmsg.DirectoryNode.Socket() })
}

func TestLastWrittenChecksConsistency(t *testing.T) {
	var aux c3dmsg.LastWritten
	require.NoError(t, aux.CheckRead(c3dmsg.SocketNode(0), 7))

	aux.RecordWrite(1)
	assert.NoError(t, aux.CheckRead(c3dmsg.SocketNode(0), 1))

	err := aux.CheckRead(c3dmsg.SocketNode(1), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, c3dmsg.ErrSCViolation)
}

func TestProtocolViolationMessage(t *testing.T) {
	err := c3dmsg.NewUnhandled(c3dmsg.SocketNode(0), fakeState{"S"}, c3dmsg.Getx)
	assert.Contains(t, err.Error(), "S0")
	assert.Contains(t, err.Error(), "S")
	assert.Contains(t, err.Error(), "GETX")
}

type fakeState struct{ s string }

func (f fakeState) String() string { return f.s }
