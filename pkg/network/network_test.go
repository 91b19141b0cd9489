package network_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/c3d/pkg/c3dmsg"
	"github.com/samsamfire/c3d/pkg/network"
)

func gets(src c3dmsg.Socket) c3dmsg.Message {
	return c3dmsg.Message{
		Type: c3dmsg.Gets, Dst: c3dmsg.DirectoryNode, DstLevel: c3dmsg.LevelUndefined,
		Src: c3dmsg.SocketNode(src), SrcLevel: c3dmsg.LevelDC, VC: c3dmsg.VCReq, Data: c3dmsg.ValueUndefined,
	}
}

func TestSendAndPending(t *testing.T) {
	net := network.New(2, 4, nil)
	require.NoError(t, net.Send(gets(0)))
	require.NoError(t, net.Send(gets(1)))

	pending := net.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, 2, net.Occupied(c3dmsg.DirectoryNode))
}

func TestSendRejectsMalformed(t *testing.T) {
	net := network.New(2, 4, nil)
	bad := gets(0)
	bad.SrcLevel = c3dmsg.LevelUndefined
	bad.Src = c3dmsg.DirectoryNode
	bad.Dst = c3dmsg.DirectoryNode
	bad.DstLevel = c3dmsg.LevelDC
	assert.ErrorIs(t, net.Send(bad), c3dmsg.ErrMalformed)
}

func TestSendUnknownNode(t *testing.T) {
	net := network.New(2, 4, nil)
	bad := gets(0)
	bad.Dst = c3dmsg.SocketNode(99)
	bad.DstLevel = c3dmsg.LevelDC
	assert.ErrorIs(t, net.Send(bad), network.ErrUnknownNode)
}

func TestDeliverConsumeVsStall(t *testing.T) {
	net := network.New(2, 4, nil)
	require.NoError(t, net.Send(gets(0)))

	consumed, err := net.Deliver(c3dmsg.DirectoryNode, 0, func(c3dmsg.Message) bool { return false })
	require.NoError(t, err)
	assert.False(t, consumed)
	assert.Equal(t, 1, net.Occupied(c3dmsg.DirectoryNode))

	consumed, err = net.Deliver(c3dmsg.DirectoryNode, 0, func(c3dmsg.Message) bool { return true })
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, 0, net.Occupied(c3dmsg.DirectoryNode))
}

func TestCloneIsIndependent(t *testing.T) {
	net := network.New(2, 4, nil)
	require.NoError(t, net.Send(gets(0)))

	clone := net.Clone()
	require.NoError(t, clone.Send(gets(1)))

	assert.Equal(t, 1, net.Occupied(c3dmsg.DirectoryNode))
	assert.Equal(t, 2, clone.Occupied(c3dmsg.DirectoryNode))
}
