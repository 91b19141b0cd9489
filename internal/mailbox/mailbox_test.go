package mailbox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/c3d/internal/mailbox"
	"github.com/samsamfire/c3d/pkg/c3dmsg"
)

func msg(v c3dmsg.Value) c3dmsg.Message {
	return c3dmsg.Message{Type: c3dmsg.DATA, Dst: c3dmsg.SocketNode(0), DstLevel: c3dmsg.LevelDC, Src: c3dmsg.DirectoryNode, VC: c3dmsg.VCRes, Data: v}
}

func TestMailboxCapacity(t *testing.T) {
	mb := mailbox.New(2)
	require.NoError(t, mb.Put(msg(1)))
	require.NoError(t, mb.Put(msg(2)))
	assert.ErrorIs(t, mb.Put(msg(3)), c3dmsg.ErrMailboxFull)
	assert.Equal(t, 2, mb.GetOccupied())
	assert.Equal(t, 0, mb.GetSpace())
}

func TestMailboxTakeRemovesItem(t *testing.T) {
	mb := mailbox.New(4)
	require.NoError(t, mb.Put(msg(1)))
	require.NoError(t, mb.Put(msg(2)))

	taken := mb.Take(0)
	assert.Equal(t, c3dmsg.Value(1), taken.Data)
	assert.Equal(t, 1, mb.GetOccupied())
	assert.Equal(t, c3dmsg.Value(2), mb.Items()[0].Data)
}

func TestMailboxCloneIsIndependent(t *testing.T) {
	mb := mailbox.New(4)
	require.NoError(t, mb.Put(msg(1)))

	clone := mb.Clone()
	require.NoError(t, clone.Put(msg(2)))

	assert.Equal(t, 1, mb.GetOccupied())
	assert.Equal(t, 2, clone.GetOccupied())
}
