package safe

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addrs(n int) []common.Address {
	out := make([]common.Address, n)
	for i := range out {
		out[i] = common.BigToAddress(big.NewInt(int64(0x1000 + i)))
	}
	return out
}

func TestOwnerListOrder(t *testing.T) {
	owners := addrs(4)
	l, err := NewOwnerList(owners)
	require.NoError(t, err)

	assert.Equal(t, owners, l.List())
	assert.Equal(t, 4, l.Len())
	for _, o := range owners {
		assert.True(t, l.Contains(o))
	}
	assert.False(t, l.Contains(SentinelOwners))
}

func TestOwnerListRejectsInvalid(t *testing.T) {
	_, err := NewOwnerList([]common.Address{{}})
	assert.ErrorIs(t, err, ErrInvalidOwner)

	_, err = NewOwnerList([]common.Address{SentinelOwners})
	assert.ErrorIs(t, err, ErrInvalidOwner)

	owners := addrs(2)
	_, err = NewOwnerList([]common.Address{owners[0], owners[1], owners[0]})
	assert.ErrorIs(t, err, ErrDuplicateOwner)
}

func TestOwnerListPredecessor(t *testing.T) {
	owners := addrs(3)
	l, err := NewOwnerList(owners)
	require.NoError(t, err)

	prev, ok := l.Predecessor(owners[0])
	require.True(t, ok)
	assert.Equal(t, SentinelOwners, prev)

	prev, ok = l.Predecessor(owners[2])
	require.True(t, ok)
	assert.Equal(t, owners[1], prev)

	_, ok = l.Predecessor(common.HexToAddress("0xdead"))
	assert.False(t, ok)
}

func TestOwnerListRemoveAfter(t *testing.T) {
	owners := addrs(3)
	l, err := NewOwnerList(owners)
	require.NoError(t, err)

	// Stale hint: owners[0] does not precede owners[2].
	err = l.RemoveAfter(owners[0], owners[2])
	require.ErrorIs(t, err, ErrInvalidPrevOwner)
	assert.Equal(t, 3, l.Len())

	require.NoError(t, l.RemoveAfter(owners[0], owners[1]))
	assert.Equal(t, []common.Address{owners[0], owners[2]}, l.List())

	// The old hint is stale now that owners[1] is gone.
	err = l.RemoveAfter(owners[1], owners[2])
	assert.ErrorIs(t, err, ErrInvalidPrevOwner)

	require.NoError(t, l.RemoveAfter(SentinelOwners, owners[0]))
	require.NoError(t, l.RemoveAfter(SentinelOwners, owners[2]))
	assert.Empty(t, l.List())
	assert.Equal(t, 0, l.Len())
}

func TestOwnerListSwapAfter(t *testing.T) {
	owners := addrs(3)
	replacement := common.HexToAddress("0xbeef")
	l, err := NewOwnerList(owners)
	require.NoError(t, err)

	err = l.SwapAfter(owners[0], owners[1], owners[2])
	require.ErrorIs(t, err, ErrDuplicateOwner)

	err = l.SwapAfter(SentinelOwners, owners[1], replacement)
	require.ErrorIs(t, err, ErrInvalidPrevOwner)

	require.NoError(t, l.SwapAfter(owners[0], owners[1], replacement))
	assert.Equal(t, []common.Address{owners[0], replacement, owners[2]}, l.List())
	assert.False(t, l.Contains(owners[1]))
	assert.Equal(t, 3, l.Len())
}

func TestOwnerListAddAndClone(t *testing.T) {
	owners := addrs(2)
	l, err := NewOwnerList(owners)
	require.NoError(t, err)

	c := l.Clone()
	newcomer := common.HexToAddress("0xabc")
	require.NoError(t, c.Add(newcomer))

	assert.Equal(t, []common.Address{newcomer, owners[0], owners[1]}, c.List())
	assert.Equal(t, owners, l.List(), "clone must not share state")
	assert.ErrorIs(t, c.Add(newcomer), ErrDuplicateOwner)
}
