package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPCB(t *testing.T) *PCB {
	t.Helper()
	// The default shell geometry: 65535 bytes in 128-byte blocks.
	p := NewPCB(128, 511)
	for i := 0; i < p.RootDirBlock(); i++ {
		next := i + 1
		if i == p.RootDirBlock()-1 {
			next = -1
		}
		require.NoError(t, p.UpdateFAT(i, next))
	}
	return p
}

func TestPCBGeometry(t *testing.T) {
	r := require.New(t)
	p := NewPCB(128, 511)

	// 16 header bytes + 4*511 FAT bytes = 2060 bytes = 17 blocks.
	r.Equal(17, p.Blocks())
	r.Equal(17, p.RootDirBlock())
	r.Equal(17, p.FirstFreeBlock())
	r.Equal(511, p.Size())
}

func TestPCBBytesRoundTrip(t *testing.T) {
	r := require.New(t)
	p := newTestPCB(t)
	r.NoError(p.UpdateFAT(17, -1))
	r.NoError(p.UpdateFAT(20, 21))
	r.NoError(p.UpdateFAT(21, -1))
	r.NoError(p.SetFirstFreeBlock(19))

	raw, err := p.Bytes()
	r.NoError(err)
	r.Equal(0, len(raw)%p.BlockSize())

	back, err := PCBFromBytes(raw, 128, 511)
	r.NoError(err)
	r.Equal(p.FirstFreeBlock(), back.FirstFreeBlock())
	r.Equal(p.RootDirBlock(), back.RootDirBlock())
	for i := 0; i < 511; i++ {
		r.Equal(p.FATEntry(i), back.FATEntry(i))
	}
}

func TestPCBFromBytesIgnoresStoredGeometry(t *testing.T) {
	r := require.New(t)
	p := newTestPCB(t)
	raw, err := p.Bytes()
	r.NoError(err)

	// The stored block size and block count are advisory; the mount
	// arguments win.
	raw[0], raw[1], raw[2], raw[3] = 0xde, 0xad, 0xbe, 0xef
	back, err := PCBFromBytes(raw, 128, 511)
	r.NoError(err)
	r.Equal(128, back.BlockSize())
	r.Equal(511, back.NumBlocks())
}

func TestFATGuard(t *testing.T) {
	r := require.New(t)
	p := newTestPCB(t)

	// The blocks holding the PCB itself are frozen once linked.
	r.Equal(ErrFatGuard, p.UpdateFAT(0, 5))
	r.Equal(ErrFatGuard, p.UpdateFAT(16, 0))

	// Bounds on index and value.
	r.Equal(ErrFatGuard, p.UpdateFAT(-1, 0))
	r.Equal(ErrFatGuard, p.UpdateFAT(511, 0))
	r.Equal(ErrFatGuard, p.UpdateFAT(20, 511))
	r.Equal(ErrFatGuard, p.UpdateFAT(20, -2))

	r.NoError(p.UpdateFAT(20, -1))
}

func TestFATEntrySentinel(t *testing.T) {
	r := require.New(t)
	p := newTestPCB(t)
	r.Equal(-2, p.FATEntry(-1))
	r.Equal(-2, p.FATEntry(511))
	r.Equal(1, p.FATEntry(0))
	r.Equal(0, p.FATEntry(100))
}

func TestWalkChain(t *testing.T) {
	r := require.New(t)
	p := newTestPCB(t)
	r.NoError(p.UpdateFAT(20, 25))
	r.NoError(p.UpdateFAT(25, 23))
	r.NoError(p.UpdateFAT(23, -1))

	chain, err := p.WalkChain(20)
	r.NoError(err)
	r.Equal([]int{20, 25, 23}, chain)

	// Walking into a free block means the FAT is corrupt.
	_, err = p.WalkChain(100)
	r.Equal(ErrInvalidRead, err)
	_, err = p.WalkChain(-3)
	r.Equal(ErrInvalidRead, err)
}

func TestClearChain(t *testing.T) {
	r := require.New(t)
	p := newTestPCB(t)
	r.NoError(p.UpdateFAT(20, 21))
	r.NoError(p.UpdateFAT(21, -1))

	r.NoError(p.ClearChain(20))
	r.Equal(0, p.FATEntry(20))
	r.Equal(0, p.FATEntry(21))

	// The reserved region can never be cleared.
	r.Equal(ErrFatGuard, p.ClearChain(3))
}

func TestFreeBlocks(t *testing.T) {
	r := require.New(t)
	p := newTestPCB(t)
	r.NoError(p.SetFirstFreeBlock(19))

	// The scan starts past the root block and skips the pivot.
	free, err := p.FreeBlocks(3)
	r.NoError(err)
	r.Equal([]int{18, 20, 21}, free)

	r.Equal(18, p.OneFreeBlock())

	// 493 candidate blocks (18..510) minus the pivot.
	_, err = p.FreeBlocks(493)
	r.Equal(ErrOutOfSpace, err)
	free, err = p.FreeBlocks(492)
	r.NoError(err)
	r.Len(free, 492)
}
