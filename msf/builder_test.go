package msf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderTinyBuild(t *testing.T) {
	b, err := NewBuilder(4096, 0, true)
	require.NoError(t, err)

	_, err = b.AddStream(1)
	require.NoError(t, err)

	layout, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, uint32(1), layout.NumStreams())
	assert.Equal(t, []uint32{1}, layout.StreamSizes)
	assert.Len(t, layout.StreamBlocks[0], 1)
	assert.Equal(t, uint32(12), layout.SuperBlock.NumDirectoryBytes)
	assert.Len(t, layout.DirectoryBlocks, 1)
	assert.GreaterOrEqual(t, layout.SuperBlock.NumBlocks, uint32(5))
}

func TestBuilderExactBoundary(t *testing.T) {
	b, err := NewBuilder(512, 0, true)
	require.NoError(t, err)

	idx, err := b.AddStream(512)
	require.NoError(t, err)
	assert.Len(t, b.StreamBlocks(idx), 1)

	idx2, err := b.AddStream(513)
	require.NoError(t, err)
	assert.Len(t, b.StreamBlocks(idx2), 2)
}

func TestBuilderReservedBlockReuseRejected(t *testing.T) {
	b, err := NewBuilder(4096, 0, true)
	require.NoError(t, err)

	_, err = b.AddStreamWithBlocks(1, []uint32{1})
	assert.ErrorIs(t, err, ErrUnspecified)
}

func TestBuilderNonGrowableShortfall(t *testing.T) {
	b, err := NewBuilder(4096, 4, false)
	require.NoError(t, err)

	_, err = b.AddStream(4097) // needs 2 blocks; zero free
	assert.ErrorIs(t, err, ErrInsufficientBuffer)
}

func TestBuilderShrinkFreesBlocks(t *testing.T) {
	b, err := NewBuilder(4096, 0, true)
	require.NoError(t, err)

	idx, err := b.AddStream(10 * 4096)
	require.NoError(t, err)
	require.Len(t, b.StreamBlocks(idx), 10)

	originalBlocks := append([]uint32(nil), b.StreamBlocks(idx)...)
	freeBefore := b.NumFreeBlocks()

	require.NoError(t, b.SetStreamSize(idx, 3*4096))
	assert.Len(t, b.StreamBlocks(idx), 3)
	assert.Equal(t, originalBlocks[:3], b.StreamBlocks(idx))
	assert.Equal(t, freeBefore+7, b.NumFreeBlocks())

	for _, blk := range originalBlocks[3:] {
		assert.True(t, b.IsBlockFree(blk))
	}
}

func TestBuilderDuplicateBlocksInExplicitListRejected(t *testing.T) {
	b, err := NewBuilder(4096, 8, true)
	require.NoError(t, err)

	_, err = b.AddStreamWithBlocks(2*4096, []uint32{4, 4})
	assert.ErrorIs(t, err, ErrUnspecified)
}

func TestBuilderInvalidBlockSize(t *testing.T) {
	_, err := NewBuilder(3000, 0, true)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

// Invariant: no block index appears in two distinct stream block lists, nor
// with the directory or block-map block.
func TestBuilderNoBlockOverlap(t *testing.T) {
	b, err := NewBuilder(1024, 0, true)
	require.NoError(t, err)

	sizes := []uint32{100, 2000, 1024, 0, 5000}
	for _, s := range sizes {
		_, err := b.AddStream(s)
		require.NoError(t, err)
	}

	layout, err := b.Build()
	require.NoError(t, err)

	seen := map[uint32]string{}
	claim := func(block uint32, owner string) {
		if prev, ok := seen[block]; ok {
			t.Fatalf("block %d claimed by both %s and %s", block, prev, owner)
		}
		seen[block] = owner
	}

	claim(0, "super block")
	claim(layout.SuperBlock.FreeBlockMapBlock, "fpm")
	claim(layout.SuperBlock.BlockMapAddr, "block map")
	for _, blk := range layout.DirectoryBlocks {
		claim(blk, "directory")
	}
	for i, list := range layout.StreamBlocks {
		for _, blk := range list {
			claim(blk, "stream")
			_ = i
		}
	}
}

// Invariant: free blocks + used blocks = num_blocks.
func TestBuilderFreeUsedAccounting(t *testing.T) {
	b, err := NewBuilder(512, 0, true)
	require.NoError(t, err)

	for _, s := range []uint32{10, 2000, 700} {
		_, err := b.AddStream(s)
		require.NoError(t, err)
	}

	layout, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, layout.SuperBlock.NumBlocks, b.NumUsedBlocks()+b.NumFreeBlocks())
}

// Invariant: stream block-list length always matches BytesToBlocks(size).
func TestBuilderStreamBlockCountMatchesSize(t *testing.T) {
	b, err := NewBuilder(4096, 0, true)
	require.NoError(t, err)

	sizes := []uint32{0, 1, 4095, 4096, 4097, 100000}
	var idxs []int
	for _, s := range sizes {
		idx, err := b.AddStream(s)
		require.NoError(t, err)
		idxs = append(idxs, idx)
	}

	layout, err := b.Build()
	require.NoError(t, err)

	for i, idx := range idxs {
		assert.Equal(t, BytesToBlocks(sizes[i], 4096), uint32(len(layout.StreamBlocks[idx])))
	}
}

func TestBuilderSetBlockMapAddr(t *testing.T) {
	b, err := NewBuilder(4096, 0, true)
	require.NoError(t, err)

	require.NoError(t, b.SetBlockMapAddr(10))
	assert.True(t, b.IsBlockFree(3)) // old block map address freed
	assert.False(t, b.IsBlockFree(10))

	// Reusing an already-used block fails.
	err = b.SetBlockMapAddr(0)
	assert.ErrorIs(t, err, ErrBlockInUse)
}

func TestBuilderSetDirectoryBlocksHintValidateThenMutate(t *testing.T) {
	b, err := NewBuilder(4096, 10, true)
	require.NoError(t, err)

	require.NoError(t, b.SetDirectoryBlocksHint([]uint32{4, 5}))
	assert.False(t, b.IsBlockFree(4))
	assert.False(t, b.IsBlockFree(5))

	// A hint with an internal duplicate must be rejected without mutating
	// the previously-held blocks.
	err = b.SetDirectoryBlocksHint([]uint32{6, 6})
	assert.ErrorIs(t, err, ErrUnspecified)
	assert.False(t, b.IsBlockFree(4))
	assert.False(t, b.IsBlockFree(5))
	assert.True(t, b.IsBlockFree(6))
}
