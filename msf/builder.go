package msf

import (
	"fmt"
)

// Builder assembles an MSF Layout from scratch: stream declarations plus a
// growable block allocator, following the allocation order a finalize step
// needs: directory blocks are sized and allocated only after every stream
// is known, since allocating them can itself grow the free list.
//
// Builder is not safe for concurrent use; it assumes single-threaded
// construction.
type Builder struct {
	blockSize         uint32
	growable          bool
	freeList          *BitmapFreeList
	blockMapAddr      uint32
	freeBlockMapBlock uint32
	unknown1          uint32

	directoryBlocks []uint32
	streamSizes     []uint32
	streamBlocks    [][]uint32
}

// NewBuilder creates a Builder with blockSize, a free list sized to
// max(minBlockCount, MinimumBlockCount()), and reserves blocks {0, 1, 2,
// 3} (super block, both FPM candidates, default block map).
func NewBuilder(blockSize, minBlockCount uint32, growable bool) (*Builder, error) {
	if !IsValidBlockSize(blockSize) {
		return nil, ErrInvalidFormat
	}

	n := minBlockCount
	if min := MinimumBlockCount(); n < min {
		n = min
	}

	b := &Builder{
		blockSize:         blockSize,
		growable:          growable,
		freeList:          NewBitmapFreeList(n, true),
		blockMapAddr:      3,
		freeBlockMapBlock: 1,
	}
	for _, reserved := range []uint32{0, 1, 2, 3} {
		b.freeList.SetUsed(reserved)
	}
	return b, nil
}

// SetBlockMapAddr changes which block holds the directory block-index
// array. If addr is beyond the current free list and the builder is
// growable, the free list is extended; if the target block is already
// used, SetBlockMapAddr fails with ErrBlockInUse without mutating state.
func (b *Builder) SetBlockMapAddr(addr uint32) error {
	if addr >= b.freeList.Len() {
		if !b.growable {
			return ErrInsufficientBuffer
		}
		b.freeList.Resize(addr+1, true)
	}
	if !b.freeList.IsFree(addr) {
		return ErrBlockInUse
	}

	b.freeList.SetFree(b.blockMapAddr)
	b.freeList.SetUsed(addr)
	b.blockMapAddr = addr
	return nil
}

// SetFreePageMap selects which of the two reserved FPM candidate blocks
// (1 or 2) the finished SuperBlock will mark active. This is a pure
// setter: both candidates are already reserved by NewBuilder, so it has no
// allocation effect.
func (b *Builder) SetFreePageMap(which uint32) error {
	if which != 1 && which != 2 {
		return ErrInvalidFormat
	}
	b.freeBlockMapBlock = which
	return nil
}

// SetUnknown1 sets the opaque passthrough field stored in the finished
// SuperBlock.
func (b *Builder) SetUnknown1(u uint32) {
	b.unknown1 = u
}

// SetDirectoryBlocksHint replaces the builder's held directory block list.
// It validates the entire new list before mutating any state (no
// duplicates, each block either already held as a directory block or
// currently free), then frees the old list and reserves the new one,
// atomically: a mid-validation failure leaves the builder's free list
// untouched rather than partially freeing old blocks and reserving new
// ones.
func (b *Builder) SetDirectoryBlocksHint(blocks []uint32) error {
	oldSet := make(map[uint32]bool, len(b.directoryBlocks))
	for _, ob := range b.directoryBlocks {
		oldSet[ob] = true
	}

	seen := make(map[uint32]bool, len(blocks))
	for _, nb := range blocks {
		if seen[nb] {
			return fmt.Errorf("%w: duplicate block %d in directory hint", ErrUnspecified, nb)
		}
		seen[nb] = true

		if nb >= b.freeList.Len() {
			if !b.growable {
				return ErrInsufficientBuffer
			}
			continue // will become free once the list grows below
		}
		if !oldSet[nb] && !b.freeList.IsFree(nb) {
			return fmt.Errorf("%w: block %d already in use", ErrUnspecified, nb)
		}
	}

	for _, ob := range b.directoryBlocks {
		b.freeList.SetFree(ob)
	}
	for _, nb := range blocks {
		if nb >= b.freeList.Len() {
			b.freeList.Resize(nb+1, true)
		}
		b.freeList.SetUsed(nb)
	}
	b.directoryBlocks = append([]uint32(nil), blocks...)
	return nil
}

// AllocateBlocks picks n free blocks in ascending order via find-first-free
// then find-next-free, marks them used, and returns them. If the free
// list is short and the builder is growable, it is extended by exactly
// the shortfall first.
func (b *Builder) AllocateBlocks(n uint32) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}

	if free := b.freeList.CountFree(); free < n {
		if !b.growable {
			return nil, ErrInsufficientBuffer
		}
		b.freeList.Resize(b.freeList.Len()+(n-free), true)
	}

	out := make([]uint32, 0, n)
	idx, ok := b.freeList.FindFirstFree()
	if !ok {
		return nil, ErrInsufficientBuffer
	}
	out = append(out, idx)
	b.freeList.SetUsed(idx)

	for uint32(len(out)) < n {
		idx, ok = b.freeList.FindNextFree(idx)
		if !ok {
			return nil, ErrInsufficientBuffer
		}
		out = append(out, idx)
		b.freeList.SetUsed(idx)
	}

	return out, nil
}

// AddStream declares a new stream of the given size, auto-allocating its
// blocks, and returns its stream index.
func (b *Builder) AddStream(size uint32) (int, error) {
	k := BytesToBlocks(size, b.blockSize)
	blocks, err := b.AllocateBlocks(k)
	if err != nil {
		return -1, err
	}
	b.streamSizes = append(b.streamSizes, size)
	b.streamBlocks = append(b.streamBlocks, blocks)
	return len(b.streamSizes) - 1, nil
}

// AddStreamWithBlocks declares a new stream backed by an explicit,
// caller-provided block list. len(blocks) must equal
// BytesToBlocks(size, blockSize). Duplicate indices within blocks are
// rejected up front — allowing one through would pass the free check on
// its first occurrence and silently mark an already-claimed block used on
// the second — and each block must currently be free.
func (b *Builder) AddStreamWithBlocks(size uint32, blocks []uint32) (int, error) {
	k := BytesToBlocks(size, b.blockSize)
	if uint32(len(blocks)) != k {
		return -1, fmt.Errorf("%w: stream of size %d needs %d blocks, got %d", ErrUnspecified, size, k, len(blocks))
	}

	seen := make(map[uint32]bool, len(blocks))
	for _, blk := range blocks {
		if seen[blk] {
			return -1, fmt.Errorf("%w: duplicate block %d", ErrUnspecified, blk)
		}
		seen[blk] = true
	}

	var maxBlk uint32
	for _, blk := range blocks {
		if blk > maxBlk {
			maxBlk = blk
		}
	}
	if maxBlk >= b.freeList.Len() {
		if !b.growable {
			return -1, ErrInsufficientBuffer
		}
		b.freeList.Resize(maxBlk+1, true)
	}

	for _, blk := range blocks {
		if !b.freeList.IsFree(blk) {
			return -1, fmt.Errorf("%w: block %d already in use", ErrUnspecified, blk)
		}
	}
	for _, blk := range blocks {
		b.freeList.SetUsed(blk)
	}

	b.streamSizes = append(b.streamSizes, size)
	b.streamBlocks = append(b.streamBlocks, append([]uint32(nil), blocks...))
	return len(b.streamSizes) - 1, nil
}

// SetStreamSize grows or shrinks stream i to size, allocating or freeing
// trailing blocks as needed.
func (b *Builder) SetStreamSize(i int, size uint32) error {
	if i < 0 || i >= len(b.streamSizes) {
		return fmt.Errorf("%w: stream %d", ErrOutOfRange, i)
	}

	newCount := BytesToBlocks(size, b.blockSize)
	oldBlocks := b.streamBlocks[i]
	oldCount := uint32(len(oldBlocks))

	switch {
	case newCount > oldCount:
		extra, err := b.AllocateBlocks(newCount - oldCount)
		if err != nil {
			return err
		}
		b.streamBlocks[i] = append(oldBlocks, extra...)
	case newCount < oldCount:
		for _, blk := range oldBlocks[newCount:] {
			b.freeList.SetFree(blk)
		}
		b.streamBlocks[i] = oldBlocks[:newCount]
	}

	b.streamSizes[i] = size
	return nil
}

// NumStreams returns the number of declared streams.
func (b *Builder) NumStreams() int { return len(b.streamSizes) }

// StreamSize returns the declared size of stream i.
func (b *Builder) StreamSize(i int) uint32 { return b.streamSizes[i] }

// StreamBlocks returns the block list of stream i.
func (b *Builder) StreamBlocks(i int) []uint32 { return b.streamBlocks[i] }

// NumUsedBlocks returns the number of blocks currently marked used.
func (b *Builder) NumUsedBlocks() uint32 { return b.freeList.Len() - b.freeList.CountFree() }

// NumFreeBlocks returns the number of blocks currently marked free.
func (b *Builder) NumFreeBlocks() uint32 { return b.freeList.CountFree() }

// TotalBlockCount returns the current length of the free list.
func (b *Builder) TotalBlockCount() uint32 { return b.freeList.Len() }

// IsBlockFree reports whether block i is currently free.
func (b *Builder) IsBlockFree(i uint32) bool { return b.freeList.IsFree(i) }

// Build finalizes the builder into a Layout. Grow ordering matters:
// allocating the directory's own blocks can extend the free list, so
// SuperBlock.NumBlocks is computed only after that allocation settles.
func (b *Builder) Build() (*Layout, error) {
	numDirectoryBytes := directoryByteSize(b.streamSizes, b.streamBlocks)
	numDirectoryBlocks := BytesToBlocks(numDirectoryBytes, b.blockSize)
	current := uint32(len(b.directoryBlocks))

	switch {
	case current < numDirectoryBlocks:
		extra, err := b.AllocateBlocks(numDirectoryBlocks - current)
		if err != nil {
			return nil, err
		}
		b.directoryBlocks = append(b.directoryBlocks, extra...)
	case current > numDirectoryBlocks:
		for _, blk := range b.directoryBlocks[numDirectoryBlocks:] {
			b.freeList.SetFree(blk)
		}
		b.directoryBlocks = b.directoryBlocks[:numDirectoryBlocks]
	}

	sb := &SuperBlock{
		BlockSize:         b.blockSize,
		FreeBlockMapBlock: b.freeBlockMapBlock,
		NumDirectoryBytes: numDirectoryBytes,
		Unknown1:          b.unknown1,
		BlockMapAddr:      b.blockMapAddr,
		NumBlocks:         b.freeList.Len(), // set after directory-block allocation above
	}
	copy(sb.FileMagic[:], []byte(Magic))

	return &Layout{
		SuperBlock:      sb,
		DirectoryBlocks: append([]uint32(nil), b.directoryBlocks...),
		FreePageMap:     b.freeList,
		StreamSizes:     append([]uint32(nil), b.streamSizes...),
		StreamBlocks:    copyStreamBlocks(b.streamBlocks),
	}, nil
}

func copyStreamBlocks(src [][]uint32) [][]uint32 {
	out := make([][]uint32, len(src))
	for i, list := range src {
		out[i] = append([]uint32(nil), list...)
	}
	return out
}
