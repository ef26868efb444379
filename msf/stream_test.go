package msf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSourceWithBlocks(blockSize uint32, blocks map[uint32][]byte, numBlocks uint32) *MemorySource {
	data := make([]byte, int(numBlocks)*int(blockSize))
	for idx, content := range blocks {
		copy(data[BlockToOffset(idx, blockSize):], content)
	}
	return NewMemorySource(data)
}

func TestMappedBlockStreamSingleBlockZeroCopy(t *testing.T) {
	const blockSize = 512
	content := bytes.Repeat([]byte{0x11}, int(blockSize))
	src := makeSourceWithBlocks(blockSize, map[uint32][]byte{2: content}, 4)

	s := NewMappedBlockStream(src, []uint32{2}, blockSize, blockSize)
	view, err := s.ReadBytes(0, blockSize)
	require.NoError(t, err)
	assert.Equal(t, content, view)
}

func TestMappedBlockStreamGatherAcrossBlocks(t *testing.T) {
	const blockSize = 512
	a := bytes.Repeat([]byte{0xAA}, int(blockSize))
	b := bytes.Repeat([]byte{0xBB}, int(blockSize))
	src := makeSourceWithBlocks(blockSize, map[uint32][]byte{0: a, 1: b}, 2)

	s := NewMappedBlockStream(src, []uint32{0, 1}, blockSize, blockSize*2)

	got, err := s.ReadBytes(256, 512) // spans both blocks
	require.NoError(t, err)
	require.Len(t, got, 512)
	assert.Equal(t, a[256:], got[:256])
	assert.Equal(t, b[:256], got[256:])
}

func TestMappedBlockStreamCacheStability(t *testing.T) {
	const blockSize = 512
	a := bytes.Repeat([]byte{0x01}, int(blockSize))
	b := bytes.Repeat([]byte{0x02}, int(blockSize))
	src := makeSourceWithBlocks(blockSize, map[uint32][]byte{0: a, 1: b}, 2)

	s := NewMappedBlockStream(src, []uint32{0, 1}, blockSize, blockSize*2)

	first, err := s.ReadBytes(0, blockSize*2)
	require.NoError(t, err)
	second, err := s.ReadBytes(0, blockSize*2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Identical requests return the same backing array (pooled, never
	// compacted), not merely equal contents.
	first[0] = 0xFF
	assert.Equal(t, byte(0xFF), second[0])
}

func TestMappedBlockStreamOutOfRange(t *testing.T) {
	const blockSize = 512
	src := makeSourceWithBlocks(blockSize, nil, 2)
	s := NewMappedBlockStream(src, []uint32{0, 1}, blockSize, blockSize)

	_, err := s.ReadBytes(blockSize, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestMappedBlockStreamCorruptBlockReference(t *testing.T) {
	const blockSize = 512
	src := makeSourceWithBlocks(blockSize, nil, 1) // only 1 block exists in the source

	// Stream claims two blocks but the source only has one.
	s := NewMappedBlockStream(src, []uint32{0, 5}, blockSize, blockSize*2)
	_, err := s.ReadBytes(0, blockSize*2)
	assert.ErrorIs(t, err, ErrCorruptFile)
}

func TestMappedBlockStreamReadSeek(t *testing.T) {
	const blockSize = 512
	a := bytes.Repeat([]byte{0x7A}, int(blockSize))
	src := makeSourceWithBlocks(blockSize, map[uint32][]byte{0: a}, 1)
	s := NewMappedBlockStream(src, []uint32{0}, blockSize, blockSize)

	buf := make([]byte, 100)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	pos, err := s.Seek(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}
