package msf

import (
	"encoding/binary"

	"github.com/oakreader/msf/internal/bincursor"
)

// Layout bundles everything a reader parses or a builder produces: the
// SuperBlock, the directory's own block list, the free-page-map bits, and
// the per-stream (size, blocks) table. The slices below are ordinary heap
// allocations and remain valid for as long as the caller holds a
// reference to the Layout.
type Layout struct {
	SuperBlock      *SuperBlock
	DirectoryBlocks []uint32
	FreePageMap     *BitmapFreeList
	StreamSizes     []uint32
	StreamBlocks    [][]uint32
}

// NumStreams returns the number of streams described by the directory.
func (l *Layout) NumStreams() uint32 {
	return uint32(len(l.StreamSizes))
}

// parseDirectoryPayload decodes the serialized directory format: u32
// num_streams, then num_streams u32 sizes, then for each stream its block
// list laid end to end.
func parseDirectoryPayload(data []byte, blockSize uint32) (sizes []uint32, blocks [][]uint32, err error) {
	cur := bincursor.New(data)

	numStreams, err := cur.ReadU32()
	if err != nil {
		return nil, nil, corruptf("directory truncated reading stream count")
	}

	sizes = make([]uint32, numStreams)
	for i := range sizes {
		v, err := cur.ReadU32()
		if err != nil {
			return nil, nil, corruptf("directory truncated reading stream %d size", i)
		}
		sizes[i] = v
	}

	blocks = make([][]uint32, numStreams)
	for i, size := range sizes {
		n := BytesToBlocks(size, blockSize)
		if n == 0 {
			continue
		}
		list := make([]uint32, n)
		for j := range list {
			v, err := cur.ReadU32()
			if err != nil {
				return nil, nil, corruptf("directory truncated reading stream %d block %d", i, j)
			}
			list[j] = v
		}
		blocks[i] = list
	}

	if cur.Remaining() != 0 {
		return nil, nil, corruptf("directory has %d trailing bytes after parsing %d streams", cur.Remaining(), numStreams)
	}

	return sizes, blocks, nil
}

// serializeDirectoryPayload encodes sizes and blocks in the on-disk layout
// described above, the inverse of parseDirectoryPayload.
func serializeDirectoryPayload(sizes []uint32, blocks [][]uint32) []byte {
	total := directoryByteSize(sizes, blocks)
	buf := make([]byte, total)

	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(sizes)))
	off += 4

	for _, size := range sizes {
		binary.LittleEndian.PutUint32(buf[off:], size)
		off += 4
	}

	for _, list := range blocks {
		for _, b := range list {
			binary.LittleEndian.PutUint32(buf[off:], b)
			off += 4
		}
	}

	return buf
}

// directoryByteSize computes num_directory_bytes:
// 4 + 4*num_streams + 4*sum(len(blocks_i)).
func directoryByteSize(sizes []uint32, blocks [][]uint32) uint32 {
	total := uint32(4) + 4*uint32(len(sizes))
	for _, list := range blocks {
		total += 4 * uint32(len(list))
	}
	return total
}
