package msf

import (
	"fmt"
	"io"
	"sync"
)

// MappedBlockStream virtualizes a logically contiguous byte stream over a
// non-contiguous list of blocks, gathering reads across block-sized chunks.
// It has a zero-copy single-block fast path and a pooled, never-compacted
// multi-block cache: once a caller has been handed a view spanning more
// than one block, an identical later request returns the same backing
// array rather than re-copying.
type MappedBlockStream struct {
	source    ReadableSource
	blocks    []uint32
	blockSize uint32
	length    uint32

	pos uint32 // current position for the io.Reader/Seeker surface

	mu    sync.Mutex
	cache map[spanKey][]byte
}

type spanKey struct{ offset, length uint32 }

// NewMappedBlockStream constructs a stream over an explicit block list and
// logical length. It is the common constructor behind CreateIndexedStream,
// CreateDirectoryStream, and CreateFPMStream.
func NewMappedBlockStream(source ReadableSource, blocks []uint32, blockSize, length uint32) *MappedBlockStream {
	return &MappedBlockStream{
		source:    source,
		blocks:    blocks,
		blockSize: blockSize,
		length:    length,
	}
}

// CreateIndexedStream builds the MappedBlockStream for stream streamIndex
// as recorded in layout's directory.
func CreateIndexedStream(layout *Layout, source ReadableSource, streamIndex uint32) (*MappedBlockStream, error) {
	if streamIndex >= layout.NumStreams() {
		return nil, fmt.Errorf("%w: stream %d", ErrOutOfRange, streamIndex)
	}
	size := layout.StreamSizes[streamIndex]
	if size == NilStreamSize {
		size = 0
	}
	return NewMappedBlockStream(source, layout.StreamBlocks[streamIndex], layout.SuperBlock.BlockSize, size), nil
}

// CreateDirectoryStream builds the MappedBlockStream over the directory's
// own block list, as found at layout.DirectoryBlocks.
func CreateDirectoryStream(layout *Layout, source ReadableSource) *MappedBlockStream {
	return NewMappedBlockStream(source, layout.DirectoryBlocks, layout.SuperBlock.BlockSize, layout.SuperBlock.NumDirectoryBytes)
}

// CreateFPMStream builds a MappedBlockStream over the single active
// free-page-map block, for consumers that want to iterate it as a stream
// rather than through BitmapFreeList directly.
func CreateFPMStream(layout *Layout, source ReadableSource) *MappedBlockStream {
	blockSize := layout.SuperBlock.BlockSize
	return NewMappedBlockStream(source, []uint32{layout.SuperBlock.FreeBlockMapBlock}, blockSize, blockSize)
}

// Length returns the logical size of the stream in bytes.
func (s *MappedBlockStream) Length() uint32 { return s.length }

// ReadBytes returns a view of length bytes starting at offset. When the
// requested range falls entirely within one underlying block it is a
// zero-copy view into the source; otherwise it is gathered into a pooled
// buffer owned by this stream and cached so repeated identical requests
// return the same bytes (and, notably, the same backing array).
func (s *MappedBlockStream) ReadBytes(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(s.length) {
		return nil, ErrOutOfRange
	}
	if length == 0 {
		return nil, nil
	}

	startBlock := offset / s.blockSize
	endBlock := (offset + length - 1) / s.blockSize

	if startBlock == endBlock {
		blockOff, err := s.blockFileOffset(startBlock)
		if err != nil {
			return nil, err
		}
		return s.source.ReadBytes(blockOff+int64(offset%s.blockSize), int(length))
	}

	key := spanKey{offset, length}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache == nil {
		s.cache = make(map[spanKey][]byte)
	}
	if buf, ok := s.cache[key]; ok {
		return buf, nil
	}

	buf := make([]byte, length)
	remaining := length
	pos := offset
	dst := 0
	for remaining > 0 {
		blockIndex := pos / s.blockSize
		blockOffset := pos % s.blockSize
		blockOff, err := s.blockFileOffset(blockIndex)
		if err != nil {
			return nil, err
		}

		toRead := s.blockSize - blockOffset
		if toRead > remaining {
			toRead = remaining
		}

		chunk, err := s.source.ReadBytes(blockOff+int64(blockOffset), int(toRead))
		if err != nil {
			return nil, corruptf("stream block %d unreadable: %v", s.blocks[blockIndex], err)
		}
		copy(buf[dst:], chunk)

		dst += int(toRead)
		pos += toRead
		remaining -= toRead
	}

	s.cache[key] = buf
	return buf, nil
}

func (s *MappedBlockStream) blockFileOffset(blockIndex uint32) (int64, error) {
	if int(blockIndex) >= len(s.blocks) {
		return 0, corruptf("stream block index %d out of range (have %d blocks)", blockIndex, len(s.blocks))
	}
	block := s.blocks[blockIndex]
	if BlockToOffset(block, s.blockSize)+int64(s.blockSize) > s.source.Length() {
		return 0, corruptf("stream block %d lies outside source", block)
	}
	return BlockToOffset(block, s.blockSize), nil
}

// Bytes reads the entire stream into one contiguous slice.
func (s *MappedBlockStream) Bytes() ([]byte, error) {
	return s.ReadBytes(0, s.length)
}

// Read implements io.Reader, advancing the stream's internal cursor.
func (s *MappedBlockStream) Read(p []byte) (int, error) {
	if s.pos >= s.length {
		return 0, io.EOF
	}
	remaining := s.length - s.pos
	n := uint32(len(p))
	if n > remaining {
		n = remaining
	}
	buf, err := s.ReadBytes(s.pos, n)
	if err != nil {
		return 0, err
	}
	copy(p, buf)
	s.pos += n
	return int(n), nil
}

// Seek implements io.Seeker.
func (s *MappedBlockStream) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = int64(s.pos) + offset
	case io.SeekEnd:
		newPos = int64(s.length) + offset
	default:
		return 0, fmt.Errorf("msf: invalid seek whence: %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("msf: negative seek position: %d", newPos)
	}
	if newPos > int64(s.length) {
		newPos = int64(s.length)
	}
	s.pos = uint32(newPos)
	return newPos, nil
}
