package msf

import (
	"bytes"
	"fmt"
	"sync"
)

// File is an opened, parsed MSF container. The directory is parsed lazily
// on first use, guarded by sync.Once, and per-stream MappedBlockStreams
// are cached once constructed. Once parseHeaders or parseDirectory fails,
// the File is permanently invalid and must not be queried further.
type File struct {
	source ReadableSource
	owned  bool // true if Close should close the source

	superBlock *SuperBlock
	layout     *Layout

	headerErr error // sticky once parseHeaders has run

	dirOnce sync.Once
	dirErr  error

	mu      sync.RWMutex
	streams map[uint32]*MappedBlockStream
}

// Open opens path as a memory-mapped MSF file and parses its headers.
func Open(path string) (*File, error) {
	src, err := OpenMmapSource(path)
	if err != nil {
		return nil, err
	}
	f, err := NewFile(src)
	if err != nil {
		src.Close()
		return nil, err
	}
	f.owned = true
	return f, nil
}

// NewFile wraps an already-open ReadableSource and parses its headers. The
// caller retains ownership of source: File.Close does not close a source
// passed to NewFile, only one that Open opened itself.
func NewFile(source ReadableSource) (*File, error) {
	f := &File{source: source, streams: make(map[uint32]*MappedBlockStream)}
	if err := f.parseHeaders(); err != nil {
		return nil, err
	}
	return f, nil
}

// Close releases the underlying source if this File opened it itself.
func (f *File) Close() error {
	if f.owned {
		return f.source.Close()
	}
	return nil
}

// parseHeaders reads the SuperBlock, checks the file length against its
// block size, parses the free-page-map block, and reads the directory's
// own block list.
func (f *File) parseHeaders() error {
	sbBytes, err := f.source.ReadBytes(0, SuperBlockSize)
	if err != nil {
		f.headerErr = corruptf("no superblock")
		return f.headerErr
	}

	sb, err := ReadSuperBlock(bytes.NewReader(sbBytes))
	if err != nil {
		f.headerErr = err
		return err
	}

	if f.source.Length()%int64(sb.BlockSize) != 0 {
		f.headerErr = corruptf("size not multiple of block size")
		return f.headerErr
	}

	fpmBytes, err := f.source.ReadBytes(sb.BlockOffset(sb.FreeBlockMapBlock), int(sb.BlockSize))
	if err != nil {
		f.headerErr = corruptf("free page map block out of range")
		return f.headerErr
	}
	fpm := FromBytesLE(fpmBytes, sb.BlockSize*8)

	numDirBlocks := sb.NumDirectoryBlocks()
	blockMapBytes, err := f.source.ReadBytes(sb.BlockOffset(sb.BlockMapAddr), int(numDirBlocks)*4)
	if err != nil {
		f.headerErr = corruptf("block map out of range")
		return f.headerErr
	}
	dirBlocks := make([]uint32, numDirBlocks)
	for i := range dirBlocks {
		dirBlocks[i] = leUint32(blockMapBytes[i*4:])
	}

	f.superBlock = sb
	f.layout = &Layout{
		SuperBlock:      sb,
		DirectoryBlocks: dirBlocks,
		FreePageMap:     fpm,
	}
	return nil
}

// parseDirectory parses the stream directory on first call; later calls
// are no-ops.
func (f *File) parseDirectory() error {
	f.dirOnce.Do(func() {
		if f.headerErr != nil {
			f.dirErr = f.headerErr
			return
		}

		dirStream := CreateDirectoryStream(f.layout, f.source)
		data, err := dirStream.Bytes()
		if err != nil {
			f.dirErr = err
			return
		}

		sizes, blocks, err := parseDirectoryPayload(data, f.superBlock.BlockSize)
		if err != nil {
			f.dirErr = err
			return
		}

		fileLen := f.source.Length()
		for i, list := range blocks {
			for _, b := range list {
				if BlockToOffset(b, f.superBlock.BlockSize)+int64(f.superBlock.BlockSize) > fileLen {
					f.dirErr = corruptf("stream %d block map corrupt", i)
					return
				}
			}
		}

		f.layout.StreamSizes = sizes
		f.layout.StreamBlocks = blocks
	})
	return f.dirErr
}

// SuperBlock returns the parsed SuperBlock.
func (f *File) SuperBlock() *SuperBlock { return f.superBlock }

// Layout returns the file's Layout. The directory portion is populated
// only after the directory has been parsed (lazily, on first call to any
// accessor below).
func (f *File) Layout() (*Layout, error) {
	if err := f.parseDirectory(); err != nil {
		return nil, err
	}
	return f.layout, nil
}

// NumStreams returns the number of streams in the directory.
func (f *File) NumStreams() (uint32, error) {
	if err := f.parseDirectory(); err != nil {
		return 0, err
	}
	return f.layout.NumStreams(), nil
}

// StreamSize returns the size in bytes of the given stream, or 0 for a
// deleted (sentinel) or out-of-range stream.
func (f *File) StreamSize(streamIndex uint32) (uint32, error) {
	if err := f.parseDirectory(); err != nil {
		return 0, err
	}
	if streamIndex >= f.layout.NumStreams() {
		return 0, nil
	}
	size := f.layout.StreamSizes[streamIndex]
	if size == NilStreamSize {
		return 0, nil
	}
	return size, nil
}

// StreamExists reports whether streamIndex names a present, non-deleted
// stream.
func (f *File) StreamExists(streamIndex uint32) (bool, error) {
	if err := f.parseDirectory(); err != nil {
		return false, err
	}
	if streamIndex >= f.layout.NumStreams() {
		return false, nil
	}
	return f.layout.StreamSizes[streamIndex] != NilStreamSize, nil
}

// OpenStream returns the (lazily constructed, cached) MappedBlockStream for
// streamIndex.
func (f *File) OpenStream(streamIndex uint32) (*MappedBlockStream, error) {
	if err := f.parseDirectory(); err != nil {
		return nil, err
	}
	if streamIndex >= f.layout.NumStreams() {
		return nil, fmt.Errorf("%w: stream %d", ErrOutOfRange, streamIndex)
	}
	if f.layout.StreamSizes[streamIndex] == NilStreamSize {
		return nil, fmt.Errorf("msf: stream %d is deleted", streamIndex)
	}

	f.mu.RLock()
	if s, ok := f.streams[streamIndex]; ok {
		f.mu.RUnlock()
		return s, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.streams[streamIndex]; ok {
		return s, nil
	}
	s, err := CreateIndexedStream(f.layout, f.source, streamIndex)
	if err != nil {
		return nil, err
	}
	f.streams[streamIndex] = s
	return s, nil
}

// ReadStream reads an entire stream into memory; a convenience wrapper
// around OpenStream + Bytes for smaller streams.
func (f *File) ReadStream(streamIndex uint32) ([]byte, error) {
	s, err := f.OpenStream(streamIndex)
	if err != nil {
		return nil, err
	}
	return s.Bytes()
}

// SetBlockData is not supported on a Reader, which is read-only.
func (f *File) SetBlockData(blockIndex uint32, data []byte) error {
	return ErrNotWritable
}

// BlockSize returns the file's block size.
func (f *File) BlockSize() uint32 { return f.superBlock.BlockSize }

// FileSize returns the total size of the underlying source.
func (f *File) FileSize() int64 { return f.source.Length() }

// NumBlocks returns the total number of blocks in the file.
func (f *File) NumBlocks() uint32 { return f.superBlock.NumBlocks }

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
