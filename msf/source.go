package msf

import (
	"fmt"
	"io"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// ReadableSource is the byte source an MSF file is read from: a
// random-access memory buffer or a memory-mapped file. Implementations
// are read-only and safe for concurrent ReadBytes calls.
type ReadableSource interface {
	// Length returns the total size of the source in bytes.
	Length() int64

	// ReadBytes returns a view of len bytes starting at offset. The
	// returned slice is zero-copy when the implementation can serve it
	// directly out of its backing buffer; callers must not assume it is
	// writable or stable across later mutation of the source (the core
	// never mutates a ReadableSource after construction, so in practice it
	// is stable for the source's lifetime).
	ReadBytes(offset int64, n int) ([]byte, error)

	// Close releases any resources (mmap, file descriptor) held by the
	// source. MemorySource's Close is a no-op.
	Close() error
}

// MemorySource is a ReadableSource backed by an in-memory byte slice.
type MemorySource struct {
	data []byte
}

// NewMemorySource wraps data as a ReadableSource. data is not copied; the
// caller must not mutate it while the source is in use.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

// ReadAllSource reads r fully into memory and wraps it as a MemorySource,
// for small inputs such as CLI stdin where mapping a real file is overkill.
func ReadAllSource(r io.Reader) (*MemorySource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("msf: failed to read source: %w", err)
	}
	return NewMemorySource(data), nil
}

func (m *MemorySource) Length() int64 { return int64(len(m.data)) }

func (m *MemorySource) ReadBytes(offset int64, n int) ([]byte, error) {
	if offset < 0 || n < 0 || offset+int64(n) > m.Length() {
		return nil, ErrOutOfRange
	}
	return m.data[offset : offset+int64(n)], nil
}

func (m *MemorySource) Close() error { return nil }

// MmapSource is a ReadableSource backed by a read-only memory-mapped file.
type MmapSource struct {
	file *os.File
	m    mmap.MMap
}

// OpenMmapSource memory-maps path read-only.
func OpenMmapSource(path string) (*MmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("msf: failed to open file: %w", err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("msf: failed to mmap file: %w", err)
	}

	return &MmapSource{file: f, m: m}, nil
}

func (s *MmapSource) Length() int64 { return int64(len(s.m)) }

func (s *MmapSource) ReadBytes(offset int64, n int) ([]byte, error) {
	if offset < 0 || n < 0 || offset+int64(n) > s.Length() {
		return nil, ErrOutOfRange
	}
	return s.m[offset : offset+int64(n)], nil
}

func (s *MmapSource) Close() error {
	if err := s.m.Unmap(); err != nil {
		s.file.Close()
		return fmt.Errorf("msf: failed to unmap file: %w", err)
	}
	return s.file.Close()
}
