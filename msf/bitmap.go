package msf

import (
	"encoding/binary"
	"math/bits"
)

// BitmapFreeList is a growable bit vector of free/used blocks, scanned word
// at a time: all-zero (fully used) words are skipped before any bit test, so
// allocator workloads never degrade to a bit-by-bit scan.
//
// A set bit means "free," matching the on-disk Free Page Map convention:
// bit i is encoded at byte[i/8] & (1 << (i%8)).
type BitmapFreeList struct {
	words []uint64
	n     uint32 // logical number of bits (may be < len(words)*64)
}

// NewBitmapFreeList creates a free list of n bits, all initialized to
// initialFree.
func NewBitmapFreeList(n uint32, initialFree bool) *BitmapFreeList {
	b := &BitmapFreeList{
		words: make([]uint64, wordsFor(n)),
		n:     n,
	}
	if initialFree {
		b.fillRange(0, n, true)
	}
	return b
}

func wordsFor(n uint32) int {
	return int((n + 63) / 64)
}

// Len returns the number of bits currently tracked.
func (b *BitmapFreeList) Len() uint32 { return b.n }

// Resize grows the free list to n bits, appending bits initialized to
// fill. It never shrinks: if n <= Len() it is a no-op, since the builder
// never needs to drop bits once allocated.
func (b *BitmapFreeList) Resize(n uint32, fill bool) {
	if n <= b.n {
		return
	}
	old := b.n
	need := wordsFor(n)
	if need > len(b.words) {
		grown := make([]uint64, need)
		copy(grown, b.words)
		b.words = grown
	}
	b.n = n
	if fill {
		b.fillRange(old, n, true)
	}
}

func (b *BitmapFreeList) fillRange(from, to uint32, free bool) {
	for i := from; i < to; i++ {
		if free {
			b.SetFree(i)
		} else {
			b.SetUsed(i)
		}
	}
}

// SetFree marks bit i as free.
func (b *BitmapFreeList) SetFree(i uint32) {
	b.words[i/64] |= 1 << (i % 64)
}

// SetUsed marks bit i as used.
func (b *BitmapFreeList) SetUsed(i uint32) {
	b.words[i/64] &^= 1 << (i % 64)
}

// IsFree reports whether bit i is free. Indices beyond Len() are reported
// used (the file has no such block).
func (b *BitmapFreeList) IsFree(i uint32) bool {
	if i >= b.n {
		return false
	}
	return b.words[i/64]&(1<<(i%64)) != 0
}

// CountFree returns the number of free bits.
func (b *BitmapFreeList) CountFree() uint32 {
	var total uint32
	full := b.n / 64
	for i := uint32(0); i < full; i++ {
		total += uint32(bits.OnesCount64(b.words[i]))
	}
	if rem := b.n % 64; rem != 0 {
		mask := uint64(1)<<rem - 1
		total += uint32(bits.OnesCount64(b.words[full] & mask))
	}
	return total
}

// FindFirstFree returns the index of the lowest free bit, or (0, false) if
// none exists.
func (b *BitmapFreeList) FindFirstFree() (uint32, bool) {
	return b.findFreeFrom(0)
}

// FindNextFree returns the index of the lowest free bit strictly greater
// than after, or (0, false) if none exists.
func (b *BitmapFreeList) FindNextFree(after uint32) (uint32, bool) {
	return b.findFreeFrom(after + 1)
}

// FromBytesLE decodes data as a bit-little-endian bitmap of n bits: bit i
// lives at byte[i/8] & (1 << (i%8)), the Free Page Map convention. Because
// a uint64 word is exactly 8 such bytes, each word can be decoded directly
// with binary.LittleEndian, matching BitmapFreeList's own word layout.
func FromBytesLE(data []byte, n uint32) *BitmapFreeList {
	b := &BitmapFreeList{words: make([]uint64, wordsFor(n)), n: n}
	for i := range b.words {
		var word [8]byte
		copy(word[:], data[i*8:])
		b.words[i] = binary.LittleEndian.Uint64(word[:])
	}
	// Clear any bits beyond n in the final word so CountFree/scans agree
	// with the logical length.
	if rem := n % 64; rem != 0 && len(b.words) > 0 {
		mask := uint64(1)<<rem - 1
		b.words[len(b.words)-1] &= mask
	}
	return b
}

// Bytes serializes the bitmap back into bit-little-endian form, padded
// with zero (used) bits to size bytes.
func (b *BitmapFreeList) Bytes(size int) []byte {
	out := make([]byte, size)
	for i, w := range b.words {
		var word [8]byte
		binary.LittleEndian.PutUint64(word[:], w)
		copy(out[i*8:], word[:])
	}
	return out
}

func (b *BitmapFreeList) findFreeFrom(start uint32) (uint32, bool) {
	if start >= b.n {
		return 0, false
	}
	wordIdx := start / 64
	bitIdx := start % 64

	// Mask off bits below bitIdx in the first word we inspect.
	first := b.words[wordIdx] &^ (1<<bitIdx - 1)
	if first != 0 {
		pos := wordIdx*64 + uint32(bits.TrailingZeros64(first))
		if pos < b.n {
			return pos, true
		}
		return 0, false
	}

	for w := wordIdx + 1; w < uint32(len(b.words)); w++ {
		word := b.words[w]
		if word == 0 {
			continue
		}
		pos := w*64 + uint32(bits.TrailingZeros64(word))
		if pos < b.n {
			return pos, true
		}
		return 0, false
	}
	return 0, false
}
