package msf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitmapFreeListBasic(t *testing.T) {
	b := NewBitmapFreeList(10, true)
	assert.Equal(t, uint32(10), b.CountFree())

	b.SetUsed(3)
	assert.False(t, b.IsFree(3))
	assert.Equal(t, uint32(9), b.CountFree())

	idx, ok := b.FindFirstFree()
	assert.True(t, ok)
	assert.Equal(t, uint32(0), idx)

	b.SetFree(3)
	assert.True(t, b.IsFree(3))
	assert.Equal(t, uint32(10), b.CountFree())
}

func TestBitmapFreeListFindNext(t *testing.T) {
	b := NewBitmapFreeList(8, false)
	b.SetFree(2)
	b.SetFree(5)
	b.SetFree(7)

	idx, ok := b.FindFirstFree()
	assert.True(t, ok)
	assert.Equal(t, uint32(2), idx)

	idx, ok = b.FindNextFree(idx)
	assert.True(t, ok)
	assert.Equal(t, uint32(5), idx)

	idx, ok = b.FindNextFree(idx)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), idx)

	_, ok = b.FindNextFree(idx)
	assert.False(t, ok)
}

func TestBitmapFreeListCrossWordScan(t *testing.T) {
	// 130 bits spans three 64-bit words; only the very last bit is free.
	b := NewBitmapFreeList(130, false)
	b.SetFree(129)

	idx, ok := b.FindFirstFree()
	assert.True(t, ok)
	assert.Equal(t, uint32(129), idx)
}

func TestBitmapFreeListResizeNeverShrinks(t *testing.T) {
	b := NewBitmapFreeList(10, false)
	b.SetFree(0)
	b.Resize(5, true) // smaller than current length: no-op
	assert.Equal(t, uint32(10), b.Len())

	b.Resize(20, true)
	assert.Equal(t, uint32(20), b.Len())
	// newly appended bits are free as requested
	assert.True(t, b.IsFree(15))
	// previously used bits remain used
	assert.False(t, b.IsFree(1))
}

func TestBitmapFreeListRoundTripBytes(t *testing.T) {
	b := NewBitmapFreeList(64, false)
	b.SetFree(0)
	b.SetFree(9)
	b.SetFree(63)

	raw := b.Bytes(8)
	// bit 0 -> byte 0 bit 0; bit 9 -> byte 1 bit 1; bit 63 -> byte 7 bit 7
	assert.Equal(t, byte(0x01), raw[0])
	assert.Equal(t, byte(0x02), raw[1])
	assert.Equal(t, byte(0x80), raw[7])

	decoded := FromBytesLE(raw, 64)
	assert.True(t, decoded.IsFree(0))
	assert.True(t, decoded.IsFree(9))
	assert.True(t, decoded.IsFree(63))
	assert.False(t, decoded.IsFree(1))
	assert.Equal(t, b.CountFree(), decoded.CountFree())
}
