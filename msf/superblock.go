// Package msf implements the Multi-Stream File (MSF) container format
// underlying Microsoft PDB debug files: a superblock, a block-addressed
// free-page map, and a stream directory that virtualizes independent byte
// streams over a flat sequence of fixed-size blocks.
package msf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic is the 32-byte PDB 7.0 ("BigMsf") file signature.
const Magic = "Microsoft C/C++ MSF 7.00\r\n\x1a\x44\x53\x00\x00\x00"

// MagicSize is the size of the magic signature in bytes.
const MagicSize = 32

// SuperBlockSize is the total on-disk size of the SuperBlock structure.
const SuperBlockSize = 56

// SuperBlock is the fixed-layout header at file offset 0.
type SuperBlock struct {
	// FileMagic must equal Magic.
	FileMagic [MagicSize]byte

	// BlockSize is the file's block size, one of {512, 1024, 2048, 4096}.
	BlockSize uint32

	// FreeBlockMapBlock is the index of the active FPM block: 1 or 2. The
	// MSF format supports atomic updates by writing the inactive FPM slot
	// first, then swapping this value.
	FreeBlockMapBlock uint32

	// NumBlocks is the total number of blocks in the file.
	NumBlocks uint32

	// NumDirectoryBytes is the size in bytes of the serialized stream
	// directory.
	NumDirectoryBytes uint32

	// Unknown1 is an opaque 32-bit passthrough field.
	Unknown1 uint32

	// BlockMapAddr is the block index of the array of block indices that
	// locates the stream directory.
	BlockMapAddr uint32
}

// ReadSuperBlock reads and validates a SuperBlock from r, which must be
// positioned at the start of the MSF file.
func ReadSuperBlock(r io.Reader) (*SuperBlock, error) {
	var sb SuperBlock
	if err := binary.Read(r, binary.LittleEndian, &sb); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, corruptf("no superblock")
		}
		return nil, fmt.Errorf("msf: failed to read superblock: %w", err)
	}
	if err := sb.Validate(); err != nil {
		return nil, err
	}
	return &sb, nil
}

// Validate checks the SuperBlock's magic, block size, free-page-map
// candidate, block count, and block map address for structural validity.
func (sb *SuperBlock) Validate() error {
	if string(sb.FileMagic[:]) != Magic {
		return ErrInvalidFormat
	}
	if !IsValidBlockSize(sb.BlockSize) {
		return ErrInvalidFormat
	}
	if sb.FreeBlockMapBlock != 1 && sb.FreeBlockMapBlock != 2 {
		return ErrInvalidFormat
	}
	if sb.NumBlocks == 0 {
		return ErrInvalidFormat
	}
	if sb.BlockMapAddr >= sb.NumBlocks {
		return ErrInvalidFormat
	}
	return nil
}

// NumDirectoryBlocks returns the number of blocks needed to store the
// serialized stream directory.
func (sb *SuperBlock) NumDirectoryBlocks() uint32 {
	return BytesToBlocks(sb.NumDirectoryBytes, sb.BlockSize)
}

// FileSize returns the file size implied by NumBlocks * BlockSize.
func (sb *SuperBlock) FileSize() int64 {
	return int64(sb.NumBlocks) * int64(sb.BlockSize)
}

// BlockOffset returns the byte offset of the start of the given block.
func (sb *SuperBlock) BlockOffset(block uint32) int64 {
	return BlockToOffset(block, sb.BlockSize)
}

// WriteTo serializes the SuperBlock in the on-disk little-endian layout.
func (sb *SuperBlock) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, sb); err != nil {
		return 0, err
	}
	return SuperBlockSize, nil
}
