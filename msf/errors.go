package msf

import (
	"errors"
	"fmt"
)

// Sentinel errors for the structural and policy failures the core can
// surface.
var (
	// ErrInvalidFormat signals an unsupported block size or a structurally
	// invalid SuperBlock, including a magic mismatch.
	ErrInvalidFormat = errors.New("msf: invalid format")

	// ErrCorruptFile signals a missing superblock, a file length that isn't a
	// multiple of the block size, or an out-of-range block reference.
	ErrCorruptFile = errors.New("msf: corrupt file")

	// ErrInsufficientBuffer signals that a non-growable builder ran out of
	// free blocks.
	ErrInsufficientBuffer = errors.New("msf: insufficient buffer")

	// ErrBlockInUse signals an attempt to reserve a block that is already
	// reserved.
	ErrBlockInUse = errors.New("msf: block in use")

	// ErrUnspecified covers any other policy violation, such as a
	// caller-supplied block list that collides with an already-used block
	// or contains an internal duplicate.
	ErrUnspecified = errors.New("msf: block reuse")

	// ErrNotWritable signals a write attempted against a Reader.
	ErrNotWritable = errors.New("msf: not writable")

	// ErrOutOfRange signals a read past the end of a stream or source.
	ErrOutOfRange = errors.New("msf: out of range")
)

// CorruptFileError wraps ErrCorruptFile with a human-readable reason
// alongside the sentinel class.
type CorruptFileError struct {
	Reason string
}

func (e *CorruptFileError) Error() string {
	return fmt.Sprintf("msf: corrupt file: %s", e.Reason)
}

func (e *CorruptFileError) Unwrap() error { return ErrCorruptFile }

func corruptf(reason string, args ...any) error {
	return &CorruptFileError{Reason: fmt.Sprintf(reason, args...)}
}
