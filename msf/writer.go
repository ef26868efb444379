package msf

import (
	"bytes"
	"encoding/binary"
)

// WriteLayout serializes a Layout's container metadata (SuperBlock, active
// free-page-map block, block-map array, and directory payload) into a
// freshly zeroed file-sized buffer. Stream payload bytes themselves are
// outside the Builder's responsibility: it describes the finished file's
// structure, not its stream contents, so the blocks a stream occupies are
// left zeroed here for a caller to fill in separately.
func WriteLayout(layout *Layout) ([]byte, error) {
	sb := layout.SuperBlock
	buf := make([]byte, sb.FileSize())

	var sbBuf bytes.Buffer
	if _, err := sb.WriteTo(&sbBuf); err != nil {
		return nil, err
	}
	copy(buf, sbBuf.Bytes())

	fpmBytes := layout.FreePageMap.Bytes(int(sb.BlockSize))
	copy(buf[sb.BlockOffset(sb.FreeBlockMapBlock):], fpmBytes)

	blockMapBytes := make([]byte, len(layout.DirectoryBlocks)*4)
	for i, b := range layout.DirectoryBlocks {
		binary.LittleEndian.PutUint32(blockMapBytes[i*4:], b)
	}
	copy(buf[sb.BlockOffset(sb.BlockMapAddr):], blockMapBytes)

	payload := serializeDirectoryPayload(layout.StreamSizes, layout.StreamBlocks)
	pos := 0
	for _, blk := range layout.DirectoryBlocks {
		n := int(sb.BlockSize)
		if pos+n > len(payload) {
			n = len(payload) - pos
		}
		if n <= 0 {
			break
		}
		copy(buf[sb.BlockOffset(blk):], payload[pos:pos+n])
		pos += n
	}

	return buf, nil
}
