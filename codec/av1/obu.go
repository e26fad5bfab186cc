package av1

import (
	"errors"
	"fmt"
	"io"
)

// OBUType is the obu_type field of an OBU header.
type OBUType uint8

const (
	OBUSequenceHeader       OBUType = 1
	OBUTemporalDelimiter    OBUType = 2
	OBUFrameHeader          OBUType = 3
	OBUTileGroup            OBUType = 4
	OBUMetadata             OBUType = 5
	OBUFrame                OBUType = 6
	OBURedundantFrameHeader OBUType = 7
	OBUTileList             OBUType = 8
	OBUPadding              OBUType = 15
)

func (t OBUType) String() string {
	switch t {
	case OBUSequenceHeader:
		return "OBU_SEQUENCE_HEADER"
	case OBUTemporalDelimiter:
		return "OBU_TEMPORAL_DELIMITER"
	case OBUFrameHeader:
		return "OBU_FRAME_HEADER"
	case OBUTileGroup:
		return "OBU_TILE_GROUP"
	case OBUMetadata:
		return "OBU_METADATA"
	case OBUFrame:
		return "OBU_FRAME"
	case OBURedundantFrameHeader:
		return "OBU_REDUNDANT_FRAME_HEADER"
	case OBUTileList:
		return "OBU_TILE_LIST"
	case OBUPadding:
		return "OBU_PADDING"
	}
	return fmt.Sprintf("OBU_RESERVED(%d)", uint8(t))
}

var (
	ErrForbiddenBit = errors.New("av1parser: OBU forbidden bit set")
	ErrLEB128       = errors.New("av1parser: leb128 value exceeds 32 bits")
)

// OBUHeader is the header of an open bitstream unit.
type OBUHeader struct {
	Type         OBUType
	HasExtension bool
	HasSize      bool
	TemporalID   uint8
	SpatialID    uint8
	// Size is the payload size when HasSize is set.
	Size uint64
}

// OBU is one unit split from a buffer. Payload aliases the source.
type OBU struct {
	Header  OBUHeader
	Payload []byte
	// Len is the number of source bytes the OBU occupies.
	Len int
}

// ReadLEB128 decodes an unsigned LEB128 value of at most 8 bytes and
// returns it with the number of bytes consumed.
func ReadLEB128(b []byte) (v uint64, n int, err error) {
	const maxBytes = 8
	for i := range maxBytes {
		if i >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		v |= uint64(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			if v > 1<<32-1 {
				return 0, 0, ErrLEB128
			}
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrLEB128
}

// AppendLEB128 appends v in the shortest LEB128 form.
func AppendLEB128(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b = append(b, c|0x80)
			continue
		}
		return append(b, c)
	}
}

// ParseOBU splits the first OBU from b. Without a size field the OBU spans
// the rest of b.
func ParseOBU(b []byte) (obu OBU, err error) {
	if len(b) < 1 {
		err = io.ErrUnexpectedEOF
		return
	}
	if b[0]&0x80 != 0 {
		err = ErrForbiddenBit
		return
	}
	h := &obu.Header
	h.Type = OBUType(b[0] >> 3 & 0x0f)
	h.HasExtension = b[0]&0x04 != 0
	h.HasSize = b[0]&0x02 != 0
	n := 1

	if h.HasExtension {
		if len(b) < 2 { //nolint:mnd
			err = io.ErrUnexpectedEOF
			return
		}
		h.TemporalID = b[1] >> 5
		h.SpatialID = b[1] >> 3 & 0x03
		n++
	}

	if !h.HasSize {
		obu.Payload = b[n:]
		obu.Len = len(b)
		return
	}

	size, sn, err := ReadLEB128(b[n:])
	if err != nil {
		return
	}
	n += sn
	if uint64(len(b)-n) < size {
		err = io.ErrUnexpectedEOF
		return
	}
	h.Size = size
	obu.Payload = b[n : n+int(size)] //nolint:gosec // bounded by len(b)
	obu.Len = n + int(size)          //nolint:gosec // bounded by len(b)
	return
}

// SplitOBUs splits a low overhead bitstream into its OBUs.
func SplitOBUs(b []byte) (obus []OBU, err error) {
	for len(b) > 0 {
		var obu OBU
		if obu, err = ParseOBU(b); err != nil {
			return
		}
		obus = append(obus, obu)
		b = b[obu.Len:]
	}
	return
}
