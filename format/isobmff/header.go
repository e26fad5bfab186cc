package isobmff

import (
	"fmt"
	"math"

	"github.com/deepch/vdk/utils/bits/pio"
	"github.com/google/uuid"

	"github.com/ugparu/bmff/utils/zerocopy"
)

const (
	headerLen      = 8
	largeSizeLen   = 8
	extendedLen    = 16
	fullHeaderLen  = 4
	sizeToEnd      = 0
	sizeLargeFlag  = 1
	maxShortSize   = math.MaxUint32
	flagsMask      = 0x00FFFFFF
	uuidSuffixSize = 12
)

// FourCC is a four character box or brand code.
type FourCC [4]byte

// MakeFourCC converts a four byte string into a FourCC.
func MakeFourCC(s string) (f FourCC) {
	copy(f[:], s)
	return
}

func (f FourCC) String() string {
	b := f
	for i := range b {
		if b[i] == 0 {
			b[i] = ' '
		}
	}
	return string(b[:])
}

// uuidSuffix completes a FourCC into its canonical UUID.
var uuidSuffix = [uuidSuffixSize]byte{0x00, 0x11, 0x00, 0x10, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

var uuidFourCC = MakeFourCC("uuid")

// BoxType identifies a box schema. It is either a FourCC or, for extended
// types, a UUID. The two forms are distinct values even when the UUID is the
// canonical extension of a FourCC.
type BoxType struct {
	fourCC   FourCC
	extended uuid.UUID
	isUUID   bool
}

// Type4 returns the FourCC box type for a four character code.
func Type4(s string) BoxType {
	return BoxType{fourCC: MakeFourCC(s)}
}

// TypeOf returns the FourCC box type for f.
func TypeOf(f FourCC) BoxType {
	return BoxType{fourCC: f}
}

// TypeUUID returns the extended box type for u.
func TypeUUID(u uuid.UUID) BoxType {
	return BoxType{extended: u, isUUID: true}
}

// IsUUID reports whether t is an extended type.
func (t BoxType) IsUUID() bool {
	return t.isUUID
}

// FourCC returns the code of a FourCC type, or the first four bytes of a UUID type.
func (t BoxType) FourCC() (f FourCC) {
	if t.isUUID {
		copy(f[:], t.extended[:4])
		return
	}
	return t.fourCC
}

// UUID returns the extended type, or the canonical UUID of a FourCC type.
func (t BoxType) UUID() (u uuid.UUID) {
	if t.isUUID {
		return t.extended
	}
	copy(u[:4], t.fourCC[:])
	copy(u[4:], uuidSuffix[:])
	return
}

// IsCanonical reports whether a UUID type is the canonical extension of a FourCC.
func (t BoxType) IsCanonical() bool {
	if !t.isUUID {
		return true
	}
	return [uuidSuffixSize]byte(t.extended[4:]) == uuidSuffix
}

// Len returns the number of header bytes used to encode the type.
func (t BoxType) Len() int {
	if t.isUUID {
		return 4 + extendedLen
	}
	return 4
}

func (t BoxType) String() string {
	if t.isUUID {
		return "uuid:" + t.extended.String()
	}
	return t.fourCC.String()
}

// SizeKind selects how a box size is encoded.
type SizeKind uint8

// Size classes of the box header.
const (
	// SizeShort is a 32-bit size.
	SizeShort SizeKind = iota
	// SizeLong is a 64-bit size following a size field of 1.
	SizeLong
	// SizeToEnd is a size field of 0: the box extends to the end of its container.
	SizeToEnd
)

func (k SizeKind) String() string {
	switch k {
	case SizeShort:
		return "short"
	case SizeLong:
		return "long"
	case SizeToEnd:
		return "to-end"
	}
	return fmt.Sprintf("SizeKind(%d)", uint8(k))
}

// BoxSize is the declared size of a box including its header.
type BoxSize struct {
	Kind  SizeKind
	Value uint64
}

// ShortSize returns a 32-bit box size.
func ShortSize(n uint32) BoxSize {
	return BoxSize{Kind: SizeShort, Value: uint64(n)}
}

// LongSize returns a 64-bit box size.
func LongSize(n uint64) BoxSize {
	return BoxSize{Kind: SizeLong, Value: n}
}

// ToEnd is the size of a box that extends to the end of its container.
var ToEnd = BoxSize{Kind: SizeToEnd}

// BoxHeader is the size and type that precede every box payload.
type BoxHeader struct {
	Size BoxSize
	Type BoxType
}

// NewHeader returns the header a writer would emit for a payload of n bytes.
func NewHeader(t BoxType, payload int) BoxHeader {
	h := BoxHeader{Type: t}
	total := uint64(headerLen + t.Len() - 4 + payload) //nolint:gosec // payload is a length
	if total > maxShortSize {
		h.Size = LongSize(total + largeSizeLen)
	} else {
		h.Size = ShortSize(uint32(total))
	}
	return h
}

// DemuxHeader reads a box header from r.
func DemuxHeader(r *zerocopy.Reader) (h BoxHeader, err error) {
	size, err := r.U32()
	if err != nil {
		return
	}
	code, err := r.ExtractBytes(4) //nolint:mnd
	if err != nil {
		return
	}

	switch size {
	case sizeToEnd:
		h.Size = ToEnd
	case sizeLargeFlag:
		var large uint64
		if large, err = r.U64(); err != nil {
			return
		}
		h.Size = LongSize(large)
	default:
		h.Size = ShortSize(size)
	}

	if FourCC(code) == uuidFourCC {
		var ext []byte
		if ext, err = r.ExtractBytes(extendedLen); err != nil {
			return
		}
		h.Type = TypeUUID(uuid.UUID(ext))
	} else {
		h.Type = TypeOf(FourCC(code))
	}

	if h.Size.Kind != SizeToEnd && h.Size.Value < uint64(h.Len()) { //nolint:gosec
		err = &InvalidSizeError{Type: h.Type, Size: h.Size.Value, HeaderLen: h.Len()}
	}
	return
}

// Len returns the encoded length of the header itself.
func (h BoxHeader) Len() int {
	n := headerLen
	if h.Size.Kind == SizeLong {
		n += largeSizeLen
	}
	if h.Type.isUUID {
		n += extendedLen
	}
	return n
}

// PayloadSize returns the declared size minus the header length. It reports
// false for a ToEnd box, whose payload length depends on the container.
func (h BoxHeader) PayloadSize() (uint64, bool) {
	if h.Size.Kind == SizeToEnd {
		return 0, false
	}
	return h.Size.Value - uint64(h.Len()), true //nolint:gosec
}

// Marshal writes the header to b and returns the number of bytes written.
func (h BoxHeader) Marshal(b []byte) (n int) {
	switch h.Size.Kind {
	case SizeToEnd:
		pio.PutU32BE(b[n:], sizeToEnd)
	case SizeLong:
		pio.PutU32BE(b[n:], sizeLargeFlag)
	default:
		pio.PutU32BE(b[n:], uint32(h.Size.Value)) //nolint:gosec // short sizes fit 32 bits
	}
	n += 4
	if h.Type.isUUID {
		n += copy(b[n:], uuidFourCC[:])
	} else {
		n += copy(b[n:], h.Type.fourCC[:])
	}
	if h.Size.Kind == SizeLong {
		pio.PutU64BE(b[n:], h.Size.Value)
		n += 8
	}
	if h.Type.isUUID {
		n += copy(b[n:], h.Type.extended[:])
	}
	return
}

func (h BoxHeader) String() string {
	if h.Size.Kind == SizeToEnd {
		return fmt.Sprintf("%s size=to-end", h.Type)
	}
	return fmt.Sprintf("%s size=%d", h.Type, h.Size.Value)
}

// FullBoxHeader is the version and flags carried by full boxes.
type FullBoxHeader struct {
	Version uint8
	Flags   uint32
}

// Len returns the encoded length of the full box header.
func (FullBoxHeader) Len() int {
	return fullHeaderLen
}

// Marshal writes the version and 24-bit flags.
func (h FullBoxHeader) Marshal(b []byte) int {
	pio.PutU8(b, h.Version)
	pio.PutU24BE(b[1:], h.Flags&flagsMask)
	return fullHeaderLen
}

// DemuxFullHeader reads a version and 24-bit flags.
func DemuxFullHeader(r *zerocopy.Reader) (h FullBoxHeader, err error) {
	if h.Version, err = r.U8(); err != nil {
		return
	}
	h.Flags, err = r.U24()
	return
}

// Has reports whether every bit of flag is set.
func (h FullBoxHeader) Has(flag uint32) bool {
	return h.Flags&flag == flag
}
