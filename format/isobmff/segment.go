package isobmff

import (
	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff/utils/zerocopy"
)

var (
	TypeSidx = Type4("sidx")
	TypeSsix = Type4("ssix")
	TypePrft = Type4("prft")
)

// SegmentReference is one entry of a segment index.
type SegmentReference struct {
	ReferenceType      bool
	ReferencedSize     uint32
	SubsegmentDuration uint32
	StartsWithSAP      bool
	SAPType            uint8
	SAPDeltaTime       uint32
}

func referenceFields(e *SegmentReference) []Field {
	return []Field{
		Func(
			func() int { return 4 }, //nolint:mnd
			func(r *zerocopy.Reader) error {
				v, err := r.U32()
				e.ReferenceType = v>>31 == 1
				e.ReferencedSize = v & 0x7fffffff
				return err
			},
			func(p []byte) int {
				v := e.ReferencedSize & 0x7fffffff
				if e.ReferenceType {
					v |= 1 << 31
				}
				pio.PutU32BE(p, v)
				return 4 //nolint:mnd
			},
		),
		U32(&e.SubsegmentDuration),
		Func(
			func() int { return 4 }, //nolint:mnd
			func(r *zerocopy.Reader) error {
				v, err := r.U32()
				e.StartsWithSAP = v>>31 == 1
				e.SAPType = uint8(v>>28) & 0x07 //nolint:mnd
				e.SAPDeltaTime = v & 0x0fffffff
				return err
			},
			func(p []byte) int {
				v := uint32(e.SAPType&0x07)<<28 | e.SAPDeltaTime&0x0fffffff
				if e.StartsWithSAP {
					v |= 1 << 31
				}
				pio.PutU32BE(p, v)
				return 4 //nolint:mnd
			},
		),
	}
}

// SegmentIndexBox (sidx) indexes the subsegments of a media segment.
type SegmentIndexBox struct {
	FullBoxHeader
	ReferenceID              uint32
	Timescale                uint32
	EarliestPresentationTime uint64
	FirstOffset              uint64
	Reserved                 uint16
	References               []SegmentReference
}

func (*SegmentIndexBox) Type() BoxType { return TypeSidx }

func (b *SegmentIndexBox) Fields() []Field {
	wide := func() bool { return b.Version == 1 }
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.ReferenceID),
		U32(&b.Timescale),
		Versioned64(&b.EarliestPresentationTime, wide),
		Versioned64(&b.FirstOffset, wide),
		U16(&b.Reserved),
		Counted16(&b.References, referenceFields),
	}
}

// SubsegmentRange is one byte range of a subsegment and the level it holds.
type SubsegmentRange struct {
	Level     uint8
	RangeSize uint32
}

// Subsegment lists the level ranges of one subsegment.
type Subsegment struct {
	Ranges []SubsegmentRange
}

// SubsegmentIndexBox (ssix) maps the levels of a segment index to byte
// ranges.
type SubsegmentIndexBox struct {
	FullBoxHeader
	Subsegments []Subsegment
}

func (*SubsegmentIndexBox) Type() BoxType { return TypeSsix }

func (b *SubsegmentIndexBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Counted(&b.Subsegments, func(s *Subsegment) []Field {
			return []Field{Counted(&s.Ranges, func(r *SubsegmentRange) []Field {
				return []Field{U8(&r.Level), U24(&r.RangeSize)}
			})}
		}),
	}
}

// Flags of prft naming the point the NTP time was taken at.
const (
	PrftEncoderInput  = 0x00
	PrftEncoderOutput = 0x01
	PrftFinalized     = 0x02
	PrftWritten       = 0x04
	PrftCaptured      = 0x18
)

// ProducerReferenceTimeBox (prft) relates a media time of a track to wall
// clock NTP time.
type ProducerReferenceTimeBox struct {
	FullBoxHeader
	ReferenceTrackID uint32
	NTPTimestamp     uint64
	MediaTime        uint64
}

func (*ProducerReferenceTimeBox) Type() BoxType { return TypePrft }

func (b *ProducerReferenceTimeBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.ReferenceTrackID),
		U64(&b.NTPTimestamp),
		Versioned64(&b.MediaTime, func() bool { return b.Version == 1 }),
	}
}
