package isobmff

import (
	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff/utils/zerocopy"
)

var (
	TypeStbl = Type4("stbl")
	TypeStsd = Type4("stsd")
	TypeStts = Type4("stts")
	TypeCtts = Type4("ctts")
	TypeCslg = Type4("cslg")
	TypeStsc = Type4("stsc")
	TypeStsz = Type4("stsz")
	TypeStz2 = Type4("stz2")
	TypeStco = Type4("stco")
	TypeCo64 = Type4("co64")
	TypeStss = Type4("stss")
	TypeStsh = Type4("stsh")
	TypePadb = Type4("padb")
	TypeStdp = Type4("stdp")
	TypeSdtp = Type4("sdtp")
	TypeSbgp = Type4("sbgp")
	TypeSgpd = Type4("sgpd")
	TypeSubs = Type4("subs")
	TypeSaiz = Type4("saiz")
	TypeSaio = Type4("saio")
)

// SampleTableBox (stbl) holds the time and data indexing of the samples of a
// track.
type SampleTableBox struct {
	Stsd    SampleDescriptionBox
	Stts    TimeToSampleBox
	Ctts    *CompositionOffsetBox
	Cslg    *CompositionToDecodeBox
	Stsc    SampleToChunkBox
	Stsz    *SampleSizeBox
	Stz2    *CompactSampleSizeBox
	Stco    *ChunkOffsetBox
	Co64    *ChunkLargeOffsetBox
	Stss    *SyncSampleBox
	Stsh    *ShadowSyncSampleBox
	Padb    *PaddingBitsBox
	Stdp    *DegradationPriorityBox
	Sdtp    *SampleDependencyTypeBox
	Sbgp    []SampleToGroupBox
	Sgpd    []SampleGroupDescriptionBox
	Subs    []SubSampleInformationBox
	Saiz    []SampleAuxiliaryInformationSizesBox
	Saio    []SampleAuxiliaryInformationOffsetsBox
	Unknown []UnknownBox
}

func (*SampleTableBox) Type() BoxType { return TypeStbl }

func (b *SampleTableBox) Fields() []Field {
	return []Field{
		One(&b.Stsd),
		One(&b.Stts),
		Optional(&b.Ctts),
		Optional(&b.Cslg),
		One(&b.Stsc),
		Optional(&b.Stsz),
		Optional(&b.Stz2),
		Optional(&b.Stco),
		Optional(&b.Co64),
		Optional(&b.Stss),
		Optional(&b.Stsh),
		Optional(&b.Padb),
		Optional(&b.Stdp),
		Optional(&b.Sdtp),
		Many(&b.Sbgp),
		Many(&b.Sgpd),
		Many(&b.Subs),
		Many(&b.Saiz),
		Many(&b.Saio),
		Unknown(&b.Unknown),
	}
}

// SampleDescriptionBox (stsd) lists the sample entries of a track. Entries
// are decoded through the registry, so codec entries come back as their
// concrete types and anything else as *UnknownBox.
type SampleDescriptionBox struct {
	FullBoxHeader
	Entries []Box
}

func (*SampleDescriptionBox) Type() BoxType { return TypeStsd }

func (b *SampleDescriptionBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		EntryCount(&b.Entries),
		Any(&b.Entries, nil),
	}
}

// TimeToSampleEntry is a run of samples sharing one decode duration.
type TimeToSampleEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// TimeToSampleBox (stts) maps decoding time to sample number.
type TimeToSampleBox struct {
	FullBoxHeader
	Entries []TimeToSampleEntry
}

func (*TimeToSampleBox) Type() BoxType { return TypeStts }

func (b *TimeToSampleBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Counted(&b.Entries, func(e *TimeToSampleEntry) []Field {
			return []Field{U32(&e.SampleCount), U32(&e.SampleDelta)}
		}),
	}
}

// CompositionOffsetEntry is a run of samples sharing one composition offset.
// Version 0 offsets are unsigned; the bits are kept either way.
type CompositionOffsetEntry struct {
	SampleCount  uint32
	SampleOffset int32
}

// CompositionOffsetBox (ctts) maps decoding time to composition time.
type CompositionOffsetBox struct {
	FullBoxHeader
	Entries []CompositionOffsetEntry
}

func (*CompositionOffsetBox) Type() BoxType { return TypeCtts }

func (b *CompositionOffsetBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Counted(&b.Entries, func(e *CompositionOffsetEntry) []Field {
			return []Field{U32(&e.SampleCount), I32(&e.SampleOffset)}
		}),
	}
}

// CompositionToDecodeBox (cslg) relates composition and decoding timelines
// when composition offsets are signed.
type CompositionToDecodeBox struct {
	FullBoxHeader
	CompositionToDTSShift        int64
	LeastDecodeToDisplayDelta    int64
	GreatestDecodeToDisplayDelta int64
	CompositionStartTime         int64
	CompositionEndTime           int64
}

func (*CompositionToDecodeBox) Type() BoxType { return TypeCslg }

func (b *CompositionToDecodeBox) Fields() []Field {
	wide := func() bool { return b.Version == 1 }
	return []Field{
		FullHeader(&b.FullBoxHeader),
		VersionedI64(&b.CompositionToDTSShift, wide),
		VersionedI64(&b.LeastDecodeToDisplayDelta, wide),
		VersionedI64(&b.GreatestDecodeToDisplayDelta, wide),
		VersionedI64(&b.CompositionStartTime, wide),
		VersionedI64(&b.CompositionEndTime, wide),
	}
}

// SampleToChunkEntry starts a run of chunks with the same layout.
type SampleToChunkEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// SampleToChunkBox (stsc) groups samples into chunks.
type SampleToChunkBox struct {
	FullBoxHeader
	Entries []SampleToChunkEntry
}

func (*SampleToChunkBox) Type() BoxType { return TypeStsc }

func (b *SampleToChunkBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Counted(&b.Entries, func(e *SampleToChunkEntry) []Field {
			return []Field{U32(&e.FirstChunk), U32(&e.SamplesPerChunk), U32(&e.SampleDescriptionIndex)}
		}),
	}
}

// SampleSizeBox (stsz) holds the sample count and either one size shared by
// every sample or a size per sample.
type SampleSizeBox struct {
	FullBoxHeader
	SampleSize  uint32
	SampleCount uint32
	EntrySizes  []uint32
}

func (*SampleSizeBox) Type() BoxType { return TypeStsz }

func (b *SampleSizeBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.SampleSize),
		Func(b.tableLen, b.decodeTable, b.marshalTable),
	}
}

func (b *SampleSizeBox) tableLen() int {
	if b.SampleSize != 0 {
		return 4 //nolint:mnd
	}
	return 4 + 4*len(b.EntrySizes) //nolint:mnd
}

func (b *SampleSizeBox) decodeTable(r *zerocopy.Reader) (err error) {
	if b.SampleCount, err = r.U32(); err != nil || b.SampleSize != 0 {
		return
	}
	if int64(b.SampleCount)*4 > int64(r.Len()) { //nolint:mnd
		return errShortTable
	}
	b.EntrySizes = make([]uint32, b.SampleCount)
	for i := range b.EntrySizes {
		if b.EntrySizes[i], err = r.U32(); err != nil {
			return
		}
	}
	return
}

func (b *SampleSizeBox) marshalTable(p []byte) int {
	if b.SampleSize != 0 {
		pio.PutU32BE(p, b.SampleCount)
		return 4 //nolint:mnd
	}
	pio.PutU32BE(p, uint32(len(b.EntrySizes))) //nolint:gosec
	n := 4
	for _, v := range b.EntrySizes {
		pio.PutU32BE(p[n:], v)
		n += 4
	}
	return n
}

// CompactSampleSizeBox (stz2) stores sample sizes in 4, 8 or 16 bits.
type CompactSampleSizeBox struct {
	FullBoxHeader
	FieldSize  uint8
	EntrySizes []uint16
}

func (*CompactSampleSizeBox) Type() BoxType { return TypeStz2 }

func (b *CompactSampleSizeBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Reserved(3), //nolint:mnd
		U8(&b.FieldSize),
		Func(b.tableLen, b.decodeTable, b.marshalTable),
	}
}

func (b *CompactSampleSizeBox) tableLen() int {
	bits := int(b.FieldSize) * len(b.EntrySizes)
	return 4 + (bits+7)/8 //nolint:mnd
}

func (b *CompactSampleSizeBox) decodeTable(r *zerocopy.Reader) error {
	count, err := r.U32()
	if err != nil {
		return err
	}
	switch b.FieldSize {
	case 4, 8, 16: //nolint:mnd
	default:
		return &InvalidFieldError{Box: TypeStz2, Field: "field_size", Value: uint64(b.FieldSize)}
	}
	need := (int64(count)*int64(b.FieldSize) + 7) / 8 //nolint:mnd
	if need > int64(r.Len()) {
		return errShortTable
	}
	raw, err := r.ExtractBytes(int(need))
	if err != nil {
		return err
	}
	b.EntrySizes = make([]uint16, count)
	for i := range b.EntrySizes {
		switch b.FieldSize {
		case 4: //nolint:mnd
			v := raw[i/2]
			if i%2 == 0 {
				v >>= 4
			}
			b.EntrySizes[i] = uint16(v & 0x0F)
		case 8: //nolint:mnd
			b.EntrySizes[i] = uint16(raw[i])
		default:
			b.EntrySizes[i] = pio.U16BE(raw[2*i:])
		}
	}
	return nil
}

func (b *CompactSampleSizeBox) marshalTable(p []byte) int {
	n := b.tableLen()
	pio.PutU32BE(p, uint32(len(b.EntrySizes))) //nolint:gosec
	clear(p[4:n])
	for i, v := range b.EntrySizes {
		switch b.FieldSize {
		case 4: //nolint:mnd
			if i%2 == 0 {
				p[4+i/2] |= byte(v&0x0F) << 4
			} else {
				p[4+i/2] |= byte(v & 0x0F)
			}
		case 8: //nolint:mnd
			p[4+i] = byte(v) //nolint:gosec
		default:
			pio.PutU16BE(p[4+2*i:], v)
		}
	}
	return n
}

// ChunkOffsetBox (stco) holds 32-bit chunk offsets.
type ChunkOffsetBox struct {
	FullBoxHeader
	ChunkOffsets []uint32
}

func (*ChunkOffsetBox) Type() BoxType { return TypeStco }

func (b *ChunkOffsetBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), Uint32List(&b.ChunkOffsets)}
}

// ChunkLargeOffsetBox (co64) holds 64-bit chunk offsets.
type ChunkLargeOffsetBox struct {
	FullBoxHeader
	ChunkOffsets []uint64
}

func (*ChunkLargeOffsetBox) Type() BoxType { return TypeCo64 }

func (b *ChunkLargeOffsetBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), Uint64List(&b.ChunkOffsets)}
}

// SyncSampleBox (stss) lists the random access samples, numbered from 1.
type SyncSampleBox struct {
	FullBoxHeader
	SampleNumbers []uint32
}

func (*SyncSampleBox) Type() BoxType { return TypeStss }

func (b *SyncSampleBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), Uint32List(&b.SampleNumbers)}
}

// ShadowSyncEntry names a sync sample that may replace a non-sync sample.
type ShadowSyncEntry struct {
	ShadowedSampleNumber uint32
	SyncSampleNumber     uint32
}

// ShadowSyncSampleBox (stsh) is the shadow sync table.
type ShadowSyncSampleBox struct {
	FullBoxHeader
	Entries []ShadowSyncEntry
}

func (*ShadowSyncSampleBox) Type() BoxType { return TypeStsh }

func (b *ShadowSyncSampleBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Counted(&b.Entries, func(e *ShadowSyncEntry) []Field {
			return []Field{U32(&e.ShadowedSampleNumber), U32(&e.SyncSampleNumber)}
		}),
	}
}

// PaddingBitsBox (padb) holds the number of padding bits at the end of each
// sample, two samples per byte.
type PaddingBitsBox struct {
	FullBoxHeader
	Pads []uint8
}

func (*PaddingBitsBox) Type() BoxType { return TypePadb }

func (b *PaddingBitsBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Func(
			func() int { return 4 + (len(b.Pads)+1)/2 }, //nolint:mnd
			func(r *zerocopy.Reader) error {
				count, err := r.U32()
				if err != nil {
					return err
				}
				raw, err := r.ExtractBytes(int((int64(count) + 1) / 2)) //nolint:mnd
				if err != nil {
					return err
				}
				b.Pads = make([]uint8, count)
				for i := range b.Pads {
					v := raw[i/2]
					if i%2 == 0 {
						v >>= 4
					}
					b.Pads[i] = v & 0x07
				}
				return nil
			},
			func(p []byte) int {
				pio.PutU32BE(p, uint32(len(b.Pads))) //nolint:gosec
				n := 4 + (len(b.Pads)+1)/2
				clear(p[4:n])
				for i, v := range b.Pads {
					if i%2 == 0 {
						p[4+i/2] |= (v & 0x07) << 4
					} else {
						p[4+i/2] |= v & 0x07
					}
				}
				return n
			},
		),
	}
}

// DegradationPriorityBox (stdp) holds one priority per sample.
type DegradationPriorityBox struct {
	FullBoxHeader
	Priorities []uint16
}

func (*DegradationPriorityBox) Type() BoxType { return TypeStdp }

func (b *DegradationPriorityBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Repeated(&b.Priorities, func(e *uint16) []Field { return []Field{U16(e)} }),
	}
}

// SampleDependency describes the dependencies of one sample. Every member is
// a two bit value.
type SampleDependency struct {
	IsLeading     uint8
	DependsOn     uint8
	IsDependedOn  uint8
	HasRedundancy uint8
}

func sampleDependencyFields(e *SampleDependency) []Field {
	return []Field{Func(
		func() int { return 1 },
		func(r *zerocopy.Reader) error {
			v, err := r.U8()
			if err != nil {
				return err
			}
			e.IsLeading = v >> 6 & 0x03
			e.DependsOn = v >> 4 & 0x03
			e.IsDependedOn = v >> 2 & 0x03
			e.HasRedundancy = v & 0x03
			return nil
		},
		func(p []byte) int {
			p[0] = (e.IsLeading&0x03)<<6 | (e.DependsOn&0x03)<<4 | (e.IsDependedOn&0x03)<<2 | e.HasRedundancy&0x03
			return 1
		},
	)}
}

// SampleDependencyTypeBox (sdtp) holds one dependency record per sample.
type SampleDependencyTypeBox struct {
	FullBoxHeader
	Entries []SampleDependency
}

func (*SampleDependencyTypeBox) Type() BoxType { return TypeSdtp }

func (b *SampleDependencyTypeBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Repeated(&b.Entries, sampleDependencyFields),
	}
}

// SampleToGroupEntry assigns a run of samples to a group description.
type SampleToGroupEntry struct {
	SampleCount           uint32
	GroupDescriptionIndex uint32
}

// SampleToGroupBox (sbgp) assigns samples to sample groups.
type SampleToGroupBox struct {
	FullBoxHeader
	GroupingType          FourCC
	GroupingTypeParameter uint32
	Entries               []SampleToGroupEntry
}

func (*SampleToGroupBox) Type() BoxType { return TypeSbgp }

func (b *SampleToGroupBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Tag(&b.GroupingType),
		When(func() bool { return b.Version == 1 }, U32(&b.GroupingTypeParameter)),
		Counted(&b.Entries, func(e *SampleToGroupEntry) []Field {
			return []Field{U32(&e.SampleCount), U32(&e.GroupDescriptionIndex)}
		}),
	}
}

// SampleGroupDescriptionBox (sgpd) describes sample groups. Entry payloads
// depend on the grouping type and are kept as bytes. Version 0 entries carry
// no length, so their bytes stay in Raw.
type SampleGroupDescriptionBox struct {
	FullBoxHeader
	GroupingType                 FourCC
	DefaultLength                uint32
	DefaultGroupDescriptionIndex uint32
	EntryCount                   uint32
	Entries                      [][]byte
	Raw                          []byte
}

func (*SampleGroupDescriptionBox) Type() BoxType { return TypeSgpd }

func (b *SampleGroupDescriptionBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Tag(&b.GroupingType),
		When(func() bool { return b.Version >= 1 }, U32(&b.DefaultLength)),
		When(func() bool { return b.Version >= 2 }, U32(&b.DefaultGroupDescriptionIndex)), //nolint:mnd
		Func(b.entriesLen, b.decodeEntries, b.marshalEntries),
	}
}

func (b *SampleGroupDescriptionBox) explicitLengths() bool {
	return b.Version >= 1 && b.DefaultLength == 0
}

func (b *SampleGroupDescriptionBox) entriesLen() int {
	if b.Version == 0 {
		return 4 + len(b.Raw) //nolint:mnd
	}
	n := 4
	for _, e := range b.Entries {
		if b.explicitLengths() {
			n += 4
		}
		n += len(e)
	}
	return n
}

func (b *SampleGroupDescriptionBox) decodeEntries(r *zerocopy.Reader) (err error) {
	if b.EntryCount, err = r.U32(); err != nil {
		return
	}
	if b.Version == 0 {
		b.Raw = r.ExtractRemaining()
		return
	}
	b.Entries = make([][]byte, 0, min(int(b.EntryCount), r.Len()))
	for range b.EntryCount {
		size := b.DefaultLength
		if b.explicitLengths() {
			if size, err = r.U32(); err != nil {
				return
			}
		}
		if int64(size) > int64(r.Len()) {
			return errShortTable
		}
		var e []byte
		if e, err = r.ExtractBytes(int(size)); err != nil {
			return
		}
		b.Entries = append(b.Entries, e)
	}
	return
}

func (b *SampleGroupDescriptionBox) marshalEntries(p []byte) int {
	if b.Version == 0 {
		pio.PutU32BE(p, b.EntryCount)
		return 4 + copy(p[4:], b.Raw)
	}
	pio.PutU32BE(p, uint32(len(b.Entries))) //nolint:gosec
	n := 4
	for _, e := range b.Entries {
		if b.explicitLengths() {
			pio.PutU32BE(p[n:], uint32(len(e))) //nolint:gosec
			n += 4
		}
		n += copy(p[n:], e)
	}
	return n
}

// SubSample is one entry of a subs sample record. Size is 16 bits in
// version 0.
type SubSample struct {
	Size                    uint64
	Priority                uint8
	Discardable             uint8
	CodecSpecificParameters uint32
}

// SubSampleEntry lists the sub-samples of one sample.
type SubSampleEntry struct {
	SampleDelta uint32
	SubSamples  []SubSample
}

// SubSampleInformationBox (subs) describes the sub-sample structure of
// samples.
type SubSampleInformationBox struct {
	FullBoxHeader
	Entries []SubSampleEntry
}

func (*SubSampleInformationBox) Type() BoxType { return TypeSubs }

func (b *SubSampleInformationBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Counted(&b.Entries, func(e *SubSampleEntry) []Field {
			return []Field{
				U32(&e.SampleDelta),
				Counted16(&e.SubSamples, b.subSampleFields),
			}
		}),
	}
}

func (b *SubSampleInformationBox) subSampleFields(s *SubSample) []Field {
	size := Func(
		func() int {
			if b.Version == 1 {
				return 4 //nolint:mnd
			}
			return 2 //nolint:mnd
		},
		func(r *zerocopy.Reader) error {
			if b.Version == 1 {
				v, err := r.U32()
				s.Size = uint64(v)
				return err
			}
			v, err := r.U16()
			s.Size = uint64(v)
			return err
		},
		func(p []byte) int {
			if b.Version == 1 {
				pio.PutU32BE(p, uint32(s.Size)) //nolint:gosec
				return 4                        //nolint:mnd
			}
			pio.PutU16BE(p, uint16(s.Size)) //nolint:gosec
			return 2                        //nolint:mnd
		},
	)
	return []Field{size, U8(&s.Priority), U8(&s.Discardable), U32(&s.CodecSpecificParameters)}
}

// AuxInfoTypePresent signals the aux_info_type fields of saiz and saio.
const AuxInfoTypePresent = 0x000001

// SampleAuxiliaryInformationSizesBox (saiz) holds the size of the auxiliary
// information of each sample.
type SampleAuxiliaryInformationSizesBox struct {
	FullBoxHeader
	AuxInfoType           FourCC
	AuxInfoTypeParameter  uint32
	DefaultSampleInfoSize uint8
	SampleCount           uint32
	SampleInfoSizes       []uint8
}

func (*SampleAuxiliaryInformationSizesBox) Type() BoxType { return TypeSaiz }

func (b *SampleAuxiliaryInformationSizesBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		When(func() bool { return b.Has(AuxInfoTypePresent) }, Tag(&b.AuxInfoType), U32(&b.AuxInfoTypeParameter)),
		U8(&b.DefaultSampleInfoSize),
		Func(
			func() int {
				if b.DefaultSampleInfoSize != 0 {
					return 4 //nolint:mnd
				}
				return 4 + len(b.SampleInfoSizes) //nolint:mnd
			},
			func(r *zerocopy.Reader) (err error) {
				if b.SampleCount, err = r.U32(); err != nil || b.DefaultSampleInfoSize != 0 {
					return
				}
				raw, err := r.ExtractBytes(int(b.SampleCount))
				b.SampleInfoSizes = raw
				return err
			},
			func(p []byte) int {
				if b.DefaultSampleInfoSize != 0 {
					pio.PutU32BE(p, b.SampleCount)
					return 4 //nolint:mnd
				}
				pio.PutU32BE(p, uint32(len(b.SampleInfoSizes))) //nolint:gosec
				return 4 + copy(p[4:], b.SampleInfoSizes)
			},
		),
	}
}

// SampleAuxiliaryInformationOffsetsBox (saio) locates the auxiliary
// information of samples.
type SampleAuxiliaryInformationOffsetsBox struct {
	FullBoxHeader
	AuxInfoType          FourCC
	AuxInfoTypeParameter uint32
	Offsets              []uint64
}

func (*SampleAuxiliaryInformationOffsetsBox) Type() BoxType { return TypeSaio }

func (b *SampleAuxiliaryInformationOffsetsBox) Fields() []Field {
	wide := func() bool { return b.Version != 0 }
	return []Field{
		FullHeader(&b.FullBoxHeader),
		When(func() bool { return b.Has(AuxInfoTypePresent) }, Tag(&b.AuxInfoType), U32(&b.AuxInfoTypeParameter)),
		Counted(&b.Offsets, func(e *uint64) []Field { return []Field{Versioned64(e, wide)} }),
	}
}
