package isobmff

import (
	"fmt"

	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff/utils/zerocopy"
)

var (
	TypeMvex = Type4("mvex")
	TypeMehd = Type4("mehd")
	TypeTrex = Type4("trex")
	TypeLeva = Type4("leva")
	TypeMoof = Type4("moof")
	TypeMfhd = Type4("mfhd")
	TypeTraf = Type4("traf")
	TypeTfhd = Type4("tfhd")
	TypeTfdt = Type4("tfdt")
	TypeTrun = Type4("trun")
	TypeTrep = Type4("trep")
	TypeMfra = Type4("mfra")
	TypeTfra = Type4("tfra")
	TypeMfro = Type4("mfro")
)

// MovieExtendsBox (mvex) announces that the file contains movie fragments.
type MovieExtendsBox struct {
	Mehd    *MovieExtendsHeaderBox
	Trex    []TrackExtendsBox
	Leva    *LevelAssignmentBox
	Unknown []UnknownBox
}

func (*MovieExtendsBox) Type() BoxType { return TypeMvex }

func (b *MovieExtendsBox) Fields() []Field {
	return []Field{
		Optional(&b.Mehd),
		AtLeastOne(&b.Trex),
		Optional(&b.Leva),
		Unknown(&b.Unknown),
	}
}

// MovieExtendsHeaderBox (mehd) is the duration of the whole fragmented movie.
type MovieExtendsHeaderBox struct {
	FullBoxHeader
	FragmentDuration uint64
}

func (*MovieExtendsHeaderBox) Type() BoxType { return TypeMehd }

func (b *MovieExtendsHeaderBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Versioned64(&b.FragmentDuration, func() bool { return b.Version == 1 }),
	}
}

// TrackExtendsBox (trex) sets the defaults used by the fragments of a track.
type TrackExtendsBox struct {
	FullBoxHeader
	TrackID                       uint32
	DefaultSampleDescriptionIndex uint32
	DefaultSampleDuration         uint32
	DefaultSampleSize             uint32
	DefaultSampleFlags            SampleFlags
}

// NewTrackExtendsBox returns the trex writers emit for a track: sample
// description 1 and no other defaults.
func NewTrackExtendsBox(trackID uint32) TrackExtendsBox {
	return TrackExtendsBox{TrackID: trackID, DefaultSampleDescriptionIndex: 1}
}

func (*TrackExtendsBox) Type() BoxType { return TypeTrex }

func (b *TrackExtendsBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.TrackID),
		U32(&b.DefaultSampleDescriptionIndex),
		U32(&b.DefaultSampleDuration),
		U32(&b.DefaultSampleSize),
		U32((*uint32)(&b.DefaultSampleFlags)),
	}
}

// Level assignment types of leva.
const (
	LevelBySampleGroup          = 0
	LevelBySampleGroupParameter = 1
	LevelByTrack                = 2
	LevelByTrackAndFollowing    = 3
	LevelBySubTrack             = 4
)

// Level is one level of a level assignment box.
type Level struct {
	TrackID               uint32
	PaddingFlag           bool
	AssignmentType        uint8
	GroupingType          FourCC
	GroupingTypeParameter uint32
	SubTrackID            uint32
}

// LevelAssignmentBox (leva) assigns samples of fragments to levels.
type LevelAssignmentBox struct {
	FullBoxHeader
	Levels []Level
}

func (*LevelAssignmentBox) Type() BoxType { return TypeLeva }

func (b *LevelAssignmentBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Func(b.levelsLen, b.decodeLevels, b.marshalLevels),
	}
}

func (l *Level) len() int {
	n := 5 //nolint:mnd
	switch l.AssignmentType {
	case LevelBySampleGroup, LevelBySubTrack:
		n += 4
	case LevelBySampleGroupParameter:
		n += 8
	}
	return n
}

func (b *LevelAssignmentBox) levelsLen() int {
	n := 1
	for i := range b.Levels {
		n += b.Levels[i].len()
	}
	return n
}

func (b *LevelAssignmentBox) decodeLevels(r *zerocopy.Reader) error {
	count, err := r.U8()
	if err != nil {
		return err
	}
	b.Levels = make([]Level, 0, count)
	for range count {
		var l Level
		if l.TrackID, err = r.U32(); err != nil {
			return err
		}
		v, err := r.U8()
		if err != nil {
			return err
		}
		l.PaddingFlag = v&0x80 != 0
		l.AssignmentType = v & 0x7f
		switch l.AssignmentType {
		case LevelBySampleGroup, LevelBySampleGroupParameter:
			code, err := r.ExtractBytes(4) //nolint:mnd
			if err != nil {
				return err
			}
			l.GroupingType = FourCC(code)
			if l.AssignmentType == LevelBySampleGroupParameter {
				if l.GroupingTypeParameter, err = r.U32(); err != nil {
					return err
				}
			}
		case LevelBySubTrack:
			if l.SubTrackID, err = r.U32(); err != nil {
				return err
			}
		}
		b.Levels = append(b.Levels, l)
	}
	return nil
}

func (b *LevelAssignmentBox) marshalLevels(p []byte) (n int) {
	p[0] = uint8(len(b.Levels)) //nolint:gosec // level count is one byte
	n = 1
	for _, l := range b.Levels {
		pio.PutU32BE(p[n:], l.TrackID)
		p[n+4] = l.AssignmentType & 0x7f
		if l.PaddingFlag {
			p[n+4] |= 0x80
		}
		n += 5
		switch l.AssignmentType {
		case LevelBySampleGroup, LevelBySampleGroupParameter:
			n += copy(p[n:], l.GroupingType[:])
			if l.AssignmentType == LevelBySampleGroupParameter {
				pio.PutU32BE(p[n:], l.GroupingTypeParameter)
				n += 4
			}
		case LevelBySubTrack:
			pio.PutU32BE(p[n:], l.SubTrackID)
			n += 4
		}
	}
	return
}

// MovieFragmentBox (moof) holds the metadata of one movie fragment.
type MovieFragmentBox struct {
	Mfhd    MovieFragmentHeaderBox
	Meta    *MetaBox
	Traf    []TrackFragmentBox
	Udta    *UserDataBox
	Unknown []UnknownBox
}

func (*MovieFragmentBox) Type() BoxType { return TypeMoof }

func (b *MovieFragmentBox) Fields() []Field {
	return []Field{
		One(&b.Mfhd),
		Optional(&b.Meta),
		Many(&b.Traf),
		Optional(&b.Udta),
		Unknown(&b.Unknown),
	}
}

// MovieFragmentHeaderBox (mfhd) carries the fragment sequence number.
type MovieFragmentHeaderBox struct {
	FullBoxHeader
	SequenceNumber uint32
}

func (*MovieFragmentHeaderBox) Type() BoxType { return TypeMfhd }

func (b *MovieFragmentHeaderBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), U32(&b.SequenceNumber)}
}

// TrackFragmentBox (traf) holds the runs of one track inside a fragment.
type TrackFragmentBox struct {
	Tfhd    TrackFragmentHeaderBox
	Tfdt    *TrackFragmentBaseMediaDecodeTimeBox
	Trun    []TrackRunBox
	Sbgp    []SampleToGroupBox
	Sgpd    []SampleGroupDescriptionBox
	Subs    []SubSampleInformationBox
	Saiz    []SampleAuxiliaryInformationSizesBox
	Saio    []SampleAuxiliaryInformationOffsetsBox
	Meta    *MetaBox
	Udta    *UserDataBox
	Unknown []UnknownBox
}

func (*TrackFragmentBox) Type() BoxType { return TypeTraf }

func (b *TrackFragmentBox) Fields() []Field {
	return []Field{
		One(&b.Tfhd),
		Optional(&b.Tfdt),
		Many(&b.Trun),
		Many(&b.Sbgp),
		Many(&b.Sgpd),
		Many(&b.Subs),
		Many(&b.Saiz),
		Many(&b.Saio),
		Optional(&b.Meta),
		Optional(&b.Udta),
		Unknown(&b.Unknown),
	}
}

// Flags of tfhd.
const (
	TfhdBaseDataOffsetPresent         = 0x000001
	TfhdSampleDescriptionIndexPresent = 0x000002
	TfhdDefaultSampleDurationPresent  = 0x000008
	TfhdDefaultSampleSizePresent      = 0x000010
	TfhdDefaultSampleFlagsPresent     = 0x000020
	TfhdDurationIsEmpty               = 0x010000
	TfhdDefaultBaseIsMoof             = 0x020000
)

// TrackFragmentHeaderBox (tfhd) sets the defaults of a track fragment. Which
// optional fields are present follows the flags.
type TrackFragmentHeaderBox struct {
	FullBoxHeader
	TrackID                uint32
	BaseDataOffset         uint64
	SampleDescriptionIndex uint32
	DefaultSampleDuration  uint32
	DefaultSampleSize      uint32
	DefaultSampleFlags     SampleFlags
}

func (*TrackFragmentHeaderBox) Type() BoxType { return TypeTfhd }

func (b *TrackFragmentHeaderBox) has(flag uint32) func() bool {
	return func() bool { return b.Has(flag) }
}

func (b *TrackFragmentHeaderBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.TrackID),
		When(b.has(TfhdBaseDataOffsetPresent), U64(&b.BaseDataOffset)),
		When(b.has(TfhdSampleDescriptionIndexPresent), U32(&b.SampleDescriptionIndex)),
		When(b.has(TfhdDefaultSampleDurationPresent), U32(&b.DefaultSampleDuration)),
		When(b.has(TfhdDefaultSampleSizePresent), U32(&b.DefaultSampleSize)),
		When(b.has(TfhdDefaultSampleFlagsPresent), U32((*uint32)(&b.DefaultSampleFlags))),
	}
}

// TrackFragmentBaseMediaDecodeTimeBox (tfdt) is the decode time of the first
// sample of a track fragment.
type TrackFragmentBaseMediaDecodeTimeBox struct {
	FullBoxHeader
	BaseMediaDecodeTime uint64
}

// NewTrackFragmentBaseMediaDecodeTimeBox returns a version 1 tfdt.
func NewTrackFragmentBaseMediaDecodeTimeBox(t uint64) *TrackFragmentBaseMediaDecodeTimeBox {
	return &TrackFragmentBaseMediaDecodeTimeBox{FullBoxHeader: FullBoxHeader{Version: 1}, BaseMediaDecodeTime: t}
}

func (*TrackFragmentBaseMediaDecodeTimeBox) Type() BoxType { return TypeTfdt }

func (b *TrackFragmentBaseMediaDecodeTimeBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Versioned64(&b.BaseMediaDecodeTime, func() bool { return b.Version == 1 }),
	}
}

// Flags of trun.
const (
	TrunDataOffsetPresent                   = 0x000001
	TrunFirstSampleFlagsPresent             = 0x000004
	TrunSampleDurationPresent               = 0x000100
	TrunSampleSizePresent                   = 0x000200
	TrunSampleFlagsPresent                  = 0x000400
	TrunSampleCompositionTimeOffsetsPresent = 0x000800
)

// TrackRunSample is one sample of a track run. Fields whose presence flag
// is clear in the run are not written.
type TrackRunSample struct {
	Duration              uint32
	Size                  uint32
	Flags                 SampleFlags
	CompositionTimeOffset int64
}

// TrackRunBox (trun) lists a contiguous run of samples of a track fragment.
// Version 1 stores signed composition offsets.
type TrackRunBox struct {
	FullBoxHeader
	DataOffset       int32
	FirstSampleFlags SampleFlags
	Samples          []TrackRunSample
}

// NewTrackRunBox returns a run over samples. present selects the per sample
// fields to write and may also hold TrunDataOffsetPresent. A run with a
// negative composition offset is written as version 1.
func NewTrackRunBox(samples []TrackRunSample, present uint32) *TrackRunBox {
	b := &TrackRunBox{FullBoxHeader: FullBoxHeader{Flags: present}, Samples: samples}
	for _, s := range samples {
		if s.CompositionTimeOffset < 0 {
			b.Version = 1
		}
	}
	return b
}

func (*TrackRunBox) Type() BoxType { return TypeTrun }

func (b *TrackRunBox) Fields() []Field {
	var count uint32
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Func(
			func() int { return 4 }, //nolint:mnd
			func(r *zerocopy.Reader) (err error) {
				count, err = r.U32()
				return
			},
			func(p []byte) int {
				pio.PutU32BE(p, uint32(len(b.Samples))) //nolint:gosec
				return 4                                 //nolint:mnd
			},
		),
		When(func() bool { return b.Has(TrunDataOffsetPresent) }, I32(&b.DataOffset)),
		When(func() bool { return b.Has(TrunFirstSampleFlagsPresent) }, U32((*uint32)(&b.FirstSampleFlags))),
		Func(
			b.samplesLen,
			func(r *zerocopy.Reader) error { return b.decodeSamples(r, count) },
			b.marshalSamples,
		),
	}
}

func (b *TrackRunBox) sampleLen() (n int) {
	for _, flag := range []uint32{
		TrunSampleDurationPresent,
		TrunSampleSizePresent,
		TrunSampleFlagsPresent,
		TrunSampleCompositionTimeOffsetsPresent,
	} {
		if b.Has(flag) {
			n += 4
		}
	}
	return
}

func (b *TrackRunBox) samplesLen() int {
	return b.sampleLen() * len(b.Samples)
}

func (b *TrackRunBox) decodeSamples(r *zerocopy.Reader, count uint32) error {
	if size := b.sampleLen(); size > 0 && int64(count)*int64(size) > int64(r.Len()) {
		return errShortTable
	}
	b.Samples = make([]TrackRunSample, 0, min(int(count), r.Len()))
	for range count {
		var s TrackRunSample
		var err error
		if b.Has(TrunSampleDurationPresent) {
			if s.Duration, err = r.U32(); err != nil {
				return err
			}
		}
		if b.Has(TrunSampleSizePresent) {
			if s.Size, err = r.U32(); err != nil {
				return err
			}
		}
		if b.Has(TrunSampleFlagsPresent) {
			var v uint32
			if v, err = r.U32(); err != nil {
				return err
			}
			s.Flags = SampleFlags(v)
		}
		if b.Has(TrunSampleCompositionTimeOffsetsPresent) {
			if b.Version == 0 {
				var v uint32
				if v, err = r.U32(); err != nil {
					return err
				}
				s.CompositionTimeOffset = int64(v)
			} else {
				var v int32
				if v, err = r.I32(); err != nil {
					return err
				}
				s.CompositionTimeOffset = int64(v)
			}
		}
		b.Samples = append(b.Samples, s)
	}
	return nil
}

func (b *TrackRunBox) marshalSamples(p []byte) (n int) {
	for _, s := range b.Samples {
		if b.Has(TrunSampleDurationPresent) {
			pio.PutU32BE(p[n:], s.Duration)
			n += 4
		}
		if b.Has(TrunSampleSizePresent) {
			pio.PutU32BE(p[n:], s.Size)
			n += 4
		}
		if b.Has(TrunSampleFlagsPresent) {
			pio.PutU32BE(p[n:], uint32(s.Flags))
			n += 4
		}
		if b.Has(TrunSampleCompositionTimeOffsetsPresent) {
			pio.PutU32BE(p[n:], uint32(s.CompositionTimeOffset)) //nolint:gosec // 32-bit field, signed in version 1
			n += 4
		}
	}
	return
}

// SampleFlags is the 32-bit sample flags word of trex, tfhd and trun.
type SampleFlags uint32

// Values of SampleFlags.DependsOn.
const (
	DependsOnUnknown = 0
	DependsOnOthers  = 1
	DependsOnNone    = 2
)

// NewSampleFlags returns flags for a sample with the given dependency that
// is a sync sample unless nonSync is set.
func NewSampleFlags(dependsOn uint8, nonSync bool) SampleFlags {
	f := SampleFlags(dependsOn&0x03) << 24 //nolint:mnd
	if nonSync {
		f |= 1 << 16 //nolint:mnd
	}
	return f
}

// IsLeading returns the is_leading field.
func (f SampleFlags) IsLeading() uint8 { return uint8(f>>26) & 0x03 } //nolint:mnd

// DependsOn returns the sample_depends_on field.
func (f SampleFlags) DependsOn() uint8 { return uint8(f>>24) & 0x03 } //nolint:mnd

// IsDependedOn returns the sample_is_depended_on field.
func (f SampleFlags) IsDependedOn() uint8 { return uint8(f>>22) & 0x03 } //nolint:mnd

// HasRedundancy returns the sample_has_redundancy field.
func (f SampleFlags) HasRedundancy() uint8 { return uint8(f>>20) & 0x03 } //nolint:mnd

// PaddingValue returns the sample_padding_value field.
func (f SampleFlags) PaddingValue() uint8 { return uint8(f>>17) & 0x07 } //nolint:mnd

// NonSync reports whether the sample is not a sync sample.
func (f SampleFlags) NonSync() bool { return f&(1<<16) != 0 } //nolint:mnd

// DegradationPriority returns the sample_degradation_priority field.
func (f SampleFlags) DegradationPriority() uint16 { return uint16(f) } //nolint:gosec

func (f SampleFlags) String() string {
	return fmt.Sprintf("leading=%d depends=%d depended=%d redundancy=%d padding=%d nonsync=%t priority=%d",
		f.IsLeading(), f.DependsOn(), f.IsDependedOn(), f.HasRedundancy(), f.PaddingValue(), f.NonSync(),
		f.DegradationPriority())
}

// TrackExtensionPropertiesBox (trep) documents properties of the fragments
// of a track.
type TrackExtensionPropertiesBox struct {
	FullBoxHeader
	TrackID uint32
	Cslg    *CompositionToDecodeBox
	Unknown []UnknownBox
}

func (*TrackExtensionPropertiesBox) Type() BoxType { return TypeTrep }

func (b *TrackExtensionPropertiesBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.TrackID),
		Optional(&b.Cslg),
		Unknown(&b.Unknown),
	}
}

// MovieFragmentRandomAccessBox (mfra) indexes random access points of the
// fragments, usually at the end of the file.
type MovieFragmentRandomAccessBox struct {
	Tfra    []TrackFragmentRandomAccessBox
	Mfro    MovieFragmentRandomAccessOffsetBox
	Unknown []UnknownBox
}

func (*MovieFragmentRandomAccessBox) Type() BoxType { return TypeMfra }

func (b *MovieFragmentRandomAccessBox) Fields() []Field {
	return []Field{
		Many(&b.Tfra),
		One(&b.Mfro),
		Unknown(&b.Unknown),
	}
}

// RandomAccessEntry locates one sync sample of a track.
type RandomAccessEntry struct {
	Time         uint64
	MoofOffset   uint64
	TrafNumber   uint32
	TrunNumber   uint32
	SampleNumber uint32
}

// TrackFragmentRandomAccessBox (tfra) lists the sync samples of one track.
// The traf, trun and sample numbers are written with 1 to 4 bytes each.
type TrackFragmentRandomAccessBox struct {
	FullBoxHeader
	TrackID               uint32
	LengthSizeOfTrafNum   uint8
	LengthSizeOfTrunNum   uint8
	LengthSizeOfSampleNum uint8
	Entries               []RandomAccessEntry
}

func (*TrackFragmentRandomAccessBox) Type() BoxType { return TypeTfra }

func (b *TrackFragmentRandomAccessBox) Fields() []Field {
	wide := func() bool { return b.Version == 1 }
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.TrackID),
		Func(
			func() int { return 4 }, //nolint:mnd
			func(r *zerocopy.Reader) error {
				v, err := r.U32()
				b.LengthSizeOfTrafNum = uint8(v>>4) & 0x03 //nolint:mnd
				b.LengthSizeOfTrunNum = uint8(v>>2) & 0x03 //nolint:mnd
				b.LengthSizeOfSampleNum = uint8(v) & 0x03  //nolint:mnd
				return err
			},
			func(p []byte) int {
				pio.PutU32BE(p, uint32(b.LengthSizeOfTrafNum&0x03)<<4|
					uint32(b.LengthSizeOfTrunNum&0x03)<<2|
					uint32(b.LengthSizeOfSampleNum&0x03))
				return 4 //nolint:mnd
			},
		),
		Counted(&b.Entries, func(e *RandomAccessEntry) []Field {
			return []Field{
				Versioned64(&e.Time, wide),
				Versioned64(&e.MoofOffset, wide),
				varUint(&e.TrafNumber, &b.LengthSizeOfTrafNum),
				varUint(&e.TrunNumber, &b.LengthSizeOfTrunNum),
				varUint(&e.SampleNumber, &b.LengthSizeOfSampleNum),
			}
		}),
	}
}

// varUint binds an unsigned integer written with *sizeMinusOne+1 bytes.
func varUint(p *uint32, sizeMinusOne *uint8) Field {
	size := func() int { return int(*sizeMinusOne&0x03) + 1 }
	return Func(
		size,
		func(r *zerocopy.Reader) error {
			b, err := r.ExtractBytes(size())
			if err != nil {
				return err
			}
			*p = 0
			for _, c := range b {
				*p = *p<<8 | uint32(c)
			}
			return nil
		},
		func(b []byte) int {
			n := size()
			for i := range n {
				b[i] = byte(*p >> (8 * (n - 1 - i))) //nolint:gosec
			}
			return n
		},
	)
}

// MovieFragmentRandomAccessOffsetBox (mfro) is the size of the enclosing
// mfra, so readers can find it from the end of the file.
type MovieFragmentRandomAccessOffsetBox struct {
	FullBoxHeader
	ParentSize uint32
}

func (*MovieFragmentRandomAccessOffsetBox) Type() BoxType { return TypeMfro }

func (b *MovieFragmentRandomAccessOffsetBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), U32(&b.ParentSize)}
}
