package isobmff

import (
	"fmt"

	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff/utils/zerocopy"
)

var (
	TypeMdia = Type4("mdia")
	TypeMdhd = Type4("mdhd")
	TypeHdlr = Type4("hdlr")
	TypeElng = Type4("elng")
	TypeMinf = Type4("minf")
	TypeVmhd = Type4("vmhd")
	TypeSmhd = Type4("smhd")
	TypeHmhd = Type4("hmhd")
	TypeSthd = Type4("sthd")
	TypeNmhd = Type4("nmhd")
	TypeDinf = Type4("dinf")
	TypeDref = Type4("dref")
	TypeURL  = Type4("url ")
	TypeURN  = Type4("urn ")
)

// Handler types.
var (
	HandlerVideo = FourCC{'v', 'i', 'd', 'e'}
	HandlerSound = FourCC{'s', 'o', 'u', 'n'}
	HandlerHint  = FourCC{'h', 'i', 'n', 't'}
	HandlerMeta  = FourCC{'m', 'e', 't', 'a'}
	HandlerText  = FourCC{'t', 'e', 'x', 't'}
	HandlerSubt  = FourCC{'s', 'u', 'b', 't'}
)

// MediaBox (mdia) declares the media of a track.
type MediaBox struct {
	Mdhd    MediaHeaderBox
	Hdlr    HandlerBox
	Elng    *ExtendedLanguageBox
	Minf    MediaInformationBox
	Unknown []UnknownBox
}

func (*MediaBox) Type() BoxType { return TypeMdia }

func (b *MediaBox) Fields() []Field {
	return []Field{
		One(&b.Mdhd),
		One(&b.Hdlr),
		Optional(&b.Elng),
		One(&b.Minf),
		Unknown(&b.Unknown),
	}
}

// Language is an ISO-639-2/T language code such as "und".
type Language [3]byte

// LanguageUndetermined is the code for an unspecified language.
var LanguageUndetermined = Language{'u', 'n', 'd'}

func (l Language) String() string { return string(l[:]) }

// Packed returns the 15-bit representation used by mdhd and cprt.
func (l Language) Packed() uint16 {
	var v uint16
	for _, c := range l {
		v = v<<5 | uint16(c-0x60)&0x1F
	}
	return v
}

// UnpackLanguage is the inverse of Language.Packed.
func UnpackLanguage(v uint16) (l Language) {
	for i := 2; i >= 0; i-- {
		l[i] = byte(v&0x1F) + 0x60
		v >>= 5
	}
	return
}

// LanguageField binds a packed language code with its pad bit.
func LanguageField(l *Language) Field {
	return Func(
		func() int { return 2 }, //nolint:mnd
		func(r *zerocopy.Reader) error {
			v, err := r.U16()
			if err != nil {
				return err
			}
			*l = UnpackLanguage(v & 0x7FFF)
			return nil
		},
		func(b []byte) int {
			pio.PutU16BE(b, l.Packed())
			return 2 //nolint:mnd
		},
	)
}

// MediaHeaderBox (mdhd) carries media independent information about a track.
type MediaHeaderBox struct {
	FullBoxHeader
	CreationTime     uint64
	ModificationTime uint64
	Timescale        uint32
	Duration         uint64
	Language         Language
	PreDefined       uint16
}

func (*MediaHeaderBox) Type() BoxType { return TypeMdhd }

func (b *MediaHeaderBox) Fields() []Field {
	wide := func() bool { return b.Version == 1 }
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Versioned64(&b.CreationTime, wide),
		Versioned64(&b.ModificationTime, wide),
		U32(&b.Timescale),
		Versioned64(&b.Duration, wide),
		LanguageField(&b.Language),
		U16(&b.PreDefined),
	}
}

// HandlerBox (hdlr) declares the nature of the media in a track or the
// structure of a meta box. QuickTime files store component fields in the
// reserved words, so those are kept verbatim.
type HandlerBox struct {
	FullBoxHeader
	PreDefined  uint32
	HandlerType FourCC
	Reserved    [12]byte
	Name        string
	// Unterminated is set when the name ran to the end of the box without a
	// null byte.
	Unterminated bool
}

func (*HandlerBox) Type() BoxType { return TypeHdlr }

func (b *HandlerBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.PreDefined),
		Tag(&b.HandlerType),
		Array(b.Reserved[:]),
		CStringOpen(&b.Name, &b.Unterminated),
	}
}

// ExtendedLanguageBox (elng) is an RFC 4646 language tag.
type ExtendedLanguageBox struct {
	FullBoxHeader
	ExtendedLanguage string
	Unterminated     bool
}

func (*ExtendedLanguageBox) Type() BoxType { return TypeElng }

func (b *ExtendedLanguageBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), CStringOpen(&b.ExtendedLanguage, &b.Unterminated)}
}

// MediaInformationBox (minf) holds the characteristics of the media.
type MediaInformationBox struct {
	Vmhd    *VideoMediaHeaderBox
	Smhd    *SoundMediaHeaderBox
	Hmhd    *HintMediaHeaderBox
	Sthd    *SubtitleMediaHeaderBox
	Nmhd    *NullMediaHeaderBox
	Dinf    *DataInformationBox
	Stbl    SampleTableBox
	Unknown []UnknownBox
}

func (*MediaInformationBox) Type() BoxType { return TypeMinf }

func (b *MediaInformationBox) Fields() []Field {
	return []Field{
		Optional(&b.Vmhd),
		Optional(&b.Smhd),
		Optional(&b.Hmhd),
		Optional(&b.Sthd),
		Optional(&b.Nmhd),
		Optional(&b.Dinf),
		One(&b.Stbl),
		Unknown(&b.Unknown),
	}
}

// VideoMediaHeaderBox (vmhd) is the media header of video tracks. Its flags
// are 1 by definition.
type VideoMediaHeaderBox struct {
	FullBoxHeader
	GraphicsMode uint16
	OpColor      [3]uint16
}

// NewVideoMediaHeader returns a vmhd with the mandatory flags set.
func NewVideoMediaHeader() *VideoMediaHeaderBox {
	return &VideoMediaHeaderBox{FullBoxHeader: FullBoxHeader{Flags: 1}}
}

func (*VideoMediaHeaderBox) Type() BoxType { return TypeVmhd }

func (b *VideoMediaHeaderBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U16(&b.GraphicsMode),
		U16(&b.OpColor[0]),
		U16(&b.OpColor[1]),
		U16(&b.OpColor[2]),
	}
}

// SoundMediaHeaderBox (smhd) is the media header of audio tracks.
type SoundMediaHeaderBox struct {
	FullBoxHeader
	Balance int16
}

func (*SoundMediaHeaderBox) Type() BoxType { return TypeSmhd }

func (b *SoundMediaHeaderBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), I16(&b.Balance), Reserved(2)} //nolint:mnd
}

// HintMediaHeaderBox (hmhd) is the media header of hint tracks.
type HintMediaHeaderBox struct {
	FullBoxHeader
	MaxPDUSize uint16
	AvgPDUSize uint16
	MaxBitrate uint32
	AvgBitrate uint32
}

func (*HintMediaHeaderBox) Type() BoxType { return TypeHmhd }

func (b *HintMediaHeaderBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U16(&b.MaxPDUSize),
		U16(&b.AvgPDUSize),
		U32(&b.MaxBitrate),
		U32(&b.AvgBitrate),
		Reserved(4), //nolint:mnd
	}
}

// SubtitleMediaHeaderBox (sthd) is the media header of subtitle tracks.
type SubtitleMediaHeaderBox struct {
	FullBoxHeader
}

func (*SubtitleMediaHeaderBox) Type() BoxType { return TypeSthd }

func (b *SubtitleMediaHeaderBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader)}
}

// NullMediaHeaderBox (nmhd) is the media header of other track types.
type NullMediaHeaderBox struct {
	FullBoxHeader
}

func (*NullMediaHeaderBox) Type() BoxType { return TypeNmhd }

func (b *NullMediaHeaderBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader)}
}

// DataInformationBox (dinf) locates the media data of a track.
type DataInformationBox struct {
	Dref DataReferenceBox
}

func (*DataInformationBox) Type() BoxType { return TypeDinf }

func (b *DataInformationBox) Fields() []Field {
	return []Field{One(&b.Dref)}
}

// NewSelfContainedDataInformation returns a dinf with a single url entry
// pointing into the same file.
func NewSelfContainedDataInformation() *DataInformationBox {
	return &DataInformationBox{Dref: DataReferenceBox{
		Entries: []Box{&DataEntryURLBox{FullBoxHeader: FullBoxHeader{Flags: DataEntrySelfContained}}},
	}}
}

// DataReferenceBox (dref) is a table of data references. Entries are usually
// *DataEntryURLBox or *DataEntryURNBox.
type DataReferenceBox struct {
	FullBoxHeader
	Entries []Box
}

func (*DataReferenceBox) Type() BoxType { return TypeDref }

func (b *DataReferenceBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		EntryCount(&b.Entries),
		Any(&b.Entries, nil),
	}
}

// DataEntrySelfContained marks a data entry whose media is in the same file.
const DataEntrySelfContained = 0x000001

// DataEntryURLBox (url) locates media data by URL.
type DataEntryURLBox struct {
	FullBoxHeader
	Location     string
	Unterminated bool
}

func (*DataEntryURLBox) Type() BoxType { return TypeURL }

func (b *DataEntryURLBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		When(b.external, CStringOpen(&b.Location, &b.Unterminated)),
	}
}

func (b *DataEntryURLBox) external() bool { return !b.Has(DataEntrySelfContained) }

// DataEntryURNBox (urn) locates media data by URN.
type DataEntryURNBox struct {
	FullBoxHeader
	Name     string
	Location string

	NameUnterminated     bool
	LocationUnterminated bool
}

func (*DataEntryURNBox) Type() BoxType { return TypeURN }

func (b *DataEntryURNBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		CStringOpen(&b.Name, &b.NameUnterminated),
		When(func() bool { return !b.Has(DataEntrySelfContained) }, CStringOpen(&b.Location, &b.LocationUnterminated)),
	}
}

type entryCountField[T any] struct {
	p *[]T
}

// EntryCount binds the 32-bit entry count that precedes the child boxes of
// stsd and dref. The count is written as the length of p; the children that
// follow are what is decoded.
func EntryCount[T any](p *[]T) Field {
	return entryCountField[T]{p: p}
}

func (f entryCountField[T]) Len() int { return 4 } //nolint:mnd

func (f entryCountField[T]) Decode(r *zerocopy.Reader) error {
	_, err := r.U32()
	return err
}

func (f entryCountField[T]) Marshal(b []byte) int {
	pio.PutU32BE(b, uint32(len(*f.p))) //nolint:gosec
	return 4                            //nolint:mnd
}

// String returns the handler type and name.
func (b *HandlerBox) String() string {
	return fmt.Sprintf("%s %q", b.HandlerType, b.Name)
}
