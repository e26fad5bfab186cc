package isobmff

import (
	"github.com/ugparu/bmff/utils/zerocopy"
)

var (
	TypeBtrt = Type4("btrt")
	TypePasp = Type4("pasp")
	TypeClap = Type4("clap")
	TypeColr = Type4("colr")
	TypeClli = Type4("clli")
	TypeMdcv = Type4("mdcv")
	TypeSrat = Type4("srat")
)

// Visual sample entry defaults.
const (
	DefaultResolution = 0x00480000
	DefaultDepth      = 0x0018
)

// SampleEntry is the part shared by every sample entry.
type SampleEntry struct {
	DataReferenceIndex uint16
}

// Fields returns the layout of the shared part.
func (e *SampleEntry) Fields() []Field {
	return []Field{Reserved(6), U16(&e.DataReferenceIndex)} //nolint:mnd
}

// VisualSampleEntry is the part shared by video sample entries. The pre
// defined words are kept verbatim because QuickTime stores version and
// vendor information there.
type VisualSampleEntry struct {
	SampleEntry
	PreDefined      [16]byte
	Width           uint16
	Height          uint16
	HorizResolution uint32
	VertResolution  uint32
	Reserved        uint32
	FrameCount      uint16
	CompressorName  [32]byte
	Depth           uint16
	ColorTableID    int16
}

// NewVisualSampleEntry returns a visual entry with the defaults writers use.
func NewVisualSampleEntry(width, height uint16) VisualSampleEntry {
	return VisualSampleEntry{
		SampleEntry:     SampleEntry{DataReferenceIndex: 1},
		Width:           width,
		Height:          height,
		HorizResolution: DefaultResolution,
		VertResolution:  DefaultResolution,
		FrameCount:      1,
		Depth:           DefaultDepth,
		ColorTableID:    -1,
	}
}

// Fields returns the layout of the visual part.
func (e *VisualSampleEntry) Fields() []Field {
	return append(e.SampleEntry.Fields(),
		Array(e.PreDefined[:]),
		U16(&e.Width),
		U16(&e.Height),
		U32(&e.HorizResolution),
		U32(&e.VertResolution),
		U32(&e.Reserved),
		U16(&e.FrameCount),
		Array(e.CompressorName[:]),
		U16(&e.Depth),
		I16(&e.ColorTableID),
	)
}

// Compressor returns the compressor name stored as a Pascal string.
func (e *VisualSampleEntry) Compressor() string {
	n := min(int(e.CompressorName[0]), len(e.CompressorName)-1)
	return string(e.CompressorName[1 : 1+n])
}

// SetCompressor stores name as a Pascal string, truncated to 31 bytes.
func (e *VisualSampleEntry) SetCompressor(name string) {
	clear(e.CompressorName[:])
	n := copy(e.CompressorName[1:], name)
	e.CompressorName[0] = byte(n)
}

// VisualBoxes are the optional boxes any visual sample entry may carry.
type VisualBoxes struct {
	Btrt *BitRateBox
	Clap *CleanApertureBox
	Pasp *PixelAspectRatioBox
	Colr []ColourInformationBox
	Clli *ContentLightLevelBox
	Mdcv *MasteringDisplayColourVolumeBox
}

func (v *VisualBoxes) fields() []Field {
	return []Field{
		Optional(&v.Btrt),
		Optional(&v.Clap),
		Optional(&v.Pasp),
		Many(&v.Colr),
		Optional(&v.Clli),
		Optional(&v.Mdcv),
	}
}

// AudioSampleEntry is the part shared by audio sample entries. Version 1 and
// 2 are QuickTime sound descriptions that append 16 and 36 bytes; those are
// kept in QuickTimeFields.
type AudioSampleEntry struct {
	SampleEntry
	Version         uint16
	Revision        [6]byte
	ChannelCount    uint16
	SampleSize      uint16
	PreDefined      uint16
	Reserved        uint16
	SampleRate      uint32
	QuickTimeFields []byte
}

// NewAudioSampleEntry returns an audio entry for rate, which must fit 16
// bits. Callers with higher rates store 0 and add an srat box.
func NewAudioSampleEntry(channels, sampleSize uint16, rate uint32) AudioSampleEntry {
	return AudioSampleEntry{
		SampleEntry:  SampleEntry{DataReferenceIndex: 1},
		ChannelCount: channels,
		SampleSize:   sampleSize,
		SampleRate:   rate << 16, //nolint:mnd
	}
}

const (
	quickTimeV1Len = 16
	quickTimeV2Len = 36
)

func (e *AudioSampleEntry) quickTimeLen() int {
	switch e.Version {
	case 1:
		return quickTimeV1Len
	case 2: //nolint:mnd
		return quickTimeV2Len
	}
	return 0
}

// Fields returns the layout of the audio part.
func (e *AudioSampleEntry) Fields() []Field {
	return append(e.SampleEntry.Fields(),
		U16(&e.Version),
		Array(e.Revision[:]),
		U16(&e.ChannelCount),
		U16(&e.SampleSize),
		U16(&e.PreDefined),
		U16(&e.Reserved),
		U32(&e.SampleRate),
		Func(
			func() int { return len(e.QuickTimeFields) },
			func(r *zerocopy.Reader) (err error) {
				e.QuickTimeFields, err = r.ExtractBytes(e.quickTimeLen())
				return
			},
			func(b []byte) int { return copy(b, e.QuickTimeFields) },
		),
	)
}

// Rate returns the integer part of the 16.16 sample rate.
func (e *AudioSampleEntry) Rate() uint32 {
	return e.SampleRate >> 16 //nolint:mnd
}

// BitRateBox (btrt) signals the bit rate of a stream.
type BitRateBox struct {
	BufferSizeDB uint32
	MaxBitrate   uint32
	AvgBitrate   uint32
}

func (*BitRateBox) Type() BoxType { return TypeBtrt }

func (b *BitRateBox) Fields() []Field {
	return []Field{U32(&b.BufferSizeDB), U32(&b.MaxBitrate), U32(&b.AvgBitrate)}
}

// PixelAspectRatioBox (pasp) is the relative width and height of a pixel.
type PixelAspectRatioBox struct {
	HSpacing uint32
	VSpacing uint32
}

func (*PixelAspectRatioBox) Type() BoxType { return TypePasp }

func (b *PixelAspectRatioBox) Fields() []Field {
	return []Field{U32(&b.HSpacing), U32(&b.VSpacing)}
}

// CleanApertureBox (clap) is the clean aperture as fractions.
type CleanApertureBox struct {
	CleanApertureWidthN  uint32
	CleanApertureWidthD  uint32
	CleanApertureHeightN uint32
	CleanApertureHeightD uint32
	HorizOffN            uint32
	HorizOffD            uint32
	VertOffN             uint32
	VertOffD             uint32
}

func (*CleanApertureBox) Type() BoxType { return TypeClap }

func (b *CleanApertureBox) Fields() []Field {
	return []Field{
		U32(&b.CleanApertureWidthN), U32(&b.CleanApertureWidthD),
		U32(&b.CleanApertureHeightN), U32(&b.CleanApertureHeightD),
		U32(&b.HorizOffN), U32(&b.HorizOffD),
		U32(&b.VertOffN), U32(&b.VertOffD),
	}
}

// Colour types of colr.
var (
	ColourNclx = FourCC{'n', 'c', 'l', 'x'}
	ColourNclc = FourCC{'n', 'c', 'l', 'c'}
	ColourRICC = FourCC{'r', 'I', 'C', 'C'}
	ColourProf = FourCC{'p', 'r', 'o', 'f'}
)

// ColourInformationBox (colr) signals colour information either as coded
// values (nclx, or nclc in QuickTime) or as an ICC profile kept in Data.
type ColourInformationBox struct {
	ColourType              FourCC
	ColourPrimaries         uint16
	TransferCharacteristics uint16
	MatrixCoefficients      uint16
	FullRange               bool
	Data                    []byte
}

// NewNclx returns an nclx colour box.
func NewNclx(primaries, transfer, matrix uint16, fullRange bool) ColourInformationBox {
	return ColourInformationBox{
		ColourType:              ColourNclx,
		ColourPrimaries:         primaries,
		TransferCharacteristics: transfer,
		MatrixCoefficients:      matrix,
		FullRange:               fullRange,
	}
}

func (*ColourInformationBox) Type() BoxType { return TypeColr }

func (b *ColourInformationBox) coded() bool {
	return b.ColourType == ColourNclx || b.ColourType == ColourNclc
}

func (b *ColourInformationBox) Fields() []Field {
	return []Field{
		Tag(&b.ColourType),
		When(b.coded,
			U16(&b.ColourPrimaries),
			U16(&b.TransferCharacteristics),
			U16(&b.MatrixCoefficients),
		),
		When(func() bool { return b.ColourType == ColourNclx }, Func(
			func() int { return 1 },
			func(r *zerocopy.Reader) error {
				v, err := r.U8()
				b.FullRange = v&0x80 != 0
				return err
			},
			func(p []byte) int {
				p[0] = 0
				if b.FullRange {
					p[0] = 0x80
				}
				return 1
			},
		)),
		When(func() bool { return !b.coded() }, Remaining(&b.Data)),
	}
}

// ContentLightLevelBox (clli) carries HDR content light levels.
type ContentLightLevelBox struct {
	MaxContentLightLevel    uint16
	MaxPicAverageLightLevel uint16
}

func (*ContentLightLevelBox) Type() BoxType { return TypeClli }

func (b *ContentLightLevelBox) Fields() []Field {
	return []Field{U16(&b.MaxContentLightLevel), U16(&b.MaxPicAverageLightLevel)}
}

// MasteringDisplayColourVolumeBox (mdcv) describes the mastering display.
type MasteringDisplayColourVolumeBox struct {
	DisplayPrimaries             [3][2]uint16
	WhitePoint                   [2]uint16
	MaxDisplayMasteringLuminance uint32
	MinDisplayMasteringLuminance uint32
}

func (*MasteringDisplayColourVolumeBox) Type() BoxType { return TypeMdcv }

func (b *MasteringDisplayColourVolumeBox) Fields() []Field {
	fields := make([]Field, 0, 10) //nolint:mnd
	for i := range b.DisplayPrimaries {
		fields = append(fields, U16(&b.DisplayPrimaries[i][0]), U16(&b.DisplayPrimaries[i][1]))
	}
	return append(fields,
		U16(&b.WhitePoint[0]),
		U16(&b.WhitePoint[1]),
		U32(&b.MaxDisplayMasteringLuminance),
		U32(&b.MinDisplayMasteringLuminance),
	)
}

// SamplingRateBox (srat) carries the sample rate of audio entries whose rate
// does not fit the 16.16 field.
type SamplingRateBox struct {
	FullBoxHeader
	SamplingRate uint32
}

func (*SamplingRateBox) Type() BoxType { return TypeSrat }

func (b *SamplingRateBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), U32(&b.SamplingRate)}
}
