package isobmff

import (
	"github.com/ugparu/bmff/codec/av1"
	"github.com/ugparu/bmff/codec/h264"
	"github.com/ugparu/bmff/codec/h265"
)

var (
	TypeAvc1 = Type4("avc1")
	TypeAvc2 = Type4("avc2")
	TypeAvc3 = Type4("avc3")
	TypeAvc4 = Type4("avc4")
	TypeAvcp = Type4("avcp")
	TypeAvcC = Type4("avcC")
	TypeHvc1 = Type4("hvc1")
	TypeHev1 = Type4("hev1")
	TypeHvcC = Type4("hvcC")
	TypeAv01 = Type4("av01")
	TypeAv1C = Type4("av1C")
)

// AVCSampleEntry is the visual sample entry of H.264 tracks. One layout
// serves avc1, avc2, avc3, avc4 and avcp; Format holds the tag.
type AVCSampleEntry struct {
	Format FourCC
	VisualSampleEntry
	Avcc AVCConfigurationBox
	VisualBoxes
	Unknown []UnknownBox
}

// NewAVCSampleEntry returns an avc1 entry for record.
func NewAVCSampleEntry(width, height uint16, record h264.AVCDecoderConfRecord) *AVCSampleEntry {
	return &AVCSampleEntry{
		Format:            TypeAvc1.FourCC(),
		VisualSampleEntry: NewVisualSampleEntry(width, height),
		Avcc:              AVCConfigurationBox{Record: record},
	}
}

func (e *AVCSampleEntry) Type() BoxType { return TypeOf(e.Format) }

func (e *AVCSampleEntry) SetType(t BoxType) bool {
	switch t {
	case TypeAvc1, TypeAvc2, TypeAvc3, TypeAvc4, TypeAvcp:
		e.Format = t.FourCC()
		return true
	}
	return false
}

func (e *AVCSampleEntry) Fields() []Field {
	fields := append(e.VisualSampleEntry.Fields(), One(&e.Avcc))
	fields = append(fields, e.VisualBoxes.fields()...)
	return append(fields, Unknown(&e.Unknown))
}

// AVCConfigurationBox (avcC) wraps the AVC decoder configuration record.
type AVCConfigurationBox struct {
	Record h264.AVCDecoderConfRecord
}

func (*AVCConfigurationBox) Type() BoxType { return TypeAvcC }

func (b *AVCConfigurationBox) Fields() []Field {
	return []Field{RecordField(&b.Record)}
}

// HEVCSampleEntry is the visual sample entry of H.265 tracks, tagged hvc1
// when parameter sets live only in the entry and hev1 when they may also be
// in band.
type HEVCSampleEntry struct {
	Format FourCC
	VisualSampleEntry
	Hvcc HEVCConfigurationBox
	VisualBoxes
	Unknown []UnknownBox
}

// NewHEVCSampleEntry returns an hvc1 entry for record.
func NewHEVCSampleEntry(width, height uint16, record h265.HEVCDecoderConfRecord) *HEVCSampleEntry {
	return &HEVCSampleEntry{
		Format:            TypeHvc1.FourCC(),
		VisualSampleEntry: NewVisualSampleEntry(width, height),
		Hvcc:              HEVCConfigurationBox{Record: record},
	}
}

func (e *HEVCSampleEntry) Type() BoxType { return TypeOf(e.Format) }

func (e *HEVCSampleEntry) SetType(t BoxType) bool {
	switch t {
	case TypeHvc1, TypeHev1:
		e.Format = t.FourCC()
		return true
	}
	return false
}

func (e *HEVCSampleEntry) Fields() []Field {
	fields := append(e.VisualSampleEntry.Fields(), One(&e.Hvcc))
	fields = append(fields, e.VisualBoxes.fields()...)
	return append(fields, Unknown(&e.Unknown))
}

// HEVCConfigurationBox (hvcC) wraps the HEVC decoder configuration record.
type HEVCConfigurationBox struct {
	Record h265.HEVCDecoderConfRecord
}

func (*HEVCConfigurationBox) Type() BoxType { return TypeHvcC }

func (b *HEVCConfigurationBox) Fields() []Field {
	return []Field{RecordField(&b.Record)}
}

// AV1SampleEntry (av01) is the visual sample entry of AV1 tracks.
type AV1SampleEntry struct {
	VisualSampleEntry
	Av1C AV1CodecConfigurationBox
	VisualBoxes
	Unknown []UnknownBox
}

// NewAV1SampleEntry returns an av01 entry for record.
func NewAV1SampleEntry(width, height uint16, record av1.CodecConfigurationRecord) *AV1SampleEntry {
	return &AV1SampleEntry{
		VisualSampleEntry: NewVisualSampleEntry(width, height),
		Av1C:              AV1CodecConfigurationBox{Record: record},
	}
}

func (*AV1SampleEntry) Type() BoxType { return TypeAv01 }

func (e *AV1SampleEntry) Fields() []Field {
	fields := append(e.VisualSampleEntry.Fields(), One(&e.Av1C))
	fields = append(fields, e.VisualBoxes.fields()...)
	return append(fields, Unknown(&e.Unknown))
}

// AV1CodecConfigurationBox (av1C) wraps the AV1 codec configuration record.
type AV1CodecConfigurationBox struct {
	Record av1.CodecConfigurationRecord
}

func (*AV1CodecConfigurationBox) Type() BoxType { return TypeAv1C }

func (b *AV1CodecConfigurationBox) Fields() []Field {
	return []Field{RecordField(&b.Record)}
}
