package isobmff

var (
	TypeTrak = Type4("trak")
	TypeTkhd = Type4("tkhd")
	TypeTref = Type4("tref")
	TypeTrgr = Type4("trgr")
	TypeEdts = Type4("edts")
	TypeElst = Type4("elst")
)

// Track header flags.
const (
	TrackEnabled   = 0x000001
	TrackInMovie   = 0x000002
	TrackInPreview = 0x000004
)

// TrackBox (trak) is the container for a single track.
type TrackBox struct {
	Tkhd    TrackHeaderBox
	Tref    *TrackReferenceBox
	Trgr    *TrackGroupBox
	Ttyp    *TrackTypeBox
	Edts    *EditBox
	Meta    *MetaBox
	Mdia    MediaBox
	Udta    *UserDataBox
	Unknown []UnknownBox
}

func (*TrackBox) Type() BoxType { return TypeTrak }

func (b *TrackBox) Fields() []Field {
	return []Field{
		One(&b.Tkhd),
		Optional(&b.Tref),
		Optional(&b.Trgr),
		Optional(&b.Ttyp),
		Optional(&b.Edts),
		Optional(&b.Meta),
		One(&b.Mdia),
		Optional(&b.Udta),
		Unknown(&b.Unknown),
	}
}

// TrackHeaderBox (tkhd) carries the characteristics of a single track.
// Width and Height are 16.16 fixed point.
type TrackHeaderBox struct {
	FullBoxHeader
	CreationTime     uint64
	ModificationTime uint64
	TrackID          uint32
	Duration         uint64
	Layer            int16
	AlternateGroup   int16
	Volume           int16
	Matrix           [9]int32
	Width            uint32
	Height           uint32
}

func (*TrackHeaderBox) Type() BoxType { return TypeTkhd }

func (b *TrackHeaderBox) Fields() []Field {
	wide := func() bool { return b.Version == 1 }
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Versioned64(&b.CreationTime, wide),
		Versioned64(&b.ModificationTime, wide),
		U32(&b.TrackID),
		Reserved(4), //nolint:mnd
		Versioned64(&b.Duration, wide),
		Reserved(8), //nolint:mnd
		I16(&b.Layer),
		I16(&b.AlternateGroup),
		I16(&b.Volume),
		Reserved(2), //nolint:mnd
		Matrix(&b.Matrix),
		U32(&b.Width),
		U32(&b.Height),
	}
}

// TrackReferenceBox (tref) lists the tracks this track references, grouped
// by reference type.
type TrackReferenceBox struct {
	References []TrackReferenceTypeBox
}

func (*TrackReferenceBox) Type() BoxType { return TypeTref }

func (b *TrackReferenceBox) Fields() []Field {
	return []Field{Each(&b.References)}
}

// TrackReferenceTypeBox is one typed reference list inside tref, such as
// hint, cdsc or chap.
type TrackReferenceTypeBox struct {
	ReferenceType FourCC
	TrackIDs      []uint32
}

func (b *TrackReferenceTypeBox) Type() BoxType { return TypeOf(b.ReferenceType) }

func (b *TrackReferenceTypeBox) SetType(t BoxType) bool {
	if t.IsUUID() {
		return false
	}
	b.ReferenceType = t.FourCC()
	return true
}

func (b *TrackReferenceTypeBox) Fields() []Field {
	return []Field{Uint32s(&b.TrackIDs)}
}

// TrackGroupBox (trgr) lists the groups this track belongs to.
type TrackGroupBox struct {
	Groups []TrackGroupTypeBox
}

func (*TrackGroupBox) Type() BoxType { return TypeTrgr }

func (b *TrackGroupBox) Fields() []Field {
	return []Field{Each(&b.Groups)}
}

// TrackGroupTypeBox is one typed group membership inside trgr, such as msrc.
type TrackGroupTypeBox struct {
	GroupType FourCC
	FullBoxHeader
	TrackGroupID uint32
	Data         []byte
}

func (b *TrackGroupTypeBox) Type() BoxType { return TypeOf(b.GroupType) }

func (b *TrackGroupTypeBox) SetType(t BoxType) bool {
	if t.IsUUID() {
		return false
	}
	b.GroupType = t.FourCC()
	return true
}

func (b *TrackGroupTypeBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		U32(&b.TrackGroupID),
		Remaining(&b.Data),
	}
}

// EditBox (edts) maps the presentation timeline to the media timeline.
type EditBox struct {
	Elst    *EditListBox
	Unknown []UnknownBox
}

func (*EditBox) Type() BoxType { return TypeEdts }

func (b *EditBox) Fields() []Field {
	return []Field{Optional(&b.Elst), Unknown(&b.Unknown)}
}

// EditListEntry is one edit. A MediaTime of -1 is an empty edit.
type EditListEntry struct {
	SegmentDuration   uint64
	MediaTime         int64
	MediaRateInteger  int16
	MediaRateFraction int16
}

// EditListBox (elst) is an explicit timeline map.
type EditListBox struct {
	FullBoxHeader
	Entries []EditListEntry
}

func (*EditListBox) Type() BoxType { return TypeElst }

func (b *EditListBox) Fields() []Field {
	wide := func() bool { return b.Version == 1 }
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Counted(&b.Entries, func(e *EditListEntry) []Field {
			return []Field{
				Versioned64(&e.SegmentDuration, wide),
				VersionedI64(&e.MediaTime, wide),
				I16(&e.MediaRateInteger),
				I16(&e.MediaRateFraction),
			}
		}),
	}
}
