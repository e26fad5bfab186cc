package isobmff

// Brand identifies a specification a file conforms to.
type Brand FourCC

// Well known brands.
var (
	BrandIsom = Brand{'i', 's', 'o', 'm'}
	BrandIso2 = Brand{'i', 's', 'o', '2'}
	BrandIso3 = Brand{'i', 's', 'o', '3'}
	BrandIso4 = Brand{'i', 's', 'o', '4'}
	BrandIso5 = Brand{'i', 's', 'o', '5'}
	BrandIso6 = Brand{'i', 's', 'o', '6'}
	BrandIso7 = Brand{'i', 's', 'o', '7'}
	BrandIso8 = Brand{'i', 's', 'o', '8'}
	BrandIso9 = Brand{'i', 's', 'o', '9'}
	BrandAvc1 = Brand{'a', 'v', 'c', '1'}
	BrandHev1 = Brand{'h', 'e', 'v', '1'}
	BrandAv01 = Brand{'a', 'v', '0', '1'}
	BrandMp41 = Brand{'m', 'p', '4', '1'}
	BrandMp42 = Brand{'m', 'p', '4', '2'}
	BrandDash = Brand{'d', 'a', 's', 'h'}
	BrandMsdh = Brand{'m', 's', 'd', 'h'}
	BrandMsix = Brand{'m', 's', 'i', 'x'}
	BrandCmfc = Brand{'c', 'm', 'f', 'c'}
	BrandQt   = Brand{'q', 't', ' ', ' '}
)

func (b Brand) String() string {
	return FourCC(b).String()
}

var (
	TypeFtyp = Type4("ftyp")
	TypeStyp = Type4("styp")
	TypeTtyp = Type4("ttyp")
	TypeTyco = Type4("tyco")
	TypeEtyp = Type4("etyp")
	TypeOtyp = Type4("otyp")
)

func brandFields(b *Brand) []Field {
	return []Field{Tag(b)}
}

// FileTypeBox (ftyp) names the brands a file conforms to.
type FileTypeBox struct {
	MajorBrand       Brand
	MinorVersion     uint32
	CompatibleBrands []Brand
}

func (*FileTypeBox) Type() BoxType { return TypeFtyp }

func (b *FileTypeBox) Fields() []Field {
	return []Field{
		Tag(&b.MajorBrand),
		U32(&b.MinorVersion),
		Repeated(&b.CompatibleBrands, brandFields),
	}
}

// Compatible reports whether brand is the major brand or a compatible brand.
func (b *FileTypeBox) Compatible(brand Brand) bool {
	if b.MajorBrand == brand {
		return true
	}
	for _, c := range b.CompatibleBrands {
		if c == brand {
			return true
		}
	}
	return false
}

// SegmentTypeBox (styp) is the ftyp of a media segment.
type SegmentTypeBox struct {
	FileTypeBox
}

func (*SegmentTypeBox) Type() BoxType { return TypeStyp }

// TrackTypeBox (ttyp) is the ftyp of a single track.
type TrackTypeBox struct {
	FileTypeBox
}

func (*TrackTypeBox) Type() BoxType { return TypeTtyp }

// TypeCombinationBox (tyco) lists brands that apply together.
type TypeCombinationBox struct {
	CompatibleBrands []Brand
}

func (*TypeCombinationBox) Type() BoxType { return TypeTyco }

func (b *TypeCombinationBox) Fields() []Field {
	return []Field{Repeated(&b.CompatibleBrands, brandFields)}
}

// ExtendedTypeBox (etyp) lists brand combinations a reader must support.
type ExtendedTypeBox struct {
	CompatibleCombinations []TypeCombinationBox
	Unknown                []UnknownBox
}

func (*ExtendedTypeBox) Type() BoxType { return TypeEtyp }

func (b *ExtendedTypeBox) Fields() []Field {
	return []Field{
		Many(&b.CompatibleCombinations),
		Unknown(&b.Unknown),
	}
}

// OriginalFileTypeBox (otyp) keeps the type boxes of a file before it was
// transformed.
type OriginalFileTypeBox struct {
	Boxes []Box
}

func (*OriginalFileTypeBox) Type() BoxType { return TypeOtyp }

func (b *OriginalFileTypeBox) Fields() []Field {
	return []Field{Any(&b.Boxes, nil)}
}
