package isobmff

var (
	TypeMdat = Type4("mdat")
	TypeFree = Type4("free")
	TypeSkip = Type4("skip")
	TypePdin = Type4("pdin")
	TypeImda = Type4("imda")
)

// MediaDataBox (mdat) holds sample data. The header is kept so an mdat that
// runs to the end of the file is written back the same way.
type MediaDataBox struct {
	Header BoxHeader
	Data   []byte
}

func (*MediaDataBox) Type() BoxType { return TypeMdat }

func (b *MediaDataBox) ExplicitHeader() *BoxHeader { return &b.Header }

func (b *MediaDataBox) Fields() []Field {
	return []Field{Remaining(&b.Data)}
}

// FreeSpaceBox is either a free or a skip box. Its content is irrelevant and
// kept only for round trips.
type FreeSpaceBox struct {
	Skip bool
	Data []byte
}

func (b *FreeSpaceBox) Type() BoxType {
	if b.Skip {
		return TypeSkip
	}
	return TypeFree
}

func (b *FreeSpaceBox) SetType(t BoxType) bool {
	switch t {
	case TypeFree:
		b.Skip = false
	case TypeSkip:
		b.Skip = true
	default:
		return false
	}
	return true
}

func (b *FreeSpaceBox) Fields() []Field {
	return []Field{Remaining(&b.Data)}
}

// DownloadRate is one entry of a progressive download info box.
type DownloadRate struct {
	Rate         uint32
	InitialDelay uint32
}

// ProgressiveDownloadInfoBox (pdin) hints the initial delay for a set of
// download rates.
type ProgressiveDownloadInfoBox struct {
	FullBoxHeader
	Rates []DownloadRate
}

func (*ProgressiveDownloadInfoBox) Type() BoxType { return TypePdin }

func (b *ProgressiveDownloadInfoBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Repeated(&b.Rates, func(e *DownloadRate) []Field {
			return []Field{U32(&e.Rate), U32(&e.InitialDelay)}
		}),
	}
}

// IdentifiedMediaDataBox (imda) is an mdat addressed by identifier.
type IdentifiedMediaDataBox struct {
	Identifier uint32
	Data       []byte
}

func (*IdentifiedMediaDataBox) Type() BoxType { return TypeImda }

func (b *IdentifiedMediaDataBox) Fields() []Field {
	return []Field{U32(&b.Identifier), Remaining(&b.Data)}
}
