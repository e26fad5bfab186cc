package isobmff

var (
	TypeCmov = Type4("!mov")
	TypeCmof = Type4("!mof")
	TypeCsix = Type4("!six")
	TypeCssx = Type4("!ssx")
)

// CompressedBox is a box whose payload is the compressed form of another
// box. Uncompressed returns an empty box of the type the payload expands to.
type CompressedBox interface {
	Box
	Uncompressed() Box
}

// CompressedMovieBox (!mov) is a compressed moov.
type CompressedMovieBox struct {
	Data []byte
}

func (*CompressedMovieBox) Type() BoxType { return TypeCmov }
func (b *CompressedMovieBox) Fields() []Field { return []Field{Remaining(&b.Data)} }
func (*CompressedMovieBox) Uncompressed() Box { return new(MovieBox) }

// CompressedMovieFragmentBox (!mof) is a compressed moof.
type CompressedMovieFragmentBox struct {
	Data []byte
}

func (*CompressedMovieFragmentBox) Type() BoxType { return TypeCmof }
func (b *CompressedMovieFragmentBox) Fields() []Field { return []Field{Remaining(&b.Data)} }
func (*CompressedMovieFragmentBox) Uncompressed() Box { return new(MovieFragmentBox) }

// CompressedSegmentIndexBox (!six) is a compressed sidx.
type CompressedSegmentIndexBox struct {
	Data []byte
}

func (*CompressedSegmentIndexBox) Type() BoxType { return TypeCsix }
func (b *CompressedSegmentIndexBox) Fields() []Field { return []Field{Remaining(&b.Data)} }
func (*CompressedSegmentIndexBox) Uncompressed() Box { return new(SegmentIndexBox) }

// CompressedSubsegmentIndexBox (!ssx) is a compressed ssix.
type CompressedSubsegmentIndexBox struct {
	Data []byte
}

func (*CompressedSubsegmentIndexBox) Type() BoxType { return TypeCssx }
func (b *CompressedSubsegmentIndexBox) Fields() []Field { return []Field{Remaining(&b.Data)} }
func (*CompressedSubsegmentIndexBox) Uncompressed() Box { return new(SubsegmentIndexBox) }

// Expand decodes data, the decompressed payload of c, into the box type c
// stands for. data holds the whole uncompressed box including its header.
func Expand(c CompressedBox, data []byte) (Box, error) {
	box := c.Uncompressed()
	if _, err := Unmarshal(data, box); err != nil {
		return nil, err
	}
	return box, nil
}
