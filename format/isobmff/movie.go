package isobmff

import "github.com/ugparu/bmff/utils/zerocopy"

var (
	TypeMoov = Type4("moov")
	TypeMvhd = Type4("mvhd")
)

// UnityMatrix is the identity transformation matrix of mvhd and tkhd.
var UnityMatrix = [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}

// MovieBox (moov) is the container for all presentation metadata.
type MovieBox struct {
	Mvhd    MovieHeaderBox
	Meta    *MetaBox
	Trak    []TrackBox
	Mvex    *MovieExtendsBox
	Udta    *UserDataBox
	Unknown []UnknownBox
}

func (*MovieBox) Type() BoxType { return TypeMoov }

func (b *MovieBox) Fields() []Field {
	return []Field{
		One(&b.Mvhd),
		Optional(&b.Meta),
		AtLeastOne(&b.Trak),
		Optional(&b.Mvex),
		Optional(&b.Udta),
		Unknown(&b.Unknown),
	}
}

// Track returns the track with the given id, or nil.
func (b *MovieBox) Track(id uint32) *TrackBox {
	for i := range b.Trak {
		if b.Trak[i].Tkhd.TrackID == id {
			return &b.Trak[i]
		}
	}
	return nil
}

// MovieHeaderBox (mvhd) carries media independent presentation data.
type MovieHeaderBox struct {
	FullBoxHeader
	CreationTime     uint64
	ModificationTime uint64
	Timescale        uint32
	Duration         uint64
	Rate             int32
	Volume           int16
	Matrix           [9]int32
	PreDefined       [6]uint32
	NextTrackID      uint32
}

func (*MovieHeaderBox) Type() BoxType { return TypeMvhd }

func (b *MovieHeaderBox) Fields() []Field {
	wide := b.wide
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Versioned64(&b.CreationTime, wide),
		Versioned64(&b.ModificationTime, wide),
		U32(&b.Timescale),
		Versioned64(&b.Duration, wide),
		I32(&b.Rate),
		I16(&b.Volume),
		Reserved(10), //nolint:mnd
		Matrix(&b.Matrix),
		Func(
			func() int { return 24 }, //nolint:mnd
			func(r *zerocopy.Reader) error {
				for i := range b.PreDefined {
					v, err := r.U32()
					if err != nil {
						return err
					}
					b.PreDefined[i] = v
				}
				return nil
			},
			func(p []byte) (n int) {
				for i := range b.PreDefined {
					n += U32(&b.PreDefined[i]).Marshal(p[n:])
				}
				return
			},
		),
		U32(&b.NextTrackID),
	}
}

func (b *MovieHeaderBox) wide() bool { return b.Version == 1 }

// Matrix binds a 3x3 transformation matrix.
func Matrix(m *[9]int32) Field {
	return Func(
		func() int { return 36 }, //nolint:mnd
		func(r *zerocopy.Reader) error {
			for i := range m {
				v, err := r.I32()
				if err != nil {
					return err
				}
				m[i] = v
			}
			return nil
		},
		func(p []byte) (n int) {
			for i := range m {
				n += I32(&m[i]).Marshal(p[n:])
			}
			return
		},
	)
}
