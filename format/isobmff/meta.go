package isobmff

import (
	"bytes"

	"github.com/ugparu/bmff/utils/zerocopy"
)

var (
	TypeMeta = Type4("meta")
	TypeUdta = Type4("udta")
	TypeCprt = Type4("cprt")
	TypeKind = Type4("kind")
	TypeXML  = Type4("xml ")
	TypeBxml = Type4("bxml")
	TypePitm = Type4("pitm")
	TypeIdat = Type4("idat")
)

// MetaBox (meta) holds untimed metadata. QuickTime writes meta without the
// full box header; such boxes are recognised by a hdlr child starting right
// after the box header and written back in the same layout.
type MetaBox struct {
	FullBoxHeader
	QuickTime bool
	Hdlr      *HandlerBox
	Dinf      *DataInformationBox
	XML       *XMLBox
	Bxml      *BinaryXMLBox
	Pitm      *PrimaryItemBox
	Idat      *ItemDataBox
	Unknown   []UnknownBox
}

func (*MetaBox) Type() BoxType { return TypeMeta }

func (b *MetaBox) Fields() []Field {
	return []Field{
		Func(b.fullHeaderLen, b.decodeFullHeader, b.marshalFullHeader),
		Optional(&b.Hdlr),
		Optional(&b.Dinf),
		Optional(&b.XML),
		Optional(&b.Bxml),
		Optional(&b.Pitm),
		Optional(&b.Idat),
		Unknown(&b.Unknown),
	}
}

func (b *MetaBox) fullHeaderLen() int {
	if b.QuickTime {
		return 0
	}
	return fullHeaderLen
}

func (b *MetaBox) decodeFullHeader(r *zerocopy.Reader) (err error) {
	if peek, perr := r.Peek(headerLen); perr == nil && bytes.Equal(peek[4:], TypeHdlr.fourCC[:]) {
		b.QuickTime = true
		return nil
	}
	b.FullBoxHeader, err = DemuxFullHeader(r)
	return
}

func (b *MetaBox) marshalFullHeader(p []byte) int {
	if b.QuickTime {
		return 0
	}
	return b.FullBoxHeader.Marshal(p)
}

// XMLBox (xml) carries XML metadata.
type XMLBox struct {
	FullBoxHeader
	XML          string
	Unterminated bool
}

func (*XMLBox) Type() BoxType { return TypeXML }

func (b *XMLBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), CStringOpen(&b.XML, &b.Unterminated)}
}

// BinaryXMLBox (bxml) carries binary encoded XML.
type BinaryXMLBox struct {
	FullBoxHeader
	Data []byte
}

func (*BinaryXMLBox) Type() BoxType { return TypeBxml }

func (b *BinaryXMLBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), Remaining(&b.Data)}
}

// PrimaryItemBox (pitm) names the primary item of a meta box.
type PrimaryItemBox struct {
	FullBoxHeader
	ItemID uint32
}

func (*PrimaryItemBox) Type() BoxType { return TypePitm }

func (b *PrimaryItemBox) Fields() []Field {
	wide := func() bool { return b.Version != 0 }
	return []Field{
		FullHeader(&b.FullBoxHeader),
		Func(
			func() int {
				if wide() {
					return 4 //nolint:mnd
				}
				return 2 //nolint:mnd
			},
			func(r *zerocopy.Reader) error {
				if wide() {
					v, err := r.U32()
					b.ItemID = v
					return err
				}
				v, err := r.U16()
				b.ItemID = uint32(v)
				return err
			},
			func(p []byte) int {
				if wide() {
					return U32(&b.ItemID).Marshal(p)
				}
				id := uint16(b.ItemID) //nolint:gosec // version 0 stores 16 bits
				return U16(&id).Marshal(p)
			},
		),
	}
}

// ItemDataBox (idat) holds item data referenced by construction method 1.
type ItemDataBox struct {
	Data []byte
}

func (*ItemDataBox) Type() BoxType { return TypeIdat }

func (b *ItemDataBox) Fields() []Field {
	return []Field{Remaining(&b.Data)}
}

// UserDataBox (udta) is a container for user data.
type UserDataBox struct {
	Cprt    []CopyrightBox
	Kind    []KindBox
	Meta    *MetaBox
	Unknown []UnknownBox
}

func (*UserDataBox) Type() BoxType { return TypeUdta }

func (b *UserDataBox) Fields() []Field {
	return []Field{
		Many(&b.Cprt),
		Many(&b.Kind),
		Optional(&b.Meta),
		Unknown(&b.Unknown),
	}
}

// CopyrightBox (cprt) is a copyright notice in one language.
type CopyrightBox struct {
	FullBoxHeader
	Language     Language
	Notice       string
	Unterminated bool
}

func (*CopyrightBox) Type() BoxType { return TypeCprt }

func (b *CopyrightBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		LanguageField(&b.Language),
		CStringOpen(&b.Notice, &b.Unterminated),
	}
}

// KindBox (kind) labels the role of a track with a scheme URI and value.
type KindBox struct {
	FullBoxHeader
	SchemeURI string
	Value     string

	SchemeURIUnterminated bool
	ValueUnterminated     bool
}

func (*KindBox) Type() BoxType { return TypeKind }

func (b *KindBox) Fields() []Field {
	return []Field{
		FullHeader(&b.FullBoxHeader),
		CStringOpen(&b.SchemeURI, &b.SchemeURIUnterminated),
		CStringOpen(&b.Value, &b.ValueUnterminated),
	}
}
