package isobmff

import "github.com/ugparu/bmff/utils/zerocopy"

// UnknownBox holds a box the schema does not model. The header is kept as
// read, so the box is written back byte for byte.
type UnknownBox struct {
	Header  BoxHeader
	Payload []byte
}

// NewUnknown encodes box and wraps the result as an UnknownBox.
func NewUnknown(box Box) UnknownBox {
	r := zerocopy.NewReader(Bytes(box))
	h, _ := DemuxHeader(r) //nolint:errcheck // freshly encoded header
	return UnknownBox{Header: h, Payload: r.ExtractRemaining()}
}

func (u *UnknownBox) Type() BoxType { return u.Header.Type }

func (u *UnknownBox) ExplicitHeader() *BoxHeader { return &u.Header }

func (u *UnknownBox) Fields() []Field {
	return []Field{Remaining(&u.Payload)}
}
