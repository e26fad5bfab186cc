// Package isobmff decodes and encodes ISO Base Media File Format boxes.
//
// Every box type is a plain struct whose Fields method lists its payload
// layout as Field descriptors. One generic decoder and encoder walk those
// descriptors, so a box definition is a schema rather than code.
package isobmff

import (
	"io"

	"github.com/ugparu/bmff/utils/zerocopy"
)

// Box is a schema-described ISOBMFF box.
type Box interface {
	// Type returns the box type written in the header.
	Type() BoxType
	// Fields returns the payload layout bound to the receiver.
	Fields() []Field
}

// HeaderBox is implemented by boxes that keep the header they were read
// with. On encode the stored size class is kept: a ToEnd box stays ToEnd and
// a Long box stays Long.
type HeaderBox interface {
	Box
	ExplicitHeader() *BoxHeader
}

// Variant is implemented by boxes that share one layout across several box
// types, such as the avc1 to avc4 sample entries. SetType reports whether t
// belongs to the family and records it.
type Variant interface {
	Box
	SetType(t BoxType) bool
}

// Len returns the encoded size of box including its header.
func Len(box Box) int {
	payload := fieldsLen(box.Fields())
	return headerFor(box, payload).Len() + payload
}

func headerFor(box Box, payload int) BoxHeader {
	hb, ok := box.(HeaderBox)
	if !ok {
		return NewHeader(box.Type(), payload)
	}
	h := *hb.ExplicitHeader()
	h.Type = box.Type()
	switch h.Size.Kind {
	case SizeToEnd:
	case SizeLong:
		h.Size = LongSize(uint64(h.Len() + payload)) //nolint:gosec
	default:
		h = NewHeader(h.Type, payload)
	}
	return h
}

// Marshal writes box to b, which must hold at least Len(box) bytes, and
// returns the number of bytes written.
func Marshal(b []byte, box Box) (n int) {
	fields := box.Fields()
	n += headerFor(box, fieldsLen(fields)).Marshal(b)
	for _, f := range fields {
		n += f.Marshal(b[n:])
	}
	return
}

// Bytes returns the encoding of box.
func Bytes(box Box) []byte {
	b := make([]byte, Len(box))
	Marshal(b, box)
	return b
}

// WriteBox writes the encoding of box to w.
func WriteBox(w io.Writer, box Box) (int, error) {
	return w.Write(Bytes(box))
}

// Unmarshal decodes one box from the start of b into box and returns the
// number of bytes consumed. Byte slices in the result alias b.
func Unmarshal(b []byte, box Box) (int, error) {
	r := zerocopy.NewReader(b)
	err := Decode(r, box)
	return r.Pos(), err
}

// Decode reads a header and its payload from r into box.
func Decode(r *zerocopy.Reader, box Box) error {
	start := r.Offset()
	h, err := DemuxHeader(r)
	if err != nil {
		return wrap(box.Type(), start, err)
	}
	payload, err := payloadReader(h, r)
	if err != nil {
		return wrap(h.Type, start, err)
	}
	return DecodePayload(h, payload, box)
}

// payloadReader bounds the payload of h. A ToEnd payload takes the rest of r.
func payloadReader(h BoxHeader, r *zerocopy.Reader) (*zerocopy.Reader, error) {
	n, ok := h.PayloadSize()
	if !ok {
		return r.Rest(), nil
	}
	if n > uint64(r.Len()) { //nolint:gosec
		return nil, io.ErrUnexpectedEOF
	}
	return r.Sub(int(n)) //nolint:gosec // bounded by r.Len()
}

// DecodePayload decodes the payload of a box whose header was read by the
// caller. r must be bounded to the payload.
func DecodePayload(h BoxHeader, r *zerocopy.Reader, box Box) error {
	start := r.Offset() - h.Len()
	switch b := box.(type) {
	case *UnknownBox:
	case Variant:
		if !b.SetType(h.Type) {
			return wrap(h.Type, start, &BoxTypeMismatchError{Expected: box.Type(), Actual: h.Type})
		}
	default:
		if box.Type() != h.Type {
			return wrap(h.Type, start, &BoxTypeMismatchError{Expected: box.Type(), Actual: h.Type})
		}
	}
	if hb, ok := box.(HeaderBox); ok {
		*hb.ExplicitHeader() = h
	}
	return wrap(h.Type, start, decodeFields(h.Type, box.Fields(), r))
}

// decodeFields decodes flat fields in order. A run of consecutive nested
// fields consumes child boxes up to the end of the payload.
func decodeFields(parent BoxType, fields []Field, r *zerocopy.Reader) error {
	for i := 0; i < len(fields); {
		if _, ok := fields[i].(nested); !ok {
			if err := fields[i].Decode(r); err != nil {
				return err
			}
			i++
			continue
		}
		j := i
		for j < len(fields) {
			if _, ok := fields[j].(nested); !ok {
				break
			}
			j++
		}
		if err := decodeChildren(parent, fields[i:j], r); err != nil {
			return err
		}
		i = j
	}
	return nil
}

// decodeChildren offers every child box to the nested fields in declaration
// order; the first field that accepts it claims it. Unclaimed children go to
// the unknown collector when one is declared and are skipped otherwise.
// Trailing bytes too short for a header are padding. Trailing bytes that do
// not form a box are padding unless a collector is declared.
func decodeChildren(parent BoxType, fields []Field, r *zerocopy.Reader) error {
	var sink collector
	children := make([]nested, 0, len(fields))
	for _, f := range fields {
		c := f.(nested) //nolint:forcetypeassert // checked by decodeFields
		children = append(children, c)
		if s, ok := c.(collector); ok && sink == nil {
			sink = s
		}
	}

	for r.Len() >= headerLen {
		start := r.Pos()
		h, err := DemuxHeader(r)
		var payload *zerocopy.Reader
		if err == nil {
			payload, err = payloadReader(h, r)
		}
		if err != nil {
			if sink == nil {
				r.Seek(start)
				break
			}
			return err
		}

		claimed := false
		for _, c := range children {
			ok, err := c.claim(h, payload)
			if err != nil {
				return err
			}
			if ok {
				claimed = true
				break
			}
		}
		if !claimed && sink != nil {
			sink.collect(UnknownBox{Header: h, Payload: payload.ExtractRemaining()})
		}
	}

	for _, c := range children {
		if err := c.check(parent); err != nil {
			return err
		}
	}
	return nil
}

// DecodeBox reads the next box from r, choosing its schema from the
// registry. Unregistered types decode to *UnknownBox.
func DecodeBox(r *zerocopy.Reader) (Box, error) {
	start := r.Offset()
	h, err := DemuxHeader(r)
	if err != nil {
		return nil, wrap(TypeOf(FourCC{}), start, err)
	}
	payload, err := payloadReader(h, r)
	if err != nil {
		return nil, wrap(h.Type, start, err)
	}
	box := New(h.Type)
	if err = DecodePayload(h, payload, box); err != nil {
		return nil, err
	}
	return box, nil
}
