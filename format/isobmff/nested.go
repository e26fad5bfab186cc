package isobmff

import (
	"errors"

	"github.com/ugparu/bmff/utils/zerocopy"
)

var errNestedDecode = errors.New("isobmff: nested box field decoded as a flat field")

// nested is a field made of child boxes.
type nested interface {
	Field
	// claim decodes the child described by h when the field accepts it.
	claim(h BoxHeader, r *zerocopy.Reader) (bool, error)
	// check validates the cardinality once every child has been offered.
	check(parent BoxType) error
	// boxes returns the bound children in encoding order.
	boxes() []Box
}

// collector receives the children no nested field claimed.
type collector interface {
	collect(u UnknownBox)
}

// boxPtr constrains P to a pointer to T that implements Box.
type boxPtr[T any] interface {
	*T
	Box
}

type oneField[T any, P boxPtr[T]] struct {
	dst  *T
	typ  BoxType
	seen bool
	min  bool
}

// One binds a child box that must appear exactly once.
func One[T any, P boxPtr[T]](dst *T) Field {
	return &oneField[T, P]{dst: dst, typ: P(dst).Type(), min: true}
}

func (f *oneField[T, P]) Len() int                      { return Len(P(f.dst)) }
func (f *oneField[T, P]) Marshal(b []byte) int          { return Marshal(b, P(f.dst)) }
func (f *oneField[T, P]) Decode(*zerocopy.Reader) error { return errNestedDecode }

func (f *oneField[T, P]) claim(h BoxHeader, r *zerocopy.Reader) (bool, error) {
	if f.seen || h.Type != f.typ {
		return false, nil
	}
	f.seen = true
	return true, DecodePayload(h, r, P(f.dst))
}

func (f *oneField[T, P]) boxes() []Box { return []Box{P(f.dst)} }

func (f *oneField[T, P]) check(parent BoxType) error {
	if f.min && !f.seen {
		return &MissingBoxError{Parent: parent, Box: f.typ}
	}
	return nil
}

type optionalField[T any, P boxPtr[T]] struct {
	dst  **T
	typ  BoxType
	seen bool
}

// Optional binds a child box that may appear at most once.
func Optional[T any, P boxPtr[T]](dst **T) Field {
	return &optionalField[T, P]{dst: dst, typ: P(new(T)).Type()}
}

func (f *optionalField[T, P]) Len() int {
	if *f.dst == nil {
		return 0
	}
	return Len(P(*f.dst))
}

func (f *optionalField[T, P]) Marshal(b []byte) int {
	if *f.dst == nil {
		return 0
	}
	return Marshal(b, P(*f.dst))
}

func (f *optionalField[T, P]) Decode(*zerocopy.Reader) error { return errNestedDecode }

func (f *optionalField[T, P]) claim(h BoxHeader, r *zerocopy.Reader) (bool, error) {
	if f.seen || h.Type != f.typ {
		return false, nil
	}
	f.seen = true
	v := new(T)
	*f.dst = v
	return true, DecodePayload(h, r, P(v))
}

func (f *optionalField[T, P]) check(BoxType) error { return nil }

func (f *optionalField[T, P]) boxes() []Box {
	if *f.dst == nil {
		return nil
	}
	return []Box{P(*f.dst)}
}

type manyField[T any, P boxPtr[T]] struct {
	dst  *[]T
	typ  BoxType
	seen bool
	min  bool
}

// Many binds a child box that may appear any number of times.
func Many[T any, P boxPtr[T]](dst *[]T) Field {
	return &manyField[T, P]{dst: dst, typ: P(new(T)).Type()}
}

// AtLeastOne binds a child box that must appear one or more times.
func AtLeastOne[T any, P boxPtr[T]](dst *[]T) Field {
	return &manyField[T, P]{dst: dst, typ: P(new(T)).Type(), min: true}
}

func (f *manyField[T, P]) Len() (n int) {
	for i := range *f.dst {
		n += Len(P(&(*f.dst)[i]))
	}
	return
}

func (f *manyField[T, P]) Marshal(b []byte) (n int) {
	for i := range *f.dst {
		n += Marshal(b[n:], P(&(*f.dst)[i]))
	}
	return
}

func (f *manyField[T, P]) Decode(*zerocopy.Reader) error { return errNestedDecode }

func (f *manyField[T, P]) claim(h BoxHeader, r *zerocopy.Reader) (bool, error) {
	if h.Type != f.typ {
		return false, nil
	}
	if !f.seen {
		*f.dst = (*f.dst)[:0]
		f.seen = true
	}
	var v T
	if err := DecodePayload(h, r, P(&v)); err != nil {
		return true, err
	}
	*f.dst = append(*f.dst, v)
	return true, nil
}

func (f *manyField[T, P]) boxes() []Box {
	out := make([]Box, len(*f.dst))
	for i := range *f.dst {
		out[i] = P(&(*f.dst)[i])
	}
	return out
}

func (f *manyField[T, P]) check(parent BoxType) error {
	if f.min && len(*f.dst) == 0 {
		return &MissingBoxError{Parent: parent, Box: f.typ}
	}
	return nil
}

type anyField struct {
	dst    *[]Box
	accept func(BoxType) bool
	seen   bool
}

// Any binds a heterogeneous list of child boxes whose schemas come from the
// registry. accept selects the types the field claims; nil claims every
// child. Unregistered types are kept as *UnknownBox.
func Any(dst *[]Box, accept func(BoxType) bool) Field {
	return &anyField{dst: dst, accept: accept}
}

func (f *anyField) Len() (n int) {
	for _, b := range *f.dst {
		n += Len(b)
	}
	return
}

func (f *anyField) Marshal(b []byte) (n int) {
	for _, box := range *f.dst {
		n += Marshal(b[n:], box)
	}
	return
}

func (f *anyField) Decode(*zerocopy.Reader) error { return errNestedDecode }

func (f *anyField) claim(h BoxHeader, r *zerocopy.Reader) (bool, error) {
	if f.accept != nil && !f.accept(h.Type) {
		return false, nil
	}
	if !f.seen {
		*f.dst = (*f.dst)[:0]
		f.seen = true
	}
	box := New(h.Type)
	if err := DecodePayload(h, r, box); err != nil {
		return true, err
	}
	*f.dst = append(*f.dst, box)
	return true, nil
}

func (f *anyField) check(BoxType) error { return nil }

func (f *anyField) boxes() []Box { return *f.dst }

type unknownField struct {
	dst  *[]UnknownBox
	seen bool
}

// Unknown collects every child box that no other nested field claimed,
// preserving its header and payload bytes.
func Unknown(dst *[]UnknownBox) Field {
	return &unknownField{dst: dst}
}

func (f *unknownField) Len() (n int) {
	for i := range *f.dst {
		n += Len(&(*f.dst)[i])
	}
	return
}

func (f *unknownField) Marshal(b []byte) (n int) {
	for i := range *f.dst {
		n += Marshal(b[n:], &(*f.dst)[i])
	}
	return
}

func (f *unknownField) Decode(*zerocopy.Reader) error { return errNestedDecode }

func (f *unknownField) claim(BoxHeader, *zerocopy.Reader) (bool, error) { return false, nil }

func (f *unknownField) check(BoxType) error { return nil }

func (f *unknownField) boxes() []Box {
	out := make([]Box, len(*f.dst))
	for i := range *f.dst {
		out[i] = &(*f.dst)[i]
	}
	return out
}

func (f *unknownField) collect(u UnknownBox) {
	if !f.seen {
		*f.dst = (*f.dst)[:0]
		f.seen = true
	}
	*f.dst = append(*f.dst, u)
}

// variantPtr constrains P to a pointer to T that implements Variant.
type variantPtr[T any] interface {
	*T
	Variant
}

type eachField[T any, P variantPtr[T]] struct {
	dst  *[]T
	seen bool
}

// Each binds every child box whose type belongs to the family of T, as
// decided by its SetType method.
func Each[T any, P variantPtr[T]](dst *[]T) Field {
	return &eachField[T, P]{dst: dst}
}

func (f *eachField[T, P]) Len() (n int) {
	for i := range *f.dst {
		n += Len(P(&(*f.dst)[i]))
	}
	return
}

func (f *eachField[T, P]) Marshal(b []byte) (n int) {
	for i := range *f.dst {
		n += Marshal(b[n:], P(&(*f.dst)[i]))
	}
	return
}

func (f *eachField[T, P]) Decode(*zerocopy.Reader) error { return errNestedDecode }

func (f *eachField[T, P]) claim(h BoxHeader, r *zerocopy.Reader) (bool, error) {
	var v T
	if !P(&v).SetType(h.Type) {
		return false, nil
	}
	if !f.seen {
		*f.dst = (*f.dst)[:0]
		f.seen = true
	}
	if err := DecodePayload(h, r, P(&v)); err != nil {
		return true, err
	}
	*f.dst = append(*f.dst, v)
	return true, nil
}

func (f *eachField[T, P]) check(BoxType) error { return nil }

func (f *eachField[T, P]) boxes() []Box {
	out := make([]Box, len(*f.dst))
	for i := range *f.dst {
		out[i] = P(&(*f.dst)[i])
	}
	return out
}
