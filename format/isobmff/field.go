package isobmff

import (
	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff/utils/zerocopy"
)

// Field is one element of a box payload schema. Fields are bound to the
// struct members they read and write, so a box describes its layout by
// returning a fresh slice of fields from Fields.
type Field interface {
	// Len returns the encoded length of the field.
	Len() int
	// Decode reads the field from r.
	Decode(r *zerocopy.Reader) error
	// Marshal writes the field to b and returns the number of bytes written.
	Marshal(b []byte) int
}

type u8Field struct{ p *uint8 }

// U8 binds an 8-bit unsigned integer.
func U8(p *uint8) Field { return u8Field{p} }

func (f u8Field) Len() int { return 1 }

func (f u8Field) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = r.U8()
	return
}

func (f u8Field) Marshal(b []byte) int {
	pio.PutU8(b, *f.p)
	return 1
}

type u16Field struct{ p *uint16 }

// U16 binds a big-endian 16-bit unsigned integer.
func U16(p *uint16) Field { return u16Field{p} }

func (f u16Field) Len() int { return 2 } //nolint:mnd

func (f u16Field) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = r.U16()
	return
}

func (f u16Field) Marshal(b []byte) int {
	pio.PutU16BE(b, *f.p)
	return 2 //nolint:mnd
}

type i16Field struct{ p *int16 }

// I16 binds a big-endian 16-bit signed integer.
func I16(p *int16) Field { return i16Field{p} }

func (f i16Field) Len() int { return 2 } //nolint:mnd

func (f i16Field) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = r.I16()
	return
}

func (f i16Field) Marshal(b []byte) int {
	pio.PutI16BE(b, *f.p)
	return 2 //nolint:mnd
}

type u24Field struct{ p *uint32 }

// U24 binds a big-endian 24-bit unsigned integer.
func U24(p *uint32) Field { return u24Field{p} }

func (f u24Field) Len() int { return 3 } //nolint:mnd

func (f u24Field) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = r.U24()
	return
}

func (f u24Field) Marshal(b []byte) int {
	pio.PutU24BE(b, *f.p&flagsMask)
	return 3 //nolint:mnd
}

type u32Field struct{ p *uint32 }

// U32 binds a big-endian 32-bit unsigned integer.
func U32(p *uint32) Field { return u32Field{p} }

func (f u32Field) Len() int { return 4 } //nolint:mnd

func (f u32Field) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = r.U32()
	return
}

func (f u32Field) Marshal(b []byte) int {
	pio.PutU32BE(b, *f.p)
	return 4 //nolint:mnd
}

type i32Field struct{ p *int32 }

// I32 binds a big-endian 32-bit signed integer.
func I32(p *int32) Field { return i32Field{p} }

func (f i32Field) Len() int { return 4 } //nolint:mnd

func (f i32Field) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = r.I32()
	return
}

func (f i32Field) Marshal(b []byte) int {
	pio.PutI32BE(b, *f.p)
	return 4 //nolint:mnd
}

type u64Field struct{ p *uint64 }

// U64 binds a big-endian 64-bit unsigned integer.
func U64(p *uint64) Field { return u64Field{p} }

func (f u64Field) Len() int { return 8 } //nolint:mnd

func (f u64Field) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = r.U64()
	return
}

func (f u64Field) Marshal(b []byte) int {
	pio.PutU64BE(b, *f.p)
	return 8 //nolint:mnd
}

type i64Field struct{ p *int64 }

// I64 binds a big-endian 64-bit signed integer.
func I64(p *int64) Field { return i64Field{p} }

func (f i64Field) Len() int { return 8 } //nolint:mnd

func (f i64Field) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = r.I64()
	return
}

func (f i64Field) Marshal(b []byte) int {
	pio.PutI64BE(b, *f.p)
	return 8 //nolint:mnd
}

type versionedField struct {
	p    *uint64
	wide func() bool
}

// Versioned64 binds a value stored in 64 bits when wide reports true and in
// 32 bits otherwise, as done by version 1 of the time related full boxes.
func Versioned64(p *uint64, wide func() bool) Field { return versionedField{p, wide} }

func (f versionedField) Len() int {
	if f.wide() {
		return 8 //nolint:mnd
	}
	return 4 //nolint:mnd
}

func (f versionedField) Decode(r *zerocopy.Reader) error {
	if f.wide() {
		v, err := r.U64()
		*f.p = v
		return err
	}
	v, err := r.U32()
	*f.p = uint64(v)
	return err
}

func (f versionedField) Marshal(b []byte) int {
	if f.wide() {
		pio.PutU64BE(b, *f.p)
		return 8 //nolint:mnd
	}
	pio.PutU32BE(b, uint32(*f.p)) //nolint:gosec // version 0 stores 32 bits
	return 4                      //nolint:mnd
}

type versionedSignedField struct {
	p    *int64
	wide func() bool
}

// VersionedI64 is the signed form of Versioned64.
func VersionedI64(p *int64, wide func() bool) Field { return versionedSignedField{p, wide} }

func (f versionedSignedField) Len() int {
	if f.wide() {
		return 8 //nolint:mnd
	}
	return 4 //nolint:mnd
}

func (f versionedSignedField) Decode(r *zerocopy.Reader) error {
	if f.wide() {
		v, err := r.I64()
		*f.p = v
		return err
	}
	v, err := r.I32()
	*f.p = int64(v)
	return err
}

func (f versionedSignedField) Marshal(b []byte) int {
	if f.wide() {
		pio.PutI64BE(b, *f.p)
		return 8 //nolint:mnd
	}
	pio.PutI32BE(b, int32(*f.p)) //nolint:gosec // version 0 stores 32 bits
	return 4                     //nolint:mnd
}

type arrayField struct{ p []byte }

// Array binds a fixed length byte array. Pass a slice of the array, b[:].
func Array(p []byte) Field { return arrayField{p} }

func (f arrayField) Len() int { return len(f.p) }

func (f arrayField) Decode(r *zerocopy.Reader) error {
	b, err := r.ExtractBytes(len(f.p))
	if err != nil {
		return err
	}
	copy(f.p, b)
	return nil
}

func (f arrayField) Marshal(b []byte) int {
	return copy(b, f.p)
}

// Tag binds a four byte code such as a FourCC or a Brand.
func Tag[T ~[4]byte](p *T) Field {
	return arrayField{(*p)[:]}
}

type reservedField int

// Reserved skips n bytes on decode and writes n zero bytes.
func Reserved(n int) Field { return reservedField(n) }

func (f reservedField) Len() int { return int(f) }

func (f reservedField) Decode(r *zerocopy.Reader) error {
	return r.Skip(int(f))
}

func (f reservedField) Marshal(b []byte) int {
	clear(b[:f])
	return int(f)
}

type remainingField struct{ p *[]byte }

// Remaining binds every byte left in the payload. The decoded slice is a view
// into the source buffer.
func Remaining(p *[]byte) Field { return remainingField{p} }

func (f remainingField) Len() int { return len(*f.p) }

func (f remainingField) Decode(r *zerocopy.Reader) error {
	*f.p = r.ExtractRemaining()
	return nil
}

func (f remainingField) Marshal(b []byte) int {
	return copy(b, *f.p)
}

type cstringField struct {
	p    *string
	open *bool
}

// CStringOpen binds a null-terminated UTF-8 string. Strings in ISOBMFF end
// the payload, and writers often drop the last terminator, so a string may run
// to the end of the payload. open records the missing terminator so the
// string is written back the way it was read.
func CStringOpen(p *string, open *bool) Field { return cstringField{p: p, open: open} }

func (f cstringField) terminated() bool {
	return !*f.open
}

func (f cstringField) Len() int {
	if f.terminated() {
		return len(*f.p) + 1
	}
	return len(*f.p)
}

func (f cstringField) Decode(r *zerocopy.Reader) error {
	before := r.Len()
	s, err := r.CString()
	if err != nil {
		return err
	}
	*f.p = s
	*f.open = before-r.Len() == len(s)
	return nil
}

func (f cstringField) Marshal(b []byte) int {
	n := copy(b, *f.p)
	if f.terminated() {
		b[n] = 0
		n++
	}
	return n
}

type fullHeaderField struct{ p *FullBoxHeader }

// FullHeader binds the version and flags of a full box.
func FullHeader(p *FullBoxHeader) Field { return fullHeaderField{p} }

func (f fullHeaderField) Len() int { return fullHeaderLen }

func (f fullHeaderField) Decode(r *zerocopy.Reader) (err error) {
	*f.p, err = DemuxFullHeader(r)
	return
}

func (f fullHeaderField) Marshal(b []byte) int {
	return f.p.Marshal(b)
}

type whenField struct {
	cond   func() bool
	fields []Field
}

// When includes fields only while cond reports true. Conditions usually
// inspect the version or flags decoded earlier in the same box.
func When(cond func() bool, fields ...Field) Field { return whenField{cond, fields} }

func (f whenField) Len() int {
	if !f.cond() {
		return 0
	}
	return fieldsLen(f.fields)
}

func (f whenField) Decode(r *zerocopy.Reader) error {
	if !f.cond() {
		return nil
	}
	for _, field := range f.fields {
		if err := field.Decode(r); err != nil {
			return err
		}
	}
	return nil
}

func (f whenField) Marshal(b []byte) (n int) {
	if !f.cond() {
		return
	}
	for _, field := range f.fields {
		n += field.Marshal(b[n:])
	}
	return
}

type repeatedField[T any] struct {
	p    *[]T
	elem func(*T) []Field
}

// Repeated binds a sequence of records that runs to the end of the payload.
func Repeated[T any](p *[]T, elem func(*T) []Field) Field {
	return repeatedField[T]{p, elem}
}

func (f repeatedField[T]) Len() (n int) {
	for i := range *f.p {
		n += fieldsLen(f.elem(&(*f.p)[i]))
	}
	return
}

func (f repeatedField[T]) Decode(r *zerocopy.Reader) error {
	*f.p = (*f.p)[:0]
	for r.Len() > 0 {
		var e T
		for _, field := range f.elem(&e) {
			if err := field.Decode(r); err != nil {
				return err
			}
		}
		*f.p = append(*f.p, e)
	}
	return nil
}

func (f repeatedField[T]) Marshal(b []byte) (n int) {
	for i := range *f.p {
		for _, field := range f.elem(&(*f.p)[i]) {
			n += field.Marshal(b[n:])
		}
	}
	return
}

type countedField[T any] struct {
	p     *[]T
	elem  func(*T) []Field
	width int
}

// Counted binds a sequence of records prefixed by a 32-bit entry count.
func Counted[T any](p *[]T, elem func(*T) []Field) Field {
	return countedField[T]{p, elem, 4} //nolint:mnd
}

// Counted16 binds a sequence of records prefixed by a 16-bit entry count.
func Counted16[T any](p *[]T, elem func(*T) []Field) Field {
	return countedField[T]{p, elem, 2} //nolint:mnd
}

func (f countedField[T]) Len() (n int) {
	n = f.width
	for i := range *f.p {
		n += fieldsLen(f.elem(&(*f.p)[i]))
	}
	return
}

func (f countedField[T]) Decode(r *zerocopy.Reader) error {
	var count int
	if f.width == 2 { //nolint:mnd
		v, err := r.U16()
		if err != nil {
			return err
		}
		count = int(v)
	} else {
		v, err := r.U32()
		if err != nil {
			return err
		}
		count = int(v)
	}
	// Entry counts are untrusted: grow as records are decoded instead of
	// preallocating count entries.
	*f.p = make([]T, 0, min(count, r.Len()))
	for range count {
		var e T
		for _, field := range f.elem(&e) {
			if err := field.Decode(r); err != nil {
				return err
			}
		}
		*f.p = append(*f.p, e)
	}
	return nil
}

func (f countedField[T]) Marshal(b []byte) (n int) {
	if f.width == 2 { //nolint:mnd
		pio.PutU16BE(b, uint16(len(*f.p))) //nolint:gosec
	} else {
		pio.PutU32BE(b, uint32(len(*f.p))) //nolint:gosec
	}
	n = f.width
	for i := range *f.p {
		for _, field := range f.elem(&(*f.p)[i]) {
			n += field.Marshal(b[n:])
		}
	}
	return
}

type uint32sField struct {
	p       *[]uint32
	counted bool
}

// Uint32s binds 32-bit values running to the end of the payload.
func Uint32s(p *[]uint32) Field { return uint32sField{p: p} }

// Uint32List binds 32-bit values prefixed by a 32-bit count.
func Uint32List(p *[]uint32) Field { return uint32sField{p: p, counted: true} }

func (f uint32sField) Len() int {
	n := 4 * len(*f.p) //nolint:mnd
	if f.counted {
		n += 4
	}
	return n
}

func (f uint32sField) Decode(r *zerocopy.Reader) error {
	count := r.Len() / 4 //nolint:mnd
	if f.counted {
		v, err := r.U32()
		if err != nil {
			return err
		}
		if int64(v)*4 > int64(r.Len()) { //nolint:mnd
			return errShortTable
		}
		count = int(v)
	}
	*f.p = make([]uint32, count)
	for i := range *f.p {
		v, err := r.U32()
		if err != nil {
			return err
		}
		(*f.p)[i] = v
	}
	return nil
}

func (f uint32sField) Marshal(b []byte) (n int) {
	if f.counted {
		pio.PutU32BE(b, uint32(len(*f.p))) //nolint:gosec
		n += 4
	}
	for _, v := range *f.p {
		pio.PutU32BE(b[n:], v)
		n += 4
	}
	return
}

type uint64ListField struct{ p *[]uint64 }

// Uint64List binds 64-bit values prefixed by a 32-bit count.
func Uint64List(p *[]uint64) Field { return uint64ListField{p} }

func (f uint64ListField) Len() int { return 4 + 8*len(*f.p) } //nolint:mnd

func (f uint64ListField) Decode(r *zerocopy.Reader) error {
	v, err := r.U32()
	if err != nil {
		return err
	}
	if int64(v)*8 > int64(r.Len()) { //nolint:mnd
		return errShortTable
	}
	*f.p = make([]uint64, v)
	for i := range *f.p {
		if (*f.p)[i], err = r.U64(); err != nil {
			return err
		}
	}
	return nil
}

func (f uint64ListField) Marshal(b []byte) (n int) {
	pio.PutU32BE(b, uint32(len(*f.p))) //nolint:gosec
	n += 4
	for _, v := range *f.p {
		pio.PutU64BE(b[n:], v)
		n += 8
	}
	return
}

type funcField struct {
	size   func() int
	decode func(r *zerocopy.Reader) error
	encode func(b []byte) int
}

// Func builds a field from closures, for bit packed layouts that have no
// byte aligned representation.
func Func(size func() int, decode func(r *zerocopy.Reader) error, encode func(b []byte) int) Field {
	return funcField{size, decode, encode}
}

func (f funcField) Len() int                        { return f.size() }
func (f funcField) Decode(r *zerocopy.Reader) error { return f.decode(r) }
func (f funcField) Marshal(b []byte) int            { return f.encode(b) }

// Record is a self-describing binary structure such as a decoder
// configuration record.
type Record interface {
	Len() int
	Marshal(b []byte) int
	Unmarshal(b []byte) (int, error)
}

type recordField struct{ rec Record }

// RecordField binds a Record that occupies the rest of the payload.
func RecordField(rec Record) Field { return recordField{rec} }

func (f recordField) Len() int { return f.rec.Len() }

func (f recordField) Decode(r *zerocopy.Reader) error {
	_, err := f.rec.Unmarshal(r.ExtractRemaining())
	return err
}

func (f recordField) Marshal(b []byte) int { return f.rec.Marshal(b) }

func fieldsLen(fields []Field) (n int) {
	for _, f := range fields {
		n += f.Len()
	}
	return
}
