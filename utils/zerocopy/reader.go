// Package zerocopy implements a bounded big-endian cursor whose byte
// extractions are views into the source buffer.
package zerocopy

import (
	"bytes"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/deepch/vdk/utils/bits/pio"
)

// ErrInvalidUTF8 is returned when a null-terminated string is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("zerocopy: invalid utf-8 string")

// Reader reads from a byte slice without copying. Slices returned by the
// Extract methods alias the source buffer and have their capacity capped at
// their length, so appending to them never clobbers the source.
type Reader struct {
	buf []byte
	pos int
	// base is the absolute offset of buf[0] in the outermost buffer.
	base int
}

// NewReader returns a Reader over b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.pos
}

// Pos returns the number of bytes consumed.
func (r *Reader) Pos() int {
	return r.pos
}

// Offset returns the absolute position of the cursor in the outermost buffer.
func (r *Reader) Offset() int {
	return r.base + r.pos
}

// Peek returns the next n bytes without advancing.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	return r.buf[r.pos : r.pos+n : r.pos+n], nil
}

// ExtractBytes returns a view of the next n bytes and advances past them.
func (r *Reader) ExtractBytes(n int) ([]byte, error) {
	b, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.pos += n
	return b, nil
}

// ExtractRemaining returns a view of every unread byte and exhausts the
// reader. It never fails; an exhausted reader yields an empty slice.
func (r *Reader) ExtractRemaining() []byte {
	if r.pos >= len(r.buf) {
		r.pos = len(r.buf)
		return r.buf[len(r.buf):len(r.buf):len(r.buf)]
	}
	b := r.buf[r.pos:len(r.buf):len(r.buf)]
	r.pos = len(r.buf)
	return b
}

// Skip advances by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.ExtractBytes(n)
	return err
}

// Seek moves the cursor to an absolute position within the reader.
func (r *Reader) Seek(pos int) {
	r.pos = max(0, min(pos, len(r.buf)))
}

// Sub returns a Reader bounded to the next n bytes and advances past them.
func (r *Reader) Sub(n int) (*Reader, error) {
	off := r.Offset()
	b, err := r.ExtractBytes(n)
	if err != nil {
		return nil, err
	}
	return &Reader{buf: b, base: off}, nil
}

// Rest returns a Reader over every unread byte and exhausts r.
func (r *Reader) Rest() *Reader {
	off := r.Offset()
	return &Reader{buf: r.ExtractRemaining(), base: off}
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.ExtractBytes(1)
	if err != nil {
		return 0, err
	}
	return pio.U8(b), nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.ExtractBytes(2) //nolint:mnd
	if err != nil {
		return 0, err
	}
	return pio.U16BE(b), nil
}

func (r *Reader) I16() (int16, error) {
	b, err := r.ExtractBytes(2) //nolint:mnd
	if err != nil {
		return 0, err
	}
	return pio.I16BE(b), nil
}

func (r *Reader) U24() (uint32, error) {
	b, err := r.ExtractBytes(3) //nolint:mnd
	if err != nil {
		return 0, err
	}
	return pio.U24BE(b), nil
}

// I24 reads a sign-extended 24-bit integer.
func (r *Reader) I24() (int32, error) {
	v, err := r.U24()
	if err != nil {
		return 0, err
	}
	return int32(v<<8) >> 8, nil //nolint:gosec,mnd // sign extension
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.ExtractBytes(4) //nolint:mnd
	if err != nil {
		return 0, err
	}
	return pio.U32BE(b), nil
}

func (r *Reader) I32() (int32, error) {
	b, err := r.ExtractBytes(4) //nolint:mnd
	if err != nil {
		return 0, err
	}
	return pio.I32BE(b), nil
}

// U48 reads a 48-bit integer.
func (r *Reader) U48() (uint64, error) {
	b, err := r.ExtractBytes(6) //nolint:mnd
	if err != nil {
		return 0, err
	}
	return U48BE(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.ExtractBytes(8) //nolint:mnd
	if err != nil {
		return 0, err
	}
	return pio.U64BE(b), nil
}

func (r *Reader) I64() (int64, error) {
	b, err := r.ExtractBytes(8) //nolint:mnd
	if err != nil {
		return 0, err
	}
	return pio.I64BE(b), nil
}

// CString reads a null-terminated UTF-8 string. A string that runs to the end
// of the reader without a terminator is accepted.
func (r *Reader) CString() (string, error) {
	rest := r.buf[r.pos:]
	n := bytes.IndexByte(rest, 0)
	consumed := n + 1
	if n < 0 {
		n = len(rest)
		consumed = n
	}
	s := rest[:n]
	if !utf8.Valid(s) {
		return "", ErrInvalidUTF8
	}
	r.pos += consumed
	return string(s), nil
}

// U48BE decodes a big-endian 48-bit integer from the first 6 bytes of b.
func U48BE(b []byte) uint64 {
	return uint64(pio.U16BE(b))<<32 | uint64(pio.U32BE(b[2:]))
}

// PutU48BE encodes the low 48 bits of v into the first 6 bytes of b.
func PutU48BE(b []byte, v uint64) {
	pio.PutU16BE(b, uint16(v>>32)) //nolint:gosec,mnd
	pio.PutU32BE(b[2:], uint32(v)) //nolint:gosec
}
