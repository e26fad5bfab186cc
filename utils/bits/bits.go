// Package bits provides MSB-first bit readers and writers for codec bitstreams.
package bits

import (
	"errors"
	"io"

	"github.com/icza/bitio"
)

// ErrGolombOverflow is returned for Exp-Golomb codes with more than 31 leading zeros.
var ErrGolombOverflow = errors.New("bits: exp-golomb code overflows 32 bits")

const maxChunk = 64

// Reader reads MSB-first bit fields from R.
type Reader struct {
	R  io.Reader
	br *bitio.Reader
	n  int
}

func (r *Reader) reader() *bitio.Reader {
	if r.br == nil {
		r.br = bitio.NewReader(r.R)
	}
	return r.br
}

// ReadBits reads n bits, n <= 64.
func (r *Reader) ReadBits(n int) (uint, error) {
	v, err := r.ReadBits64(n)
	return uint(v), err
}

// ReadBits64 reads n bits, n <= 64.
func (r *Reader) ReadBits64(n int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if n > maxChunk {
		return 0, errors.New("bits: read of more than 64 bits")
	}
	v, err := r.reader().ReadBits(uint8(n)) //nolint:gosec // bounded above
	if err != nil {
		return 0, unexpected(err)
	}
	r.n += n
	return v, nil
}

// ReadBits32 reads n bits, n <= 32.
func (r *Reader) ReadBits32(n int) (uint32, error) {
	v, err := r.ReadBits64(n)
	return uint32(v), err //nolint:gosec // n <= 32
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (uint, error) {
	return r.ReadBits(1)
}

// ReadFlag reads a single bit as a boolean.
func (r *Reader) ReadFlag() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// Skip discards n bits.
func (r *Reader) Skip(n int) error {
	for n > 0 {
		chunk := min(n, maxChunk)
		if _, err := r.ReadBits64(chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Align discards bits up to the next byte boundary.
func (r *Reader) Align() {
	skipped := r.reader().Align()
	r.n += int(skipped)
}

// Consumed returns the number of bits read so far.
func (r *Reader) Consumed() int {
	return r.n
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// GolombBitReader adds Exp-Golomb decoding to Reader.
type GolombBitReader struct {
	R  io.Reader
	br Reader
}

func (r *GolombBitReader) bits() *Reader {
	if r.br.R == nil {
		r.br.R = r.R
	}
	return &r.br
}

func (r *GolombBitReader) ReadBit() (uint, error) {
	return r.bits().ReadBit()
}

func (r *GolombBitReader) ReadBits(n int) (uint, error) {
	return r.bits().ReadBits(n)
}

func (r *GolombBitReader) ReadBits32(n int) (uint32, error) {
	return r.bits().ReadBits32(n)
}

func (r *GolombBitReader) ReadBits64(n int) (uint64, error) {
	return r.bits().ReadBits64(n)
}

func (r *GolombBitReader) ReadFlag() (bool, error) {
	return r.bits().ReadFlag()
}

func (r *GolombBitReader) Skip(n int) error {
	return r.bits().Skip(n)
}

// Consumed returns the number of bits read so far.
func (r *GolombBitReader) Consumed() int {
	return r.br.n
}

// ReadExponentialGolombCode reads an unsigned Exp-Golomb code, ue(v).
func (r *GolombBitReader) ReadExponentialGolombCode() (uint, error) {
	zeros := 0
	for {
		b, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		zeros++
		if zeros > 31 { //nolint:mnd
			return 0, ErrGolombOverflow
		}
	}
	v, err := r.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	return (1 << zeros) - 1 + v, nil
}

// ReadSE reads a signed Exp-Golomb code, se(v).
func (r *GolombBitReader) ReadSE() (int, error) {
	v, err := r.ReadExponentialGolombCode()
	if err != nil {
		return 0, err
	}
	if v&0x01 != 0 {
		return int((v + 1) / 2), nil //nolint:gosec // bounded by 32 bits
	}
	return -int(v / 2), nil //nolint:gosec // bounded by 32 bits
}

// Writer writes MSB-first bit fields to W.
type Writer struct {
	W  io.Writer
	bw *bitio.Writer
}

func (w *Writer) writer() *bitio.Writer {
	if w.bw == nil {
		w.bw = bitio.NewWriter(w.W)
	}
	return w.bw
}

// WriteBits writes the n low bits of v, n <= 64.
func (w *Writer) WriteBits(v uint, n int) error {
	return w.WriteBits64(uint64(v), n)
}

// WriteBits64 writes the n low bits of v, n <= 64.
func (w *Writer) WriteBits64(v uint64, n int) error {
	if n == 0 {
		return nil
	}
	return w.writer().WriteBits(v, uint8(n)) //nolint:gosec // callers pass n <= 64
}

// WriteFlag writes one bit.
func (w *Writer) WriteFlag(b bool) error {
	return w.writer().WriteBool(b)
}

// FlushBits pads the pending byte with zero bits and writes it out.
func (w *Writer) FlushBits() error {
	if w.bw == nil {
		return nil
	}
	err := w.bw.Close()
	w.bw = nil
	return err
}

// WriteExponentialGolombCode writes v as ue(v).
func (w *Writer) WriteExponentialGolombCode(v uint) error {
	code := uint64(v) + 1
	n := 0
	for c := code; c > 1; c >>= 1 {
		n++
	}
	if err := w.WriteBits64(0, n); err != nil {
		return err
	}
	return w.WriteBits64(code, n+1)
}

// WriteSE writes v as se(v).
func (w *Writer) WriteSE(v int) error {
	if v > 0 {
		return w.WriteExponentialGolombCode(uint(2*v - 1)) //nolint:gosec // positive
	}
	return w.WriteExponentialGolombCode(uint(-2 * v)) //nolint:gosec // non negative
}
