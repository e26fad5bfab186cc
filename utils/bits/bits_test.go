package bits

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReaderReadBits(t *testing.T) {
	t.Parallel()

	r := &Reader{R: bytes.NewReader([]byte{0b1011_0011, 0xFF, 0x01})}

	v, err := r.ReadBits(3)
	require.NoError(t, err)
	require.Equal(t, uint(0b101), v)

	flag, err := r.ReadFlag()
	require.NoError(t, err)
	require.True(t, flag)

	v, err = r.ReadBits(12)
	require.NoError(t, err)
	require.Equal(t, uint(0x3FF), v)
	require.Equal(t, 16, r.Consumed())

	require.NoError(t, r.Skip(7))
	bit, err := r.ReadBit()
	require.NoError(t, err)
	require.Equal(t, uint(1), bit)

	_, err = r.ReadBit()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestGolombBitReader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     []byte
		unsigned []uint
		signed   []int
	}{
		{
			// 1 | 010 | 011 | 00100 | 0
			name:     "ue sequence",
			data:     []byte{0b1010_0110, 0b0100_0000},
			unsigned: []uint{0, 1, 2, 3},
		},
		{
			// 010 -> +1, 011 -> -1, 00100 -> +2
			name:   "se sequence",
			data:   []byte{0b0100_1100, 0b1000_0000},
			signed: []int{1, -1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &GolombBitReader{R: bytes.NewReader(tt.data)}
			for _, want := range tt.unsigned {
				got, err := r.ReadExponentialGolombCode()
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
			for _, want := range tt.signed {
				got, err := r.ReadSE()
				require.NoError(t, err)
				require.Equal(t, want, got)
			}
		})
	}
}

func TestGolombOverflow(t *testing.T) {
	t.Parallel()

	r := &GolombBitReader{R: bytes.NewReader(make([]byte, 8))}
	_, err := r.ReadExponentialGolombCode()
	require.ErrorIs(t, err, ErrGolombOverflow)
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	w := &Writer{W: buf}
	require.NoError(t, w.WriteBits(0b10, 2))
	require.NoError(t, w.WriteFlag(true))
	require.NoError(t, w.WriteBits(0x1F, 5))
	require.NoError(t, w.WriteBits(0b101, 3))
	require.NoError(t, w.FlushBits())
	require.Equal(t, []byte{0b1011_1111, 0b1010_0000}, buf.Bytes())

	r := &Reader{R: bytes.NewReader(buf.Bytes())}
	v, err := r.ReadBits(8)
	require.NoError(t, err)
	require.Equal(t, uint(0xBF), v)
}

func TestGolombWriterRoundTrip(t *testing.T) {
	t.Parallel()

	unsigned := []uint{0, 1, 2, 7, 119, 1 << 16}
	signed := []int{0, 1, -1, 5, -42}

	buf := new(bytes.Buffer)
	w := &Writer{W: buf}
	for _, v := range unsigned {
		require.NoError(t, w.WriteExponentialGolombCode(v))
	}
	for _, v := range signed {
		require.NoError(t, w.WriteSE(v))
	}
	require.NoError(t, w.WriteFlag(true))
	require.NoError(t, w.FlushBits())

	r := &GolombBitReader{R: bytes.NewReader(buf.Bytes())}
	for _, v := range unsigned {
		got, err := r.ReadExponentialGolombCode()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	for _, v := range signed {
		got, err := r.ReadSE()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}
