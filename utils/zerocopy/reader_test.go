package zerocopy

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntegers(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{
		0x01,
		0x02, 0x03,
		0xFF, 0xFF, 0xFE,
		0x00, 0x00, 0x01, 0x00,
		0x00, 0x01, 0x00, 0x00, 0x00, 0x02,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	})

	u8, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(1), u8)

	u16, err := r.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0203), u16)

	i24, err := r.I24()
	require.NoError(t, err)
	require.Equal(t, int32(-2), i24)

	u32, err := r.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(256), u32)

	u48, err := r.U48()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0001_0000_0002), u48)

	i64, err := r.I64()
	require.NoError(t, err)
	require.Equal(t, int64(-1), i64)

	require.Zero(t, r.Len())
	_, err = r.U8()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestExtractBytesIsAView(t *testing.T) {
	t.Parallel()

	src := []byte{1, 2, 3, 4, 5}
	r := NewReader(src)

	b, err := r.ExtractBytes(2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, b)
	require.Equal(t, 2, cap(b))

	src[0] = 9
	require.Equal(t, byte(9), b[0])

	_, err = r.ExtractBytes(4)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, 2, r.Pos())
}

func TestExtractRemaining(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		skip int
		want []byte
	}{
		{name: "all", data: []byte{1, 2, 3}, want: []byte{1, 2, 3}},
		{name: "tail", data: []byte{1, 2, 3}, skip: 2, want: []byte{3}},
		{name: "exhausted", data: []byte{1, 2, 3}, skip: 3, want: []byte{}},
		{name: "empty", data: nil, want: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewReader(tt.data)
			require.NoError(t, r.Skip(tt.skip))
			got := r.ExtractRemaining()
			require.Equal(t, tt.want, append([]byte{}, got...))
			require.Zero(t, r.Len())
			require.Empty(t, r.ExtractRemaining())
		})
	}
}

func TestSubTracksOffset(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{0, 0, 0xAA, 0xBB, 0xCC})
	require.NoError(t, r.Skip(2))

	sub, err := r.Sub(2)
	require.NoError(t, err)
	require.Equal(t, 2, sub.Offset())
	require.Equal(t, 2, sub.Len())
	require.Equal(t, 1, r.Len())

	v, err := sub.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(0xAABB), v)
	require.Equal(t, 4, sub.Offset())
}

func TestCString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		want    string
		left    int
		wantErr error
	}{
		{name: "terminated", data: []byte("VideoHandler\x00rest"), want: "VideoHandler", left: 4},
		{name: "unterminated", data: []byte("Sound"), want: "Sound"},
		{name: "empty", data: []byte{0}, want: ""},
		{name: "invalid utf8", data: []byte{0xFF, 0xFE, 0}, wantErr: ErrInvalidUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewReader(tt.data)
			got, err := r.CString()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.left, r.Len())
		})
	}
}

func TestPutU48BE(t *testing.T) {
	t.Parallel()

	b := make([]byte, 6)
	PutU48BE(b, 0x0102_0304_0506)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, b)
	require.Equal(t, uint64(0x0102_0304_0506), U48BE(b))
}
