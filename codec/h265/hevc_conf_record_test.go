package h265

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHEVCDecoderConfRecordRoundTrip(t *testing.T) {
	t.Parallel()

	sps := mainProfile1080p(t)
	info, err := ParseSPS(sps)
	require.NoError(t, err)

	record := NewHEVCDecoderConfRecord(testVPS, sps, testPPS, info)
	buf := make([]byte, record.Len())
	require.Equal(t, len(buf), record.Marshal(buf))

	var decoded HEVCDecoderConfRecord
	n, err := decoded.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, record, decoded)
	require.Equal(t, [][]byte{sps}, decoded.SPS())
	require.Equal(t, [][]byte{testVPS}, decoded.NALUs(NalUnitVps))
	require.Equal(t, [][]byte{testPPS}, decoded.NALUs(NalUnitPps))
	require.Nil(t, decoded.NALUs(NalUnitPrefixSei))
}

func TestHEVCDecoderConfRecordReservedBits(t *testing.T) {
	t.Parallel()

	var record HEVCDecoderConfRecord
	buf := make([]byte, record.Len())
	record.Marshal(buf)
	require.Equal(t, []byte{
		0x01, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00,
		0xf0, 0x00,
		0xfc, 0xfc, 0xf8, 0xf8,
		0x00, 0x00,
		0x00,
		0x00,
	}, buf)
}

func TestHEVCDecoderConfRecordTruncated(t *testing.T) {
	t.Parallel()

	record := NewHEVCDecoderConfRecord(testVPS, testVPS, testPPS, SPSInfo{BitDepthLuma: 8, BitDepthChroma: 8})
	buf := make([]byte, record.Len())
	record.Marshal(buf)

	for _, size := range []int{0, 22, 24, 27, len(buf) - 1} {
		var decoded HEVCDecoderConfRecord
		_, err := decoded.Unmarshal(buf[:size])
		require.ErrorIs(t, err, ErrDecconfInvalid, "size %d", size)
	}
}

func TestHEVCDecoderConfRecordCodecString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record HEVCDecoderConfRecord
		expect string
	}{
		{
			name: "main",
			record: HEVCDecoderConfRecord{
				GeneralProfileIDC:                1,
				GeneralProfileCompatibilityFlags: 0x60000000,
				GeneralConstraintIndicatorFlags:  0xb00000000000,
				GeneralLevelIDC:                  93,
			},
			expect: "hev1.1.6.L93.B0",
		},
		{
			name: "main10_high_tier",
			record: HEVCDecoderConfRecord{
				GeneralTierFlag:                  true,
				GeneralProfileIDC:                2,
				GeneralProfileCompatibilityFlags: 0x20000000,
				GeneralConstraintIndicatorFlags:  0x900000000000,
				GeneralLevelIDC:                  120,
			},
			expect: "hev1.2.4.H120.90",
		},
		{
			name: "profile_space_no_constraints",
			record: HEVCDecoderConfRecord{
				GeneralProfileSpace:              1,
				GeneralProfileIDC:                1,
				GeneralProfileCompatibilityFlags: 0x40000000,
				GeneralLevelIDC:                  63,
			},
			expect: "hev1.A1.2.L63",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.expect, tt.record.CodecString())
		})
	}
}
