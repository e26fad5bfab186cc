package av1

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ugparu/bmff/utils/bits"
)

type field struct {
	v uint
	n int
}

func writeFields(t *testing.T, fields []field) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := &bits.Writer{W: &buf}
	for _, f := range fields {
		require.NoError(t, w.WriteBits(f.v, f.n))
	}
	require.NoError(t, w.FlushBits())
	return buf.Bytes()
}

// sequenceHeader720p is a main profile 8 bit 1280x720 sequence header at
// level 4 (3.0) without color description.
func sequenceHeader720p(t *testing.T, colorDescription []field) []byte {
	t.Helper()
	fields := []field{
		{0, 3}, {0, 1}, {0, 1}, // profile, still_picture, reduced_still_picture_header
		{0, 1},          // timing_info_present_flag
		{0, 1},          // initial_display_delay_present_flag
		{0, 5},          // operating_points_cnt_minus_1
		{0, 12}, {4, 5}, // operating_point_idc, seq_level_idx
		{10, 4}, {10, 4}, // frame_width_bits_minus_1, frame_height_bits_minus_1
		{1279, 11}, {719, 11},
		{0, 1},                 // frame_id_numbers_present_flag
		{0, 1}, {0, 1}, {0, 1}, // sb128, filter_intra, intra_edge
		{0, 1}, {0, 1}, {0, 1}, {0, 1}, // interintra, masked, warped, dual_filter
		{1, 1}, {0, 1}, {0, 1}, // enable_order_hint, jnt_comp, ref_frame_mvs
		{1, 1}, {1, 1}, // seq_choose_screen_content_tools, seq_choose_integer_mv
		{6, 3},                 // order_hint_bits_minus_1
		{0, 1}, {1, 1}, {1, 1}, // superres, cdef, restoration
		{0, 1}, {0, 1}, // high_bitdepth, mono_chrome
	}
	if colorDescription == nil {
		fields = append(fields, field{0, 1})
	} else {
		fields = append(fields, field{1, 1})
		fields = append(fields, colorDescription...)
	}
	fields = append(fields,
		field{0, 1}, // color_range
		field{0, 2}, // chroma_sample_position
		field{0, 1}, // separate_uv_delta_q
		field{0, 1}, // film_grain_params_present
		field{1, 1}, // trailing one bit
	)
	return writeFields(t, fields)
}

func sequenceHeaderOBU(payload []byte) []byte {
	obu := []byte{byte(OBUSequenceHeader)<<3 | 0x02}
	obu = AppendLEB128(obu, uint64(len(payload)))
	return append(obu, payload...)
}

func TestParseSequenceHeader(t *testing.T) {
	t.Parallel()

	seq, err := ParseSequenceHeader(sequenceHeader720p(t, nil))
	require.NoError(t, err)
	require.Equal(t, uint8(0), seq.SeqProfile)
	require.Equal(t, uint32(1280), seq.MaxFrameWidth)
	require.Equal(t, uint32(720), seq.MaxFrameHeight)
	require.Len(t, seq.OperatingPoints, 1)
	require.Equal(t, uint8(4), seq.OperatingPoints[0].SeqLevelIdx)
	require.True(t, seq.EnableOrderHint)
	require.Equal(t, uint8(7), seq.OrderHintBits)
	require.Equal(t, uint8(selectScreenContentTools), seq.SeqForceScreenContentTool)
	require.Equal(t, uint8(8), seq.ColorConfig.BitDepth)
	require.True(t, seq.ColorConfig.SubsamplingX)
	require.True(t, seq.ColorConfig.SubsamplingY)
	require.Equal(t, uint8(cpUnspecified), seq.ColorConfig.ColorPrimaries)
	require.Equal(t, "av01.0.04M.08", seq.CodecString())
}

func TestParseSequenceHeaderTruncated(t *testing.T) {
	t.Parallel()

	payload := sequenceHeader720p(t, nil)
	_, err := ParseSequenceHeader(payload[:4])
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSequenceHeaderCodecStringColor(t *testing.T) {
	t.Parallel()

	// BT.2020 primaries, PQ transfer, BT.2020 non-constant matrix.
	payload := sequenceHeader720p(t, []field{{9, 8}, {16, 8}, {9, 8}})
	seq, err := ParseSequenceHeader(payload)
	require.NoError(t, err)
	require.True(t, seq.ColorConfig.ColorDescriptionPresent)
	require.Equal(t, "av01.0.04M.08.0.110.09.16.09.0", seq.CodecString())
}

func TestParseOBU(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		typ     OBUType
		payload []byte
		err     error
	}{
		{
			name:    "sized",
			data:    []byte{0x0a, 0x02, 0xaa, 0xbb, 0xcc},
			typ:     OBUSequenceHeader,
			payload: []byte{0xaa, 0xbb},
		},
		{
			name:    "unsized",
			data:    []byte{0x08, 0xaa, 0xbb},
			typ:     OBUSequenceHeader,
			payload: []byte{0xaa, 0xbb},
		},
		{
			name:    "extension",
			data:    []byte{0x36, 0x48, 0x01, 0xff},
			typ:     OBUFrame,
			payload: []byte{0xff},
		},
		{name: "forbidden", data: []byte{0x8a, 0x00}, err: ErrForbiddenBit},
		{name: "short_payload", data: []byte{0x0a, 0x05, 0x00}, err: io.ErrUnexpectedEOF},
		{name: "empty", data: nil, err: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			obu, err := ParseOBU(tt.data)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.typ, obu.Header.Type)
			require.Equal(t, tt.payload, obu.Payload)
		})
	}
}

func TestParseOBUExtensionIDs(t *testing.T) {
	t.Parallel()

	obu, err := ParseOBU([]byte{0x36, 0x48, 0x01, 0xff})
	require.NoError(t, err)
	require.True(t, obu.Header.HasExtension)
	require.Equal(t, uint8(2), obu.Header.TemporalID)
	require.Equal(t, uint8(1), obu.Header.SpatialID)
	require.Equal(t, 4, obu.Len)
}

func TestSplitOBUs(t *testing.T) {
	t.Parallel()

	stream := []byte{0x12, 0x00, 0x0a, 0x01, 0x55, 0x32, 0x02, 0x01, 0x02}
	obus, err := SplitOBUs(stream)
	require.NoError(t, err)
	require.Len(t, obus, 3)
	require.Equal(t, OBUTemporalDelimiter, obus[0].Header.Type)
	require.Equal(t, OBUSequenceHeader, obus[1].Header.Type)
	require.Equal(t, OBUFrame, obus[2].Header.Type)
	require.Equal(t, []byte{0x01, 0x02}, obus[2].Payload)
}

func TestLEB128(t *testing.T) {
	t.Parallel()

	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1<<32 - 1} {
		enc := AppendLEB128(nil, v)
		dec, n, err := ReadLEB128(enc)
		require.NoError(t, err)
		require.Equal(t, v, dec)
		require.Len(t, enc, n)
	}

	_, _, err := ReadLEB128([]byte{0x80, 0x80, 0x80, 0x80, 0x10})
	require.ErrorIs(t, err, ErrLEB128)
	_, _, err = ReadLEB128([]byte{0x80})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCodecConfigurationRecordRoundTrip(t *testing.T) {
	t.Parallel()

	payload := sequenceHeader720p(t, nil)
	seq, err := ParseSequenceHeader(payload)
	require.NoError(t, err)

	rec := NewCodecConfigurationRecord(seq, sequenceHeaderOBU(payload))
	buf := make([]byte, rec.Len())
	require.Equal(t, len(buf), rec.Marshal(buf))
	require.Equal(t, byte(0x81), buf[0])
	require.Equal(t, byte(0x04), buf[1])
	require.Equal(t, byte(0x0c), buf[2])

	var decoded CodecConfigurationRecord
	n, err := decoded.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, rec, decoded)
	require.Equal(t, "av01.0.04M.08", decoded.CodecString())

	parsed, err := decoded.SequenceHeader()
	require.NoError(t, err)
	require.Equal(t, seq, parsed)
}

func TestCodecConfigurationRecordErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{name: "short", data: []byte{0x81, 0x00}, err: ErrRecordInvalid},
		{name: "marker", data: []byte{0x01, 0x00, 0x00, 0x00}, err: ErrRecordInvalid},
		{name: "version", data: []byte{0x82, 0x00, 0x00, 0x00}, err: errUnsupportedRecordVer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var rec CodecConfigurationRecord
			_, err := rec.Unmarshal(tt.data)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCodecConfigurationRecordSequenceHeader(t *testing.T) {
	t.Parallel()

	t.Run("temporal_delimiter", func(t *testing.T) {
		t.Parallel()
		rec := CodecConfigurationRecord{ConfigOBUs: []byte{0x12, 0x00}}
		_, err := rec.SequenceHeader()
		require.ErrorIs(t, err, ErrNotSequenceHeader)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		var rec CodecConfigurationRecord
		_, err := rec.SequenceHeader()
		require.ErrorIs(t, err, ErrNoConfigOBUs)
	})
}
