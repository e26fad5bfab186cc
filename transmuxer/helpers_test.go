package transmuxer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/codec/av1"
	"github.com/ugparu/bmff/codec/h264"
	"github.com/ugparu/bmff/codec/h265"
	"github.com/ugparu/bmff/format/flv"
	"github.com/ugparu/bmff/utils/bits"
	"github.com/ugparu/bmff/utils/nal"
)

type field struct {
	v uint64
	n int // fixed width; 0 means ue(v)
}

func ue(v uint64) field        { return field{v: v} }
func u(v uint64, n int) field { return field{v: v, n: n} }

func writeFields(t *testing.T, fields []field, stopBit bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := &bits.Writer{W: &buf}
	for _, f := range fields {
		if f.n > 0 {
			require.NoError(t, w.WriteBits64(f.v, f.n))
			continue
		}
		require.NoError(t, w.WriteExponentialGolombCode(uint(f.v)))
	}
	if stopBit {
		require.NoError(t, w.WriteFlag(true))
	}
	require.NoError(t, w.FlushBits())
	return buf.Bytes()
}

func buildNALU(t *testing.T, header []byte, fields []field) []byte {
	t.Helper()
	return append(append([]byte{}, header...), nal.EmulationPreventionAdd(writeFields(t, fields, true))...)
}

// avcRecord is a High profile level 3.1 1920x1080 stream at 30 fps with
// BT.709 colour.
func avcRecord(t *testing.T) h264.AVCDecoderConfRecord {
	t.Helper()
	sps := buildNALU(t, []byte{0x67, 100, 0x00, 0x1f}, []field{
		ue(0), ue(1), ue(0), ue(0), // sps id, chroma_format_idc, bit depths
		u(0, 1), u(0, 1), // transform bypass, scaling matrix
		ue(0), ue(0), ue(2), // log2_max_frame_num_minus4, poc type, poc lsb
		ue(4), u(0, 1), // max_num_ref_frames, gaps
		ue(119), ue(67), // 120x68 macroblocks
		u(1, 1), u(1, 1), // frame_mbs_only_flag, direct_8x8_inference_flag
		u(1, 1), ue(0), ue(0), ue(0), ue(4), // crop to 1080 lines
		u(1, 1),          // vui_parameters_present_flag
		u(1, 1), u(1, 8), // square pixels
		u(0, 1),                                                // overscan_info_present_flag
		u(1, 1), u(5, 3), u(0, 1), u(1, 1), u(1, 8), u(1, 8), u(1, 8), // BT.709
		u(0, 1),                            // chroma_loc_info_present_flag
		u(1, 1), u(1000, 32), u(60000, 32), // timing info
		u(1, 1), // fixed_frame_rate_flag
	})
	return h264.AVCDecoderConfRecord{
		ConfigurationVersion: 1,
		AVCProfileIndication: 100,
		ProfileCompatibility: 0x00,
		AVCLevelIndication:   0x1f,
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{sps},
		PPS:                  [][]byte{{0x68, 0xeb, 0xe3, 0xcb, 0x22, 0xc0}},
		Ext:                  &h264.AVCDecoderConfRecordExt{ChromaFormat: 1},
	}
}

// hevcRecord is a Main profile level 3.1 1920x1080 stream at 59.94 fps with
// BT.2020 PQ colour.
func hevcRecord(t *testing.T) h265.HEVCDecoderConfRecord {
	t.Helper()
	sps := buildNALU(t, []byte{0x42, 0x01}, []field{
		u(0, 4), u(0, 3), u(1, 1), // vps id, max_sub_layers_minus1, temporal_id_nesting
		u(0, 2), u(0, 1), u(1, 5), // profile space, tier, profile idc
		u(0x60000000, 32),     // compatibility flags
		u(0xb00000000000, 48), // constraint flags
		u(93, 8),              // level
		ue(0), ue(1), // sps id, chroma_format_idc
		ue(1920), ue(1088), // picture size
		u(1, 1), ue(0), ue(0), ue(0), ue(4), // conformance window
		ue(0), ue(0), // bit depths
		ue(4),                        // log2_max_pic_order_cnt_lsb_minus4
		u(1, 1), ue(4), ue(0), ue(0), // sub layer ordering
		ue(0), ue(3), ue(0), ue(3), ue(0), ue(0), // block sizes, hierarchy depths
		u(0, 1),          // scaling_list_enabled_flag
		u(1, 1), u(1, 1), // amp, sao
		u(0, 1),                      // pcm_enabled_flag
		ue(2),                                     // num_short_term_ref_pic_sets
		ue(1), ue(0), ue(0), u(1, 1),              // set 0: one negative picture
		u(1, 1), u(0, 1), ue(0), u(1, 1), u(1, 1), // set 1: predicted from set 0
		u(0, 1),          // long_term_ref_pics_present_flag
		u(1, 1), u(1, 1), // temporal mvp, strong intra smoothing
		u(1, 1),          // vui_parameters_present_flag
		u(0, 1), u(0, 1), // aspect ratio, overscan
		u(1, 1), u(5, 3), u(0, 1), u(1, 1), u(9, 8), u(16, 8), u(9, 8), // video signal type
		u(0, 1),                            // chroma_loc_info_present_flag
		u(0, 3),                            // neutral chroma, field seq, frame field info
		u(0, 1),                            // default_display_window_flag
		u(1, 1), u(1001, 32), u(60000, 32), // timing info
		u(0, 1), // vui_poc_proportional_to_timing_flag
	})
	info, err := h265.ParseSPS(sps)
	require.NoError(t, err)
	vps := []byte{0x40, 0x01, 0x0c, 0x01, 0xff, 0xff, 0x01, 0x60}
	pps := []byte{0x44, 0x01, 0xc1, 0x72, 0xb4, 0x62, 0x40}
	return h265.NewHEVCDecoderConfRecord(vps, sps, pps, info)
}

// av1Record is a main profile 8 bit 1280x720 stream at level 3.0 without
// timing info or colour description.
func av1Record(t *testing.T) av1.CodecConfigurationRecord {
	t.Helper()
	payload := writeFields(t, []field{
		u(0, 3), u(0, 1), u(0, 1), // profile, still_picture, reduced_still_picture_header
		u(0, 1),           // timing_info_present_flag
		u(0, 1),           // initial_display_delay_present_flag
		u(0, 5),           // operating_points_cnt_minus_1
		u(0, 12), u(4, 5), // operating_point_idc, seq_level_idx
		u(10, 4), u(10, 4), // frame_width_bits_minus_1, frame_height_bits_minus_1
		u(1279, 11), u(719, 11),
		u(0, 1),                   // frame_id_numbers_present_flag
		u(0, 1), u(0, 1), u(0, 1), // sb128, filter_intra, intra_edge
		u(0, 1), u(0, 1), u(0, 1), u(0, 1), // interintra, masked, warped, dual_filter
		u(1, 1), u(0, 1), u(0, 1), // enable_order_hint, jnt_comp, ref_frame_mvs
		u(1, 1), u(1, 1), // seq_choose_screen_content_tools, seq_choose_integer_mv
		u(6, 3),                   // order_hint_bits_minus_1
		u(0, 1), u(1, 1), u(1, 1), // superres, cdef, restoration
		u(0, 1), u(0, 1), // high_bitdepth, mono_chrome
		u(0, 1),          // color_description_present_flag
		u(0, 1),          // color_range
		u(0, 2),          // chroma_sample_position
		u(0, 1),          // separate_uv_delta_q
		u(0, 1),          // film_grain_params_present
		u(1, 1),          // trailing one bit
	}, false)
	seq, err := av1.ParseSequenceHeader(payload)
	require.NoError(t, err)
	obu := []byte{byte(av1.OBUSequenceHeader)<<3 | 0x02}
	obu = av1.AppendLEB128(obu, uint64(len(payload)))
	return av1.NewCodecConfigurationRecord(seq, append(obu, payload...))
}

// aacConfig is AAC LC, 44.1 kHz, stereo.
var aacConfig = []byte{0x12, 0x10}

// adtsFrame prefixes raw with an unprotected ADTS header matching aacConfig.
func adtsFrame(raw []byte) []byte {
	n := 7 + len(raw)
	hdr := []byte{0xff, 0xf1, 0x50, 0x80 | byte(n>>11)&0x3, byte(n >> 3), byte(n&0x7)<<5 | 0x1f, 0xfc}
	return append(hdr, raw...)
}

func marshal(t *testing.T, v interface {
	Len() int
	Marshal([]byte) int
}) []byte {
	t.Helper()
	b := make([]byte, v.Len())
	require.Equal(t, len(b), v.Marshal(b))
	return b
}

func videoTag(ts uint32, v *flv.VideoData) flv.Tag {
	return flv.NewVideoTag(ts, v)
}

func avcSequenceHeader(t *testing.T) flv.Tag {
	t.Helper()
	rec := avcRecord(t)
	return videoTag(0, &flv.VideoData{
		FrameType:     bmff.KeyFrame,
		CodecID:       flv.VideoCodecAVC,
		AVCPacketType: flv.AVCSequenceHeader,
		Data:          marshal(t, &rec),
	})
}

func avcFrame(ts uint32, frame bmff.FrameType, cts int32, data []byte) flv.Tag {
	return videoTag(ts, &flv.VideoData{
		FrameType:       frame,
		CodecID:         flv.VideoCodecAVC,
		AVCPacketType:   flv.AVCNALU,
		CompositionTime: cts,
		Data:            data,
	})
}

func enhancedTag(ts uint32, frame bmff.FrameType, pkt flv.PacketType, fourCC string, cts int32, data []byte) flv.Tag {
	return videoTag(ts, &flv.VideoData{
		FrameType:       frame,
		Enhanced:        true,
		PacketType:      pkt,
		FourCC:          fourCC,
		CompositionTime: cts,
		Data:            data,
	})
}

func aacTag(ts uint32, pkt flv.AACPacketType, data []byte) flv.Tag {
	return flv.NewAudioTag(ts, &flv.AudioData{
		Format:        flv.SoundFormatAAC,
		Rate:          flv.SoundRate44k,
		Size:          flv.SoundSize16Bit,
		Type:          flv.SoundStereo,
		AACPacketType: pkt,
		Data:          data,
	})
}

func metadataTag(t *testing.T, m flv.Metadata) flv.Tag {
	t.Helper()
	tag, err := flv.NewScriptTag(0, m.ScriptData())
	require.NoError(t, err)
	return tag
}

// flvStream writes the tags as an FLV file.
func flvStream(t *testing.T, hdr *flv.Header, tags ...flv.Tag) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := flv.NewWriter(&buf)
	if hdr != nil {
		require.NoError(t, w.WriteHeader(*hdr))
	}
	for _, tag := range tags {
		require.NoError(t, w.WriteTag(tag))
	}
	return buf.Bytes()
}
