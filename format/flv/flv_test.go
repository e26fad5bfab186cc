package flv

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/codec/h264"
)

func testAVCRecord() h264.AVCDecoderConfRecord {
	return h264.AVCDecoderConfRecord{
		ConfigurationVersion: 1,
		AVCProfileIndication: 0x42,
		ProfileCompatibility: 0xc0,
		AVCLevelIndication:   0x1e,
		LengthSizeMinusOne:   3,
		SPS:                  [][]byte{{0x67, 0x42, 0xc0, 0x1e}},
		PPS:                  [][]byte{{0x68, 0xce, 0x3c, 0x80}},
	}
}

func recordBytes(rec h264.AVCDecoderConfRecord) []byte {
	b := make([]byte, rec.Len())
	rec.Marshal(b)
	return b
}

func TestHeader(t *testing.T) {
	t.Parallel()

	h := NewHeader(true, true)
	b := make([]byte, h.Len())
	require.Equal(t, HeaderLen, h.Marshal(b))
	require.Equal(t, []byte{'F', 'L', 'V', 1, 0x05, 0, 0, 0, 9}, b)

	var got Header
	n, err := got.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, HeaderLen, n)
	require.Equal(t, h, got)

	video := NewHeader(false, true)
	video.Marshal(b)
	require.Equal(t, byte(0x01), b[4])

	// A longer declared header is skipped.
	long := append([]byte{'F', 'L', 'V', 1, 0x04, 0, 0, 0, 12}, 0xaa, 0xbb, 0xcc)
	n, err = got.Unmarshal(long)
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.True(t, got.HasAudio)
	require.False(t, got.HasVideo)

	_, err = got.Unmarshal([]byte{'F', 'L', 'X', 1, 0x05, 0, 0, 0, 9})
	require.ErrorIs(t, err, ErrSignature)
	_, err = got.Unmarshal([]byte{'F', 'L', 'V', 1, 0x05, 0, 0, 0, 20})
	require.ErrorContains(t, err, "invalid header size")
	_, err = got.Unmarshal([]byte{'F', 'L', 'V'})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTagTimestampExtension(t *testing.T) {
	t.Parallel()

	tag := Tag{Type: TagVideo, Timestamp: 0x01020304, StreamID: 0, Body: []byte{1, 2}}
	b := make([]byte, tag.Len())
	require.Equal(t, 13, tag.Marshal(b))
	require.Equal(t, []byte{9, 0, 0, 2, 0x02, 0x03, 0x04, 0x01, 0, 0, 0, 1, 2}, b)

	var got Tag
	n, err := got.Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, tag, got)

	_, err = got.Unmarshal(b[:12])
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestAudioData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want AudioData
	}{
		{
			name: "aac sequence header",
			data: []byte{0xaf, 0x00, 0x12, 0x10},
			want: AudioData{
				Format: SoundFormatAAC, Rate: SoundRate44k, Size: SoundSize16Bit, Type: SoundStereo,
				AACPacketType: AACSequenceHeader, Data: []byte{0x12, 0x10},
			},
		},
		{
			name: "aac raw",
			data: []byte{0xae, 0x01, 0x21, 0x00},
			want: AudioData{
				Format: SoundFormatAAC, Rate: SoundRate44k, Size: SoundSize16Bit, Type: SoundMono,
				AACPacketType: AACRaw, Data: []byte{0x21, 0x00},
			},
		},
		{
			name: "mp3",
			data: []byte{0x2e, 0xff, 0xfb},
			want: AudioData{
				Format: SoundFormatMP3, Rate: SoundRate44k, Size: SoundSize16Bit, Type: SoundMono,
				Data: []byte{0xff, 0xfb},
			},
		},
		{
			name: "g711 alaw",
			data: []byte{0x72, 0xd5},
			want: AudioData{
				Format: SoundFormatG711ALaw, Rate: SoundRate5k5, Size: SoundSize16Bit, Type: SoundMono,
				Data: []byte{0xd5},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got AudioData
			n, err := got.Unmarshal(tt.data)
			require.NoError(t, err)
			require.Equal(t, len(tt.data), n)
			require.Equal(t, tt.want, got)

			out := make([]byte, got.Len())
			require.Equal(t, len(tt.data), got.Marshal(out))
			require.Equal(t, tt.data, out)
		})
	}

	a := AudioData{Format: SoundFormatAAC, AACPacketType: AACSequenceHeader}
	require.True(t, a.IsSequenceHeader())
	require.Equal(t, uint8(2), SoundStereo.Channels())
	require.Equal(t, 22050, SoundRate22k.Hz())

	var short AudioData
	_, err := short.Unmarshal([]byte{0xaf})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestVideoDataLegacy(t *testing.T) {
	t.Parallel()

	t.Run("avc nalu with negative cts", func(t *testing.T) {
		t.Parallel()

		data := []byte{0x27, 0x01, 0xff, 0xff, 0xd8, 0, 0, 0, 1, 0x41}
		var v VideoData
		_, err := v.Unmarshal(data)
		require.NoError(t, err)
		require.False(t, v.Enhanced)
		require.Equal(t, bmff.InterFrame, v.FrameType)
		require.Equal(t, VideoCodecAVC, v.CodecID)
		require.Equal(t, AVCNALU, v.AVCPacketType)
		require.Equal(t, int32(-40), v.CompositionTime)
		require.Equal(t, []byte{0, 0, 0, 1, 0x41}, v.Data)
		require.Equal(t, bmff.H264, v.Codec())
		require.True(t, v.IsCodedFrame())
		require.False(t, v.IsSequenceHeader())

		out := make([]byte, v.Len())
		v.Marshal(out)
		require.Equal(t, data, out)
	})

	t.Run("avc sequence header", func(t *testing.T) {
		t.Parallel()

		v := VideoData{
			FrameType:     bmff.KeyFrame,
			CodecID:       VideoCodecAVC,
			AVCPacketType: AVCSequenceHeader,
			Data:          recordBytes(testAVCRecord()),
		}
		tag := NewVideoTag(0, &v)
		require.Equal(t, []byte{0x17, 0, 0, 0, 0}, tag.Body[:5])

		got, err := tag.Video()
		require.NoError(t, err)
		require.True(t, got.IsSequenceHeader())
		rec, err := got.AVCConfig()
		require.NoError(t, err)
		require.Equal(t, testAVCRecord().SPS, rec.SPS)
		require.Equal(t, testAVCRecord().PPS, rec.PPS)

		_, err = got.HEVCConfig()
		require.Error(t, err)
	})

	t.Run("command frame", func(t *testing.T) {
		t.Parallel()

		var v VideoData
		_, err := v.Unmarshal([]byte{0x57, 0x01})
		require.NoError(t, err)
		require.Equal(t, bmff.CommandFrame, v.FrameType)
		require.Equal(t, VideoCommandEndSeek, v.Command)
		require.Equal(t, 2, v.Len())
		require.False(t, v.IsCodedFrame())
		require.False(t, v.IsSequenceHeader())
	})

	t.Run("other codec", func(t *testing.T) {
		t.Parallel()

		var v VideoData
		_, err := v.Unmarshal([]byte{0x12, 0xaa, 0xbb})
		require.NoError(t, err)
		require.Equal(t, VideoCodecH263, v.CodecID)
		require.Equal(t, []byte{0xaa, 0xbb}, v.Data)
		require.Zero(t, v.Codec())
		require.True(t, v.IsCodedFrame())
	})
}

func TestVideoDataEnhanced(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		data  []byte
		frame bmff.FrameType
		pkt   PacketType
		codec bmff.CodecType
		cts   int32
		body  []byte
	}{
		{
			name:  "hevc sequence start",
			data:  []byte{0x90, 'h', 'v', 'c', '1', 0x01, 0x02},
			frame: bmff.KeyFrame,
			pkt:   PacketTypeSequenceStart,
			codec: bmff.H265,
			body:  []byte{0x01, 0x02},
		},
		{
			name:  "hevc coded frames",
			data:  []byte{0xa1, 'h', 'v', 'c', '1', 0x00, 0x00, 0x21, 0xaa},
			frame: bmff.InterFrame,
			pkt:   PacketTypeCodedFrames,
			codec: bmff.H265,
			cts:   33,
			body:  []byte{0xaa},
		},
		{
			name:  "hevc coded frames x",
			data:  []byte{0x93, 'h', 'v', 'c', '1', 0xbb},
			frame: bmff.KeyFrame,
			pkt:   PacketTypeCodedFramesX,
			codec: bmff.H265,
			body:  []byte{0xbb},
		},
		{
			name:  "av1 coded frames",
			data:  []byte{0x91, 'a', 'v', '0', '1', 0x12, 0x00},
			frame: bmff.KeyFrame,
			pkt:   PacketTypeCodedFrames,
			codec: bmff.AV1,
			body:  []byte{0x12, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var v VideoData
			_, err := v.Unmarshal(tt.data)
			require.NoError(t, err)
			require.True(t, v.Enhanced)
			require.Equal(t, tt.frame, v.FrameType)
			require.Equal(t, tt.pkt, v.PacketType)
			require.Equal(t, tt.codec, v.Codec())
			require.Equal(t, tt.cts, v.CompositionTime)
			require.Equal(t, tt.body, v.Data)

			out := make([]byte, v.Len())
			v.Marshal(out)
			require.Equal(t, tt.data, out)
		})
	}

	var v VideoData
	_, err := v.Unmarshal([]byte{0x96, 0x00})
	require.ErrorIs(t, err, errors.ErrUnsupported)

	_, err = v.Unmarshal([]byte{0x91, 'h', 'v'})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadTags(t *testing.T) {
	t.Parallel()

	tags := []Tag{
		NewVideoTag(0, &VideoData{
			FrameType: bmff.KeyFrame, CodecID: VideoCodecAVC, AVCPacketType: AVCSequenceHeader,
			Data: recordBytes(testAVCRecord()),
		}),
		NewAudioTag(0, &AudioData{
			Format: SoundFormatAAC, Rate: SoundRate44k, Size: SoundSize16Bit, Type: SoundStereo,
			Data: []byte{0x12, 0x10},
		}),
		NewVideoTag(40, &VideoData{
			FrameType: bmff.KeyFrame, CodecID: VideoCodecAVC, AVCPacketType: AVCNALU,
			Data: []byte{0, 0, 0, 1, 0x65},
		}),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(NewHeader(true, true)))
	for _, tag := range tags {
		require.NoError(t, w.WriteTag(tag))
	}
	require.Equal(t, uint32(tags[2].Len()), w.PrevTagSize())

	hdr, got, err := ReadTags(buf.Bytes())
	require.NoError(t, err)
	require.NotNil(t, hdr)
	require.True(t, hdr.HasVideo)
	require.Equal(t, tags, got)

	// The same stream without the file header.
	hdr, got, err = ReadTags(buf.Bytes()[HeaderLen:])
	require.NoError(t, err)
	require.Nil(t, hdr)
	require.Equal(t, tags, got)

	_, _, err = ReadTags(buf.Bytes()[:buf.Len()-6])
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	audio, err := got[1].Audio()
	require.NoError(t, err)
	require.Equal(t, []byte{0x12, 0x10}, audio.Data)
	_, err = got[1].Video()
	require.Error(t, err)
}

func TestReader(t *testing.T) {
	t.Parallel()

	tags := []Tag{
		NewAudioTag(0, &AudioData{
			Format: SoundFormatAAC, Rate: SoundRate44k, Size: SoundSize16Bit, Type: SoundStereo,
			Data: []byte{0x12, 0x10},
		}),
		NewVideoTag(0x01000020, &VideoData{
			FrameType: bmff.InterFrame, CodecID: VideoCodecAVC, AVCPacketType: AVCNALU,
			Data: []byte{0, 0, 0, 1, 0x41},
		}),
	}
	var buf bytes.Buffer
	w := NewWriter(&buf)
	// A header declaring 4 extra bytes before the first previous tag size.
	require.NoError(t, w.WriteHeader(Header{Version: 1, HasAudio: true, DataOffset: HeaderLen}))
	stream := append([]byte{}, buf.Bytes()[:HeaderLen]...)
	stream[8] = HeaderLen + 4
	stream = append(stream, 0xde, 0xad, 0xbe, 0xef)
	stream = append(stream, buf.Bytes()[HeaderLen:]...)
	buf.Reset()
	for _, tag := range tags {
		require.NoError(t, w.WriteTag(tag))
	}
	stream = append(stream, buf.Bytes()...)

	r := NewReader(bytes.NewReader(stream))
	hdr, err := r.ReadHeader()
	require.NoError(t, err)
	require.True(t, hdr.HasAudio)
	require.False(t, hdr.HasVideo)
	require.Equal(t, uint32(HeaderLen+4), hdr.DataOffset)

	for _, want := range tags {
		got, err := r.ReadTag()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err = r.ReadTag()
	require.ErrorIs(t, err, io.EOF)

	r = NewReader(bytes.NewReader(stream[:len(stream)-6]))
	_, err = r.ReadHeader()
	require.NoError(t, err)
	_, err = r.ReadTag()
	require.NoError(t, err)
	_, err = r.ReadTag()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = NewReader(bytes.NewReader([]byte("FLX\x01\x05\x00\x00\x00\x09"))).ReadHeader()
	require.ErrorIs(t, err, ErrSignature)
}
