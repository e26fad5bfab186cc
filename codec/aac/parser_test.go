package aac

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func adtsHeader(objectType, sampleRateIdx, channelConfig uint, frameLength, samples int, protected bool) []byte {
	header := make([]byte, 9)
	header[0] = 0xff
	header[1] = 0xf1
	if protected {
		header[1] = 0xf0
	}
	header[2] = byte((objectType-1)&0x3)<<6 | byte(sampleRateIdx&0xf)<<2 | byte(channelConfig>>2)&0x1
	header[3] = byte(channelConfig&0x3)<<6 | byte((frameLength>>11)&0x3)
	header[4] = byte(frameLength >> 3)
	header[5] = byte((frameLength&0x7)<<5) | 0x1f
	header[6] = byte((samples/1024-1)&0x3) | 0xfc
	return header
}

func TestParseADTSHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		channelConfig uint
		sampleRateIdx uint
		protected     bool
		rate          int
		channels      uint8
		hdrlen        int
	}{
		{name: "mono_48k", channelConfig: 1, sampleRateIdx: 3, rate: 48000, channels: 1, hdrlen: 7},
		{name: "stereo_44k_protected", channelConfig: 2, sampleRateIdx: 4, protected: true, rate: 44100, channels: 2, hdrlen: 9},
		{name: "surround_51", channelConfig: 6, sampleRateIdx: 3, rate: 48000, channels: 6, hdrlen: 7},
		{name: "surround_71", channelConfig: 7, sampleRateIdx: 3, rate: 48000, channels: 8, hdrlen: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			frame := adtsHeader(AotAacLc, tt.sampleRateIdx, tt.channelConfig, 200, 1024, tt.protected)
			require.True(t, IsADTS(frame))
			h, err := ParseADTSHeader(frame)
			require.NoError(t, err)
			require.Equal(t, uint(AotAacLc), h.Config.ObjectType)
			require.Equal(t, tt.rate, h.Config.SampleRate)
			require.Equal(t, tt.channels, h.Config.Channels)
			require.Equal(t, tt.hdrlen, h.HeaderLen)
			require.Equal(t, 200, h.FrameLen)
			require.Equal(t, 1024, h.Samples)
		})
	}
}

func TestParseADTSHeaderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "short", frame: []byte{0xff, 0xf1, 0x50}},
		{name: "sync", frame: []byte{0xfe, 0xf1, 0x50, 0x80, 0x19, 0x1f, 0xfc}},
		{name: "sample_rate_index", frame: adtsHeader(AotAacLc, 13, 2, 100, 1024, false)},
		{name: "zero_channels", frame: adtsHeader(AotAacLc, 3, 0, 100, 1024, false)},
		{name: "frame_shorter_than_header", frame: adtsHeader(AotAacLc, 3, 2, 5, 1024, false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseADTSHeader(tt.frame)
			require.Error(t, err)
		})
	}
}

func TestADTSPayload(t *testing.T) {
	t.Parallel()

	raw := []byte{0x21, 0x10, 0x04}
	frame := append(adtsHeader(AotAacLc, 4, 2, 7+len(raw), 1024, false)[:7], raw...)
	h, err := ParseADTSHeader(frame)
	require.NoError(t, err)
	require.Equal(t, raw, h.Payload(frame))

	// A frame length past the end of the data is clamped.
	h.FrameLen = 100
	require.Equal(t, raw, h.Payload(frame))

	require.False(t, IsADTS(raw))
	require.False(t, IsADTS([]byte{0xff}))
}

func TestParseMPEG4AudioConfigBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   []byte
		expect MPEG4AudioConfig
	}{
		{
			name:   "lc_48k_stereo",
			data:   []byte{0x11, 0x90},
			expect: MPEG4AudioConfig{SampleRate: 48000, Channels: 2, ObjectType: 2, SampleRateIndex: 3, ChannelConfig: 2},
		},
		{
			name:   "lc_44k_stereo",
			data:   []byte{0x12, 0x10},
			expect: MPEG4AudioConfig{SampleRate: 44100, Channels: 2, ObjectType: 2, SampleRateIndex: 4, ChannelConfig: 2},
		},
		{
			name:   "he_aac_mono",
			data:   []byte{0x2d, 0x88},
			expect: MPEG4AudioConfig{SampleRate: 8000, Channels: 1, ObjectType: 5, SampleRateIndex: 11, ChannelConfig: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			config, err := ParseMPEG4AudioConfigBytes(tt.data)
			require.NoError(t, err)
			require.Equal(t, tt.expect, config)
		})
	}

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := ParseMPEG4AudioConfigBytes(nil)
		require.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		_, err := ParseMPEG4AudioConfigBytes([]byte{0x11})
		require.Error(t, err)
	})
}

func TestWriteMPEG4AudioConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config MPEG4AudioConfig
		expect []byte
	}{
		{
			name:   "from_indices",
			config: MPEG4AudioConfig{ObjectType: AotAacLc, SampleRateIndex: 3, ChannelConfig: 2},
			expect: []byte{0x11, 0x90},
		},
		{
			name:   "from_rate_and_channels",
			config: MPEG4AudioConfig{ObjectType: AotAacLc, SampleRate: 44100, Channels: 2},
			expect: []byte{0x12, 0x10},
		},
		{
			name:   "index_zero_is_96k",
			config: MPEG4AudioConfig{ObjectType: AotAacLc, SampleRate: 96000, Channels: 1},
			expect: []byte{0x10, 0x08},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			require.NoError(t, WriteMPEG4AudioConfig(&buf, tt.config))
			require.Equal(t, tt.expect, buf.Bytes())
		})
	}

	t.Run("nil_writer", func(t *testing.T) {
		t.Parallel()
		require.Error(t, WriteMPEG4AudioConfig(nil, MPEG4AudioConfig{ObjectType: AotAacLc}))
	})
}

func TestMPEG4AudioConfigRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config MPEG4AudioConfig
	}{
		{name: "escaped_object_type", config: MPEG4AudioConfig{ObjectType: AotL3, SampleRate: 48000, Channels: 2}},
		{name: "explicit_sample_rate", config: MPEG4AudioConfig{ObjectType: AotAacLc, SampleRate: 37800, Channels: 1}},
		{name: "seven_one", config: MPEG4AudioConfig{ObjectType: AotAacMain, SampleRate: 32000, Channels: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			require.NoError(t, WriteMPEG4AudioConfig(&buf, tt.config))

			parsed, err := ParseMPEG4AudioConfigBytes(buf.Bytes())
			require.NoError(t, err)
			require.Equal(t, tt.config.ObjectType, parsed.ObjectType)
			require.Equal(t, tt.config.SampleRate, parsed.SampleRate)
			require.Equal(t, tt.config.Channels, parsed.Channels)
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("write failed") }

func TestWriteMPEG4AudioConfigWriterError(t *testing.T) {
	t.Parallel()
	config := MPEG4AudioConfig{ObjectType: AotAacLc, SampleRateIndex: 3, ChannelConfig: 2}
	require.Error(t, WriteMPEG4AudioConfig(failingWriter{}, config))
}

func TestMPEG4AudioConfigCodecString(t *testing.T) {
	t.Parallel()
	config := MPEG4AudioConfig{ObjectType: AotAacLc}
	require.Equal(t, "mp4a.40.2", config.CodecString())
	config.ObjectType = AotSbr
	require.Equal(t, "mp4a.40.5", config.CodecString())
}
