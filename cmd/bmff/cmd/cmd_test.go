package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ugparu/bmff/format/flv"
	"github.com/ugparu/bmff/format/isobmff"
)

func aacStream(t *testing.T, frames int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := flv.NewWriter(&buf)
	require.NoError(t, w.WriteHeader(flv.NewHeader(true, false)))
	audio := flv.AudioData{
		Format:        flv.SoundFormatAAC,
		Rate:          flv.SoundRate44k,
		Size:          flv.SoundSize16Bit,
		Type:          flv.SoundStereo,
		AACPacketType: flv.AACSequenceHeader,
		Data:          []byte{0x12, 0x10},
	}
	require.NoError(t, w.WriteTag(flv.NewAudioTag(0, &audio)))
	audio.AACPacketType = flv.AACRaw
	for i := range frames {
		audio.Data = []byte{0x21, 0x10, byte(i)}
		require.NoError(t, w.WriteTag(flv.NewAudioTag(uint32(i)*23, &audio)))
	}
	return buf.Bytes()
}

func TestTransmuxTo(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	n, err := transmuxTo(bytes.NewReader(aacStream(t, 3)), dir)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	init, err := os.ReadFile(filepath.Join(dir, initName))
	require.NoError(t, err)
	f, err := isobmff.ReadFile(init)
	require.NoError(t, err)
	require.NotNil(t, f.Moov.Track(2))

	seg, err := os.ReadFile(filepath.Join(dir, "segment_00003.m4s"))
	require.NoError(t, err)
	boxes, err := isobmff.ReadBoxes(seg)
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	moof, ok := boxes[0].(*isobmff.MovieFragmentBox)
	require.True(t, ok)
	require.Equal(t, uint32(3), moof.Mfhd.SequenceNumber)
}

func TestTransmuxToErrors(t *testing.T) {
	t.Parallel()

	data := aacStream(t, 0)
	_, err := transmuxTo(bytes.NewReader(data[:flv.HeaderLen+flv.PrevTagSizeLen]), t.TempDir())
	require.EqualError(t, err, "no sequence headers in stream")

	_, err = transmuxTo(bytes.NewReader(data[flv.HeaderLen:]), t.TempDir())
	require.ErrorIs(t, err, flv.ErrSignature)
}

func TestDumpAndRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := transmuxTo(bytes.NewReader(aacStream(t, 1)), dir)
	require.NoError(t, err)
	init, err := os.ReadFile(filepath.Join(dir, initName))
	require.NoError(t, err)
	seg, err := os.ReadFile(filepath.Join(dir, "segment_00001.m4s"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		data  []byte
		first string
	}{
		{"init", init, "[ftyp] offset=0 "},
		{"segment", seg, "[moof] offset=0 "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var out strings.Builder
			require.NoError(t, dump(&out, tt.data))
			require.True(t, strings.HasPrefix(out.String(), tt.first), out.String())
		})
	}

	out, identical, err := roundtrip(append(append([]byte{}, init...), seg...))
	require.NoError(t, err)
	require.True(t, identical)
	require.Len(t, out, len(init)+len(seg))

	_, _, err = roundtrip(seg)
	require.Error(t, err)
	require.Error(t, dump(&strings.Builder{}, []byte{0, 0, 0, 100, 'f', 'r', 'e', 'e'}))
}

func TestRebase(t *testing.T) {
	t.Parallel()

	var src bytes.Buffer
	w := flv.NewWriter(&src)
	require.NoError(t, w.WriteHeader(flv.NewHeader(true, false)))
	require.NoError(t, w.WriteTag(flv.Tag{Type: flv.TagScript, Timestamp: 5, Body: []byte{0x05}}))
	audio := flv.AudioData{Format: flv.SoundFormatAAC, Type: flv.SoundStereo, Data: []byte{0x12, 0x10}}
	require.NoError(t, w.WriteTag(flv.NewAudioTag(1000, &audio)))
	audio.AACPacketType = flv.AACRaw
	for i := range 3 {
		audio.Data = []byte{0x21, byte(i)}
		require.NoError(t, w.WriteTag(flv.NewAudioTag(1000+uint32(i)*23, &audio)))
	}
	// An AAC tag without its packet type does not decode.
	require.NoError(t, w.WriteTag(flv.Tag{Type: flv.TagAudio, Timestamp: 1100, Body: []byte{0xaf}}))

	var out bytes.Buffer
	kept, dropped, err := rebase(bytes.NewReader(src.Bytes()), &out)
	require.NoError(t, err)
	require.Equal(t, 5, kept)
	require.Equal(t, 1, dropped)

	hdr, tags, err := flv.ReadTags(out.Bytes())
	require.NoError(t, err)
	require.True(t, hdr.HasAudio)
	require.Len(t, tags, 5)
	var timestamps []uint32
	for _, tag := range tags {
		timestamps = append(timestamps, tag.Timestamp)
	}
	require.Equal(t, []uint32{0, 0, 0, 23, 46}, timestamps)
	a, err := tags[4].Audio()
	require.NoError(t, err)
	require.Equal(t, []byte{0x21, 2}, a.Data)

	n, err := transmuxTo(bytes.NewReader(out.Bytes()), t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, _, err = rebase(bytes.NewReader(src.Bytes()[:src.Len()-3]), &bytes.Buffer{})
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
