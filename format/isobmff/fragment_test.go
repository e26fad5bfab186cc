package isobmff

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// roundTrip encodes box, decodes the result into dst and requires both
// encodings to match.
func roundTrip(t *testing.T, box, dst Box) {
	t.Helper()

	b := Bytes(box)
	n, err := Unmarshal(b, dst)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
	require.Equal(t, b, Bytes(dst))
}

func TestTrackRunLayout(t *testing.T) {
	t.Parallel()

	trun := NewTrackRunBox(
		[]TrackRunSample{{Duration: 1024, Size: 10}},
		TrunDataOffsetPresent|TrunSampleDurationPresent|TrunSampleSizePresent,
	)
	trun.DataOffset = 100

	want := []byte{
		0x00, 0x00, 0x00, 0x1c, 't', 'r', 'u', 'n',
		0x00, 0x00, 0x03, 0x01,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x64,
		0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x0a,
	}
	require.Equal(t, want, Bytes(trun))

	var got TrackRunBox
	_, err := Unmarshal(want, &got)
	require.NoError(t, err)
	require.Equal(t, *trun, got)
}

func TestTrackRunVersions(t *testing.T) {
	t.Parallel()

	present := uint32(TrunDataOffsetPresent | TrunSampleDurationPresent | TrunSampleSizePresent |
		TrunSampleFlagsPresent | TrunSampleCompositionTimeOffsetsPresent)

	tests := []struct {
		name    string
		samples []TrackRunSample
		version uint8
	}{
		{
			name: "unsigned offsets",
			samples: []TrackRunSample{
				{Duration: 1000, Size: 4000, Flags: NewSampleFlags(DependsOnNone, false), CompositionTimeOffset: 2000},
				{Duration: 1000, Size: 300, Flags: NewSampleFlags(DependsOnOthers, true)},
			},
			version: 0,
		},
		{
			name: "signed offsets",
			samples: []TrackRunSample{
				{Duration: 1000, Size: 4000, Flags: NewSampleFlags(DependsOnNone, false), CompositionTimeOffset: 1000},
				{Duration: 1000, Size: 300, Flags: NewSampleFlags(DependsOnOthers, true), CompositionTimeOffset: -1000},
			},
			version: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			trun := NewTrackRunBox(tt.samples, present)
			trun.DataOffset = -8
			require.Equal(t, tt.version, trun.Version)
			require.Equal(t, 8+4+4+4+16*len(tt.samples), Len(trun))

			var got TrackRunBox
			_, err := Unmarshal(Bytes(trun), &got)
			require.NoError(t, err)
			require.Equal(t, *trun, got)
		})
	}
}

func TestTrackRunFirstSampleFlags(t *testing.T) {
	t.Parallel()

	trun := NewTrackRunBox(
		[]TrackRunSample{{Size: 1}, {Size: 2}},
		TrunFirstSampleFlagsPresent|TrunSampleSizePresent,
	)
	trun.FirstSampleFlags = NewSampleFlags(DependsOnNone, false)

	var got TrackRunBox
	_, err := Unmarshal(Bytes(trun), &got)
	require.NoError(t, err)
	require.Equal(t, trun.FirstSampleFlags, got.FirstSampleFlags)
	require.Zero(t, got.DataOffset)
	require.Len(t, got.Samples, 2)
}

func TestTrackRunCountExceedsPayload(t *testing.T) {
	t.Parallel()

	data := rawBox("trun", []byte{0x00, 0x00, 0x01, 0x00}, []byte{0x00, 0x00, 0x03, 0xe8})
	_, err := Unmarshal(data, new(TrackRunBox))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTrackFragmentHeaderFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tfhd TrackFragmentHeaderBox
		size int
	}{
		{
			name: "default base is moof",
			tfhd: TrackFragmentHeaderBox{
				FullBoxHeader: FullBoxHeader{Flags: TfhdDefaultBaseIsMoof},
				TrackID:       1,
			},
			size: 16,
		},
		{
			name: "every optional field",
			tfhd: TrackFragmentHeaderBox{
				FullBoxHeader: FullBoxHeader{Flags: TfhdBaseDataOffsetPresent | TfhdSampleDescriptionIndexPresent |
					TfhdDefaultSampleDurationPresent | TfhdDefaultSampleSizePresent | TfhdDefaultSampleFlagsPresent},
				TrackID:                2,
				BaseDataOffset:         1 << 40,
				SampleDescriptionIndex: 1,
				DefaultSampleDuration:  1024,
				DefaultSampleSize:      512,
				DefaultSampleFlags:     NewSampleFlags(DependsOnNone, false),
			},
			size: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tfhd := tt.tfhd
			require.Equal(t, tt.size, Len(&tfhd))

			var got TrackFragmentHeaderBox
			_, err := Unmarshal(Bytes(&tfhd), &got)
			require.NoError(t, err)
			require.Equal(t, tfhd, got)
		})
	}
}

func TestMovieFragmentRoundTrip(t *testing.T) {
	t.Parallel()

	moof := &MovieFragmentBox{
		Mfhd: MovieFragmentHeaderBox{SequenceNumber: 7},
		Traf: []TrackFragmentBox{{
			Tfhd: TrackFragmentHeaderBox{FullBoxHeader: FullBoxHeader{Flags: TfhdDefaultBaseIsMoof}, TrackID: 1},
			Tfdt: NewTrackFragmentBaseMediaDecodeTimeBox(90000),
			Trun: []TrackRunBox{*NewTrackRunBox(
				[]TrackRunSample{{Duration: 3000, Size: 100, Flags: NewSampleFlags(DependsOnNone, false)}},
				TrunDataOffsetPresent|TrunSampleDurationPresent|TrunSampleSizePresent|TrunSampleFlagsPresent,
			)},
		}},
	}

	var got MovieFragmentBox
	_, err := Unmarshal(Bytes(moof), &got)
	require.NoError(t, err)
	require.Equal(t, *moof, got)
	require.Equal(t, uint64(90000), got.Traf[0].Tfdt.BaseMediaDecodeTime)
	require.Equal(t, uint8(1), got.Traf[0].Tfdt.Version)
}

func TestSampleFlags(t *testing.T) {
	t.Parallel()

	key := NewSampleFlags(DependsOnNone, false)
	require.Equal(t, SampleFlags(0x02000000), key)
	require.Equal(t, uint8(DependsOnNone), key.DependsOn())
	require.False(t, key.NonSync())

	delta := NewSampleFlags(DependsOnOthers, true)
	require.Equal(t, SampleFlags(0x01010000), delta)
	require.True(t, delta.NonSync())

	f := SampleFlags(0x0c_ce_3e_05)
	require.Equal(t, uint8(3), f.IsLeading())
	require.Equal(t, uint8(0), f.DependsOn())
	require.Equal(t, uint8(3), f.IsDependedOn())
	require.Equal(t, uint8(0), f.HasRedundancy())
	require.Equal(t, uint8(7), f.PaddingValue())
	require.False(t, f.NonSync())
	require.Equal(t, uint16(0x3e05), f.DegradationPriority())
	require.Contains(t, f.String(), "depended=3")
}

func TestMovieExtendsRoundTrip(t *testing.T) {
	t.Parallel()

	mvex := &MovieExtendsBox{
		Mehd: &MovieExtendsHeaderBox{FullBoxHeader: FullBoxHeader{Version: 1}, FragmentDuration: 1 << 33},
		Trex: []TrackExtendsBox{NewTrackExtendsBox(1), NewTrackExtendsBox(2)},
		Leva: &LevelAssignmentBox{Levels: []Level{
			{TrackID: 1, AssignmentType: LevelByTrack},
			{TrackID: 1, PaddingFlag: true, AssignmentType: LevelBySampleGroup, GroupingType: FourCC{'r', 'o', 'l', 'l'}},
			{TrackID: 2, AssignmentType: LevelBySampleGroupParameter, GroupingType: FourCC{'s', 'y', 'n', 'c'}, GroupingTypeParameter: 9},
			{TrackID: 2, AssignmentType: LevelBySubTrack, SubTrackID: 3},
		}},
	}
	require.Equal(t, 8+4+1+5+9+13+9, Len(mvex.Leva))

	var got MovieExtendsBox
	_, err := Unmarshal(Bytes(mvex), &got)
	require.NoError(t, err)
	require.Equal(t, *mvex, got)
}

func TestTrackFragmentRandomAccess(t *testing.T) {
	t.Parallel()

	tfra := TrackFragmentRandomAccessBox{
		FullBoxHeader:         FullBoxHeader{Version: 1},
		TrackID:               1,
		LengthSizeOfTrafNum:   0,
		LengthSizeOfTrunNum:   1,
		LengthSizeOfSampleNum: 3,
		Entries: []RandomAccessEntry{
			{Time: 1 << 35, MoofOffset: 4096, TrafNumber: 1, TrunNumber: 0x1234, SampleNumber: 0x01020304},
		},
	}
	require.Equal(t, 8+4+4+4+4+23, Len(&tfra))

	mfra := &MovieFragmentRandomAccessBox{
		Tfra: []TrackFragmentRandomAccessBox{tfra},
		Mfro: MovieFragmentRandomAccessOffsetBox{ParentSize: uint32(8 + Len(&tfra) + 16)}, //nolint:gosec
	}
	require.Equal(t, int(mfra.Mfro.ParentSize), Len(mfra))

	var got MovieFragmentRandomAccessBox
	_, err := Unmarshal(Bytes(mfra), &got)
	require.NoError(t, err)
	require.Equal(t, *mfra, got)
}

func TestSegmentIndexBoxes(t *testing.T) {
	t.Parallel()

	refs := []SegmentReference{
		{ReferencedSize: 1000, SubsegmentDuration: 2000, StartsWithSAP: true, SAPType: 1},
		{ReferenceType: true, ReferencedSize: 0x7fffffff, SubsegmentDuration: 1, SAPType: 3, SAPDeltaTime: 0x0fffffff},
	}

	for _, version := range []uint8{0, 1} {
		sidx := SegmentIndexBox{
			FullBoxHeader:            FullBoxHeader{Version: version},
			ReferenceID:              1,
			Timescale:                90000,
			EarliestPresentationTime: 42,
			FirstOffset:              16,
			References:               refs,
		}
		var got SegmentIndexBox
		_, err := Unmarshal(Bytes(&sidx), &got)
		require.NoError(t, err)
		require.Equal(t, sidx, got)
	}

	ssix := &SubsegmentIndexBox{Subsegments: []Subsegment{
		{Ranges: []SubsegmentRange{{Level: 0, RangeSize: 100}, {Level: 1, RangeSize: 0xffffff}}},
		{Ranges: []SubsegmentRange{{Level: 2, RangeSize: 5}}},
	}}
	require.Equal(t, 8+4+4+4+8+4+4, Len(ssix))
	var gotSsix SubsegmentIndexBox
	_, err := Unmarshal(Bytes(ssix), &gotSsix)
	require.NoError(t, err)
	require.Equal(t, *ssix, gotSsix)

	prft := &ProducerReferenceTimeBox{
		FullBoxHeader:    FullBoxHeader{Version: 1, Flags: PrftCaptured},
		ReferenceTrackID: 1,
		NTPTimestamp:     0xe6a1b2c3_00000000,
		MediaTime:        1 << 40,
	}
	roundTrip(t, prft, new(ProducerReferenceTimeBox))
	require.Equal(t, 8+4+4+8+8, Len(prft))
}

func TestCompressedBoxesKeepPayload(t *testing.T) {
	t.Parallel()

	data := rawBox("!mov", []byte{0x78, 0x9c, 0x01, 0x02})
	box, err := ReadBoxes(data)
	require.NoError(t, err)
	require.Len(t, box, 1)
	cmov, ok := box[0].(*CompressedMovieBox)
	require.True(t, ok)
	require.Equal(t, []byte{0x78, 0x9c, 0x01, 0x02}, cmov.Data)
	require.Equal(t, data, Bytes(cmov))
}
