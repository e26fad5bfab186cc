package isobmff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testFtyp() FileTypeBox {
	return FileTypeBox{
		MajorBrand:       BrandIsom,
		MinorVersion:     0x200,
		CompatibleBrands: []Brand{BrandIsom, BrandIso2, BrandAvc1, BrandMp41},
	}
}

func testVideoTrack() TrackBox {
	return TrackBox{
		Tkhd: TrackHeaderBox{
			FullBoxHeader: FullBoxHeader{Flags: TrackEnabled | TrackInMovie},
			TrackID:       1,
			Matrix:        UnityMatrix,
			Width:         320 << 16,
			Height:        240 << 16,
		},
		Mdia: MediaBox{
			Mdhd: MediaHeaderBox{Timescale: 90000, Language: LanguageUndetermined},
			Hdlr: HandlerBox{HandlerType: HandlerVideo, Name: "VideoHandler"},
			Minf: MediaInformationBox{
				Vmhd: NewVideoMediaHeader(),
				Dinf: NewSelfContainedDataInformation(),
				Stbl: SampleTableBox{
					Stsd: SampleDescriptionBox{Entries: []Box{NewAVCSampleEntry(320, 240, testAVCRecord())}},
					Stts: TimeToSampleBox{Entries: []TimeToSampleEntry{{SampleCount: 1, SampleDelta: 3000}}},
					Stsc: SampleToChunkBox{Entries: []SampleToChunkEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1}}},
					Stsz: &SampleSizeBox{EntrySizes: []uint32{4}},
					Stco: &ChunkOffsetBox{ChunkOffsets: []uint32{8}},
				},
			},
		},
	}
}

func testFile() *File {
	return &File{
		Ftyp: testFtyp(),
		Moov: &MovieBox{Mvhd: *testMovieHeader(), Trak: []TrackBox{testVideoTrack()}},
		Mdat: []MediaDataBox{{Data: []byte{0, 0, 0, 1}}},
	}
}

func boxTypes(boxes []Box) []string {
	out := make([]string, len(boxes))
	for i, b := range boxes {
		out[i] = b.Type().String()
	}
	return out
}

func TestReadFileRoundTrip(t *testing.T) {
	t.Parallel()

	data := testFile().Bytes()

	f, err := ReadFile(data)
	require.NoError(t, err)
	require.Equal(t, BrandIsom, f.Ftyp.MajorBrand)
	require.NotNil(t, f.Moov.Track(1))
	require.Nil(t, f.Moov.Track(2))
	require.Equal(t, "VideoHandler", f.Moov.Trak[0].Mdia.Hdlr.Name)
	require.IsType(t, &AVCSampleEntry{}, f.Moov.Trak[0].Mdia.Minf.Stbl.Stsd.Entries[0])
	require.Equal(t, []string{"ftyp", "mdat", "moov"}, boxTypes(f.Boxes()))

	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.Equal(t, data, buf.Bytes())
}

func TestReadFileKeepsTopLevelOrder(t *testing.T) {
	t.Parallel()

	src := testFile()
	sample := []byte{0xde, 0xad, 0xbe, 0xef}
	src.Mdat[0].Data = sample
	wide := rawBox("wide")
	ftyp := Bytes(&src.Ftyp)
	mdat := Bytes(&src.Mdat[0])

	// The chunk offset points at the sample inside the mdat that precedes
	// the moov, as ffmpeg writes files without faststart.
	offset := len(ftyp) + len(wide) + 8
	src.Moov.Trak[0].Mdia.Minf.Stbl.Stco.ChunkOffsets = []uint32{uint32(offset)} //nolint:gosec
	data := bytes.Join([][]byte{ftyp, wide, mdat, Bytes(src.Moov)}, nil)

	f, err := ReadFile(data)
	require.NoError(t, err)
	require.Len(t, f.Unknown, 1)
	require.Equal(t, []string{"ftyp", "wide", "mdat", "moov"}, boxTypes(f.Boxes()))

	out := f.Bytes()
	require.Equal(t, data, out)
	stco := f.Moov.Trak[0].Mdia.Minf.Stbl.Stco.ChunkOffsets[0]
	require.Equal(t, sample, out[stco:stco+4])

	// Boxes added after reading go after the ones read.
	f.Etyp = append(f.Etyp, ExtendedTypeBox{})
	require.Equal(t, []string{"ftyp", "wide", "mdat", "moov", "etyp"}, boxTypes(f.Boxes()))
	require.Len(t, f.Bytes(), f.Len())
}

func TestFileFieldOrder(t *testing.T) {
	t.Parallel()

	f := testFile()
	f.Meta = &MetaBox{}
	f.Etyp = []ExtendedTypeBox{{}}
	require.Equal(t, []string{"ftyp", "etyp", "mdat", "moov", "meta"}, boxTypes(f.Boxes()))
}

func TestReadFileFragmented(t *testing.T) {
	t.Parallel()

	moof := MovieFragmentBox{
		Mfhd: MovieFragmentHeaderBox{SequenceNumber: 1},
		Traf: []TrackFragmentBox{{
			Tfhd: TrackFragmentHeaderBox{FullBoxHeader: FullBoxHeader{Flags: TfhdDefaultBaseIsMoof}, TrackID: 1},
			Trun: []TrackRunBox{*NewTrackRunBox([]TrackRunSample{{Size: 4}}, TrunSampleSizePresent)},
		}},
	}
	mdat := MediaDataBox{Data: []byte{1, 2, 3, 4}}
	ftyp := testFtyp()

	data := bytes.Join([][]byte{Bytes(&ftyp), Bytes(&moof), Bytes(&mdat)}, nil)
	f, err := ReadFile(data)
	require.NoError(t, err)
	require.Nil(t, f.Moov)
	require.Len(t, f.Moof, 1)
	require.Equal(t, data, f.Bytes())
}

func TestReadFileMissingBoxes(t *testing.T) {
	t.Parallel()

	src := testFile()
	tests := []struct {
		name string
		data []byte
		want BoxType
	}{
		{
			name: "no moov",
			data: append(Bytes(&src.Ftyp), Bytes(&src.Mdat[0])...),
			want: TypeMoov,
		},
		{
			name: "no ftyp",
			data: Bytes(src.Moov),
			want: TypeFtyp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ReadFile(tt.data)
			var missing *MissingBoxError
			require.ErrorAs(t, err, &missing)
			require.Equal(t, tt.want, missing.Box)
		})
	}
}

func TestReadBoxesSegment(t *testing.T) {
	t.Parallel()

	styp := SegmentTypeBox{FileTypeBox{MajorBrand: BrandMsdh, CompatibleBrands: []Brand{BrandMsdh, BrandMsix}}}
	sidx := SegmentIndexBox{ReferenceID: 1, Timescale: 1000, References: []SegmentReference{{ReferencedSize: 100}}}
	moof := MovieFragmentBox{Mfhd: MovieFragmentHeaderBox{SequenceNumber: 3}}
	mdat := MediaDataBox{Data: []byte{9}}

	data := bytes.Join([][]byte{Bytes(&styp), Bytes(&sidx), Bytes(&moof), Bytes(&mdat)}, nil)
	boxes, err := ReadBoxes(append(data, 0, 0))
	require.NoError(t, err)
	require.Equal(t, []string{"styp", "sidx", "moof", "mdat"}, boxTypes(boxes))
	require.Equal(t, uint32(3), boxes[2].(*MovieFragmentBox).Mfhd.SequenceNumber) //nolint:forcetypeassert

	_, err = ReadBoxes(data[:len(data)-1])
	require.Error(t, err)
}
