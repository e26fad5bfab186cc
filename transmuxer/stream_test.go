package transmuxer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/format/flv"
)

func avcStream(t *testing.T) []byte {
	t.Helper()
	hdr := flv.NewHeader(false, true)
	inter := []byte{0, 0, 0, 2, 0x41, 0x9a}
	return flvStream(t, &hdr,
		avcSequenceHeader(t),
		avcFrame(0, bmff.KeyFrame, 0, []byte{0, 0, 0, 2, 0x65, 0x88}),
		avcFrame(33, bmff.InterFrame, 0, inter),
		avcFrame(66, bmff.InterFrame, 0, inter),
	)
}

func collect(s *Stream) (results []*Result) {
	for res := range s.Results() {
		results = append(results, res)
	}
	<-s.Done()
	return results
}

func TestStream(t *testing.T) {
	t.Parallel()

	s := NewStream(bytes.NewReader(avcStream(t)), 1)
	s.Start()
	s.Start()
	results := collect(s)
	require.NoError(t, s.Err())
	require.Len(t, results, 4)
	require.NotNil(t, results[0].Init)
	require.Nil(t, results[0].Init.Audio)
	for i, res := range results[1:] {
		require.NotNil(t, res.Media)
		require.Equal(t, bmff.Video, res.Media.Type)
		require.Equal(t, uint64(i)*1000, res.Media.Timestamp)
	}
	s.Close()
}

func TestStreamErrors(t *testing.T) {
	t.Parallel()

	data := avcStream(t)
	s := NewStream(bytes.NewReader(data[:len(data)-3]), 8)
	s.Start()
	require.Len(t, collect(s), 3)
	require.ErrorIs(t, s.Err(), io.ErrUnexpectedEOF)

	s = NewStream(bytes.NewReader(data[flv.HeaderLen:]), 8)
	s.Start()
	require.Empty(t, collect(s))
	require.ErrorIs(t, s.Err(), flv.ErrSignature)

	s = NewStream(bytes.NewReader(data), 8)
	s.Close()
	s.Start()
	require.Empty(t, collect(s))
	require.NoError(t, s.Err())
}

func TestStreamClose(t *testing.T) {
	t.Parallel()

	s := NewStream(bytes.NewReader(avcStream(t)), 0)
	s.Start()
	res := <-s.Results()
	require.NotNil(t, res.Init)
	s.Close()
	select {
	case <-s.Done():
	default:
		t.Fatal("stream still running after Close")
	}
	require.NoError(t, s.Err())
}
