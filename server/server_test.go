package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ugparu/bmff/format/flv"
	"github.com/ugparu/bmff/transmuxer"
)

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

// aacStream is an audio only FLV file with three AAC LC frames.
func aacStream(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := flv.NewWriter(&buf)
	require.NoError(t, w.WriteHeader(flv.NewHeader(true, false)))
	for _, tag := range []flv.Tag{
		aacTag(0, flv.AACSequenceHeader, []byte{0x12, 0x10}),
		aacTag(0, flv.AACRaw, []byte{0x21, 0x10, 0x04}),
		aacTag(23, flv.AACRaw, []byte{0x21, 0x10, 0x05}),
		aacTag(46, flv.AACRaw, []byte{0x21, 0x10, 0x06}),
	} {
		require.NoError(t, w.WriteTag(tag))
	}
	return buf.Bytes()
}

func serve(t *testing.T, s *Server, req *http.Request, v any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if v != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
	}
	return rec.Code
}

func multipartRequest(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(uploadField, "upload.bin")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := New("127.0.0.1:0", 1<<20)
	var resp map[string]string
	code := serve(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil), &resp)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", resp["status"])

	code = serve(t, s, httptest.NewRequest(http.MethodOptions, "/api/inspect", nil), nil)
	require.Equal(t, http.StatusOK, code)
}

func TestTransmux(t *testing.T) {
	t.Parallel()

	s := New("127.0.0.1:0", 1<<20)
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"raw", httptest.NewRequest(http.MethodPost, "/api/transmux", bytes.NewReader(aacStream(t)))},
		{"multipart", multipartRequest(t, "/api/transmux", aacStream(t))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var resp transmuxJSON
			require.Equal(t, http.StatusOK, serve(t, s, tt.req, &resp))
			require.NotNil(t, resp.Init)
			require.Nil(t, resp.Init.Video)
			require.Equal(t, &trackJSON{
				TrackID:    2,
				Codec:      "mp4a.40.2",
				Timescale:  44100,
				SampleRate: 44100,
				Channels:   2,
			}, resp.Init.Audio)
			require.Len(t, resp.Segments, 3)
			for i, seg := range resp.Segments {
				require.Equal(t, "audio", seg.Type)
				require.True(t, seg.Keyframe)
				require.Equal(t, uint64(i)*1024, seg.Timestamp)
				require.Positive(t, seg.Size)
			}
		})
	}
}

func TestTransmuxErrors(t *testing.T) {
	t.Parallel()

	data := aacStream(t)
	tests := []struct {
		name string
		body []byte
		max  int64
		code int
	}{
		{"truncated", data[:len(data)-2], 1 << 20, http.StatusUnprocessableEntity},
		{"no header", data[flv.HeaderLen:], 1 << 20, http.StatusUnprocessableEntity},
		{"no sequence header", data[:flv.HeaderLen+flv.PrevTagSizeLen], 1 << 20, http.StatusUnprocessableEntity},
		{"too large", data, 16, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New("127.0.0.1:0", tt.max)
			var resp map[string]string
			req := httptest.NewRequest(http.MethodPost, "/api/transmux", bytes.NewReader(tt.body))
			require.Equal(t, tt.code, serve(t, s, req, &resp))
			require.NotEmpty(t, resp["error"])
		})
	}
}

func boxTypes(summaries []struct {
	Type string `json:"type"`
}) (out []string) {
	for _, s := range summaries {
		out = append(out, s.Type)
	}
	return
}

func TestInspect(t *testing.T) {
	t.Parallel()

	tm := transmuxer.New()
	require.NoError(t, tm.Demux(aacStream(t)))
	res, err := tm.Mux()
	require.NoError(t, err)
	init := res.Init.Data
	res, err = tm.Mux()
	require.NoError(t, err)
	media := res.Media.Data

	s := New("127.0.0.1:0", 1<<20)
	tests := []struct {
		name  string
		req   *http.Request
		types []string
	}{
		{"file", httptest.NewRequest(http.MethodPost, "/api/inspect", bytes.NewReader(append(append([]byte{}, init...), media...))),
			[]string{"ftyp", "moov", "moof", "mdat"}},
		{"segment", httptest.NewRequest(http.MethodPost, "/api/inspect", bytes.NewReader(media)),
			[]string{"moof", "mdat"}},
		{"multipart", multipartRequest(t, "/api/inspect", init), []string{"ftyp", "moov"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var resp struct {
				Size  int `json:"size"`
				Boxes []struct {
					Type string `json:"type"`
				} `json:"boxes"`
			}
			require.Equal(t, http.StatusOK, serve(t, s, tt.req, &resp))
			require.Positive(t, resp.Size)
			require.Equal(t, tt.types, boxTypes(resp.Boxes))
		})
	}

	var resp map[string]string
	req := httptest.NewRequest(http.MethodPost, "/api/inspect", bytes.NewReader([]byte{0, 0, 0, 100, 'f', 'r', 'e', 'e'}))
	require.Equal(t, http.StatusUnprocessableEntity, serve(t, s, req, &resp))
	require.NotEmpty(t, resp["error"])

	req = multipartRequest(t, "/api/inspect", init)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=nope")
	require.Equal(t, http.StatusBadRequest, serve(t, s, req, &resp))
}
