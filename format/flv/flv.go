// Package flv reads and writes FLV streams: the file header, tag framing,
// audio and video tag bodies (legacy and enhanced RTMP) and AMF0 script data.
package flv

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff/utils/zerocopy"
)

const (
	HeaderLen      = 9
	TagHeaderLen   = 11
	PrevTagSizeLen = 4
)

const (
	flagVideo = 0x01
	flagAudio = 0x04

	tagTypeMask = 0x1f

	maxHeaderLen = 1 << 16
)

var signature = []byte("FLV")

// ErrSignature is returned when a file header does not start with "FLV".
var ErrSignature = errors.New("flv: invalid signature")

// Header is the FLV file header.
type Header struct {
	Version  uint8
	HasAudio bool
	HasVideo bool
	// DataOffset is the size of the header as declared by the file. Bytes
	// between the fixed header and DataOffset are skipped.
	DataOffset uint32
}

// NewHeader returns a version 1 header announcing the given streams.
func NewHeader(hasAudio, hasVideo bool) Header {
	return Header{Version: 1, HasAudio: hasAudio, HasVideo: hasVideo, DataOffset: HeaderLen}
}

// IsHeader reports whether b starts with the FLV signature.
func IsHeader(b []byte) bool {
	return bytes.HasPrefix(b, signature)
}

func (h *Header) Unmarshal(b []byte) (n int, err error) {
	if len(b) < HeaderLen {
		return 0, io.ErrUnexpectedEOF
	}
	if !IsHeader(b) {
		return 0, ErrSignature
	}
	h.Version = b[3]
	h.HasAudio = b[4]&flagAudio != 0
	h.HasVideo = b[4]&flagVideo != 0
	h.DataOffset = pio.U32BE(b[5:])
	if h.DataOffset < HeaderLen || int(h.DataOffset) > len(b) {
		return 0, fmt.Errorf("flv: invalid header size %d", h.DataOffset)
	}
	return int(h.DataOffset), nil
}

func (h *Header) Len() int {
	return HeaderLen
}

func (h *Header) Marshal(b []byte) int {
	copy(b, signature)
	b[3] = h.Version
	var flags byte
	if h.HasAudio {
		flags |= flagAudio
	}
	if h.HasVideo {
		flags |= flagVideo
	}
	b[4] = flags
	pio.PutU32BE(b[5:], HeaderLen)
	return HeaderLen
}

// TagType identifies the payload of a tag.
type TagType uint8

const (
	TagAudio  TagType = 8
	TagVideo  TagType = 9
	TagScript TagType = 18
)

func (t TagType) String() string {
	switch t {
	case TagAudio:
		return "audio"
	case TagVideo:
		return "video"
	case TagScript:
		return "script"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Tag is one FLV tag. Body aliases the demuxed buffer and is decoded on
// demand with Audio, Video or Script.
type Tag struct {
	Type TagType
	// Timestamp in milliseconds, including the extended upper byte.
	Timestamp uint32
	StreamID  uint32
	Body      []byte
}

func (t *Tag) Unmarshal(b []byte) (n int, err error) {
	r := zerocopy.NewReader(b)
	typ, err := r.U8()
	if err != nil {
		return 0, err
	}
	size, err := r.U24()
	if err != nil {
		return 0, err
	}
	low, err := r.U24()
	if err != nil {
		return 0, err
	}
	ext, err := r.U8()
	if err != nil {
		return 0, err
	}
	if t.StreamID, err = r.U24(); err != nil {
		return 0, err
	}
	if t.Body, err = r.ExtractBytes(int(size)); err != nil {
		return 0, fmt.Errorf("flv: %s tag body of %d bytes: %w", TagType(typ&tagTypeMask), size, err)
	}
	t.Type = TagType(typ & tagTypeMask)
	t.Timestamp = uint32(ext)<<24 | low
	return r.Pos(), nil
}

func (t *Tag) Len() int {
	return TagHeaderLen + len(t.Body)
}

func (t *Tag) Marshal(b []byte) (n int) {
	b[0] = byte(t.Type)
	pio.PutU24BE(b[1:], uint32(len(t.Body))) //nolint:gosec
	pio.PutU24BE(b[4:], t.Timestamp&0xffffff)
	b[7] = byte(t.Timestamp >> 24) //nolint:mnd
	pio.PutU24BE(b[8:], t.StreamID)
	n = TagHeaderLen
	n += copy(b[n:], t.Body)
	return
}

// Audio decodes the body of an audio tag.
func (t *Tag) Audio() (a AudioData, err error) {
	if t.Type != TagAudio {
		return a, fmt.Errorf("flv: %s tag is not audio", t.Type)
	}
	_, err = a.Unmarshal(t.Body)
	return
}

// Video decodes the body of a video tag.
func (t *Tag) Video() (v VideoData, err error) {
	if t.Type != TagVideo {
		return v, fmt.Errorf("flv: %s tag is not video", t.Type)
	}
	_, err = v.Unmarshal(t.Body)
	return
}

// Script decodes the body of a script data tag.
func (t *Tag) Script() (s ScriptData, err error) {
	if t.Type != TagScript {
		return s, fmt.Errorf("flv: %s tag is not script data", t.Type)
	}
	_, err = s.Unmarshal(t.Body)
	return
}

type body interface {
	Len() int
	Marshal(b []byte) int
}

func newTag(typ TagType, timestamp uint32, data body) Tag {
	b := make([]byte, data.Len())
	data.Marshal(b)
	return Tag{Type: typ, Timestamp: timestamp, Body: b}
}

func NewAudioTag(timestamp uint32, a *AudioData) Tag {
	return newTag(TagAudio, timestamp, a)
}

func NewVideoTag(timestamp uint32, v *VideoData) Tag {
	return newTag(TagVideo, timestamp, v)
}

// ReadTags parses a stream of previous-tag-size prefixed tags. A leading file
// header is consumed when present and returned, hdr is nil otherwise. A
// trailing previous tag size with no tag after it ends the stream.
func ReadTags(data []byte) (hdr *Header, tags []Tag, err error) {
	if IsHeader(data) {
		hdr = new(Header)
		n, err := hdr.Unmarshal(data)
		if err != nil {
			return nil, nil, err
		}
		data = data[n:]
	}

	r := zerocopy.NewReader(data)
	for r.Len() > 0 {
		if _, err = r.U32(); err != nil {
			return nil, nil, fmt.Errorf("flv: previous tag size at offset %d: %w", r.Pos(), err)
		}
		if r.Len() == 0 {
			break
		}
		var tag Tag
		pos := r.Pos()
		n, err := tag.Unmarshal(r.ExtractRemaining())
		if err != nil {
			return nil, nil, fmt.Errorf("flv: tag at offset %d: %w", pos, err)
		}
		r.Seek(pos + n)
		tags = append(tags, tag)
	}
	return hdr, tags, nil
}

// Reader reads an FLV stream tag by tag.
type Reader struct {
	r   io.Reader
	buf []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadHeader reads the file header, skips up to its data offset and consumes
// the zero previous tag size after it.
func (r *Reader) ReadHeader() (h Header, err error) {
	b := make([]byte, HeaderLen)
	if _, err = io.ReadFull(r.r, b); err != nil {
		return h, err
	}
	if !IsHeader(b) {
		return h, ErrSignature
	}
	if size := pio.U32BE(b[5:]); size > HeaderLen && size <= maxHeaderLen {
		b = append(b, make([]byte, size-HeaderLen)...)
		if _, err = io.ReadFull(r.r, b[HeaderLen:]); err != nil {
			return h, err
		}
	}
	if _, err = h.Unmarshal(b); err != nil {
		return h, err
	}
	_, err = io.ReadFull(r.r, b[:PrevTagSizeLen])
	return h, err
}

// ReadTag reads the next tag and the previous tag size following it. It
// returns io.EOF only when the stream ends on a tag boundary. The body of the
// tag is owned by the caller.
func (r *Reader) ReadTag() (tag Tag, err error) {
	if cap(r.buf) < TagHeaderLen {
		r.buf = make([]byte, TagHeaderLen)
	}
	hdr := r.buf[:TagHeaderLen]
	if _, err = io.ReadFull(r.r, hdr); err != nil {
		return tag, err
	}
	size := int(pio.U24BE(hdr[1:]))
	b := make([]byte, TagHeaderLen+size+PrevTagSizeLen)
	copy(b, hdr)
	if _, err = io.ReadFull(r.r, b[TagHeaderLen:]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return tag, fmt.Errorf("flv: %s tag body of %d bytes: %w", TagType(hdr[0]&tagTypeMask), size, err)
	}
	_, err = tag.Unmarshal(b[:TagHeaderLen+size])
	return tag, err
}

// Writer writes an FLV stream.
type Writer struct {
	w    io.Writer
	prev uint32
	buf  []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the file header and the zero previous tag size after it.
func (w *Writer) WriteHeader(h Header) error {
	b := make([]byte, HeaderLen+PrevTagSizeLen)
	h.Marshal(b)
	w.prev = 0
	_, err := w.w.Write(b)
	return err
}

// WriteTag writes a tag followed by its previous tag size.
func (w *Writer) WriteTag(tag Tag) error {
	n := tag.Len()
	if cap(w.buf) < n+PrevTagSizeLen {
		w.buf = make([]byte, n+PrevTagSizeLen)
	}
	b := w.buf[:n+PrevTagSizeLen]
	tag.Marshal(b)
	pio.PutU32BE(b[n:], uint32(n)) //nolint:gosec
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	w.prev = uint32(n) //nolint:gosec
	return nil
}

// PrevTagSize returns the size of the last tag written.
func (w *Writer) PrevTagSize() uint32 {
	return w.prev
}
