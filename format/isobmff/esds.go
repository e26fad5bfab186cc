package isobmff

import (
	"errors"
	"fmt"

	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff/utils/zerocopy"
)

var (
	TypeMp4a = Type4("mp4a")
	TypeMp4v = Type4("mp4v")
	TypeMp4s = Type4("mp4s")
	TypeEsds = Type4("esds")
)

// MPEG-4 descriptor tags used inside esds.
const (
	TagESDescriptor            = 0x03
	TagDecoderConfigDescriptor = 0x04
	TagDecoderSpecificInfo     = 0x05
	TagSLConfigDescriptor      = 0x06
)

// Object type indications and stream types of the decoder configuration.
const (
	ObjectTypeAudioISO14496 = 0x40
	StreamTypeVisual        = 0x04
	StreamTypeAudio         = 0x05
)

const maxDescriptorLenSize = 4

// ErrDescriptorLength is returned for a descriptor length with more than four
// bytes or one that runs past its container.
var ErrDescriptorLength = errors.New("isobmff: invalid descriptor length")

var errNoDecoderConfig = errors.New("isobmff: ES_Descriptor without DecoderConfigDescriptor")

// MP4SampleEntry is the MPEG-4 sample entry. mp4a carries the audio layout,
// mp4v the visual layout and mp4s only the common part; Format holds the tag.
type MP4SampleEntry struct {
	Format FourCC
	AudioSampleEntry
	Visual  VisualSampleEntry
	Esds    ESDBox
	Btrt    *BitRateBox
	Srat    *SamplingRateBox
	Unknown []UnknownBox
}

// NewMP4AudioSampleEntry returns an mp4a entry whose decoder specific info
// is config.
func NewMP4AudioSampleEntry(channels uint16, rate uint32, avgBitrate uint32, config []byte) *MP4SampleEntry {
	e := &MP4SampleEntry{
		Format:           TypeMp4a.FourCC(),
		AudioSampleEntry: NewAudioSampleEntry(channels, 16, 0), //nolint:mnd
		Esds:             ESDBox{Descriptor: NewAudioESDescriptor(avgBitrate, config)},
	}
	if rate <= 0xffff {
		e.SampleRate = rate << 16 //nolint:mnd
	} else {
		e.Srat = &SamplingRateBox{SamplingRate: rate}
	}
	return e
}

func (e *MP4SampleEntry) Type() BoxType { return TypeOf(e.Format) }

func (e *MP4SampleEntry) SetType(t BoxType) bool {
	switch t {
	case TypeMp4a, TypeMp4v, TypeMp4s:
		e.Format = t.FourCC()
		return true
	}
	return false
}

func (e *MP4SampleEntry) Fields() []Field {
	var fields []Field
	switch TypeOf(e.Format) {
	case TypeMp4v:
		fields = e.Visual.Fields()
	case TypeMp4s:
		fields = e.SampleEntry.Fields()
	default:
		fields = e.AudioSampleEntry.Fields()
	}
	return append(fields,
		One(&e.Esds),
		Optional(&e.Btrt),
		Optional(&e.Srat),
		Unknown(&e.Unknown),
	)
}

// ESDBox (esds) carries the MPEG-4 elementary stream descriptor.
type ESDBox struct {
	FullBoxHeader
	Descriptor ESDescriptor
}

func (*ESDBox) Type() BoxType { return TypeEsds }

func (b *ESDBox) Fields() []Field {
	return []Field{FullHeader(&b.FullBoxHeader), RecordField(&b.Descriptor)}
}

// DecoderSpecificInfo returns the decoder specific info bytes, which for
// AAC is the AudioSpecificConfig.
func (b *ESDBox) DecoderSpecificInfo() []byte {
	if info := b.Descriptor.DecoderConfig.DecSpecificInfo; info != nil {
		return info.Data
	}
	return nil
}

// RawDescriptor is a descriptor kept as bytes. LenSize is the number of
// bytes its length was written with; 0 picks the shortest form.
type RawDescriptor struct {
	Tag     uint8
	LenSize int
	Data    []byte
}

// ESDescriptor is the ES_Descriptor of ISO/IEC 14496-1.
type ESDescriptor struct {
	LenSize              int
	ESID                 uint16
	StreamDependenceFlag bool
	URLFlag              bool
	OCRStreamFlag        bool
	StreamPriority       uint8
	DependsOnESID        uint16
	URL                  string
	OCRESID              uint16
	DecoderConfig        DecoderConfigDescriptor
	SLConfig             *SLConfigDescriptor
	Extra                []RawDescriptor
}

// DecoderConfigDescriptor describes the decoder the stream needs.
type DecoderConfigDescriptor struct {
	LenSize              int
	ObjectTypeIndication uint8
	StreamType           uint8
	UpStream             bool
	BufferSizeDB         uint32
	MaxBitrate           uint32
	AvgBitrate           uint32
	DecSpecificInfo      *DecoderSpecificInfo
	Extra                []RawDescriptor
}

// DecoderSpecificInfo holds codec specific setup data.
type DecoderSpecificInfo struct {
	LenSize int
	Data    []byte
}

// SLConfigDescriptor configures the sync layer. Predefined 2 is the value
// MP4 files use.
type SLConfigDescriptor struct {
	LenSize    int
	Predefined uint8
	Data       []byte
}

// NewAudioESDescriptor returns the descriptor writers use for AAC tracks.
func NewAudioESDescriptor(avgBitrate uint32, config []byte) ESDescriptor {
	return ESDescriptor{
		ESID: 1,
		DecoderConfig: DecoderConfigDescriptor{
			ObjectTypeIndication: ObjectTypeAudioISO14496,
			StreamType:           StreamTypeAudio,
			MaxBitrate:           avgBitrate,
			AvgBitrate:           avgBitrate,
			DecSpecificInfo:      &DecoderSpecificInfo{Data: config},
		},
		SLConfig: &SLConfigDescriptor{Predefined: 2}, //nolint:mnd
	}
}

// lenSize returns the number of bytes used to write a length of n.
func lenSize(n, preferred int) int {
	need := 1
	for v := n >> 7; v > 0; v >>= 7 {
		need++
	}
	if preferred > need && preferred <= maxDescriptorLenSize {
		return preferred
	}
	return need
}

func descriptorLen(payload, preferred int) int {
	return 1 + lenSize(payload, preferred) + payload
}

func putDescriptorHeader(b []byte, tag uint8, payload, preferred int) int {
	b[0] = tag
	size := lenSize(payload, preferred)
	for i := range size {
		v := byte(payload>>(7*(size-1-i))) & 0x7f //nolint:gosec
		if i < size-1 {
			v |= 0x80
		}
		b[1+i] = v
	}
	return 1 + size
}

// readDescriptorHeader reads a tag and length and returns a reader bounded
// to the descriptor payload.
func readDescriptorHeader(r *zerocopy.Reader) (tag uint8, width int, body *zerocopy.Reader, err error) {
	if tag, err = r.U8(); err != nil {
		return
	}
	var size int
	for {
		var v uint8
		if v, err = r.U8(); err != nil {
			return
		}
		width++
		size = size<<7 | int(v&0x7f)
		if v&0x80 == 0 {
			break
		}
		if width == maxDescriptorLenSize {
			err = ErrDescriptorLength
			return
		}
	}
	if size > r.Len() {
		err = fmt.Errorf("%w: %d bytes in tag 0x%02x", ErrDescriptorLength, size, tag)
		return
	}
	body, err = r.Sub(size)
	return
}

func decodeRaw(tag uint8, width int, body *zerocopy.Reader) RawDescriptor {
	return RawDescriptor{Tag: tag, LenSize: width, Data: body.ExtractRemaining()}
}

func rawLen(d []RawDescriptor) (n int) {
	for i := range d {
		n += descriptorLen(len(d[i].Data), d[i].LenSize)
	}
	return
}

func marshalRaw(b []byte, d []RawDescriptor) (n int) {
	for i := range d {
		n += putDescriptorHeader(b[n:], d[i].Tag, len(d[i].Data), d[i].LenSize)
		n += copy(b[n:], d[i].Data)
	}
	return
}

func (d *ESDescriptor) payloadLen() int {
	n := 3 //nolint:mnd
	if d.StreamDependenceFlag {
		n += 2
	}
	if d.URLFlag {
		n += 1 + len(d.URL)
	}
	if d.OCRStreamFlag {
		n += 2
	}
	n += d.DecoderConfig.Len()
	if d.SLConfig != nil {
		n += d.SLConfig.Len()
	}
	return n + rawLen(d.Extra)
}

// Len returns the encoded length of the descriptor including tag and length.
func (d *ESDescriptor) Len() int {
	return descriptorLen(d.payloadLen(), d.LenSize)
}

// Marshal writes the descriptor to b.
func (d *ESDescriptor) Marshal(b []byte) (n int) {
	n = putDescriptorHeader(b, TagESDescriptor, d.payloadLen(), d.LenSize)
	pio.PutU16BE(b[n:], d.ESID)
	flags := d.StreamPriority & 0x1f
	if d.StreamDependenceFlag {
		flags |= 0x80
	}
	if d.URLFlag {
		flags |= 0x40
	}
	if d.OCRStreamFlag {
		flags |= 0x20
	}
	b[n+2] = flags
	n += 3
	if d.StreamDependenceFlag {
		pio.PutU16BE(b[n:], d.DependsOnESID)
		n += 2
	}
	if d.URLFlag {
		b[n] = uint8(len(d.URL)) //nolint:gosec // URL length is one byte
		n++
		n += copy(b[n:], d.URL)
	}
	if d.OCRStreamFlag {
		pio.PutU16BE(b[n:], d.OCRESID)
		n += 2
	}
	n += d.DecoderConfig.Marshal(b[n:])
	if d.SLConfig != nil {
		n += d.SLConfig.Marshal(b[n:])
	}
	return n + marshalRaw(b[n:], d.Extra)
}

// Unmarshal decodes the descriptor from b. Data fields alias b.
func (d *ESDescriptor) Unmarshal(b []byte) (int, error) {
	r := zerocopy.NewReader(b)
	tag, size, body, err := readDescriptorHeader(r)
	if err != nil {
		return r.Pos(), err
	}
	if tag != TagESDescriptor {
		return r.Pos(), fmt.Errorf("isobmff: expected ES_Descriptor, got tag 0x%02x", tag)
	}
	*d = ESDescriptor{LenSize: size}
	if err = d.decode(body); err != nil {
		return r.Pos(), err
	}
	return r.Pos(), nil
}

func (d *ESDescriptor) decode(r *zerocopy.Reader) (err error) {
	if d.ESID, err = r.U16(); err != nil {
		return
	}
	flags, err := r.U8()
	if err != nil {
		return
	}
	d.StreamDependenceFlag = flags&0x80 != 0
	d.URLFlag = flags&0x40 != 0
	d.OCRStreamFlag = flags&0x20 != 0
	d.StreamPriority = flags & 0x1f
	if d.StreamDependenceFlag {
		if d.DependsOnESID, err = r.U16(); err != nil {
			return
		}
	}
	if d.URLFlag {
		var n uint8
		if n, err = r.U8(); err != nil {
			return
		}
		var url []byte
		if url, err = r.ExtractBytes(int(n)); err != nil {
			return
		}
		d.URL = string(url)
	}
	if d.OCRStreamFlag {
		if d.OCRESID, err = r.U16(); err != nil {
			return
		}
	}

	seenConfig := false
	for r.Len() > 0 {
		tag, size, body, herr := readDescriptorHeader(r)
		if herr != nil {
			return herr
		}
		switch {
		case tag == TagDecoderConfigDescriptor && !seenConfig:
			seenConfig = true
			d.DecoderConfig.LenSize = size
			if err = d.DecoderConfig.decode(body); err != nil {
				return
			}
		case tag == TagSLConfigDescriptor && d.SLConfig == nil:
			d.SLConfig = &SLConfigDescriptor{LenSize: size}
			if d.SLConfig.Predefined, err = body.U8(); err != nil {
				return
			}
			d.SLConfig.Data = body.ExtractRemaining()
		default:
			d.Extra = append(d.Extra, decodeRaw(tag, size, body))
		}
	}
	if !seenConfig {
		return errNoDecoderConfig
	}
	return nil
}

func (d *DecoderConfigDescriptor) payloadLen() int {
	n := 13 //nolint:mnd
	if d.DecSpecificInfo != nil {
		n += descriptorLen(len(d.DecSpecificInfo.Data), d.DecSpecificInfo.LenSize)
	}
	return n + rawLen(d.Extra)
}

// Len returns the encoded length of the descriptor including tag and length.
func (d *DecoderConfigDescriptor) Len() int {
	return descriptorLen(d.payloadLen(), d.LenSize)
}

// Marshal writes the descriptor to b.
func (d *DecoderConfigDescriptor) Marshal(b []byte) (n int) {
	n = putDescriptorHeader(b, TagDecoderConfigDescriptor, d.payloadLen(), d.LenSize)
	b[n] = d.ObjectTypeIndication
	b[n+1] = d.StreamType<<2 | 0x01
	if d.UpStream {
		b[n+1] |= 0x02
	}
	pio.PutU24BE(b[n+2:], d.BufferSizeDB)
	pio.PutU32BE(b[n+5:], d.MaxBitrate)
	pio.PutU32BE(b[n+9:], d.AvgBitrate)
	n += 13
	if info := d.DecSpecificInfo; info != nil {
		n += putDescriptorHeader(b[n:], TagDecoderSpecificInfo, len(info.Data), info.LenSize)
		n += copy(b[n:], info.Data)
	}
	return n + marshalRaw(b[n:], d.Extra)
}

func (d *DecoderConfigDescriptor) decode(r *zerocopy.Reader) (err error) {
	if d.ObjectTypeIndication, err = r.U8(); err != nil {
		return
	}
	v, err := r.U8()
	if err != nil {
		return
	}
	d.StreamType = v >> 2
	d.UpStream = v&0x02 != 0
	if d.BufferSizeDB, err = r.U24(); err != nil {
		return
	}
	if d.MaxBitrate, err = r.U32(); err != nil {
		return
	}
	if d.AvgBitrate, err = r.U32(); err != nil {
		return
	}
	for r.Len() > 0 {
		tag, size, body, herr := readDescriptorHeader(r)
		if herr != nil {
			return herr
		}
		if tag == TagDecoderSpecificInfo && d.DecSpecificInfo == nil {
			d.DecSpecificInfo = &DecoderSpecificInfo{LenSize: size, Data: body.ExtractRemaining()}
			continue
		}
		d.Extra = append(d.Extra, decodeRaw(tag, size, body))
	}
	return nil
}

// Len returns the encoded length of the descriptor including tag and length.
func (d *SLConfigDescriptor) Len() int {
	return descriptorLen(1+len(d.Data), d.LenSize)
}

// Marshal writes the descriptor to b.
func (d *SLConfigDescriptor) Marshal(b []byte) (n int) {
	n = putDescriptorHeader(b, TagSLConfigDescriptor, 1+len(d.Data), d.LenSize)
	b[n] = d.Predefined
	n++
	return n + copy(b[n:], d.Data)
}
