package transmuxer

import (
	"bytes"
	"errors"
	"math"

	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/codec/aac"
	"github.com/ugparu/bmff/format/flv"
	"github.com/ugparu/bmff/format/isobmff"
	"github.com/ugparu/bmff/utils/logger"
	"github.com/ugparu/bmff/utils/nal"
)

// Transmuxer converts a queue of FLV tags into fragmented MP4. It is not safe
// for concurrent use.
type Transmuxer struct {
	header *flv.Header
	tags   []flv.Tag
	meta   flv.Metadata

	init *InitSegment
	fps  float64

	sequence    uint32
	videoTime   uint64
	audioTime   uint64
	lastVideoTS uint32
}

// New returns an empty transmuxer.
func New() *Transmuxer {
	return &Transmuxer{}
}

func (t *Transmuxer) String() string {
	return "TRANSMUXER"
}

// Demux parses data as FLV, optionally starting with the file header, and
// queues its tags. A header tells Mux which streams to wait for.
func (t *Transmuxer) Demux(data []byte) error {
	hdr, tags, err := flv.ReadTags(data)
	if err != nil {
		return err
	}
	if hdr != nil {
		t.header = hdr
	}
	logger.Tracef(t, "demuxed %d tags from %d bytes", len(tags), len(data))
	t.tags = append(t.tags, tags...)
	return nil
}

// SetHeader tells Mux which streams to wait for.
func (t *Transmuxer) SetHeader(h flv.Header) {
	t.header = &h
}

// AddTag queues one tag.
func (t *Transmuxer) AddTag(tag flv.Tag) {
	t.tags = append(t.tags, tag)
}

// Pending returns the number of queued tags.
func (t *Transmuxer) Pending() int {
	return len(t.tags)
}

// Init returns the init segment once it was produced.
func (t *Transmuxer) Init() *InitSegment {
	return t.init
}

// Mux returns the next segment. The first one is the init segment, written
// as soon as the sequence headers are queued; every later call returns one
// media segment. Mux returns nil, nil when more tags are needed.
func (t *Transmuxer) Mux() (*Result, error) {
	if t.init == nil {
		init, err := t.initSegment()
		if err != nil || init == nil {
			return nil, err
		}
		t.init = init
		logger.Debugf(t, "init segment of %d bytes", len(init.Data))
		return &Result{Init: init}, nil
	}

	for len(t.tags) > 0 {
		tag := t.tags[0]
		t.tags = t.tags[1:]

		var media *MediaSegment
		var err error
		switch tag.Type {
		case flv.TagAudio:
			media = t.muxAudio(&tag)
		case flv.TagVideo:
			media, err = t.muxVideo(&tag)
		default:
			logger.Tracef(t, "skipping %s tag at %d ms", tag.Type, tag.Timestamp)
		}
		if err != nil {
			return nil, err
		}
		if media != nil {
			logger.Debugf(t, "%s segment %d of %d bytes at %d", media.Type, t.sequence, len(media.Data), media.Timestamp)
			return &Result{Media: media}, nil
		}
	}
	t.tags = nil
	return nil, nil
}

func (t *Transmuxer) wants() (video, audio bool) {
	if t.header == nil {
		return true, true
	}
	return t.header.HasVideo, t.header.HasAudio
}

func (t *Transmuxer) initSegment() (*InitSegment, error) {
	var video *flv.VideoData
	var audio, adts *flv.AudioData
	for i := range t.tags {
		tag := &t.tags[i]
		switch tag.Type {
		case flv.TagScript:
			if s, err := tag.Script(); err == nil {
				if m, ok := s.Metadata(); ok {
					t.meta = m
				}
			}
		case flv.TagVideo:
			if v, err := tag.Video(); err == nil && video == nil && v.IsSequenceHeader() && v.Codec() != 0 {
				video = &v
			}
		case flv.TagAudio:
			a, err := tag.Audio()
			if err != nil || audio != nil {
				break
			}
			if a.IsSequenceHeader() {
				audio = &a
			} else if adts == nil {
				adts = adtsSequenceHeader(&a)
			}
		}
	}
	if audio == nil && adts != nil {
		logger.Debugf(t, "no AAC sequence header, using the ADTS header")
		audio = adts
	}

	wantVideo, wantAudio := t.wants()
	if (wantVideo && video == nil) || (wantAudio && audio == nil) || (video == nil && audio == nil) {
		if len(t.tags) > maxPendingTags {
			return nil, NoSequenceHeadersError{Tags: len(t.tags)}
		}
		return nil, nil
	}

	init := &InitSegment{}
	ftyp := &isobmff.FileTypeBox{
		MajorBrand:       isobmff.BrandIso5,
		MinorVersion:     512, //nolint:mnd
		CompatibleBrands: []isobmff.Brand{isobmff.BrandIso5, isobmff.BrandIso6},
	}
	moov := &isobmff.MovieBox{
		Mvhd: isobmff.MovieHeaderBox{
			Timescale:   movieTimescale,
			Rate:        0x00010000, //nolint:mnd
			Volume:      0x0100,     //nolint:mnd
			Matrix:      isobmff.UnityMatrix,
			NextTrackID: audioTrackID + 1,
		},
		Mvex: &isobmff.MovieExtendsBox{},
	}

	if video != nil {
		settings, entry, err := t.videoTrack(video)
		if err != nil {
			return nil, err
		}
		init.Video = settings
		ftyp.CompatibleBrands = append(ftyp.CompatibleBrands, videoBrand(settings.Codec))
		moov.Trak = append(moov.Trak, videoTrak(settings, entry))
		moov.Mvex.Trex = append(moov.Mvex.Trex, isobmff.NewTrackExtendsBox(videoTrackID))
	}
	if audio != nil {
		settings, entry, err := t.audioTrack(audio)
		if err != nil {
			return nil, err
		}
		init.Audio = settings
		moov.Trak = append(moov.Trak, audioTrak(settings, entry))
		moov.Mvex.Trex = append(moov.Mvex.Trex, isobmff.NewTrackExtendsBox(audioTrackID))
	}
	ftyp.CompatibleBrands = append(ftyp.CompatibleBrands, isobmff.BrandMp41)

	init.Data = make([]byte, isobmff.Len(ftyp)+isobmff.Len(moov))
	n := isobmff.Marshal(init.Data, ftyp)
	isobmff.Marshal(init.Data[n:], moov)
	return init, nil
}

func (t *Transmuxer) videoTrack(v *flv.VideoData) (*TrackSettings, isobmff.Box, error) {
	settings := &TrackSettings{
		TrackID:   videoTrackID,
		Codec:     v.Codec(),
		FrameRate: t.meta.FrameRate,
		Bitrate:   uint32(t.meta.VideoDataRate * bitrateUnit),
	}

	var entry isobmff.Box
	switch settings.Codec {
	case bmff.H264:
		rec, err := v.AVCConfig()
		if err != nil {
			return nil, nil, InvalidAVCDecoderConfigurationRecordError{Err: err}
		}
		e, info, err := AVCStsdEntry(rec)
		if err != nil {
			return nil, nil, err
		}
		if info.FPS > 0 {
			settings.FrameRate = info.FPS
		}
		entry, settings.Width, settings.Height, settings.codec = e, info.Width, info.Height, rec.CodecString()
	case bmff.H265:
		rec, err := v.HEVCConfig()
		if err != nil {
			return nil, nil, InvalidHEVCDecoderConfigurationRecordError{Err: err}
		}
		e, info, err := HEVCStsdEntry(rec)
		if err != nil {
			return nil, nil, err
		}
		if info.FPS > 0 {
			settings.FrameRate = info.FPS
		}
		entry, settings.Width, settings.Height, settings.codec = e, info.Width, info.Height, rec.CodecString()
	case bmff.AV1:
		rec, err := v.AV1Config()
		if err != nil {
			return nil, nil, InvalidAV1DecoderConfigurationRecordError{Err: err}
		}
		e, seq, err := AV1StsdEntry(rec)
		if err != nil {
			return nil, nil, err
		}
		if tm := seq.Timing; tm != nil && tm.NumUnitsInDisplayTick > 0 {
			settings.FrameRate = float64(tm.TimeScale) / float64(tm.NumUnitsInDisplayTick)
		}
		entry, settings.Width, settings.Height = e, uint(seq.MaxFrameWidth), uint(seq.MaxFrameHeight)
		settings.codec = seq.CodecString()
	}

	if settings.FrameRate <= 0 || math.IsInf(settings.FrameRate, 0) || math.IsNaN(settings.FrameRate) {
		return nil, nil, InvalidVideoFrameRateError{}
	}
	t.fps = settings.FrameRate
	settings.Timescale = uint32(math.Round(settings.FrameRate * frameTicks))
	return settings, entry, nil
}

func (t *Transmuxer) audioTrack(a *flv.AudioData) (*TrackSettings, isobmff.Box, error) {
	info := NewAudioInfo(a, uint32(t.meta.AudioDataRate*bitrateUnit))
	entry, cfg, err := AACStsdEntry(info, a.Data)
	if err != nil {
		return nil, nil, err
	}
	return &TrackSettings{
		TrackID:    audioTrackID,
		Codec:      bmff.AAC,
		Timescale:  uint32(cfg.SampleRate), //nolint:gosec
		Bitrate:    info.Bitrate,
		SampleRate: cfg.SampleRate,
		Channels:   info.Channels,
		codec:      cfg.CodecString(),
	}, entry, nil
}

func videoBrand(codec bmff.CodecType) isobmff.Brand {
	switch codec {
	case bmff.H265:
		return isobmff.BrandHev1
	case bmff.AV1:
		return isobmff.BrandAv01
	}
	return isobmff.BrandAvc1
}

func newTrak(settings *TrackSettings, handler isobmff.FourCC, name string, entry isobmff.Box) isobmff.TrackBox {
	return isobmff.TrackBox{
		Tkhd: isobmff.TrackHeaderBox{
			FullBoxHeader: isobmff.FullBoxHeader{Flags: isobmff.TrackEnabled | isobmff.TrackInMovie},
			TrackID:       settings.TrackID,
			Matrix:        isobmff.UnityMatrix,
		},
		Mdia: isobmff.MediaBox{
			Mdhd: isobmff.MediaHeaderBox{Timescale: settings.Timescale, Language: isobmff.LanguageUndetermined},
			Hdlr: isobmff.HandlerBox{HandlerType: handler, Name: name},
			Minf: isobmff.MediaInformationBox{
				Dinf: isobmff.NewSelfContainedDataInformation(),
				Stbl: isobmff.SampleTableBox{
					Stsd: isobmff.SampleDescriptionBox{Entries: []isobmff.Box{entry}},
					Stsz: &isobmff.SampleSizeBox{},
					Stco: &isobmff.ChunkOffsetBox{},
				},
			},
		},
	}
}

func videoTrak(settings *TrackSettings, entry isobmff.Box) isobmff.TrackBox {
	trak := newTrak(settings, isobmff.HandlerVideo, videoHandlerName, entry)
	trak.Tkhd.Width = uint32(settings.Width) << 16   //nolint:gosec,mnd // 16.16
	trak.Tkhd.Height = uint32(settings.Height) << 16 //nolint:gosec,mnd
	trak.Mdia.Minf.Vmhd = isobmff.NewVideoMediaHeader()
	return trak
}

func audioTrak(settings *TrackSettings, entry isobmff.Box) isobmff.TrackBox {
	trak := newTrak(settings, isobmff.HandlerSound, soundHandlerName, entry)
	trak.Tkhd.Volume = 0x0100 //nolint:mnd
	trak.Mdia.Minf.Smhd = &isobmff.SoundMediaHeaderBox{}
	return trak
}

func (t *Transmuxer) muxAudio(tag *flv.Tag) *MediaSegment {
	a, err := tag.Audio()
	if err != nil {
		logger.Tracef(t, "skipping audio tag at %d ms: %v", tag.Timestamp, err)
		return nil
	}
	if t.init.Audio == nil || a.Format != flv.SoundFormatAAC || a.AACPacketType != flv.AACRaw {
		return nil
	}

	data := a.Data
	if aac.IsADTS(data) {
		if h, err := aac.ParseADTSHeader(data); err == nil {
			data = h.Payload(data)
		}
	}
	sample := AACTrunSample(data)
	media := &MediaSegment{
		Type:      bmff.Audio,
		Keyframe:  true,
		Timestamp: t.audioTime,
		Data:      t.fragment(audioTrackID, t.audioTime, sample, audioTrunFlags, data),
	}
	t.audioTime += uint64(sample.Duration)
	return media
}

// adtsSequenceHeader derives an AAC sequence header from the ADTS header of a
// raw frame. Some encoders send ADTS frames and no sequence header.
func adtsSequenceHeader(a *flv.AudioData) *flv.AudioData {
	if a.Format != flv.SoundFormatAAC || a.AACPacketType != flv.AACRaw || !aac.IsADTS(a.Data) {
		return nil
	}
	h, err := aac.ParseADTSHeader(a.Data)
	if err != nil {
		return nil
	}
	var buf bytes.Buffer
	if err = aac.WriteMPEG4AudioConfig(&buf, h.Config); err != nil {
		return nil
	}
	seq := *a
	seq.AACPacketType = flv.AACSequenceHeader
	seq.Data = buf.Bytes()
	return &seq
}

func (t *Transmuxer) muxVideo(tag *flv.Tag) (*MediaSegment, error) {
	v, err := tag.Video()
	if errors.Is(err, errors.ErrUnsupported) {
		logger.Tracef(t, "skipping video tag at %d ms: %v", tag.Timestamp, err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	track := t.init.Video
	if track == nil || !v.IsCodedFrame() || v.Codec() != track.Codec {
		return nil, nil
	}

	duration := t.videoDuration(tag.Timestamp)
	var sample isobmff.TrackRunSample
	data := v.Data
	flags := uint32(videoTrunFlags)
	switch track.Codec {
	case bmff.H264:
		data = nal.ToAVCC(data)
		sample = AVCTrunSample(v.FrameType, uint32(max(t.compositionTime(v.CompositionTime), 0)), duration, data) //nolint:gosec
	case bmff.H265:
		data = nal.ToAVCC(data)
		var cts int32
		// CodedFramesX is CodedFrames with an implied zero offset.
		if v.PacketType != flv.PacketTypeCodedFramesX {
			cts = int32(t.compositionTime(v.CompositionTime)) //nolint:gosec
		}
		sample = HEVCTrunSample(v.FrameType, cts, duration, data)
	case bmff.AV1:
		sample = AV1TrunSample(v.FrameType, duration, data)
		flags = audioTrunFlags
	}

	media := &MediaSegment{
		Type:      bmff.Video,
		Keyframe:  v.FrameType.IsKey(),
		Timestamp: t.videoTime,
		Data:      t.fragment(videoTrackID, t.videoTime, sample, flags, data),
	}
	t.videoTime += uint64(duration)
	return media, nil
}

// videoDuration derives the sample duration in the video timescale from the
// tag timestamp delta. Deltas within a millisecond of the nominal frame
// period, the first frame and timestamp jumps backwards all count as one
// frame.
func (t *Transmuxer) videoDuration(ts uint32) uint32 {
	last := t.lastVideoTS
	t.lastVideoTS = ts
	if last == 0 || ts == 0 || ts < last {
		return frameTicks
	}
	delta := float64(ts - last)
	if math.Abs(delta-1000/t.fps) <= 1 {
		return frameTicks
	}
	return uint32(delta * t.fps)
}

// compositionTime converts a millisecond offset to whole frames in the video
// timescale.
func (t *Transmuxer) compositionTime(ms int32) int64 {
	return int64(math.Floor(float64(ms)*t.fps/frameTicks) * frameTicks)
}

// fragment writes a moof with a single one sample run followed by the mdat
// holding payload.
func (t *Transmuxer) fragment(trackID uint32, baseTime uint64, sample isobmff.TrackRunSample, flags uint32, payload []byte) []byte {
	t.sequence++
	moof := &isobmff.MovieFragmentBox{
		Mfhd: isobmff.MovieFragmentHeaderBox{SequenceNumber: t.sequence},
		Traf: []isobmff.TrackFragmentBox{{
			Tfhd: isobmff.TrackFragmentHeaderBox{TrackID: trackID},
			Tfdt: isobmff.NewTrackFragmentBaseMediaDecodeTimeBox(baseTime),
			Trun: []isobmff.TrackRunBox{*isobmff.NewTrackRunBox([]isobmff.TrackRunSample{sample}, flags)},
		}},
	}
	mdat := &isobmff.MediaDataBox{Data: payload}

	moofLen, mdatLen := isobmff.Len(moof), isobmff.Len(mdat)
	// The offset is relative to the moof start and points past the mdat
	// header.
	moof.Traf[0].Trun[0].DataOffset = int32(moofLen + mdatLen - len(payload)) //nolint:gosec

	b := make([]byte, moofLen+mdatLen)
	n := isobmff.Marshal(b, moof)
	isobmff.Marshal(b[n:], mdat)
	return b
}
