// Package transmuxer turns FLV tags into a fragmented MP4 stream: one init
// segment followed by one moof/mdat media segment per sample.
package transmuxer

import (
	"math"

	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/format/isobmff"
)

const (
	videoTrackID uint32 = 1
	audioTrackID uint32 = 2

	movieTimescale = 1000
	// frameTicks is the duration of one frame in the video timescale,
	// which runs at fps*1000.
	frameTicks = 1000
	// aacFrameSamples is the number of PCM samples in one AAC frame.
	aacFrameSamples = 1024
	// maxPendingTags bounds how long Mux waits for sequence headers.
	maxPendingTags = 30
	// bitrateUnit converts onMetaData data rates in kbit/s to bit/s.
	bitrateUnit = 1024

	videoHandlerName = "VideoHandler"
	soundHandlerName = "SoundHandler"
)

const (
	audioTrunFlags = isobmff.TrunDataOffsetPresent | isobmff.TrunSampleDurationPresent |
		isobmff.TrunSampleSizePresent | isobmff.TrunSampleFlagsPresent
	videoTrunFlags = audioTrunFlags | isobmff.TrunSampleCompositionTimeOffsetsPresent
)

// TrackSettings describes one track of the init segment.
type TrackSettings struct {
	TrackID   uint32
	Codec     bmff.CodecType
	Timescale uint32
	// Bitrate is in bit/s, zero when onMetaData does not carry it.
	Bitrate uint32

	Width     uint
	Height    uint
	FrameRate float64

	SampleRate int
	Channels   uint8

	codec string
}

// CodecString returns the RFC 6381 codec parameter of the track, for example
// avc1.64001f or mp4a.40.2.
func (s *TrackSettings) CodecString() string {
	return s.codec
}

// InitSegment is ftyp followed by moov. Video and Audio are nil for tracks
// the stream does not carry.
type InitSegment struct {
	Video *TrackSettings
	Audio *TrackSettings
	Data  []byte
}

// MediaSegment is one moof/mdat pair holding a single sample. Timestamp is
// the decode time of the sample in the track timescale.
type MediaSegment struct {
	Type      bmff.MediaType
	Keyframe  bool
	Timestamp uint64
	Data      []byte
}

// Result holds exactly one of Init and Media.
type Result struct {
	Init  *InitSegment
	Media *MediaSegment
}

// AudioInfo is what the FLV audio header says about the AAC stream.
type AudioInfo struct {
	Channels   uint8
	SampleSize uint16
	Bitrate    uint32
}

func sampleFlags(frame bmff.FrameType) isobmff.SampleFlags {
	if frame.IsKey() {
		return isobmff.NewSampleFlags(isobmff.DependsOnNone, false)
	}
	return isobmff.NewSampleFlags(isobmff.DependsOnOthers, true)
}

func visualSize(width, height uint) (uint16, uint16, error) {
	if width == 0 || height == 0 || width > math.MaxUint16 || height > math.MaxUint16 {
		return 0, 0, InvalidVideoDimensionsError{Width: width, Height: height}
	}
	return uint16(width), uint16(height), nil
}

func squarePixels() *isobmff.PixelAspectRatioBox {
	return &isobmff.PixelAspectRatioBox{HSpacing: 1, VSpacing: 1}
}

func aspectRatio(sarWidth, sarHeight uint) *isobmff.PixelAspectRatioBox {
	if sarWidth == 0 || sarHeight == 0 {
		return squarePixels()
	}
	return &isobmff.PixelAspectRatioBox{HSpacing: uint32(sarWidth), VSpacing: uint32(sarHeight)} //nolint:gosec // 16 bit in the VUI
}
