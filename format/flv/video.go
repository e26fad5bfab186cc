package flv

import (
	"errors"
	"fmt"
	"io"

	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/codec/av1"
	"github.com/ugparu/bmff/codec/h264"
	"github.com/ugparu/bmff/codec/h265"
)

// VideoCodecID is the codec nibble of a legacy video tag.
type VideoCodecID uint8

const (
	VideoCodecJPEG         VideoCodecID = 1
	VideoCodecH263         VideoCodecID = 2
	VideoCodecScreenVideo  VideoCodecID = 3
	VideoCodecVP6          VideoCodecID = 4
	VideoCodecVP6Alpha     VideoCodecID = 5
	VideoCodecScreenVideo2 VideoCodecID = 6
	VideoCodecAVC          VideoCodecID = 7
	// VideoCodecHEVC is the id used for H.265 by servers that predate the
	// enhanced header.
	VideoCodecHEVC VideoCodecID = 12
)

// AVCPacketType follows the legacy header for AVC and HEVC tags.
type AVCPacketType uint8

const (
	AVCSequenceHeader AVCPacketType = 0
	AVCNALU           AVCPacketType = 1
	AVCEndOfSequence  AVCPacketType = 2
)

// PacketType is the packet nibble of an enhanced video tag.
type PacketType uint8

const (
	PacketTypeSequenceStart        PacketType = 0
	PacketTypeCodedFrames          PacketType = 1
	PacketTypeSequenceEnd          PacketType = 2
	PacketTypeCodedFramesX         PacketType = 3
	PacketTypeMetadata             PacketType = 4
	PacketTypeMPEG2TSSequenceStart PacketType = 5
	PacketTypeMultitrack           PacketType = 6
)

func (p PacketType) String() string {
	switch p {
	case PacketTypeSequenceStart:
		return "SequenceStart"
	case PacketTypeCodedFrames:
		return "CodedFrames"
	case PacketTypeSequenceEnd:
		return "SequenceEnd"
	case PacketTypeCodedFramesX:
		return "CodedFramesX"
	case PacketTypeMetadata:
		return "Metadata"
	case PacketTypeMPEG2TSSequenceStart:
		return "MPEG2TSSequenceStart"
	case PacketTypeMultitrack:
		return "Multitrack"
	}
	return fmt.Sprintf("PacketType(%d)", uint8(p))
}

// FourCC values of enhanced video tags.
const (
	FourCCAVC  = "avc1"
	FourCCHEVC = "hvc1"
	FourCCAV1  = "av01"
	FourCCVP9  = "vp09"
)

// VideoCommand is the single body byte of a command frame.
type VideoCommand uint8

const (
	VideoCommandStartSeek VideoCommand = 0
	VideoCommandEndSeek   VideoCommand = 1
)

const (
	enhancedBit    = 0x80
	fourCCLen      = 4
	compositionLen = 3
)

var errVideoNotSequenceHeader = errors.New("flv: video tag is not a sequence header")

// VideoData is the body of a video tag, in either the legacy layout
// (frame:4 codec:4) or the enhanced one (1 frame:3 packet:4 fourcc).
type VideoData struct {
	FrameType bmff.FrameType
	Enhanced  bool

	// Legacy header.
	CodecID       VideoCodecID
	AVCPacketType AVCPacketType

	// Enhanced header.
	PacketType PacketType
	FourCC     string

	// CompositionTime is the signed presentation offset in milliseconds,
	// present for legacy AVC/HEVC packets and enhanced avc1/hvc1 CodedFrames.
	CompositionTime int32
	Command         VideoCommand
	Data            []byte
}

func (v *VideoData) isCommand() bool {
	if v.FrameType != bmff.CommandFrame {
		return false
	}
	return !v.Enhanced || v.PacketType != PacketTypeMetadata
}

func (v *VideoData) hasCompositionTime() bool {
	if v.Enhanced {
		return v.PacketType == PacketTypeCodedFrames && (v.FourCC == FourCCAVC || v.FourCC == FourCCHEVC)
	}
	return v.hasAVCPacketType()
}

func (v *VideoData) hasAVCPacketType() bool {
	return !v.Enhanced && (v.CodecID == VideoCodecAVC || v.CodecID == VideoCodecHEVC)
}

func (v *VideoData) Unmarshal(b []byte) (n int, err error) {
	if len(b) < 1 {
		return 0, io.ErrUnexpectedEOF
	}
	v.Enhanced = b[0]&enhancedBit != 0
	if v.Enhanced {
		v.FrameType = bmff.FrameType((b[0] >> 4) & 0x07)
		v.PacketType = PacketType(b[0] & 0x0f)
		if v.PacketType == PacketTypeMultitrack {
			return 0, fmt.Errorf("flv: multitrack video: %w", errors.ErrUnsupported)
		}
	} else {
		v.FrameType = bmff.FrameType(b[0] >> 4)
		v.CodecID = VideoCodecID(b[0] & 0x0f)
	}
	n = 1

	if v.isCommand() {
		if len(b) < n+1 {
			return 0, fmt.Errorf("flv: video command: %w", io.ErrUnexpectedEOF)
		}
		v.Command = VideoCommand(b[n])
		return len(b), nil
	}

	if v.Enhanced {
		if len(b) < n+fourCCLen {
			return 0, fmt.Errorf("flv: video fourcc: %w", io.ErrUnexpectedEOF)
		}
		v.FourCC = string(b[n : n+fourCCLen])
		n += fourCCLen
	} else if v.hasAVCPacketType() {
		if len(b) < n+1 {
			return 0, fmt.Errorf("flv: avc packet type: %w", io.ErrUnexpectedEOF)
		}
		v.AVCPacketType = AVCPacketType(b[n])
		n++
	}

	if v.hasCompositionTime() {
		if len(b) < n+compositionLen {
			return 0, fmt.Errorf("flv: composition time: %w", io.ErrUnexpectedEOF)
		}
		v.CompositionTime = pio.I24BE(b[n:])
		n += compositionLen
	}

	v.Data = b[n:len(b):len(b)]
	return len(b), nil
}

func (v *VideoData) Len() int {
	n := 1
	if v.isCommand() {
		return n + 1
	}
	if v.Enhanced {
		n += fourCCLen
	} else if v.hasAVCPacketType() {
		n++
	}
	if v.hasCompositionTime() {
		n += compositionLen
	}
	return n + len(v.Data)
}

func (v *VideoData) Marshal(b []byte) (n int) {
	if v.Enhanced {
		b[0] = enhancedBit | byte(v.FrameType&0x07)<<4 | byte(v.PacketType&0x0f)
	} else {
		b[0] = byte(v.FrameType)<<4 | byte(v.CodecID&0x0f)
	}
	n = 1
	if v.isCommand() {
		b[n] = byte(v.Command)
		return n + 1
	}
	if v.Enhanced {
		copy(b[n:n+fourCCLen], v.FourCC)
		n += fourCCLen
	} else if v.hasAVCPacketType() {
		b[n] = byte(v.AVCPacketType)
		n++
	}
	if v.hasCompositionTime() {
		pio.PutI24BE(b[n:], v.CompositionTime)
		n += compositionLen
	}
	n += copy(b[n:], v.Data)
	return
}

// Codec returns the codec carried by the tag, or zero for codecs the
// transmuxer does not handle.
func (v *VideoData) Codec() bmff.CodecType {
	if v.Enhanced {
		switch v.FourCC {
		case FourCCAVC:
			return bmff.H264
		case FourCCHEVC:
			return bmff.H265
		case FourCCAV1:
			return bmff.AV1
		}
		return 0
	}
	switch v.CodecID {
	case VideoCodecAVC:
		return bmff.H264
	case VideoCodecHEVC:
		return bmff.H265
	}
	return 0
}

// IsSequenceHeader reports whether Data holds a decoder configuration record.
func (v *VideoData) IsSequenceHeader() bool {
	if v.isCommand() {
		return false
	}
	if v.Enhanced {
		return v.PacketType == PacketTypeSequenceStart
	}
	return v.hasAVCPacketType() && v.AVCPacketType == AVCSequenceHeader
}

// IsCodedFrame reports whether Data holds a coded picture.
func (v *VideoData) IsCodedFrame() bool {
	if v.isCommand() {
		return false
	}
	if v.Enhanced {
		return v.PacketType == PacketTypeCodedFrames || v.PacketType == PacketTypeCodedFramesX
	}
	return !v.hasAVCPacketType() || v.AVCPacketType == AVCNALU
}

// AVCConfig decodes the avcC record of an H.264 sequence header.
func (v *VideoData) AVCConfig() (rec h264.AVCDecoderConfRecord, err error) {
	if !v.IsSequenceHeader() || v.Codec() != bmff.H264 {
		return rec, errVideoNotSequenceHeader
	}
	if _, err = rec.Unmarshal(v.Data); err != nil {
		return rec, fmt.Errorf("flv: avc sequence header: %w", err)
	}
	return
}

// HEVCConfig decodes the hvcC record of an H.265 sequence header.
func (v *VideoData) HEVCConfig() (rec h265.HEVCDecoderConfRecord, err error) {
	if !v.IsSequenceHeader() || v.Codec() != bmff.H265 {
		return rec, errVideoNotSequenceHeader
	}
	if _, err = rec.Unmarshal(v.Data); err != nil {
		return rec, fmt.Errorf("flv: hevc sequence header: %w", err)
	}
	return
}

// AV1Config decodes the av1C record of an AV1 sequence start.
func (v *VideoData) AV1Config() (rec av1.CodecConfigurationRecord, err error) {
	if !v.IsSequenceHeader() || v.Codec() != bmff.AV1 {
		return rec, errVideoNotSequenceHeader
	}
	if _, err = rec.Unmarshal(v.Data); err != nil {
		return rec, fmt.Errorf("flv: av1 sequence header: %w", err)
	}
	return
}
