// Package bmff holds the types shared by the codec, container and transmux
// packages.
package bmff

// CodecType represents the type of a codec carried by a track.
type CodecType uint32

// codecTypeMagic is a magic number used to create unique codec types.
const codecTypeMagic = 233333

// makeAudioCodecType creates an audio CodecType based on the provided base.
func makeAudioCodecType(base uint32) (c CodecType) {
	c = CodecType(base)<<codecTypeOtherBits | CodecType(codecTypeAudioBit)
	return
}

// makeVideoCodecType creates a video CodecType based on the provided base.
func makeVideoCodecType(base uint32) (c CodecType) {
	c = CodecType(base) << codecTypeOtherBits
	return
}

// Codecs understood by the transmuxer.
var (
	H264 = makeVideoCodecType(codecTypeMagic + 1) //nolint:mnd
	H265 = makeVideoCodecType(codecTypeMagic + 2) //nolint:mnd
	AV1  = makeVideoCodecType(codecTypeMagic + 6) //nolint:mnd
	AAC  = makeAudioCodecType(codecTypeMagic + 1) //nolint:mnd
)

// Bitwise flags for codec types.
const (
	codecTypeAudioBit  = 0x1
	codecTypeOtherBits = 1
)

// String returns the human-readable string representation of a CodecType.
func (ct CodecType) String() string {
	switch ct {
	case H264:
		return "H264"
	case H265:
		return "H265"
	case AV1:
		return "AV1"
	case AAC:
		return "AAC"
	}
	return "UNKNOWN"
}

// IsAudio returns true if the CodecType represents an audio codec.
func (ct CodecType) IsAudio() bool {
	return ct&codecTypeAudioBit != 0
}

// IsVideo returns true if the CodecType represents a video codec.
func (ct CodecType) IsVideo() bool {
	return ct&codecTypeAudioBit == 0
}

// FourCC returns the sample entry type used for the codec in fragmented MP4.
func (ct CodecType) FourCC() string {
	switch ct {
	case H264:
		return "avc1"
	case H265:
		return "hev1"
	case AV1:
		return "av01"
	case AAC:
		return "mp4a"
	}
	return ""
}
