package h264

// NaluCodedIDR represents the Network Abstraction Layer Unit (NALU) type for
// Coded IDR (Instantaneous Decoding Refresh).
const NaluCodedIDR = 5

// NaluSPS represents the Network Abstraction Layer Unit (NALU) type for Sequence Parameter Set.
const NaluSPS = 7

// NaluPPS represents the Network Abstraction Layer Unit (NALU) type for Picture Parameter Set.
const NaluPPS = 8

// Common magic numbers used in the package
const (
	// Bit masks
	maskLengthSizeMinusOne    = 0x03
	maskSPSCount              = 0x1f
	maskLengthSizeMinusOneInv = 0xfc
	maskSPSCountInv           = 0xe0
	maskChromaFormat          = 0x03
	maskChromaFormatInv       = 0xfc
	maskBitDepth              = 0x07
	maskBitDepthInv           = 0xf8
	maskNaluType              = 0x1f

	// Profiles without the record extension
	profileBaseline = 66
	profileMain     = 77
	profileExtended = 88

	// Scaling values
	defaultScaleValue = 8
	maxScaleValue     = 256

	// Chroma format values
	chromaFormat420 = 1
	chromaFormat444 = 3

	// Scaling list sizes
	scalingListSizeSmall = 16
	scalingListSizeLarge = 64
	scalingListThreshold = 6

	// Aspect ratio values
	aspectRatioExtended = 255

	// Bit depth is coded minus 8
	bitDepthBase = 8

	// Macroblock size
	mbSize = 16

	// Length field size in AVCDecoderConfRecord
	lengthFieldSize = 2
)

// ColorConfig is the colour description of the VUI.
type ColorConfig struct {
	FullRange               bool
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
}

// SPSInfo represents information extracted from Sequence Parameter Sets (SPS) in a video stream.
type SPSInfo struct {
	ID                uint // Identifier for the SPS.
	ProfileIDC        uint // Profile identifier for the SPS.
	LevelIDC          uint // Level identifier for the SPS.
	ConstraintSetFlag uint // Constraint set flag for the SPS.
	ChromaFormat      uint // chroma_format_idc, 1 when absent.
	BitDepthLuma      uint
	BitDepthChroma    uint

	MbWidth  uint // Width of macroblocks in the SPS.
	MbHeight uint // Height of macroblocks in the SPS.

	CropLeft   uint // Left cropping value for the SPS.
	CropRight  uint // Right cropping value for the SPS.
	CropTop    uint // Top cropping value for the SPS.
	CropBottom uint // Bottom cropping value for the SPS.

	Width  uint // Width of the video frame.
	Height uint // Height of the video frame.

	SarWidth  uint // Sample aspect ratio, 0 when not signalled.
	SarHeight uint

	// Color is nil when the VUI carries no colour description.
	Color *ColorConfig

	NumUnitsInTick uint32
	TimeScale      uint32
	FPS            float64 // Frames per second from the VUI timing info, 0 when absent.
}

// NaluType returns the type of an H.264 NAL unit.
func NaluType(nalu []byte) uint8 {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & maskNaluType
}
