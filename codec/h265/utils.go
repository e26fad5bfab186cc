package h265

// NAL unit types used by the configuration record and the transmuxer.
const (
	NalUnitCodedSliceTrailR    = 1
	NalUnitCodedSliceBlaWLp    = 16
	NalUnitCodedSliceIdrWRadl  = 19
	NalUnitCodedSliceIdrNLp    = 20
	NalUnitCodedSliceCra       = 21
	NalUnitVps                 = 32
	NalUnitSps                 = 33
	NalUnitPps                 = 34
	NalUnitAccessUnitDelimiter = 35
	NalUnitPrefixSei           = 39
	NalUnitSuffixSei           = 40

	MaxSubLayers = 7

	bitDepthBase = 8
)

// ColorConfig is the video signal type of the VUI.
type ColorConfig struct {
	VideoFormat             uint8
	FullRange               bool
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
}

type SPSInfo struct {
	ID                               uint
	Width                            uint // Cropped by the conformance window.
	Height                           uint
	NumTemporalLayers                uint
	TemporalIDNested                 uint
	ChromaFormat                     uint
	SeparateColourPlane              bool
	PicWidthInLumaSamples            uint
	PicHeightInLumaSamples           uint
	ConfWinLeft                      uint
	ConfWinRight                     uint
	ConfWinTop                       uint
	ConfWinBottom                    uint
	BitDepthLuma                     uint
	BitDepthChroma                   uint
	GeneralProfileSpace              uint
	GeneralTierFlag                  uint
	GeneralProfileIDC                uint
	GeneralProfileCompatibilityFlags uint32
	GeneralConstraintIndicatorFlags  uint64
	GeneralLevelIDC                  uint

	// Color is set whenever the SPS carries VUI. Without a video signal
	// type it holds the unspecified defaults.
	Color *ColorConfig

	NumUnitsInTick uint32
	TimeScale      uint32
	FPS            float64 // time_scale / num_units_in_tick, 0 without timing info.
}

// NaluType returns the type of an H.265 NAL unit.
func NaluType(nalu []byte) uint8 {
	if len(nalu) == 0 {
		return 0
	}
	return (nalu[0] >> 1) & 0x3f //nolint:mnd
}
