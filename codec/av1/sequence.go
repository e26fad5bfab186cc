package av1

import (
	"bytes"
	"fmt"

	"github.com/ugparu/bmff/utils/bits"
)

// Color description values meaning "unspecified" and the sRGB triple.
const (
	cpBT709       = 1
	cpUnspecified = 2
	tcUnspecified = 2
	tcSRGB        = 13
	mcIdentity    = 0
	mcUnspecified = 2

	selectScreenContentTools = 2
	selectIntegerMV          = 2
)

// OperatingPoint holds the per operating point fields of a sequence header.
type OperatingPoint struct {
	IDC                        uint16
	SeqLevelIdx                uint8
	SeqTier                    bool
	DecoderModelPresent        bool
	InitialDisplayDelayPresent bool
	InitialDisplayDelayMinus1  uint8
}

// ColorConfig is the color_config syntax of a sequence header.
type ColorConfig struct {
	HighBitdepth            bool
	TwelveBit               bool
	BitDepth                uint8
	MonoChrome              bool
	ColorDescriptionPresent bool
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	FullColorRange          bool
	SubsamplingX            bool
	SubsamplingY            bool
	ChromaSamplePosition    uint8
	SeparateUVDeltaQ        bool
}

// TimingInfo is present in few streams; frame rate normally comes from the
// container.
type TimingInfo struct {
	NumUnitsInDisplayTick   uint32
	TimeScale               uint32
	EqualPictureInterval    bool
	NumTicksPerPictureMinus uint32
}

// SequenceHeader is a parsed OBU_SEQUENCE_HEADER payload.
type SequenceHeader struct {
	SeqProfile                uint8
	StillPicture              bool
	ReducedStillPictureHeader bool
	Timing                    *TimingInfo
	DecoderModelInfoPresent   bool
	OperatingPoints           []OperatingPoint
	MaxFrameWidth             uint32
	MaxFrameHeight            uint32
	FrameIDNumbersPresent     bool
	Use128x128Superblock      bool
	EnableFilterIntra         bool
	EnableIntraEdgeFilter     bool
	EnableInterintraCompound  bool
	EnableMaskedCompound      bool
	EnableWarpedMotion        bool
	EnableDualFilter          bool
	EnableOrderHint           bool
	EnableJntComp             bool
	EnableRefFrameMVs         bool
	SeqForceScreenContentTool uint8
	SeqForceIntegerMV         uint8
	OrderHintBits             uint8
	EnableSuperres            bool
	EnableCDEF                bool
	EnableRestoration         bool
	ColorConfig               ColorConfig
	FilmGrainParamsPresent    bool
}

type seqReader struct {
	r   bits.Reader
	err error
}

func (s *seqReader) u(n int) uint32 {
	if s.err != nil {
		return 0
	}
	var v uint32
	v, s.err = s.r.ReadBits32(n)
	return v
}

func (s *seqReader) flag() bool {
	return s.u(1) == 1
}

// uvlc reads a variable length unsigned integer.
func (s *seqReader) uvlc() uint32 {
	leadingZeros := 0
	for s.err == nil && !s.flag() {
		leadingZeros++
	}
	if leadingZeros >= 32 { //nolint:mnd
		return 1<<32 - 1
	}
	return s.u(leadingZeros) + (1 << leadingZeros) - 1
}

// ParseSequenceHeader parses the payload of an OBU_SEQUENCE_HEADER.
func ParseSequenceHeader(payload []byte) (seq SequenceHeader, err error) {
	s := &seqReader{r: bits.Reader{R: bytes.NewReader(payload)}}

	seq.SeqProfile = uint8(s.u(3))
	seq.StillPicture = s.flag()
	seq.ReducedStillPictureHeader = s.flag()

	if seq.ReducedStillPictureHeader {
		seq.OperatingPoints = []OperatingPoint{{SeqLevelIdx: uint8(s.u(5))}}
	} else {
		parseOperatingPoints(s, &seq)
	}

	frameWidthBits := int(s.u(4)) + 1
	frameHeightBits := int(s.u(4)) + 1
	seq.MaxFrameWidth = s.u(frameWidthBits) + 1
	seq.MaxFrameHeight = s.u(frameHeightBits) + 1

	if !seq.ReducedStillPictureHeader {
		if seq.FrameIDNumbersPresent = s.flag(); seq.FrameIDNumbersPresent {
			s.u(4) // delta_frame_id_length_minus_2
			s.u(3) // additional_frame_id_length_minus_1
		}
	}

	seq.Use128x128Superblock = s.flag()
	seq.EnableFilterIntra = s.flag()
	seq.EnableIntraEdgeFilter = s.flag()

	seq.SeqForceScreenContentTool = selectScreenContentTools
	seq.SeqForceIntegerMV = selectIntegerMV
	if !seq.ReducedStillPictureHeader {
		parseToolFlags(s, &seq)
	}

	seq.EnableSuperres = s.flag()
	seq.EnableCDEF = s.flag()
	seq.EnableRestoration = s.flag()
	parseColorConfig(s, seq.SeqProfile, &seq.ColorConfig)
	seq.FilmGrainParamsPresent = s.flag()

	if s.err != nil {
		err = fmt.Errorf("av1parser: sequence header: %w", s.err)
	}
	return
}

func parseOperatingPoints(s *seqReader, seq *SequenceHeader) {
	bufferDelayLength := 0
	if s.flag() {
		seq.Timing = &TimingInfo{
			NumUnitsInDisplayTick: s.u(32),
			TimeScale:             s.u(32),
			EqualPictureInterval:  s.flag(),
		}
		if seq.Timing.EqualPictureInterval {
			seq.Timing.NumTicksPerPictureMinus = s.uvlc()
		}
		if seq.DecoderModelInfoPresent = s.flag(); seq.DecoderModelInfoPresent {
			bufferDelayLength = int(s.u(5)) + 1
			s.u(32) // num_units_in_decoding_tick
			s.u(5)  // buffer_removal_time_length_minus_1
			s.u(5)  // frame_presentation_time_length_minus_1
		}
	}

	initialDisplayDelayPresent := s.flag()
	count := int(s.u(5)) + 1
	seq.OperatingPoints = make([]OperatingPoint, 0, count)
	for range count {
		if s.err != nil {
			return
		}
		op := OperatingPoint{
			IDC:         uint16(s.u(12)), //nolint:gosec // 12 bits
			SeqLevelIdx: uint8(s.u(5)),   //nolint:gosec // 5 bits
		}
		if op.SeqLevelIdx > 7 { //nolint:mnd
			op.SeqTier = s.flag()
		}
		if seq.DecoderModelInfoPresent {
			if op.DecoderModelPresent = s.flag(); op.DecoderModelPresent {
				s.u(bufferDelayLength) // decoder_buffer_delay
				s.u(bufferDelayLength) // encoder_buffer_delay
				s.flag()               // low_delay_mode_flag
			}
		}
		if initialDisplayDelayPresent {
			if op.InitialDisplayDelayPresent = s.flag(); op.InitialDisplayDelayPresent {
				op.InitialDisplayDelayMinus1 = uint8(s.u(4)) //nolint:gosec // 4 bits
			}
		}
		seq.OperatingPoints = append(seq.OperatingPoints, op)
	}
}

func parseToolFlags(s *seqReader, seq *SequenceHeader) {
	seq.EnableInterintraCompound = s.flag()
	seq.EnableMaskedCompound = s.flag()
	seq.EnableWarpedMotion = s.flag()
	seq.EnableDualFilter = s.flag()
	seq.EnableOrderHint = s.flag()
	if seq.EnableOrderHint {
		seq.EnableJntComp = s.flag()
		seq.EnableRefFrameMVs = s.flag()
	}
	if !s.flag() { // seq_choose_screen_content_tools
		seq.SeqForceScreenContentTool = uint8(s.u(1))
	}
	if seq.SeqForceScreenContentTool > 0 {
		if !s.flag() { // seq_choose_integer_mv
			seq.SeqForceIntegerMV = uint8(s.u(1))
		}
	}
	if seq.EnableOrderHint {
		seq.OrderHintBits = uint8(s.u(3)) + 1 //nolint:gosec // 3 bits
	}
}

func parseColorConfig(s *seqReader, profile uint8, cc *ColorConfig) {
	cc.HighBitdepth = s.flag()
	cc.BitDepth = 8
	switch {
	case profile == 2 && cc.HighBitdepth: //nolint:mnd
		cc.TwelveBit = s.flag()
		cc.BitDepth = 10
		if cc.TwelveBit {
			cc.BitDepth = 12
		}
	case cc.HighBitdepth:
		cc.BitDepth = 10
	}

	if profile != 1 {
		cc.MonoChrome = s.flag()
	}

	cc.ColorPrimaries = cpUnspecified
	cc.TransferCharacteristics = tcUnspecified
	cc.MatrixCoefficients = mcUnspecified
	if cc.ColorDescriptionPresent = s.flag(); cc.ColorDescriptionPresent {
		cc.ColorPrimaries = uint8(s.u(8))          //nolint:gosec // 8 bits
		cc.TransferCharacteristics = uint8(s.u(8)) //nolint:gosec // 8 bits
		cc.MatrixCoefficients = uint8(s.u(8))      //nolint:gosec // 8 bits
	}

	switch {
	case cc.MonoChrome:
		cc.FullColorRange = s.flag()
		cc.SubsamplingX, cc.SubsamplingY = true, true
		return
	case cc.ColorPrimaries == cpBT709 && cc.TransferCharacteristics == tcSRGB &&
		cc.MatrixCoefficients == mcIdentity:
		cc.FullColorRange = true
	default:
		cc.FullColorRange = s.flag()
		switch profile {
		case 0:
			cc.SubsamplingX, cc.SubsamplingY = true, true
		case 1:
		default:
			if cc.BitDepth == 12 { //nolint:mnd
				if cc.SubsamplingX = s.flag(); cc.SubsamplingX {
					cc.SubsamplingY = s.flag()
				}
			} else {
				cc.SubsamplingX = true
			}
		}
		if cc.SubsamplingX && cc.SubsamplingY {
			cc.ChromaSamplePosition = uint8(s.u(2)) //nolint:gosec // 2 bits
		}
	}
	cc.SeparateUVDeltaQ = s.flag()
}

// CodecString returns the RFC 6381 codec string. The optional color fields
// are appended only when they differ from their defaults.
func (seq *SequenceHeader) CodecString() string {
	var level uint8
	tier := 'M'
	if len(seq.OperatingPoints) > 0 {
		level = seq.OperatingPoints[0].SeqLevelIdx
		if seq.OperatingPoints[0].SeqTier {
			tier = 'H'
		}
	}
	cc := seq.ColorConfig
	base := fmt.Sprintf("av01.%d.%02d%c.%02d", seq.SeqProfile, level, tier, cc.BitDepth)

	mono, ssx, ssy, full := 0, 0, 0, 0
	if cc.MonoChrome {
		mono = 1
	}
	if cc.SubsamplingX {
		ssx = 1
	}
	if cc.SubsamplingY {
		ssy = 1
	}
	if cc.FullColorRange {
		full = 1
	}
	defaults := mono == 0 && ssx == 1 && ssy == 1 && cc.ChromaSamplePosition == 0 &&
		(!cc.ColorDescriptionPresent || cc.ColorPrimaries == cpBT709 && cc.TransferCharacteristics == cpBT709 &&
			cc.MatrixCoefficients == cpBT709) && full == 0
	if defaults {
		return base
	}

	cp, tc, mc := cc.ColorPrimaries, cc.TransferCharacteristics, cc.MatrixCoefficients
	if !cc.ColorDescriptionPresent {
		cp, tc, mc = cpBT709, cpBT709, cpBT709
	}
	return fmt.Sprintf("%s.%d.%d%d%d.%02d.%02d.%02d.%d", base, mono, ssx, ssy, cc.ChromaSamplePosition, cp, tc, mc, full)
}
