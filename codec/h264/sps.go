//nolint:mnd // Bit widths below come from the H.264 syntax tables.
package h264

import (
	"bytes"
	"errors"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/ugparu/bmff/utils/bits"
)

var (
	ErrSPSTooShort = errors.New("h264parser: SPS too short")
	ErrNotSPS      = errors.New("h264parser: NAL unit is not a SPS")
)

// ParseSPS parses a sequence parameter set NAL unit, header byte included.
func ParseSPS(data []byte) (s SPSInfo, err error) {
	const minLength = 4
	if len(data) < minLength {
		err = ErrSPSTooShort
		return
	}
	if NaluType(data) != NaluSPS {
		err = ErrNotSPS
		return
	}

	rbsp := mch264.EmulationPreventionRemove(data[1:])
	if len(rbsp) < 3 {
		err = ErrSPSTooShort
		return
	}
	s.ProfileIDC = uint(rbsp[0])
	s.ConstraintSetFlag = uint(rbsp[1])
	s.LevelIDC = uint(rbsp[2])
	s.ChromaFormat = chromaFormat420
	s.BitDepthLuma = bitDepthBase
	s.BitDepthChroma = bitDepthBase

	r := &bits.GolombBitReader{R: bytes.NewReader(rbsp[3:])}

	if s.ID, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}

	separateColourPlane := false
	switch s.ProfileIDC {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		if s.ChromaFormat, err = r.ReadExponentialGolombCode(); err != nil {
			return
		}
		if s.ChromaFormat == chromaFormat444 {
			if separateColourPlane, err = r.ReadFlag(); err != nil {
				return
			}
		}
		var depth uint
		if depth, err = r.ReadExponentialGolombCode(); err != nil {
			return
		}
		s.BitDepthLuma = depth + bitDepthBase
		if depth, err = r.ReadExponentialGolombCode(); err != nil {
			return
		}
		s.BitDepthChroma = depth + bitDepthBase

		// qpprime_y_zero_transform_bypass_flag
		if _, err = r.ReadBit(); err != nil {
			return
		}
		var present bool
		if present, err = r.ReadFlag(); err != nil {
			return
		}
		if present {
			if err = skipScalingMatrix(r, s.ChromaFormat); err != nil {
				return
			}
		}
	}

	// log2_max_frame_num_minus4
	if _, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	if err = skipPicOrderCnt(r); err != nil {
		return
	}

	// max_num_ref_frames
	if _, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	// gaps_in_frame_num_value_allowed_flag
	if _, err = r.ReadBit(); err != nil {
		return
	}

	if s.MbWidth, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	s.MbWidth++
	if s.MbHeight, err = r.ReadExponentialGolombCode(); err != nil {
		return
	}
	s.MbHeight++

	var frameMbsOnly bool
	if frameMbsOnly, err = r.ReadFlag(); err != nil {
		return
	}
	if !frameMbsOnly {
		// mb_adaptive_frame_field_flag
		if _, err = r.ReadBit(); err != nil {
			return
		}
	}
	// direct_8x8_inference_flag
	if _, err = r.ReadBit(); err != nil {
		return
	}

	var cropping bool
	if cropping, err = r.ReadFlag(); err != nil {
		return
	}
	if cropping {
		for _, p := range []*uint{&s.CropLeft, &s.CropRight, &s.CropTop, &s.CropBottom} {
			if *p, err = r.ReadExponentialGolombCode(); err != nil {
				return
			}
		}
	}

	fieldFactor := uint(2)
	if frameMbsOnly {
		fieldFactor = 1
	}
	cropX, cropY := uint(1), fieldFactor
	if s.ChromaFormat != 0 && !separateColourPlane {
		if s.ChromaFormat != chromaFormat444 {
			cropX = 2
		}
		if s.ChromaFormat == chromaFormat420 {
			cropY *= 2
		}
	}
	s.Width = s.MbWidth*mbSize - (s.CropLeft+s.CropRight)*cropX
	s.Height = fieldFactor*s.MbHeight*mbSize - (s.CropTop+s.CropBottom)*cropY

	var vui bool
	if vui, err = r.ReadFlag(); err != nil {
		return
	}
	if vui {
		err = parseVUI(r, &s)
	}
	return
}

func skipScalingMatrix(r *bits.GolombBitReader, chromaFormat uint) error {
	lists := 8
	if chromaFormat == chromaFormat444 {
		lists = 12
	}
	for i := range lists {
		present, err := r.ReadFlag()
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		size := scalingListSizeSmall
		if i >= scalingListThreshold {
			size = scalingListSizeLarge
		}
		last, next := defaultScaleValue, defaultScaleValue
		for range size {
			if next != 0 {
				delta, err := r.ReadSE()
				if err != nil {
					return err
				}
				next = (last + delta + maxScaleValue) % maxScaleValue
			}
			if next != 0 {
				last = next
			}
		}
	}
	return nil
}

func skipPicOrderCnt(r *bits.GolombBitReader) error {
	pocType, err := r.ReadExponentialGolombCode()
	if err != nil {
		return err
	}
	switch pocType {
	case 0:
		// log2_max_pic_order_cnt_lsb_minus4
		_, err = r.ReadExponentialGolombCode()
		return err
	case 1:
		// delta_pic_order_always_zero_flag
		if _, err = r.ReadBit(); err != nil {
			return err
		}
		// offset_for_non_ref_pic, offset_for_top_to_bottom_field
		if _, err = r.ReadSE(); err != nil {
			return err
		}
		if _, err = r.ReadSE(); err != nil {
			return err
		}
		var cycle uint
		if cycle, err = r.ReadExponentialGolombCode(); err != nil {
			return err
		}
		for range cycle {
			if _, err = r.ReadSE(); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseVUI reads the VUI fields up to the timing info; HRD and bitstream
// restriction parameters that follow are not needed.
func parseVUI(r *bits.GolombBitReader, s *SPSInfo) (err error) {
	var present bool
	if present, err = r.ReadFlag(); err != nil {
		return
	}
	if present {
		var idc uint
		if idc, err = r.ReadBits(8); err != nil {
			return
		}
		if idc == aspectRatioExtended {
			if s.SarWidth, err = r.ReadBits(16); err != nil {
				return
			}
			if s.SarHeight, err = r.ReadBits(16); err != nil {
				return
			}
		} else if sar, ok := sampleAspectRatios[idc]; ok {
			s.SarWidth, s.SarHeight = sar[0], sar[1]
		}
	}

	// overscan_info_present_flag
	if present, err = r.ReadFlag(); err != nil {
		return
	}
	if present {
		if _, err = r.ReadBit(); err != nil {
			return
		}
	}

	// video_signal_type_present_flag
	if present, err = r.ReadFlag(); err != nil {
		return
	}
	if present {
		// video_format
		if _, err = r.ReadBits(3); err != nil {
			return
		}
		color := &ColorConfig{}
		if color.FullRange, err = r.ReadFlag(); err != nil {
			return
		}
		var described bool
		if described, err = r.ReadFlag(); err != nil {
			return
		}
		if described {
			for _, p := range []*uint8{&color.ColorPrimaries, &color.TransferCharacteristics, &color.MatrixCoefficients} {
				var v uint
				if v, err = r.ReadBits(8); err != nil {
					return
				}
				*p = uint8(v) //nolint:gosec // 8 bits
			}
			s.Color = color
		}
	}

	// chroma_loc_info_present_flag
	if present, err = r.ReadFlag(); err != nil {
		return
	}
	if present {
		if _, err = r.ReadExponentialGolombCode(); err != nil {
			return
		}
		if _, err = r.ReadExponentialGolombCode(); err != nil {
			return
		}
	}

	// timing_info_present_flag
	if present, err = r.ReadFlag(); err != nil {
		return
	}
	if !present {
		return
	}
	if s.NumUnitsInTick, err = r.ReadBits32(32); err != nil {
		return
	}
	if s.TimeScale, err = r.ReadBits32(32); err != nil {
		return
	}
	if s.NumUnitsInTick != 0 {
		s.FPS = float64(s.TimeScale) / float64(2*uint64(s.NumUnitsInTick))
	}
	return
}

// sampleAspectRatios maps aspect_ratio_idc to the SAR it stands for.
var sampleAspectRatios = map[uint][2]uint{
	1: {1, 1}, 2: {12, 11}, 3: {10, 11}, 4: {16, 11}, 5: {40, 33}, 6: {24, 11},
	7: {20, 11}, 8: {32, 11}, 9: {80, 33}, 10: {18, 11}, 11: {15, 11}, 12: {64, 33},
	13: {160, 99}, 14: {4, 3}, 15: {3, 2}, 16: {2, 1},
}
