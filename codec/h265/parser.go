//nolint:mnd // This file contains many magic numbers that are part of the H.265 specification
package h265

import (
	"bytes"
	"errors"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/ugparu/bmff/utils/bits"
)

var (
	ErrH265IncorectUnitSize = errors.New("h265parser: incorrect unit size")
	ErrH265IncorectUnitType = errors.New("h265parser: incorrect unit type")
)

const maxShortTermRefPicSets = 64

//nolint:gocyclo,cyclop,funlen // This function is complex due to the H.265 specification requirements
func ParseSPS(sps []byte) (ctx SPSInfo, err error) {
	if len(sps) < 3 {
		err = ErrH265IncorectUnitSize
		return
	}
	if NaluType(sps) != NalUnitSps {
		err = ErrH265IncorectUnitType
		return
	}
	rbsp := mch264.EmulationPreventionRemove(sps[2:])
	br := &bits.GolombBitReader{R: bytes.NewReader(rbsp)}
	if _, err = br.ReadBits(4); err != nil { // sps_video_parameter_set_id
		return
	}
	spsMaxSubLayersMinus1, err := br.ReadBits(3)
	if err != nil {
		return
	}
	ctx.NumTemporalLayers = spsMaxSubLayersMinus1 + 1
	if ctx.TemporalIDNested, err = br.ReadBit(); err != nil {
		return
	}
	if err = parsePTL(br, &ctx, spsMaxSubLayersMinus1); err != nil {
		return
	}
	if ctx.ID, err = br.ReadExponentialGolombCode(); err != nil {
		return
	}
	if ctx.ChromaFormat, err = br.ReadExponentialGolombCode(); err != nil {
		return
	}
	// 3 is the value for chroma_format_idc that requires separate_colour_plane_flag
	if ctx.ChromaFormat == 3 {
		if ctx.SeparateColourPlane, err = br.ReadFlag(); err != nil {
			return
		}
	}
	if ctx.PicWidthInLumaSamples, err = br.ReadExponentialGolombCode(); err != nil {
		return
	}
	if ctx.PicHeightInLumaSamples, err = br.ReadExponentialGolombCode(); err != nil {
		return
	}
	conformanceWindowFlag, err := br.ReadFlag()
	if err != nil {
		return
	}
	if conformanceWindowFlag {
		for _, p := range []*uint{&ctx.ConfWinLeft, &ctx.ConfWinRight, &ctx.ConfWinTop, &ctx.ConfWinBottom} {
			if *p, err = br.ReadExponentialGolombCode(); err != nil {
				return
			}
		}
	}
	ctx.Width, ctx.Height = ctx.croppedSize()

	var depth uint
	if depth, err = br.ReadExponentialGolombCode(); err != nil {
		return
	}
	ctx.BitDepthLuma = depth + bitDepthBase
	if depth, err = br.ReadExponentialGolombCode(); err != nil {
		return
	}
	ctx.BitDepthChroma = depth + bitDepthBase

	log2MaxPocLsbMinus4, err := br.ReadExponentialGolombCode()
	if err != nil {
		return
	}
	spsSubLayerOrderingInfoPresentFlag, err := br.ReadBit()
	if err != nil {
		return
	}
	var i uint
	if spsSubLayerOrderingInfoPresentFlag != 0 {
		i = 0
	} else {
		i = spsMaxSubLayersMinus1
	}
	for ; i <= spsMaxSubLayersMinus1; i++ {
		if err = skipGolomb(br, 3); err != nil {
			return
		}
	}

	// log2_min_luma_coding_block_size_minus3 through max_transform_hierarchy_depth_intra
	if err = skipGolomb(br, 6); err != nil {
		return
	}

	scalingListEnabled, err := br.ReadFlag()
	if err != nil {
		return
	}
	if scalingListEnabled {
		var present bool
		if present, err = br.ReadFlag(); err != nil {
			return
		}
		if present {
			if err = skipScalingListData(br); err != nil {
				return
			}
		}
	}

	// amp_enabled_flag, sample_adaptive_offset_enabled_flag
	if err = br.Skip(2); err != nil {
		return
	}
	pcmEnabled, err := br.ReadFlag()
	if err != nil {
		return
	}
	if pcmEnabled {
		// pcm sample bit depths
		if err = br.Skip(8); err != nil {
			return
		}
		if err = skipGolomb(br, 2); err != nil {
			return
		}
		// pcm_loop_filter_disabled_flag
		if err = br.Skip(1); err != nil {
			return
		}
	}

	numShortTermRefPicSets, err := br.ReadExponentialGolombCode()
	if err != nil {
		return
	}
	if numShortTermRefPicSets > maxShortTermRefPicSets {
		err = ErrH265IncorectUnitSize
		return
	}
	numDeltaPocs := make([]uint, numShortTermRefPicSets)
	for idx := range numShortTermRefPicSets {
		if err = parseShortTermRefPicSet(br, idx, numDeltaPocs); err != nil {
			return
		}
	}

	longTermRefPicsPresent, err := br.ReadFlag()
	if err != nil {
		return
	}
	if longTermRefPicsPresent {
		var numLongTerm uint
		if numLongTerm, err = br.ReadExponentialGolombCode(); err != nil {
			return
		}
		for range numLongTerm {
			// lt_ref_pic_poc_lsb_sps, used_by_curr_pic_lt_sps_flag
			if err = br.Skip(int(log2MaxPocLsbMinus4) + 4 + 1); err != nil { //nolint:gosec // bounded by the bitstream
				return
			}
		}
	}

	// sps_temporal_mvp_enabled_flag, strong_intra_smoothing_enabled_flag
	if err = br.Skip(2); err != nil {
		return
	}
	vuiPresent, err := br.ReadFlag()
	if err != nil {
		return
	}
	if vuiPresent {
		err = parseVUI(br, &ctx)
	}
	return
}

// croppedSize applies the conformance window in chroma sample units.
func (ctx *SPSInfo) croppedSize() (width, height uint) {
	subWidth, subHeight := uint(1), uint(1)
	if !ctx.SeparateColourPlane {
		switch ctx.ChromaFormat {
		case 1:
			subWidth, subHeight = 2, 2
		case 2:
			subWidth = 2
		}
	}
	width = ctx.PicWidthInLumaSamples - subWidth*(ctx.ConfWinLeft+ctx.ConfWinRight)
	height = ctx.PicHeightInLumaSamples - subHeight*(ctx.ConfWinTop+ctx.ConfWinBottom)
	return
}

func skipGolomb(br *bits.GolombBitReader, n int) error {
	for range n {
		if _, err := br.ReadExponentialGolombCode(); err != nil {
			return err
		}
	}
	return nil
}

func skipScalingListData(br *bits.GolombBitReader) error {
	for sizeID := range 4 {
		step := 1
		if sizeID == 3 {
			step = 3
		}
		for matrixID := 0; matrixID < 6; matrixID += step {
			predMode, err := br.ReadFlag()
			if err != nil {
				return err
			}
			if !predMode {
				// scaling_list_pred_matrix_id_delta
				if _, err = br.ReadExponentialGolombCode(); err != nil {
					return err
				}
				continue
			}
			coefNum := 1 << (4 + 2*sizeID)
			coefNum = min(coefNum, 64)
			if sizeID > 1 {
				// scaling_list_dc_coef_minus8
				if _, err = br.ReadSE(); err != nil {
					return err
				}
			}
			for range coefNum {
				if _, err = br.ReadSE(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// parseShortTermRefPicSet skips st_ref_pic_set(idx) and records its
// NumDeltaPocs, which later sets predicted from it need.
func parseShortTermRefPicSet(br *bits.GolombBitReader, idx uint, numDeltaPocs []uint) error {
	interPrediction := false
	if idx != 0 {
		var err error
		if interPrediction, err = br.ReadFlag(); err != nil {
			return err
		}
	}
	if interPrediction {
		// delta_rps_sign
		if err := br.Skip(1); err != nil {
			return err
		}
		// abs_delta_rps_minus1
		if _, err := br.ReadExponentialGolombCode(); err != nil {
			return err
		}
		// In a SPS delta_idx_minus1 is absent, so the reference is the previous set.
		ref := numDeltaPocs[idx-1]
		var count uint
		for range ref + 1 {
			used, err := br.ReadFlag()
			if err != nil {
				return err
			}
			useDelta := true
			if !used {
				if useDelta, err = br.ReadFlag(); err != nil {
					return err
				}
			}
			if useDelta {
				count++
			}
		}
		numDeltaPocs[idx] = count
		return nil
	}

	negative, err := br.ReadExponentialGolombCode()
	if err != nil {
		return err
	}
	positive, err := br.ReadExponentialGolombCode()
	if err != nil {
		return err
	}
	if negative+positive > maxShortTermRefPicSets {
		return ErrH265IncorectUnitSize
	}
	for range negative + positive {
		// delta_poc_minus1, used_by_curr_pic_flag
		if _, err = br.ReadExponentialGolombCode(); err != nil {
			return err
		}
		if err = br.Skip(1); err != nil {
			return err
		}
	}
	numDeltaPocs[idx] = negative + positive
	return nil
}

// parseVUI reads the VUI up to the timing info.
//
//nolint:gocognit // follows the syntax table
func parseVUI(br *bits.GolombBitReader, ctx *SPSInfo) (err error) {
	color := &ColorConfig{VideoFormat: 5, ColorPrimaries: 2, TransferCharacteristics: 2, MatrixCoefficients: 2}
	ctx.Color = color

	var present bool
	if present, err = br.ReadFlag(); err != nil {
		return
	}
	if present {
		var idc uint
		if idc, err = br.ReadBits(8); err != nil {
			return
		}
		if idc == 255 {
			// sar_width, sar_height
			if err = br.Skip(32); err != nil {
				return
			}
		}
	}

	// overscan_info_present_flag
	if present, err = br.ReadFlag(); err != nil {
		return
	}
	if present {
		if err = br.Skip(1); err != nil {
			return
		}
	}

	// video_signal_type_present_flag
	if present, err = br.ReadFlag(); err != nil {
		return
	}
	if present {
		var v uint
		if v, err = br.ReadBits(3); err != nil {
			return
		}
		color.VideoFormat = uint8(v) //nolint:gosec // 3 bits
		if color.FullRange, err = br.ReadFlag(); err != nil {
			return
		}
		var described bool
		if described, err = br.ReadFlag(); err != nil {
			return
		}
		if described {
			for _, p := range []*uint8{&color.ColorPrimaries, &color.TransferCharacteristics, &color.MatrixCoefficients} {
				if v, err = br.ReadBits(8); err != nil {
					return
				}
				*p = uint8(v) //nolint:gosec // 8 bits
			}
		}
	}

	// chroma_loc_info_present_flag
	if present, err = br.ReadFlag(); err != nil {
		return
	}
	if present {
		if err = skipGolomb(br, 2); err != nil {
			return
		}
	}

	// neutral_chroma_indication_flag, field_seq_flag, frame_field_info_present_flag
	if err = br.Skip(3); err != nil {
		return
	}
	// default_display_window_flag
	if present, err = br.ReadFlag(); err != nil {
		return
	}
	if present {
		if err = skipGolomb(br, 4); err != nil {
			return
		}
	}

	// vui_timing_info_present_flag
	if present, err = br.ReadFlag(); err != nil {
		return
	}
	if !present {
		return
	}
	if ctx.NumUnitsInTick, err = br.ReadBits32(32); err != nil {
		return
	}
	if ctx.TimeScale, err = br.ReadBits32(32); err != nil {
		return
	}
	if ctx.NumUnitsInTick != 0 {
		ctx.FPS = float64(ctx.TimeScale) / float64(ctx.NumUnitsInTick)
	}
	return
}

func parsePTL(br *bits.GolombBitReader, ctx *SPSInfo, maxSubLayersMinus1 uint) error {
	var err error
	if ctx.GeneralProfileSpace, err = br.ReadBits(2); err != nil {
		return err
	}
	if ctx.GeneralTierFlag, err = br.ReadBit(); err != nil {
		return err
	}
	if ctx.GeneralProfileIDC, err = br.ReadBits(5); err != nil {
		return err
	}
	if ctx.GeneralProfileCompatibilityFlags, err = br.ReadBits32(32); err != nil {
		return err
	}
	if ctx.GeneralConstraintIndicatorFlags, err = br.ReadBits64(48); err != nil {
		return err
	}
	if ctx.GeneralLevelIDC, err = br.ReadBits(8); err != nil {
		return err
	}
	if maxSubLayersMinus1 == 0 {
		return nil
	}
	subLayerProfilePresentFlag := make([]uint, maxSubLayersMinus1)
	subLayerLevelPresentFlag := make([]uint, maxSubLayersMinus1)
	for i := range maxSubLayersMinus1 {
		if subLayerProfilePresentFlag[i], err = br.ReadBit(); err != nil {
			return err
		}
		if subLayerLevelPresentFlag[i], err = br.ReadBit(); err != nil {
			return err
		}
	}
	for i := maxSubLayersMinus1; i < 8; i++ {
		if _, err = br.ReadBits(2); err != nil { // reserved_zero_2bits
			return err
		}
	}
	for i := range maxSubLayersMinus1 {
		if subLayerProfilePresentFlag[i] != 0 {
			// sub_layer profile space, tier, idc, compatibility and constraint flags
			if err = br.Skip(88); err != nil {
				return err
			}
		}
		if subLayerLevelPresentFlag[i] != 0 {
			if _, err = br.ReadBits(8); err != nil { // sub_layer_level_idc
				return err
			}
		}
	}
	return nil
}
