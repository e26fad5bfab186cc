package transmuxer

import (
	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/codec/h265"
	"github.com/ugparu/bmff/format/isobmff"
)

// HEVCStsdEntry builds the hev1 sample entry of config from the first SPS of
// its SPS array.
func HEVCStsdEntry(config h265.HEVCDecoderConfRecord) (isobmff.Box, h265.SPSInfo, error) {
	var info h265.SPSInfo
	sps := config.SPS()
	if len(sps) == 0 {
		return nil, info, InvalidHEVCDecoderConfigurationRecordError{}
	}
	info, err := h265.ParseSPS(sps[0])
	if err != nil {
		return nil, info, InvalidHEVCDecoderConfigurationRecordError{Err: err}
	}
	width, height, err := visualSize(info.Width, info.Height)
	if err != nil {
		return nil, info, err
	}

	entry := isobmff.NewHEVCSampleEntry(width, height, config)
	// Parameter sets may repeat in band.
	entry.Format = isobmff.TypeHev1.FourCC()
	entry.Pasp = squarePixels()
	if c := info.Color; c != nil {
		entry.Colr = []isobmff.ColourInformationBox{
			isobmff.NewNclx(uint16(c.ColorPrimaries), uint16(c.TransferCharacteristics), uint16(c.MatrixCoefficients), c.FullRange),
		}
	}
	return entry, info, nil
}

// HEVCTrunSample describes one H.265 access unit. A negative cts makes the
// run version 1.
func HEVCTrunSample(frame bmff.FrameType, cts int32, duration uint32, data []byte) isobmff.TrackRunSample {
	return isobmff.TrackRunSample{
		Duration:              duration,
		Size:                  uint32(len(data)), //nolint:gosec
		Flags:                 sampleFlags(frame),
		CompositionTimeOffset: int64(cts),
	}
}
