package transmuxer

import (
	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/codec/h264"
	"github.com/ugparu/bmff/format/isobmff"
)

// AVCStsdEntry builds the avc1 sample entry of config, sized and coloured
// from its first SPS.
func AVCStsdEntry(config h264.AVCDecoderConfRecord) (isobmff.Box, h264.SPSInfo, error) {
	var info h264.SPSInfo
	if len(config.SPS) == 0 {
		return nil, info, InvalidAVCDecoderConfigurationRecordError{}
	}
	info, err := h264.ParseSPS(config.SPS[0])
	if err != nil {
		return nil, info, InvalidAVCDecoderConfigurationRecordError{Err: err}
	}
	width, height, err := visualSize(info.Width, info.Height)
	if err != nil {
		return nil, info, err
	}

	entry := isobmff.NewAVCSampleEntry(width, height, config)
	entry.Pasp = aspectRatio(info.SarWidth, info.SarHeight)
	if c := info.Color; c != nil {
		entry.Colr = []isobmff.ColourInformationBox{
			isobmff.NewNclx(uint16(c.ColorPrimaries), uint16(c.TransferCharacteristics), uint16(c.MatrixCoefficients), c.FullRange),
		}
	}
	return entry, info, nil
}

// AVCTrunSample describes one H.264 access unit. cts is the composition
// offset in the track timescale.
func AVCTrunSample(frame bmff.FrameType, cts uint32, duration uint32, data []byte) isobmff.TrackRunSample {
	return isobmff.TrackRunSample{
		Duration:              duration,
		Size:                  uint32(len(data)), //nolint:gosec
		Flags:                 sampleFlags(frame),
		CompositionTimeOffset: int64(cts),
	}
}
