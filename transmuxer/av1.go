package transmuxer

import (
	"github.com/ugparu/bmff"
	"github.com/ugparu/bmff/codec/av1"
	"github.com/ugparu/bmff/format/isobmff"
)

// AV1StsdEntry builds the av01 sample entry of config. The sequence header
// always yields a colour box, unspecified values included.
func AV1StsdEntry(config av1.CodecConfigurationRecord) (isobmff.Box, av1.SequenceHeader, error) {
	seq, err := config.SequenceHeader()
	if err != nil {
		return nil, seq, InvalidAV1DecoderConfigurationRecordError{Err: err}
	}
	width, height, err := visualSize(uint(seq.MaxFrameWidth), uint(seq.MaxFrameHeight))
	if err != nil {
		return nil, seq, err
	}

	c := seq.ColorConfig
	entry := isobmff.NewAV1SampleEntry(width, height, config)
	entry.Pasp = squarePixels()
	entry.Colr = []isobmff.ColourInformationBox{
		isobmff.NewNclx(uint16(c.ColorPrimaries), uint16(c.TransferCharacteristics), uint16(c.MatrixCoefficients), c.FullColorRange),
	}
	return entry, seq, nil
}

// AV1TrunSample describes one AV1 temporal unit. FLV carries no reordering
// for AV1, so there is no composition offset.
func AV1TrunSample(frame bmff.FrameType, duration uint32, data []byte) isobmff.TrackRunSample {
	return isobmff.TrackRunSample{
		Duration: duration,
		Size:     uint32(len(data)), //nolint:gosec
		Flags:    sampleFlags(frame),
	}
}
