package transmuxer

import (
	"github.com/ugparu/bmff/codec/aac"
	"github.com/ugparu/bmff/format/flv"
	"github.com/ugparu/bmff/format/isobmff"
)

// NewAudioInfo reads the channel count and sample size of an FLV audio tag.
// bitrate is in bit/s.
func NewAudioInfo(a *flv.AudioData, bitrate uint32) AudioInfo {
	info := AudioInfo{Channels: a.Type.Channels(), SampleSize: 8, Bitrate: bitrate} //nolint:mnd
	if a.Size == flv.SoundSize16Bit {
		info.SampleSize = 16
	}
	return info
}

// AACStsdEntry builds the mp4a sample entry for an AudioSpecificConfig.
func AACStsdEntry(info AudioInfo, config []byte) (isobmff.Box, aac.MPEG4AudioConfig, error) {
	cfg, err := aac.ParseMPEG4AudioConfigBytes(config)
	if err != nil {
		return nil, cfg, InvalidAudioSpecificConfigError{Err: err}
	}
	if cfg.SampleRate <= 0 {
		return nil, cfg, InvalidAudioSampleRateError{}
	}
	if info.Channels == 0 || info.Channels > 8 {
		return nil, cfg, InvalidAudioChannelsError{Channels: info.Channels}
	}
	if info.SampleSize != 8 && info.SampleSize != 16 {
		return nil, cfg, InvalidAudioSampleSizeError{SampleSize: info.SampleSize}
	}

	entry := isobmff.NewMP4AudioSampleEntry(uint16(info.Channels), uint32(cfg.SampleRate), info.Bitrate, config) //nolint:gosec
	entry.SampleSize = info.SampleSize
	return entry, cfg, nil
}

// AACTrunSample describes one raw AAC frame. Every frame is a sync sample
// lasting 1024 ticks of the sample rate timescale.
func AACTrunSample(data []byte) isobmff.TrackRunSample {
	return isobmff.TrackRunSample{
		Duration: aacFrameSamples,
		Size:     uint32(len(data)), //nolint:gosec
		Flags:    isobmff.NewSampleFlags(isobmff.DependsOnNone, false),
	}
}
