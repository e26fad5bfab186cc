package transmuxer

import "fmt"

// NoSequenceHeadersError is returned when too many tags were queued without
// the sequence headers needed to write the init segment.
type NoSequenceHeadersError struct {
	Tags int
}

func (e NoSequenceHeadersError) Error() string {
	return fmt.Sprintf("transmuxer: no sequence headers in %d tags", e.Tags)
}

// InvalidVideoFrameRateError is returned when neither onMetaData nor the
// codec headers give a frame rate.
type InvalidVideoFrameRateError struct {
}

func (InvalidVideoFrameRateError) Error() string {
	return "transmuxer: invalid video frame rate"
}

// InvalidVideoDimensionsError is returned for a zero or oversized picture.
type InvalidVideoDimensionsError struct {
	Width  uint
	Height uint
}

func (e InvalidVideoDimensionsError) Error() string {
	return fmt.Sprintf("transmuxer: invalid video dimensions %dx%d", e.Width, e.Height)
}

// InvalidAudioSampleRateError is returned when the AudioSpecificConfig has no
// usable sampling frequency.
type InvalidAudioSampleRateError struct {
}

func (InvalidAudioSampleRateError) Error() string {
	return "transmuxer: invalid audio sample rate"
}

type InvalidAudioChannelsError struct {
	Channels uint8
}

func (e InvalidAudioChannelsError) Error() string {
	return fmt.Sprintf("transmuxer: invalid audio channel count %d", e.Channels)
}

type InvalidAudioSampleSizeError struct {
	SampleSize uint16
}

func (e InvalidAudioSampleSizeError) Error() string {
	return fmt.Sprintf("transmuxer: invalid audio sample size %d", e.SampleSize)
}

// InvalidAudioSpecificConfigError wraps a sequence header whose
// AudioSpecificConfig could not be parsed.
type InvalidAudioSpecificConfigError struct {
	Err error
}

func (e InvalidAudioSpecificConfigError) Error() string {
	return "transmuxer: invalid AudioSpecificConfig: " + errString(e.Err)
}

func (e InvalidAudioSpecificConfigError) Unwrap() error { return e.Err }

// InvalidAVCDecoderConfigurationRecordError is returned for an avcC record
// without a parsable SPS.
type InvalidAVCDecoderConfigurationRecordError struct {
	Err error
}

func (e InvalidAVCDecoderConfigurationRecordError) Error() string {
	return "transmuxer: invalid AVCDecoderConfigurationRecord: " + errString(e.Err)
}

func (e InvalidAVCDecoderConfigurationRecordError) Unwrap() error { return e.Err }

// InvalidHEVCDecoderConfigurationRecordError is returned for an hvcC record
// without a parsable SPS.
type InvalidHEVCDecoderConfigurationRecordError struct {
	Err error
}

func (e InvalidHEVCDecoderConfigurationRecordError) Error() string {
	return "transmuxer: invalid HEVCDecoderConfigurationRecord: " + errString(e.Err)
}

func (e InvalidHEVCDecoderConfigurationRecordError) Unwrap() error { return e.Err }

// InvalidAV1DecoderConfigurationRecordError is returned for an av1C record
// whose config OBUs do not start with a sequence header.
type InvalidAV1DecoderConfigurationRecordError struct {
	Err error
}

func (e InvalidAV1DecoderConfigurationRecordError) Error() string {
	return "transmuxer: invalid AV1CodecConfigurationRecord: " + errString(e.Err)
}

func (e InvalidAV1DecoderConfigurationRecordError) Unwrap() error { return e.Err }

func errString(err error) string {
	if err == nil {
		return "no parameter sets"
	}
	return err.Error()
}
