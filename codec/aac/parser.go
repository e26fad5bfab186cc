//nolint:mnd // .
package aac

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ugparu/bmff/utils/bits"
)

// Copied from libavcodec/mpeg4audio.h.
const (
	AotAacMain       = 1 + iota  // Y                       Main
	AotAacLc                     // Y                       Low Complexity
	AotAacSsr                    // N (code in SoC repo)    Scalable Sample Rate
	AotAacLtp                    // Y                       Long Term Prediction
	AotSbr                       // Y                       Spectral Band Replication
	AotAacScalable               // N                       Scalable
	AotTwinvq                    // N                       Twin Vector Quantizer
	AotCelp                      // N                       Code Excited Linear Prediction
	AotHvxc                      // N                       Harmonic Vector eXcitation Coding
	AotTtsi          = 12 + iota // N                       Text-To-Speech Interface
	AotMainsynth                 // N                       Main Synthesis
	AotWavesynth                 // N                       Wavetable Synthesis
	AotMidi                      // N                       General MIDI
	AotSafx                      // N                       Algorithmic Synthesis and Audio Effects
	AotErAacLc                   // N                       Error Resilient Low Complexity
	AotErAacLtp      = 19 + iota // N                       Error Resilient Long Term Prediction
	AotErAacScalable             // N                       Error Resilient Scalable
	AotErTwinvq                  // N                       Error Resilient Twin Vector Quantizer
	AotErBsac                    // N                       Error Resilient Bit-Sliced Arithmetic Coding
	AotErAacLd                   // N                       Error Resilient Low Delay
	AotErCelp                    // N                       Error Resilient Code Excited Linear Prediction
	AotErHvxc                    // N                       Error Resilient Harmonic Vector eXcitation Coding
	AotErHiln                    // N                       Error Resilient Harmonic and Individual Lines plus Noise
	AotErParam                   // N                       Error Resilient Parametric
	AotSsc                       // N                       SinuSoidal Coding
	AotPs                        // N                       Parametric Stereo
	AotSurround                  // N                       MPEG Surround
	AotEscape                    // Y                       Escape Value
	AotL1                        // Y                       Layer 1
	AotL2                        // Y                       Layer 2
	AotL3                        // Y                       Layer 3
	AotDst                       // N                       Direct Stream Transfer
	AotAls                       // Y                       Audio LosslesS
	AotSls                       // N                       Scalable LosslesS
	AotSlsNonCore                // N                       Scalable LosslesS (non core)
	AotErAacEld                  // N                       Error Resilient Enhanced Low Delay
	AotSmrSimple                 // N                       Symbolic Music Representation Simple
	AotSmrMain                   // N                       Symbolic Music Representation Main
	AotUsacNosbr                 // N                       Unified Speech and Audio Coding (no SBR)
	AotSaoc                      // N                       Spatial Audio Object Coding
	AotLdSurround                // N                       Low Delay MPEG Surround
	AotUsac                      // N                       Unified Speech and Audio Coding
)

// MPEG4AudioConfig is the leading part of an AudioSpecificConfig.
type MPEG4AudioConfig struct {
	SampleRate      int
	Channels        uint8
	ObjectType      uint
	SampleRateIndex uint
	ChannelConfig   uint
}

// Complete fills SampleRate and Channels from the table indices.
func (config *MPEG4AudioConfig) Complete() {
	if config.SampleRateIndex < uint(len(sampleRateTable)) {
		config.SampleRate = sampleRateTable[config.SampleRateIndex]
	}
	if config.ChannelConfig < uint(len(chanConfigTable)) {
		config.Channels = chanConfigTable[config.ChannelConfig]
	}
}

// CodecString returns the RFC 6381 codec string, such as mp4a.40.2.
func (config *MPEG4AudioConfig) CodecString() string {
	return fmt.Sprintf("mp4a.40.%d", config.ObjectType)
}

var sampleRateTable = []int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// explicitSampleRate marks a 24 bit sampling frequency following the index.
const explicitSampleRate = 0xf

/*
Channel configurations:
0: Defined in AOT Specifc Config
1: front-center
2: front-left, front-right
3: front-center, front-left, front-right
4: front-center, front-left, front-right, back-center
5: front-center, front-left, front-right, back-left, back-right
6: front-center, front-left, front-right, back-left, back-right, LFE
7: front-center, front-left, front-right, side-left, side-right, back-left, back-right, LFE
8-15: Reserved.
*/
var chanConfigTable = []uint8{0, 1, 2, 3, 4, 5, 6, 8}

// ADTSHeader is the fixed and variable header of one ADTS frame.
type ADTSHeader struct {
	Config MPEG4AudioConfig
	// HeaderLen is 9 when a CRC follows the 7 byte header.
	HeaderLen int
	// FrameLen counts the header and the raw data blocks.
	FrameLen int
	Samples  int
}

// Payload returns the raw data blocks of the ADTS frame at the start of
// frame.
func (h ADTSHeader) Payload(frame []byte) []byte {
	return frame[h.HeaderLen:min(h.FrameLen, len(frame))]
}

// IsADTS reports whether frame starts with an ADTS sync word and layer 0.
func IsADTS(frame []byte) bool {
	return len(frame) >= 2 && frame[0] == 0xff && frame[1]&0xf6 == 0xf0
}

// ParseADTSHeader reads the ADTS header at the start of frame.
func ParseADTSHeader(frame []byte) (h ADTSHeader, err error) {
	if len(frame) < 7 {
		return h, fmt.Errorf("aacparser: ADTS header needs 7 bytes, got %d", len(frame))
	}
	if !IsADTS(frame) {
		return h, fmt.Errorf("aacparser: invalid ADTS sync word: %02x %02x", frame[0], frame[1])
	}

	cfg := &h.Config
	cfg.ObjectType = uint(frame[2]>>6) + 1
	cfg.SampleRateIndex = uint(frame[2] >> 2 & 0xf)
	cfg.ChannelConfig = uint(frame[2]<<2&0x4 | frame[3]>>6&0x3)
	if cfg.SampleRateIndex >= uint(len(sampleRateTable)) {
		return h, fmt.Errorf("aacparser: invalid sample rate index: %d", cfg.SampleRateIndex)
	}
	if cfg.ChannelConfig == 0 || cfg.ChannelConfig >= uint(len(chanConfigTable)) {
		return h, fmt.Errorf("aacparser: invalid channel configuration: %d", cfg.ChannelConfig)
	}
	cfg.Complete()

	h.FrameLen = int(frame[3]&0x3)<<11 | int(frame[4])<<3 | int(frame[5]>>5)
	h.Samples = (int(frame[6]&0x3) + 1) * 1024
	h.HeaderLen = 7
	if frame[1]&0x1 == 0 {
		h.HeaderLen = 9
	}
	if h.FrameLen < h.HeaderLen || len(frame) < h.HeaderLen {
		return h, fmt.Errorf("aacparser: invalid ADTS frame length %d for a %d byte header", h.FrameLen, h.HeaderLen)
	}
	return h, nil
}

func readObjectType(r *bits.Reader) (objectType uint, err error) {
	if objectType, err = r.ReadBits(5); err != nil {
		return
	}
	// Escape value is 31 (0x1f), not AotEscape constant (which is object type 43)
	const escapeValue = 31
	if objectType == escapeValue {
		var i uint
		if i, err = r.ReadBits(6); err != nil {
			return
		}
		// Extended object type: escape (31) + 6-bit value
		// Object type = 32 + 6-bit value
		objectType = 32 + i
	}
	return
}

func writeObjectType(w *bits.Writer, objectType uint) (err error) {
	if objectType >= 32 {
		// Extended object type: write escape (31) + 6-bit value (objectType - 32)
		// Note: escape value is 31 (0x1f), not AotEscape constant (which is object type 43)
		const escapeValue = 31
		if err = w.WriteBits(escapeValue, 5); err != nil {
			return
		}
		if err = w.WriteBits(objectType-32, 6); err != nil {
			return
		}
	} else {
		// Standard object type: write directly as 5-bit value
		if err = w.WriteBits(objectType, 5); err != nil {
			return
		}
	}
	return
}

func readSampleRate(r *bits.Reader, config *MPEG4AudioConfig) (err error) {
	if config.SampleRateIndex, err = r.ReadBits(4); err != nil {
		return
	}
	if config.SampleRateIndex == explicitSampleRate {
		var rate uint
		if rate, err = r.ReadBits(24); err != nil {
			return
		}
		config.SampleRate = int(rate) //nolint:gosec // 24 bits
	}
	return
}

func writeSampleRate(w *bits.Writer, config MPEG4AudioConfig) (err error) {
	index := config.SampleRateIndex
	if config.SampleRate != 0 {
		index = explicitSampleRate
		for i, rate := range sampleRateTable {
			if rate == config.SampleRate {
				index = uint(i) //nolint:gosec // table index
				break
			}
		}
	}
	if err = w.WriteBits(index, 4); err != nil {
		return
	}
	if index == explicitSampleRate {
		err = w.WriteBits(uint(config.SampleRate), 24) //nolint:gosec // 24 bits
	}
	return
}

// ParseMPEG4AudioConfigBytes reads the object type, sampling frequency and
// channel configuration of an AudioSpecificConfig.
func ParseMPEG4AudioConfigBytes(data []byte) (config MPEG4AudioConfig, err error) {
	if len(data) == 0 {
		return config, errors.New("aacparser: empty MPEG4 audio config data")
	}

	br := &bits.Reader{R: bytes.NewReader(data)}

	if config.ObjectType, err = readObjectType(br); err != nil {
		return config, fmt.Errorf("aacparser: insufficient data for object type: %w", err)
	}
	if err = readSampleRate(br, &config); err != nil {
		return config, fmt.Errorf("aacparser: insufficient data for sample rate index: %w", err)
	}
	if config.ChannelConfig, err = br.ReadBits(4); err != nil {
		return config, fmt.Errorf("aacparser: insufficient data for channel config: %w", err)
	}

	config.Complete()
	return
}

// WriteMPEG4AudioConfig writes the two to six byte AudioSpecificConfig
// prefix. A non zero SampleRate takes precedence over SampleRateIndex and
// non zero Channels over ChannelConfig.
func WriteMPEG4AudioConfig(w io.Writer, config MPEG4AudioConfig) (err error) {
	if w == nil {
		return errors.New("aacparser: writer is nil")
	}

	bw := &bits.Writer{W: w}
	if err = writeObjectType(bw, config.ObjectType); err != nil {
		return
	}
	if err = writeSampleRate(bw, config); err != nil {
		return
	}

	if config.Channels != 0 {
		for i, count := range chanConfigTable {
			if count == config.Channels {
				config.ChannelConfig = uint(i) //nolint:gosec // table index
				break
			}
		}
	}
	if err = bw.WriteBits(config.ChannelConfig, 4); err != nil {
		return
	}

	// frameLengthFlag, dependsOnCoreCoder and extensionFlag.
	if err = bw.WriteBits(0, 3); err != nil {
		return
	}

	return bw.FlushBits()
}
