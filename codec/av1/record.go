// Package av1 parses the AV1 codec configuration record and the OBUs it
// carries.
package av1

import (
	"errors"
	"fmt"
)

var (
	ErrRecordInvalid        = errors.New("av1parser: AV1CodecConfigurationRecord invalid")
	ErrNotSequenceHeader    = errors.New("av1parser: config OBU is not a sequence header")
	ErrNoConfigOBUs         = errors.New("av1parser: record carries no config OBUs")
	errUnsupportedRecordVer = errors.New("av1parser: unsupported record version")
)

const (
	recordHeaderLen = 4
	recordVersion   = 1
	markerBit       = 0x80
)

// CodecConfigurationRecord is the payload of the av1C box.
type CodecConfigurationRecord struct {
	SeqProfile           uint8
	SeqLevelIdx0         uint8
	SeqTier0             bool
	HighBitdepth         bool
	TwelveBit            bool
	Monochrome           bool
	ChromaSubsamplingX   bool
	ChromaSubsamplingY   bool
	ChromaSamplePosition uint8

	// InitialPresentationDelayMinusOne is meaningful only when
	// InitialPresentationDelayPresent is set.
	InitialPresentationDelayPresent  bool
	InitialPresentationDelayMinusOne uint8

	ConfigOBUs []byte
}

func flag(b byte, mask byte) bool { return b&mask != 0 }

func bit(v bool, mask byte) byte {
	if v {
		return mask
	}
	return 0
}

// Unmarshal decodes the record from b. ConfigOBUs aliases b.
func (r *CodecConfigurationRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < recordHeaderLen {
		err = ErrRecordInvalid
		return
	}
	if b[0]&markerBit == 0 {
		err = fmt.Errorf("%w: marker bit not set", ErrRecordInvalid)
		return
	}
	if version := b[0] &^ markerBit; version != recordVersion {
		err = fmt.Errorf("%w: %d", errUnsupportedRecordVer, version)
		return
	}

	r.SeqProfile = b[1] >> 5
	r.SeqLevelIdx0 = b[1] & 0x1f
	r.SeqTier0 = flag(b[2], 0x80)
	r.HighBitdepth = flag(b[2], 0x40)
	r.TwelveBit = flag(b[2], 0x20)
	r.Monochrome = flag(b[2], 0x10)
	r.ChromaSubsamplingX = flag(b[2], 0x08)
	r.ChromaSubsamplingY = flag(b[2], 0x04)
	r.ChromaSamplePosition = b[2] & 0x03
	r.InitialPresentationDelayPresent = flag(b[3], 0x10)
	if r.InitialPresentationDelayPresent {
		r.InitialPresentationDelayMinusOne = b[3] & 0x0f
	}
	r.ConfigOBUs = b[recordHeaderLen:]
	n = len(b)
	return
}

func (r *CodecConfigurationRecord) Len() int {
	return recordHeaderLen + len(r.ConfigOBUs)
}

// Marshal writes the record to b. Reserved bits are written as zeros.
func (r *CodecConfigurationRecord) Marshal(b []byte) int {
	b[0] = markerBit | recordVersion
	b[1] = r.SeqProfile<<5 | r.SeqLevelIdx0&0x1f
	b[2] = bit(r.SeqTier0, 0x80) | bit(r.HighBitdepth, 0x40) | bit(r.TwelveBit, 0x20) |
		bit(r.Monochrome, 0x10) | bit(r.ChromaSubsamplingX, 0x08) | bit(r.ChromaSubsamplingY, 0x04) |
		r.ChromaSamplePosition&0x03
	b[3] = 0
	if r.InitialPresentationDelayPresent {
		b[3] = 0x10 | r.InitialPresentationDelayMinusOne&0x0f
	}
	return recordHeaderLen + copy(b[recordHeaderLen:], r.ConfigOBUs)
}

// BitDepth returns 8, 10 or 12.
func (r *CodecConfigurationRecord) BitDepth() int {
	switch {
	case r.HighBitdepth && r.TwelveBit:
		return 12 //nolint:mnd
	case r.HighBitdepth:
		return 10 //nolint:mnd
	}
	return 8 //nolint:mnd
}

// SequenceHeader parses the first config OBU, which must be a sequence
// header.
func (r *CodecConfigurationRecord) SequenceHeader() (seq SequenceHeader, err error) {
	if len(r.ConfigOBUs) == 0 {
		err = ErrNoConfigOBUs
		return
	}
	obu, err := ParseOBU(r.ConfigOBUs)
	if err != nil {
		return
	}
	if obu.Header.Type != OBUSequenceHeader {
		err = fmt.Errorf("%w: %s", ErrNotSequenceHeader, obu.Header.Type)
		return
	}
	return ParseSequenceHeader(obu.Payload)
}

// CodecString returns the short RFC 6381 codec string, such as av01.0.04M.08.
func (r *CodecConfigurationRecord) CodecString() string {
	tier := 'M'
	if r.SeqTier0 {
		tier = 'H'
	}
	return fmt.Sprintf("av01.%d.%02d%c.%02d", r.SeqProfile, r.SeqLevelIdx0, tier, r.BitDepth())
}

// NewCodecConfigurationRecord builds a record describing seq with obus as
// its config OBUs.
func NewCodecConfigurationRecord(seq SequenceHeader, obus []byte) CodecConfigurationRecord {
	cc := seq.ColorConfig
	rec := CodecConfigurationRecord{
		SeqProfile:           seq.SeqProfile,
		HighBitdepth:         cc.HighBitdepth,
		TwelveBit:            cc.TwelveBit,
		Monochrome:           cc.MonoChrome,
		ChromaSubsamplingX:   cc.SubsamplingX,
		ChromaSubsamplingY:   cc.SubsamplingY,
		ChromaSamplePosition: cc.ChromaSamplePosition,
		ConfigOBUs:           obus,
	}
	if len(seq.OperatingPoints) > 0 {
		rec.SeqLevelIdx0 = seq.OperatingPoints[0].SeqLevelIdx
		rec.SeqTier0 = seq.OperatingPoints[0].SeqTier
		if seq.OperatingPoints[0].InitialDisplayDelayPresent {
			rec.InitialPresentationDelayPresent = true
			rec.InitialPresentationDelayMinusOne = seq.OperatingPoints[0].InitialDisplayDelayMinus1
		}
	}
	return rec
}
