package h265

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/deepch/vdk/utils/bits/pio"
)

var ErrDecconfInvalid = errors.New("h265parser: HEVCDecoderConfRecord invalid")

// NALUArray is one array of parameter sets of a single NAL unit type.
type NALUArray struct {
	Completeness bool
	NALUnitType  uint8
	NALUs        [][]byte
}

// HEVCDecoderConfRecord represents the HEVC decoder configuration record (hvcC).
type HEVCDecoderConfRecord struct {
	ConfigurationVersion             uint8
	GeneralProfileSpace              uint8
	GeneralTierFlag                  bool
	GeneralProfileIDC                uint8
	GeneralProfileCompatibilityFlags uint32
	GeneralConstraintIndicatorFlags  uint64 // 48 bits
	GeneralLevelIDC                  uint8
	MinSpatialSegmentationIDC        uint16 // 12 bits
	ParallelismType                  uint8
	ChromaFormatIDC                  uint8
	BitDepthLumaMinus8               uint8
	BitDepthChromaMinus8             uint8
	AvgFrameRate                     uint16
	ConstantFrameRate                uint8
	NumTemporalLayers                uint8
	TemporalIDNested                 bool
	LengthSizeMinusOne               uint8
	Arrays                           []NALUArray
}

const recordHeaderLen = 23

// Unmarshal decodes the record from b. Parameter sets alias b.
func (r *HEVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	if len(b) < recordHeaderLen {
		err = ErrDecconfInvalid
		return
	}
	r.ConfigurationVersion = b[0]
	r.GeneralProfileSpace = b[1] >> 6
	r.GeneralTierFlag = b[1]&0x20 != 0
	r.GeneralProfileIDC = b[1] & 0x1f
	r.GeneralProfileCompatibilityFlags = pio.U32BE(b[2:])
	r.GeneralConstraintIndicatorFlags = uint64(pio.U16BE(b[6:]))<<32 | uint64(pio.U32BE(b[8:]))
	r.GeneralLevelIDC = b[12]
	r.MinSpatialSegmentationIDC = pio.U16BE(b[13:]) & 0x0fff
	r.ParallelismType = b[15] & 0x03
	r.ChromaFormatIDC = b[16] & 0x03
	r.BitDepthLumaMinus8 = b[17] & 0x07
	r.BitDepthChromaMinus8 = b[18] & 0x07
	r.AvgFrameRate = pio.U16BE(b[19:])
	r.ConstantFrameRate = b[21] >> 6
	r.NumTemporalLayers = (b[21] >> 3) & 0x07
	r.TemporalIDNested = b[21]&0x04 != 0
	r.LengthSizeMinusOne = b[21] & 0x03
	numArrays := int(b[22])
	n = recordHeaderLen

	r.Arrays = make([]NALUArray, 0, numArrays)
	for range numArrays {
		if len(b) < n+3 {
			err = ErrDecconfInvalid
			return
		}
		arr := NALUArray{
			Completeness: b[n]&0x80 != 0,
			NALUnitType:  b[n] & 0x3f,
		}
		count := int(pio.U16BE(b[n+1:]))
		n += 3
		arr.NALUs = make([][]byte, 0, min(count, len(b)-n))
		for range count {
			if len(b) < n+2 {
				err = ErrDecconfInvalid
				return
			}
			size := int(pio.U16BE(b[n:]))
			n += 2
			if len(b) < n+size {
				err = ErrDecconfInvalid
				return
			}
			arr.NALUs = append(arr.NALUs, b[n:n+size])
			n += size
		}
		r.Arrays = append(r.Arrays, arr)
	}
	return
}

// Len returns the encoded length of the record.
func (r *HEVCDecoderConfRecord) Len() (n int) {
	n = recordHeaderLen
	for _, arr := range r.Arrays {
		n += 3
		for _, nalu := range arr.NALUs {
			n += 2 + len(nalu)
		}
	}
	return
}

// Marshal writes the record to b and returns the number of bytes written.
// Reserved bits are written as ones.
func (r *HEVCDecoderConfRecord) Marshal(b []byte) (n int) {
	b[0] = 1
	b[1] = r.GeneralProfileSpace<<6 | r.GeneralProfileIDC&0x1f
	if r.GeneralTierFlag {
		b[1] |= 0x20
	}
	pio.PutU32BE(b[2:], r.GeneralProfileCompatibilityFlags)
	pio.PutU16BE(b[6:], uint16(r.GeneralConstraintIndicatorFlags>>32)) //nolint:gosec // 48 bit field
	pio.PutU32BE(b[8:], uint32(r.GeneralConstraintIndicatorFlags))     //nolint:gosec // 48 bit field
	b[12] = r.GeneralLevelIDC
	pio.PutU16BE(b[13:], 0xf000|r.MinSpatialSegmentationIDC&0x0fff)
	b[15] = 0xfc | r.ParallelismType&0x03
	b[16] = 0xfc | r.ChromaFormatIDC&0x03
	b[17] = 0xf8 | r.BitDepthLumaMinus8&0x07
	b[18] = 0xf8 | r.BitDepthChromaMinus8&0x07
	pio.PutU16BE(b[19:], r.AvgFrameRate)
	b[21] = r.ConstantFrameRate<<6 | (r.NumTemporalLayers&0x07)<<3 | r.LengthSizeMinusOne&0x03
	if r.TemporalIDNested {
		b[21] |= 0x04
	}
	b[22] = uint8(len(r.Arrays)) //nolint:gosec // array count is one byte
	n = recordHeaderLen

	for _, arr := range r.Arrays {
		b[n] = arr.NALUnitType & 0x3f
		if arr.Completeness {
			b[n] |= 0x80
		}
		pio.PutU16BE(b[n+1:], uint16(len(arr.NALUs))) //nolint:gosec // nalu count is two bytes
		n += 3
		for _, nalu := range arr.NALUs {
			pio.PutU16BE(b[n:], uint16(len(nalu))) //nolint:gosec // parameter sets fit 16 bits
			n += 2
			n += copy(b[n:], nalu)
		}
	}
	return
}

// NALUs returns the parameter sets of the given NAL unit type.
func (r *HEVCDecoderConfRecord) NALUs(typ uint8) [][]byte {
	for _, arr := range r.Arrays {
		if arr.NALUnitType == typ {
			return arr.NALUs
		}
	}
	return nil
}

func (r *HEVCDecoderConfRecord) SPS() [][]byte { return r.NALUs(NalUnitSps) }

// CodecString returns the RFC 6381 codec string, such as hev1.1.6.L93.B0.
func (r *HEVCDecoderConfRecord) CodecString() string {
	var sb strings.Builder
	sb.WriteString("hev1.")
	if r.GeneralProfileSpace > 0 {
		sb.WriteByte('A' + r.GeneralProfileSpace - 1)
	}
	sb.WriteString(strconv.FormatUint(uint64(r.GeneralProfileIDC), 10))

	// Compatibility flags are written in reverse bit order.
	var compat uint32
	for i := range 32 {
		compat |= (r.GeneralProfileCompatibilityFlags >> i & 1) << (31 - i)
	}
	fmt.Fprintf(&sb, ".%X", compat)

	tier := 'L'
	if r.GeneralTierFlag {
		tier = 'H'
	}
	fmt.Fprintf(&sb, ".%c%d", tier, r.GeneralLevelIDC)

	// Constraint bytes are dot separated with trailing zero bytes omitted.
	constraints := make([]byte, 6)
	for i := range constraints {
		constraints[i] = byte(r.GeneralConstraintIndicatorFlags >> (40 - 8*i))
	}
	last := len(constraints)
	for last > 0 && constraints[last-1] == 0 {
		last--
	}
	for _, c := range constraints[:last] {
		fmt.Fprintf(&sb, ".%X", c)
	}
	return sb.String()
}

// NewHEVCDecoderConfRecord builds a record from parameter sets, taking the
// profile, tier and level from the parsed SPS.
func NewHEVCDecoderConfRecord(vps, sps, pps []byte, info SPSInfo) HEVCDecoderConfRecord {
	return HEVCDecoderConfRecord{
		ConfigurationVersion:             1,
		GeneralProfileSpace:              uint8(info.GeneralProfileSpace), //nolint:gosec // 2 bits
		GeneralTierFlag:                  info.GeneralTierFlag != 0,
		GeneralProfileIDC:                uint8(info.GeneralProfileIDC), //nolint:gosec // 5 bits
		GeneralProfileCompatibilityFlags: info.GeneralProfileCompatibilityFlags,
		GeneralConstraintIndicatorFlags:  info.GeneralConstraintIndicatorFlags,
		GeneralLevelIDC:                  uint8(info.GeneralLevelIDC), //nolint:gosec // 8 bits
		ChromaFormatIDC:                  uint8(info.ChromaFormat),    //nolint:gosec // 2 bits
		BitDepthLumaMinus8:               uint8(info.BitDepthLuma - bitDepthBase),   //nolint:gosec // 3 bits
		BitDepthChromaMinus8:             uint8(info.BitDepthChroma - bitDepthBase), //nolint:gosec // 3 bits
		NumTemporalLayers:                uint8(info.NumTemporalLayers),             //nolint:gosec // 3 bits
		TemporalIDNested:                 info.TemporalIDNested != 0,
		LengthSizeMinusOne:               3, //nolint:mnd
		Arrays: []NALUArray{
			{Completeness: true, NALUnitType: NalUnitVps, NALUs: [][]byte{vps}},
			{Completeness: true, NALUnitType: NalUnitSps, NALUs: [][]byte{sps}},
			{Completeness: true, NALUnitType: NalUnitPps, NALUs: [][]byte{pps}},
		},
	}
}
