package h264

import (
	"errors"
	"fmt"

	"github.com/deepch/vdk/utils/bits/pio"
)

// ErrDecconfInvalid is returned for truncated records and records without SPS.
var ErrDecconfInvalid = errors.New("h264parser: AVCDecoderConfRecord invalid")

// AVCDecoderConfRecord represents the AVC decoder configuration record (avcC).
type AVCDecoderConfRecord struct {
	ConfigurationVersion uint8    // Always 1.
	AVCProfileIndication uint8    // Profile indication for the AVC stream.
	ProfileCompatibility uint8    // Profile compatibility for the AVC stream.
	AVCLevelIndication   uint8    // Level indication for the AVC stream.
	LengthSizeMinusOne   uint8    // Length size (in bytes) minus one for the AVC stream.
	SPS                  [][]byte // Sequence Parameter Sets (SPS) containing the SPS NALUs.
	PPS                  [][]byte // Picture Parameter Sets (PPS) containing the PPS NALUs.

	// Ext is present for High profiles when the encoder wrote it.
	Ext *AVCDecoderConfRecordExt
}

// AVCDecoderConfRecordExt is the trailer written for profiles other than
// Baseline, Main and Extended.
type AVCDecoderConfRecordExt struct {
	ChromaFormat         uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8
	SPSExt               [][]byte
}

// hasExtension reports whether profile may carry the record extension.
func hasExtension(profile uint8) bool {
	switch profile {
	case profileBaseline, profileMain, profileExtended:
		return false
	}
	return true
}

// Unmarshal decodes the binary representation of AVCDecoderConfRecord from the given byte slice.
// It returns the number of bytes read and any decoding error encountered. Parameter sets alias b.
func (avc *AVCDecoderConfRecord) Unmarshal(b []byte) (n int, err error) {
	const minLength = 7
	if len(b) < minLength {
		err = ErrDecconfInvalid
		return
	}

	avc.ConfigurationVersion = b[0]
	avc.AVCProfileIndication = b[1]
	avc.ProfileCompatibility = b[2]
	avc.AVCLevelIndication = b[3]
	avc.LengthSizeMinusOne = b[4] & maskLengthSizeMinusOne
	spscount := int(b[5] & maskSPSCount)
	n += 6

	if avc.SPS, n, err = readParamSets(b, n, spscount); err != nil {
		return
	}
	if spscount == 0 {
		err = fmt.Errorf("%w: no SPS", ErrDecconfInvalid)
		return
	}

	if len(b) < n+1 {
		err = ErrDecconfInvalid
		return
	}
	ppscount := int(b[n])
	n++
	if avc.PPS, n, err = readParamSets(b, n, ppscount); err != nil {
		return
	}

	// Encoders often omit the extension even for High profiles, so it is
	// only read when bytes remain.
	avc.Ext = nil
	if !hasExtension(avc.AVCProfileIndication) || len(b) < n+4 {
		return
	}
	ext := &AVCDecoderConfRecordExt{
		ChromaFormat:         b[n] & maskChromaFormat,
		BitDepthLumaMinus8:   b[n+1] & maskBitDepth,
		BitDepthChromaMinus8: b[n+2] & maskBitDepth,
	}
	count := int(b[n+3])
	n += 4
	if ext.SPSExt, n, err = readParamSets(b, n, count); err != nil {
		return
	}
	avc.Ext = ext
	return
}

func readParamSets(b []byte, n, count int) (sets [][]byte, _ int, err error) {
	sets = make([][]byte, 0, count)
	for range count {
		if len(b) < n+lengthFieldSize {
			return nil, n, ErrDecconfInvalid
		}
		size := int(pio.U16BE(b[n:]))
		n += lengthFieldSize

		if len(b) < n+size {
			return nil, n, ErrDecconfInvalid
		}
		sets = append(sets, b[n:n+size])
		n += size
	}
	return sets, n, nil
}

// Len calculates and returns the length of the binary representation of AVCDecoderConfRecord.
// It includes the length of the fixed-size fields and the lengths of SPS and PPS data.
func (avc *AVCDecoderConfRecord) Len() (n int) {
	n = 7
	for _, sps := range avc.SPS {
		n += lengthFieldSize + len(sps)
	}
	for _, pps := range avc.PPS {
		n += lengthFieldSize + len(pps)
	}
	if avc.Ext != nil {
		n += 4
		for _, ext := range avc.Ext.SPSExt {
			n += lengthFieldSize + len(ext)
		}
	}
	return
}

// Marshal serializes the AVCDecoderConfRecord to a binary representation.
// It writes the serialized data to the provided byte slice and returns the number of bytes written.
func (avc *AVCDecoderConfRecord) Marshal(b []byte) (n int) {
	b[0] = 1
	b[1] = avc.AVCProfileIndication
	b[2] = avc.ProfileCompatibility
	b[3] = avc.AVCLevelIndication
	b[4] = avc.LengthSizeMinusOne | maskLengthSizeMinusOneInv
	b[5] = uint8(len(avc.SPS)) | maskSPSCountInv //nolint:gosec // integer overflow for sps count is not possible
	n += 6
	n += writeParamSets(b[n:], avc.SPS)

	b[n] = uint8(len(avc.PPS)) //nolint:gosec // integer overflow for pps count is not possible
	n++
	n += writeParamSets(b[n:], avc.PPS)

	if ext := avc.Ext; ext != nil {
		b[n] = ext.ChromaFormat | maskChromaFormatInv
		b[n+1] = ext.BitDepthLumaMinus8 | maskBitDepthInv
		b[n+2] = ext.BitDepthChromaMinus8 | maskBitDepthInv
		b[n+3] = uint8(len(ext.SPSExt)) //nolint:gosec // integer overflow for sps ext count is not possible
		n += 4
		n += writeParamSets(b[n:], ext.SPSExt)
	}
	return
}

func writeParamSets(b []byte, sets [][]byte) (n int) {
	for _, set := range sets {
		pio.PutU16BE(b[n:], uint16(len(set))) //nolint:gosec // integer overflow for parameter set length is not possible
		n += lengthFieldSize
		n += copy(b[n:], set)
	}
	return
}

// CodecString returns the RFC 6381 codec string, such as avc1.64001f.
func (avc *AVCDecoderConfRecord) CodecString() string {
	return fmt.Sprintf("avc1.%02x%02x%02x",
		avc.AVCProfileIndication, avc.ProfileCompatibility, avc.AVCLevelIndication)
}
