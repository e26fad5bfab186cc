// Package nal splits and rewrites H.264/H.265 NAL unit streams.
package nal

import (
	"github.com/deepch/vdk/utils/bits/pio"
)

// Format is the framing of a NAL unit stream.
type Format int

const (
	Raw    Format = iota // A single unit without framing.
	AVCC                 // Four byte big-endian length prefixes.
	AnnexB               // Three or four byte start codes.
)

// MinNaluSize is the minimum size of a framed NAL unit.
const MinNaluSize = 4

// isStartCode reports the length of a start code at pos, if any.
func isStartCode(b []byte, pos int) (startCodeLength int, found bool) {
	if pos+2 >= len(b) || b[pos] != 0 {
		return 0, false
	}

	val3 := pio.U24BE(b[pos:])
	if val3 == 1 {
		return 3, true //nolint:mnd
	}

	if val3 == 0 && pos+3 < len(b) && b[pos+3] == 1 {
		return 4, true //nolint:mnd
	}

	return 0, false
}

func splitAnnexB(b []byte) (nalus [][]byte) {
	start := -1
	for pos := 0; pos < len(b); {
		n, found := isStartCode(b, pos)
		if !found {
			pos++
			continue
		}
		if start >= 0 && start < pos {
			nalus = append(nalus, b[start:pos])
		}
		pos += n
		start = pos
	}
	if start >= 0 && start < len(b) {
		nalus = append(nalus, b[start:])
	}
	return nalus
}

// splitAVCC returns nil unless the length prefixes cover b exactly.
func splitAVCC(b []byte) (nalus [][]byte) {
	for len(b) > 0 {
		if len(b) < MinNaluSize {
			return nil
		}
		size := pio.U32BE(b)
		b = b[MinNaluSize:]
		if uint64(size) > uint64(len(b)) {
			return nil
		}
		if size > 0 {
			nalus = append(nalus, b[:size])
		}
		b = b[size:]
	}
	return nalus
}

// SplitNALUs detects the framing of b and returns its units. The units
// alias b.
func SplitNALUs(b []byte) (nalus [][]byte, typ Format) {
	if len(b) < MinNaluSize {
		return [][]byte{b}, Raw
	}
	if nalus = splitAVCC(b); len(nalus) > 0 {
		return nalus, AVCC
	}
	if _, found := isStartCode(b, 0); found {
		return splitAnnexB(b), AnnexB
	}
	return [][]byte{b}, Raw
}

// ToAVCC rewrites b with four byte length prefixes. Input that is already
// length prefixed is returned as is.
func ToAVCC(b []byte) []byte {
	nalus, typ := SplitNALUs(b)
	if typ == AVCC {
		return b
	}
	size := 0
	for _, nalu := range nalus {
		size += MinNaluSize + len(nalu)
	}
	out := make([]byte, size)
	n := 0
	for _, nalu := range nalus {
		pio.PutU32BE(out[n:], uint32(len(nalu))) //nolint:gosec // units are smaller than 4 GiB
		n += MinNaluSize
		n += copy(out[n:], nalu)
	}
	return out
}

// EmulationPreventionAdd inserts emulation prevention bytes into an RBSP.
func EmulationPreventionAdd(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/2)
	zeros := 0
	for _, c := range rbsp {
		if zeros >= 2 && c <= 3 {
			out = append(out, 3)
			zeros = 0
		}
		out = append(out, c)
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
