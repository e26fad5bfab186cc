package flv

import (
	"fmt"
	"io"
)

// SoundFormat is the codec of an audio tag.
type SoundFormat uint8

const (
	SoundFormatPCM         SoundFormat = 0
	SoundFormatADPCM       SoundFormat = 1
	SoundFormatMP3         SoundFormat = 2
	SoundFormatPCMLE       SoundFormat = 3
	SoundFormatNellymoser8 SoundFormat = 5
	SoundFormatNellymoser  SoundFormat = 6
	SoundFormatG711ALaw    SoundFormat = 7
	SoundFormatG711MuLaw   SoundFormat = 8
	SoundFormatAAC         SoundFormat = 10
	SoundFormatSpeex       SoundFormat = 11
	SoundFormatMP38k       SoundFormat = 14
	SoundFormatDevice      SoundFormat = 15
)

func (f SoundFormat) String() string {
	switch f {
	case SoundFormatPCM, SoundFormatPCMLE:
		return "PCM"
	case SoundFormatADPCM:
		return "ADPCM"
	case SoundFormatMP3, SoundFormatMP38k:
		return "MP3"
	case SoundFormatNellymoser8, SoundFormatNellymoser:
		return "Nellymoser"
	case SoundFormatG711ALaw:
		return "G711A"
	case SoundFormatG711MuLaw:
		return "G711U"
	case SoundFormatAAC:
		return "AAC"
	case SoundFormatSpeex:
		return "Speex"
	}
	return fmt.Sprintf("SoundFormat(%d)", uint8(f))
}

// SoundRate is the two-bit sampling rate field. AAC streams always signal
// SoundRate44k and carry the real rate in the AudioSpecificConfig.
type SoundRate uint8

const (
	SoundRate5k5 SoundRate = 0
	SoundRate11k SoundRate = 1
	SoundRate22k SoundRate = 2
	SoundRate44k SoundRate = 3
)

// Hz returns the sampling rate in hertz.
func (r SoundRate) Hz() int {
	switch r {
	case SoundRate5k5:
		return 5512 //nolint:mnd
	case SoundRate11k:
		return 11025 //nolint:mnd
	case SoundRate22k:
		return 22050 //nolint:mnd
	}
	return 44100 //nolint:mnd
}

type SoundSize uint8

const (
	SoundSize8Bit  SoundSize = 0
	SoundSize16Bit SoundSize = 1
)

// SoundType is mono or stereo.
type SoundType uint8

const (
	SoundMono   SoundType = 0
	SoundStereo SoundType = 1
)

// Channels returns the channel count signalled by the sound type.
func (t SoundType) Channels() uint8 {
	if t == SoundStereo {
		return 2 //nolint:mnd
	}
	return 1
}

// AACPacketType follows the audio header byte when the format is AAC.
type AACPacketType uint8

const (
	AACSequenceHeader AACPacketType = 0
	AACRaw            AACPacketType = 1
)

// AudioData is the body of an audio tag. For AAC, Data holds the
// AudioSpecificConfig when AACPacketType is AACSequenceHeader and a raw
// frame otherwise.
type AudioData struct {
	Format        SoundFormat
	Rate          SoundRate
	Size          SoundSize
	Type          SoundType
	AACPacketType AACPacketType
	Data          []byte
}

// IsSequenceHeader reports whether the tag carries an AAC AudioSpecificConfig.
func (a *AudioData) IsSequenceHeader() bool {
	return a.Format == SoundFormatAAC && a.AACPacketType == AACSequenceHeader
}

func (a *AudioData) Unmarshal(b []byte) (n int, err error) {
	if len(b) < 1 {
		return 0, io.ErrUnexpectedEOF
	}
	a.Format = SoundFormat(b[0] >> 4)
	a.Rate = SoundRate((b[0] >> 2) & 0x03)
	a.Size = SoundSize((b[0] >> 1) & 0x01)
	a.Type = SoundType(b[0] & 0x01)
	n = 1
	if a.Format == SoundFormatAAC {
		if len(b) < 2 { //nolint:mnd
			return 0, fmt.Errorf("flv: aac packet type: %w", io.ErrUnexpectedEOF)
		}
		a.AACPacketType = AACPacketType(b[1])
		n++
	}
	a.Data = b[n:len(b):len(b)]
	return len(b), nil
}

func (a *AudioData) Len() int {
	n := 1 + len(a.Data)
	if a.Format == SoundFormatAAC {
		n++
	}
	return n
}

func (a *AudioData) Marshal(b []byte) (n int) {
	b[0] = byte(a.Format)<<4 | byte(a.Rate&0x03)<<2 | byte(a.Size&0x01)<<1 | byte(a.Type&0x01)
	n = 1
	if a.Format == SoundFormatAAC {
		b[n] = byte(a.AACPacketType)
		n++
	}
	n += copy(b[n:], a.Data)
	return
}
