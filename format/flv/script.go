package flv

import (
	"fmt"
	"io"
)

const (
	ScriptOnMetaData   = "onMetaData"
	ScriptSetDataFrame = "@setDataFrame"
)

// ScriptData is the body of a script data tag: a name followed by AMF0
// arguments.
type ScriptData struct {
	Name   string
	Values []any
}

func (s *ScriptData) Unmarshal(b []byte) (n int, err error) {
	values, err := DecodeAll(b)
	if err != nil {
		return 0, fmt.Errorf("flv: script data: %w", err)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("flv: empty script data: %w", io.ErrUnexpectedEOF)
	}
	name, ok := values[0].(string)
	if !ok {
		return 0, fmt.Errorf("flv: script data name is %T", values[0])
	}
	s.Name = name
	s.Values = values[1:]
	return len(b), nil
}

// Append appends the AMF0 encoding of the script data to b.
func (s *ScriptData) Append(b []byte) ([]byte, error) {
	b, err := AppendValue(b, s.Name)
	if err != nil {
		return nil, err
	}
	for _, v := range s.Values {
		if b, err = AppendValue(b, v); err != nil {
			return nil, fmt.Errorf("flv: script data %s: %w", s.Name, err)
		}
	}
	return b, nil
}

// NewScriptTag encodes s into a script data tag.
func NewScriptTag(timestamp uint32, s *ScriptData) (Tag, error) {
	b, err := s.Append(nil)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Type: TagScript, Timestamp: timestamp, Body: b}, nil
}

// Metadata is the stream description carried by onMetaData. Absent numeric
// properties are zero. Data rates are in kbit/s.
type Metadata struct {
	Duration        float64
	FileSize        float64
	Width           float64
	Height          float64
	FrameRate       float64
	VideoDataRate   float64
	VideoCodecID    float64
	VideoFourCC     string
	AudioDataRate   float64
	AudioSampleRate float64
	AudioSampleSize float64
	AudioCodecID    float64
	Stereo          bool
	Encoder         string

	// Properties holds every property of the message, known or not.
	Properties []Property
}

// Metadata extracts onMetaData, either sent directly or wrapped in
// @setDataFrame. ok is false for any other script data.
func (s *ScriptData) Metadata() (m Metadata, ok bool) {
	values := s.Values
	switch s.Name {
	case ScriptOnMetaData:
	case ScriptSetDataFrame:
		if len(values) == 0 || values[0] != ScriptOnMetaData {
			return m, false
		}
		values = values[1:]
	default:
		return m, false
	}
	if len(values) == 0 {
		return m, false
	}

	var props []Property
	switch v := values[0].(type) {
	case ECMAArray:
		props = v
	case Object:
		props = v
	default:
		return m, false
	}
	return ParseMetadata(props), true
}

// ParseMetadata reads the well-known onMetaData properties.
func ParseMetadata(props []Property) (m Metadata) {
	m.Properties = props
	for _, p := range props {
		f, _ := p.Value.(float64)
		switch p.Key {
		case "duration":
			m.Duration = f
		case "filesize":
			m.FileSize = f
		case "width":
			m.Width = f
		case "height":
			m.Height = f
		case "framerate":
			m.FrameRate = f
		case "videodatarate":
			m.VideoDataRate = f
		case "videocodecid":
			// Enhanced RTMP encoders send the FourCC as a number or a string.
			if s, ok := p.Value.(string); ok {
				m.VideoFourCC = s
			}
			m.VideoCodecID = f
		case "audiodatarate":
			m.AudioDataRate = f
		case "audiosamplerate":
			m.AudioSampleRate = f
		case "audiosamplesize":
			m.AudioSampleSize = f
		case "audiocodecid":
			m.AudioCodecID = f
		case "stereo":
			m.Stereo, _ = p.Value.(bool)
		case "encoder":
			m.Encoder, _ = p.Value.(string)
		}
	}
	return
}

// ScriptData returns an onMetaData message with every non-zero field.
func (m *Metadata) ScriptData() *ScriptData {
	var arr ECMAArray
	num := func(key string, v float64) {
		if v != 0 {
			arr = append(arr, Property{Key: key, Value: v})
		}
	}
	num("duration", m.Duration)
	num("filesize", m.FileSize)
	num("width", m.Width)
	num("height", m.Height)
	num("framerate", m.FrameRate)
	num("videodatarate", m.VideoDataRate)
	if m.VideoFourCC != "" {
		arr = append(arr, Property{Key: "videocodecid", Value: m.VideoFourCC})
	} else {
		num("videocodecid", m.VideoCodecID)
	}
	num("audiodatarate", m.AudioDataRate)
	num("audiosamplerate", m.AudioSampleRate)
	num("audiosamplesize", m.AudioSampleSize)
	num("audiocodecid", m.AudioCodecID)
	if m.Stereo {
		arr = append(arr, Property{Key: "stereo", Value: true})
	}
	if m.Encoder != "" {
		arr = append(arr, Property{Key: "encoder", Value: m.Encoder})
	}
	return &ScriptData{Name: ScriptOnMetaData, Values: []any{arr}}
}
