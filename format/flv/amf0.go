package flv

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/deepch/vdk/utils/bits/pio"

	"github.com/ugparu/bmff/utils/zerocopy"
)

// Marker is the type byte in front of every AMF0 value.
type Marker uint8

const (
	MarkerNumber      Marker = 0x00
	MarkerBoolean     Marker = 0x01
	MarkerString      Marker = 0x02
	MarkerObject      Marker = 0x03
	MarkerMovieClip   Marker = 0x04
	MarkerNull        Marker = 0x05
	MarkerUndefined   Marker = 0x06
	MarkerReference   Marker = 0x07
	MarkerECMAArray   Marker = 0x08
	MarkerObjectEnd   Marker = 0x09
	MarkerStrictArray Marker = 0x0a
	MarkerDate        Marker = 0x0b
	MarkerLongString  Marker = 0x0c
)

// ErrUnsupportedMarker is returned for AMF0 types that cannot be decoded,
// such as references, movie clips and AMF3 switches.
var ErrUnsupportedMarker = errors.New("amf0: unsupported marker")

// Property is one key/value pair of an Object or ECMAArray.
type Property struct {
	Key   string
	Value any
}

// Object is an anonymous AMF0 object. Property order is kept.
type Object []Property

// Get returns the value of the first property named key.
func (o Object) Get(key string) (any, bool) {
	for _, p := range o {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// ECMAArray is an associative array. It decodes like an Object but keeps its
// own marker when encoded.
type ECMAArray []Property

// StrictArray is an ordinal array.
type StrictArray []any

// Undefined is the AMF0 undefined value. Null decodes to nil.
type Undefined struct{}

// Date is milliseconds since the Unix epoch plus a time zone that encoders
// are required to write as zero.
type Date struct {
	Millis   float64
	TimeZone int16
}

func (d Date) Time() time.Time {
	return time.UnixMilli(int64(d.Millis)).UTC()
}

// DecodeValue reads one AMF0 value. Numbers decode to float64, strings of
// both widths to string, null to nil.
func DecodeValue(r *zerocopy.Reader) (any, error) {
	m, err := r.U8()
	if err != nil {
		return nil, err
	}
	switch Marker(m) {
	case MarkerNumber:
		return readNumber(r)
	case MarkerBoolean:
		b, err := r.U8()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case MarkerString:
		return readString(r, false)
	case MarkerLongString:
		return readString(r, true)
	case MarkerObject:
		props, err := readProperties(r)
		return Object(props), err
	case MarkerECMAArray:
		// The count is only a hint, the terminator ends the array.
		if err = r.Skip(4); err != nil { //nolint:mnd
			return nil, err
		}
		props, err := readProperties(r)
		return ECMAArray(props), err
	case MarkerStrictArray:
		n, err := r.U32()
		if err != nil {
			return nil, err
		}
		if int(n) > r.Len() {
			return nil, fmt.Errorf("amf0: strict array of %d values: %w", n, errShortAMF)
		}
		arr := make(StrictArray, 0, n)
		for range n {
			v, err := DecodeValue(r)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case MarkerDate:
		ms, err := readNumber(r)
		if err != nil {
			return nil, err
		}
		tz, err := r.I16()
		if err != nil {
			return nil, err
		}
		return Date{Millis: ms, TimeZone: tz}, nil
	case MarkerNull:
		return nil, nil
	case MarkerUndefined:
		return Undefined{}, nil
	}
	return nil, fmt.Errorf("%w 0x%02x at offset %d", ErrUnsupportedMarker, m, r.Offset()-1)
}

var errShortAMF = errors.New("amf0: value exceeds buffer")

// DecodeAll reads values until b is exhausted.
func DecodeAll(b []byte) ([]any, error) {
	var values []any
	r := zerocopy.NewReader(b)
	for r.Len() > 0 {
		v, err := DecodeValue(r)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func readNumber(r *zerocopy.Reader) (float64, error) {
	u, err := r.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

func readString(r *zerocopy.Reader, long bool) (string, error) {
	var n uint32
	if long {
		v, err := r.U32()
		if err != nil {
			return "", err
		}
		n = v
	} else {
		v, err := r.U16()
		if err != nil {
			return "", err
		}
		n = uint32(v)
	}
	b, err := r.ExtractBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readProperties(r *zerocopy.Reader) ([]Property, error) {
	props := []Property{}
	for {
		key, err := readString(r, false)
		if err != nil {
			return nil, err
		}
		if key == "" {
			next, err := r.Peek(1)
			if err != nil {
				return nil, err
			}
			if Marker(next[0]) == MarkerObjectEnd {
				_ = r.Skip(1)
				return props, nil
			}
		}
		v, err := DecodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("amf0: property %q: %w", key, err)
		}
		props = append(props, Property{Key: key, Value: v})
	}
}

// AppendValue appends the encoding of v to b. Integer types are written as
// numbers and strings longer than 65535 bytes as long strings.
func AppendValue(b []byte, v any) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return append(b, byte(MarkerNull)), nil
	case Undefined:
		return append(b, byte(MarkerUndefined)), nil
	case float64:
		return appendNumber(append(b, byte(MarkerNumber)), v), nil
	case int:
		return appendNumber(append(b, byte(MarkerNumber)), float64(v)), nil
	case uint32:
		return appendNumber(append(b, byte(MarkerNumber)), float64(v)), nil
	case bool:
		var x byte
		if v {
			x = 1
		}
		return append(b, byte(MarkerBoolean), x), nil
	case string:
		if len(v) > math.MaxUint16 {
			b = append(b, byte(MarkerLongString))
			b = appendU32(b, uint32(len(v))) //nolint:gosec
			return append(b, v...), nil
		}
		return appendKey(append(b, byte(MarkerString)), v), nil
	case Object:
		return appendProperties(append(b, byte(MarkerObject)), v)
	case ECMAArray:
		b = appendU32(append(b, byte(MarkerECMAArray)), uint32(len(v))) //nolint:gosec
		return appendProperties(b, v)
	case StrictArray:
		b = appendU32(append(b, byte(MarkerStrictArray)), uint32(len(v))) //nolint:gosec
		var err error
		for _, e := range v {
			if b, err = AppendValue(b, e); err != nil {
				return nil, err
			}
		}
		return b, nil
	case Date:
		b = appendNumber(append(b, byte(MarkerDate)), v.Millis)
		return append(b, byte(v.TimeZone>>8), byte(v.TimeZone)), nil //nolint:mnd
	}
	return nil, fmt.Errorf("amf0: cannot encode %T", v)
}

func appendNumber(b []byte, f float64) []byte {
	var tmp [8]byte
	pio.PutU64BE(tmp[:], math.Float64bits(f))
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	pio.PutU32BE(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendKey(b []byte, s string) []byte {
	b = append(b, byte(len(s)>>8), byte(len(s))) //nolint:mnd
	return append(b, s...)
}

func appendProperties(b []byte, props []Property) ([]byte, error) {
	var err error
	for _, p := range props {
		if len(p.Key) > math.MaxUint16 {
			return nil, fmt.Errorf("amf0: property key of %d bytes", len(p.Key))
		}
		b = appendKey(b, p.Key)
		if b, err = AppendValue(b, p.Value); err != nil {
			return nil, fmt.Errorf("amf0: property %q: %w", p.Key, err)
		}
	}
	return append(b, 0, 0, byte(MarkerObjectEnd)), nil
}
