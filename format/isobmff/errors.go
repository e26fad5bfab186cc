package isobmff

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ugparu/bmff/utils/zerocopy"
)

// ErrInvalidUTF8 is returned by string fields holding invalid UTF-8.
var ErrInvalidUTF8 = zerocopy.ErrInvalidUTF8

var errShortTable = fmt.Errorf("isobmff: entry count exceeds payload: %w", io.ErrUnexpectedEOF)

// MissingBoxError reports a mandatory child box that is absent from its parent.
type MissingBoxError struct {
	Parent BoxType
	Box    BoxType
}

func (e *MissingBoxError) Error() string {
	return fmt.Sprintf("isobmff: %s: missing mandatory box %s", e.Parent, e.Box)
}

// BoxTypeMismatchError reports a box decoded into a schema of a different type.
type BoxTypeMismatchError struct {
	Expected BoxType
	Actual   BoxType
}

func (e *BoxTypeMismatchError) Error() string {
	return fmt.Sprintf("isobmff: expected box %s, got %s", e.Expected, e.Actual)
}

// InvalidSizeError reports a declared size smaller than the box header.
type InvalidSizeError struct {
	Type      BoxType
	Size      uint64
	HeaderLen int
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("isobmff: %s: declared size %d is smaller than its %d byte header", e.Type, e.Size, e.HeaderLen)
}

// ParseError locates a failure inside the box tree. Err holds the cause.
type ParseError struct {
	Box    BoxType
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	path := []string{e.Box.String()}
	err := e.Err
	var inner *ParseError
	for errors.As(err, &inner) {
		path = append(path, inner.Box.String())
		err = inner.Err
	}
	return fmt.Sprintf("isobmff: %s at offset %d: %v", strings.Join(path, ">"), e.Offset, trimPrefix(err))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func trimPrefix(err error) string {
	return strings.TrimPrefix(err.Error(), "isobmff: ")
}

// Path returns the chain of box types from the outermost failing box.
func (e *ParseError) Path() []BoxType {
	path := []BoxType{e.Box}
	var inner *ParseError
	err := e.Err
	for errors.As(err, &inner) {
		path = append(path, inner.Box)
		err = inner.Err
	}
	return path
}

func wrap(t BoxType, offset int, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Box: t, Offset: offset, Err: err}
}

// InvalidFieldError reports a field value the box layout cannot represent.
type InvalidFieldError struct {
	Box   BoxType
	Field string
	Value uint64
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("isobmff: %s: invalid %s %d", e.Box, e.Field, e.Value)
}
