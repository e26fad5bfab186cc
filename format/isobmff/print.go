package isobmff

import (
	"fmt"
	"io"
	"strings"
)

// Children returns the child boxes of box in encoding order.
func Children(box Box) (out []Box) {
	for _, f := range box.Fields() {
		if n, ok := f.(nested); ok {
			out = append(out, n.boxes()...)
		}
	}
	return
}

// BoxSummary is a JSON friendly description of a box tree.
type BoxSummary struct {
	Type     string       `json:"type"`
	Offset   int          `json:"offset"`
	Size     int          `json:"size"`
	Detail   string       `json:"detail,omitempty"`
	Children []BoxSummary `json:"children,omitempty"`
}

// Summary describes box and its descendants. Offsets are relative to the
// start of box.
func Summary(box Box) BoxSummary {
	return summarize(box, 0)
}

func summarize(box Box, offset int) BoxSummary {
	s := BoxSummary{
		Type:   box.Type().String(),
		Offset: offset,
		Size:   Len(box),
	}
	if str, ok := box.(fmt.Stringer); ok {
		s.Detail = str.String()
	}
	fields := box.Fields()
	pos := offset + headerFor(box, fieldsLen(fields)).Len()
	for _, f := range fields {
		n, ok := f.(nested)
		if !ok {
			pos += f.Len()
			continue
		}
		for _, child := range n.boxes() {
			s.Children = append(s.Children, summarize(child, pos))
			pos += Len(child)
		}
	}
	return s
}

// SummarizeFile describes every top level box of f with absolute offsets.
func SummarizeFile(f *File) []BoxSummary {
	return SummarizeBoxes(f.Boxes())
}

// SummarizeBoxes describes consecutive boxes, the first one at offset 0.
func SummarizeBoxes(boxes []Box) []BoxSummary {
	out := make([]BoxSummary, 0, len(boxes))
	pos := 0
	for _, box := range boxes {
		out = append(out, summarize(box, pos))
		pos += Len(box)
	}
	return out
}

// FprintBox writes box as an indented tree, one line per box with its
// offset and size.
func FprintBox(w io.Writer, box Box) error {
	return fprintSummary(w, Summary(box), 0)
}

// Fprint writes the box tree of f.
func Fprint(w io.Writer, f *File) error {
	return FprintBoxes(w, f.Boxes())
}

// FprintBoxes writes the trees of consecutive boxes, the first one at
// offset 0.
func FprintBoxes(w io.Writer, boxes []Box) error {
	for _, s := range SummarizeBoxes(boxes) {
		if err := fprintSummary(w, s, 0); err != nil {
			return err
		}
	}
	return nil
}

func fprintSummary(w io.Writer, s BoxSummary, depth int) error {
	line := fmt.Sprintf("%s[%s] offset=%d size=%d", strings.Repeat("  ", depth), s.Type, s.Offset, s.Size)
	if s.Detail != "" {
		line += " " + s.Detail
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	for _, c := range s.Children {
		if err := fprintSummary(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
