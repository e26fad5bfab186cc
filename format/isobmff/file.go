package isobmff

import (
	"io"

	"github.com/ugparu/bmff/utils/zerocopy"
)

// typeFile names the headerless top level in errors.
var typeFile = Type4("file")

// File is the sequence of top level boxes of an ISOBMFF file. It has no
// header of its own. A file built in code is written in field order. A file
// returned by ReadFile is written in the order its boxes were read, so chunk
// offsets into mdat stay valid.
type File struct {
	Ftyp    FileTypeBox
	Etyp    []ExtendedTypeBox
	Mdat    []MediaDataBox
	Pdin    *ProgressiveDownloadInfoBox
	Imda    []IdentifiedMediaDataBox
	Moov    *MovieBox
	Moof    []MovieFragmentBox
	Meta    *MetaBox
	Unknown []UnknownBox

	// order holds the top level box types as read.
	order []BoxType
}

func (f *File) fields() []Field {
	return []Field{
		One(&f.Ftyp),
		Many(&f.Etyp),
		Many(&f.Mdat),
		Optional(&f.Pdin),
		Many(&f.Imda),
		Optional(&f.Moov),
		Many(&f.Moof),
		Optional(&f.Meta),
		Unknown(&f.Unknown),
	}
}

// ReadFile decodes every top level box of data. ftyp is mandatory, and so is
// moov unless the file is made of movie fragments. Byte slices in the result
// alias data.
func ReadFile(data []byte) (*File, error) {
	f := new(File)
	if err := decodeChildren(typeFile, f.fields(), zerocopy.NewReader(data)); err != nil {
		return nil, err
	}
	if f.Moov == nil && len(f.Moof) == 0 {
		return nil, &MissingBoxError{Parent: typeFile, Box: TypeMoov}
	}
	f.order = scanTypes(zerocopy.NewReader(data))
	return f, nil
}

// scanTypes lists the types of the boxes in r, stopping at the first header
// that does not frame a box.
func scanTypes(r *zerocopy.Reader) (types []BoxType) {
	for r.Len() >= headerLen {
		h, err := DemuxHeader(r)
		if err != nil {
			return
		}
		if _, err = payloadReader(h, r); err != nil {
			return
		}
		types = append(types, h.Type)
	}
	return
}

// ReadBoxes decodes data as a flat sequence of top level boxes through the
// registry, without any cardinality rules. It suits media segments, which
// start with styp rather than ftyp.
func ReadBoxes(data []byte) ([]Box, error) {
	r := zerocopy.NewReader(data)
	var boxes []Box
	for r.Len() >= headerLen {
		box, err := DecodeBox(r)
		if err != nil {
			return boxes, err
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// Boxes returns the top level boxes in encoding order. Boxes added after
// ReadFile follow the ones that were read, in field order.
func (f *File) Boxes() []Box {
	var declared []Box
	for _, field := range f.fields() {
		declared = append(declared, field.(nested).boxes()...) //nolint:forcetypeassert // every file field is nested
	}
	if len(f.order) == 0 {
		return declared
	}

	queues := make(map[BoxType][]int)
	for i, box := range declared {
		queues[box.Type()] = append(queues[box.Type()], i)
	}
	out := make([]Box, 0, len(declared))
	used := make([]bool, len(declared))
	for _, t := range f.order {
		q := queues[t]
		if len(q) == 0 {
			continue
		}
		out = append(out, declared[q[0]])
		used[q[0]] = true
		queues[t] = q[1:]
	}
	for i, box := range declared {
		if !used[i] {
			out = append(out, box)
		}
	}
	return out
}

// Len returns the encoded size of the file.
func (f *File) Len() int {
	return fieldsLen(f.fields())
}

// Marshal writes the file to b, which must hold at least f.Len() bytes.
func (f *File) Marshal(b []byte) (n int) {
	for _, box := range f.Boxes() {
		n += Marshal(b[n:], box)
	}
	return
}

// Bytes returns the encoding of the file.
func (f *File) Bytes() []byte {
	b := make([]byte, f.Len())
	f.Marshal(b)
	return b
}

// WriteTo writes the encoding of the file to w.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}
