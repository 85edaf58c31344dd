/*
	This file supports the "npz" wire encoding of volumes: a numpy .npy
	array stream compressed with zlib.
*/

package ndio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/sbinet/npyio/npy"
)

const npyMagic = "\x93NUMPY"

var typeDescr = map[DataType]string{
	T_uint8:   "|u1",
	T_int8:    "|i1",
	T_uint16:  "<u2",
	T_int16:   "<i2",
	T_uint32:  "<u4",
	T_int32:   "<i4",
	T_uint64:  "<u8",
	T_int64:   "<i8",
	T_float32: "<f4",
	T_float64: "<f8",
}

var typeElems = map[DataType]reflect.Type{
	T_uint8:   reflect.TypeOf(uint8(0)),
	T_int8:    reflect.TypeOf(int8(0)),
	T_uint16:  reflect.TypeOf(uint16(0)),
	T_int16:   reflect.TypeOf(int16(0)),
	T_uint32:  reflect.TypeOf(uint32(0)),
	T_int32:   reflect.TypeOf(int32(0)),
	T_uint64:  reflect.TypeOf(uint64(0)),
	T_int64:   reflect.TypeOf(int64(0)),
	T_float32: reflect.TypeOf(float32(0)),
	T_float64: reflect.TypeOf(float64(0)),
}

// NumpyDescr returns the numpy type string, e.g., "<u2" for T_uint16.
func (t DataType) NumpyDescr() string {
	return typeDescr[t]
}

// DataTypeFromDescr parses a numpy type string.  Only little-endian or
// byte-order independent types are supported.
func DataTypeFromDescr(descr string) (DataType, error) {
	if len(descr) != 3 {
		return T_unset, fmt.Errorf("unsupported numpy type %q", descr)
	}
	order, kind := descr[0], descr[1:]
	for t, d := range typeDescr {
		if d[1:] != kind {
			continue
		}
		switch {
		case order == '<' || order == '|' || order == '=':
			return t, nil
		case t.Bytes() == 1:
			return t, nil
		}
		return T_unset, fmt.Errorf("big-endian numpy type %q not supported", descr)
	}
	return T_unset, fmt.Errorf("unsupported numpy type %q", descr)
}

// npyDescr is the array descriptor type of npy.Header.Descr.
type npyDescr = struct {
	Type    string
	Fortran bool
	Shape   []int
}

// writeNPYHeader writes a version 1.0 header padded so the data that
// follows is 64-byte aligned.  The npy writer only records the shape of
// vectors and matrices, so the dictionary is rendered from the descriptor.
func writeNPYHeader(w io.Writer, descr npyDescr) error {
	dims := make([]string, len(descr.Shape))
	for i, d := range descr.Shape {
		dims[i] = fmt.Sprint(d)
	}
	fortran := "False"
	if descr.Fortran {
		fortran = "True"
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': (%s), }",
		descr.Type, fortran, strings.Join(dims, ", "))

	preamble := len(npyMagic) + 2 + 2
	if rem := (preamble + len(dict) + 1) % 64; rem != 0 {
		dict += strings.Repeat(" ", 64-rem)
	}
	dict += "\n"

	hdr := make([]byte, preamble)
	copy(hdr, npyMagic)
	hdr[6], hdr[7] = 1, 0
	binary.LittleEndian.PutUint16(hdr[8:], uint16(len(dict)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err := io.WriteString(w, dict)
	return err
}

// EncodeNPZ writes a LayoutZYX volume as a zlib-compressed .npy array of
// shape (frames, z, y, x).
func EncodeNPZ(v *Volume) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if v.Layout != LayoutZYX {
		return nil, fmt.Errorf("npz encoding requires %s layout, got %s", LayoutZYX, v.Layout)
	}
	shape := v.Shape()
	descr := npyDescr{
		Type:  v.Type.NumpyDescr(),
		Shape: []int{int(shape[0]), int(shape[1]), int(shape[2]), int(shape[3])},
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if err := writeNPYHeader(zw, descr); err != nil {
		return nil, err
	}
	if _, err := zw.Write(v.Data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeNPZ reads a zlib-compressed .npy array of shape (z, y, x) or
// (t, z, y, x) into a LayoutZYX volume.
func DecodeNPZ(b []byte) (*Volume, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("npz payload is not zlib compressed: %v", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("unable to decompress npz payload: %v", err)
	}
	return DecodeNPY(raw)
}

// DecodeNPY reads an uncompressed .npy array into a LayoutZYX volume.
func DecodeNPY(raw []byte) (*Volume, error) {
	r, err := npy.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("payload is not a numpy array: %v", err)
	}
	descr := r.Header.Descr
	dtype, err := DataTypeFromDescr(descr.Type)
	if err != nil {
		return nil, err
	}
	if descr.Fortran {
		return nil, fmt.Errorf("fortran ordered numpy arrays are not supported")
	}
	v := &Volume{Frames: 1, Type: dtype, Layout: LayoutZYX}
	dims := descr.Shape
	switch len(dims) {
	case 3:
		v.Size = Point3d{int32(dims[2]), int32(dims[1]), int32(dims[0])}
	case 4:
		v.Frames = int32(dims[0])
		v.Size = Point3d{int32(dims[3]), int32(dims[2]), int32(dims[1])}
	default:
		return nil, fmt.Errorf("expected 3 or 4 dimensional array, got shape %v", dims)
	}
	if v.Frames <= 0 || !v.Size.Positive() {
		return nil, fmt.Errorf("numpy array has bad shape %v", dims)
	}

	elems := reflect.New(reflect.SliceOf(typeElems[dtype]))
	elems.Elem().Set(reflect.MakeSlice(elems.Elem().Type(), int(v.NumVoxels()), int(v.NumVoxels())))
	if err := r.Read(elems.Interface()); err != nil {
		return nil, fmt.Errorf("unable to read %s numpy array of shape %v: %v", dtype, dims, err)
	}
	var data bytes.Buffer
	data.Grow(int(v.NumVoxels()) * dtype.Bytes())
	if err := binary.Write(&data, binary.LittleEndian, elems.Elem().Interface()); err != nil {
		return nil, err
	}
	v.Data = data.Bytes()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}
