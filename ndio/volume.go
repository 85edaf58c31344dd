package ndio

import "fmt"

// Layout is the memory order of a Volume's elements.  Frames are always the
// slowest varying axis.
type Layout uint8

const (
	// LayoutZYX has shape (t, z, y, x) with x varying fastest.  Payloads
	// exchanged with the store use this layout.
	LayoutZYX Layout = iota

	// LayoutXYZ has shape (t, x, y, z) with z varying fastest.  Cutouts are
	// returned to and accepted from callers in this layout.
	LayoutXYZ
)

func (l Layout) String() string {
	switch l {
	case LayoutZYX:
		return "zyx"
	case LayoutXYZ:
		return "xyz"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// axes returns the spatial axes from slowest to fastest varying.
func (l Layout) axes() [3]int {
	if l == LayoutXYZ {
		return [3]int{0, 1, 2}
	}
	return [3]int{2, 1, 0}
}

// Volume is a dense array of elements covering Size voxels for each of Frames
// time points.  Elements are little-endian.
type Volume struct {
	Size   Point3d
	Frames int32
	Type   DataType
	Layout Layout
	Data   []byte
}

// NewVolume returns a zeroed volume.
func NewVolume(size Point3d, frames int32, t DataType, layout Layout) (*Volume, error) {
	if !size.Positive() || frames <= 0 {
		return nil, fmt.Errorf("cannot allocate volume of size %s with %d frames", size, frames)
	}
	if t.Bytes() == 0 {
		return nil, fmt.Errorf("cannot allocate volume with data type %s", t)
	}
	n := size.Prod() * int64(frames) * int64(t.Bytes())
	return &Volume{
		Size:   size,
		Frames: frames,
		Type:   t,
		Layout: layout,
		Data:   make([]byte, n),
	}, nil
}

// Shape returns the dimensions in memory order, slowest first, numpy style.
func (v *Volume) Shape() [4]int32 {
	axes := v.Layout.axes()
	return [4]int32{v.Frames, v.Size[axes[0]], v.Size[axes[1]], v.Size[axes[2]]}
}

// NumVoxels returns the number of elements across all frames.
func (v *Volume) NumVoxels() int64 {
	return v.Size.Prod() * int64(v.Frames)
}

// Validate checks that the data length matches size, frames and type.
func (v *Volume) Validate() error {
	if v.Type.Bytes() == 0 {
		return fmt.Errorf("volume has no data type")
	}
	if v.Frames <= 0 || !v.Size.Positive() {
		return fmt.Errorf("volume has bad size %s with %d frames", v.Size, v.Frames)
	}
	expected := v.NumVoxels() * int64(v.Type.Bytes())
	if int64(len(v.Data)) != expected {
		return fmt.Errorf("volume of size %s, %d frames, type %s should have %d bytes, has %d",
			v.Size, v.Frames, v.Type, expected, len(v.Data))
	}
	return nil
}

// strides returns the element strides for x, y, z and frames.
func (v *Volume) strides() (s [3]int64, frame int64) {
	axes := v.Layout.axes()
	s[axes[2]] = 1
	s[axes[1]] = int64(v.Size[axes[2]])
	s[axes[0]] = int64(v.Size[axes[2]]) * int64(v.Size[axes[1]])
	return s, v.Size.Prod()
}

// Offset returns the byte offset of the element at (x, y, z) in frame t,
// with coordinates relative to the volume's corner.
func (v *Volume) Offset(t, x, y, z int32) int {
	s, frame := v.strides()
	i := int64(t)*frame + int64(x)*s[0] + int64(y)*s[1] + int64(z)*s[2]
	return int(i) * v.Type.Bytes()
}

// At returns the bytes of the element at (x, y, z) in the first frame.
func (v *Volume) At(x, y, z int32) []byte {
	i := v.Offset(0, x, y, z)
	return v.Data[i : i+v.Type.Bytes()]
}

// Value returns the element at (x, y, z) in frame t converted to float64.
func (v *Volume) Value(t, x, y, z int32) float64 {
	i := v.Offset(t, x, y, z)
	return readElement(v.Type, v.Data[i:]).float(v.Type)
}

// SetValue stores val, converted to the volume's type, at (x, y, z) in frame t.
func (v *Volume) SetValue(t, x, y, z int32, val float64) {
	i := v.Offset(t, x, y, z)
	writeElement(v.Type, v.Data[i:], T_float64, element{f: val})
}

// Reorder returns the volume in the given layout.  Conversion between
// LayoutZYX and LayoutXYZ reverses the order of the spatial axes and so is
// its own inverse.  The receiver is returned if it already has the layout.
func (v *Volume) Reorder(layout Layout) *Volume {
	if v.Layout == layout {
		return v
	}
	out := &Volume{
		Size:   v.Size,
		Frames: v.Frames,
		Type:   v.Type,
		Layout: layout,
		Data:   make([]byte, len(v.Data)),
	}
	elemBytes := v.Type.Bytes()
	srcS, srcFrame := v.strides()
	axes := layout.axes()
	dst := 0
	for t := int64(0); t < int64(v.Frames); t++ {
		tOff := t * srcFrame
		// walk destination memory order
		for a := int32(0); a < v.Size[axes[0]]; a++ {
			for b := int32(0); b < v.Size[axes[1]]; b++ {
				base := tOff + int64(a)*srcS[axes[0]] + int64(b)*srcS[axes[1]]
				step := srcS[axes[2]]
				for c := int32(0); c < v.Size[axes[2]]; c++ {
					src := int(base+int64(c)*step) * elemBytes
					copy(out.Data[dst:dst+elemBytes], v.Data[src:src+elemBytes])
					dst += elemBytes
				}
			}
		}
	}
	return out
}

// Cast returns the volume converted to the given type.  Integer narrowing wraps
// and float to integer conversion truncates toward zero.  The receiver is
// returned if it already has the type.
func (v *Volume) Cast(t DataType) (*Volume, error) {
	if v.Type == t {
		return v, nil
	}
	if t.Bytes() == 0 {
		return nil, fmt.Errorf("cannot cast volume to data type %s", t)
	}
	out := &Volume{
		Size:   v.Size,
		Frames: v.Frames,
		Type:   t,
		Layout: v.Layout,
		Data:   make([]byte, v.NumVoxels()*int64(t.Bytes())),
	}
	srcBytes, dstBytes := v.Type.Bytes(), t.Bytes()
	for i, j := 0, 0; i < len(v.Data); i, j = i+srcBytes, j+dstBytes {
		writeElement(t, out.Data[j:], v.Type, readElement(v.Type, v.Data[i:]))
	}
	return out, nil
}

// compatible returns an error unless src can be copied into v element for element.
func (v *Volume) compatible(src *Volume) error {
	if v.Type != src.Type {
		return &DtypeMismatchError{Expected: v.Type, Actual: src.Type}
	}
	if v.Layout != src.Layout {
		return fmt.Errorf("cannot copy %s layout volume into %s layout volume", src.Layout, v.Layout)
	}
	if v.Frames != src.Frames {
		return fmt.Errorf("cannot copy volume with %d frames into volume with %d frames", src.Frames, v.Frames)
	}
	return nil
}

// copyRegion copies a box of the given size from src at srcOff into dst at
// dstOff, one contiguous run of the fastest axis at a time.
func copyRegion(dst *Volume, dstOff Point3d, src *Volume, srcOff Point3d, size Point3d) {
	elemBytes := src.Type.Bytes()
	axes := src.Layout.axes()
	runBytes := int(size[axes[2]]) * elemBytes
	var p Point3d
	for t := int32(0); t < src.Frames; t++ {
		for a := int32(0); a < size[axes[0]]; a++ {
			p[axes[0]] = a
			for b := int32(0); b < size[axes[1]]; b++ {
				p[axes[1]] = b
				p[axes[2]] = 0
				s := srcOff.Add(p)
				d := dstOff.Add(p)
				si := src.Offset(t, s[0], s[1], s[2])
				di := dst.Offset(t, d[0], d[1], d[2])
				copy(dst.Data[di:di+runBytes], src.Data[si:si+runBytes])
			}
		}
	}
}

// Paste copies all of src into the receiver with src's corner at offset.
func (v *Volume) Paste(src *Volume, offset Point3d) error {
	if err := v.compatible(src); err != nil {
		return err
	}
	end := offset.Add(src.Size)
	for i := 0; i < 3; i++ {
		if offset[i] < 0 || end[i] > v.Size[i] {
			return fmt.Errorf("volume of size %s at offset %s does not fit within size %s", src.Size, offset, v.Size)
		}
	}
	copyRegion(v, offset, src, Point3d{}, src.Size)
	return nil
}

// SubVolume returns a copy of the box of the given size at offset.
func (v *Volume) SubVolume(offset, size Point3d) (*Volume, error) {
	end := offset.Add(size)
	for i := 0; i < 3; i++ {
		if offset[i] < 0 || size[i] <= 0 || end[i] > v.Size[i] {
			return nil, fmt.Errorf("subvolume of size %s at offset %s is outside volume of size %s", size, offset, v.Size)
		}
	}
	out, err := NewVolume(size, v.Frames, v.Type, v.Layout)
	if err != nil {
		return nil, err
	}
	copyRegion(out, Point3d{}, v, offset, size)
	return out, nil
}

// Frame returns a single-frame volume sharing the receiver's data for frame t.
func (v *Volume) Frame(t int32) *Volume {
	frameBytes := int(v.Size.Prod()) * v.Type.Bytes()
	start := int(t) * frameBytes
	return &Volume{
		Size:   v.Size,
		Frames: 1,
		Type:   v.Type,
		Layout: v.Layout,
		Data:   v.Data[start : start+frameBytes],
	}
}
