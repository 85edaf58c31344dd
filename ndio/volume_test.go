package ndio

import (
	"bytes"

	. "github.com/janelia-flyem/go/gocheck"
)

type VolumeSuite struct{}

var _ = Suite(&VolumeSuite{})

// coordVolume fills a volume with x + 1000*y + 1000000*z.
func coordVolume(c *C, size Point3d, layout Layout) *Volume {
	v, err := NewVolume(size, 1, T_uint32, layout)
	c.Assert(err, IsNil)
	for z := int32(0); z < size[2]; z++ {
		for y := int32(0); y < size[1]; y++ {
			for x := int32(0); x < size[0]; x++ {
				v.SetValue(0, x, y, z, float64(x+1000*y+1000000*z))
			}
		}
	}
	return v
}

func (s *VolumeSuite) TestLayoutOffsets(c *C) {
	zyx, err := NewVolume(Point3d{4, 3, 2}, 1, T_uint8, LayoutZYX)
	c.Assert(err, IsNil)
	c.Assert(zyx.Shape(), Equals, [4]int32{1, 2, 3, 4})
	c.Assert(zyx.Offset(0, 1, 0, 0), Equals, 1)
	c.Assert(zyx.Offset(0, 0, 1, 0), Equals, 4)
	c.Assert(zyx.Offset(0, 0, 0, 1), Equals, 12)

	xyz, err := NewVolume(Point3d{4, 3, 2}, 2, T_uint16, LayoutXYZ)
	c.Assert(err, IsNil)
	c.Assert(xyz.Shape(), Equals, [4]int32{2, 4, 3, 2})
	c.Assert(xyz.Offset(0, 0, 0, 1), Equals, 2)
	c.Assert(xyz.Offset(0, 0, 1, 0), Equals, 4)
	c.Assert(xyz.Offset(0, 1, 0, 0), Equals, 12)
	c.Assert(xyz.Offset(1, 0, 0, 0), Equals, 48)
}

func (s *VolumeSuite) TestReorder(c *C) {
	size := Point3d{5, 3, 4}
	zyx := coordVolume(c, size, LayoutZYX)

	// Raw memory is the x-fastest sequence.
	c.Assert(zyx.Value(0, 1, 0, 0), Equals, 1.0)
	c.Assert(zyx.At(1, 0, 0), DeepEquals, zyx.Data[4:8])

	xyz := zyx.Reorder(LayoutXYZ)
	c.Assert(xyz.Layout, Equals, LayoutXYZ)
	c.Assert(xyz.Size, Equals, size)
	for z := int32(0); z < size[2]; z++ {
		for y := int32(0); y < size[1]; y++ {
			for x := int32(0); x < size[0]; x++ {
				c.Assert(xyz.Value(0, x, y, z), Equals, float64(x+1000*y+1000000*z))
			}
		}
	}
	// z is now fastest varying in memory.
	c.Assert(xyz.Data[4:8], DeepEquals, []byte{0x40, 0x42, 0x0f, 0x00})

	back := xyz.Reorder(LayoutZYX)
	c.Assert(bytes.Equal(back.Data, zyx.Data), Equals, true)
	c.Assert(zyx.Reorder(LayoutZYX) == zyx, Equals, true)
}

func (s *VolumeSuite) TestCubicReorderIsNotIdentity(c *C) {
	zyx := coordVolume(c, Point3d{3, 3, 3}, LayoutZYX)
	xyz := zyx.Reorder(LayoutXYZ)
	c.Assert(bytes.Equal(zyx.Data, xyz.Data), Equals, false)
	c.Assert(xyz.Value(0, 2, 1, 0), Equals, 1002.0)
}

func (s *VolumeSuite) TestReorderFrames(c *C) {
	v, err := NewVolume(Point3d{2, 2, 2}, 2, T_uint8, LayoutZYX)
	c.Assert(err, IsNil)
	for i := range v.Data {
		v.Data[i] = byte(i)
	}
	r := v.Reorder(LayoutXYZ)
	c.Assert(r.Value(1, 1, 0, 0), Equals, v.Value(1, 1, 0, 0))
	c.Assert(r.Value(1, 0, 1, 1), Equals, 14.0)
	c.Assert(r.Data[8:], DeepEquals, []byte{8, 12, 10, 14, 9, 13, 11, 15})
}

func (s *VolumeSuite) TestCast(c *C) {
	v, err := NewVolume(Point3d{4, 1, 1}, 1, T_int16, LayoutZYX)
	c.Assert(err, IsNil)
	for i, val := range []float64{300, -1, 255, 7} {
		v.SetValue(0, int32(i), 0, 0, val)
	}
	u8, err := v.Cast(T_uint8)
	c.Assert(err, IsNil)
	c.Assert(u8.Data, DeepEquals, []byte{44, 255, 255, 7})

	f, err := NewVolume(Point3d{3, 1, 1}, 1, T_float32, LayoutXYZ)
	c.Assert(err, IsNil)
	f.SetValue(0, 0, 0, 0, 3.7)
	f.SetValue(0, 1, 0, 0, -2.9)
	f.SetValue(0, 2, 0, 0, 65537.5)
	i32, err := f.Cast(T_int32)
	c.Assert(err, IsNil)
	c.Assert(i32.Layout, Equals, LayoutXYZ)
	c.Assert(i32.Value(0, 0, 0, 0), Equals, 3.0)
	c.Assert(i32.Value(0, 1, 0, 0), Equals, -2.0)
	u16, err := f.Cast(T_uint16)
	c.Assert(err, IsNil)
	c.Assert(u16.Value(0, 2, 0, 0), Equals, 1.0)

	same, err := f.Cast(T_float32)
	c.Assert(err, IsNil)
	c.Assert(same == f, Equals, true)

	_, err = f.Cast(T_unset)
	c.Assert(err, NotNil)
}

func (s *VolumeSuite) TestPasteAndSubVolume(c *C) {
	for _, layout := range []Layout{LayoutZYX, LayoutXYZ} {
		src := coordVolume(c, Point3d{6, 5, 4}, layout)
		sub, err := src.SubVolume(Point3d{1, 2, 3}, Point3d{4, 3, 1})
		c.Assert(err, IsNil)
		c.Assert(sub.Size, Equals, Point3d{4, 3, 1})
		c.Assert(sub.Value(0, 0, 0, 0), Equals, float64(1+2000+3000000))
		c.Assert(sub.Value(0, 3, 2, 0), Equals, float64(4+4000+3000000))

		dst, err := NewVolume(Point3d{6, 5, 4}, 1, T_uint32, layout)
		c.Assert(err, IsNil)
		c.Assert(dst.Paste(sub, Point3d{1, 2, 3}), IsNil)
		c.Assert(dst.Value(0, 2, 3, 3), Equals, src.Value(0, 2, 3, 3))
		c.Assert(dst.Value(0, 0, 0, 0), Equals, 0.0)

		c.Assert(dst.Paste(sub, Point3d{3, 3, 3}), NotNil)
		_, err = src.SubVolume(Point3d{5, 0, 0}, Point3d{2, 1, 1})
		c.Assert(err, NotNil)
	}

	a := coordVolume(c, Point3d{2, 2, 2}, LayoutZYX)
	b, err := NewVolume(Point3d{4, 4, 4}, 1, T_uint8, LayoutZYX)
	c.Assert(err, IsNil)
	c.Assert(b.Paste(a, Point3d{}), FitsTypeOf, &DtypeMismatchError{})
}

func (s *VolumeSuite) TestValidate(c *C) {
	v := &Volume{Size: Point3d{2, 2, 2}, Frames: 1, Type: T_uint16, Data: make([]byte, 15)}
	c.Assert(v.Validate(), NotNil)
	v.Data = make([]byte, 16)
	c.Assert(v.Validate(), IsNil)

	_, err := NewVolume(Point3d{0, 2, 2}, 1, T_uint8, LayoutZYX)
	c.Assert(err, NotNil)
}

func (s *VolumeSuite) TestFrame(c *C) {
	v, err := NewVolume(Point3d{2, 2, 1}, 3, T_uint8, LayoutZYX)
	c.Assert(err, IsNil)
	f := v.Frame(2)
	c.Assert(f.Frames, Equals, int32(1))
	f.SetValue(0, 1, 1, 0, 9)
	c.Assert(v.Value(2, 1, 1, 0), Equals, 9.0)
	c.Assert(v.Data[11], Equals, byte(9))
}
