package ndio

import (
	"bytes"
	"encoding/binary"
	"io"

	. "github.com/janelia-flyem/go/gocheck"
	"github.com/klauspost/compress/zlib"
	"github.com/sbinet/npyio/npy"
)

type SerializeSuite struct{}

var _ = Suite(&SerializeSuite{})

func inflate(c *C, b []byte) []byte {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	c.Assert(err, IsNil)
	raw, err := io.ReadAll(zr)
	c.Assert(err, IsNil)
	return raw
}

func deflate(c *C, raw []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(raw)
	c.Assert(err, IsNil)
	c.Assert(zw.Close(), IsNil)
	return buf.Bytes()
}

func npyBytes(header string, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(data)
	return buf.Bytes()
}

func (s *SerializeSuite) TestRoundTrip(c *C) {
	v := coordVolume(c, Point3d{7, 5, 3}, LayoutZYX)
	encoded, err := EncodeNPZ(v)
	c.Assert(err, IsNil)

	raw := inflate(c, encoded)
	c.Assert(string(raw[:6]), Equals, npyMagic)
	headerLen := int(binary.LittleEndian.Uint16(raw[8:10]))
	c.Assert((10+headerLen)%64, Equals, 0)
	header := string(raw[10 : 10+headerLen])
	c.Assert(header[len(header)-1], Equals, byte('\n'))
	c.Assert(bytes.Contains(raw[:10+headerLen], []byte("'shape': (1, 3, 5, 7)")), Equals, true)
	c.Assert(bytes.Contains(raw[:10+headerLen], []byte("'descr': '<u4'")), Equals, true)

	r, err := npy.NewReader(bytes.NewReader(raw))
	c.Assert(err, IsNil)
	c.Assert(r.Header.Descr.Type, Equals, "<u4")
	c.Assert(r.Header.Descr.Fortran, Equals, false)
	c.Assert(r.Header.Descr.Shape, DeepEquals, []int{1, 3, 5, 7})
	elems := make([]uint32, v.NumVoxels())
	c.Assert(r.Read(&elems), IsNil)
	c.Assert(elems[len(elems)-1], Equals, binary.LittleEndian.Uint32(v.Data[len(v.Data)-4:]))

	decoded, err := DecodeNPZ(encoded)
	c.Assert(err, IsNil)
	c.Assert(decoded.Size, Equals, v.Size)
	c.Assert(decoded.Frames, Equals, int32(1))
	c.Assert(decoded.Type, Equals, T_uint32)
	c.Assert(decoded.Layout, Equals, LayoutZYX)
	c.Assert(bytes.Equal(decoded.Data, v.Data), Equals, true)
}

func (s *SerializeSuite) TestEncodeRequiresWireLayout(c *C) {
	v := coordVolume(c, Point3d{2, 2, 2}, LayoutXYZ)
	_, err := EncodeNPZ(v)
	c.Assert(err, NotNil)
}

func (s *SerializeSuite) TestDecode3d(c *C) {
	data := []byte{1, 2, 3, 4, 5, 6}
	raw := npyBytes("{'descr': '|u1', 'fortran_order': False, 'shape': (1, 2, 3), }\n", data)
	v, err := DecodeNPZ(deflate(c, raw))
	c.Assert(err, IsNil)
	c.Assert(v.Size, Equals, Point3d{3, 2, 1})
	c.Assert(v.Type, Equals, T_uint8)
	c.Assert(v.Value(0, 2, 1, 0), Equals, 6.0)
}

func (s *SerializeSuite) TestDecodeErrors(c *C) {
	_, err := DecodeNPZ([]byte("not compressed"))
	c.Assert(err, NotNil)

	raw := npyBytes("{'descr': '<u2', 'fortran_order': True, 'shape': (1, 1, 1), }\n", []byte{0, 0})
	_, err = DecodeNPZ(deflate(c, raw))
	c.Assert(err, ErrorMatches, "fortran.*")

	raw = npyBytes("{'descr': '<c8', 'fortran_order': False, 'shape': (1, 1, 1), }\n", make([]byte, 8))
	_, err = DecodeNPZ(deflate(c, raw))
	c.Assert(err, ErrorMatches, "unsupported numpy type.*")

	raw = npyBytes("{'descr': '<u2', 'fortran_order': False, 'shape': (2, 2), }\n", make([]byte, 8))
	_, err = DecodeNPZ(deflate(c, raw))
	c.Assert(err, ErrorMatches, "expected 3 or 4 dimensional.*")

	raw = npyBytes("{'descr': '>u2', 'fortran_order': False, 'shape': (1, 1, 1), }\n", []byte{0, 1})
	_, err = DecodeNPZ(deflate(c, raw))
	c.Assert(err, ErrorMatches, "big-endian.*")

	raw = npyBytes("{'descr': '<u2', 'fortran_order': False, 'shape': (1, 0, 2, 2), }\n", nil)
	_, err = DecodeNPZ(deflate(c, raw))
	c.Assert(err, ErrorMatches, "numpy array has bad shape.*")

	raw = npyBytes("{'descr': '<u2', 'fortran_order': False, 'shape': (1, 2, 2, 2), }\n", make([]byte, 15))
	_, err = DecodeNPZ(deflate(c, raw))
	c.Assert(err, NotNil)

	_, err = DecodeNPY([]byte("NUMPY"))
	c.Assert(err, ErrorMatches, "payload is not a numpy array.*")
}

func (s *SerializeSuite) TestDecodeMultiFrame(c *C) {
	data := make([]byte, 2*2*3*4*2)
	for i := range data {
		data[i] = byte(i)
	}
	raw := npyBytes("{'descr': '<i2', 'fortran_order': False, 'shape': (2, 2, 3, 4), }\n", data)
	v, err := DecodeNPY(raw)
	c.Assert(err, IsNil)
	c.Assert(v.Frames, Equals, int32(2))
	c.Assert(v.Size, Equals, Point3d{4, 3, 2})
	c.Assert(v.Type, Equals, T_int16)
	c.Assert(bytes.Equal(v.Data, data), Equals, true)
}
