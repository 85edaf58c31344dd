package ndio

import (
	"fmt"
	"strconv"
	"strings"
)

// Point3d is an ordered (x, y, z) triple of 32-bit signed integers.  It is used
// for voxel coordinates, extents and block sizes.
type Point3d [3]int32

// String returns the point as "(x,y,z)".
func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// Add returns the addition of two points.
func (p Point3d) Add(p2 Point3d) Point3d {
	return Point3d{p[0] + p2[0], p[1] + p2[1], p[2] + p2[2]}
}

// Sub returns the subtraction of the passed point from the receiver.
func (p Point3d) Sub(p2 Point3d) Point3d {
	return Point3d{p[0] - p2[0], p[1] - p2[1], p[2] - p2[2]}
}

// Mult returns the element-wise product of two points.
func (p Point3d) Mult(p2 Point3d) Point3d {
	return Point3d{p[0] * p2[0], p[1] * p2[1], p[2] * p2[2]}
}

// Max returns a point where each element is the maximum of the two points' elements.
func (p Point3d) Max(p2 Point3d) Point3d {
	for i := 0; i < 3; i++ {
		if p2[i] > p[i] {
			p[i] = p2[i]
		}
	}
	return p
}

// Min returns a point where each element is the minimum of the two points' elements.
func (p Point3d) Min(p2 Point3d) Point3d {
	for i := 0; i < 3; i++ {
		if p2[i] < p[i] {
			p[i] = p2[i]
		}
	}
	return p
}

// Prod returns the product of the elements as an int64 so large extents do not overflow.
func (p Point3d) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2])
}

// Positive returns true if every element is > 0.
func (p Point3d) Positive() bool {
	return p[0] > 0 && p[1] > 0 && p[2] > 0
}

// Chunk returns the chunk space coordinate of the chunk containing the point.
// Negative coordinates round toward negative infinity.
func (p Point3d) Chunk(size Point3d) ChunkPoint3d {
	return ChunkPoint3d{
		floorDiv(p[0], size[0]),
		floorDiv(p[1], size[1]),
		floorDiv(p[2], size[2]),
	}
}

func floorDiv(n, d int32) int32 {
	q := n / d
	if (n%d != 0) && ((n < 0) != (d < 0)) {
		q--
	}
	return q
}

// StringToPoint3d parses a string of format "%d<sep>%d<sep>%d", e.g., "1024,1024,16".
func StringToPoint3d(str, separator string) (Point3d, error) {
	elems := strings.Split(str, separator)
	if len(elems) != 3 {
		return Point3d{}, fmt.Errorf("cannot convert %q into a 3d point", str)
	}
	var p Point3d
	for i, elem := range elems {
		v, err := strconv.ParseInt(strings.TrimSpace(elem), 10, 32)
		if err != nil {
			return Point3d{}, fmt.Errorf("bad element %q in point %q: %v", elem, str, err)
		}
		p[i] = int32(v)
	}
	return p, nil
}

// ChunkPoint3d handles 3d signed chunk coordinates.
type ChunkPoint3d [3]int32

func (c ChunkPoint3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c[0], c[1], c[2])
}

// MinPoint returns the minimum voxel coordinate within the chunk.
func (c ChunkPoint3d) MinPoint(size Point3d) Point3d {
	return Point3d(c).Mult(size)
}

// MaxPoint returns the maximum voxel coordinate within the chunk.
func (c ChunkPoint3d) MaxPoint(size Point3d) Point3d {
	return Point3d{
		(c[0]+1)*size[0] - 1,
		(c[1]+1)*size[1] - 1,
		(c[2]+1)*size[2] - 1,
	}
}
