package ndio

import "fmt"

var axisNames = [3]string{"x", "y", "z"}

// BoundingBox is a half-open box [Min, Max) in voxel space with an optional
// time range [TMin, TMax).
type BoundingBox struct {
	Min, Max   Point3d
	TMin, TMax int32
	HasT       bool
}

// NewBoundingBox returns the box x:[x0,x1) y:[y0,y1) z:[z0,z1).
func NewBoundingBox(x0, x1, y0, y1, z0, z1 int32) BoundingBox {
	return BoundingBox{Min: Point3d{x0, y0, z0}, Max: Point3d{x1, y1, z1}}
}

// WithTime returns a copy of the box restricted to frames [t0,t1).
func (b BoundingBox) WithTime(t0, t1 int32) BoundingBox {
	b.TMin, b.TMax, b.HasT = t0, t1, true
	return b
}

// Size returns the extent along each spatial axis.
func (b BoundingBox) Size() Point3d {
	return b.Max.Sub(b.Min)
}

// Frames returns the number of time frames, 1 if no time range is set.
func (b BoundingBox) Frames() int32 {
	if !b.HasT {
		return 1
	}
	return b.TMax - b.TMin
}

// NumVoxels returns the number of elements in the box across all frames.
func (b BoundingBox) NumVoxels() int64 {
	return b.Size().Prod() * int64(b.Frames())
}

// Validate returns an *InvalidRangeError if any axis has stop <= start.
func (b BoundingBox) Validate() error {
	for i := 0; i < 3; i++ {
		if b.Max[i] <= b.Min[i] {
			return &InvalidRangeError{Axis: axisNames[i], Start: int64(b.Min[i]), Stop: int64(b.Max[i])}
		}
	}
	if b.HasT && b.TMax <= b.TMin {
		return &InvalidRangeError{Axis: "t", Start: int64(b.TMin), Stop: int64(b.TMax)}
	}
	return nil
}

// Intersect returns the spatial intersection of two boxes and false if they do
// not overlap.  The time range of the receiver is kept.
func (b BoundingBox) Intersect(o BoundingBox) (BoundingBox, bool) {
	out := b
	out.Min = b.Min.Max(o.Min)
	out.Max = b.Max.Min(o.Max)
	for i := 0; i < 3; i++ {
		if out.Max[i] <= out.Min[i] {
			return out, false
		}
	}
	return out, true
}

func (b BoundingBox) String() string {
	s := fmt.Sprintf("x:[%d,%d) y:[%d,%d) z:[%d,%d)", b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
	if b.HasT {
		s += fmt.Sprintf(" t:[%d,%d)", b.TMin, b.TMax)
	}
	return s
}

// EstimateBytes returns the payload size the store will read for the box.
// Reads shallower than MinReadDepth are sized at that depth.  If the type
// is T_unset, 4 bytes per element are assumed.
func (b BoundingBox) EstimateBytes(t DataType) int64 {
	size := b.Size()
	depth := int64(size[2])
	if depth < MinReadDepth {
		depth = MinReadDepth
	}
	elemBytes := int64(t.Bytes())
	if elemBytes == 0 {
		elemBytes = defaultElementBytes
	}
	return int64(size[0]) * int64(size[1]) * depth * elemBytes
}

// Block is one sub-box of a request that lies within a single cell of the
// block grid.
type Block struct {
	BoundingBox

	// Cell is the grid cell containing the block, counted from the grid origin.
	Cell ChunkPoint3d
}

type span struct {
	lo, hi int32
	cell   int32
}

// axisSpans cuts [start, stop) at multiples of size offset by origin.
func axisSpans(start, stop, origin, size int32) []span {
	first := floorDiv64(int64(start)-int64(origin), int64(size))
	var spans []span
	for cell := first; ; cell++ {
		lo := cell*int64(size) + int64(origin)
		if lo >= int64(stop) {
			break
		}
		hi := lo + int64(size)
		if lo < int64(start) {
			lo = int64(start)
		}
		if hi > int64(stop) {
			hi = int64(stop)
		}
		spans = append(spans, span{lo: int32(lo), hi: int32(hi), cell: int32(cell)})
	}
	return spans
}

func floorDiv64(n, d int64) int64 {
	q := n / d
	if (n%d != 0) && ((n < 0) != (d < 0)) {
		q--
	}
	return q
}

// ComputeBlocks partitions a bounding box into blocks aligned to a grid of
// the given block size anchored at origin.  Blocks exactly tile the box and
// are ordered with x varying fastest, then y, then z.  The time range of the
// box, if any, is carried by every block.
func ComputeBlocks(bbox BoundingBox, origin, blockSize Point3d) ([]Block, error) {
	if err := bbox.Validate(); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		if blockSize[i] <= 0 {
			return nil, &InvalidRangeError{
				Axis:   axisNames[i],
				Start:  int64(bbox.Min[i]),
				Stop:   int64(bbox.Max[i]),
				Reason: fmt.Sprintf("block size %d must be positive", blockSize[i]),
			}
		}
	}
	var axes [3][]span
	for i := 0; i < 3; i++ {
		axes[i] = axisSpans(bbox.Min[i], bbox.Max[i], origin[i], blockSize[i])
	}
	blocks := make([]Block, 0, len(axes[0])*len(axes[1])*len(axes[2]))
	for _, z := range axes[2] {
		for _, y := range axes[1] {
			for _, x := range axes[0] {
				b := bbox
				b.Min = Point3d{x.lo, y.lo, z.lo}
				b.Max = Point3d{x.hi, y.hi, z.hi}
				blocks = append(blocks, Block{BoundingBox: b, Cell: ChunkPoint3d{x.cell, y.cell, z.cell}})
			}
		}
	}
	return blocks, nil
}
