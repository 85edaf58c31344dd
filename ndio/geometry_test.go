package ndio

import (
	"math/rand"

	. "github.com/janelia-flyem/go/gocheck"
)

type BlockSuite struct{}

var _ = Suite(&BlockSuite{})

func spans(blocks []Block, axis int) map[[2]int32]bool {
	m := make(map[[2]int32]bool)
	for _, b := range blocks {
		m[[2]int32{b.Min[axis], b.Max[axis]}] = true
	}
	return m
}

func (s *BlockSuite) TestConcreteScenario(c *C) {
	bbox := NewBoundingBox(1, 7, 0, 8, 2, 5)
	blocks, err := ComputeBlocks(bbox, Point3d{0, 0, 0}, Point3d{4, 4, 4})
	c.Assert(err, IsNil)
	c.Assert(blocks, HasLen, 4)

	c.Assert(spans(blocks, 0), DeepEquals, map[[2]int32]bool{{1, 4}: true, {4, 7}: true})
	c.Assert(spans(blocks, 1), DeepEquals, map[[2]int32]bool{{0, 4}: true, {4, 8}: true})
	c.Assert(spans(blocks, 2), DeepEquals, map[[2]int32]bool{{2, 5}: true})

	// x varies fastest, then y.
	c.Assert(blocks[0].BoundingBox, Equals, NewBoundingBox(1, 4, 0, 4, 2, 5))
	c.Assert(blocks[1].BoundingBox, Equals, NewBoundingBox(4, 7, 0, 4, 2, 5))
	c.Assert(blocks[2].BoundingBox, Equals, NewBoundingBox(1, 4, 4, 8, 2, 5))
	c.Assert(blocks[3].BoundingBox, Equals, NewBoundingBox(4, 7, 4, 8, 2, 5))
	c.Assert(blocks[3].Cell, Equals, ChunkPoint3d{1, 1, 0})
}

func (s *BlockSuite) TestSingleBlock(c *C) {
	bbox := NewBoundingBox(1030, 1100, 2049, 2050, 17, 31)
	blocks, err := ComputeBlocks(bbox, Point3d{0, 0, 0}, DefaultBlockSize)
	c.Assert(err, IsNil)
	c.Assert(blocks, HasLen, 1)
	c.Assert(blocks[0].BoundingBox, Equals, bbox)
	c.Assert(blocks[0].Cell, Equals, ChunkPoint3d{1, 2, 1})
}

func (s *BlockSuite) TestOrigin(c *C) {
	// Grid anchored at x=2 so cuts fall at ..., 2, 6, 10, ...
	bbox := NewBoundingBox(0, 10, 0, 4, 1, 2)
	blocks, err := ComputeBlocks(bbox, Point3d{2, 0, 1}, Point3d{4, 4, 4})
	c.Assert(err, IsNil)
	c.Assert(blocks, HasLen, 3)
	c.Assert(spans(blocks, 0), DeepEquals, map[[2]int32]bool{{0, 2}: true, {2, 6}: true, {6, 10}: true})
	c.Assert(blocks[0].Cell, Equals, ChunkPoint3d{-1, 0, 0})

	// Negative coordinates below the origin.
	bbox = NewBoundingBox(-7, -1, 0, 1, 0, 1)
	blocks, err = ComputeBlocks(bbox, Point3d{}, Point3d{4, 4, 4})
	c.Assert(err, IsNil)
	c.Assert(spans(blocks, 0), DeepEquals, map[[2]int32]bool{{-7, -4}: true, {-4, -1}: true})
}

func (s *BlockSuite) TestInvalidRange(c *C) {
	bad := []BoundingBox{
		NewBoundingBox(5, 5, 0, 4, 0, 4),
		NewBoundingBox(0, 4, 6, 2, 0, 4),
		NewBoundingBox(0, 4, 0, 4, 3, 3),
		NewBoundingBox(0, 4, 0, 4, 0, 4).WithTime(2, 2),
	}
	for _, bbox := range bad {
		_, err := ComputeBlocks(bbox, Point3d{}, Point3d{4, 4, 4})
		c.Assert(err, FitsTypeOf, &InvalidRangeError{})
	}
	_, err := ComputeBlocks(NewBoundingBox(0, 4, 0, 4, 0, 4), Point3d{}, Point3d{4, 0, 4})
	c.Assert(err, FitsTypeOf, &InvalidRangeError{})
}

func (s *BlockSuite) TestTimeCarried(c *C) {
	bbox := NewBoundingBox(0, 8, 0, 4, 0, 4).WithTime(3, 5)
	blocks, err := ComputeBlocks(bbox, Point3d{}, Point3d{4, 4, 4})
	c.Assert(err, IsNil)
	c.Assert(blocks, HasLen, 2)
	for _, b := range blocks {
		c.Assert(b.HasT, Equals, true)
		c.Assert(b.TMin, Equals, int32(3))
		c.Assert(b.TMax, Equals, int32(5))
	}
}

func (s *BlockSuite) TestRandomTiling(c *C) {
	rng := rand.New(rand.NewSource(17))
	for trial := 0; trial < 200; trial++ {
		var bbox BoundingBox
		var origin, blockSize Point3d
		for i := 0; i < 3; i++ {
			bbox.Min[i] = int32(rng.Intn(40) - 20)
			bbox.Max[i] = bbox.Min[i] + int32(rng.Intn(25)+1)
			origin[i] = int32(rng.Intn(11) - 5)
			blockSize[i] = int32(rng.Intn(9) + 1)
		}
		blocks, err := ComputeBlocks(bbox, origin, blockSize)
		c.Assert(err, IsNil)

		size := bbox.Size()
		coverage := make([]int, size.Prod())
		for _, b := range blocks {
			for i := 0; i < 3; i++ {
				c.Assert(b.Min[i] >= bbox.Min[i], Equals, true)
				c.Assert(b.Max[i] <= bbox.Max[i], Equals, true)
				c.Assert(b.Max[i]-b.Min[i] <= blockSize[i], Equals, true)
				c.Assert(b.Max[i] > b.Min[i], Equals, true)
				// lies in a single grid cell
				lo := floorDiv(b.Min[i]-origin[i], blockSize[i])
				hi := floorDiv(b.Max[i]-1-origin[i], blockSize[i])
				c.Assert(lo, Equals, hi)
				c.Assert(lo, Equals, b.Cell[i])
			}
			for z := b.Min[2]; z < b.Max[2]; z++ {
				for y := b.Min[1]; y < b.Max[1]; y++ {
					for x := b.Min[0]; x < b.Max[0]; x++ {
						p := Point3d{x, y, z}.Sub(bbox.Min)
						coverage[int64(p[2])*int64(size[0])*int64(size[1])+int64(p[1])*int64(size[0])+int64(p[0])]++
					}
				}
			}
		}
		for i, n := range coverage {
			if n != 1 {
				c.Fatalf("bbox %s, origin %s, block size %s: voxel %d covered %d times", bbox, origin, blockSize, i, n)
			}
		}
	}
}

func (s *BlockSuite) TestEstimateBytes(c *C) {
	shallow := NewBoundingBox(0, 100, 0, 100, 0, 3)
	c.Assert(shallow.EstimateBytes(T_uint8), Equals, int64(100*100*16))
	c.Assert(shallow.EstimateBytes(T_unset), Equals, int64(100*100*16*4))

	deep := NewBoundingBox(0, 100, 0, 100, 10, 50)
	c.Assert(deep.EstimateBytes(T_uint16), Equals, int64(100*100*40*2))
}

func (s *BlockSuite) TestBoundingBox(c *C) {
	a := NewBoundingBox(0, 10, 0, 10, 0, 10)
	b := NewBoundingBox(5, 15, -5, 5, 2, 3)
	i, ok := a.Intersect(b)
	c.Assert(ok, Equals, true)
	c.Assert(i, Equals, NewBoundingBox(5, 10, 0, 5, 2, 3))

	_, ok = a.Intersect(NewBoundingBox(10, 12, 0, 1, 0, 1))
	c.Assert(ok, Equals, false)

	c.Assert(a.WithTime(0, 3).NumVoxels(), Equals, int64(3000))
	c.Assert(a.WithTime(1, 2).String(), Equals, "x:[0,10) y:[0,10) z:[0,10) t:[1,2)")
}
