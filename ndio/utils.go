package ndio

// Sizes in bytes.
const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// DefaultBlockSize is the block size used when neither the caller nor the
// dataset metadata supplies one.  It is also the grid used to slice uploads.
var DefaultBlockSize = Point3d{1024, 1024, 16}

const (
	// DefaultChunkThreshold is the payload size above which cutouts are split
	// into blocks.
	DefaultChunkThreshold = 1000000000 / 4

	// MinReadDepth is the number of z slices the store reads at minimum, so
	// shallower requests are sized as if they were this deep.
	MinReadDepth = 16

	// defaultElementBytes sizes a download whose data type is not declared.
	defaultElementBytes = 4
)
