/*
	Package cutout assembles large cutouts from grid-aligned blocks.  Downloads
	above a size threshold are fetched block by block and pasted into one
	volume, and uploads above the threshold are sliced into blocks before being
	pushed.  The transport is injected as a BlockFetcher or BlockPusher.
*/
package cutout

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/ndio/ndio"
	"github.com/twinj/uuid"
	"golang.org/x/sync/errgroup"
)

// BlockRequest addresses one box of a channel at a resolution.
type BlockRequest struct {
	Token      string
	Channel    string
	Resolution int
	BBox       ndio.BoundingBox
	NearIso    bool
}

func (r BlockRequest) String() string {
	return fmt.Sprintf("%s/%s res %d %s", r.Token, r.Channel, r.Resolution, r.BBox)
}

// BlockFetcher downloads a single box.  The returned volume must be in
// ndio.LayoutZYX and cover exactly the requested box.
type BlockFetcher interface {
	FetchBlock(ctx context.Context, req BlockRequest) (*ndio.Volume, error)
}

// BlockPusher uploads a single ndio.LayoutZYX volume to the requested box.
type BlockPusher interface {
	PushBlock(ctx context.Context, req BlockRequest, data *ndio.Volume) error
}

// FetchFunc adapts a function to the BlockFetcher interface.
type FetchFunc func(ctx context.Context, req BlockRequest) (*ndio.Volume, error)

func (f FetchFunc) FetchBlock(ctx context.Context, req BlockRequest) (*ndio.Volume, error) {
	return f(ctx, req)
}

// PushFunc adapts a function to the BlockPusher interface.
type PushFunc func(ctx context.Context, req BlockRequest, data *ndio.Volume) error

func (f PushFunc) PushBlock(ctx context.Context, req BlockRequest, data *ndio.Volume) error {
	return f(ctx, req, data)
}

// Options control how cutouts are split and issued.
type Options struct {
	// ChunkThreshold is the size at or above which a cutout is split into
	// blocks.  Downloads compare the estimated payload bytes, uploads the
	// element count.  Zero splits every cutout and a negative value uses
	// ndio.DefaultChunkThreshold.
	ChunkThreshold int64

	// Concurrency is the maximum number of blocks in flight.  Values below 2
	// issue blocks sequentially in order.
	Concurrency int

	// StrictDtype rejects uploads whose data type differs from the channel's
	// instead of casting them.
	StrictDtype bool
}

// DefaultOptions returns sequential options with the default threshold.
func DefaultOptions() Options {
	return Options{ChunkThreshold: ndio.DefaultChunkThreshold, Concurrency: 1}
}

func (opts Options) threshold() int64 {
	if opts.ChunkThreshold < 0 {
		return ndio.DefaultChunkThreshold
	}
	return opts.ChunkThreshold
}

// GetRequest describes a download.
type GetRequest struct {
	Token      string
	Channel    string
	Resolution int
	BBox       ndio.BoundingBox

	// BlockSize is the dataset's block grid at this resolution.  If zero,
	// ndio.DefaultBlockSize is used.
	BlockSize ndio.Point3d

	// Origin is the dataset offset at this resolution and anchors the grid.
	Origin ndio.Point3d

	// DataType is the channel's declared type.  Every block must match it.
	// If unset, the type of the first block fetched is required of the rest.
	DataType ndio.DataType

	NearIso bool
}

// PostRequest describes an upload of a volume with its corner at Start.
type PostRequest struct {
	Token      string
	Channel    string
	Resolution int
	Start      ndio.Point3d

	// TStart is the first frame written when HasT is set or the data has
	// more than one frame.
	TStart int32
	HasT   bool

	// BlockSize is the grid used to slice large uploads.  If zero,
	// ndio.DefaultBlockSize is used.
	BlockSize ndio.Point3d

	// DataType is the channel's declared type.  Data of another type is cast
	// unless Options.StrictDtype is set.
	DataType ndio.DataType
}

func blockSizeOrDefault(size ndio.Point3d) ndio.Point3d {
	if size == (ndio.Point3d{}) {
		return ndio.DefaultBlockSize
	}
	return size
}

func newOpID() string {
	return fmt.Sprintf("%x", uuid.NewV4().Bytes()[:4])
}

// forEach calls fn for every block, stopping at the first error.  With
// concurrency above one, the context passed to fn is cancelled once any
// call fails.
func forEach(ctx context.Context, blocks []ndio.Block, concurrency int, fn func(context.Context, ndio.Block) error) error {
	if concurrency < 2 {
		for _, b := range blocks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, b); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, b := range blocks {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, b)
		})
	}
	return g.Wait()
}
