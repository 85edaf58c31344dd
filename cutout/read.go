package cutout

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/janelia-flyem/ndio/ndio"
)

// fetchBlock fetches one box and checks the result against it.  Failures are
// returned as *ndio.RemoteFetchError or, for a type mismatch, *ndio.DtypeMismatchError.
func fetchBlock(ctx context.Context, f BlockFetcher, req GetRequest, bbox ndio.BoundingBox, dtype ndio.DataType) (*ndio.Volume, error) {
	breq := BlockRequest{
		Token:      req.Token,
		Channel:    req.Channel,
		Resolution: req.Resolution,
		BBox:       bbox,
		NearIso:    req.NearIso,
	}
	vol, err := f.FetchBlock(ctx, breq)
	if err != nil {
		var fetchErr *ndio.RemoteFetchError
		if errors.As(err, &fetchErr) {
			if fetchErr.Block == (ndio.BoundingBox{}) {
				fetchErr.Block = bbox
			}
			return nil, fetchErr
		}
		return nil, &ndio.RemoteFetchError{Block: bbox, Err: err}
	}
	if vol == nil {
		return nil, &ndio.RemoteFetchError{Block: bbox, Message: "no data returned"}
	}
	if err := vol.Validate(); err != nil {
		return nil, &ndio.RemoteFetchError{Block: bbox, Message: "bad block data", Err: err}
	}
	vol = vol.Reorder(ndio.LayoutZYX)
	if vol.Size != bbox.Size() || vol.Frames != bbox.Frames() {
		return nil, &ndio.RemoteFetchError{
			Block:   bbox,
			Message: fmt.Sprintf("returned size %s with %d frames", vol.Size, vol.Frames),
		}
	}
	if dtype != ndio.T_unset && vol.Type != dtype {
		return nil, &ndio.DtypeMismatchError{Expected: dtype, Actual: vol.Type, Block: &bbox}
	}
	return vol, nil
}

// Get downloads the requested box and returns it in ndio.LayoutXYZ.  If the
// estimated payload is below the chunk threshold a single fetch is made,
// otherwise one fetch per block of the dataset grid.
// Any failure aborts the download and no partial volume is returned.
func Get(ctx context.Context, f BlockFetcher, req GetRequest, opts Options) (*ndio.Volume, error) {
	if err := req.BBox.Validate(); err != nil {
		return nil, err
	}
	opID := newOpID()
	timedLog := ndio.NewTimeLog()

	estimate := req.BBox.EstimateBytes(req.DataType)
	if estimate < opts.threshold() {
		vol, err := fetchBlock(ctx, f, req, req.BBox, req.DataType)
		if err != nil {
			return nil, err
		}
		timedLog.Debugf("cutout %s: fetched %s/%s %s in one request (%s)", opID, req.Token, req.Channel,
			req.BBox, humanize.Bytes(uint64(len(vol.Data))))
		return vol.Reorder(ndio.LayoutXYZ), nil
	}

	blocks, err := ndio.ComputeBlocks(req.BBox, req.Origin, blockSizeOrDefault(req.BlockSize))
	if err != nil {
		return nil, err
	}
	ndio.Debugf("cutout %s: estimated %s for %s exceeds threshold, fetching %d blocks\n",
		opID, humanize.Bytes(uint64(estimate)), req.BBox, len(blocks))

	dtype := req.DataType
	var first *ndio.Volume
	if dtype == ndio.T_unset {
		// Adopt the type of the first block.
		if first, err = fetchBlock(ctx, f, req, blocks[0].BoundingBox, dtype); err != nil {
			return nil, err
		}
		dtype = first.Type
	}
	dst, err := ndio.NewVolume(req.BBox.Size(), req.BBox.Frames(), dtype, ndio.LayoutZYX)
	if err != nil {
		return nil, err
	}
	remaining := blocks
	if first != nil {
		if err := dst.Paste(first, blocks[0].Min.Sub(req.BBox.Min)); err != nil {
			return nil, err
		}
		remaining = blocks[1:]
	}

	err = forEach(ctx, remaining, opts.Concurrency, func(ctx context.Context, b ndio.Block) error {
		vol, err := fetchBlock(ctx, f, req, b.BoundingBox, dtype)
		if err != nil {
			return err
		}
		// Blocks never overlap so concurrent pastes touch disjoint bytes.
		if err := dst.Paste(vol, b.Min.Sub(req.BBox.Min)); err != nil {
			return &ndio.RemoteFetchError{Block: b.BoundingBox, Err: err}
		}
		ndio.Debugf("cutout %s: pasted block %s\n", opID, b.BoundingBox)
		return nil
	})
	if err != nil {
		ndio.Errorf("cutout %s: download of %s/%s %s failed: %v\n", opID, req.Token, req.Channel, req.BBox, err)
		return nil, err
	}
	timedLog.Infof("cutout %s: fetched %s/%s %s as %d blocks (%s)", opID, req.Token, req.Channel,
		req.BBox, len(blocks), humanize.Bytes(uint64(len(dst.Data))))
	return dst.Reorder(ndio.LayoutXYZ), nil
}
