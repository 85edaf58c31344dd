package cutout

import (
	"context"
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/janelia-flyem/ndio/ndio"
)

func pushBlock(ctx context.Context, p BlockPusher, req PostRequest, bbox ndio.BoundingBox, data *ndio.Volume) error {
	breq := BlockRequest{
		Token:      req.Token,
		Channel:    req.Channel,
		Resolution: req.Resolution,
		BBox:       bbox,
	}
	err := p.PushBlock(ctx, breq, data)
	if err == nil {
		return nil
	}
	var uploadErr *ndio.RemoteUploadError
	if errors.As(err, &uploadErr) {
		if uploadErr.Block == (ndio.BoundingBox{}) {
			uploadErr.Block = bbox
		}
		return uploadErr
	}
	return &ndio.RemoteUploadError{Block: bbox, Err: err}
}

// Post uploads data, given in ndio.LayoutXYZ or ndio.LayoutZYX, with its
// corner at req.Start.  Data whose type differs from req.DataType is cast
// with wrapping or truncation unless opts.StrictDtype is set.  If the number
// of elements is below the chunk threshold the volume is pushed whole,
// otherwise it is sliced along a grid anchored at (0,0,0) and each block is
// pushed at its own corner.  The first failed push aborts the upload.
func Post(ctx context.Context, p BlockPusher, req PostRequest, data *ndio.Volume, opts Options) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if req.DataType != ndio.T_unset && data.Type != req.DataType {
		mismatch := &ndio.DtypeMismatchError{Expected: req.DataType, Actual: data.Type}
		if opts.StrictDtype {
			return mismatch
		}
		ndio.Warningf("%v: casting before upload to %s/%s\n", mismatch, req.Token, req.Channel)
		var err error
		if data, err = data.Cast(req.DataType); err != nil {
			return err
		}
	}
	wire := data.Reorder(ndio.LayoutZYX)

	bbox := ndio.BoundingBox{Min: req.Start, Max: req.Start.Add(wire.Size)}
	if req.HasT || wire.Frames > 1 {
		bbox = bbox.WithTime(req.TStart, req.TStart+wire.Frames)
	}
	if err := bbox.Validate(); err != nil {
		return err
	}
	opID := newOpID()
	timedLog := ndio.NewTimeLog()

	if wire.NumVoxels() < opts.threshold() {
		if err := pushBlock(ctx, p, req, bbox, wire); err != nil {
			return err
		}
		timedLog.Debugf("cutout %s: pushed %s/%s %s in one request (%s)", opID, req.Token, req.Channel,
			bbox, humanize.Bytes(uint64(len(wire.Data))))
		return nil
	}

	blocks, err := ndio.ComputeBlocks(bbox, ndio.Point3d{}, blockSizeOrDefault(req.BlockSize))
	if err != nil {
		return err
	}
	ndio.Debugf("cutout %s: %d elements exceed threshold, pushing %d blocks\n", opID, wire.NumVoxels(), len(blocks))
	err = forEach(ctx, blocks, opts.Concurrency, func(ctx context.Context, b ndio.Block) error {
		sub, err := wire.SubVolume(b.Min.Sub(req.Start), b.Size())
		if err != nil {
			return &ndio.RemoteUploadError{Block: b.BoundingBox, Err: err}
		}
		return pushBlock(ctx, p, req, b.BoundingBox, sub)
	})
	if err != nil {
		ndio.Errorf("cutout %s: upload to %s/%s %s failed: %v\n", opID, req.Token, req.Channel, bbox, err)
		return err
	}
	timedLog.Infof("cutout %s: pushed %s/%s %s as %d blocks (%s)", opID, req.Token, req.Channel,
		bbox, len(blocks), humanize.Bytes(uint64(len(wire.Data))))
	return nil
}
