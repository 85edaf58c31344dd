/*
	Package blobstore keeps channel data as grid-aligned, snappy-compressed chunks
	in a gocloud.dev blob bucket.  A Store serves arbitrary boxes so it can stand
	in for the remote store as a cutout.BlockFetcher and cutout.BlockPusher, e.g.,
	as an offline mirror of downloaded cutouts.

	Bucket layout:

		manifest.json                          format version and chunk size
		<token>/<channel>/channel.json         element data type
		<token>/<channel>/<res>/<t>/<cx>_<cy>_<cz>   one chunk
		<token>/<channel>/<res>/neariso/<t>/...      near-isotropic chunks
*/
package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/blang/semver"
	"github.com/golang/snappy"
	"github.com/janelia-flyem/ndio/cutout"
	"github.com/janelia-flyem/ndio/ndio"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// FormatVersion is written to new manifests.  Stores whose manifest has a
// different major version cannot be opened.
const FormatVersion = "1.0.0"

// DefaultChunkSize is the chunk grid of new stores if none is given.
var DefaultChunkSize = ndio.Point3d{64, 64, 16}

const manifestKey = "manifest.json"

type manifest struct {
	Version     string       `json:"version"`
	ChunkSize   ndio.Point3d `json:"chunk_size"`
	Compression string       `json:"compression"`
}

type channelInfo struct {
	DataType ndio.DataType `json:"datatype"`
}

// Store reads and writes chunked channel data in a bucket.
type Store struct {
	bucket    *blob.Bucket
	chunkSize ndio.Point3d

	// serializes read-modify-write of chunks
	mu sync.Mutex
}

var (
	_ cutout.BlockFetcher = (*Store)(nil)
	_ cutout.BlockPusher  = (*Store)(nil)
)

// Open opens the bucket at a gocloud URL like "file:///data/mirror",
// "gs://bucket", "s3://bucket" or "mem://", optionally below a key prefix.
func Open(ctx context.Context, bucketURL, prefix string, chunkSize ndio.Point3d) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		ndio.Errorf("Can't open bucket reference @ %q: %v\n", bucketURL, err)
		return nil, err
	}
	if prefix != "" {
		bucket = blob.PrefixedBucket(bucket, prefix)
	}
	s, err := New(ctx, bucket, chunkSize)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	return s, nil
}

// New returns a Store over an open bucket.  The manifest is created if the
// bucket has none, in which case chunkSize (or DefaultChunkSize if zero) sets
// the chunk grid.  An existing manifest's chunk size always wins.
func New(ctx context.Context, bucket *blob.Bucket, chunkSize ndio.Point3d) (*Store, error) {
	current := semver.MustParse(FormatVersion)
	data, err := bucket.ReadAll(ctx, manifestKey)
	if gcerrors.Code(err) == gcerrors.NotFound {
		if chunkSize == (ndio.Point3d{}) {
			chunkSize = DefaultChunkSize
		}
		if !chunkSize.Positive() {
			return nil, fmt.Errorf("bad chunk size %s", chunkSize)
		}
		m := manifest{Version: current.String(), ChunkSize: chunkSize, Compression: "snappy"}
		if data, err = json.Marshal(m); err != nil {
			return nil, err
		}
		if err := bucket.WriteAll(ctx, manifestKey, data, nil); err != nil {
			return nil, fmt.Errorf("unable to write blob store manifest: %v", err)
		}
		ndio.Infof("Created blob store with chunk size %s\n", chunkSize)
		return &Store{bucket: bucket, chunkSize: chunkSize}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read blob store manifest: %v", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("bad blob store manifest: %v", err)
	}
	version, err := semver.Make(m.Version)
	if err != nil {
		return nil, fmt.Errorf("bad blob store version %q: %v", m.Version, err)
	}
	if version.Major != current.Major {
		return nil, fmt.Errorf("blob store format %s is incompatible with %s", version, current)
	}
	if !m.ChunkSize.Positive() {
		return nil, fmt.Errorf("bad chunk size %s in blob store manifest", m.ChunkSize)
	}
	if chunkSize != (ndio.Point3d{}) && chunkSize != m.ChunkSize {
		ndio.Warningf("Ignoring chunk size %s, blob store uses %s\n", chunkSize, m.ChunkSize)
	}
	return &Store{bucket: bucket, chunkSize: m.ChunkSize}, nil
}

// ChunkSize returns the store's chunk grid.
func (s *Store) ChunkSize() ndio.Point3d {
	return s.chunkSize
}

// Close closes the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

func channelKey(token, channel string) string {
	return path.Join(token, channel, "channel.json")
}

func chunkKey(req cutout.BlockRequest, t int32, cell ndio.ChunkPoint3d) string {
	res := fmt.Sprintf("%d", req.Resolution)
	if req.NearIso {
		res = path.Join(res, "neariso")
	}
	return path.Join(req.Token, req.Channel, res, fmt.Sprintf("%d", t),
		fmt.Sprintf("%d_%d_%d", cell[0], cell[1], cell[2]))
}

// chunkPart is the portion of a box held by one chunk.
type chunkPart struct {
	cell ndio.ChunkPoint3d
	ndio.BoundingBox
}

// chunkParts returns the chunks overlapping a box in z, y, x order.
func (s *Store) chunkParts(bbox ndio.BoundingBox) ([]chunkPart, error) {
	for i, axis := range []string{"x", "y", "z"} {
		if bbox.Max[i] <= bbox.Min[i] {
			return nil, &ndio.InvalidRangeError{Axis: axis, Start: int64(bbox.Min[i]), Stop: int64(bbox.Max[i])}
		}
	}
	begin := bbox.Min.Chunk(s.chunkSize)
	end := bbox.Max.Sub(ndio.Point3d{1, 1, 1}).Chunk(s.chunkSize)
	var parts []chunkPart
	for z := begin[2]; z <= end[2]; z++ {
		for y := begin[1]; y <= end[1]; y++ {
			for x := begin[0]; x <= end[0]; x++ {
				cell := ndio.ChunkPoint3d{x, y, z}
				extent := ndio.BoundingBox{
					Min: cell.MinPoint(s.chunkSize),
					Max: cell.MaxPoint(s.chunkSize).Add(ndio.Point3d{1, 1, 1}),
				}
				part, ok := bbox.Intersect(extent)
				if !ok {
					continue
				}
				parts = append(parts, chunkPart{cell: cell, BoundingBox: part})
			}
		}
	}
	return parts, nil
}

func (s *Store) channelType(ctx context.Context, token, channel string) (ndio.DataType, error) {
	data, err := s.bucket.ReadAll(ctx, channelKey(token, channel))
	if err != nil {
		return ndio.T_unset, err
	}
	var info channelInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return ndio.T_unset, fmt.Errorf("bad channel info for %s/%s: %v", token, channel, err)
	}
	return info.DataType, nil
}

// readChunk returns the chunk or nil if it has never been written.
func (s *Store) readChunk(ctx context.Context, key string, dtype ndio.DataType) (*ndio.Volume, error) {
	compressed, err := s.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("bad chunk %q: %v", key, err)
	}
	chunk := &ndio.Volume{Size: s.chunkSize, Frames: 1, Type: dtype, Layout: ndio.LayoutZYX, Data: data}
	if err := chunk.Validate(); err != nil {
		return nil, fmt.Errorf("bad chunk %q: %v", key, err)
	}
	return chunk, nil
}

func (s *Store) writeChunk(ctx context.Context, key string, chunk *ndio.Volume) error {
	return s.bucket.WriteAll(ctx, key, snappy.Encode(nil, chunk.Data), nil)
}

func frameRange(bbox ndio.BoundingBox) (int32, int32) {
	if !bbox.HasT {
		return 0, 1
	}
	return bbox.TMin, bbox.TMax
}

// FetchBlock assembles the requested box from stored chunks.  Chunks never
// written read as zeros.
func (s *Store) FetchBlock(ctx context.Context, req cutout.BlockRequest) (*ndio.Volume, error) {
	dtype, err := s.channelType(ctx, req.Token, req.Channel)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, &ndio.RemoteFetchError{Block: req.BBox, Status: 404, Message: fmt.Sprintf("no channel %s/%s in blob store", req.Token, req.Channel)}
	}
	if err != nil {
		return nil, &ndio.RemoteFetchError{Block: req.BBox, Err: err}
	}
	parts, err := s.chunkParts(req.BBox)
	if err != nil {
		return nil, err
	}
	vol, err := ndio.NewVolume(req.BBox.Size(), req.BBox.Frames(), dtype, ndio.LayoutZYX)
	if err != nil {
		return nil, err
	}
	t0, t1 := frameRange(req.BBox)
	for t := t0; t < t1; t++ {
		frame := vol.Frame(t - t0)
		for _, b := range parts {
			chunk, err := s.readChunk(ctx, chunkKey(req, t, b.cell), dtype)
			if err != nil {
				return nil, &ndio.RemoteFetchError{Block: req.BBox, Err: err}
			}
			if chunk == nil {
				continue
			}
			sub, err := chunk.SubVolume(b.Min.Sub(b.cell.MinPoint(s.chunkSize)), b.Size())
			if err != nil {
				return nil, err
			}
			if err := frame.Paste(sub, b.Min.Sub(req.BBox.Min)); err != nil {
				return nil, err
			}
		}
	}
	return vol, nil
}

// PushBlock writes data into the chunks overlapping the requested box.
func (s *Store) PushBlock(ctx context.Context, req cutout.BlockRequest, data *ndio.Volume) error {
	data = data.Reorder(ndio.LayoutZYX)
	if data.Size != req.BBox.Size() || data.Frames != req.BBox.Frames() {
		return &ndio.RemoteUploadError{Block: req.BBox, Message: fmt.Sprintf("data of size %s with %d frames does not fill box", data.Size, data.Frames)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dtype, err := s.channelType(ctx, req.Token, req.Channel)
	switch {
	case gcerrors.Code(err) == gcerrors.NotFound:
		info, err := json.Marshal(channelInfo{DataType: data.Type})
		if err != nil {
			return err
		}
		if err := s.bucket.WriteAll(ctx, channelKey(req.Token, req.Channel), info, nil); err != nil {
			return &ndio.RemoteUploadError{Block: req.BBox, Err: err}
		}
	case err != nil:
		return &ndio.RemoteUploadError{Block: req.BBox, Err: err}
	case dtype != data.Type:
		return &ndio.DtypeMismatchError{Expected: dtype, Actual: data.Type}
	}

	parts, err := s.chunkParts(req.BBox)
	if err != nil {
		return err
	}
	t0, t1 := frameRange(req.BBox)
	for t := t0; t < t1; t++ {
		frame := data.Frame(t - t0)
		for _, b := range parts {
			key := chunkKey(req, t, b.cell)
			chunk, err := s.readChunk(ctx, key, data.Type)
			if err != nil {
				return &ndio.RemoteUploadError{Block: req.BBox, Err: err}
			}
			if chunk == nil {
				if chunk, err = ndio.NewVolume(s.chunkSize, 1, data.Type, ndio.LayoutZYX); err != nil {
					return err
				}
			}
			sub, err := frame.SubVolume(b.Min.Sub(req.BBox.Min), b.Size())
			if err != nil {
				return err
			}
			if err := chunk.Paste(sub, b.Min.Sub(b.cell.MinPoint(s.chunkSize))); err != nil {
				return err
			}
			if err := s.writeChunk(ctx, key, chunk); err != nil {
				return &ndio.RemoteUploadError{Block: req.BBox, Err: err}
			}
		}
	}
	ndio.Debugf("blob store: wrote %s/%s %s as %d chunks\n", req.Token, req.Channel, req.BBox, len(parts))
	return nil
}
