package remote

import (
	"context"
	"fmt"

	"github.com/janelia-flyem/ndio/cutout"
	"github.com/janelia-flyem/ndio/metadata"
	"github.com/janelia-flyem/ndio/ndio"
	"github.com/janelia-flyem/ndio/storage/blobstore"
)

// MetadataSource answers the per-token lookups a cutout needs.
type MetadataSource interface {
	BlockSize(ctx context.Context, token string, res int) (ndio.Point3d, error)
	ImageOffset(ctx context.Context, token string, res int) (ndio.Point3d, error)
	ChannelDataType(ctx context.Context, token, channel string) (ndio.DataType, error)
}

// TokenValidator reports whether a token names a project on the store.
type TokenValidator interface {
	ValidToken(ctx context.Context, token string) (bool, error)
}

// BlockTransport moves single blocks to and from a store.
type BlockTransport interface {
	cutout.BlockFetcher
	cutout.BlockPusher
}

// InvalidTokenError is returned when a TokenValidator rejects a token.
type InvalidTokenError struct {
	Token string
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("token %q is not valid", e.Token)
}

// Client issues cutouts against a remote store, looking up each token's
// block grid, offset and data type.
type Client struct {
	Transport BlockTransport
	Metadata  MetadataSource

	// Validator, if set, is asked about every token before any block is
	// requested.
	Validator TokenValidator

	Options         cutout.Options
	UploadBlockSize ndio.Point3d

	// Mirror, if set, receives copies made by MirrorCutout.
	Mirror BlockTransport
}

// NewClient wires a Client from configuration.  Logging is set up from the
// [logging] section and a blob mirror is opened if [mirror] names a bucket.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Logging.SetLogger()

	httpClient := cfg.HTTPClient()
	baseURL := cfg.BaseURL()
	store, err := metadata.New(httpClient, baseURL, cfg.Cache.MetadataMB*ndio.Mega)
	if err != nil {
		return nil, err
	}
	store.CacheSeconds = cfg.Cache.Seconds

	c := &Client{
		Transport:       NewTransport(httpClient, baseURL),
		Metadata:        store,
		Options:         cfg.CutoutOptions(),
		UploadBlockSize: ndio.Point3d(cfg.Cutout.UploadBlockSize),
	}
	if cfg.Remote.CheckTokens {
		c.Validator = store
	}
	if cfg.Mirror.Bucket != "" {
		mirror, err := blobstore.Open(ctx, cfg.Mirror.Bucket, cfg.Mirror.Prefix, ndio.Point3d{})
		if err != nil {
			return nil, err
		}
		c.Mirror = mirror
	}
	ndio.Infof("Client for %s ready (chunk threshold %d, concurrency %d)\n", baseURL,
		c.Options.ChunkThreshold, c.Options.Concurrency)
	return c, nil
}

func (c *Client) checkToken(ctx context.Context, token string) error {
	if c.Validator == nil {
		return nil
	}
	ok, err := c.Validator.ValidToken(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return &InvalidTokenError{Token: token}
	}
	return nil
}

// CutoutOption adjusts a download.
type CutoutOption func(*cutout.GetRequest)

// WithBlockSize overrides the block grid looked up from the token's metadata.
func WithBlockSize(size ndio.Point3d) CutoutOption {
	return func(r *cutout.GetRequest) {
		r.BlockSize = size
	}
}

// NearIso requests the near-isotropic rendition of the data.
func NearIso() CutoutOption {
	return func(r *cutout.GetRequest) {
		r.NearIso = true
	}
}

func (c *Client) getRequest(ctx context.Context, token, channel string, res int, bbox ndio.BoundingBox, opts []CutoutOption) (cutout.GetRequest, error) {
	req := cutout.GetRequest{Token: token, Channel: channel, Resolution: res, BBox: bbox}
	for _, opt := range opts {
		opt(&req)
	}
	var err error
	if req.Origin, err = c.Metadata.ImageOffset(ctx, token, res); err != nil {
		return req, err
	}
	if req.BlockSize == (ndio.Point3d{}) {
		if req.BlockSize, err = c.Metadata.BlockSize(ctx, token, res); err != nil {
			return req, err
		}
	}
	if req.DataType, err = c.Metadata.ChannelDataType(ctx, token, channel); err != nil {
		return req, err
	}
	return req, nil
}

// GetCutout downloads the box at resolution res, returned in
// ndio.LayoutXYZ.  Large boxes are fetched block by block on the token's
// block grid.
func (c *Client) GetCutout(ctx context.Context, token, channel string, res int, bbox ndio.BoundingBox, opts ...CutoutOption) (*ndio.Volume, error) {
	if err := c.checkToken(ctx, token); err != nil {
		return nil, err
	}
	req, err := c.getRequest(ctx, token, channel, res, bbox, opts)
	if err != nil {
		return nil, err
	}
	return cutout.Get(ctx, c.Transport, req, c.Options)
}

// Cutout is downloaded data together with where it came from.
type Cutout struct {
	Token      string
	Channel    string
	Resolution int
	BBox       ndio.BoundingBox

	*ndio.Volume
}

// GetVolume is GetCutout returning the data with its bounding box.
func (c *Client) GetVolume(ctx context.Context, token, channel string, res int, bbox ndio.BoundingBox, opts ...CutoutOption) (*Cutout, error) {
	v, err := c.GetCutout(ctx, token, channel, res, bbox, opts...)
	if err != nil {
		return nil, err
	}
	return &Cutout{Token: token, Channel: channel, Resolution: res, BBox: bbox, Volume: v}, nil
}

// GetXYSlice downloads the single plane z of an x-y range.
func (c *Client) GetXYSlice(ctx context.Context, token, channel string, res int, x0, x1, y0, y1, z int32) (*ndio.Volume, error) {
	return c.GetCutout(ctx, token, channel, res, ndio.NewBoundingBox(x0, x1, y0, y1, z, z+1))
}

// PostCutout uploads data, in any layout, with its corner at start.  Data
// with more than one frame is written from frame 0.
func (c *Client) PostCutout(ctx context.Context, token, channel string, res int, start ndio.Point3d, data *ndio.Volume) error {
	if err := c.checkToken(ctx, token); err != nil {
		return err
	}
	dtype, err := c.Metadata.ChannelDataType(ctx, token, channel)
	if err != nil {
		return err
	}
	req := cutout.PostRequest{
		Token:      token,
		Channel:    channel,
		Resolution: res,
		Start:      start,
		BlockSize:  c.UploadBlockSize,
		DataType:   dtype,
	}
	return cutout.Post(ctx, c.Transport, req, data, c.Options)
}

// PostTimeCutout uploads data whose first frame is written at frame t0.
func (c *Client) PostTimeCutout(ctx context.Context, token, channel string, res int, start ndio.Point3d, t0 int32, data *ndio.Volume) error {
	if err := c.checkToken(ctx, token); err != nil {
		return err
	}
	dtype, err := c.Metadata.ChannelDataType(ctx, token, channel)
	if err != nil {
		return err
	}
	req := cutout.PostRequest{
		Token:      token,
		Channel:    channel,
		Resolution: res,
		Start:      start,
		TStart:     t0,
		HasT:       true,
		BlockSize:  c.UploadBlockSize,
		DataType:   dtype,
	}
	return cutout.Post(ctx, c.Transport, req, data, c.Options)
}

// MirrorCutout downloads a box and writes it into the mirror on the
// token's block grid.
func (c *Client) MirrorCutout(ctx context.Context, token, channel string, res int, bbox ndio.BoundingBox) error {
	if c.Mirror == nil {
		return fmt.Errorf("no mirror configured")
	}
	if err := c.checkToken(ctx, token); err != nil {
		return err
	}
	req, err := c.getRequest(ctx, token, channel, res, bbox, nil)
	if err != nil {
		return err
	}
	timedLog := ndio.NewTimeLog()
	data, err := cutout.Get(ctx, c.Transport, req, c.Options)
	if err != nil {
		return err
	}
	post := cutout.PostRequest{
		Token:      token,
		Channel:    channel,
		Resolution: res,
		Start:      bbox.Min,
		TStart:     bbox.TMin,
		HasT:       bbox.HasT,
		BlockSize:  req.BlockSize,
		DataType:   req.DataType,
	}
	if err := cutout.Post(ctx, c.Mirror, post, data, c.Options); err != nil {
		return err
	}
	timedLog.Infof("Mirrored %s/%s %s at resolution %d", token, channel, bbox, res)
	return nil
}

// BlockSize returns the token's block grid at resolution res.
func (c *Client) BlockSize(ctx context.Context, token string, res int) (ndio.Point3d, error) {
	return c.Metadata.BlockSize(ctx, token, res)
}

// ImageOffset returns the token's dataset origin at resolution res.
func (c *Client) ImageOffset(ctx context.Context, token string, res int) (ndio.Point3d, error) {
	return c.Metadata.ImageOffset(ctx, token, res)
}
