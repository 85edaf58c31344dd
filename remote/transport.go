package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/janelia-flyem/ndio/cutout"
	"github.com/janelia-flyem/ndio/ndio"
)

// Transport moves single blocks to and from the store's cutout service using
// the npz encoding.
type Transport struct {
	client  *http.Client
	baseURL string
}

// NewTransport returns a Transport for cutout URLs below baseURL, e.g.,
// "https://openconnecto.me/nd/sd/".  A nil client uses http.DefaultClient.
func NewTransport(client *http.Client, baseURL string) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Transport{client: client, baseURL: baseURL}
}

// CutoutURL returns the URL for a block:
// <base><token>/<channel>/npz/<res>/x0,x1/y0,y1/z0,z1/[t0,t1/][neariso/]
func (t *Transport) CutoutURL(req cutout.BlockRequest) string {
	b := req.BBox
	url := fmt.Sprintf("%s%s/%s/npz/%d/%d,%d/%d,%d/%d,%d/", t.baseURL, req.Token, req.Channel, req.Resolution,
		b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
	if b.HasT {
		url += fmt.Sprintf("%d,%d/", b.TMin, b.TMax)
	}
	if req.NearIso {
		url += "neariso/"
	}
	return url
}

// FetchURL is CutoutURL for downloads.  A box without a time range asks
// for frame 0 as "0,1/".
func (t *Transport) FetchURL(req cutout.BlockRequest) string {
	if !req.BBox.HasT {
		req.BBox = req.BBox.WithTime(0, 1)
	}
	return t.CutoutURL(req)
}

func responseMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*ndio.Kilo))
	return strings.TrimSpace(string(body))
}

// FetchBlock downloads and decodes one block.
func (t *Transport) FetchBlock(ctx context.Context, req cutout.BlockRequest) (*ndio.Volume, error) {
	timedLog := ndio.NewTimeLog()
	url := t.FetchURL(req)
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ndio.RemoteFetchError{Block: req.BBox, Err: err}
	}
	resp, err := t.client.Do(r)
	if err != nil {
		return nil, &ndio.RemoteFetchError{Block: req.BBox, Message: fmt.Sprintf("GET %s", url), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &ndio.RemoteFetchError{Block: req.BBox, Status: resp.StatusCode, Message: responseMessage(resp)}
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ndio.RemoteFetchError{Block: req.BBox, Message: "error reading response", Err: err}
	}
	vol, err := ndio.DecodeNPZ(payload)
	if err != nil {
		return nil, &ndio.RemoteFetchError{Block: req.BBox, Message: "undecodable response", Err: err}
	}
	timedLog.Debugf("GET %s (%s compressed)", url, humanize.Bytes(uint64(len(payload))))
	return vol, nil
}

// PushBlock encodes and uploads one block in ndio.LayoutZYX.
func (t *Transport) PushBlock(ctx context.Context, req cutout.BlockRequest, data *ndio.Volume) error {
	timedLog := ndio.NewTimeLog()
	payload, err := ndio.EncodeNPZ(data.Reorder(ndio.LayoutZYX))
	if err != nil {
		return &ndio.RemoteUploadError{Block: req.BBox, Message: "unable to encode block", Err: err}
	}
	url := t.CutoutURL(req)
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &ndio.RemoteUploadError{Block: req.BBox, Err: err}
	}
	r.Header.Set("Content-Type", "application/octet-stream")
	resp, err := t.client.Do(r)
	if err != nil {
		return &ndio.RemoteUploadError{Block: req.BBox, Message: fmt.Sprintf("POST %s", url), Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &ndio.RemoteUploadError{Block: req.BBox, Status: resp.StatusCode, Message: responseMessage(resp)}
	}
	timedLog.Debugf("POST %s (%s compressed)", url, humanize.Bytes(uint64(len(payload))))
	return nil
}
