package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coocood/freecache"
	"github.com/golang/groupcache/singleflight"
	"github.com/janelia-flyem/ndio/ndio"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultCacheBytes is the size of the info cache if none is given.
const DefaultCacheBytes = 16 * ndio.Mega

// Store fetches project info documents and keeps them in a bounded cache.
// Concurrent lookups of an uncached token share one request.
type Store struct {
	client  *http.Client
	baseURL string

	// CacheSeconds is how long documents stay cached; 0 keeps them until evicted.
	CacheSeconds int

	cache  *freecache.Cache
	group  singleflight.Group
	schema *jsonschema.Schema
}

// New returns a Store reading documents below baseURL, e.g.,
// "https://openconnecto.me/nd/sd/".  A nil client uses http.DefaultClient.
func New(client *http.Client, baseURL string, cacheBytes int) (*Store, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if cacheBytes <= 0 {
		cacheBytes = DefaultCacheBytes
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	schema, err := compileInfoSchema()
	if err != nil {
		return nil, fmt.Errorf("unable to compile project info schema: %v", err)
	}
	return &Store{
		client:  client,
		baseURL: baseURL,
		cache:   freecache.NewCache(cacheBytes),
		schema:  schema,
	}, nil
}

// statusError is a non-200 response.
type statusError struct {
	url    string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("bad response from %s: status %d: %s", e.url, e.status, e.body)
}

func (s *Store) get(ctx context.Context, path string) ([]byte, error) {
	url := s.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response from %s: %v", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{url: url, status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// rawInfo returns the validated info document for a token.
func (s *Store) rawInfo(ctx context.Context, token string) ([]byte, error) {
	key := []byte(token)
	data, err := s.cache.Get(key)
	if err == nil {
		return data, nil
	}
	if err != freecache.ErrNotFound {
		ndio.Errorf("project info cache lookup for %q failed: %v\n", token, err)
	}
	v, err := s.group.Do(token, func() (interface{}, error) {
		body, err := s.get(ctx, token+"/info/")
		if err != nil {
			if se, ok := err.(*statusError); ok && se.status == http.StatusNotFound {
				return nil, &NotFoundError{Token: token, What: "project info"}
			}
			return nil, err
		}
		if err := s.validate(body); err != nil {
			return nil, fmt.Errorf("bad project info for token %q: %v", token, err)
		}
		if err := s.cache.Set(key, body, s.CacheSeconds); err != nil {
			ndio.Warningf("unable to cache project info for %q (%d bytes): %v\n", token, len(body), err)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Store) validate(body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.schema.Validate(v)
}

// ProjectInfo returns the decoded info document for a token.
func (s *Store) ProjectInfo(ctx context.Context, token string) (*ProjectInfo, error) {
	body, err := s.rawInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	var info ProjectInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("unable to decode project info for token %q: %v", token, err)
	}
	return &info, nil
}

// Forget evicts a token's cached document.
func (s *Store) Forget(token string) {
	s.cache.Del([]byte(token))
}

// BlockSize returns the block grid at a resolution.  A negative resolution
// selects the finest available.
func (s *Store) BlockSize(ctx context.Context, token string, res int) (ndio.Point3d, error) {
	info, err := s.ProjectInfo(ctx, token)
	if err != nil {
		return ndio.Point3d{}, err
	}
	return info.BlockSize(token, res)
}

// ImageOffset returns the dataset origin at a resolution.
func (s *Store) ImageOffset(ctx context.Context, token string, res int) (ndio.Point3d, error) {
	info, err := s.ProjectInfo(ctx, token)
	if err != nil {
		return ndio.Point3d{}, err
	}
	return info.ImageOffset(token, res)
}

// ImageSize returns the dataset extent at a resolution.
func (s *Store) ImageSize(ctx context.Context, token string, res int) (ndio.Point3d, error) {
	info, err := s.ProjectInfo(ctx, token)
	if err != nil {
		return ndio.Point3d{}, err
	}
	return info.ImageSize(token, res)
}

// ChannelDataType returns the declared element type of a channel.
func (s *Store) ChannelDataType(ctx context.Context, token, channel string) (ndio.DataType, error) {
	info, err := s.ProjectInfo(ctx, token)
	if err != nil {
		return ndio.T_unset, err
	}
	return info.ChannelDataType(token, channel)
}

// ValidToken reports whether the store has an info document for the token.
func (s *Store) ValidToken(ctx context.Context, token string) (bool, error) {
	_, err := s.rawInfo(ctx, token)
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*NotFoundError); ok {
		return false, nil
	}
	return false, err
}

// PublicTokens returns the tokens the server lists as public.
func (s *Store) PublicTokens(ctx context.Context) ([]string, error) {
	body, err := s.get(ctx, "public_tokens/")
	if err != nil {
		return nil, err
	}
	var tokens []string
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, fmt.Errorf("unable to decode public tokens: %v", err)
	}
	return tokens, nil
}

// PublicDatasets groups the public tokens by the dataset each one's info
// document describes.
func (s *Store) PublicDatasets(ctx context.Context) (map[string][]string, error) {
	tokens, err := s.PublicTokens(ctx)
	if err != nil {
		return nil, err
	}
	datasets := make(map[string][]string)
	for _, token := range tokens {
		info, err := s.ProjectInfo(ctx, token)
		if err != nil {
			return nil, err
		}
		name := info.Dataset.Description
		datasets[name] = append(datasets[name], token)
	}
	return datasets, nil
}

// DefaultPingSuffix is requested by Ping when no suffix is given.
const DefaultPingSuffix = "public_tokens/"

// Ping requests a path below the base URL and returns the response status.
// Only a failure to reach the server is an error.
func (s *Store) Ping(ctx context.Context, suffix string) (int, error) {
	if suffix == "" {
		suffix = DefaultPingSuffix
	}
	url := s.baseURL + suffix
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error requesting %s: %v", url, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}
