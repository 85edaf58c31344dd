package remote

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/janelia-flyem/ndio/cutout"
	"github.com/janelia-flyem/ndio/metadata"
	"github.com/janelia-flyem/ndio/ndio"
	"golang.org/x/oauth2"
)

const (
	DefaultHostname = "openconnecto.me"
	DefaultProtocol = "https"
	DefaultSuffix   = "nd"
	DefaultTimeout  = 60 * time.Second
)

// Config is the TOML configuration of a Client.
type Config struct {
	Remote  remoteConfig
	Cutout  cutoutConfig
	Cache   cacheConfig
	Mirror  mirrorConfig
	Logging ndio.LogConfig
}

type remoteConfig struct {
	Hostname    string
	Protocol    string
	Suffix      string
	UserToken   string `toml:"user_token"`
	Timeout     duration
	CheckTokens bool `toml:"check_tokens"`
}

type cutoutConfig struct {
	ChunkThreshold  byteSize `toml:"chunk_threshold"`
	Concurrency     int
	StrictDtype     bool     `toml:"strict_dtype"`
	UploadBlockSize gridSize `toml:"upload_block_size"`
}

type cacheConfig struct {
	MetadataMB int `toml:"metadata_mb"`
	Seconds    int
}

// mirrorConfig names an optional blob bucket, e.g., "file:///data/mirror",
// that cutouts can be copied into.
type mirrorConfig struct {
	Bucket string
	Prefix string
}

// duration allows "60s" style strings in TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

// byteSize allows "250 MB" style strings in TOML.
type byteSize int64

func (b *byteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return err
	}
	*b = byteSize(n)
	return nil
}

// gridSize allows a block size as "1024,1024,16" or [1024, 1024, 16] in TOML.
type gridSize ndio.Point3d

func (g gridSize) String() string {
	return ndio.Point3d(g).String()
}

func (g *gridSize) UnmarshalText(text []byte) error {
	p, err := ndio.StringToPoint3d(string(text), ",")
	if err != nil {
		return err
	}
	*g = gridSize(p)
	return nil
}

func (g *gridSize) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		return g.UnmarshalText([]byte(v))
	case []interface{}:
		if len(v) != 3 {
			return fmt.Errorf("block size needs 3 elements, got %d", len(v))
		}
		for i, elem := range v {
			n, ok := elem.(int64)
			if !ok {
				return fmt.Errorf("block size element %v is not an integer", elem)
			}
			g[i] = int32(n)
		}
		return nil
	}
	return fmt.Errorf("block size must be a string or an array of integers, not %v", data)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var c Config
	c.Remote.Hostname = DefaultHostname
	c.Remote.Protocol = DefaultProtocol
	c.Remote.Suffix = DefaultSuffix
	c.Remote.Timeout = duration{DefaultTimeout}
	c.Cutout.ChunkThreshold = ndio.DefaultChunkThreshold
	c.Cutout.Concurrency = 1
	c.Cutout.UploadBlockSize = gridSize(ndio.DefaultBlockSize)
	c.Cache.MetadataMB = metadata.DefaultCacheBytes / ndio.Mega
	return c
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(filename string) (Config, error) {
	c := DefaultConfig()
	if filename == "" {
		return c, fmt.Errorf("no TOML configuration file provided")
	}
	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return c, fmt.Errorf("could not decode TOML config: %v", err)
	}
	// [logging].logfile is relative to the config file.
	if c.Logging.Logfile != "" && !filepath.IsAbs(c.Logging.Logfile) {
		c.Logging.Logfile = filepath.Join(filepath.Dir(filename), c.Logging.Logfile)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks settings that would otherwise fail at request time.
func (c Config) Validate() error {
	switch c.Remote.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("protocol must be http or https, not %q", c.Remote.Protocol)
	}
	if c.Remote.Hostname == "" {
		return fmt.Errorf("no hostname given")
	}
	if !ndio.Point3d(c.Cutout.UploadBlockSize).Positive() {
		return fmt.Errorf("upload block size %s must be positive", c.Cutout.UploadBlockSize)
	}
	if c.Cutout.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, not %d", c.Cutout.Concurrency)
	}
	if c.Cutout.ChunkThreshold < 0 {
		return fmt.Errorf("chunk threshold must not be negative")
	}
	return nil
}

// BaseURL returns "<protocol>://<hostname>/<suffix>/sd/".
func (c Config) BaseURL() string {
	suffix := c.Remote.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return fmt.Sprintf("%s://%s/%s/sd/", c.Remote.Protocol, c.Remote.Hostname, suffix)
}

// HTTPClient returns a client that sends "Authorization: Token <user token>"
// with every request when a user token is configured.
func (c Config) HTTPClient() *http.Client {
	client := &http.Client{Timeout: c.Remote.Timeout.Duration}
	if c.Remote.UserToken == "" {
		return client
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: c.Remote.UserToken,
		TokenType:   "Token",
	})
	client.Transport = &oauth2.Transport{Source: src, Base: http.DefaultTransport}
	return client
}

// CutoutOptions returns the [cutout] settings for the cutout package.
func (c Config) CutoutOptions() cutout.Options {
	return cutout.Options{
		ChunkThreshold: int64(c.Cutout.ChunkThreshold),
		Concurrency:    c.Cutout.Concurrency,
		StrictDtype:    c.Cutout.StrictDtype,
	}
}
