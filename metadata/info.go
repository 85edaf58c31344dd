/*
	Package metadata reads and caches the project information document
	("<token>/info/") that describes a dataset's resolutions, block grid,
	offsets and channels.
*/
package metadata

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/janelia-flyem/ndio/ndio"
)

// ProjectInfo is the decoded info document of a token.
type ProjectInfo struct {
	Dataset  DatasetInfo            `json:"dataset"`
	Channels map[string]ChannelInfo `json:"channels"`
	Project  ProjectDesc            `json:"project"`
}

// DatasetInfo holds per-resolution geometry keyed by the resolution as a string.
type DatasetInfo struct {
	Description   string              `json:"description"`
	CubeDimension map[string][3]int32 `json:"cube_dimension"`
	Offset        map[string][3]int32 `json:"offset"`
	ImageSize     map[string][3]int32 `json:"imagesize"`
	Resolutions   []int               `json:"resolutions"`
}

type ChannelInfo struct {
	DataType    string `json:"datatype"`
	ChannelType string `json:"channel_type"`
	Description string `json:"description"`
	Resolution  int    `json:"resolution"`
}

type ProjectDesc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NotFoundError is returned when a token, resolution or channel is absent.
type NotFoundError struct {
	Token string
	What  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s is not available for token %q", e.What, e.Token)
}

func lookup(token string, m map[string][3]int32, kind string, res int) (ndio.Point3d, error) {
	v, found := m[strconv.Itoa(res)]
	if !found {
		return ndio.Point3d{}, &NotFoundError{Token: token, What: fmt.Sprintf("%s at resolution %d", kind, res)}
	}
	return ndio.Point3d(v), nil
}

// MinResolution returns the finest resolution that has a block size.
func (info *ProjectInfo) MinResolution() (int, bool) {
	var levels []int
	for key := range info.Dataset.CubeDimension {
		if res, err := strconv.Atoi(key); err == nil {
			levels = append(levels, res)
		}
	}
	if len(levels) == 0 {
		return 0, false
	}
	sort.Ints(levels)
	return levels[0], true
}

// BlockSize returns the block grid at a resolution.  A negative resolution
// selects the finest available.
func (info *ProjectInfo) BlockSize(token string, res int) (ndio.Point3d, error) {
	if res < 0 {
		var ok bool
		if res, ok = info.MinResolution(); !ok {
			return ndio.Point3d{}, &NotFoundError{Token: token, What: "block size"}
		}
	}
	return lookup(token, info.Dataset.CubeDimension, "block size", res)
}

// ImageOffset returns the dataset origin at a resolution.
func (info *ProjectInfo) ImageOffset(token string, res int) (ndio.Point3d, error) {
	return lookup(token, info.Dataset.Offset, "image offset", res)
}

// ImageSize returns the dataset extent at a resolution.
func (info *ProjectInfo) ImageSize(token string, res int) (ndio.Point3d, error) {
	return lookup(token, info.Dataset.ImageSize, "image size", res)
}

// ChannelDataType returns the declared element type of a channel.
func (info *ProjectInfo) ChannelDataType(token, channel string) (ndio.DataType, error) {
	ch, found := info.Channels[channel]
	if !found {
		return ndio.T_unset, &NotFoundError{Token: token, What: fmt.Sprintf("channel %q", channel)}
	}
	return ndio.ParseDataType(ch.DataType)
}
