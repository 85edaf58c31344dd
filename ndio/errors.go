package ndio

import "fmt"

// InvalidRangeError is returned for a malformed bounding box or block size.
type InvalidRangeError struct {
	Axis        string
	Start, Stop int64
	Reason      string
}

func (e *InvalidRangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s range [%d,%d): %s", e.Axis, e.Start, e.Stop, e.Reason)
	}
	return fmt.Sprintf("invalid %s range [%d,%d): stop must exceed start", e.Axis, e.Start, e.Stop)
}

// RemoteFetchError is a failed download of one block.  Status is the HTTP
// status code returned by the store or 0 if the request never completed.
type RemoteFetchError struct {
	Block   BoundingBox
	Status  int
	Message string
	Err     error
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("fetch of block %s failed: %s", e.Block, transportDetail(e.Status, e.Message, e.Err))
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// RemoteUploadError is a failed upload of one block.
type RemoteUploadError struct {
	Block   BoundingBox
	Status  int
	Message string
	Err     error
}

func (e *RemoteUploadError) Error() string {
	return fmt.Sprintf("upload of block %s failed: %s", e.Block, transportDetail(e.Status, e.Message, e.Err))
}

func (e *RemoteUploadError) Unwrap() error {
	return e.Err
}

func transportDetail(status int, msg string, err error) string {
	switch {
	case status != 0 && msg != "":
		return fmt.Sprintf("status %d: %s", status, msg)
	case status != 0:
		return fmt.Sprintf("status %d", status)
	case err != nil && msg != "":
		return fmt.Sprintf("%s: %v", msg, err)
	case err != nil:
		return err.Error()
	case msg != "":
		return msg
	}
	return "unknown error"
}

// DtypeMismatchError is returned when an array's element type differs from the
// declared channel type.  Block is nil when the mismatch is for a whole upload.
type DtypeMismatchError struct {
	Expected DataType
	Actual   DataType
	Block    *BoundingBox
}

func (e *DtypeMismatchError) Error() string {
	if e.Block != nil {
		return fmt.Sprintf("block %s has data type %s, expected %s", e.Block, e.Actual, e.Expected)
	}
	return fmt.Sprintf("data type %s does not match channel data type %s", e.Actual, e.Expected)
}
