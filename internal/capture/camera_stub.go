//go:build !gst

package capture

import "fmt"

// OpenCamera needs GStreamer; this build was made without the gst tag.
func OpenCamera(index int, opts Options) (Source, error) {
	return nil, fmt.Errorf("capture: camera %d: %w (rebuild with -tags gst)", index, ErrUnavailable)
}
