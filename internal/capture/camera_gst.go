//go:build gst

package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// GstCamera captures from a V4L2 device through a GStreamer pipeline:
//
//	v4l2src -> videoconvert -> videoscale -> capsfilter(RGBA) -> appsink
type GstCamera struct {
	pipeline *gst.Pipeline
	frames   chan *Frame
	width    int
	height   int
}

// OpenCamera starts capturing from /dev/video<index>.
func OpenCamera(index int, opts Options) (Source, error) {
	opts = opts.withDefaults()
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("capture: create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("capture: create v4l2src: %w", err)
	}
	src.SetProperty("device", fmt.Sprintf("/dev/video%d", index))

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("capture: create videoconvert: %w", err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("capture: create videoscale: %w", err)
	}
	caps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("capture: create capsfilter: %w", err)
	}
	caps.SetProperty("caps", gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,format=RGBA,width=%d,height=%d", opts.Width, opts.Height)))

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("capture: create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)

	pipeline.AddMany(src, convert, scale, caps, sink.Element)
	if err := gst.ElementLinkMany(src, convert, scale, caps, sink.Element); err != nil {
		return nil, fmt.Errorf("capture: link pipeline: %w", err)
	}

	c := &GstCamera{
		pipeline: pipeline,
		frames:   make(chan *Frame, 1),
		width:    opts.Width,
		height:   opts.Height,
	}
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: c.onSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("capture: start camera %d: %w", index, err)
	}
	return c, nil
}

func (c *GstCamera) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) < c.width*c.height*4 {
		buffer.Unmap()
		return gst.FlowOK
	}
	pix := make([]byte, c.width*c.height*4)
	copy(pix, data)
	buffer.Unmap()

	f := &Frame{
		Image: &image.RGBA{
			Pix:    pix,
			Stride: c.width * 4,
			Rect:   image.Rect(0, 0, c.width, c.height),
		},
		Timestamp: time.Now(),
	}
	// Keep only the newest frame.
	select {
	case c.frames <- f:
	default:
		select {
		case <-c.frames:
		default:
		}
		select {
		case c.frames <- f:
		default:
		}
	}
	return gst.FlowOK
}

func (c *GstCamera) Next(ctx context.Context) (*Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-c.frames:
		return f, nil
	case <-time.After(2 * time.Second):
		return nil, fmt.Errorf("%w: no frame from camera", ErrUnavailable)
	}
}

func (c *GstCamera) Close() error {
	return c.pipeline.SetState(gst.StateNull)
}
