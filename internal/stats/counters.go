// Package stats keeps per-session traffic counters.
package stats

import (
	"fmt"
	"sync/atomic"
)

// Sample is a point-in-time copy of Counters.
type Sample struct {
	FramesIn    uint64 `json:"frames_in"`
	FramesOut   uint64 `json:"frames_out"`
	BytesIn     uint64 `json:"bytes_in"`
	BytesOut    uint64 `json:"bytes_out"`
	Timeouts    uint64 `json:"timeouts"`
	Empty       uint64 `json:"empty"`
	Dropped     uint64 `json:"dropped"`
	Oversize    uint64 `json:"oversize"`
	BadFrames   uint64 `json:"bad_frames"`
	CaptureMiss uint64 `json:"capture_miss"`
}

func (s Sample) String() string {
	return fmt.Sprintf("in=%d/%dB out=%d/%dB timeouts=%d empty=%d dropped=%d oversize=%d bad=%d capmiss=%d",
		s.FramesIn, s.BytesIn, s.FramesOut, s.BytesOut,
		s.Timeouts, s.Empty, s.Dropped, s.Oversize, s.BadFrames, s.CaptureMiss)
}

// Counters are updated by one session goroutine and may be read from any.
type Counters struct {
	framesIn    atomic.Uint64
	framesOut   atomic.Uint64
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
	timeouts    atomic.Uint64
	empty       atomic.Uint64
	dropped     atomic.Uint64
	oversize    atomic.Uint64
	badFrames   atomic.Uint64
	captureMiss atomic.Uint64
	parent      *Counters
}

// NewChild creates counters that also add everything to parent.
func NewChild(parent *Counters) *Counters {
	return &Counters{parent: parent}
}

// AddIn records one received message of size bytes.
func (c *Counters) AddIn(size int) {
	for ; c != nil; c = c.parent {
		c.framesIn.Add(1)
		c.bytesIn.Add(uint64(size))
	}
}

// AddOut records one sent message of size bytes.
func (c *Counters) AddOut(size int) {
	for ; c != nil; c = c.parent {
		c.framesOut.Add(1)
		c.bytesOut.Add(uint64(size))
	}
}

func (c *Counters) AddTimeout() {
	for ; c != nil; c = c.parent {
		c.timeouts.Add(1)
	}
}

func (c *Counters) AddEmpty() {
	for ; c != nil; c = c.parent {
		c.empty.Add(1)
	}
}

func (c *Counters) AddDropped() {
	for ; c != nil; c = c.parent {
		c.dropped.Add(1)
	}
}

func (c *Counters) AddOversize() {
	for ; c != nil; c = c.parent {
		c.oversize.Add(1)
	}
}

func (c *Counters) AddBadFrame() {
	for ; c != nil; c = c.parent {
		c.badFrames.Add(1)
	}
}

func (c *Counters) AddCaptureMiss() {
	for ; c != nil; c = c.parent {
		c.captureMiss.Add(1)
	}
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Sample {
	return Sample{
		FramesIn:    c.framesIn.Load(),
		FramesOut:   c.framesOut.Load(),
		BytesIn:     c.bytesIn.Load(),
		BytesOut:    c.bytesOut.Load(),
		Timeouts:    c.timeouts.Load(),
		Empty:       c.empty.Load(),
		Dropped:     c.dropped.Load(),
		Oversize:    c.oversize.Load(),
		BadFrames:   c.badFrames.Load(),
		CaptureMiss: c.captureMiss.Load(),
	}
}
