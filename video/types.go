package video

import "fmt"

// Frame is a single decoded video frame. Number is the frame's 0-based index
// within the decoded sequence and Timestamp is the decoder's presentation time
// in seconds, so variable frame-rate sources keep their true timing. Data holds
// the frame encoded as JPEG.
type Frame struct {
	Number    int
	Timestamp float64
	Data      []byte
}

// Metadata contains the container-level properties of a video file.
type Metadata struct {
	Path        string
	Width       int
	Height      int
	Codec       string
	Duration    float64 // seconds
	AvgFPS      float64
	TotalFrames int
}

// Window restricts decoding to a time range in seconds. A nil bound is open.
type Window struct {
	Start *float64
	End   *float64
}

// Validate checks that the window bounds are non-negative and that the end
// comes after the start when both are set.
func (w Window) Validate() error {
	if w.Start != nil && *w.Start < 0 {
		return fmt.Errorf("start time must be >= 0, got %g", *w.Start)
	}
	if w.End != nil && *w.End < 0 {
		return fmt.Errorf("end time must be >= 0, got %g", *w.End)
	}
	if w.Start != nil && w.End != nil && *w.End <= *w.Start {
		return fmt.Errorf("end time %g must be greater than start time %g", *w.End, *w.Start)
	}
	return nil
}

// IsZero reports whether the window covers the whole video.
func (w Window) IsZero() bool {
	return w.Start == nil && w.End == nil
}

// Contains reports whether a timestamp falls inside the window.
func (w Window) Contains(ts float64) bool {
	if w.Start != nil && ts < *w.Start {
		return false
	}
	if w.End != nil && ts > *w.End {
		return false
	}
	return true
}
