// Package inference runs the TalkNet active-speaker-detection model over video
// frames, either in a local worker process or through a remote GPU service.
// The model itself is external; this package only moves frames in and
// detections out.
package inference

import (
	"context"

	"github.com/jhalttu/talkscan/video"
)

// Detection is one face found in a single frame, as reported by a backend.
// Speaking is nil when the backend returns only a raw confidence score; the
// report layer then applies the configured threshold. A non-nil value is the
// backend's own verdict and is passed through untouched.
type Detection struct {
	TrackID  int     `json:"track_id"`
	X1       int     `json:"x1"`
	Y1       int     `json:"y1"`
	X2       int     `json:"x2"`
	Y2       int     `json:"y2"`
	Score    float64 `json:"score"`
	Speaking *bool   `json:"speaking,omitempty"`
}

// Engine scores frames for active speakers. Detect returns one detection slice
// per input frame, in input order; an empty slice means no faces were found in
// that frame. Implementations own their model state for their whole lifetime
// and release it in Close.
type Engine interface {
	Detect(ctx context.Context, frames []video.Frame) ([][]Detection, error)
	Close() error
}
