// Package report assembles the JSON document describing per-frame face boxes
// and speaking confidence for a video. The report is a pure function of the
// video, the requested time window and the inference results: one sequential
// pass, immutable once built.
package report

// VideoInfo describes the analyzed video. TotalFrames is always the frame
// count of the whole file, even when only a window of it was analyzed, so the
// report states the full video length while Frames may cover a subset.
type VideoInfo struct {
	Path        string `json:"path"`
	TotalFrames int    `json:"total_frames"`
}

// BoundingBox is a face location in pixel coordinates. Width and Height are
// always derived from the corners, never taken from upstream.
type BoundingBox struct {
	X1     int `json:"x1"`
	Y1     int `json:"y1"`
	X2     int `json:"x2"`
	Y2     int `json:"y2"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewBoundingBox builds a box from its corners, deriving width and height.
func NewBoundingBox(x1, y1, x2, y2 int) BoundingBox {
	return BoundingBox{
		X1:     x1,
		Y1:     y1,
		X2:     x2,
		Y2:     y2,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}

// SpeakingResult is the per-face speaking verdict. IsSpeaking is a thresholded
// view of ConfidenceScore unless the backend supplied its own boolean.
type SpeakingResult struct {
	IsSpeaking      bool    `json:"is_speaking"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Face is one detected face in one frame. TrackID is the backend tracker's
// stable identifier for the same physical face across frames; it is carried
// through opaquely, never renumbered.
type Face struct {
	TrackID     int            `json:"track_id"`
	BoundingBox BoundingBox    `json:"bounding_box"`
	Speaking    SpeakingResult `json:"speaking"`
}

// FrameReport covers one inspected frame. Frames with zero detected faces are
// kept, with an empty (never null) face list.
type FrameReport struct {
	FrameNumber int     `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	Faces       []Face  `json:"faces"`
}

// VideoReport is the root document returned to the caller. Frames is ordered
// by frame number ascending with no gaps or duplicates inside the analyzed
// window.
type VideoReport struct {
	VideoInfo VideoInfo     `json:"video_info"`
	Frames    []FrameReport `json:"frames"`
}
