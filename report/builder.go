package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhalttu/talkscan/inference"
	"github.com/jhalttu/talkscan/video"
)

// DefaultBatchSize is how many frames go to the engine per Detect call when
// the caller does not say otherwise.
const DefaultBatchSize = 16

// FrameSource is the decoded-frame stream the builder consumes. video.Source
// satisfies it; tests substitute fakes.
type FrameSource interface {
	Metadata() video.Metadata
	Frames() <-chan video.Frame
	Wait() error
}

// Options tune a single build.
type Options struct {
	// Threshold is the speaking-confidence cutoff applied when the backend
	// returns only a raw score. The comparison is inclusive: a score exactly
	// at the threshold counts as speaking.
	Threshold float64
	// BatchSize is the number of frames per engine call. <= 0 means
	// DefaultBatchSize.
	BatchSize int
	// OnFrame, when set, is called after each frame report is assembled with
	// the number of frames done so far. Used for progress display.
	OnFrame func(done int)
}

// Generate opens the video, runs the engine over the requested window and
// assembles the report. All failures map onto the two-kind taxonomy: ErrInput
// before any analysis, ErrInference when the backend fails mid-run.
func Generate(ctx context.Context, path string, win video.Window, eng inference.Engine, opts Options) (*VideoReport, error) {
	src, err := video.Open(ctx, path, win)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	defer src.Close()
	return Build(ctx, src, eng, opts)
}

// Build runs the single sequential pass: frames are consumed in strict order,
// dispatched to the engine in batches, and appended to the report in the same
// order. No partial report is ever returned; any failure yields (nil, err).
func Build(ctx context.Context, src FrameSource, eng inference.Engine, opts Options) (*VideoReport, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	meta := src.Metadata()
	rep := &VideoReport{
		VideoInfo: VideoInfo{Path: meta.Path, TotalFrames: meta.TotalFrames},
		Frames:    make([]FrameReport, 0, batchSize),
	}

	batch := make([]video.Frame, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		detections, err := eng.Detect(ctx, batch)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInference, err)
		}
		if len(detections) != len(batch) {
			return fmt.Errorf("%w: backend answered %d of %d frames", ErrInference, len(detections), len(batch))
		}
		for i, frame := range batch {
			fr, err := buildFrame(frame, detections[i], opts.Threshold)
			if err != nil {
				return err
			}
			rep.Frames = append(rep.Frames, fr)
			if opts.OnFrame != nil {
				opts.OnFrame(len(rep.Frames))
			}
		}
		batch = batch[:0]
		return nil
	}

	for frame := range src.Frames() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		batch = append(batch, frame)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := src.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return rep, nil
}

// buildFrame maps one frame's detections to its report entry. Faces are
// ordered by track ID ascending so output is deterministic regardless of the
// backend's detection order.
func buildFrame(frame video.Frame, detections []inference.Detection, threshold float64) (FrameReport, error) {
	faces := make([]Face, 0, len(detections))
	for _, d := range detections {
		if d.X2 < d.X1 || d.Y2 < d.Y1 {
			return FrameReport{}, fmt.Errorf("%w: frame %d track %d has inverted bounding box (%d,%d)-(%d,%d)",
				ErrInference, frame.Number, d.TrackID, d.X1, d.Y1, d.X2, d.Y2)
		}
		faces = append(faces, Face{
			TrackID:     d.TrackID,
			BoundingBox: NewBoundingBox(d.X1, d.Y1, d.X2, d.Y2),
			Speaking:    speakingResult(d, threshold),
		})
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].TrackID < faces[j].TrackID })

	return FrameReport{
		FrameNumber: frame.Number,
		Timestamp:   frame.Timestamp,
		Faces:       faces,
	}, nil
}

// speakingResult passes a backend-supplied verdict through unchanged and
// otherwise thresholds the raw score, inclusively.
func speakingResult(d inference.Detection, threshold float64) SpeakingResult {
	result := SpeakingResult{ConfidenceScore: d.Score}
	if d.Speaking != nil {
		result.IsSpeaking = *d.Speaking
	} else {
		result.IsSpeaking = d.Score >= threshold
	}
	return result
}
