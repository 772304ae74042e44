package report

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhalttu/talkscan/inference"
	"github.com/jhalttu/talkscan/video"
)

// fakeSource feeds a scripted frame sequence.
type fakeSource struct {
	meta    video.Metadata
	frames  chan video.Frame
	waitErr error
}

func newFakeSource(meta video.Metadata, frames []video.Frame) *fakeSource {
	ch := make(chan video.Frame, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &fakeSource{meta: meta, frames: ch}
}

func (f *fakeSource) Metadata() video.Metadata   { return f.meta }
func (f *fakeSource) Frames() <-chan video.Frame { return f.frames }
func (f *fakeSource) Wait() error                { return f.waitErr }

// fakeEngine answers from a per-frame script and records batch sizes.
type fakeEngine struct {
	detections map[int][]inference.Detection
	failFrame  int // fail when a batch contains this frame number; -1 disables
	batchSizes []int
}

func newFakeEngine(detections map[int][]inference.Detection) *fakeEngine {
	return &fakeEngine{detections: detections, failFrame: -1}
}

func (e *fakeEngine) Detect(_ context.Context, frames []video.Frame) ([][]inference.Detection, error) {
	e.batchSizes = append(e.batchSizes, len(frames))
	results := make([][]inference.Detection, 0, len(frames))
	for _, f := range frames {
		if f.Number == e.failFrame {
			return nil, fmt.Errorf("backend unavailable at frame %d", f.Number)
		}
		results = append(results, e.detections[f.Number])
	}
	return results, nil
}

func (e *fakeEngine) Close() error { return nil }

func boolPtr(b bool) *bool { return &b }

func sequentialFrames(n int) []video.Frame {
	frames := make([]video.Frame, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, video.Frame{Number: i, Timestamp: float64(i) * 0.04})
	}
	return frames
}

func TestBuild_FrameOrderAndBatching(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 40}, sequentialFrames(40))
	eng := newFakeEngine(nil)

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5, BatchSize: 16})
	require.NoError(t, err)

	require.Len(t, rep.Frames, 40)
	for i, fr := range rep.Frames {
		assert.Equal(t, i, fr.FrameNumber, "frames must be strictly ordered with no gaps")
	}
	assert.Equal(t, []int{16, 16, 8}, eng.batchSizes)
}

func TestBuild_ZeroFaceFramesAreKept(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 3}, sequentialFrames(3))
	eng := newFakeEngine(map[int][]inference.Detection{
		1: {{TrackID: 0, X1: 1, Y1: 2, X2: 3, Y2: 4, Score: 0.7}},
	})

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, rep.Frames, 3)

	assert.NotNil(t, rep.Frames[0].Faces, "empty face list must encode as [], not null")
	assert.Empty(t, rep.Frames[0].Faces)
	assert.Len(t, rep.Frames[1].Faces, 1)
	assert.Empty(t, rep.Frames[2].Faces)
}

func TestBuild_BoundingBoxDerived(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 1}, sequentialFrames(1))
	eng := newFakeEngine(map[int][]inference.Detection{
		0: {{TrackID: 3, X1: 120, Y1: 40, X2: 260, Y2: 220, Score: 0.9}},
	})

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	require.NoError(t, err)

	box := rep.Frames[0].Faces[0].BoundingBox
	assert.Equal(t, 140, box.Width)
	assert.Equal(t, 180, box.Height)
	assert.Equal(t, box.X2-box.X1, box.Width)
	assert.Equal(t, box.Y2-box.Y1, box.Height)
}

func TestBuild_InvertedBoundingBoxAborts(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 1}, sequentialFrames(1))
	eng := newFakeEngine(map[int][]inference.Detection{
		0: {{TrackID: 0, X1: 50, Y1: 10, X2: 40, Y2: 20, Score: 0.9}},
	})

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	assert.Nil(t, rep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInference))
}

func TestBuild_TotalFramesReflectsWholeVideo(t *testing.T) {
	// Window covers 5 frames of a 250-frame video: total_frames stays 250.
	src := newFakeSource(video.Metadata{Path: "long.mp4", TotalFrames: 250}, sequentialFrames(5))
	eng := newFakeEngine(nil)

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 250, rep.VideoInfo.TotalFrames)
	assert.Len(t, rep.Frames, 5)
}

func TestBuild_ThresholdBoundary(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 1}, sequentialFrames(1))
	eng := newFakeEngine(map[int][]inference.Detection{
		0: {
			{TrackID: 0, X1: 0, Y1: 0, X2: 1, Y2: 1, Score: 0.49},
			{TrackID: 1, X1: 0, Y1: 0, X2: 1, Y2: 1, Score: 0.5},
			{TrackID: 2, X1: 0, Y1: 0, X2: 1, Y2: 1, Score: 0.51},
		},
	})

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	require.NoError(t, err)

	faces := rep.Frames[0].Faces
	assert.False(t, faces[0].Speaking.IsSpeaking, "0.49 is below an inclusive 0.5 threshold")
	assert.True(t, faces[1].Speaking.IsSpeaking, "exactly 0.5 counts as speaking")
	assert.True(t, faces[2].Speaking.IsSpeaking)
}

func TestBuild_BackendVerdictPassesThrough(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 1}, sequentialFrames(1))
	eng := newFakeEngine(map[int][]inference.Detection{
		0: {
			// Verdicts that contradict the threshold prove passthrough.
			{TrackID: 0, X1: 0, Y1: 0, X2: 1, Y2: 1, Score: 0.9, Speaking: boolPtr(false)},
			{TrackID: 1, X1: 0, Y1: 0, X2: 1, Y2: 1, Score: 0.1, Speaking: boolPtr(true)},
		},
	})

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	require.NoError(t, err)

	faces := rep.Frames[0].Faces
	assert.False(t, faces[0].Speaking.IsSpeaking)
	assert.True(t, faces[1].Speaking.IsSpeaking)
}

func TestBuild_FacesSortedByTrackID(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 1}, sequentialFrames(1))
	eng := newFakeEngine(map[int][]inference.Detection{
		0: {
			{TrackID: 5, X1: 0, Y1: 0, X2: 1, Y2: 1, Score: 0.5},
			{TrackID: 1, X1: 0, Y1: 0, X2: 1, Y2: 1, Score: 0.5},
			{TrackID: 3, X1: 0, Y1: 0, X2: 1, Y2: 1, Score: 0.5},
		},
	})

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	require.NoError(t, err)

	var ids []int
	for _, f := range rep.Frames[0].Faces {
		ids = append(ids, f.TrackID)
	}
	assert.Equal(t, []int{1, 3, 5}, ids)
}

func TestBuild_InferenceFailureAborts(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 10}, sequentialFrames(10))
	eng := newFakeEngine(nil)
	eng.failFrame = 7

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5, BatchSize: 4})
	assert.Nil(t, rep, "no partial report on inference failure")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInference))
	assert.False(t, errors.Is(err, ErrInput))
}

func TestBuild_ShortBackendAnswerAborts(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 2}, sequentialFrames(2))
	eng := &shortEngine{}

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	assert.Nil(t, rep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInference))
}

type shortEngine struct{}

func (e *shortEngine) Detect(_ context.Context, frames []video.Frame) ([][]inference.Detection, error) {
	return make([][]inference.Detection, len(frames)-1), nil
}
func (e *shortEngine) Close() error { return nil }

func TestBuild_SourceFailureIsInputError(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 3}, sequentialFrames(3))
	src.waitErr = errors.New("ffmpeg: truncated stream")
	eng := newFakeEngine(nil)

	rep, err := Build(context.Background(), src, eng, Options{Threshold: 0.5})
	assert.Nil(t, rep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInput))
}

func TestBuild_CancelledContext(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 3}, sequentialFrames(3))
	eng := newFakeEngine(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := Build(ctx, src, eng, Options{Threshold: 0.5})
	assert.Nil(t, rep)
	require.Error(t, err)
}

func TestBuild_ProgressCallback(t *testing.T) {
	src := newFakeSource(video.Metadata{Path: "a.mp4", TotalFrames: 5}, sequentialFrames(5))
	eng := newFakeEngine(nil)

	var seen []int
	_, err := Build(context.Background(), src, eng, Options{
		Threshold: 0.5,
		BatchSize: 2,
		OnFrame:   func(done int) { seen = append(seen, done) },
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestGenerate_MissingVideoIsInputError(t *testing.T) {
	eng := newFakeEngine(nil)
	rep, err := Generate(context.Background(), "/path/to/nonexistent/video.mp4", video.Window{}, eng, Options{Threshold: 0.5})
	assert.Nil(t, rep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInput))
	assert.Zero(t, len(eng.batchSizes), "no inference before input validation")
}

func TestGenerate_InvertedWindowIsInputError(t *testing.T) {
	start, end := 10.0, 5.0
	eng := newFakeEngine(nil)
	rep, err := Generate(context.Background(), "whatever.mp4", video.Window{Start: &start, End: &end}, eng, Options{Threshold: 0.5})
	assert.Nil(t, rep)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInput))
}
