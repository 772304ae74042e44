package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	megabyte       = 1024 * 1024
	maxFrameSize   = 64 * megabyte
	frameChanDepth = 8
)

// Source is a lazy, forward-only stream of decoded frames from one video file.
// Frames arrive in strict presentation order with their true decoder
// timestamps, restricted to the requested window. A Source is good for exactly
// one pass.
type Source struct {
	meta   Metadata
	frames chan Frame
	group  *errgroup.Group
	cancel context.CancelFunc
}

// Open probes the video and starts decoding frames inside the window. The
// returned Source must be drained via Frames and finished with Wait (or torn
// down early with Close).
func Open(ctx context.Context, path string, win Window) (*Source, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	meta, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	timestamps, err := frameTimestamps(ctx, path, win)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	s := &Source{
		meta:   *meta,
		frames: make(chan Frame, frameChanDepth),
		group:  group,
		cancel: cancel,
	}

	cmd := decodeCmd(groupCtx, path, win)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	group.Go(func() error {
		defer close(s.frames)

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, megabyte), maxFrameSize)
		scanner.Split(splitJPEG)

		n := 0
		for scanner.Scan() {
			data := make([]byte, len(scanner.Bytes()))
			copy(data, scanner.Bytes())
			frame := Frame{
				Number:    n,
				Timestamp: timestampFor(timestamps, n, meta.AvgFPS),
				Data:      data,
			}
			n++
			select {
			case s.frames <- frame:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("frame stream: %w", err)
		}
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("ffmpeg: %w: %s", err, firstLine(stderr.String()))
		}
		return nil
	})
	return s, nil
}

// Metadata returns the probed container metadata for the whole video,
// independent of any window restriction.
func (s *Source) Metadata() Metadata { return s.meta }

// Frames returns the frame channel. It is closed once the stream ends; Wait
// reports whether it ended cleanly.
func (s *Source) Frames() <-chan Frame { return s.frames }

// Wait blocks until decoding finishes and returns the first error, if any.
func (s *Source) Wait() error { return s.group.Wait() }

// Close aborts decoding. Safe to call after a clean drain as well.
func (s *Source) Close() error {
	s.cancel()
	for range s.frames {
		// drain so the decode goroutine can exit
	}
	if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// decodeCmd builds the ffmpeg invocation that emits the window's frames as an
// MJPEG stream on stdout. -ss/-to are output options so seeking is
// frame-accurate rather than snapped to the previous keyframe.
func decodeCmd(ctx context.Context, path string, win Window) *exec.Cmd {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", path}
	if win.Start != nil {
		args = append(args, "-ss", formatSeconds(*win.Start))
	}
	if win.End != nil {
		args = append(args, "-to", formatSeconds(*win.End))
	}
	args = append(args, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
	return exec.CommandContext(ctx, "ffmpeg", args...)
}

// frameTimestamps reads per-frame presentation times with ffprobe so that
// variable frame-rate sources report their real capture times. Entries the
// probe could not time ("N/A") are dropped; timestampFor extrapolates those.
func frameTimestamps(ctx context.Context, path string, win Window) ([]float64, error) {
	args := []string{"-v", "error", "-select_streams", "v:0",
		"-show_entries", "frame=best_effort_timestamp_time", "-of", "csv=p=0"}
	if win.Start != nil {
		interval := formatSeconds(*win.Start) + "%"
		if win.End != nil {
			interval += formatSeconds(*win.End)
		}
		args = append(args, "-read_intervals", interval)
	} else if win.End != nil {
		args = append(args, "-read_intervals", "%"+formatSeconds(*win.End))
	}
	args = append(args, "--", path)

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("timestamp probe: %w", err)
	}

	var timestamps []float64
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, ","))
		if line == "" || line == "N/A" {
			continue
		}
		ts, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		// read_intervals seeks to the keyframe before the window, so frames
		// ahead of the start can leak in. Keep only in-window times.
		if win.Contains(ts) {
			timestamps = append(timestamps, ts)
		}
	}
	return timestamps, nil
}

// timestampFor returns the probed timestamp for frame n. When the decoder
// produced more frames than the probe timed, the tail is extrapolated from the
// last known time and the average frame rate.
func timestampFor(timestamps []float64, n int, avgFPS float64) float64 {
	if n < len(timestamps) {
		return timestamps[n]
	}
	step := 0.0
	if avgFPS > 0 {
		step = 1.0 / avgFPS
	}
	if len(timestamps) == 0 {
		return float64(n) * step
	}
	last := timestamps[len(timestamps)-1]
	return last + float64(n-len(timestamps)+1)*step
}

// formatSeconds renders a seconds value the way ffmpeg expects it.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
