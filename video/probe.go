package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ffprobeOutput mirrors the parts of `ffprobe -of json` output we care about.
type ffprobeOutput struct {
	Streams []struct {
		CodecName     string `json:"codec_name"`
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		NbFrames      string `json:"nb_frames"`
		NbReadPackets string `json:"nb_read_packets"`
		AvgFrameRate  string `json:"avg_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects a video file and returns its container metadata. The frame
// count prefers the container's nb_frames field and falls back to counting
// packets, which is slower but works for containers that omit the count.
func Probe(ctx context.Context, path string) (*Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("video not accessible: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a video file", path)
	}

	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,nb_frames,avg_frame_rate",
		"-show_entries", "format=duration", "-of", "json", "--", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, firstLine(stderr.String()))
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return nil, fmt.Errorf("ffprobe output parse: %w", err)
	}
	if len(probed.Streams) == 0 {
		return nil, fmt.Errorf("no video stream found in %s", path)
	}

	stream := probed.Streams[0]
	meta := &Metadata{
		Path:   path,
		Width:  stream.Width,
		Height: stream.Height,
		Codec:  stream.CodecName,
	}
	if stream.CodecName == "" {
		return nil, fmt.Errorf("could not detect video codec for %s", path)
	}
	meta.Duration, _ = strconv.ParseFloat(probed.Format.Duration, 64)
	meta.AvgFPS = parseRate(stream.AvgFrameRate)

	if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
		meta.TotalFrames = n
	} else {
		n, err := countFrames(ctx, path)
		if err != nil {
			return nil, err
		}
		meta.TotalFrames = n
	}
	return meta, nil
}

// countFrames counts video packets with ffprobe. Containers without nb_frames
// metadata (common for VFR and streamed files) need this slower pass.
func countFrames(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-count_packets", "-show_entries", "stream=nb_read_packets", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("frame count failed: %w", err)
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(output, &probed); err != nil {
		return 0, fmt.Errorf("frame count parse: %w", err)
	}
	if len(probed.Streams) == 0 {
		return 0, fmt.Errorf("frame count: no video stream in %s", path)
	}
	n, err := strconv.Atoi(probed.Streams[0].NbReadPackets)
	if err != nil {
		return 0, fmt.Errorf("frame count parse: %w", err)
	}
	return n, nil
}

// parseRate converts an ffprobe rational like "30000/1001" to a float. Returns
// 0 for missing or degenerate rates ("0/0").
func parseRate(rate string) float64 {
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		f, _ := strconv.ParseFloat(rate, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// firstLine trims a multi-line tool output down to its first useful line.
func firstLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		return strings.TrimSpace(lines[0])
	}
	return "no additional information available"
}
