package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// IsVideoFile checks if the given file extension is one of known video file extensions
func IsVideoFile(path string) bool {
	var desiredExtensions = []string{".mp4", ".webm", ".mov", ".flv", ".mkv", ".avi", ".wmv", ".mpg"}

	ext := filepath.Ext(path)
	ext = strings.ToLower(ext) // handle cases where extension is upper case

	for _, v := range desiredExtensions {
		if v == ext {
			return true
		}
	}
	return false
}

// ValidateIntegrity checks whether a video file is decodable before a scan
// commits to spawning the inference backend. Returns an error describing the
// corruption when ffprobe rejects the file.
func ValidateIntegrity(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-show_entries",
		"format=duration", "-of", "default=noprint_wrappers=1:nokey=1", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		out := string(output)
		if strings.Contains(out, "moov atom not found") {
			return fmt.Errorf("video file is corrupted (missing metadata): %s", firstLine(out))
		}
		if strings.Contains(out, "Invalid data found") ||
			strings.Contains(out, "corrupt") ||
			strings.Contains(out, "truncated") {
			return fmt.Errorf("video file is corrupted or invalid: %s", firstLine(out))
		}
		return fmt.Errorf("ffprobe error: %w: %s", err, firstLine(out))
	}
	return nil
}
