package utils

import (
	"fmt"
	"os/exec"
	"runtime"
)

// ValidateDependencies checks that the external tools a scan needs are on
// PATH. The local backend additionally needs a Python interpreter for the
// TalkNet worker.
func ValidateDependencies(pythonBin string) error {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return fmt.Errorf("ffprobe not found in PATH. %s", installInstructions())
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH. %s", installInstructions())
	}
	if pythonBin != "" {
		if _, err := exec.LookPath(pythonBin); err != nil {
			return fmt.Errorf("%s not found in PATH; the local backend needs a Python interpreter with TalkNet installed", pythonBin)
		}
	}
	return nil
}

// installInstructions returns platform-specific ffmpeg installation hints.
func installInstructions() string {
	switch runtime.GOOS {
	case "darwin":
		return "Install with: brew install ffmpeg"
	case "linux":
		return "Install with: apt-get install ffmpeg (Ubuntu/Debian) or yum install ffmpeg (CentOS/RHEL)"
	case "windows":
		return "Download from https://ffmpeg.org/download.html and add to PATH"
	default:
		return "Download from https://ffmpeg.org/download.html"
	}
}
