package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// IsURL reports whether the input names a remote video instead of a local
// file path.
func IsURL(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// Download fetches a remote video into a temporary file and returns its path.
// The caller owns the file and removes it when done with the video.
func Download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("download request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("download %s: %s", resp.Status, firstLine(string(body)))
	}

	tmp, err := os.CreateTemp("", "talkscan-*"+urlSuffix(rawURL))
	if err != nil {
		return "", fmt.Errorf("download temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download temp file: %w", err)
	}
	return tmp.Name(), nil
}

// urlSuffix picks a file extension for the downloaded video so the usual
// extension checks keep working. Unknown or missing extensions default to mp4.
func urlSuffix(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && IsVideoFile(u.Path) {
			return ext
		}
	}
	return ".mp4"
}
