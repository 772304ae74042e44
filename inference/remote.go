package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jhalttu/talkscan/video"
)

// RemoteEngine sends frame batches to a GPU inference service over HTTP. The
// service keeps the model and tracker state per connection session; from this
// side it is a plain request/response call.
type RemoteEngine struct {
	url    string
	client *http.Client
}

// NewRemoteEngine builds a client for the service at url (no trailing slash).
func NewRemoteEngine(url string, timeout time.Duration) *RemoteEngine {
	return &RemoteEngine{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type detectRequest struct {
	Frames []requestFrame `json:"frames"`
}

type requestFrame struct {
	FrameNumber int     `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	Image       string  `json:"image"` // base64 JPEG
}

type detectResponse struct {
	Frames []responseFrame `json:"frames"`
}

type responseFrame struct {
	FrameNumber int         `json:"frame_number"`
	Faces       []Detection `json:"faces"`
}

// Detect posts the batch to the /detect endpoint and maps the response back to
// input order. Every requested frame must be answered; a missing frame is an
// error, not an empty result.
func (e *RemoteEngine) Detect(ctx context.Context, frames []video.Frame) ([][]Detection, error) {
	reqBody := detectRequest{Frames: make([]requestFrame, 0, len(frames))}
	for _, f := range frames {
		reqBody.Frames = append(reqBody.Frames, requestFrame{
			FrameNumber: f.Number,
			Timestamp:   f.Timestamp,
			Image:       base64.StdEncoding.EncodeToString(f.Data),
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("detect encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+"/detect", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detect %s: %s", resp.Status, string(body))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("detect decode: %w", err)
	}

	byNumber := make(map[int][]Detection, len(out.Frames))
	for _, rf := range out.Frames {
		faces := rf.Faces
		if faces == nil {
			faces = []Detection{}
		}
		byNumber[rf.FrameNumber] = faces
	}

	results := make([][]Detection, 0, len(frames))
	for _, f := range frames {
		faces, ok := byNumber[f.Number]
		if !ok {
			return nil, fmt.Errorf("detect: service returned no result for frame %d", f.Number)
		}
		results = append(results, faces)
	}
	return results, nil
}

// Close is a no-op; the remote service owns the model lifecycle.
func (e *RemoteEngine) Close() error { return nil }
