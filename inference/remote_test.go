package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhalttu/talkscan/video"
)

func testFrames(numbers ...int) []video.Frame {
	frames := make([]video.Frame, 0, len(numbers))
	for _, n := range numbers {
		frames = append(frames, video.Frame{
			Number:    n,
			Timestamp: float64(n) * 0.04,
			Data:      []byte{0xFF, 0xD8, byte(n), 0xFF, 0xD9},
		})
	}
	return frames
}

func TestRemoteEngine_Detect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/detect", r.URL.Path)

		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Frames, 2)

		// Answer out of order on purpose; Detect must restore input order.
		resp := detectResponse{Frames: []responseFrame{
			{FrameNumber: 1, Faces: []Detection{{TrackID: 7, X1: 10, Y1: 20, X2: 30, Y2: 40, Score: 0.9}}},
			{FrameNumber: 0, Faces: []Detection{}},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	engine := NewRemoteEngine(server.URL, 5*time.Second)
	results, err := engine.Detect(context.Background(), testFrames(0, 1))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Empty(t, results[0])
	require.Len(t, results[1], 1)
	assert.Equal(t, 7, results[1][0].TrackID)
	assert.Equal(t, 0.9, results[1][0].Score)
}

func TestRemoteEngine_Detect_NullFacesBecomesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"frames":[{"frame_number":0,"faces":null}]}`))
	}))
	defer server.Close()

	engine := NewRemoteEngine(server.URL, 5*time.Second)
	results, err := engine.Detect(context.Background(), testFrames(0))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotNil(t, results[0])
	assert.Empty(t, results[0])
}

func TestRemoteEngine_Detect_MissingFrameIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"frames":[{"frame_number":0,"faces":[]}]}`))
	}))
	defer server.Close()

	engine := NewRemoteEngine(server.URL, 5*time.Second)
	_, err := engine.Detect(context.Background(), testFrames(0, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result for frame 1")
}

func TestRemoteEngine_Detect_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model load failed", http.StatusInternalServerError)
	}))
	defer server.Close()

	engine := NewRemoteEngine(server.URL, 5*time.Second)
	_, err := engine.Detect(context.Background(), testFrames(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "model load failed")
}

func TestRemoteEngine_Detect_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewRemoteEngine(server.URL, 5*time.Second)
	_, err := engine.Detect(ctx, testFrames(0))
	require.Error(t, err)
}

func TestRemoteEngine_Close(t *testing.T) {
	engine := NewRemoteEngine("http://localhost:1", time.Second)
	assert.NoError(t, engine.Close())
}
