package inference

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/jhalttu/talkscan/video"
)

// LocalEngine runs TalkNet in a persistent Python worker subprocess on the
// local GPU. The worker loads model weights once at startup and holds its face
// tracker state for the lifetime of the process, so track IDs stay stable
// across frames. Frames go in as length-prefixed JPEGs on stdin; detections
// come back as length-prefixed JSON on a dedicated pipe (fd 3) so worker
// prints can never corrupt the protocol.
type LocalEngine struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	stdin  io.WriteCloser
	data   io.ReadCloser
	log    *logrus.Entry
}

// NewLocalEngine spawns the worker process. pythonBin is the interpreter,
// workerScript the TalkNet worker entry point.
func NewLocalEngine(pythonBin, workerScript string, log *logrus.Logger) (*LocalEngine, error) {
	cmd := exec.Command(pythonBin, "-u", workerScript)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	// Side-channel pipe for results. The worker sees the write end as fd 3.
	dataRead, dataWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("worker pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{dataWrite}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		dataWrite.Close()
		dataRead.Close()
		return nil, fmt.Errorf("worker stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		dataWrite.Close()
		dataRead.Close()
		return nil, fmt.Errorf("worker start: %w", err)
	}
	// Only the child may hold the write end, otherwise reads never hit EOF
	// when the worker dies.
	dataWrite.Close()

	return &LocalEngine{
		cmd:    cmd,
		stderr: stderr,
		stdin:  stdin,
		data:   dataRead,
		log:    log.WithField("backend", "local"),
	}, nil
}

// Detect sends each frame to the worker and collects its detections. The
// worker answers strictly in request order, so results line up with input.
func (e *LocalEngine) Detect(ctx context.Context, frames []video.Frame) ([][]Detection, error) {
	results := make([][]Detection, 0, len(frames))
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, err := e.roundTrip(frame.Data)
		if err != nil {
			return nil, fmt.Errorf("worker frame %d: %w%s", frame.Number, err, e.crashLog())
		}
		detections, err := parseWorkerPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("worker frame %d: %w", frame.Number, err)
		}
		results = append(results, detections)
	}
	return results, nil
}

// roundTrip writes one length-prefixed request and reads one length-prefixed
// response.
func (e *LocalEngine) roundTrip(data []byte) ([]byte, error) {
	if err := writeMessage(e.stdin, data); err != nil {
		return nil, err
	}
	return readMessage(e.data)
}

// crashLog renders the captured worker stderr for error messages, if any.
func (e *LocalEngine) crashLog() string {
	if e.stderr.Len() == 0 {
		return ""
	}
	return "\nworker logs:\n" + e.stderr.String()
}

// Close shuts the worker down and reaps the process.
func (e *LocalEngine) Close() error {
	e.stdin.Close()
	e.data.Close()
	if err := e.cmd.Wait(); err != nil {
		e.log.WithError(err).Debug("worker exited uncleanly")
		return err
	}
	return nil
}

// writeMessage frames a payload as a big-endian uint32 length plus body.
func writeMessage(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// readMessage reads one length-prefixed payload.
func readMessage(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// workerError is the error object the worker emits instead of a detection
// list when a frame cannot be analyzed.
type workerError struct {
	Error string `json:"error"`
}

// parseWorkerPayload decodes a worker response. A reported analysis failure is
// a hard error: a frame that cannot be scored aborts the run rather than
// masquerading as a frame with zero faces.
func parseWorkerPayload(payload []byte) ([]Detection, error) {
	var detections []Detection
	if err := json.Unmarshal(payload, &detections); err == nil {
		if detections == nil {
			detections = []Detection{}
		}
		return detections, nil
	}

	var werr workerError
	if err := json.Unmarshal(payload, &werr); err == nil && werr.Error != "" {
		return nil, fmt.Errorf("analysis failed: %s", werr.Error)
	}
	return nil, fmt.Errorf("malformed worker response: %q", truncate(payload, 120))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
