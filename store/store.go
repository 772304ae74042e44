// Package store persists finished video reports to PostgreSQL so scans can be
// queried and joined later. Persistence is optional and strictly append-only:
// each scan run gets its own row set, and nothing is written unless the whole
// report was assembled first.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhalttu/talkscan/report"
	"github.com/jhalttu/talkscan/video"
)

// Store manages the PostgreSQL connection.
type Store struct {
	conn *pgx.Conn
}

// New connects and ensures the schema exists.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS scans (
			id UUID PRIMARY KEY,
			video_path TEXT NOT NULL,
			total_frames INT NOT NULL,
			window_start DOUBLE PRECISION,
			window_end DOUBLE PRECISION,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS scan_frames (
			scan_id UUID REFERENCES scans(id) ON DELETE CASCADE,
			frame_number INT NOT NULL,
			ts DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (scan_id, frame_number)
		);
		CREATE TABLE IF NOT EXISTS scan_faces (
			id BIGSERIAL PRIMARY KEY,
			scan_id UUID NOT NULL,
			frame_number INT NOT NULL,
			track_id INT NOT NULL,
			x1 INT NOT NULL,
			y1 INT NOT NULL,
			x2 INT NOT NULL,
			y2 INT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			is_speaking BOOLEAN NOT NULL,
			FOREIGN KEY (scan_id, frame_number) REFERENCES scan_frames (scan_id, frame_number) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS scan_faces_track_idx ON scan_faces (scan_id, track_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// SaveReport writes one finished report in a single transaction, keyed by the
// run ID. Either the whole report lands or none of it does.
func (s *Store) SaveReport(ctx context.Context, runID uuid.UUID, rep *report.VideoReport, win video.Window) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO scans (id, video_path, total_frames, window_start, window_end)
		VALUES ($1, $2, $3, $4, $5)
	`, runID, rep.VideoInfo.Path, rep.VideoInfo.TotalFrames, win.Start, win.End)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	batch := &pgx.Batch{}
	for _, query := range frameInserts(runID, rep) {
		batch.Queue(query.sql, query.args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert frames: %w", err)
	}

	return tx.Commit(ctx)
}

// insert is one queued statement for the report batch.
type insert struct {
	sql  string
	args []any
}

// frameInserts flattens a report into the frame and face row inserts.
func frameInserts(runID uuid.UUID, rep *report.VideoReport) []insert {
	var inserts []insert
	for _, frame := range rep.Frames {
		inserts = append(inserts, insert{
			sql:  `INSERT INTO scan_frames (scan_id, frame_number, ts) VALUES ($1, $2, $3)`,
			args: []any{runID, frame.FrameNumber, frame.Timestamp},
		})
		for _, face := range frame.Faces {
			inserts = append(inserts, insert{
				sql: `INSERT INTO scan_faces (scan_id, frame_number, track_id, x1, y1, x2, y2, confidence_score, is_speaking)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				args: []any{
					runID, frame.FrameNumber, face.TrackID,
					face.BoundingBox.X1, face.BoundingBox.Y1, face.BoundingBox.X2, face.BoundingBox.Y2,
					face.Speaking.ConfidenceScore, face.Speaking.IsSpeaking,
				},
			})
		}
	}
	return inserts
}
