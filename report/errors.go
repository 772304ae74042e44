package report

import "errors"

var (
	// ErrInput marks an unusable video (missing, unreadable, undecodable) or
	// an invalid time window. Detected before any inference work starts and
	// never retried.
	ErrInput = errors.New("invalid input")

	// ErrInference marks a speaker-inference backend failure on any frame.
	// The whole run aborts: a report with silently missing frames would be
	// worse than no report.
	ErrInference = errors.New("inference failed")
)
