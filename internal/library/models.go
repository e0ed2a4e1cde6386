// Package library records every export the agent runs and keeps finished
// reels in the exports directory, alongside a small key/value config table
// for the API token.
package library

import (
	"time"

	"github.com/dustin/go-humanize"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Entry is one export run. Path and SizeBytes are set once the reel has been
// moved into the library.
type Entry struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Project         string    `json:"project,omitempty"`
	Status          string    `json:"status"`
	Path            string    `json:"path,omitempty"`
	DurationSeconds float64   `json:"duration_s"`
	SizeBytes       int64     `json:"size_bytes"`
	Failure         string    `json:"failure,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HumanSize renders the file size as "12 MB".
func (e *Entry) HumanSize() string {
	if e.SizeBytes <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(e.SizeBytes))
}

// Age renders the creation time relative to now, e.g. "3 minutes ago".
func (e *Entry) Age() string {
	return humanize.Time(e.CreatedAt)
}

const (
	ConfigAuthToken = "auth_token"
	ConfigDeviceID  = "device_id"
)
