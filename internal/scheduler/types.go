package scheduler

import (
	"errors"
	"time"

	"github.com/warpdl/warpops/pkg/warpops"
)

var (
	// ErrNoTrigger is returned for an entry with neither a time nor a cron
	// expression.
	ErrNoTrigger = errors.New("scheduler: a start time or a cron expression is required")
	// ErrInvalidCron is returned for an expression gronx cannot parse.
	ErrInvalidCron = errors.New("scheduler: invalid cron expression")
	// ErrNeverFires is returned for a cron expression with no occurrence
	// within a year.
	ErrNeverFires = errors.New("scheduler: cron expression does not fire within a year")
	// ErrNotFound is returned when removing an unknown entry.
	ErrNotFound = errors.New("scheduler: entry not found")
)

// Entry is a request waiting for its start time.
type Entry struct {
	ID      string          `json:"id"`
	Request warpops.Request `json:"request"`
	// TriggerAt is the wall-clock time the request is submitted at.
	TriggerAt time.Time `json:"trigger_at"`
	// Cron makes the entry recurring. Empty means one-shot.
	Cron string `json:"cron,omitempty"`
	// Fired counts the submissions made so far.
	Fired int `json:"fired,omitempty"`
}
