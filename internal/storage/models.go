package storage

import (
	"errors"
	"time"

	"github.com/kalambet/profiledir/internal/directory"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// JobTypeProfileEvent marks outbox jobs that carry a directory change for
// publishing.
const JobTypeProfileEvent = "profile_event"

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is one outbox row.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// ChangePayload is the JSON body of a profile_event job.
type ChangePayload struct {
	Kind    directory.ChangeKind `json:"kind"`
	Profile directory.Profile    `json:"profile"`
	At      time.Time            `json:"at"`
}
