// Package store persists repair jobs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/retouch/retouch/internal/editor"
)

var ErrNotFound = errors.New("job not found")

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Done reports whether the job reached a final state.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is one request to repair an image.
type Job struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"sessionId"`
	ImageID     string          `json:"imageId"`
	Regions     []editor.Region `json:"regions"`
	Instruction string          `json:"instruction"`
	Prompt      string          `json:"prompt"`
	Model       string          `json:"model"`
	Status      Status          `json:"status"`
	ResultID    string          `json:"resultId,omitempty"`
	ResultURL   string          `json:"resultUrl,omitempty"`
	ModelText   string          `json:"modelText,omitempty"`
	ErrorKind   string          `json:"errorKind,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// JobStore is implemented by MemoryStore and PostgresStore.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]Job, error)
}
