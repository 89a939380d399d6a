// Package state records command runs and USGS downloads in a SQLite database.
package state

import (
	"context"
	"errors"
	"time"
)

// DefaultPath is the state database location relative to the project root.
const DefaultPath = ".nadi/state.db"

// ErrNotFound is returned when a run or download does not exist.
var ErrNotFound = errors.New("not found")

// Store is the run history and download ledger.
type Store interface {
	CreateRun(ctx context.Context, command string, args []string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	RecordDownload(ctx context.Context, d *Download) error
	GetDownload(ctx context.Context, siteNo, kind string) (*Download, error)
	ListDownloads(ctx context.Context) ([]*Download, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)

// RunStatus represents the status of a command run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of a nadi command.
type Run struct {
	ID          string
	Command     string
	Args        []string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Download is a file fetched from the NLDI service.
type Download struct {
	SiteNo    string
	Kind      string
	Path      string
	Bytes     int64
	FetchedAt time.Time
}
