package service

import (
	"context"
	"time"

	"github.com/MimeLyc/bilingual-subs/internal/persistence"
)

// Store is the persistence the service needs. *persistence.SQLiteStore
// implements it.
type Store interface {
	LookupLedger(ctx context.Context, path string) (persistence.LedgerEntry, bool, error)
	RecordLedger(ctx context.Context, entry persistence.LedgerEntry) error
	LoadChunk(ctx context.Context, key string) (string, bool, error)
	SaveChunk(ctx context.Context, key, target, translated string) error
	PruneChunks(ctx context.Context, cutoff time.Time) (int64, error)
	RecordRun(ctx context.Context, run persistence.RunRecord) error
}

type FileStatus string

const (
	StatusTranslated FileStatus = "translated"
	// StatusUpToDate marks a file that already holds this tool's output.
	StatusUpToDate FileStatus = "up-to-date"
	StatusFailed   FileStatus = "failed"
)

// FileOutcome is what happened to one caption file during a run.
type FileOutcome struct {
	Name         string
	Path         string
	Status       FileStatus
	Hint         string
	Target       string
	Captions     int
	Segments     int
	Chunks       int
	CachedChunks int
	Bytes        int
	Duration     time.Duration
	MuxedTo      string
	Err          error
}

// Report summarizes one run over the media directory.
type Report struct {
	RunID      string
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	// Idle is set when the run did nothing: missing credentials, or the
	// directory lock was held by another process.
	Idle       bool
	IdleReason string
	Files      []FileOutcome
}

func (r *Report) Count(status FileStatus) int {
	n := 0
	for _, f := range r.Files {
		if f.Status == status {
			n++
		}
	}
	return n
}

func (r *Report) Muxed() int {
	n := 0
	for _, f := range r.Files {
		if f.MuxedTo != "" {
			n++
		}
	}
	return n
}
