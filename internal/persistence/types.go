package persistence

import (
	"time"
)

// LedgerEntry records the bilingual file a run wrote, so later runs can
// recognise their own output and leave it alone.
type LedgerEntry struct {
	Path         string
	OutputSHA256 string
	Target       string
	RunID        string
	CaptionCount int
	TranslatedAt time.Time
}

// RunRecord summarizes one batch run over a media directory.
type RunRecord struct {
	ID         string
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Translated int
	Skipped    int
	Failed     int
	Muxed      int
}
