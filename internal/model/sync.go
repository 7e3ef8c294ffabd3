package model

import "time"

// SyncMode identifies how a synchronization call chose its fetch window.
type SyncMode string

const (
	ModeIncremental SyncMode = "INCREMENTAL"
	ModeFull        SyncMode = "FULL"
	ModeBackfill    SyncMode = "BACKFILL"
)

// SyncResult summarizes one synchronization call.
type SyncResult struct {
	RunID         string
	Mode          SyncMode
	Start         string // first requested date, empty when no fetch happened
	End           string
	Fetched       int   // raw observations returned by the remote source
	Rejected      int   // observations discarded by validation
	Affected      int64 // rows changed in the store
	StatusMessage string
}

// Summary is the derived statistics view over all stored observations.
type Summary struct {
	Count       int
	Min         int
	MinDate     string
	Max         int
	MaxDate     string
	Mean        float64
	LatestDate  string
	LatestValue int
	Avg7d       float64
	Avg30d      float64
	Median      float64
	P10         float64
	P90         float64
	Earliest    string
}

// Latest returns the most recent observation, or false when empty.
func (s Summary) Latest() (Observation, bool) {
	if s.Count == 0 {
		return Observation{}, false
	}
	return Observation{Date: s.LatestDate, Value: s.LatestValue}, true
}

// Distribution counts observations per category band.
type Distribution struct {
	Counts [5]int // indexed by Category
	Total  int
}

// Count returns the number of observations in c.
func (d Distribution) Count(c Category) int {
	if c < ExtremeFear || c > ExtremeGreed {
		return 0
	}
	return d.Counts[c]
}

// Percent returns the share of c in percent, 0 when empty.
func (d Distribution) Percent(c Category) float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Count(c)) / float64(d.Total) * 100
}

// GapReport lists calendar dates missing from the store in a trailing window.
type GapReport struct {
	From     string
	To       string
	Weekdays []string // anomalous, candidates for backfill
	Weekends []string // expected, market closed
}

// Total returns the number of missing dates.
func (g GapReport) Total() int {
	return len(g.Weekdays) + len(g.Weekends)
}

// UpdateResult records one run of the full update pipeline.
type UpdateResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Sync       *SyncResult
	ReadmePath string
	Backups    []string
	Committed  bool
	Pushed     bool
	Err        error
}
