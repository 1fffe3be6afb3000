package pipeline

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"e621dl/internal/downloader"
	"e621dl/pkg/grabber"
	"e621dl/pkg/tagfile"
)

// EntryStatus is the outcome of an entry's retrieval stage
type EntryStatus int

const (
	EntryPending EntryStatus = iota
	EntryOK
	EntryUnknownTag
	EntryRetrievalFailed
	EntryCancelled
	EntryAborted
)

func (s EntryStatus) String() string {
	switch s {
	case EntryPending:
		return "pending"
	case EntryOK:
		return "ok"
	case EntryUnknownTag:
		return "unknown tag"
	case EntryRetrievalFailed:
		return "retrieval error"
	case EntryCancelled:
		return "cancelled"
	case EntryAborted:
		return "aborted"
	default:
		return fmt.Sprintf("entry_status(%d)", int(s))
	}
}

// EntryReport counts what happened to one entry
type EntryReport struct {
	Label  string
	Name   string
	Kind   tagfile.Kind
	Dir    string
	Class  string
	Status EntryStatus
	Err    error

	Planned     int
	Retrieved   int
	Invalid     int
	Blacklisted int
	Queued      int

	// Completed includes SkippedExisting
	Completed       int
	SkippedExisting int
	Failed          int
	// Cancelled counts jobs that were queued but never started
	Cancelled   int
	FailedPosts []int
	Bytes       int64
}

// Totals sums the entry reports of a run
type Totals struct {
	Entries         int
	OK              int
	Skipped         int
	Retrieved       int
	Invalid         int
	Blacklisted     int
	Completed       int
	SkippedExisting int
	Failed          int
	Cancelled       int
	Bytes           int64
}

// Report is the completion report of a run. Entries are in entry order.
type Report struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Cancelled bool
	Entries   []EntryReport

	mu    sync.Mutex
	index map[string]int
}

func newReport(runID string, items []work) *Report {
	r := &Report{
		RunID:   runID,
		Started: time.Now(),
		Entries: make([]EntryReport, len(items)),
		index:   make(map[string]int, len(items)),
	}
	for i, it := range items {
		r.Entries[i] = EntryReport{Label: it.label, Name: it.entry.Name, Kind: it.entry.Kind}
		r.index[it.label] = i
	}
	return r
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

// Totals sums every entry
func (r *Report) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := Totals{Entries: len(r.Entries)}
	for _, e := range r.Entries {
		if e.Status == EntryOK {
			t.OK++
		} else {
			t.Skipped++
		}
		t.Retrieved += e.Retrieved
		t.Invalid += e.Invalid
		t.Blacklisted += e.Blacklisted
		t.Completed += e.Completed
		t.SkippedExisting += e.SkippedExisting
		t.Failed += e.Failed
		t.Cancelled += e.Cancelled
		t.Bytes += e.Bytes
	}
	return t
}

func (r *Report) update(i int, fn func(e *EntryReport)) {
	r.mu.Lock()
	fn(&r.Entries[i])
	r.mu.Unlock()
}

func (r *Report) snapshot(i int) EntryReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.Entries[i]
	e.FailedPosts = append([]int(nil), e.FailedPosts...)
	return e
}

func (r *Report) retrieved(i int, res grabber.Result) {
	r.update(i, func(e *EntryReport) {
		e.Planned = res.Planned
		e.Retrieved = res.Retrieved
		e.Invalid = res.Invalid
		e.Blacklisted = res.Blacklisted
	})
}

func (r *Report) record(res downloader.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[res.Job.Entry]
	if !ok {
		return
	}
	e := &r.Entries[i]
	switch res.Status {
	case downloader.StatusCompleted:
		e.Completed++
		if res.Skipped {
			e.SkippedExisting++
		}
		e.Bytes += res.Bytes
	case downloader.StatusFailed:
		e.Failed++
		e.FailedPosts = append(e.FailedPosts, res.Job.Post.ID)
	default:
		e.Cancelled++
	}
}

func (r *Report) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Finished = time.Now()
	for i := range r.Entries {
		e := &r.Entries[i]
		if e.Status == EntryPending {
			e.Status = EntryCancelled
		}
		sort.Ints(e.FailedPosts)
	}
}
