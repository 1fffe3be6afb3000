package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"e621dl/internal/downloader"
	"e621dl/pkg/pipeline"

	"github.com/dustin/go-humanize"
)

const barWidth = 20

// ProgressDisplay renders a single updating progress line for a run. It is
// safe for concurrent use and satisfies pipeline.Observer.
type ProgressDisplay struct {
	mu        sync.Mutex
	out       io.Writer
	entries   int
	retrieved int
	queued    int
	done      int
	failed    int
	skipped   int
	bytes     int64
	startTime time.Time
	live      bool
	verbose   bool
}

// NewProgressDisplay creates a display for a run of entries. With live set
// the line is redrawn in place; verbose prints one line per entry instead.
func NewProgressDisplay(out io.Writer, entries int, live, verbose bool) *ProgressDisplay {
	if out == nil {
		out = Out
	}
	return &ProgressDisplay{
		out:       out,
		entries:   entries,
		startTime: time.Now(),
		live:      live && !verbose,
		verbose:   verbose,
	}
}

// EntryRetrieved records that an entry finished its retrieval stage
func (p *ProgressDisplay) EntryRetrieved(e pipeline.EntryReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.retrieved++
	p.queued += e.Queued

	if p.verbose {
		mark := Green("✓")
		if e.Status != pipeline.EntryOK {
			mark = Yellow("!")
		}
		fmt.Fprintf(p.out, "%s %s %s\n", mark, e.Label, Dim(entryDetail(e)))
		return
	}
	p.render()
}

// DownloadFinished records one finished download job
func (p *ProgressDisplay) DownloadFinished(r downloader.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.Status {
	case downloader.StatusCompleted:
		p.done++
		if r.Skipped {
			p.skipped++
		}
		p.bytes += r.Bytes
	case downloader.StatusFailed:
		p.failed++
		if p.verbose {
			fmt.Fprintf(p.out, "%s post %d (%s): %v\n", Red("✗"), r.Job.Post.ID, r.Job.Entry, r.Err)
		}
	}
	if !p.verbose {
		p.render()
	}
}

// Finish ends the live line
func (p *ProgressDisplay) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live {
		fmt.Fprintln(p.out)
	}
}

// Line returns the current progress line without color
func (p *ProgressDisplay) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line(false)
}

func (p *ProgressDisplay) render() {
	if !p.live {
		return
	}
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 100), p.line(true))
}

func (p *ProgressDisplay) line(color bool) string {
	paint := func(f func(string) string, s string) string {
		if color {
			return f(s)
		}
		return s
	}

	total := p.queued
	if total < p.done+p.failed {
		total = p.done + p.failed
	}
	line := fmt.Sprintf("[%s] entries %d/%d • files %d/%d • %s • %s",
		progressBar(p.done+p.failed, total),
		p.retrieved, p.entries,
		p.done, total,
		humanize.Bytes(uint64(p.bytes)),
		formatDuration(time.Since(p.startTime)),
	)
	if p.skipped > 0 {
		line += " • " + paint(Dim, fmt.Sprintf("%d existing", p.skipped))
	}
	if p.failed > 0 {
		line += " • " + paint(Red, fmt.Sprintf("%d failed", p.failed))
	}
	return line
}

func progressBar(n, total int) string {
	filled := 0
	if total > 0 {
		filled = n * barWidth / total
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
}

func entryDetail(e pipeline.EntryReport) string {
	if e.Status != pipeline.EntryOK {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Status, e.Err)
		}
		return e.Status.String()
	}
	detail := fmt.Sprintf("%d posts", e.Retrieved)
	if e.Class != "" {
		detail += ", " + e.Class
	}
	if e.Blacklisted > 0 {
		detail += fmt.Sprintf(", %d blacklisted", e.Blacklisted)
	}
	return detail
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
