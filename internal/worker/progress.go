package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress tracks and displays batch adjustment progress.
type Progress struct {
	startTime time.Time
	output    io.Writer
	total     int
	completed int
	failed    int
	mu        sync.RWMutex
	enabled   bool
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Completed int
	Failed    int
	Total     int
	Elapsed   time.Duration
}

// Rate returns completed images per second.
func (s Snapshot) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Completed) / s.Elapsed.Seconds()
}

// ETA estimates the remaining time from the current rate.
func (s Snapshot) ETA() time.Duration {
	rate := s.Rate()
	if rate <= 0 || s.Completed >= s.Total {
		return 0
	}
	return time.Duration(float64(s.Total-s.Completed)/rate) * time.Second
}

// NewProgress creates a new progress tracker writing to stderr.
func NewProgress(total int, enabled bool) *Progress {
	return NewProgressTo(os.Stderr, total, enabled)
}

// NewProgressTo creates a progress tracker writing to w.
func NewProgressTo(w io.Writer, total int, enabled bool) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		output:    w,
		enabled:   enabled,
	}
}

// Update records the completion of a task.
func (p *Progress) Update(completed, total, failed int) {
	p.mu.Lock()
	p.completed = completed
	p.total = total
	p.failed = failed
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Snapshot{
		Completed: p.completed,
		Failed:    p.failed,
		Total:     p.total,
		Elapsed:   time.Since(p.startTime),
	}
}

// Print writes a single-line progress bar to output.
func (p *Progress) Print() {
	s := p.Snapshot()

	var frac float64
	if s.Total > 0 {
		frac = float64(s.Completed) / float64(s.Total)
	}
	filled := min(int(frac*barWidth), barWidth)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var sb strings.Builder
	fmt.Fprintf(&sb, "\r[%s] %d/%d images", bar, s.Completed, s.Total)
	if s.Failed > 0 {
		fmt.Fprintf(&sb, " (%d failed)", s.Failed)
	}
	fmt.Fprintf(&sb, " - %.1f images/sec", s.Rate())
	if eta := s.ETA(); eta > 0 {
		fmt.Fprintf(&sb, " - ETA: %s", formatDuration(eta))
	}
	if s.Total > 0 && s.Completed == s.Total {
		fmt.Fprintf(&sb, " - Done in %s", formatDuration(s.Elapsed))
	}

	// Pad to clear previous line content
	sb.WriteString("          ")

	fmt.Fprint(p.output, sb.String())
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary returns a summary string of the completed work.
func (p *Progress) Summary() string {
	s := p.Snapshot()
	return fmt.Sprintf("Adjusted %d/%d images (%d failed) in %s (%.1f images/sec)",
		s.Completed-s.Failed, s.Total, s.Failed, formatDuration(s.Elapsed), s.Rate())
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, mins)
}
