package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	barWidth      = 24
)

// DownloadProgress renders a single-line byte progress bar
type DownloadProgress struct {
	mu        sync.Mutex
	name      string
	startTime time.Time
	lastDraw  time.Time
	interval  time.Duration
}

// NewDownloadProgress creates a progress line for the named file
func NewDownloadProgress(name string) *DownloadProgress {
	return &DownloadProgress{
		name:      name,
		startTime: time.Now(),
		interval:  100 * time.Millisecond,
	}
}

// Update redraws the line at most once per interval. total is -1 when unknown.
func (p *DownloadProgress) Update(written, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.Sub(p.lastDraw) < p.interval && written != total {
		return
	}
	p.lastDraw = now
	fmt.Fprintf(Output, "\r%s %s", Magenta("[STREAMING]"), p.render(written, total, now.Sub(p.startTime)))
}

// Done terminates the progress line
func (p *DownloadProgress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(Output)
}

func (p *DownloadProgress) render(written, total int64, elapsed time.Duration) string {
	rate := ""
	if secs := elapsed.Seconds(); secs > 0 {
		rate = FormatBytes(int64(float64(written)/secs)) + "/s"
	}

	if total <= 0 {
		return fmt.Sprintf("%s %s %s", p.name, Yellow(FormatBytes(written)), Dim(rate))
	}

	ratio := float64(written) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * barWidth)
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)

	return fmt.Sprintf("%s [%s] %3.0f%% %s/%s %s",
		p.name, Green(bar), ratio*100, FormatBytes(written), FormatBytes(total), Dim(rate))
}

// FormatBytes renders n with a binary unit suffix
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
