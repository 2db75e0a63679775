package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

const barWidth = 30

// ProgressBar shows how many of a known number of steps are done. It is
// safe for concurrent use.
type ProgressBar struct {
	w       io.Writer
	label   string
	total   int
	noColor bool

	mu   sync.Mutex
	done int
}

// NewProgressBar creates a bar for total steps
func NewProgressBar(w io.Writer, label string, total int, noColor bool) *ProgressBar {
	return &ProgressBar{w: w, label: label, total: total, noColor: noColor}
}

// Step marks one more step as done, naming the current item
func (p *ProgressBar) Step(item string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done < p.total {
		p.done++
	}
	p.render(item)
}

// Done reports the number of finished steps
func (p *ProgressBar) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Finish ends the bar's line
func (p *ProgressBar) Finish() {
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render(item string) {
	filled := barWidth
	if p.total > 0 {
		filled = p.done * barWidth / p.total
	}
	bar := paint(p.noColor, color.FgGreen).Sprint(strings.Repeat("█", filled)) +
		paint(p.noColor, color.FgHiBlack).Sprint(strings.Repeat("░", barWidth-filled))
	fmt.Fprintf(p.w, "\r\033[K%s %s %d/%d %s", p.label, bar, p.done, p.total, item)
}
