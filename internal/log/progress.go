package log

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Mode selects how scan progress is rendered.
type Mode string

const (
	ModeAuto  Mode = "auto"  // ANSI bar on a TTY, plain lines otherwise
	ModePlain Mode = "plain" // one line per step
	ModeJSON  Mode = "json"  // one JSON event per step
)

// Progress renders step-by-step feedback for a scan run. Safe for
// concurrent use by pipeline workers.
type Progress struct {
	mu          sync.Mutex
	name        string
	total       int
	current     int
	startTime   time.Time
	interactive bool
	jsonOut     bool
}

// NewProgress creates an indicator for total steps. ModeAuto picks
// interactive rendering only when stderr is a terminal.
func NewProgress(name string, total int, mode Mode) *Progress {
	p := &Progress{
		name:      name,
		total:     total,
		startTime: time.Now(),
	}

	switch mode {
	case ModeJSON:
		p.jsonOut = true
	case ModePlain:
	default:
		p.interactive = term.IsTerminal(int(os.Stderr.Fd()))
	}
	return p
}

// Step advances the indicator by one and renders the given label.
func (p *Progress) Step(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	elapsed := time.Since(p.startTime)

	switch {
	case p.jsonOut:
		event, _ := json.Marshal(map[string]any{
			"phase":   p.name,
			"step":    p.current,
			"total":   p.total,
			"label":   label,
			"elapsed": elapsed.Round(time.Millisecond).String(),
		})
		fmt.Fprintln(os.Stderr, string(event))
	case p.interactive:
		fmt.Fprintf(os.Stderr, "\r%s %s [%s] %d/%d %s",
			spinnerChars[p.current%len(spinnerChars)],
			p.name, bar(p.current, p.total), p.current, p.total, label)
		if p.current >= p.total {
			fmt.Fprintln(os.Stderr)
		}
	default:
		log.Info().
			Str("phase", p.name).
			Int("step", p.current).
			Int("total", p.total).
			Msg(label)
	}
}

// Done finishes the indicator and logs the total duration.
func (p *Progress) Done() {
	p.mu.Lock()
	elapsed := time.Since(p.startTime)
	p.mu.Unlock()

	log.Info().
		Str("phase", p.name).
		Dur("elapsed", elapsed).
		Msg("complete")
}

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func bar(current, total int) string {
	const width = 20
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := current * width / total
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
