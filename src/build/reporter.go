package build

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/openshift-eng/kueue-dev/src/output"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Reporter is the single consumer of stage events. It owns the terminal:
// one fixed line per component, redrawn in place, plus an aggregate
// completed/total summary in the window title. When the output stream is not
// a terminal (or animation is suppressed for streamed subprocess output) it
// appends one plain line per event instead, so no control sequences reach
// logs or files.
type Reporter struct {
	W       io.Writer
	TTY     bool
	Color   bool
	Animate bool

	order  []string
	index  map[string]int
	stages []Stage
	status []Status
	detail []string

	done      int
	anomalies int
	frame     int
}

// NewReporter creates a reporter for the given components in input order,
// auto-detecting terminal support on stdout.
func NewReporter(components []Component) *Reporter {
	r := &Reporter{
		W:       os.Stdout,
		TTY:     term.IsTerminal(int(os.Stdout.Fd())),
		Color:   output.UseColor(),
		Animate: true,
	}
	r.init(componentNames(components))
	return r
}

func componentNames(components []Component) []string {
	names := make([]string, len(components))
	for i, c := range components {
		names[i] = c.Name
	}
	return names
}

func (r *Reporter) init(names []string) {
	r.order = names
	r.index = make(map[string]int, len(names))
	for i, name := range names {
		r.index[name] = i
	}
	r.stages = make([]Stage, len(names))
	r.status = make([]Status, len(names))
	r.detail = make([]string, len(names))
}

// Anomalies returns how many events arrived for already-terminal components.
func (r *Reporter) Anomalies() int { return r.anomalies }

// Run consumes events until the channel closes. It must be the only
// goroutine writing to r.W while active.
func (r *Reporter) Run(events <-chan Event) {
	if r.TTY && r.Animate {
		r.runAnimated(events)
		return
	}
	r.runPlain(events)
}

// runPlain appends one line per stage change.
func (r *Reporter) runPlain(events <-chan Event) {
	for e := range events {
		i, ok := r.index[e.Component]
		if !ok {
			r.anomalies++
			continue
		}
		if r.status[i].Terminal() {
			r.anomalies++
			fmt.Fprintf(r.W, "%s: late event ignored (%s)\n", e.Component, e.Stage)
			continue
		}
		r.apply(i, e)

		if e.Status.Terminal() {
			fmt.Fprintf(r.W, "%s: %s%s  [%d/%d]\n", e.Component, e.Status, plainDetail(e), r.done, len(r.order))
		} else {
			fmt.Fprintf(r.W, "%s: %s\n", e.Component, e.Stage)
		}
	}
}

func plainDetail(e Event) string {
	if e.Detail == "" || e.Status == StatusSuccess {
		return ""
	}
	return " - " + firstLine(e.Detail)
}

// runAnimated owns the cursor: N fixed lines redrawn in place on every
// event and ticker frame.
func (r *Reporter) runAnimated(events <-chan Event) {
	for range r.order {
		fmt.Fprintln(r.W)
	}
	r.redrawAll()
	r.setTitle()

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case e, open := <-events:
			if !open {
				r.clearTitle()
				return
			}
			i, ok := r.index[e.Component]
			if !ok || r.status[i].Terminal() {
				r.anomalies++
				continue
			}
			r.apply(i, e)
			r.redrawLine(i)
			if e.Status.Terminal() {
				r.setTitle()
			}
		case <-tick.C:
			r.frame = (r.frame + 1) % len(spinnerFrames)
			r.redrawAll()
		}
	}
}

// apply mutates render state for event e at component index i.
func (r *Reporter) apply(i int, e Event) {
	r.stages[i] = e.Stage
	r.status[i] = e.Status
	if e.Detail != "" {
		r.detail[i] = firstLine(e.Detail)
	}
	if e.Status.Terminal() {
		r.done++
	}
}

// redrawLine repaints the fixed line for component i in place. The cursor
// rests just below the block, so line i sits len(order)-i rows up.
func (r *Reporter) redrawLine(i int) {
	up := len(r.order) - i
	fmt.Fprintf(r.W, "\033[%dA\r\033[2K%s\033[%dB\r", up, r.line(i), up)
}

func (r *Reporter) redrawAll() {
	for i := range r.order {
		r.redrawLine(i)
	}
}

func (r *Reporter) line(i int) string {
	var mark, text string
	switch r.status[i] {
	case StatusSuccess:
		mark = output.StatusIcon("success", r.Color)
		text = "complete"
	case StatusFailed:
		mark = output.StatusIcon("failed", r.Color)
		text = "failed"
		if r.detail[i] != "" {
			text = "failed - " + r.detail[i]
		}
	case StatusInterrupted:
		mark = output.StatusIcon("interrupted", r.Color)
		text = "interrupted"
	default:
		mark = spinnerFrames[r.frame]
		if r.Color {
			mark = "\033[36m" + mark + "\033[0m"
		}
		text = r.stages[i].String() + "..."
	}
	return fmt.Sprintf("  %s %-14s %s", mark, r.order[i], text)
}

// setTitle reports aggregate progress in the terminal window title.
func (r *Reporter) setTitle() {
	fmt.Fprintf(r.W, "\033]0;kueue-dev: %d/%d components\a", r.done, len(r.order))
}

func (r *Reporter) clearTitle() {
	fmt.Fprintf(r.W, "\033]0;\a")
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
