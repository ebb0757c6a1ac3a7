package build

import (
	"bytes"
	"strings"
	"testing"
)

func plainReporter(components ...string) (*Reporter, *bytes.Buffer) {
	var buf bytes.Buffer
	r := &Reporter{W: &buf, TTY: false, Color: false, Animate: true}
	r.init(components)
	return r, &buf
}

func feed(r *Reporter, events ...Event) {
	ch := make(chan Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	r.Run(ch)
}

func TestReporterPlainNoControlSequences(t *testing.T) {
	r, buf := plainReporter("operator", "operand")
	feed(r,
		Event{Component: "operator", Stage: StageBuild, Status: StatusRunning},
		Event{Component: "operand", Stage: StageLocate, Status: StatusRunning},
		Event{Component: "operator", Stage: StageComplete, Status: StatusSuccess},
		Event{Component: "operand", Stage: StageComplete, Status: StatusFailed, Detail: "file not found"},
	)

	out := buf.String()
	if strings.Contains(out, "\033") || strings.Contains(out, "\a") {
		t.Errorf("non-terminal output must not contain control sequences: %q", out)
	}
	if !strings.Contains(out, "operator: building image") {
		t.Errorf("stage line missing: %q", out)
	}
	if !strings.Contains(out, "operand: failed - file not found") {
		t.Errorf("failure line missing: %q", out)
	}
}

func TestReporterSummaryCounter(t *testing.T) {
	r, buf := plainReporter("operator", "operand")
	feed(r,
		Event{Component: "operator", Stage: StageComplete, Status: StatusSuccess},
		Event{Component: "operand", Stage: StageComplete, Status: StatusSuccess},
	)

	out := buf.String()
	if !strings.Contains(out, "[1/2]") || !strings.Contains(out, "[2/2]") {
		t.Errorf("summary counter should advance per terminal event: %q", out)
	}
}

func TestReporterLateEventIsAnomaly(t *testing.T) {
	r, buf := plainReporter("operator")
	feed(r,
		Event{Component: "operator", Stage: StageComplete, Status: StatusSuccess},
		Event{Component: "operator", Stage: StageBuild, Status: StatusRunning},
	)

	if r.Anomalies() != 1 {
		t.Errorf("anomalies = %d, want 1", r.Anomalies())
	}
	// the frozen line must not be reset
	out := buf.String()
	if strings.Count(out, "operator: success") != 1 {
		t.Errorf("terminal line should be rendered exactly once: %q", out)
	}
	if strings.Contains(out, "operator: building image\n") {
		t.Errorf("late stage must not render as progress: %q", out)
	}
}

func TestReporterUnknownComponentIgnored(t *testing.T) {
	r, _ := plainReporter("operator")
	feed(r, Event{Component: "ghost", Stage: StageBuild, Status: StatusRunning})
	if r.Anomalies() != 1 {
		t.Errorf("anomalies = %d, want 1", r.Anomalies())
	}
}

func TestReporterAnimatedRedrawAndTitle(t *testing.T) {
	var buf bytes.Buffer
	r := &Reporter{W: &buf, TTY: true, Color: false, Animate: true}
	r.init([]string{"operator", "operand"})

	feed(r,
		Event{Component: "operator", Stage: StageBuild, Status: StatusRunning},
		Event{Component: "operator", Stage: StageComplete, Status: StatusSuccess},
		Event{Component: "operand", Stage: StageComplete, Status: StatusFailed, Detail: "file not found"},
		// terminal already; must not thaw the frozen line
		Event{Component: "operand", Stage: StageBuild, Status: StatusRunning},
	)

	out := buf.String()
	if !strings.Contains(out, "operator") || !strings.Contains(out, "complete") {
		t.Errorf("success line missing: %q", out)
	}
	if !strings.Contains(out, "failed - file not found") {
		t.Errorf("failure detail missing: %q", out)
	}
	if !strings.Contains(out, "\033]0;kueue-dev: 2/2 components\a") {
		t.Errorf("window title should report 2/2: %q", out)
	}
	if !strings.HasSuffix(out, "\033]0;\a") {
		t.Errorf("title should be cleared on shutdown: %q", out)
	}
	if r.Anomalies() != 1 {
		t.Errorf("anomalies = %d, want 1", r.Anomalies())
	}
	if r.done != 2 {
		t.Errorf("done = %d, want 2", r.done)
	}

	// the late event must not redraw operand back into a running state:
	// nothing renders after the cleared title, and the failed line is the
	// last operand repaint
	if i, j := strings.LastIndex(out, "failed - file not found"), strings.LastIndex(out, "building image..."); j > i {
		t.Errorf("late event repainted a terminal line: %q", out)
	}
}

func TestReporterInterruptedLine(t *testing.T) {
	r, buf := plainReporter("operator")
	feed(r, Event{Component: "operator", Stage: StageComplete, Status: StatusInterrupted, Detail: "interrupted"})
	if !strings.Contains(buf.String(), "operator: interrupted") {
		t.Errorf("interrupted status missing: %q", buf.String())
	}
}
