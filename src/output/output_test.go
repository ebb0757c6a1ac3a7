package output

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoggerPlainTags(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Writer: &buf, Color: false, Verbosity: 0}

	l.Info("building %s", "operator")
	l.Warn("slow")
	l.Error("boom")
	l.Success("done")
	l.Debug("hidden at verbosity 0")

	out := buf.String()
	for _, want := range []string{"[INFO] building operator", "[WARN] slow", "[ERROR] boom", "[OK] done"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[DEBUG]") {
		t.Error("debug should be suppressed at verbosity 0")
	}
}

func TestLoggerDebugVerbosity(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{Writer: &buf, Color: false, Verbosity: 2}
	l.Debug("visible")
	if !strings.Contains(buf.String(), "[DEBUG] visible") {
		t.Errorf("debug missing: %q", buf.String())
	}
}

func TestStatusIconPlain(t *testing.T) {
	cases := map[string]string{
		"success":     "✓",
		"failed":      "✗",
		"interrupted": "⊘",
	}
	for status, want := range cases {
		if got := StatusIcon(status, false); got != want {
			t.Errorf("StatusIcon(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestSectionFrame(t *testing.T) {
	var buf bytes.Buffer
	s := NewSection(&buf, "Build", 0, false)
	s.Row("operator %s", "✓")
	s.Separator()
	s.Close()

	out := buf.String()
	if !strings.Contains(out, "── Build ") {
		t.Errorf("header missing: %q", out)
	}
	if !strings.Contains(out, "│ operator ✓") {
		t.Errorf("row missing: %q", out)
	}
	if !strings.Contains(out, "└") || !strings.Contains(out, "├") {
		t.Errorf("frame missing: %q", out)
	}
}

func TestContextBlockPairsColumns(t *testing.T) {
	var buf bytes.Buffer
	ContextBlock(&buf, []KV{
		{Key: "runtime", Value: "docker"},
		{Key: "mode", Value: "parallel"},
		{Key: "components", Value: "4"},
	})

	out := buf.String()
	if !strings.Contains(out, "runtime") || !strings.Contains(out, "mode") {
		t.Errorf("first pair row missing: %q", out)
	}
	// odd tail gets its own single-column line
	if !strings.Contains(out, "components") {
		t.Errorf("trailing pair missing: %q", out)
	}
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Errorf("3 KVs should render as blank line + 2 rows, got %d lines: %q", lines, out)
	}

	buf.Reset()
	ContextBlock(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("empty block should print nothing: %q", buf.String())
	}
}

func TestSummaryRowsAndTotal(t *testing.T) {
	var buf bytes.Buffer
	SummaryRow(&buf, "operator", "success", "12.3s", false)
	SummaryRow(&buf, "bundle", "failed", "1.2s", false)
	SummaryTotal(&buf, 90*time.Second, "failed", false)

	out := buf.String()
	if !strings.Contains(out, "operator") || !strings.Contains(out, "✓") {
		t.Errorf("success row missing: %q", out)
	}
	if !strings.Contains(out, "bundle") || !strings.Contains(out, "✗") {
		t.Errorf("failure row missing: %q", out)
	}
	if !strings.Contains(out, "total") || !strings.Contains(out, "1m30.0s") {
		t.Errorf("total line missing: %q", out)
	}
}

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Microsecond, "<1ms"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30.0s"},
	}
	for _, c := range cases {
		if got := formatElapsed(c.d); got != c.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
