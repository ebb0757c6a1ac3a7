package output

import (
	"fmt"
	"os"
	"time"

	sp "github.com/briandowns/spinner"
	"golang.org/x/term"
)

// DisableSpinnerEnv disables animated spinners when set.
const DisableSpinnerEnv = "KUEUE_DEV_DISABLE_SPINNER"

// Spinner shows progress for one long-running step. On a TTY it animates;
// otherwise it degrades to plain start/finish lines so logs stay readable.
type Spinner struct {
	sp      *sp.Spinner
	message string
	color   bool
	tty     bool
}

// NewSpinner creates a spinner with the given message. It does not start.
func NewSpinner(message string) *Spinner {
	s := &Spinner{
		message: message,
		color:   UseColor(),
		tty:     spinnerSupported(),
	}
	if s.tty {
		s.sp = sp.New(sp.CharSets[14], 100*time.Millisecond, sp.WithHiddenCursor(true))
		s.sp.Writer = os.Stderr
		s.sp.PreUpdate = func(spin *sp.Spinner) {
			spin.Suffix = " " + trimToWidth(s.message)
		}
	}
	return s
}

func spinnerSupported() bool {
	if os.Getenv(DisableSpinnerEnv) != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// trimToWidth shortens msg so the spinner line fits the terminal.
func trimToWidth(msg string) string {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 4 {
		return msg
	}
	if len(msg)+2 <= width {
		return msg
	}
	return msg[:width-5] + "..."
}

// Start begins the animation, or prints the message on non-TTY output.
func (s *Spinner) Start() {
	if s.tty {
		s.sp.Suffix = " " + s.message
		s.sp.Start()
		return
	}
	fmt.Fprintf(os.Stderr, "%s...\n", s.message)
}

// Update changes the message while the spinner runs.
func (s *Spinner) Update(message string) {
	s.message = message
	if s.tty {
		s.sp.Lock()
		s.sp.Suffix = " " + message
		s.sp.Unlock()
		return
	}
	fmt.Fprintf(os.Stderr, "%s...\n", message)
}

// Success stops the spinner and prints a final check mark line.
func (s *Spinner) Success(message string) {
	s.stop()
	fmt.Fprintf(os.Stderr, "%s %s\n", StatusIcon("success", s.color), message)
}

// Fail stops the spinner and prints a final failure line.
func (s *Spinner) Fail(message string) {
	s.stop()
	fmt.Fprintf(os.Stderr, "%s %s\n", StatusIcon("failed", s.color), message)
}

// Stop halts the animation without printing a final line.
func (s *Spinner) Stop() {
	s.stop()
}

func (s *Spinner) stop() {
	if s.tty && s.sp.Active() {
		s.sp.Stop()
	}
}
