package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openshift-eng/kueue-dev/src/container"
)

// tailLines bounds the diagnostic output surfaced from a failed subprocess.
const tailLines = 20

// StepError reports which build step failed and carries the captured
// subprocess output for diagnostics.
type StepError struct {
	Step   Stage
	Output string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes the build and push sequence for a single component.
type Runner struct {
	Runtime    *container.Runtime
	Source     string // operator source root; also the build context
	ImagesFile string
	Verbosity  int
	Push       bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// NewRunner creates a runner with default output writers.
func NewRunner(rt *container.Runtime, source, imagesFile string) *Runner {
	return &Runner{
		Runtime:    rt,
		Source:     source,
		ImagesFile: imagesFile,
		Push:       true,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// streaming reports whether subprocess output goes to the terminal live.
// Streaming and the animated status line are mutually exclusive.
func (r *Runner) streaming() bool {
	return r.Verbosity >= 2
}

// Run drives one component through locate, build, and push, emitting a stage
// event before each step. The terminal event is the caller's responsibility.
func (r *Runner) Run(ctx context.Context, c Component, image string, emit func(Event)) error {
	emit(Event{Component: c.Name, Stage: StageLocate, Status: StatusRunning, Time: time.Now()})

	dockerfile := filepath.Join(r.Source, c.Dockerfile)
	if _, err := os.Stat(dockerfile); err != nil {
		return &StepError{Step: StageLocate, Err: fmt.Errorf("file not found: %s", dockerfile)}
	}

	emit(Event{Component: c.Name, Stage: StageBuild, Status: StatusRunning, Detail: image, Time: time.Now()})
	if err := r.step(ctx, StageBuild, r.buildArgs(c, dockerfile, image)); err != nil {
		return err
	}

	if r.Push {
		emit(Event{Component: c.Name, Stage: StagePush, Status: StatusRunning, Detail: image, Time: time.Now()})
		if err := r.step(ctx, StagePush, []string{"push", image}); err != nil {
			return err
		}
	}

	return nil
}

// buildArgs assembles the runtime build invocation for one component.
func (r *Runner) buildArgs(c Component, dockerfile, image string) []string {
	args := []string{"build", "-f", dockerfile, "-t", image}

	extra := c.BuildArgs(r.ImagesFile)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, extra[k]))
	}

	args = append(args, r.Source)
	return args
}

// step runs one runtime subprocess. At default verbosity output is captured
// and surfaced only on failure; when streaming, it goes straight through.
func (r *Runner) step(ctx context.Context, stage Stage, args []string) error {
	if r.Verbosity >= 1 {
		fmt.Fprintf(r.Stderr, "exec: %s %s\n", r.Runtime.Name, strings.Join(args, " "))
	}
	if r.Runtime.DryRun {
		fmt.Fprintf(r.Stderr, "dry-run: %s %s\n", r.Runtime.Name, strings.Join(args, " "))
		return nil
	}

	cmd := r.Runtime.Command(ctx, args...)

	var captured bytes.Buffer
	if r.streaming() {
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr
	} else {
		cmd.Stdout = &captured
		cmd.Stderr = &captured
	}

	if err := cmd.Run(); err != nil {
		return &StepError{
			Step:   stage,
			Output: tail(captured.String(), tailLines),
			Err:    err,
		}
	}
	return nil
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
