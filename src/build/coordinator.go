package build

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// BuildFunc builds one component. It emits stage events as it advances and
// returns nil only when every step succeeded.
type BuildFunc func(ctx context.Context, c Component, image string, emit func(Event)) error

// Coordinator fans a component list out to one worker each and fans the
// outcomes back into a single BuildResult. Workers never touch the terminal;
// they only emit events on the channel handed to Run.
type Coordinator struct {
	Build  BuildFunc
	Images map[string]string // component name -> image reference
	// Sequential builds components one at a time in catalog order instead
	// of fanning out. Needed when streaming subprocess output live.
	Sequential bool
}

// NewCoordinator wires a coordinator to a subprocess runner.
func NewCoordinator(r *Runner, images map[string]string) *Coordinator {
	return &Coordinator{Build: r.Run, Images: images}
}

// Run builds all components concurrently and closes events when done.
// It returns an error only for validation failures, before any worker
// starts; per-component failures land in the BuildResult instead.
func (co *Coordinator) Run(ctx context.Context, components []Component, events chan<- Event) (*BuildResult, error) {
	if len(components) == 0 {
		close(events)
		return nil, errors.New("no components to build")
	}

	// Resolve every image reference up front so a missing entry aborts
	// before any subprocess spawns.
	images := make([]string, len(components))
	for i, c := range components {
		img, ok := co.Images[c.Name]
		if !ok {
			close(events)
			return nil, fmt.Errorf("no image entry for component %q", c.Name)
		}
		images[i] = img
	}

	results := make([]Result, len(components))

	if co.Sequential {
		for i, c := range components {
			results[i] = co.buildOne(ctx, c, images[i], events)
		}
	} else {
		var g errgroup.Group
		for i, c := range components {
			i, c := i, c
			g.Go(func() error {
				results[i] = co.buildOne(ctx, c, images[i], events)
				return nil
			})
		}
		g.Wait()
	}
	close(events)

	return &BuildResult{Results: results}, nil
}

// buildOne runs a single worker to its terminal state. A sibling's failure
// never cancels it; only context cancellation (user interrupt) does.
func (co *Coordinator) buildOne(ctx context.Context, c Component, image string, events chan<- Event) Result {
	start := time.Now()

	res := Result{Component: c.Name}
	err := co.Build(ctx, c, image, func(e Event) { events <- e })
	res.Duration = time.Since(start)

	switch {
	case err == nil && ctx.Err() != nil:
		// The context died after the last step finished; the work is done,
		// keep it as a success.
		res.Status = StatusSuccess
	case err == nil:
		res.Status = StatusSuccess
	case ctx.Err() != nil:
		res.Status = StatusInterrupted
		res.Detail = "interrupted"
	default:
		res.Status = StatusFailed
		res.Detail = failureDetail(err)
	}

	events <- Event{
		Component: c.Name,
		Stage:     StageComplete,
		Status:    res.Status,
		Detail:    res.Detail,
		Time:      time.Now(),
	}
	return res
}

func failureDetail(err error) string {
	var step *StepError
	if errors.As(err, &step) {
		if step.Output != "" {
			return fmt.Sprintf("%s\n%s", step.Error(), step.Output)
		}
		return step.Error()
	}
	return err.Error()
}
