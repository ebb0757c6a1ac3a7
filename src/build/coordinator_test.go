package build

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain consumes events in the background, as the reporter would.
func drain(events <-chan Event) *[]Event {
	var mu sync.Mutex
	collected := &[]Event{}
	go func() {
		for e := range events {
			mu.Lock()
			*collected = append(*collected, e)
			mu.Unlock()
		}
	}()
	return collected
}

func mustResolve(t *testing.T, names ...string) []Component {
	t.Helper()

	components, err := Resolve(names)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return components
}

func TestCoordinatorAllSucceed(t *testing.T) {
	co := &Coordinator{
		Build: func(ctx context.Context, c Component, image string, emit func(Event)) error {
			emit(Event{Component: c.Name, Stage: StageBuild, Status: StatusRunning})
			return nil
		},
		Images: map[string]string{"operator": "img-a", "operand": "img-b"},
	}

	events := make(chan Event, 64)
	drain(events)

	br, err := co.Run(context.Background(), mustResolve(t, "operator", "operand"), events)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(br.Results) != 2 {
		t.Fatalf("results = %d, want exactly one entry per component", len(br.Results))
	}
	if !br.OK() {
		t.Errorf("OK() = false for all-success run: %+v", br.Results)
	}
	if br.Err() != nil {
		t.Errorf("Err() = %v, want nil", br.Err())
	}
}

func TestCoordinatorSiblingFailureIsolated(t *testing.T) {
	co := &Coordinator{
		Build: func(ctx context.Context, c Component, image string, emit func(Event)) error {
			if c.Name == "operand" {
				return &StepError{Step: StageLocate, Err: errors.New("file not found: Dockerfile.kueue")}
			}
			return nil
		},
		Images: map[string]string{"operator": "img-a", "operand": "img-b"},
	}

	events := make(chan Event, 64)
	drain(events)

	br, err := co.Run(context.Background(), mustResolve(t, "operator", "operand"), events)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	byName := map[string]Result{}
	for _, r := range br.Results {
		byName[r.Component] = r
	}
	if byName["operator"].Status != StatusSuccess {
		t.Errorf("operator should be unaffected: %+v", byName["operator"])
	}
	if byName["operand"].Status != StatusFailed {
		t.Errorf("operand should fail: %+v", byName["operand"])
	}
	if !strings.Contains(byName["operand"].Detail, "file not found") {
		t.Errorf("failure detail missing: %q", byName["operand"].Detail)
	}
	if br.OK() {
		t.Error("OK() must be false when any component failed")
	}
	if err := br.Err(); err == nil || !strings.Contains(err.Error(), "operand") {
		t.Errorf("aggregate error should name operand: %v", err)
	}
}

func TestCoordinatorValidatesImagesBeforeSpawning(t *testing.T) {
	spawned := false
	co := &Coordinator{
		Build: func(ctx context.Context, c Component, image string, emit func(Event)) error {
			spawned = true
			return nil
		},
		Images: map[string]string{"operator": "img-a"},
	}

	events := make(chan Event, 64)
	_, err := co.Run(context.Background(), mustResolve(t, "operator", "operand"), events)
	if err == nil {
		t.Fatal("expected validation error for missing image entry")
	}
	if !strings.Contains(err.Error(), "operand") {
		t.Errorf("error should name the component: %v", err)
	}
	if spawned {
		t.Error("no worker may start after a validation failure")
	}
	if _, open := <-events; open {
		t.Error("events channel should be closed")
	}
}

func TestCoordinatorInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{}, 2)
	co := &Coordinator{
		Build: func(ctx context.Context, c Component, image string, emit func(Event)) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		},
		Images: map[string]string{"operator": "img-a", "operand": "img-b"},
	}

	events := make(chan Event, 64)
	drain(events)

	go func() {
		<-started
		<-started
		cancel()
	}()

	br, err := co.Run(ctx, mustResolve(t, "operator", "operand"), events)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, r := range br.Results {
		if r.Status != StatusInterrupted {
			t.Errorf("%s status = %v, want interrupted", r.Component, r.Status)
		}
	}
	if br.OK() {
		t.Error("interrupted run must not report success")
	}
}

func TestCoordinatorEmitsTerminalEventPerComponent(t *testing.T) {
	co := &Coordinator{
		Build: func(ctx context.Context, c Component, image string, emit func(Event)) error {
			emit(Event{Component: c.Name, Stage: StageBuild, Status: StatusRunning, Time: time.Now()})
			return nil
		},
		Images: map[string]string{"operator": "img-a", "operand": "img-b"},
	}

	events := make(chan Event, 64)
	var all []Event
	done := make(chan struct{})
	go func() {
		for e := range events {
			all = append(all, e)
		}
		close(done)
	}()

	if _, err := co.Run(context.Background(), mustResolve(t, "operator", "operand"), events); err != nil {
		t.Fatalf("run: %v", err)
	}
	<-done

	terminal := map[string]int{}
	for _, e := range all {
		if e.Status.Terminal() {
			terminal[e.Component]++
		}
	}
	for _, name := range []string{"operator", "operand"} {
		if terminal[name] != 1 {
			t.Errorf("%s terminal events = %d, want exactly 1", name, terminal[name])
		}
	}
}
