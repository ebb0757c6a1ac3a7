package build

import (
	"fmt"
	"strings"
	"time"
)

// Result is the terminal outcome of one component.
type Result struct {
	Component string
	Status    Status
	Detail    string
	Duration  time.Duration
}

// BuildResult aggregates per-component outcomes in input order. It is
// assembled once all workers have finished and is immutable afterwards.
type BuildResult struct {
	Results []Result
}

// OK reports whether every component succeeded.
func (br *BuildResult) OK() bool {
	for _, r := range br.Results {
		if r.Status != StatusSuccess {
			return false
		}
	}
	return true
}

// Failed returns the components that did not succeed.
func (br *BuildResult) Failed() []Result {
	var out []Result
	for _, r := range br.Results {
		if r.Status != StatusSuccess {
			out = append(out, r)
		}
	}
	return out
}

// Err returns an aggregate error naming every failed component, or nil.
func (br *BuildResult) Err() error {
	failed := br.Failed()
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		if r.Detail != "" {
			parts = append(parts, fmt.Sprintf("%s (%s: %s)", r.Component, r.Status, r.Detail))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%s)", r.Component, r.Status))
		}
	}
	return fmt.Errorf("build failed for %s", strings.Join(parts, ", "))
}
