package build

import "time"

// Stage is one discrete step in a component's build sequence.
type Stage int

const (
	StageLocate Stage = iota
	StageBuild
	StagePush
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageLocate:
		return "locating build file"
	case StageBuild:
		return "building image"
	case StagePush:
		return "pushing image"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Status is a component's lifecycle state.
type Status int

const (
	StatusRunning Status = iota
	StatusSuccess
	StatusFailed
	StatusInterrupted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// Event is an immutable stage-change record emitted by a worker and consumed
// only by the reporter. Events from one component arrive in stage order;
// across components no ordering holds.
type Event struct {
	Component string
	Stage     Stage
	Status    Status
	Detail    string
	Time      time.Time
}
