package driver

import "context"

// Stage is a step of lowering one unit.
type Stage uint8

const (
	StageQueued Stage = iota
	StageLoad
	StageLayout
	StageLower
	StageEmit
)

func (s Stage) String() string {
	switch s {
	case StageQueued:
		return "queued"
	case StageLoad:
		return "load"
	case StageLayout:
		return "layout"
	case StageLower:
		return "lower"
	case StageEmit:
		return "emit"
	}
	return "stage?"
}

// Status reports where a unit is within its stage.
type Status uint8

const (
	StatusQueued Status = iota
	StatusWorking
	StatusDone
	StatusCached
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusWorking:
		return "working"
	case StatusDone:
		return "done"
	case StatusCached:
		return "cached"
	case StatusError:
		return "error"
	}
	return "status?"
}

// Final reports whether no further events follow for the unit.
func (s Status) Final() bool {
	return s == StatusDone || s == StatusCached || s == StatusError
}

// Event is a progress notification for one unit.
type Event struct {
	Path   string
	Stage  Stage
	Status Status
	Items  int
}

// progress forwards events to an optional channel. A cancelled context
// stops delivery instead of blocking the worker.
type progress struct {
	ctx context.Context
	ch  chan<- Event
}

func (p progress) send(ev Event) {
	if p.ch == nil {
		return
	}
	select {
	case p.ch <- ev:
	case <-p.ctx.Done():
	}
}
