package launcher

import "sync/atomic"

// State is the lifecycle of a launcher
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

type stateHolder struct {
	v atomic.Int32
}

func (h *stateHolder) load() State   { return State(h.v.Load()) }
func (h *stateHolder) store(s State) { h.v.Store(int32(s)) }
