package poller

import (
	"time"

	"ore-boost-cli/config"
)

// WindowState is the stake window at one instant.
type WindowState struct {
	Open bool `json:"open"`
	// ClosesIn is set while the window is open, OpensIn while it is closed.
	ClosesIn time.Duration `json:"closesIn,omitempty"`
	OpensIn  time.Duration `json:"opensIn,omitempty"`
	At       time.Time     `json:"at"`
}

// WindowAt places now in the recurring window w. Cycles are aligned to the
// zero time, so an hourly cycle starts on the hour in UTC.
func WindowAt(w config.Window, now time.Time) WindowState {
	state := WindowState{At: now}
	if w.Cycle <= 0 || w.Active <= 0 {
		return state
	}
	if w.Active >= w.Cycle {
		state.Open = true
		return state
	}

	offset := now.Sub(now.Truncate(w.Cycle))
	if offset < w.Active {
		state.Open = true
		state.ClosesIn = w.Active - offset
		return state
	}
	state.OpensIn = w.Cycle - offset
	return state
}
