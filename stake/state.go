package stake

import (
	"fmt"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"ore-boost-cli/instruction"
	"ore-boost-cli/metrics"
)

// State is a step of the per-operation state machine.
type State int

const (
	Idle State = iota
	Validating
	Deriving
	Resolving
	Encoding
	Submitting
	Confirming
	Done
	Failed
)

var stateNames = [...]string{"idle", "validating", "deriving", "resolving", "encoding", "submitting", "confirming", "done", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// Transition is reported to the Observer on every state change. Err is set
// on the move to Failed.
type Transition struct {
	Op   instruction.OperationKind
	From State
	To   State
	Err  error
}

// Observer receives transitions. Claims run mints concurrently, so it must be
// safe for concurrent use.
type Observer func(Transition)

var (
	metricOperations     = metrics.LazyLoadCounterVec("operations_total", []string{"kind", "version", "outcome"})
	metricConfirmLatency = metrics.LazyLoadHistogramVec("confirm_latency_ms", []string{"kind"}, metrics.BucketConfirmMillis)
)

type run struct {
	op       instruction.OperationKind
	version  instruction.ProgramVersion
	state    State
	observer Observer
	sentAt   time.Time
}

func (r *run) to(next State) {
	r.transition(next, nil)
}

func (r *run) transition(next State, err error) {
	prev := r.state
	r.state = next
	klog.V(3).Infof("%s: %s -> %s", r.op, prev, next)
	if r.observer != nil {
		r.observer(Transition{Op: r.op, From: prev, To: next, Err: err})
	}
}

// fail classifies err against the current state and moves to Failed.
func (r *run) fail(err error) *OperationError {
	opErr, ok := err.(*OperationError)
	if !ok {
		opErr = &OperationError{Kind: classifyAt(err, r.state), Op: r.op, State: r.state, Err: err}
	}
	r.transition(Failed, opErr)
	metricOperations().AddWithLabel(1, map[string]string{
		"kind":    r.op.String(),
		"version": r.version.String(),
		"outcome": strings.ReplaceAll(opErr.Kind.String(), " ", "_"),
	})
	return opErr
}

func (r *run) done(noop bool) {
	r.to(Done)
	outcome := "confirmed"
	if noop {
		outcome = "noop"
	}
	metricOperations().AddWithLabel(1, map[string]string{
		"kind":    r.op.String(),
		"version": r.version.String(),
		"outcome": outcome,
	})
}
