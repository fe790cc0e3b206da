package gait

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type State int32

const (
	Idle State = iota
	Running
	Completing
	Cancelling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completing:
		return "completing"
	case Cancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// Intent is the live motion state. The controller owns it and a sequencer
// borrows it for one run. Only the cancel and abort flags are written from
// outside the run.
type Intent struct {
	state  atomic.Int32
	cancel atomic.Bool
	abort  atomic.Bool

	lock      sync.Mutex
	pattern   *Pattern
	phase     int
	cycle     int
	lastPhase time.Time
	runID     uuid.UUID
	done      chan struct{}
}

type Snapshot struct {
	State     State
	Pattern   string
	Phase     int
	Cycle     int
	LastPhase time.Time
	RunID     uuid.UUID
}

func NewIntent() *Intent {
	done := make(chan struct{})
	close(done)
	return &Intent{done: done}
}

func (i *Intent) State() State {
	return State(i.state.Load())
}

// Cancel asks the running pattern to stop at the next phase boundary and
// settle into its safe stop pose.
func (i *Intent) Cancel() {
	i.cancel.Store(true)
}

// Abort stops the run at the next phase boundary without any further writes.
func (i *Intent) Abort() {
	i.abort.Store(true)
	i.cancel.Store(true)
}

func (i *Intent) Cancelled() bool {
	return i.cancel.Load()
}

// Done is closed once the current run has relinquished the intent.
func (i *Intent) Done() <-chan struct{} {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.done
}

func (i *Intent) Wait(ctx context.Context) error {
	select {
	case <-i.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Intent) Snapshot() Snapshot {
	i.lock.Lock()
	defer i.lock.Unlock()

	snapshot := Snapshot{
		State:     i.State(),
		Phase:     i.phase,
		Cycle:     i.cycle,
		LastPhase: i.lastPhase,
		RunID:     i.runID,
	}
	if i.pattern != nil {
		snapshot.Pattern = i.pattern.Kind.String()
	}
	return snapshot
}

func (i *Intent) begin(pattern *Pattern) (uuid.UUID, bool) {
	if !i.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return uuid.Nil, false
	}

	i.lock.Lock()
	defer i.lock.Unlock()
	i.cancel.Store(false)
	i.abort.Store(false)
	i.pattern = pattern
	i.phase = 0
	i.cycle = 0
	i.runID = uuid.New()
	i.done = make(chan struct{})
	return i.runID, true
}

func (i *Intent) setState(state State) {
	i.state.Store(int32(state))
}

func (i *Intent) setPhase(phase, cycle int) {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.phase = phase
	i.cycle = cycle
}

func (i *Intent) phaseDone(at time.Time) {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.lastPhase = at
}

// release hands the intent back: flags reset, pattern cleared, Idle.
func (i *Intent) release() {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.cancel.Store(false)
	i.abort.Store(false)
	i.pattern = nil
	i.phase = 0
	i.cycle = 0
	i.state.Store(int32(Idle))
	close(i.done)
}
