package gait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/command"
	"github.com/Speshl/gorrc_hexapod/internal/legs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrAlreadyRunning = errors.New("gait already running")

var log = logrus.WithFields(logrus.Fields{
	"pkg": "gait",
})

// Body is what the sequencer drives.
type Body interface {
	ApplyPoses(poses [legs.Count]legs.Pose) error
}

type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "aborted"
	}
}

type Result struct {
	RunID   uuid.UUID
	Pattern Kind
	Outcome Outcome
	Phases  int
}

type PhaseEvent struct {
	RunID   uuid.UUID
	Pattern Kind
	Phase   int
	Cycle   int
	Name    string
}

type Sequencer struct {
	body    Body
	onPhase func(PhaseEvent)
}

func NewSequencer(body Body) *Sequencer {
	return &Sequencer{body: body}
}

// OnPhase registers a hook called after each phase is written, before its hold.
// Set it before the first Start.
func (s *Sequencer) OnPhase(f func(PhaseEvent)) {
	s.onPhase = f
}

// Start runs pattern on its own goroutine. cycles <= 0 repeats a cyclic
// pattern until cancelled. onDone is called after the intent is back to Idle.
func (s *Sequencer) Start(ctx context.Context, pattern *Pattern, intent *Intent, cycles int, onDone func(Result)) (uuid.UUID, error) {
	runID, ok := intent.begin(pattern)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, intent.State())
	}

	log.Infof("starting %s run %s", pattern.Kind, runID)
	go func() {
		result := s.run(ctx, pattern, intent, runID, cycles)
		intent.release()
		log.Infof("%s run %s %s after %d phases", pattern.Kind, runID, result.Outcome, result.Phases)
		if onDone != nil {
			onDone(result)
		}
	}()
	return runID, nil
}

func (s *Sequencer) run(ctx context.Context, pattern *Pattern, intent *Intent, runID uuid.UUID, cycles int) Result {
	result := Result{RunID: runID, Pattern: pattern.Kind}

	for cycle := 0; ; cycle++ {
		for index, phase := range pattern.Phases {
			if intent.Cancelled() {
				result.Outcome = s.cancel(pattern, intent)
				return result
			}

			intent.setPhase(index, cycle)
			err := s.body.ApplyPoses(phase.Poses)
			if errors.Is(err, command.ErrHalted) {
				log.Warnf("%s phase %s dropped, outputs halted", pattern.Kind, phase.Name)
				result.Outcome = Aborted
				return result
			} else if err != nil {
				log.Warnf("%s phase %s degraded: %s", pattern.Kind, phase.Name, err)
			}
			result.Phases++

			if s.onPhase != nil {
				s.onPhase(PhaseEvent{RunID: runID, Pattern: pattern.Kind, Phase: index, Cycle: cycle, Name: phase.Name})
			}

			if !hold(ctx, phase.Hold) {
				log.Warnf("%s run %s interrupted by shutdown", pattern.Kind, runID)
				result.Outcome = Aborted
				return result
			}
			intent.phaseDone(time.Now())
		}

		if !pattern.Cyclic || (cycles > 0 && cycle+1 >= cycles) {
			break
		}
	}

	if intent.Cancelled() {
		result.Outcome = s.cancel(pattern, intent)
		return result
	}

	intent.setState(Completing)
	if pattern.Cyclic {
		err := s.body.ApplyPoses(pattern.SafeStop)
		if err != nil {
			log.Warnf("%s settle degraded: %s", pattern.Kind, err)
		}
	}
	result.Outcome = Completed
	return result
}

func (s *Sequencer) cancel(pattern *Pattern, intent *Intent) Outcome {
	intent.setState(Cancelling)
	if intent.abort.Load() {
		return Aborted
	}

	err := s.body.ApplyPoses(pattern.SafeStop)
	if errors.Is(err, command.ErrHalted) {
		return Aborted
	} else if err != nil {
		log.Warnf("%s safe stop degraded: %s", pattern.Kind, err)
	}
	return Cancelled
}

// hold sleeps for the phase settle time. Cancellation is only looked at after
// it returns, ctx is for process shutdown.
func hold(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
