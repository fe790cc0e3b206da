package motion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_hexapod/internal/gait"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const queueSize = 8

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrNotRunning     = errors.New("controller not running")
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "motion",
})

type State int

const (
	Idle State = iota
	Standing
	Walking
	Rotating
	Sitting
	EmergencyStop
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Standing:
		return "standing"
	case Walking:
		return "walking"
	case Rotating:
		return "rotating"
	case Sitting:
		return "sitting"
	case EmergencyStop:
		return "emergency_stop"
	default:
		return "unknown"
	}
}

type InvalidCommandError struct {
	Action Action
	State  State
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Action, e.State)
}

func (e *InvalidCommandError) Unwrap() error {
	return ErrInvalidCommand
}

// Outputs is the part of the driver registry the controller needs.
type Outputs interface {
	ZeroAll() error
	Arm() error
	Halted() bool
}

type Status struct {
	State  State
	Halted bool
	Gait   gait.Snapshot
}

type request struct {
	cmd   Command
	reply chan error
}

// Controller owns the motion state machine. Commands other than emergency stop
// are handled one at a time from a queue.
type Controller struct {
	outputs   Outputs
	catalog   *gait.Catalog
	sequencer *gait.Sequencer
	intent    *gait.Intent

	queue    chan request
	finished chan gait.Result
	stopped  chan struct{}

	lock     sync.Mutex
	state    State
	runID    uuid.UUID
	estops   int
	onStatus []func(Status)
}

func NewController(outputs Outputs, catalog *gait.Catalog, sequencer *gait.Sequencer) *Controller {
	return &Controller{
		outputs:   outputs,
		catalog:   catalog,
		sequencer: sequencer,
		intent:    gait.NewIntent(),
		queue:     make(chan request, queueSize),
		finished:  make(chan gait.Result, queueSize),
		stopped:   make(chan struct{}),
	}
}

// OnStatus registers a hook called after every state change. Register before Start.
func (c *Controller) OnStatus(f func(Status)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.onStatus = append(c.onStatus, f)
}

// Start consumes the command queue until ctx is done, then aborts any running
// gait and zeroes the outputs.
func (c *Controller) Start(ctx context.Context) error {
	log.Info("motion controller started")
	defer close(c.stopped)

	for {
		select {
		case <-ctx.Done():
			log.Info("motion controller stopping")
			c.shutdown()
			return ctx.Err()
		case req := <-c.queue:
			req.reply <- c.handle(ctx, req.cmd)
		case result := <-c.finished:
			c.complete(result)
		}
	}
}

// Pending is the result of a queued command.
type Pending struct {
	reply   chan error
	stopped <-chan struct{}
}

// Resolved is a Pending that already holds err.
func Resolved(err error) *Pending {
	reply := make(chan error, 1)
	reply <- err
	return &Pending{reply: reply}
}

// Wait blocks until the controller has handled the command.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case err := <-p.reply:
		return err
	default:
	}

	select {
	case err := <-p.reply:
		return err
	case <-p.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues cmd in the caller's goroutine, so commands submitted one after
// another are handled in that order. Emergency stop runs before Submit returns.
func (c *Controller) Submit(ctx context.Context, cmd Command) (*Pending, error) {
	if cmd.Action == ActionEmergencyStop {
		return Resolved(c.EmergencyStop()), nil
	}

	err := cmd.Validate()
	if err != nil {
		return nil, err
	}

	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case c.queue <- req:
	case <-c.stopped:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Pending{reply: req.reply, stopped: c.stopped}, nil
}

// Execute submits one command and waits for its result.
func (c *Controller) Execute(ctx context.Context, cmd Command) error {
	pending, err := c.Submit(ctx, cmd)
	if err != nil {
		return err
	}
	return pending.Wait(ctx)
}

func (c *Controller) Stand(ctx context.Context) error {
	return c.Execute(ctx, Command{Action: ActionStand})
}

func (c *Controller) Sit(ctx context.Context) error {
	return c.Execute(ctx, Command{Action: ActionSit})
}

func (c *Controller) WalkForward(ctx context.Context, cycles int) error {
	return c.Execute(ctx, Command{Action: ActionWalk, Direction: Forward, Cycles: cycles})
}

func (c *Controller) WalkBackward(ctx context.Context, cycles int) error {
	return c.Execute(ctx, Command{Action: ActionWalk, Direction: Backward, Cycles: cycles})
}

func (c *Controller) Rotate(ctx context.Context, direction Direction, cycles int) error {
	return c.Execute(ctx, Command{Action: ActionRotate, Direction: direction, Cycles: cycles})
}

func (c *Controller) Stop(ctx context.Context) error {
	return c.Execute(ctx, Command{Action: ActionStop})
}

// EmergencyStop zeroes every channel right away and abandons the running gait
// without a safe stop pose. Only a stand command leaves this state.
func (c *Controller) EmergencyStop() error {
	c.lock.Lock()
	err := c.outputs.ZeroAll()
	c.intent.Abort()
	c.estops++
	c.runID = uuid.Nil
	c.state = EmergencyStop
	status := c.statusLocked()
	hooks := c.onStatus
	c.lock.Unlock()

	log.Warn("emergency stop")
	notify(hooks, status)
	if err != nil {
		return fmt.Errorf("emergency stop zero all: %w", err)
	}
	return nil
}

func (c *Controller) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.state
}

func (c *Controller) Status() Status {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:  c.state,
		Halted: c.outputs.Halted(),
		Gait:   c.intent.Snapshot(),
	}
}

func (c *Controller) handle(ctx context.Context, cmd Command) error {
	c.lock.Lock()
	from := c.state
	epoch := c.estops
	c.lock.Unlock()

	if !allowed(cmd.Action, from) {
		log.Warnf("rejected %s while %s", cmd.Action, from)
		return &InvalidCommandError{Action: cmd.Action, State: from}
	}

	if cmd.Action == ActionStop && from == EmergencyStop {
		return nil
	}

	c.intent.Cancel()
	err := c.intent.Wait(ctx)
	if err != nil {
		return err
	}

	c.lock.Lock()
	if c.estops != epoch {
		state := c.state
		c.lock.Unlock()
		return &InvalidCommandError{Action: cmd.Action, State: state}
	}

	var next State
	var pattern *gait.Pattern
	switch cmd.Action {
	case ActionStop:
		next = c.state
		if next == Walking || next == Rotating {
			next = Standing
		}
	case ActionStand:
		err = c.outputs.Arm()
		if err != nil {
			c.lock.Unlock()
			return fmt.Errorf("failed arming outputs: %w", err)
		}
		next = Standing
		pattern, err = c.catalog.Pattern(gait.Stand)
	case ActionSit:
		next = Sitting
		pattern, err = c.catalog.Pattern(gait.Sit)
	case ActionWalk:
		next = Walking
		pattern = c.catalog.Walk(cmd.Direction == Backward)
	case ActionRotate:
		next = Rotating
		pattern = c.catalog.Rotate(cmd.Direction == Left)
	}
	if err != nil {
		c.lock.Unlock()
		return err
	}

	c.runID = uuid.Nil
	if pattern != nil {
		c.runID, err = c.sequencer.Start(ctx, pattern, c.intent, cmd.Cycles, c.onFinished)
		if err != nil {
			c.lock.Unlock()
			return err
		}
	}

	if next != from {
		log.Infof("%s -> %s", from, next)
	}
	c.state = next
	status := c.statusLocked()
	hooks := c.onStatus
	c.lock.Unlock()

	notify(hooks, status)
	return nil
}

func (c *Controller) onFinished(result gait.Result) {
	select {
	case c.finished <- result:
	case <-c.stopped:
	}
}

// complete moves a walk or rotate that ran out of cycles back to Standing.
func (c *Controller) complete(result gait.Result) {
	c.lock.Lock()
	if result.RunID != c.runID || result.Outcome != gait.Completed {
		c.lock.Unlock()
		return
	}

	c.runID = uuid.Nil
	if c.state == Walking || c.state == Rotating {
		log.Infof("%s finished, %s -> %s", result.Pattern, c.state, Standing)
		c.state = Standing
	}
	status := c.statusLocked()
	hooks := c.onStatus
	c.lock.Unlock()

	notify(hooks, status)
}

func (c *Controller) shutdown() {
	c.intent.Abort()
	err := c.outputs.ZeroAll()
	if err != nil {
		log.Errorf("failed zeroing outputs on shutdown: %s", err)
	}
}

func notify(hooks []func(Status), status Status) {
	for _, hook := range hooks {
		hook(status)
	}
}

func allowed(action Action, from State) bool {
	switch action {
	case ActionStand, ActionStop:
		return true
	case ActionSit:
		return from != EmergencyStop
	case ActionWalk, ActionRotate:
		return from == Standing || from == Walking || from == Rotating
	default:
		return false
	}
}
