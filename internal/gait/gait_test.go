package gait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/command"
	"github.com/Speshl/gorrc_hexapod/internal/command/fake"
	"github.com/Speshl/gorrc_hexapod/internal/config"
	"github.com/Speshl/gorrc_hexapod/internal/legs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	registry  *command.Registry
	body      *legs.Body
	catalog   *Catalog
	sequencer *Sequencer
	intent    *Intent
	drivers   []*fake.Driver
}

func newRig(t *testing.T, holdMs int) *rig {
	t.Helper()
	registry := command.NewRegistry(50, 12)
	drivers := []*fake.Driver{fake.NewDriver("pca1"), fake.NewDriver("pca2")}
	for i, driver := range drivers {
		require.NoError(t, registry.AddDriver(i, driver))
	}
	require.NoError(t, registry.Init())

	body, err := legs.NewBody(config.GetLegConfigs(), registry)
	require.NoError(t, err)

	gaitCfg := config.GaitConfig{WalkGait: "tripod", PhaseHoldMs: holdMs, StandHoldMs: holdMs, SitHoldMs: holdMs}
	catalog, err := NewCatalog(config.GetPulseConfig(), gaitCfg)
	require.NoError(t, err)

	return &rig{
		registry:  registry,
		body:      body,
		catalog:   catalog,
		sequencer: NewSequencer(body),
		intent:    NewIntent(),
		drivers:   drivers,
	}
}

func (r *rig) assertPoses(t *testing.T, poses [legs.Count]legs.Pose) {
	t.Helper()
	for i, leg := range r.body.Legs() {
		for _, write := range r.body.Writes(leg, poses[i]) {
			duty, ok := r.registry.Duty(write.Addr)
			require.True(t, ok, "%s never written", write.Addr)
			assert.Equal(t, write.Duty, duty, "%s %s", leg, write.Addr)
		}
	}
}

func waitResult(t *testing.T, results <-chan Result, timeout time.Duration) Result {
	t.Helper()
	select {
	case result := <-results:
		return result
	case <-time.After(timeout):
		require.FailNow(t, "sequencer did not finish")
		return Result{}
	}
}

func TestCatalogAssignsEveryLeg(t *testing.T) {
	r := newRig(t, 10)
	for kind := range kindNames {
		pattern, err := r.catalog.Pattern(kind)
		require.NoError(t, err)

		referenced := make(map[int]bool)
		for _, phase := range pattern.Phases {
			for i, pose := range phase.Poses {
				assert.NotEmpty(t, pose.Name, "%s phase %s leg %d", kind, phase.Name, i+1)
				referenced[i+1] = true
			}
		}
		assert.Len(t, referenced, legs.Count, "%s", kind)
	}
}

func TestTripodGroupsNeverLiftTogether(t *testing.T) {
	r := newRig(t, 10)
	for _, kind := range []Kind{TripodWalk, TripodWalkBackward, RotateLeft, RotateRight} {
		pattern, err := r.catalog.Pattern(kind)
		require.NoError(t, err)
		require.Len(t, pattern.Phases, 6)

		var liftedEver [2]bool
		for _, phase := range pattern.Phases {
			var lifted [2]bool
			for i := range phase.Poses {
				if phase.Lifted[i] {
					lifted[legs.GroupOf(i+1)] = true
					liftedEver[legs.GroupOf(i+1)] = true
				}
			}
			assert.False(t, lifted[legs.GroupA] && lifted[legs.GroupB], "%s phase %s", kind, phase.Name)
		}
		assert.True(t, liftedEver[legs.GroupA] && liftedEver[legs.GroupB], "%s must swing both groups", kind)
	}
}

func TestValidateRejectsBothGroupsLifted(t *testing.T) {
	r := newRig(t, 10)
	pattern := r.catalog.patterns[TripodWalk]
	broken := *pattern
	broken.Phases = append([]Phase(nil), pattern.Phases...)
	broken.Phases[0].Lifted = [legs.Count]bool{true, true, false, false, false, false}
	r.catalog.patterns[TripodWalk] = &broken

	err := r.catalog.Validate()
	assert.True(t, errors.Is(err, config.ErrConfig))
}

func TestWaveLiftsOneLegPerPhase(t *testing.T) {
	r := newRig(t, 10)
	pattern, err := r.catalog.Pattern(WaveWalk)
	require.NoError(t, err)
	require.Len(t, pattern.Phases, legs.Count)

	for k, phase := range pattern.Phases {
		liftedLegs := []int{}
		for i := range phase.Lifted {
			if phase.Lifted[i] {
				liftedLegs = append(liftedLegs, i+1)
			}
		}
		assert.Equal(t, []int{waveOrder[k]}, liftedLegs)
	}
}

func TestRotateSweepsSidesOpposite(t *testing.T) {
	r := newRig(t, 10)
	walk := r.catalog.Walk(false)
	left := r.catalog.Rotate(true)
	right := r.catalog.Rotate(false)

	for phase := range walk.Phases {
		// leg 1 is on the left side, leg 5 on the right
		assert.NotEqual(t, walk.Phases[phase].Poses[0].Coxa, left.Phases[phase].Poses[0].Coxa)
		assert.Equal(t, walk.Phases[phase].Poses[4].Coxa, left.Phases[phase].Poses[4].Coxa)
		assert.Equal(t, walk.Phases[phase].Poses[0].Coxa, right.Phases[phase].Poses[0].Coxa)
		assert.NotEqual(t, walk.Phases[phase].Poses[4].Coxa, right.Phases[phase].Poses[4].Coxa)
	}
}

func TestUnknownWalkGait(t *testing.T) {
	_, err := NewCatalog(config.GetPulseConfig(), config.GaitConfig{WalkGait: "ripple", PhaseHoldMs: 10})
	assert.True(t, errors.Is(err, config.ErrConfig))
}

func TestWaveWalkSelection(t *testing.T) {
	catalog, err := NewCatalog(config.GetPulseConfig(), config.GaitConfig{WalkGait: "wave", PhaseHoldMs: 10})
	require.NoError(t, err)
	assert.Equal(t, WaveWalk, catalog.Walk(false).Kind)
	assert.Equal(t, TripodWalkBackward, catalog.Walk(true).Kind)
}

func TestCancelAfterPhaseTwo(t *testing.T) {
	hold := 250 * time.Millisecond
	r := newRig(t, int(hold/time.Millisecond))

	cancelledAt := make(chan time.Time, 1)
	r.sequencer.OnPhase(func(event PhaseEvent) {
		if event.Phase == 2 && event.Cycle == 0 {
			r.intent.Cancel()
			cancelledAt <- time.Now()
		}
	})

	results := make(chan Result, 1)
	pattern := r.catalog.Walk(false)
	_, err := r.sequencer.Start(context.Background(), pattern, r.intent, 0, func(result Result) {
		results <- result
	})
	require.NoError(t, err)

	result := waitResult(t, results, 5*time.Second)
	elapsed := time.Since(<-cancelledAt)

	assert.Equal(t, Cancelled, result.Outcome)
	assert.Equal(t, 3, result.Phases)
	assert.LessOrEqual(t, elapsed, hold+100*time.Millisecond)
	assert.Equal(t, Idle, r.intent.State())
	assert.False(t, r.intent.Cancelled())
	assert.Empty(t, r.intent.Snapshot().Pattern)
	r.assertPoses(t, pattern.SafeStop)
}

func TestStartWhileRunning(t *testing.T) {
	r := newRig(t, 20)
	results := make(chan Result, 1)
	pattern := r.catalog.Walk(false)

	_, err := r.sequencer.Start(context.Background(), pattern, r.intent, 0, func(result Result) {
		results <- result
	})
	require.NoError(t, err)

	_, err = r.sequencer.Start(context.Background(), r.catalog.Rotate(true), r.intent, 0, nil)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	r.intent.Cancel()
	result := waitResult(t, results, 2*time.Second)
	assert.Equal(t, Cancelled, result.Outcome)
	assert.Equal(t, TripodWalk, result.Pattern)
}

func TestFiniteCyclesSettle(t *testing.T) {
	r := newRig(t, 5)
	results := make(chan Result, 1)
	pattern := r.catalog.Walk(false)

	_, err := r.sequencer.Start(context.Background(), pattern, r.intent, 2, func(result Result) {
		results <- result
	})
	require.NoError(t, err)

	result := waitResult(t, results, 2*time.Second)
	assert.Equal(t, Completed, result.Outcome)
	assert.Equal(t, 12, result.Phases)
	r.assertPoses(t, pattern.SafeStop)
}

func TestFinitePatternRunsOnce(t *testing.T) {
	r := newRig(t, 5)
	results := make(chan Result, 1)
	pattern, err := r.catalog.Pattern(Sit)
	require.NoError(t, err)

	_, err = r.sequencer.Start(context.Background(), pattern, r.intent, 0, func(result Result) {
		results <- result
	})
	require.NoError(t, err)

	result := waitResult(t, results, 2*time.Second)
	assert.Equal(t, Completed, result.Outcome)
	assert.Equal(t, 2, result.Phases)
	r.assertPoses(t, pattern.Phases[1].Poses)
}

func TestAbortSkipsSafeStop(t *testing.T) {
	r := newRig(t, 20)
	pattern := r.catalog.Walk(false)

	r.sequencer.OnPhase(func(event PhaseEvent) {
		if event.Phase == 1 {
			r.intent.Abort()
		}
	})

	results := make(chan Result, 1)
	_, err := r.sequencer.Start(context.Background(), pattern, r.intent, 0, func(result Result) {
		results <- result
	})
	require.NoError(t, err)

	result := waitResult(t, results, 2*time.Second)
	assert.Equal(t, Aborted, result.Outcome)
	r.assertPoses(t, pattern.Phases[1].Poses)
}

func TestZeroAllStopsSequencer(t *testing.T) {
	r := newRig(t, 20)
	pattern := r.catalog.Walk(false)

	r.sequencer.OnPhase(func(event PhaseEvent) {
		if event.Phase == 1 {
			assert.NoError(t, r.registry.ZeroAll())
		}
	})

	results := make(chan Result, 1)
	_, err := r.sequencer.Start(context.Background(), pattern, r.intent, 0, func(result Result) {
		results <- result
	})
	require.NoError(t, err)

	result := waitResult(t, results, 2*time.Second)
	assert.Equal(t, Aborted, result.Outcome)
	for _, driver := range r.drivers {
		for channel := 0; channel < command.MaxSupportedChannels; channel++ {
			assert.Equal(t, uint16(0), driver.Duty(channel))
		}
	}
}

func TestShutdownInterruptsHold(t *testing.T) {
	r := newRig(t, 10_000)
	ctx, cancel := context.WithCancel(context.Background())

	results := make(chan Result, 1)
	_, err := r.sequencer.Start(ctx, r.catalog.Walk(false), r.intent, 0, func(result Result) {
		results <- result
	})
	require.NoError(t, err)

	cancel()
	result := waitResult(t, results, time.Second)
	assert.Equal(t, Aborted, result.Outcome)
	require.NoError(t, r.intent.Wait(context.Background()))
}
