package gait

import (
	"fmt"
	"time"

	"github.com/Speshl/gorrc_hexapod/internal/config"
	"github.com/Speshl/gorrc_hexapod/internal/legs"
)

type Kind int

const (
	Stand Kind = iota
	Sit
	TripodWalk
	TripodWalkBackward
	WaveWalk
	RotateLeft
	RotateRight
)

var kindNames = map[Kind]string{
	Stand:              "stand",
	Sit:                "sit",
	TripodWalk:         "tripod_walk",
	TripodWalkBackward: "tripod_walk_backward",
	WaveWalk:           "wave_walk",
	RotateLeft:         "rotate_left",
	RotateRight:        "rotate_right",
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("pattern(%d)", int(k))
	}
	return name
}

// Wave gait swing order.
var waveOrder = [legs.Count]int{6, 4, 2, 5, 3, 1}

type Phase struct {
	Name   string
	Poses  [legs.Count]legs.Pose
	Lifted [legs.Count]bool
	Hold   time.Duration
}

// Pattern is an ordered list of phases. Cyclic patterns repeat until cancelled
// or until their cycle count runs out.
type Pattern struct {
	Kind     Kind
	Phases   []Phase
	Cyclic   bool
	Tripod   bool
	SafeStop [legs.Count]legs.Pose
}

// Catalog holds every pattern, built once at startup and only read after.
type Catalog struct {
	patterns map[Kind]*Pattern
	walk     Kind
}

func NewCatalog(pulseCfg config.PulseConfig, gaitCfg config.GaitConfig) (*Catalog, error) {
	builder := poseBuilder{
		pulses: pulseCfg,
		hold:   time.Duration(gaitCfg.PhaseHoldMs) * time.Millisecond,
	}
	standHold := time.Duration(gaitCfg.StandHoldMs) * time.Millisecond
	sitHold := time.Duration(gaitCfg.SitHoldMs) * time.Millisecond

	catalog := &Catalog{
		patterns: map[Kind]*Pattern{
			Stand:              builder.stand(standHold),
			Sit:                builder.sit(sitHold),
			TripodWalk:         builder.tripod(TripodWalk, directions(1, 1)),
			TripodWalkBackward: builder.tripod(TripodWalkBackward, directions(-1, -1)),
			RotateLeft:         builder.tripod(RotateLeft, directions(-1, 1)),
			RotateRight:        builder.tripod(RotateRight, directions(1, -1)),
			WaveWalk:           builder.wave(),
		},
	}

	switch gaitCfg.WalkGait {
	case "tripod":
		catalog.walk = TripodWalk
	case "wave":
		catalog.walk = WaveWalk
	default:
		return nil, fmt.Errorf("%w: unknown walk gait %q", config.ErrConfig, gaitCfg.WalkGait)
	}

	err := catalog.Validate()
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func (c *Catalog) Pattern(kind Kind) (*Pattern, error) {
	pattern, ok := c.patterns[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no pattern %s", config.ErrConfig, kind)
	}
	return pattern, nil
}

// Walk returns the configured walking pattern. Wave gait has no backward
// variant, so backward always walks a tripod.
func (c *Catalog) Walk(backward bool) *Pattern {
	if backward {
		return c.patterns[TripodWalkBackward]
	}
	return c.patterns[c.walk]
}

func (c *Catalog) Rotate(left bool) *Pattern {
	if left {
		return c.patterns[RotateLeft]
	}
	return c.patterns[RotateRight]
}

// Validate checks every pattern assigns a pose to all six legs and that tripod
// patterns never lift legs of both groups in the same phase.
func (c *Catalog) Validate() error {
	for kind, pattern := range c.patterns {
		if len(pattern.Phases) == 0 {
			return fmt.Errorf("%w: pattern %s has no phases", config.ErrConfig, kind)
		}

		for _, pose := range pattern.SafeStop {
			if pose.Name == "" {
				return fmt.Errorf("%w: pattern %s safe stop missing a leg", config.ErrConfig, kind)
			}
		}

		for i, phase := range pattern.Phases {
			var liftedGroups [2]bool
			for legIndex, pose := range phase.Poses {
				if pose.Name == "" {
					return fmt.Errorf("%w: pattern %s phase %d has no pose for leg %d", config.ErrConfig, kind, i, legIndex+1)
				}
				if phase.Lifted[legIndex] {
					liftedGroups[legs.GroupOf(legIndex+1)] = true
				}
			}
			if pattern.Tripod && liftedGroups[legs.GroupA] && liftedGroups[legs.GroupB] {
				return fmt.Errorf("%w: pattern %s phase %d lifts both tripod groups", config.ErrConfig, kind, i)
			}
		}
	}
	return nil
}

// directions gives the coxa sweep sign for each leg. Legs 1-3 are the left
// side and 4-6 the right side.
func directions(left, right int) [legs.Count]int {
	var dirs [legs.Count]int
	for i := range dirs {
		if i < legs.Count/2 {
			dirs[i] = left
		} else {
			dirs[i] = right
		}
	}
	return dirs
}

type poseBuilder struct {
	pulses config.PulseConfig
	hold   time.Duration
}

func (b poseBuilder) standing() legs.Pose {
	return legs.Pose{Name: "stand", Coxa: b.pulses.Neutral, Femur: b.pulses.FemurStand, Tibia: b.pulses.TibiaStand}
}

func (b poseBuilder) stance(coxa int) legs.Pose {
	return legs.Pose{Name: "stance", Coxa: coxa, Femur: b.pulses.FemurStand, Tibia: b.pulses.TibiaStand}
}

func (b poseBuilder) swing(coxa int) legs.Pose {
	return legs.Pose{Name: "swing", Coxa: coxa, Femur: b.pulses.FemurUp, Tibia: b.pulses.TibiaExtend}
}

// coxa picks the forward or backward sweep for a leg moving in dir.
func (b poseBuilder) coxa(dir int, forward bool) int {
	if (dir > 0) == forward {
		return b.pulses.CoxaForward
	}
	return b.pulses.CoxaBackward
}

func all(pose legs.Pose) [legs.Count]legs.Pose {
	var poses [legs.Count]legs.Pose
	for i := range poses {
		poses[i] = pose
	}
	return poses
}

func (b poseBuilder) stand(hold time.Duration) *Pattern {
	push := legs.Pose{Name: "push", Coxa: b.pulses.Neutral, Femur: b.pulses.FemurDown, Tibia: b.pulses.TibiaExtend}
	return &Pattern{
		Kind: Stand,
		Phases: []Phase{
			{Name: "push", Poses: all(push), Hold: hold},
			{Name: "settle", Poses: all(b.standing()), Hold: hold},
		},
		SafeStop: all(b.standing()),
	}
}

func (b poseBuilder) sit(hold time.Duration) *Pattern {
	lower := legs.Pose{Name: "lower", Coxa: b.pulses.Neutral, Femur: b.pulses.FemurSit, Tibia: b.pulses.TibiaStand}
	tuck := legs.Pose{Name: "sit", Coxa: b.pulses.Neutral, Femur: b.pulses.FemurSit, Tibia: b.pulses.TibiaTuck}
	return &Pattern{
		Kind: Sit,
		Phases: []Phase{
			{Name: "lower", Poses: all(lower), Hold: hold},
			{Name: "tuck", Poses: all(tuck), Hold: hold},
		},
		SafeStop: all(tuck),
	}
}

// tripod builds the six phase alternating tripod cycle. Group A swings while B
// pushes, then the roles swap.
func (b poseBuilder) tripod(kind Kind, dirs [legs.Count]int) *Pattern {
	type step struct {
		name          string
		swingForward  bool
		swingUp       bool
		stanceForward bool
		swingingGroup legs.Group
	}
	steps := []step{
		{"a_lift", false, true, true, legs.GroupA},
		{"a_swing", true, true, false, legs.GroupA},
		{"a_place", true, false, false, legs.GroupA},
		{"b_lift", false, true, true, legs.GroupB},
		{"b_swing", true, true, false, legs.GroupB},
		{"b_place", true, false, false, legs.GroupB},
	}

	pattern := &Pattern{
		Kind:     kind,
		Cyclic:   true,
		Tripod:   true,
		SafeStop: all(b.standing()),
	}
	for _, s := range steps {
		phase := Phase{Name: s.name, Hold: b.hold}
		for i := range phase.Poses {
			legID := i + 1
			if legs.GroupOf(legID) == s.swingingGroup {
				coxa := b.coxa(dirs[i], s.swingForward)
				if s.swingUp {
					phase.Poses[i] = b.swing(coxa)
					phase.Lifted[i] = true
				} else {
					phase.Poses[i] = b.stance(coxa)
				}
			} else {
				phase.Poses[i] = b.stance(b.coxa(dirs[i], s.stanceForward))
			}
		}
		pattern.Phases = append(pattern.Phases, phase)
	}
	return pattern
}

// wave lifts one leg per phase. Grounded legs sweep from forward to backward
// across the five phases they spend in stance.
func (b poseBuilder) wave() *Pattern {
	pattern := &Pattern{
		Kind:     WaveWalk,
		Cyclic:   true,
		SafeStop: all(b.standing()),
	}

	stanceSteps := legs.Count - 1
	sweep := b.pulses.CoxaBackward - b.pulses.CoxaForward
	for k, swingLeg := range waveOrder {
		phase := Phase{Name: fmt.Sprintf("l%d_swing", swingLeg), Hold: b.hold}
		for order, legID := range waveOrder {
			i := legID - 1
			if legID == swingLeg {
				phase.Poses[i] = b.swing(b.pulses.CoxaForward)
				phase.Lifted[i] = true
				continue
			}
			d := (k - order + legs.Count) % legs.Count
			phase.Poses[i] = b.stance(b.pulses.CoxaForward + sweep*d/stanceSteps)
		}
		pattern.Phases = append(pattern.Phases, phase)
	}
	return pattern
}
