package legs

import (
	"fmt"

	"github.com/Speshl/gorrc_hexapod/internal/command"
	"github.com/Speshl/gorrc_hexapod/internal/config"
	"github.com/sirupsen/logrus"
)

const Count = config.NumLegs

var log = logrus.WithFields(logrus.Fields{
	"pkg": "legs",
})

type JointKind int

const (
	Coxa JointKind = iota
	Femur
	Tibia
)

func (k JointKind) String() string {
	switch k {
	case Coxa:
		return "coxa"
	case Femur:
		return "femur"
	case Tibia:
		return "tibia"
	default:
		return fmt.Sprintf("joint(%d)", int(k))
	}
}

// Group is a tripod group. A is legs 1, 3, 5 and B is legs 2, 4, 6.
type Group int

const (
	GroupA Group = iota
	GroupB
)

func (g Group) String() string {
	if g == GroupA {
		return "A"
	}
	return "B"
}

func GroupOf(legID int) Group {
	if legID%2 == 1 {
		return GroupA
	}
	return GroupB
}

type Joint struct {
	Kind     JointKind
	Addr     command.Addr
	MinPulse int
	MaxPulse int
	Center   int
	Inverted bool
}

// Target resolves a body frame pulse width to what this servo must receive.
// Inverted joints mirror the pulse around their center. The result is always
// inside [MinPulse, MaxPulse].
func (j Joint) Target(pulseUs int) int {
	target := pulseUs
	if j.Inverted {
		target = 2*j.Center - pulseUs
	}

	if target < j.MinPulse {
		log.Debugf("%s %s pulse %d clamped to %d", j.Addr, j.Kind, target, j.MinPulse)
		return j.MinPulse
	} else if target > j.MaxPulse {
		log.Debugf("%s %s pulse %d clamped to %d", j.Addr, j.Kind, target, j.MaxPulse)
		return j.MaxPulse
	}
	return target
}

// Pose is a full target for one leg in body frame microseconds.
type Pose struct {
	Name  string
	Coxa  int
	Femur int
	Tibia int
}

func (p Pose) Pulse(kind JointKind) int {
	switch kind {
	case Coxa:
		return p.Coxa
	case Femur:
		return p.Femur
	default:
		return p.Tibia
	}
}

type Leg struct {
	ID     int
	Group  Group
	Joints [3]Joint
}

func (l *Leg) String() string {
	return fmt.Sprintf("L%d", l.ID)
}

// Body is the six wired legs sharing one driver registry.
type Body struct {
	registry *command.Registry
	legs     [Count]*Leg
}

func NewBody(legCfgs []config.LegConfig, registry *command.Registry) (*Body, error) {
	if len(legCfgs) != Count {
		return nil, fmt.Errorf("%w: expected %d legs, got %d", config.ErrConfig, Count, len(legCfgs))
	}

	body := &Body{registry: registry}
	for _, legCfg := range legCfgs {
		if legCfg.ID < 1 || legCfg.ID > Count {
			return nil, fmt.Errorf("%w: unknown leg id %d", config.ErrConfig, legCfg.ID)
		}
		if body.legs[legCfg.ID-1] != nil {
			return nil, fmt.Errorf("%w: leg %d wired twice", config.ErrConfig, legCfg.ID)
		}
		if !registry.HasDriver(legCfg.Driver) {
			return nil, fmt.Errorf("%w: leg %d wired to unknown driver %d", config.ErrConfig, legCfg.ID, legCfg.Driver)
		}

		body.legs[legCfg.ID-1] = &Leg{
			ID:    legCfg.ID,
			Group: GroupOf(legCfg.ID),
			Joints: [3]Joint{
				newJoint(Coxa, legCfg.Driver, legCfg.Coxa),
				newJoint(Femur, legCfg.Driver, legCfg.Femur),
				newJoint(Tibia, legCfg.Driver, legCfg.Tibia),
			},
		}
	}
	return body, nil
}

func newJoint(kind JointKind, driver int, jointCfg config.JointConfig) Joint {
	return Joint{
		Kind:     kind,
		Addr:     command.Addr{Driver: driver, Channel: jointCfg.Channel},
		MinPulse: jointCfg.MinPulse,
		MaxPulse: jointCfg.MaxPulse,
		Center:   jointCfg.Center,
		Inverted: jointCfg.Inverted,
	}
}

func (b *Body) Leg(id int) (*Leg, error) {
	if id < 1 || id > Count {
		return nil, fmt.Errorf("%w: unknown leg id %d", config.ErrConfig, id)
	}
	return b.legs[id-1], nil
}

func (b *Body) Legs() []*Leg {
	return b.legs[:]
}

// Writes resolves a pose into the duty cycle writes for one leg.
func (b *Body) Writes(leg *Leg, pose Pose) []command.Write {
	writes := make([]command.Write, 0, len(leg.Joints))
	for _, joint := range leg.Joints {
		pulse := joint.Target(pose.Pulse(joint.Kind))
		writes = append(writes, command.Write{
			Addr: joint.Addr,
			Duty: command.ToDutyCycle(float64(pulse), b.registry.Frequency(), b.registry.ResolutionBits()),
		})
	}
	return writes
}

// ApplyPose moves one leg. Every joint is attempted and failures are returned
// together.
func (b *Body) ApplyPose(legID int, pose Pose) error {
	leg, err := b.Leg(legID)
	if err != nil {
		return err
	}

	err = b.registry.WriteBatch(b.Writes(leg, pose))
	if err != nil {
		return fmt.Errorf("%s pose %s: %w", leg, pose.Name, err)
	}
	return nil
}

// ApplyPoses moves all six legs in one registry batch, poses indexed by leg id - 1.
func (b *Body) ApplyPoses(poses [Count]Pose) error {
	writes := make([]command.Write, 0, Count*3)
	for i, leg := range b.legs {
		writes = append(writes, b.Writes(leg, poses[i])...)
	}

	err := b.registry.WriteBatch(writes)
	if err != nil {
		return fmt.Errorf("applying poses: %w", err)
	}
	return nil
}

