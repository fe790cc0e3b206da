package motion

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionStand         Action = "stand"
	ActionSit           Action = "sit"
	ActionWalk          Action = "walk"
	ActionRotate        Action = "rotate"
	ActionStop          Action = "stop"
	ActionEmergencyStop Action = "estop"
)

type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
	Left     Direction = "left"
	Right    Direction = "right"
)

// Command is one request to the controller. Cycles <= 0 keeps a walk or
// rotate going until stop.
type Command struct {
	Action    Action
	Direction Direction
	Cycles    int
}

func (c Command) String() string {
	if c.Direction == "" {
		return string(c.Action)
	}
	return fmt.Sprintf("%s %s x%d", c.Action, c.Direction, c.Cycles)
}

// Validate checks the command is well formed. Whether it is legal right now
// depends on the controller state.
func (c Command) Validate() error {
	switch c.Action {
	case ActionStand, ActionSit, ActionStop, ActionEmergencyStop:
		return nil
	case ActionWalk:
		if c.Direction != Forward && c.Direction != Backward {
			return fmt.Errorf("%w: walk direction %q", ErrInvalidCommand, c.Direction)
		}
		return nil
	case ActionRotate:
		if c.Direction != Left && c.Direction != Right {
			return fmt.Errorf("%w: rotate direction %q", ErrInvalidCommand, c.Direction)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, c.Action)
	}
}

// ParseCommand builds a command from loose transport fields. An empty walk
// direction means forward.
func ParseCommand(action, direction string, cycles int) (Command, error) {
	cmd := Command{
		Action:    Action(strings.ToLower(strings.TrimSpace(action))),
		Direction: Direction(strings.ToLower(strings.TrimSpace(direction))),
		Cycles:    cycles,
	}
	if cmd.Action == "emergency_stop" || cmd.Action == "emergencystop" {
		cmd.Action = ActionEmergencyStop
	}
	if cmd.Action == ActionWalk && cmd.Direction == "" {
		cmd.Direction = Forward
	}
	return cmd, cmd.Validate()
}
