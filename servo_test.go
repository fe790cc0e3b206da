package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServoPulse(t *testing.T) {
	tests := []struct {
		name string
		cmd  ServoCommand
		want float64
	}{
		{"explicit pulse wins", ServoCommand{Pulse: 1200, Position: 1, MinPulse: 500, MaxPulse: 2500}, 1200},
		{"center", ServoCommand{Position: 0, MinPulse: 500, MaxPulse: 2500}, 1500},
		{"full left", ServoCommand{Position: -1, MinPulse: 500, MaxPulse: 2500}, 500},
		{"clamped", ServoCommand{Position: 3, MinPulse: 1000, MaxPulse: 2000}, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pulse, err := tt.cmd.pulse()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, pulse, 0.001)
		})
	}

	_, err := (&ServoCommand{MinPulse: 2000, MaxPulse: 1000}).pulse()
	assert.Error(t, err)
}
