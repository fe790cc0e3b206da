package command

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/Speshl/gorrc_hexapod/internal/command/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDutyCycle(t *testing.T) {
	tests := []struct {
		pulse    float64
		expected uint16
	}{
		{0, 0},
		{1500, 307}, // 1500 / 4.8828125
		{1000, 204},
		{2000, 409},
		{20000, 4095}, // full period clamps to the top tick
		{-500, 0},
		{1e9, 4095},
	}

	for _, tt := range tests {
		got := ToDutyCycle(tt.pulse, 50, 12)
		assert.Equal(t, tt.expected, got, "ToDutyCycle(%.0f)", tt.pulse)
	}
}

func TestToDutyCycleBoundedAndMonotonic(t *testing.T) {
	for _, frequency := range []float64{40, 50, 60, 333} {
		for _, bits := range []int{8, 12, 16} {
			max := uint16((1 << bits) - 1)
			last := uint16(0)
			for pulse := -5000.0; pulse <= 60000; pulse += 37.5 {
				duty := ToDutyCycle(pulse, frequency, bits)
				require.LessOrEqual(t, duty, max, "pulse %.1f freq %.0f bits %d", pulse, frequency, bits)
				require.GreaterOrEqual(t, duty, last, "not monotonic at pulse %.1f freq %.0f bits %d", pulse, frequency, bits)
				last = duty
			}
		}
	}

	assert.Equal(t, uint16(0), ToDutyCycle(math.NaN(), 50, 12))
	assert.Equal(t, uint16(4095), ToDutyCycle(math.Inf(1), 50, 12))
	assert.Equal(t, uint16(0), ToDutyCycle(math.Inf(-1), 50, 12))
}

func TestToDutyCycleResolutionBounds(t *testing.T) {
	for _, bits := range []int{0, -1, -64} {
		for _, pulse := range []float64{-100, 0, 1500, 1e9} {
			assert.Equal(t, uint16(0), ToDutyCycle(pulse, 50, bits), "pulse %.0f bits %d", pulse, bits)
		}
	}

	for _, bits := range []int{17, 24, 32, 64} {
		assert.Equal(t, uint16(math.MaxUint16), ToDutyCycle(1e9, 50, bits), "bits %d", bits)
		assert.Equal(t, ToDutyCycle(1500, 50, 16), ToDutyCycle(1500, 50, bits), "bits %d", bits)
	}
}

func TestToPulseRoundTrip(t *testing.T) {
	ticks := ToDutyCycle(1600, 50, 12)
	pulse := ToPulse(ticks, 50, 12)
	assert.InDelta(t, 1600, pulse, 20000.0/4096)
	assert.LessOrEqual(t, pulse, 1600.0)
}

func TestMapToRange(t *testing.T) {
	assert.InDelta(t, 0.5, MapToRange(0, -1, 1, 0, 1), 0.0001)
	assert.InDelta(t, 1.0, MapToRange(4, -1, 1, 0, 1), 0.0001)
	assert.InDelta(t, 0.0, MapToRange(-4, -1, 1, 0, 1), 0.0001)
}

func newTestRegistry(t *testing.T) (*Registry, *fake.Driver, *fake.Driver) {
	t.Helper()
	registry := NewRegistry(50, 12)
	driverOne := fake.NewDriver("pca1")
	driverTwo := fake.NewDriver("pca2")
	require.NoError(t, registry.AddDriver(0, driverOne))
	require.NoError(t, registry.AddDriver(1, driverTwo))
	require.NoError(t, registry.Init())
	return registry, driverOne, driverTwo
}

func TestRegistryWrite(t *testing.T) {
	registry, driverOne, driverTwo := newTestRegistry(t)

	assert.Equal(t, 50.0, driverOne.Frequency())
	require.NoError(t, registry.Write(0, 3, 307))
	require.NoError(t, registry.Write(1, 15, 200))

	assert.Equal(t, uint16(307), driverOne.Duty(3))
	assert.Equal(t, uint16(200), driverTwo.Duty(15))

	duty, ok := registry.Duty(Addr{Driver: 0, Channel: 3})
	assert.True(t, ok)
	assert.Equal(t, uint16(307), duty)
}

func TestRegistryWriteIsIdempotent(t *testing.T) {
	registry, driverOne, _ := newTestRegistry(t)

	require.NoError(t, registry.Write(0, 1, 300))
	require.NoError(t, registry.Write(0, 1, 300))
	assert.Equal(t, 1, driverOne.Writes())
	assert.Equal(t, uint16(300), driverOne.Duty(1))
}

func TestRegistryRejectsOutOfRange(t *testing.T) {
	registry, driverOne, _ := newTestRegistry(t)

	tests := []struct {
		driver  int
		channel int
	}{
		{0, -1},
		{0, 16},
		{5, 0},
	}
	for _, tt := range tests {
		err := registry.Write(tt.driver, tt.channel, 100)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOutOfRange), "driver %d channel %d", tt.driver, tt.channel)
	}
	assert.Equal(t, 0, driverOne.Writes())
}

func TestRegistryBatchAttemptsEveryWrite(t *testing.T) {
	registry, driverOne, driverTwo := newTestRegistry(t)
	driverOne.Fail(1, true)

	err := registry.WriteBatch([]Write{
		{Addr: Addr{Driver: 0, Channel: 0}, Duty: 300},
		{Addr: Addr{Driver: 0, Channel: 1}, Duty: 301},
		{Addr: Addr{Driver: 0, Channel: 99}, Duty: 302},
		{Addr: Addr{Driver: 1, Channel: 2}, Duty: 303},
	})
	require.Error(t, err)

	var hwErr *HardwareWriteError
	assert.True(t, errors.As(err, &hwErr))
	assert.Equal(t, Addr{Driver: 0, Channel: 1}, hwErr.Addr)
	assert.True(t, errors.Is(err, fake.ErrInjected))
	assert.True(t, errors.Is(err, ErrOutOfRange))

	assert.Equal(t, uint16(300), driverOne.Duty(0))
	assert.Equal(t, uint16(303), driverTwo.Duty(2))

	_, ok := registry.Duty(Addr{Driver: 0, Channel: 1})
	assert.False(t, ok, "failed writes are not cached")
}

func TestRegistryZeroAllLatches(t *testing.T) {
	registry, driverOne, driverTwo := newTestRegistry(t)
	outputEnable := &fake.OutputEnable{}
	registry.SetOutputEnable(outputEnable)
	require.NoError(t, registry.Arm())
	assert.True(t, outputEnable.Enabled())

	require.NoError(t, registry.Write(0, 0, 300))
	require.NoError(t, registry.Write(1, 8, 320))

	require.NoError(t, registry.ZeroAll())
	assert.True(t, registry.Halted())
	assert.False(t, outputEnable.Enabled())
	for channel := 0; channel < MaxSupportedChannels; channel++ {
		assert.Equal(t, uint16(0), driverOne.Duty(channel))
		assert.Equal(t, uint16(0), driverTwo.Duty(channel))
	}

	err := registry.Write(0, 0, 300)
	assert.True(t, errors.Is(err, ErrHalted))
	assert.Equal(t, uint16(0), driverOne.Duty(0))

	require.NoError(t, registry.Arm())
	assert.True(t, outputEnable.Enabled())
	require.NoError(t, registry.Write(0, 0, 300))
	assert.Equal(t, uint16(300), driverOne.Duty(0))
}

func TestRegistryZeroAllExcludesBatches(t *testing.T) {
	registry, driverOne, _ := newTestRegistry(t)

	writes := make([]Write, 0, MaxSupportedChannels)
	for channel := 0; channel < MaxSupportedChannels; channel++ {
		writes = append(writes, Write{Addr: Addr{Driver: 0, Channel: channel}, Duty: 300})
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = registry.WriteBatch(writes)
		}()
	}
	require.NoError(t, registry.ZeroAll())
	wg.Wait()

	for channel := 0; channel < MaxSupportedChannels; channel++ {
		assert.Equal(t, uint16(0), driverOne.Duty(channel), "channel %d re-energized after zero all", channel)
	}
}

func TestRegistryStop(t *testing.T) {
	registry, driverOne, driverTwo := newTestRegistry(t)
	require.NoError(t, registry.Write(0, 0, 300))

	require.NoError(t, registry.Stop())
	assert.Equal(t, uint16(0), driverOne.Duty(0))
	assert.True(t, driverOne.Stopped())
	assert.True(t, driverTwo.Stopped())
}
