// Package fake is an in-memory PWM driver for dry runs and tests.
package fake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

const channels = 16

var ErrInjected = errors.New("injected bus error")

var log = logrus.WithFields(logrus.Fields{
	"pkg": "fake",
})

type WriteEvent struct {
	Channel int
	Ticks   uint16
}

type Driver struct {
	lock sync.Mutex

	name      string
	frequency float64
	duties    [channels]uint16
	writes    int
	failing   map[int]bool
	history   []WriteEvent
	stopped   bool
	onWrite   func(WriteEvent)
}

func NewDriver(name string) *Driver {
	return &Driver{
		name:    name,
		failing: make(map[int]bool),
	}
}

func (d *Driver) Init(frequencyHz float64) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.frequency = frequencyHz
	log.Infof("%s initialized at %.1fhz", d.name, frequencyHz)
	return nil
}

func (d *Driver) SetDuty(channel int, ticks uint16) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if channel < 0 || channel >= channels {
		return fmt.Errorf("%s invalid channel %d", d.name, channel)
	}
	if d.failing[channel] {
		return fmt.Errorf("%s channel %d: %w", d.name, channel, ErrInjected)
	}

	d.duties[channel] = ticks
	d.writes++
	event := WriteEvent{Channel: channel, Ticks: ticks}
	d.history = append(d.history, event)
	if d.onWrite != nil {
		d.onWrite(event)
	}
	return nil
}

func (d *Driver) SetAllDuty(ticks uint16) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	for channel := range d.duties {
		if d.failing[channel] {
			return fmt.Errorf("%s channel %d: %w", d.name, channel, ErrInjected)
		}
	}
	for channel := range d.duties {
		d.duties[channel] = ticks
	}
	d.writes++
	return nil
}

func (d *Driver) Stop() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.stopped = true
	return nil
}

// Fail makes every later write to channel return ErrInjected.
func (d *Driver) Fail(channel int, failing bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.failing[channel] = failing
}

// OnWrite registers a hook called, under the driver lock, for every single channel write.
func (d *Driver) OnWrite(f func(WriteEvent)) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.onWrite = f
}

func (d *Driver) Duty(channel int) uint16 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.duties[channel]
}

func (d *Driver) Duties() [channels]uint16 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.duties
}

func (d *Driver) Writes() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.writes
}

func (d *Driver) History() []WriteEvent {
	d.lock.Lock()
	defer d.lock.Unlock()
	history := make([]WriteEvent, len(d.history))
	copy(history, d.history)
	return history
}

func (d *Driver) Frequency() float64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.frequency
}

func (d *Driver) Stopped() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stopped
}

// OutputEnable records the state of the output enable line.
type OutputEnable struct {
	lock    sync.Mutex
	enabled bool
}

func (o *OutputEnable) Enable() error {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.enabled = true
	return nil
}

func (o *OutputEnable) Disable() error {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.enabled = false
	return nil
}

func (o *OutputEnable) Enabled() bool {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.enabled
}
