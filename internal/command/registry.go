package command

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrOutOfRange = errors.New("out of range")
	ErrHalted     = errors.New("registry halted by zero all")
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "command",
})

// Driver is one physical PWM chip.
type Driver interface {
	Init(frequencyHz float64) error
	SetDuty(channel int, ticks uint16) error
	Stop() error
}

// AllSetter is implemented by drivers that can set every channel in one bus write.
type AllSetter interface {
	SetAllDuty(ticks uint16) error
}

// OutputEnabler controls the shared output enable line of the drivers.
type OutputEnabler interface {
	Enable() error
	Disable() error
}

type HardwareWriteError struct {
	Addr Addr
	Err  error
}

func (e *HardwareWriteError) Error() string {
	return fmt.Sprintf("hardware write failed on %s: %s", e.Addr, e.Err)
}

func (e *HardwareWriteError) Unwrap() error {
	return e.Err
}

type Write struct {
	Addr Addr
	Duty uint16
}

// Registry owns every driver handle. All writes and ZeroAll are serialized on
// one lock so a zeroed channel can't be re-energized by a batch in flight.
type Registry struct {
	lock sync.Mutex

	drivers        map[int]Driver
	outputEnable   OutputEnabler
	frequency      float64
	resolutionBits int

	duties map[Addr]uint16
	halted bool
}

func NewRegistry(frequency float64, resolutionBits int) *Registry {
	return &Registry{
		drivers:        make(map[int]Driver, 2),
		frequency:      frequency,
		resolutionBits: resolutionBits,
		duties:         make(map[Addr]uint16, MaxSupportedChannels*2),
	}
}

func (r *Registry) AddDriver(id int, driver Driver) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.drivers[id]; ok {
		return fmt.Errorf("driver %d already registered", id)
	}
	r.drivers[id] = driver
	return nil
}

func (r *Registry) SetOutputEnable(outputEnable OutputEnabler) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.outputEnable = outputEnable
}

func (r *Registry) Init() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, id := range r.driverIDs() {
		err := r.drivers[id].Init(r.frequency)
		if err != nil {
			return fmt.Errorf("failed initializing driver %d: %w", id, err)
		}
		log.Infof("driver %d initialized at %.1fhz", id, r.frequency)
	}

	if r.outputEnable != nil {
		err := r.outputEnable.Enable()
		if err != nil {
			return fmt.Errorf("failed enabling outputs: %w", err)
		}
	}
	return nil
}

func (r *Registry) Frequency() float64 {
	return r.frequency
}

func (r *Registry) ResolutionBits() int {
	return r.resolutionBits
}

func (r *Registry) HasDriver(id int) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	_, ok := r.drivers[id]
	return ok
}

// Duty returns the last duty committed to the given channel.
func (r *Registry) Duty(addr Addr) (uint16, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	duty, ok := r.duties[addr]
	return duty, ok
}

func (r *Registry) Halted() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.halted
}

func (r *Registry) Write(driverID, channel int, duty uint16) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.write(Addr{Driver: driverID, Channel: channel}, duty)
}

// WriteBatch attempts every write even when some fail and returns the joined
// failures.
func (r *Registry) WriteBatch(writes []Write) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	var errs []error
	for i := range writes {
		err := r.write(writes[i].Addr, writes[i].Duty)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) write(addr Addr, duty uint16) error {
	driver, ok := r.drivers[addr.Driver]
	if !ok {
		log.Warnf("rejected write to unknown driver %d", addr.Driver)
		return fmt.Errorf("%w: unknown driver %d", ErrOutOfRange, addr.Driver)
	}

	if addr.Channel < 0 || addr.Channel >= MaxSupportedChannels {
		log.Warnf("rejected write to driver %d invalid channel %d", addr.Driver, addr.Channel)
		return fmt.Errorf("%w: channel %d not in 0..%d", ErrOutOfRange, addr.Channel, MaxSupportedChannels-1)
	}

	if r.halted {
		return fmt.Errorf("%w: dropped write to %s", ErrHalted, addr)
	}

	if last, ok := r.duties[addr]; ok && last == duty {
		return nil
	}

	err := driver.SetDuty(addr.Channel, duty)
	if err != nil {
		delete(r.duties, addr)
		return &HardwareWriteError{Addr: addr, Err: err}
	}

	log.Debugf("%s duty %d", addr, duty)
	r.duties[addr] = duty
	return nil
}

// ZeroAll drives every channel of every driver to zero duty and latches the
// registry so later writes are dropped until Arm is called.
func (r *Registry) ZeroAll() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.halted = true

	var errs []error
	for _, id := range r.driverIDs() {
		driver := r.drivers[id]

		if allSetter, ok := driver.(AllSetter); ok {
			err := allSetter.SetAllDuty(0)
			if err == nil {
				for channel := 0; channel < MaxSupportedChannels; channel++ {
					r.duties[Addr{Driver: id, Channel: channel}] = 0
				}
				continue
			}
			log.Warnf("driver %d all channel write failed, falling back to single channels: %s", id, err)
		}

		for channel := 0; channel < MaxSupportedChannels; channel++ {
			addr := Addr{Driver: id, Channel: channel}
			err := driver.SetDuty(channel, 0)
			if err != nil {
				delete(r.duties, addr)
				errs = append(errs, &HardwareWriteError{Addr: addr, Err: err})
				continue
			}
			r.duties[addr] = 0
		}
	}

	if r.outputEnable != nil {
		err := r.outputEnable.Disable()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed disabling outputs: %w", err))
		}
	}

	log.Warn("all channels zeroed")
	return errors.Join(errs...)
}

// Arm releases the ZeroAll latch.
func (r *Registry) Arm() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.outputEnable != nil {
		err := r.outputEnable.Enable()
		if err != nil {
			return fmt.Errorf("failed enabling outputs: %w", err)
		}
	}

	if r.halted {
		log.Info("registry armed")
	}
	r.halted = false
	return nil
}

// Stop zeroes every channel and releases the drivers.
func (r *Registry) Stop() error {
	errs := []error{r.ZeroAll()}

	r.lock.Lock()
	defer r.lock.Unlock()
	for _, id := range r.driverIDs() {
		err := r.drivers[id].Stop()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed stopping driver %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) driverIDs() []int {
	ids := make([]int, 0, len(r.drivers))
	for id := range r.drivers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
