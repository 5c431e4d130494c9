// Package gpio implements the gpio_do (digital output) and gpio_di (digital
// input) block types. Real peripheral access is behind the Driver interface;
// the runtime ships only an in-memory FakeDriver since GPIO hardware access
// itself is out of scope.
package gpio

import (
	"fmt"
	"sync"
)

// Handle identifies an open GPIO line.
type Handle int

// Driver is the peripheral access contract a gpio_do/gpio_di block acquires
// a handle from at initialize and releases at delete.
type Driver interface {
	OpenOutput(pin int) (Handle, error)
	OpenInput(pin int) (Handle, error)
	Write(h Handle, level int) error
	Read(h Handle) (int, error)
	Close(h Handle) error
}

// FakeDriver is an in-memory Driver for tests and for running the runtime
// without real hardware. It records every write for inspection.
type FakeDriver struct {
	mu      sync.Mutex
	next    Handle
	pins    map[Handle]int // handle -> pin number
	levels  map[Handle]int // handle -> current level
	Writes  []FakeWrite
	OnWrite func(h Handle, level int)
}

// FakeWrite records one Write call for test assertions.
type FakeWrite struct {
	Handle Handle
	Level  int
}

// NewFakeDriver creates an empty fake GPIO driver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		pins:   make(map[Handle]int),
		levels: make(map[Handle]int),
	}
}

func (d *FakeDriver) OpenOutput(pin int) (Handle, error) { return d.open(pin) }
func (d *FakeDriver) OpenInput(pin int) (Handle, error)  { return d.open(pin) }

func (d *FakeDriver) open(pin int) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	h := d.next
	d.pins[h] = pin
	return h, nil
}

func (d *FakeDriver) Write(h Handle, level int) error {
	d.mu.Lock()
	if _, ok := d.pins[h]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("gpio: write to closed handle %d", h)
	}
	d.levels[h] = level
	d.Writes = append(d.Writes, FakeWrite{Handle: h, Level: level})
	onWrite := d.OnWrite
	d.mu.Unlock()
	if onWrite != nil {
		onWrite(h, level)
	}
	return nil
}

func (d *FakeDriver) Read(h Handle) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pins[h]; !ok {
		return 0, fmt.Errorf("gpio: read from closed handle %d", h)
	}
	return d.levels[h], nil
}

func (d *FakeDriver) Close(h Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pins, h)
	delete(d.levels, h)
	return nil
}
