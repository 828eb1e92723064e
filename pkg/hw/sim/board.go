// Package sim provides simulated peripherals for desktop runs and tests.
package sim

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/keypad"
	"github.com/itohio/keyclimate/pkg/respond"
)

// VRef is the simulated potentiometer supply.
const VRef = 3.3

// ErrProbe is returned while the simulated thermistor is disconnected.
var ErrProbe = errors.New("simulated probe disconnected")

// Board simulates the sensors and actuators of one controller.
type Board struct {
	cfg   config.SimConfig
	start time.Time

	mu          sync.RWMutex
	temperature float64
	presence    bool
	brightness  float64
	probeFault  bool
	keys        []rune
	out         respond.Outputs
	callbacks   []func(respond.Outputs)
}

// New creates a board. A nil cfg uses the default simulation values.
func New(cfg *config.SimConfig) *Board {
	if cfg == nil {
		cfg = &config.Default().Sim
	}
	return &Board{
		cfg:         *cfg,
		start:       time.Now(),
		temperature: cfg.Temperature,
		presence:    cfg.Presence,
		brightness:  cfg.Brightness,
		out:         respond.Outputs{Locked: true},
	}
}

// SetTemperature sets the ambient temperature in °C.
func (b *Board) SetTemperature(c float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.temperature = c
}

// SetPresence sets the PIR output.
func (b *Board) SetPresence(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presence = on
}

// SetBrightness sets the potentiometer position in [0,1].
func (b *Board) SetBrightness(v float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.brightness = math.Min(math.Max(v, 0), 1)
}

// SetProbeFault disconnects or reconnects the thermistor.
func (b *Board) SetProbeFault(fault bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probeFault = fault
}

// Press queues keys as if typed on the keypad, one per poll.
func (b *Board) Press(keys string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, []rune(keys)...)
}

// Poll implements keypad.Poller.
func (b *Board) Poll() rune {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.keys) == 0 {
		return keypad.NoKey
	}
	k := b.keys[0]
	b.keys = b.keys[1:]
	return k
}

// Celsius implements sensor.Thermometer.
func (b *Board) Celsius() (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.probeFault {
		return 0, ErrProbe
	}
	elapsed := float64(time.Since(b.start).Milliseconds())
	noise := (math.Sin(elapsed*0.001) + math.Cos(elapsed*0.0013)) * b.cfg.NoiseLevel * 0.5
	return b.temperature + noise, nil
}

// Present implements control.PresenceSensor.
func (b *Board) Present() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.presence
}

// Level implements control.Dimmer.
func (b *Board) Level() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.brightness
}

// Volts implements shell.Voltmeter.
func (b *Board) Volts() float64 {
	return b.Level() * VRef
}

// SetDuty implements control.Fan.
func (b *Board) SetDuty(percent int) error {
	b.update(func(o *respond.Outputs) { o.Fan = percent })
	return nil
}

// SetRGB implements control.RGB.
func (b *Board) SetRGB(r, g, bl int) error {
	b.update(func(o *respond.Outputs) { o.Red, o.Green, o.Blue = r, g, bl })
	return nil
}

// SetLocked implements control.Indicator.
func (b *Board) SetLocked(locked bool) error {
	b.update(func(o *respond.Outputs) { o.Locked = locked })
	return nil
}

// Outputs returns the last values written to the actuators.
func (b *Board) Outputs() respond.Outputs {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.out
}

// OnOutput registers a callback invoked when an actuator value changes.
func (b *Board) OnOutput(callback func(respond.Outputs)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks = append(b.callbacks, callback)
}

func (b *Board) update(fn func(*respond.Outputs)) {
	b.mu.Lock()
	prev := b.out
	fn(&b.out)
	out := b.out
	callbacks := make([]func(respond.Outputs), len(b.callbacks))
	copy(callbacks, b.callbacks)
	b.mu.Unlock()

	if out == prev {
		return
	}
	for _, cb := range callbacks {
		cb(out)
	}
}
