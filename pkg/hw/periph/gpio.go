// Package periph drives the controller's peripherals on a Linux board
// through periph.io.
package periph

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"

	"github.com/itohio/keyclimate/pkg/keypad"
	"github.com/itohio/keyclimate/pkg/respond"
	"github.com/itohio/keyclimate/pkg/sensor"
)

// ErrNoPin is returned for pin names the host does not know.
var ErrNoPin = errors.New("unknown pin")

func lookup(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNoPin)
	}
	return p, nil
}

// Matrix drives a 4x4 keypad: rows are outputs pulled low when active,
// columns are inputs with pull-ups that read low while a key closes.
type Matrix struct {
	rows [keypad.Rows]gpio.PinIO
	cols [keypad.Cols]gpio.PinIO
}

// NewMatrix configures the row and column pins.
func NewMatrix(rows, cols []gpio.PinIO) (*Matrix, error) {
	if len(rows) != keypad.Rows || len(cols) != keypad.Cols {
		return nil, fmt.Errorf("keypad needs %d rows and %d columns, got %d and %d", keypad.Rows, keypad.Cols, len(rows), len(cols))
	}
	m := &Matrix{}
	for i, p := range rows {
		if err := p.Out(gpio.High); err != nil {
			return nil, fmt.Errorf("row %s: %w", p, err)
		}
		m.rows[i] = p
	}
	for i, p := range cols {
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("column %s: %w", p, err)
		}
		m.cols[i] = p
	}
	return m, nil
}

// Drive implements keypad.Matrix.
func (m *Matrix) Drive(row int, active bool) {
	_ = m.rows[row].Out(!gpio.Level(active))
}

// Sense implements keypad.Matrix.
func (m *Matrix) Sense(col int) bool {
	return m.cols[col].Read() == gpio.Low
}

// PIR reads a motion sensor output.
type PIR struct {
	pin    gpio.PinIO
	sensor sensor.PIR
}

// NewPIR configures pin as a pulled-down input.
func NewPIR(pin gpio.PinIO, activeLow bool) (*PIR, error) {
	pull := gpio.PullDown
	if activeLow {
		pull = gpio.PullUp
	}
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("pir %s: %w", pin, err)
	}
	return &PIR{pin: pin, sensor: sensor.PIR{ActiveLow: activeLow}}, nil
}

// Present implements control.PresenceSensor.
func (p *PIR) Present() bool {
	return p.sensor.Present(p.pin.Read() == gpio.High)
}

// PWM is a duty-cycle output in percent.
type PWM struct {
	pin  gpio.PinIO
	freq physic.Frequency
}

// NewPWM starts pin at 0% duty.
func NewPWM(pin gpio.PinIO, hz int) (*PWM, error) {
	p := &PWM{pin: pin, freq: physic.Frequency(hz) * physic.Hertz}
	if err := p.SetDuty(0); err != nil {
		return nil, err
	}
	return p, nil
}

// Duty converts a percentage into a periph duty cycle.
func Duty(percent int) gpio.Duty {
	if percent < 0 {
		percent = 0
	}
	if percent > respond.MaxDuty {
		percent = respond.MaxDuty
	}
	return gpio.Duty(int64(gpio.DutyMax) * int64(percent) / respond.MaxDuty)
}

// SetDuty implements control.Fan.
func (p *PWM) SetDuty(percent int) error {
	if err := p.pin.PWM(Duty(percent), p.freq); err != nil {
		return fmt.Errorf("pwm %s: %w", p.pin, err)
	}
	return nil
}

// RGB groups three PWM channels.
type RGB struct {
	R, G, B *PWM
}

// SetRGB implements control.RGB.
func (c *RGB) SetRGB(r, g, b int) error {
	return errors.Join(c.R.SetDuty(r), c.G.SetDuty(g), c.B.SetDuty(b))
}

// Indicator lights one LED while locked and another while unlocked.
// Either pin may be nil.
type Indicator struct {
	Lock   gpio.PinIO
	Unlock gpio.PinIO
}

// SetLocked implements control.Indicator.
func (ind *Indicator) SetLocked(locked bool) error {
	var errs []error
	if ind.Lock != nil {
		errs = append(errs, ind.Lock.Out(gpio.Level(locked)))
	}
	if ind.Unlock != nil {
		errs = append(errs, ind.Unlock.Out(gpio.Level(!locked)))
	}
	return errors.Join(errs...)
}
