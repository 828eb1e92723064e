//go:build tinygo

package main

import (
	"machine"

	"tinygo.org/x/drivers/hd44780i2c"

	"github.com/itohio/keyclimate/pkg/display"
	"github.com/itohio/keyclimate/pkg/respond"
	"github.com/itohio/keyclimate/pkg/sensor"
)

// PWM is the slice API shared by the RP2040 PWM groups.
type PWM interface {
	Top() uint32
	Set(ch uint8, value uint32)
	Channel(pin machine.Pin) (uint8, error)
	Configure(machine.PWMConfig) error
}

// matrix drives the keypad rows low and reads the pulled-up columns.
type matrix struct{}

func (matrix) configure() {
	for _, p := range PIN_ROWS {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.High()
	}
	for _, p := range PIN_COLS {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
}

func (matrix) Drive(row int, active bool) {
	PIN_ROWS[row].Set(!active)
}

func (matrix) Sense(col int) bool {
	return !PIN_COLS[col].Get()
}

type pir struct {
	sensor sensor.PIR
}

func (p pir) Present() bool {
	return p.sensor.Present(PIN_PIR.Get())
}

// channel is one PWM output in percent.
type channel struct {
	pwm PWM
	ch  uint8
}

func newChannel(pwm PWM, pin machine.Pin) (*channel, error) {
	ch, err := pwm.Channel(pin)
	if err != nil {
		return nil, err
	}
	pwm.Set(ch, 0)
	return &channel{pwm: pwm, ch: ch}, nil
}

func (c *channel) SetDuty(percent int) error {
	if c == nil {
		return nil
	}
	if percent < 0 {
		percent = 0
	}
	if percent > respond.MaxDuty {
		percent = respond.MaxDuty
	}
	c.pwm.Set(c.ch, c.pwm.Top()*uint32(percent)/respond.MaxDuty)
	return nil
}

type rgb struct {
	r, g, b *channel
}

func (c rgb) SetRGB(r, g, b int) error {
	c.r.SetDuty(r)
	c.g.SetDuty(g)
	c.b.SetDuty(b)
	return nil
}

type indicator struct{}

func (indicator) SetLocked(locked bool) error {
	PIN_LOCK_LED.Set(locked)
	PIN_UNLOCK_LED.Set(!locked)
	return nil
}

// lcd is a character display on a PCF8574 I2C backpack.
type lcd struct {
	bus *machine.I2C
	dev hd44780i2c.Device
}

func (d *lcd) Init() error {
	if err := d.bus.Tx(LCD_ADDRESS, nil, make([]byte, 1)); err != nil {
		return display.ErrUnavailable
	}
	d.dev = hd44780i2c.New(d.bus, LCD_ADDRESS)
	if err := d.dev.Configure(hd44780i2c.Config{Width: LCD_WIDTH, Height: LCD_HEIGHT}); err != nil {
		return display.ErrUnavailable
	}
	return nil
}

func (d *lcd) Height() int { return LCD_HEIGHT }

func (d *lcd) Show(lines []string) error {
	for i, line := range lines {
		if i >= LCD_HEIGHT {
			break
		}
		d.dev.SetCursor(0, uint8(i))
		d.dev.Print([]byte(line))
	}
	return nil
}
