package periph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/keypad"
)

type fakeInput struct {
	v   physic.ElectricPotential
	err error
}

func (f *fakeInput) Read() (analog.Sample, error) {
	return analog.Sample{V: f.v}, f.err
}

type pinSet map[string]*gpiotest.Pin

func (s pinSet) lookup(name string) (gpio.PinIO, error) {
	p, ok := s[name]
	if !ok {
		p = &gpiotest.Pin{N: name}
		s[name] = p
	}
	return p, nil
}

func TestDuty(t *testing.T) {
	tests := []struct {
		percent int
		want    gpio.Duty
	}{
		{0, 0},
		{100, gpio.DutyMax},
		{50, gpio.DutyMax / 2},
		{-5, 0},
		{150, gpio.DutyMax},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.percent), func(t *testing.T) {
			assert.Equal(t, tt.want, Duty(tt.percent))
		})
	}
}

func TestMatrix(t *testing.T) {
	set := pinSet{}
	var rows, cols []gpio.PinIO
	for i := 0; i < keypad.Rows; i++ {
		p, _ := set.lookup(fmt.Sprintf("R%d", i))
		rows = append(rows, p)
	}
	for i := 0; i < keypad.Cols; i++ {
		p, _ := set.lookup(fmt.Sprintf("C%d", i))
		cols = append(cols, p)
	}

	m, err := NewMatrix(rows, cols)
	require.NoError(t, err)
	assert.Equal(t, gpio.High, set["R0"].L, "rows idle high")
	assert.Equal(t, gpio.PullUp, set["C0"].P)
	set["C0"].L = gpio.High
	assert.False(t, m.Sense(0))

	m.Drive(2, true)
	assert.Equal(t, gpio.Low, set["R2"].L)
	m.Drive(2, false)
	assert.Equal(t, gpio.High, set["R2"].L)

	set["C3"].L = gpio.Low
	assert.True(t, m.Sense(3))

	_, err = NewMatrix(rows[:3], cols)
	assert.Error(t, err)
}

func TestPIR(t *testing.T) {
	tests := []struct {
		name      string
		activeLow bool
		level     gpio.Level
		want      bool
	}{
		{"active high on", false, gpio.High, true},
		{"active high off", false, gpio.Low, false},
		{"active low on", true, gpio.Low, true},
		{"active low off", true, gpio.High, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pin := &gpiotest.Pin{N: "PIR"}
			p, err := NewPIR(pin, tt.activeLow)
			require.NoError(t, err)
			pin.L = tt.level
			assert.Equal(t, tt.want, p.Present())
		})
	}
}

func TestOutputs(t *testing.T) {
	r, g, b := &gpiotest.Pin{N: "R"}, &gpiotest.Pin{N: "G"}, &gpiotest.Pin{N: "B"}
	newPWM := func(p gpio.PinIO) *PWM {
		out, err := NewPWM(p, 1000)
		require.NoError(t, err)
		return out
	}
	rgb := &RGB{R: newPWM(r), G: newPWM(g), B: newPWM(b)}
	assert.Equal(t, 1000*physic.Hertz, r.F)

	require.NoError(t, rgb.SetRGB(100, 0, 25))
	assert.Equal(t, gpio.DutyMax, r.D)
	assert.Equal(t, gpio.Duty(0), g.D)
	assert.Equal(t, Duty(25), b.D)

	lock, unlock := &gpiotest.Pin{N: "LOCK"}, &gpiotest.Pin{N: "UNLOCK"}
	ind := &Indicator{Lock: lock, Unlock: unlock}
	require.NoError(t, ind.SetLocked(true))
	assert.Equal(t, gpio.High, lock.L)
	assert.Equal(t, gpio.Low, unlock.L)
	require.NoError(t, ind.SetLocked(false))
	assert.Equal(t, gpio.Low, lock.L)
	assert.Equal(t, gpio.High, unlock.L)

	only := &Indicator{Unlock: unlock}
	assert.NoError(t, only.SetLocked(true))
}

func TestAnalog(t *testing.T) {
	tests := []struct {
		name string
		in   fakeInput
		want uint16
	}{
		{"one volt", fakeInput{v: physic.Volt}, 1241},
		{"zero", fakeInput{v: 0}, 0},
		{"negative", fakeInput{v: -10 * physic.MilliVolt}, 0},
		{"above reference", fakeInput{v: 5 * physic.Volt}, 4095},
		{"read error", fakeInput{v: physic.Volt, err: errors.New("nack")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalog(&tt.in, 3.3, 4095)
			assert.Equal(t, tt.want, a.Get())
		})
	}

	a := NewAnalog(&fakeInput{v: 1250 * physic.MilliVolt}, 3.3, 4095)
	assert.InDelta(t, 1.25, a.Volts(), 1e-9)
}

func TestParseChannel(t *testing.T) {
	for _, name := range []string{"A0", "a1", " A2", "A3"} {
		_, err := parseChannel(name)
		assert.NoError(t, err, name)
	}
	_, err := parseChannel("A4")
	assert.Error(t, err)
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	set := pinSet{}
	inputs := map[string]*fakeInput{
		"A0": {v: 1650 * physic.MilliVolt},
		"A1": {v: 3300 * physic.MilliVolt},
	}
	analogs := func(name string) (voltReader, error) {
		in, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("no channel %s", name)
		}
		return in, nil
	}

	b, err := build(cfg, set.lookup, analogs)
	require.NoError(t, err)

	p := b.Peripherals
	assert.NotNil(t, p.Keypad)
	assert.NotNil(t, p.Presence)
	assert.NotNil(t, p.Fan)
	assert.NotNil(t, p.RGB)
	assert.NotNil(t, p.Indicator)
	require.NotNil(t, p.Thermometer)
	require.NotNil(t, p.Brightness)
	assert.Nil(t, p.Display)

	c, err := p.Thermometer.Celsius()
	require.NoError(t, err)
	assert.InDelta(t, 25, c, 0.5, "divider midpoint is the nominal temperature")
	assert.InDelta(t, 1.0, p.Brightness.Level(), 1e-3)

	require.NoError(t, p.Fan.SetDuty(40))
	assert.Equal(t, Duty(40), set[cfg.Hardware.Fan].D)

	require.NoError(t, b.Close())
	assert.Equal(t, gpio.Duty(0), set[cfg.Hardware.Fan].D)
	assert.Equal(t, gpio.Low, set[cfg.Hardware.LockLED].L)
}

func TestBuild_Optional(t *testing.T) {
	cfg := config.Default()
	cfg.Keypad.Rows = nil
	cfg.Hardware.PIR = ""
	cfg.Hardware.Fan = ""
	cfg.Hardware.LockLED = ""
	cfg.Hardware.UnlockLED = ""

	b, err := build(cfg, pinSet{}.lookup, nil)
	require.NoError(t, err)
	p := b.Peripherals
	assert.Nil(t, p.Keypad)
	assert.Nil(t, p.Presence)
	assert.Nil(t, p.Fan)
	assert.Nil(t, p.Indicator)
	assert.Nil(t, p.Thermometer)
	assert.Nil(t, b.Pot)
	assert.NotNil(t, p.RGB)
	assert.NoError(t, b.Close())
}

func TestBuild_Errors(t *testing.T) {
	missing := func(name string) (gpio.PinIO, error) {
		return nil, fmt.Errorf("%s: %w", name, ErrNoPin)
	}
	_, err := build(config.Default(), missing, nil)
	assert.ErrorIs(t, err, ErrNoPin)

	cfg := config.Default()
	cfg.Hardware.Green = ""
	_, err = build(cfg, pinSet{}.lookup, nil)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Keypad.Scanner = "bogus"
	_, err = build(cfg, pinSet{}.lookup, nil)
	assert.Error(t, err)
}
