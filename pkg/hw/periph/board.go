package periph

import (
	"errors"
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/keypad"
	"github.com/itohio/keyclimate/pkg/sensor"
)

// Board is the set of peripherals opened on the host.
type Board struct {
	Peripherals control.Peripherals
	// Pot is nil when no potentiometer channel is configured.
	Pot *sensor.Knob

	outputs []*PWM
	adc     *converter
	bus     i2c.BusCloser
}

type pinFunc func(name string) (gpio.PinIO, error)

type analogFunc func(name string) (voltReader, error)

// Open initialises periph and claims every pin named in cfg. The
// returned peripherals have no display; callers attach their own.
func Open(cfg *config.Config) (*Board, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}

	var (
		bus    i2c.BusCloser
		adc    *converter
		inputs analogFunc
	)
	hw := cfg.Hardware
	if hw.ThermistorADC != "" || hw.PotADC != "" {
		var err error
		bus, err = i2creg.Open(hw.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("i2c %q: %w", hw.I2CBus, err)
		}
		adc, err = newConverter(bus, cfg.Sensors.VRef)
		if err != nil {
			bus.Close()
			return nil, err
		}
		inputs = adc.channel
	}

	b, err := build(cfg, lookup, inputs)
	if err != nil {
		if adc != nil {
			_ = adc.Halt()
		}
		if bus != nil {
			bus.Close()
		}
		return nil, err
	}
	b.adc = adc
	b.bus = bus
	return b, nil
}

func build(cfg *config.Config, pin pinFunc, inputs analogFunc) (*Board, error) {
	hw := cfg.Hardware
	b := &Board{}

	optional := func(name string) (gpio.PinIO, error) {
		if name == "" {
			return nil, nil
		}
		return pin(name)
	}

	pins := func(names []string) ([]gpio.PinIO, error) {
		out := make([]gpio.PinIO, 0, len(names))
		for _, n := range names {
			p, err := pin(n)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	}

	if len(cfg.Keypad.Rows) > 0 {
		rows, err := pins(cfg.Keypad.Rows)
		if err != nil {
			return nil, fmt.Errorf("keypad: %w", err)
		}
		cols, err := pins(cfg.Keypad.Cols)
		if err != nil {
			return nil, fmt.Errorf("keypad: %w", err)
		}
		m, err := NewMatrix(rows, cols)
		if err != nil {
			return nil, err
		}
		kp, err := keypad.New(m, cfg.Keypad)
		if err != nil {
			return nil, err
		}
		b.Peripherals.Keypad = kp
	}

	if p, err := optional(hw.PIR); err != nil {
		return nil, err
	} else if p != nil {
		pir, err := NewPIR(p, false)
		if err != nil {
			return nil, err
		}
		b.Peripherals.Presence = pir
	}

	pwm := func(name string) (*PWM, error) {
		p, err := optional(name)
		if err != nil || p == nil {
			return nil, err
		}
		out, err := NewPWM(p, hw.PWMFrequency)
		if err != nil {
			return nil, err
		}
		b.outputs = append(b.outputs, out)
		return out, nil
	}

	fan, err := pwm(hw.Fan)
	if err != nil {
		return nil, err
	}
	if fan != nil {
		b.Peripherals.Fan = fan
	}

	var rgb RGB
	for _, ch := range []struct {
		name string
		dst  **PWM
	}{{hw.Red, &rgb.R}, {hw.Green, &rgb.G}, {hw.Blue, &rgb.B}} {
		if *ch.dst, err = pwm(ch.name); err != nil {
			return nil, err
		}
	}
	if rgb.R != nil && rgb.G != nil && rgb.B != nil {
		b.Peripherals.RGB = &rgb
	} else if rgb.R != nil || rgb.G != nil || rgb.B != nil {
		return nil, errors.New("rgb needs red, green and blue pins")
	}

	lock, err := optional(hw.LockLED)
	if err != nil {
		return nil, err
	}
	unlock, err := optional(hw.UnlockLED)
	if err != nil {
		return nil, err
	}
	if lock != nil || unlock != nil {
		b.Peripherals.Indicator = &Indicator{Lock: lock, Unlock: unlock}
	}

	if inputs != nil && hw.ThermistorADC != "" {
		in, err := inputs(hw.ThermistorADC)
		if err != nil {
			return nil, err
		}
		th, err := sensor.NewThermometer(NewAnalog(in, cfg.Sensors.VRef, cfg.Sensors.ADCMax), cfg.Sensors)
		if err != nil {
			return nil, err
		}
		b.Peripherals.Thermometer = th
	}
	if inputs != nil && hw.PotADC != "" {
		in, err := inputs(hw.PotADC)
		if err != nil {
			return nil, err
		}
		b.Pot = &sensor.Knob{
			ADC: NewAnalog(in, cfg.Sensors.VRef, cfg.Sensors.ADCMax),
			Pot: sensor.Potentiometer{VRef: float32(cfg.Sensors.VRef), ADCMax: float32(cfg.Sensors.ADCMax)},
		}
		b.Peripherals.Brightness = b.Pot
	}

	return b, nil
}

// Close turns every output off and releases the ADC.
func (b *Board) Close() error {
	var errs []error
	for _, out := range b.outputs {
		errs = append(errs, out.SetDuty(0))
	}
	if ind, ok := b.Peripherals.Indicator.(*Indicator); ok {
		if ind.Lock != nil {
			errs = append(errs, ind.Lock.Out(gpio.Low))
		}
		if ind.Unlock != nil {
			errs = append(errs, ind.Unlock.Out(gpio.Low))
		}
	}
	if b.adc != nil {
		errs = append(errs, b.adc.Halt())
	}
	if b.bus != nil {
		errs = append(errs, b.bus.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Printf("periph: close: %v", err)
		return err
	}
	return nil
}
