package periph

import (
	"fmt"
	"log"
	"strings"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// voltReader is one analog input.
type voltReader interface {
	Read() (analog.Sample, error)
}

// Analog adapts a voltage input to a raw ADC channel so the sensor
// arithmetic can stay in counts. A failed read returns 0, which the
// thermistor treats as a faulted probe.
type Analog struct {
	in     voltReader
	vref   float64
	adcMax float64
}

// NewAnalog scales readings of in so that vref maps to adcMax.
func NewAnalog(in voltReader, vref float64, adcMax int) *Analog {
	return &Analog{in: in, vref: vref, adcMax: float64(adcMax)}
}

// Get implements sensor.ADC.
func (a *Analog) Get() uint16 {
	s, err := a.in.Read()
	if err != nil {
		log.Printf("periph: adc read: %v", err)
		return 0
	}
	v := float64(s.V) / float64(physic.Volt)
	if v <= 0 || a.vref <= 0 {
		return 0
	}
	if v >= a.vref {
		return uint16(a.adcMax)
	}
	return uint16(v/a.vref*a.adcMax + 0.5)
}

// Volts returns the input voltage, 0 on error.
func (a *Analog) Volts() float64 {
	s, err := a.in.Read()
	if err != nil {
		return 0
	}
	return float64(s.V) / float64(physic.Volt)
}

func parseChannel(name string) (ads1x15.Channel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "A0":
		return ads1x15.Channel0, nil
	case "A1":
		return ads1x15.Channel1, nil
	case "A2":
		return ads1x15.Channel2, nil
	case "A3":
		return ads1x15.Channel3, nil
	}
	return 0, fmt.Errorf("unknown adc channel %q", name)
}

// converter owns the ADS1115 and its opened channels.
type converter struct {
	dev  *ads1x15.Dev
	vref physic.ElectricPotential
}

func newConverter(bus i2c.Bus, vref float64) (*converter, error) {
	dev, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("ads1115: %w", err)
	}
	return &converter{dev: dev, vref: physic.ElectricPotential(vref * float64(physic.Volt))}, nil
}

func (c *converter) channel(name string) (voltReader, error) {
	ch, err := parseChannel(name)
	if err != nil {
		return nil, err
	}
	pin, err := c.dev.PinForChannel(ch, c.vref, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("ads1115 %s: %w", name, err)
	}
	return pin, nil
}

func (c *converter) Halt() error {
	return c.dev.Halt()
}
