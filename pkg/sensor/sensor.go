// Package sensor converts raw ADC and GPIO readings into physical values.
// Arithmetic is float32 so the same code runs on the microcontroller.
package sensor

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/itohio/keyclimate/pkg/config"
)

// ErrOutOfRange is returned for readings at the rails (open or shorted probe).
var ErrOutOfRange = errors.New("reading out of range")

const kelvin = 273.15

// ADC is a single analog channel. machine.ADC satisfies it.
type ADC interface {
	Get() uint16
}

// Average reads n samples and returns their mean.
func Average(adc ADC, n int) uint16 {
	if n <= 1 {
		return adc.Get()
	}
	var sum uint32
	for i := 0; i < n; i++ {
		sum += uint32(adc.Get())
	}
	return uint16(sum / uint32(n))
}

// Thermistor is an NTC in a voltage divider, evaluated with the beta model.
type Thermistor struct {
	SeriesResistance   float32 // Ω
	NominalResistance  float32 // Ω at NominalTemperature
	NominalTemperature float32 // °C
	Beta               float32
	ADCMax             float32
	// PullUp means the series resistor goes to Vcc and the NTC to ground.
	// Otherwise the NTC sits on the high side.
	PullUp bool
}

// DefaultThermistor is a 10k/3950 NTC on the high side of a 10k divider read by a 12-bit ADC.
func DefaultThermistor() Thermistor {
	return Thermistor{
		SeriesResistance:   10000,
		NominalResistance:  10000,
		NominalTemperature: 25,
		Beta:               3950,
		ADCMax:             4095,
	}
}

// ThermistorFromConfig builds a thermistor model from configuration.
func ThermistorFromConfig(cfg config.SensorsConfig) Thermistor {
	return Thermistor{
		SeriesResistance:   float32(cfg.Thermistor.SeriesResistance),
		NominalResistance:  float32(cfg.Thermistor.NominalResistance),
		NominalTemperature: float32(cfg.Thermistor.NominalTemperature),
		Beta:               float32(cfg.Thermistor.Beta),
		ADCMax:             float32(cfg.ADCMax),
		PullUp:             cfg.Thermistor.Wiring == "pullup",
	}
}

// Resistance returns the NTC resistance for a raw reading.
func (t Thermistor) Resistance(raw uint16) (float32, error) {
	r := float32(raw)
	if raw == 0 || r >= t.ADCMax {
		return 0, fmt.Errorf("thermistor raw %d: %w", raw, ErrOutOfRange)
	}
	if t.PullUp {
		return t.SeriesResistance * r / (t.ADCMax - r), nil
	}
	return t.SeriesResistance * (t.ADCMax/r - 1), nil
}

// Celsius converts a raw reading to °C.
func (t Thermistor) Celsius(raw uint16) (float32, error) {
	r, err := t.Resistance(raw)
	if err != nil {
		return 0, err
	}
	invT := 1/(t.NominalTemperature+kelvin) + math32.Log(r/t.NominalResistance)/t.Beta
	return 1/invT - kelvin, nil
}

// LM35 converts a 10 mV/°C sensor reading with exponential smoothing.
// The first sample seeds the filter.
type LM35 struct {
	Alpha  float32 // weight of the newest sample
	VRef   float32 // V
	ADCMax float32

	value  float32
	primed bool
}

// NewLM35 returns a filter with the given smoothing weight.
func NewLM35(alpha, vref, adcMax float32) *LM35 {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return &LM35{Alpha: alpha, VRef: vref, ADCMax: adcMax}
}

// Update feeds one raw reading and returns the filtered temperature.
func (l *LM35) Update(raw uint16) float32 {
	mv := float32(raw) * l.VRef * 1000 / l.ADCMax
	c := mv / 10
	if !l.primed {
		l.value = c
		l.primed = true
		return c
	}
	l.value += l.Alpha * (c - l.value)
	return l.value
}

// Value returns the last filtered temperature.
func (l *LM35) Value() float32 {
	return l.value
}

// Potentiometer maps a wiper reading onto a brightness level.
type Potentiometer struct {
	VRef   float32
	ADCMax float32
}

// Volts returns the wiper voltage.
func (p Potentiometer) Volts(raw uint16) float32 {
	return p.Normalized(raw) * p.VRef
}

// Normalized returns the wiper position in [0,1].
func (p Potentiometer) Normalized(raw uint16) float32 {
	if p.ADCMax <= 0 {
		return 0
	}
	v := float32(raw) / p.ADCMax
	return math32.Min(math32.Max(v, 0), 1)
}

// Percent returns the wiper position in [0,100].
func (p Potentiometer) Percent(raw uint16) int {
	return int(p.Normalized(raw) * 100)
}

// PIR interprets a motion sensor output level.
type PIR struct {
	ActiveLow bool
}

// Present reports motion for the given pin level.
func (p PIR) Present(level bool) bool {
	return level != p.ActiveLow
}
