package sensor

import (
	"fmt"

	"github.com/itohio/keyclimate/pkg/config"
)

// Thermometer reports the ambient temperature.
type Thermometer interface {
	Celsius() (float64, error)
}

// NTCProbe samples a thermistor channel.
type NTCProbe struct {
	ADC        ADC
	Thermistor Thermistor
	Samples    int
}

// Celsius implements Thermometer.
func (p *NTCProbe) Celsius() (float64, error) {
	c, err := p.Thermistor.Celsius(Average(p.ADC, p.Samples))
	return float64(c), err
}

// LM35Probe samples an LM35 channel through its smoothing filter.
type LM35Probe struct {
	ADC     ADC
	Filter  *LM35
	Samples int
}

// Celsius implements Thermometer.
func (p *LM35Probe) Celsius() (float64, error) {
	return float64(p.Filter.Update(Average(p.ADC, p.Samples))), nil
}

// NewThermometer picks the probe type configured in cfg.
func NewThermometer(adc ADC, cfg config.SensorsConfig) (Thermometer, error) {
	switch cfg.Kind {
	case "", "ntc":
		return &NTCProbe{ADC: adc, Thermistor: ThermistorFromConfig(cfg), Samples: cfg.Samples}, nil
	case "lm35":
		return &LM35Probe{
			ADC:     adc,
			Filter:  NewLM35(float32(cfg.Smoothing), float32(cfg.VRef), float32(cfg.ADCMax)),
			Samples: cfg.Samples,
		}, nil
	}
	return nil, fmt.Errorf("unknown temperature sensor %q", cfg.Kind)
}

// Knob reads a potentiometer channel.
type Knob struct {
	ADC ADC
	Pot Potentiometer
}

// Level returns the wiper position in [0,1].
func (k *Knob) Level() float64 {
	return float64(k.Pot.Normalized(k.ADC.Get()))
}

// Volts returns the wiper voltage.
func (k *Knob) Volts() float64 {
	return float64(k.Pot.Volts(k.ADC.Get()))
}
