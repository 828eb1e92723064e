//go:build tinygo

//go:generate tinygo flash -target=pico

package main

import (
	"context"
	"machine"
	"time"

	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/display"
	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/keypad"
	"github.com/itohio/keyclimate/pkg/respond"
	"github.com/itohio/keyclimate/pkg/sensor"
	"github.com/itohio/keyclimate/pkg/settings"
	"github.com/itohio/keyclimate/pkg/shell"
)

var uart = machine.UART0

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	keys := matrix{}
	keys.configure()

	PIN_PIR.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	PIN_LOCK_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_UNLOCK_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	// Configure ADCs with highest resolution
	machine.InitADC()
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	adcTherm := machine.ADC{Pin: PIN_THERMISTOR}
	adcPot := machine.ADC{Pin: PIN_POT}
	adcTherm.Configure(adcConfig)
	adcPot.Configure(adcConfig)

	// machine.ADC scales every reading to 16 bits regardless of resolution
	therm := sensor.DefaultThermistor()
	therm.ADCMax = 0xffff
	knob := &sensor.Knob{
		ADC: adcPot,
		Pot: sensor.Potentiometer{VRef: ADC_REFERENCE_MV / 1000.0, ADCMax: 0xffff},
	}

	fan, colour := configurePWM()

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{SDA: PIN_SDA, SCL: PIN_SCL}); err != nil {
		println("i2c config error:", err.Error())
	}

	s := settings.New(settings.Defaults())
	g := gate.New(gate.Plain(CREDENTIAL), gateOptions())
	loop := control.New(g, s, control.Peripherals{
		Keypad:      keypad.NewScanner(keys, keypad.DefaultLayout, DEBOUNCE_MS*time.Millisecond, RELEASE_MS*time.Millisecond),
		Thermometer: &sensor.NTCProbe{ADC: adcTherm, Thermistor: therm, Samples: ADC_SAMPLES},
		Presence:    pir{},
		Brightness:  knob,
		Fan:         fan,
		RGB:         colour,
		Indicator:   indicator{},
		Display:     display.New(&lcd{bus: i2c}, LCD_WIDTH),
	}, control.Options{
		Period:  LOOP_PERIOD_MS * time.Millisecond,
		Policy:  respond.Policy{PresenceGating: true, Brightness: true},
		Monitor: uart,
	})

	sh := shell.New(s, knob)
	ctx := context.Background()
	go sh.Report(ctx, uart)
	go processSerial(sh)

	println("keyclimate ready")
	loop.Run(ctx)
}

func gateOptions() gate.Options {
	opts := gate.DefaultOptions()
	opts.Capacity = PIN_CAPACITY
	return opts
}

func configurePWM() (*channel, rgb) {
	period := uint64(1e9 / PWM_FREQUENCY_HZ)
	for _, pwm := range []PWM{PWM_FAN, PWM_RGB, PWM_BLUE} {
		if err := pwm.Configure(machine.PWMConfig{Period: period}); err != nil {
			println("PWM config error:", err.Error())
		}
	}

	open := func(pwm PWM, pin machine.Pin, name string) *channel {
		ch, err := newChannel(pwm, pin)
		if err != nil {
			println("PWM channel error", name, ":", err.Error())
			return nil
		}
		return ch
	}

	fan := open(PWM_FAN, PIN_FAN, "fan")
	colour := rgb{
		r: open(PWM_RGB, PIN_RED, "red"),
		g: open(PWM_RGB, PIN_GREEN, "green"),
		b: open(PWM_BLUE, PIN_BLUE, "blue"),
	}
	return fan, colour
}

// processSerial feeds UART bytes to the shell and writes its replies.
func processSerial(sh *shell.Shell) {
	var line shell.LineBuffer
	for {
		for uart.Buffered() > 0 {
			data, err := uart.ReadByte()
			if err != nil {
				break
			}
			cmd, ok := line.Push(data)
			if !ok {
				continue
			}
			if reply, ok := sh.Exec(cmd); ok {
				uart.Write([]byte(reply + "\n"))
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
}
