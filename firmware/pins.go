//go:build tinygo

package main

import "machine"

const (
	// Loop configuration
	LOOP_PERIOD_MS = 50 // keypad and sensor polling period
	ADC_SAMPLES    = 8  // raw readings averaged per temperature sample
	DEBOUNCE_MS    = 20 // keypad press debounce
	RELEASE_MS     = 10 // keypad release settle time

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// PWM configuration
	PWM_FREQUENCY_HZ = 5000

	// Display configuration
	LCD_ADDRESS = 0x27 // PCF8574 backpack
	LCD_WIDTH   = 16
	LCD_HEIGHT  = 2

	// Gate configuration
	CREDENTIAL   = "1234#"
	PIN_CAPACITY = 5

	// Serial configuration
	// Telemetry: "T,<unix_micros>,<temp>,<brightness>,<locked>,<pir>,<fan>,<r>,<g>,<b>,<mode>\n"
	// is ~60 bytes; at the default 500 ms delay that is 120 bytes/sec.
	UART_BAUD_RATE = 115200
)

var (
	// Keypad matrix: rows are driven low, columns have pull-ups
	PIN_ROWS = [4]machine.Pin{machine.GP6, machine.GP7, machine.GP8, machine.GP9}
	PIN_COLS = [4]machine.Pin{machine.GP10, machine.GP11, machine.GP12, machine.GP13}

	PIN_PIR = machine.GP14

	// PWM outputs and their slices
	PIN_FAN   = machine.GP16 // PWM0 A
	PIN_RED   = machine.GP18 // PWM1 A
	PIN_GREEN = machine.GP19 // PWM1 B
	PIN_BLUE  = machine.GP20 // PWM2 A

	PWM_FAN  = machine.PWM0
	PWM_RGB  = machine.PWM1
	PWM_BLUE = machine.PWM2

	// Lock state LEDs
	PIN_LOCK_LED   = machine.GP21
	PIN_UNLOCK_LED = machine.GP22

	// ADC pins
	PIN_THERMISTOR = machine.ADC0
	PIN_POT        = machine.ADC1

	// LCD on I2C0
	PIN_SDA = machine.GP4
	PIN_SCL = machine.GP5
)
