package main

import (
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/keyclimate/pkg/keypad"
)

// maxConsoleLines bounds the shell console history.
const maxConsoleLines = 200

var lcdBackground = color.NRGBA{R: 0x2e, G: 0x5e, B: 0x2e, A: 0xff}

// createLCD creates the character display view.
func createLCD(state *appState) fyne.CanvasObject {
	rows := container.NewVBox()
	for i := range state.lcd {
		t := canvas.NewText(strings.Repeat(" ", state.cfg.Display.Width), color.White)
		t.TextStyle = fyne.TextStyle{Monospace: true}
		t.TextSize = 18
		state.lcd[i] = t
		rows.Add(t)
	}
	bg := canvas.NewRectangle(lcdBackground)
	return container.NewStack(bg, container.NewPadded(rows))
}

// createKeypad creates the 4x4 keypad. Keys reach the simulated board only.
func createKeypad(state *appState) fyne.CanvasObject {
	grid := container.NewGridWithColumns(keypad.Cols)
	for _, key := range keyLabels() {
		key := key
		btn := widget.NewButton(string(key), func() {
			if state.mock != nil {
				state.mock.Board().Press(string(key))
			}
		})
		btn.Disable()
		state.keys = append(state.keys, btn)
		grid.Add(btn)
	}
	return grid
}

// createSensors creates the simulated sensor inputs.
func createSensors(state *appState) fyne.CanvasObject {
	sim := state.cfg.Sim

	tempLabel := widget.NewLabel(fmt.Sprintf("Temperature: %.1f°C", sim.Temperature))
	temp := widget.NewSlider(-10, 60)
	temp.Step = 0.5
	temp.SetValue(sim.Temperature)
	temp.OnChanged = func(v float64) {
		tempLabel.SetText(fmt.Sprintf("Temperature: %.1f°C", v))
		if state.mock != nil {
			state.mock.Board().SetTemperature(v)
		}
	}

	brightLabel := widget.NewLabel(fmt.Sprintf("Potentiometer: %.0f%%", sim.Brightness*100))
	bright := widget.NewSlider(0, 1)
	bright.Step = 0.01
	bright.SetValue(sim.Brightness)
	bright.OnChanged = func(v float64) {
		brightLabel.SetText(fmt.Sprintf("Potentiometer: %.0f%%", v*100))
		if state.mock != nil {
			state.mock.Board().SetBrightness(v)
		}
	}

	pir := widget.NewCheck("Motion (PIR)", func(on bool) {
		if state.mock != nil {
			state.mock.Board().SetPresence(on)
		}
	})
	pir.SetChecked(sim.Presence)
	pir.Disable()

	fault := widget.NewCheck("Thermistor disconnected", func(on bool) {
		if state.mock != nil {
			state.mock.Board().SetProbeFault(on)
		}
	})
	fault.Disable()

	state.sensors = append(state.sensors, pir, fault)

	return container.NewVBox(tempLabel, temp, brightLabel, bright, pir, fault)
}

// appendConsole adds a shell reply to the console, keeping the newest lines.
func (state *appState) appendConsole(text string) {
	if state.console == nil {
		return
	}
	lines := strings.Split(state.console.Text, "\n")
	if state.console.Text == "" {
		lines = lines[:0]
	}
	lines = append(lines, text)
	if len(lines) > maxConsoleLines {
		lines = lines[len(lines)-maxConsoleLines:]
	}
	state.console.SetText(strings.Join(lines, "\n"))
}
