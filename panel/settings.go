package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/keyclimate/pkg/device"
)

// showSettingsDialog displays a settings dialog with tabs for the configuration and the shell.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createShellTab(state),
		createSerialTab(state),
		createSimulationTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

func (state *appState) saveConfig() {
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

// createShellTab creates a console that sends commands to the controller shell.
func createShellTab(state *appState) *container.TabItem {
	if state.console == nil {
		state.console = widget.NewMultiLineEntry()
		state.console.Wrapping = fyne.TextWrapWord
	}

	cmd := widget.NewEntry()
	cmd.SetPlaceHolder("status, SET_DELAY 500, POT_READ, ...")
	send := func() {
		if state.device == nil || !state.device.IsConnected() {
			dialog.ShowError(device.ErrNotConnected, state.window)
			return
		}
		if err := state.device.Send(cmd.Text); err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		state.appendConsole("> " + cmd.Text)
		cmd.SetText("")
	}
	cmd.OnSubmitted = func(string) { send() }

	input := container.NewBorder(nil, nil, nil, widget.NewButton("Send", send), cmd)
	return container.NewTabItem("Shell", container.NewBorder(nil, input, nil, nil, state.console))
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := device.Ports()
	portOptions := []string{}
	portMap := make(map[string]string)

	if err == nil {
		for _, port := range ports {
			portOptions = append(portOptions, port.Description)
			portMap[port.Description] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(state.cfg.Serial.Baud))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
			{Text: "Baud Rate", Widget: baudEntry},
		},
		OnSubmit: func() {
			if portSelect.Selected != "" {
				selected := portMap[portSelect.Selected]
				if selected == "" {
					selected = portSelect.Selected
				}
				state.cfg.Serial.Port = selected
			}
			if baud, err := strconv.Atoi(baudEntry.Text); err == nil && baud > 0 {
				state.cfg.Serial.Baud = baud
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("Serial", form)
}

// createSimulationTab creates the simulated board configuration tab.
// Changes apply on the next connect.
func createSimulationTab(state *appState) *container.TabItem {
	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Sim.NoiseLevel))

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Sim.SampleRate.String())

	credentialEntry := widget.NewPasswordEntry()
	credentialEntry.SetText(state.cfg.Gate.Credential)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Noise Level (°C)", Widget: noiseEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
			{Text: "Credential", Widget: credentialEntry},
		},
		OnSubmit: func() {
			if nl, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil && nl >= 0 {
				state.cfg.Sim.NoiseLevel = nl
			}
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil && sr > 0 {
				state.cfg.Sim.SampleRate = sr
			}
			if credentialEntry.Text != "" {
				state.cfg.Gate.Credential = credentialEntry.Text
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("Simulation", form)
}
