package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/device"
	"github.com/itohio/keyclimate/pkg/display"
	"github.com/itohio/keyclimate/pkg/history"
	"github.com/itohio/keyclimate/pkg/scope"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Run a simulated controller instead of using the serial port")
		smoothFlag = flag.Int("smooth", 0, "Temperature moving average window in samples (0 = disabled)")
		windowFlag = flag.Duration("window", history.DefaultWindow, "Trend window")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	application := app.NewWithID("com.itohio.keyclimate")
	window := application.NewWindow("KeyClimate Panel")
	window.Resize(fyne.NewSize(1200, 700))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		useMock:    *mockFlag,
		smooth:     *smoothFlag,
		history:    history.New(*windowFlag),
		presenter:  display.New(nil, cfg.Display.Width),
	}
	state.trend = scope.New(*windowFlag)
	state.watchHistory()

	toolbar := createToolbar(state)
	side := container.NewVBox(
		createLCD(state),
		createKeypad(state),
		widget.NewSeparator(),
		createSensors(state),
	)
	state.outputs = widget.NewLabel(outputsText(control.Status{}))
	state.led = canvas.NewRectangle(ledColor(control.Status{}))
	state.led.SetMinSize(fyne.NewSize(24, 24))
	status := container.NewHBox(state.led, state.outputs)

	content := container.NewBorder(
		toolbar,
		status,
		side,
		nil,
		state.trend,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		state.disconnect()
	})
	window.ShowAndRun()
}

// chain tracks the goroutines fed by a connected device for graceful shutdown.
type chain struct {
	device      device.Device
	historyDone chan struct{}
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	window     fyne.Window
	useMock    bool
	smooth     int

	device    device.Device
	mock      *device.Mock
	chain     *chain
	history   *history.Window
	presenter *display.Presenter

	trend      *scope.TrendWidget
	connectBtn *widget.Button
	lcd        [3]*canvas.Text
	keys       []*widget.Button
	sensors    []fyne.Disableable
	outputs    *widget.Label
	led        *canvas.Rectangle
	console    *widget.Entry

	// Throttling for UI updates
	lastUpdate time.Time
	updateMu   sync.Mutex
}

// createToolbar creates the toolbar with Connect and Settings buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("Connect", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})
	mode := "serial " + state.cfg.Serial.Port
	if state.useMock {
		mode = "simulation"
	}
	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.connectBtn, settingsBtn),
		widget.NewLabel(mode),
		nil,
	)
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.device != nil && state.device.IsConnected() {
		state.disconnect()
		state.connectBtn.SetText("Connect")
		state.connectBtn.SetIcon(theme.LoginIcon())
		return
	}

	var dev device.Device
	if state.useMock {
		m, err := device.NewMock(state.cfg)
		if err != nil {
			dialog.ShowError(fmt.Errorf("failed to create simulation: %w", err), state.window)
			return
		}
		state.mock = m
		dev = m
	} else {
		dev = device.FromConfig(state.cfg.Serial)
	}

	if err := dev.Connect(); err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		state.mock = nil
		return
	}
	state.device = dev
	if state.useMock {
		fmt.Println("Connected to simulated controller")
	} else {
		fmt.Printf("Connected to serial port: %s\n", state.cfg.Serial.Port)
	}
	state.connectBtn.SetText("Disconnect")
	state.connectBtn.SetIcon(theme.LogoutIcon())
	state.setInputsEnabled(state.useMock)

	state.startChain(dev)
}

// watchHistory pushes history updates to the trend widget, throttled to ~30 FPS.
func (state *appState) watchHistory() {
	const updateInterval = 33 * time.Millisecond
	state.history.OnUpdate(func(points []history.Point, _ []float64) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdate) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdate = now
		state.updateMu.Unlock()

		trend := state.history.Trend()
		fyne.Do(func() {
			state.trend.UpdateData(points, trend)
		})
	})
}

// startChain wires device lines through the converters into the history window.
func (state *appState) startChain(dev device.Device) {
	state.history.Reset()

	statuses := device.Statuses(dev.Lines(), func(l device.Line) {
		fyne.Do(func() {
			state.appendConsole(l.Text)
		})
	})

	// Tee statuses: one branch refreshes the LCD and outputs, the other feeds history
	forHistory := make(chan control.Status, history.DefaultBufferSize)
	go func() {
		defer close(forHistory)
		for st := range statuses {
			st := st
			fyne.Do(func() {
				state.showStatus(st)
			})
			select {
			case forHistory <- st:
			default:
				log.Printf("panel: history channel full, dropping status")
			}
		}
	}()

	var points <-chan history.Point
	if state.smooth > 1 {
		points = history.NewSmoothingConverter(state.smooth, history.DefaultBufferSize)(forHistory)
	} else {
		points = history.NewConverter(history.DefaultBufferSize)(forHistory)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		state.history.Process(points)
	}()

	state.chain = &chain{device: dev, historyDone: done}
}

// disconnect closes the device and waits for the chain to drain.
func (state *appState) disconnect() {
	if state.chain == nil {
		return
	}
	if err := state.chain.device.Close(); err != nil {
		log.Printf("panel: close device: %v", err)
	}
	<-state.chain.historyDone
	state.chain = nil
	state.device = nil
	state.mock = nil
	state.setInputsEnabled(false)
	fmt.Println("Disconnected")
}

func (state *appState) showStatus(st control.Status) {
	for i, line := range lcdLines(state.presenter, st) {
		if i >= len(state.lcd) {
			break
		}
		state.lcd[i].Text = line
		state.lcd[i].Refresh()
	}
	state.outputs.SetText(outputsText(st))
	state.led.FillColor = ledColor(st)
	state.led.Refresh()
}

func (state *appState) setInputsEnabled(on bool) {
	for _, k := range state.keys {
		if on {
			k.Enable()
		} else {
			k.Disable()
		}
	}
	for _, s := range state.sensors {
		if on {
			s.Enable()
		} else {
			s.Disable()
		}
	}
}
