package device

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/itohio/keyclimate/pkg/config"
	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/display"
	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/hw/sim"
	"github.com/itohio/keyclimate/pkg/respond"
	"github.com/itohio/keyclimate/pkg/settings"
	"github.com/itohio/keyclimate/pkg/shell"
)

// Mock runs a simulated controller in-process and exposes it like a serial link.
type Mock struct {
	board *sim.Board
	loop  *control.Loop
	shell *shell.Shell

	mu        sync.RWMutex
	lines     chan Line
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	connected bool
}

// NewMock builds the simulated controller described by cfg.
func NewMock(cfg *config.Config) (*Mock, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	g, err := gate.FromConfig(cfg.Gate)
	if err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}

	m := &Mock{
		board: sim.New(&cfg.Sim),
		lines: make(chan Line, DefaultBufferSize),
	}
	s := settings.New(settings.FromConfig(cfg))
	m.shell = shell.New(s, m.board)
	m.loop = control.New(g, s, control.Peripherals{
		Keypad:      m.board,
		Thermometer: m.board,
		Presence:    m.board,
		Brightness:  m.board,
		Fan:         m.board,
		RGB:         m.board,
		Indicator:   m.board,
		Display:     display.New(display.Log{}, cfg.Display.Width),
	}, control.Options{
		Period: cfg.Sim.SampleRate,
		Policy: respond.Policy{
			PresenceGating: cfg.Control.PresenceGating,
			Brightness:     cfg.Control.Brightness,
		},
		Monitor: lineWriter{m},
	})
	return m, nil
}

// Board returns the simulated hardware for driving inputs.
func (m *Mock) Board() *sim.Board {
	return m.board
}

// Loop returns the simulated control loop.
func (m *Mock) Loop() *control.Loop {
	return m.loop
}

// Connect starts the simulated loop and the potentiometer report.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.connected = true

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		_ = m.loop.Run(ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.shell.Report(ctx, lineWriter{m})
	}()

	return nil
}

// Close stops the simulation and closes the lines channel.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	close(m.lines)
	m.mu.Unlock()
	return nil
}

// Lines returns the channel of produced lines.
func (m *Mock) Lines() <-chan Line {
	return m.lines
}

// Send executes a shell command; its reply appears on Lines.
func (m *Mock) Send(cmd string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return ErrNotConnected
	}
	if reply, ok := m.shell.Exec(cmd); ok {
		m.push(reply)
	}
	return nil
}

// IsConnected returns whether the simulation runs.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *Mock) push(text string) {
	select {
	case m.lines <- Classify(text, time.Now()):
	default:
		log.Printf("device: lines channel full, dropping line")
	}
}

// lineWriter turns monitor and report output into lines.
type lineWriter struct {
	m *Mock
}

func (w lineWriter) Write(p []byte) (int, error) {
	for _, text := range strings.Split(string(p), "\n") {
		if text = strings.TrimSpace(text); text != "" {
			w.m.push(text)
		}
	}
	return len(p), nil
}
