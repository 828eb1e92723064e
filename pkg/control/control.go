// Package control runs the polling loop: sample inputs, feed the gate,
// compute outputs, drive actuators and the display.
package control

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/itohio/keyclimate/pkg/display"
	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/keypad"
	"github.com/itohio/keyclimate/pkg/respond"
	"github.com/itohio/keyclimate/pkg/sensor"
	"github.com/itohio/keyclimate/pkg/settings"
)

// DefaultPeriod is the loop period when none is configured.
const DefaultPeriod = 100 * time.Millisecond

// PresenceSensor reports motion.
type PresenceSensor interface {
	Present() bool
}

// Dimmer reports a brightness level in [0,1].
type Dimmer interface {
	Level() float64
}

// Fan accepts a duty cycle in percent.
type Fan interface {
	SetDuty(percent int) error
}

// RGB accepts per-channel duty cycles in percent.
type RGB interface {
	SetRGB(r, g, b int) error
}

// Indicator shows the lock state.
type Indicator interface {
	SetLocked(locked bool) error
}

// Peripherals groups the hardware the loop talks to. Any field may be nil;
// missing inputs read as zero and missing outputs are skipped.
type Peripherals struct {
	Keypad      keypad.Poller
	Thermometer sensor.Thermometer
	Presence    PresenceSensor
	Brightness  Dimmer
	Fan         Fan
	RGB         RGB
	Indicator   Indicator
	Display     *display.Presenter
}

// Options configures the loop.
type Options struct {
	Period      time.Duration
	FollowDelay bool // use the settings update delay as the period
	Policy      respond.Policy
	// Monitor receives one telemetry line per tick while the monitor setting is on.
	Monitor io.Writer
}

// Status is the outcome of one tick.
type Status struct {
	Time        time.Time
	State       gate.State
	Masked      string
	Key         rune
	Temperature float64
	TempValid   bool
	Presence    bool
	Brightness  float64
	Mode        settings.Mode
	Outputs     respond.Outputs
}

// Loop owns the gate and the outputs.
type Loop struct {
	gate     *gate.Gate
	settings *settings.Settings
	hw       Peripherals
	opts     Options
	now      func() time.Time

	mu        sync.RWMutex
	latest    Status
	lastTemp  float64
	tempOK    bool
	callbacks []func(Status)
}

// New creates a loop.
func New(g *gate.Gate, s *settings.Settings, hw Peripherals, opts Options) *Loop {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	return &Loop{
		gate:     g,
		settings: s,
		hw:       hw,
		opts:     opts,
		now:      time.Now,
		tempOK:   true,
	}
}

// Gate returns the access gate driven by the loop.
func (l *Loop) Gate() *gate.Gate {
	return l.gate
}

// Settings returns the shared settings block.
func (l *Loop) Settings() *settings.Settings {
	return l.settings
}

// OnUpdate registers a callback invoked after every tick.
func (l *Loop) OnUpdate(callback func(Status)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, callback)
}

// Latest returns the status of the last tick.
func (l *Loop) Latest() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			l.Step()
			timer.Reset(l.period())
		}
	}
}

func (l *Loop) period() time.Duration {
	if l.opts.FollowDelay {
		return l.settings.Delay()
	}
	return l.opts.Period
}

// Step performs one iteration of the loop.
func (l *Loop) Step() Status {
	now := l.now()
	snap := l.settings.Snapshot()

	st := Status{Time: now, Mode: snap.Mode}
	st.Temperature, st.TempValid = l.readTemperature()
	if l.hw.Presence != nil {
		st.Presence = l.hw.Presence.Present()
	}
	st.Brightness = 1
	if l.hw.Brightness != nil {
		st.Brightness = l.hw.Brightness.Level()
	}

	if l.hw.Keypad != nil {
		st.Key = l.hw.Keypad.Poll()
	}
	ev := l.gate.Feed(st.Key)
	switch ev.Action {
	case gate.Granted:
		log.Printf("control: access granted")
	case gate.Denied:
		log.Printf("control: access denied")
	case gate.Relocked:
		log.Printf("control: locked from keypad")
	}
	st.State = l.gate.State()
	st.Masked = l.gate.Masked()

	st.Outputs = respond.Compute(l.opts.Policy, &snap, respond.Inputs{
		State:       st.State,
		Presence:    st.Presence,
		Temperature: st.Temperature,
		Brightness:  st.Brightness,
		Hour:        now.Hour(),
	})
	l.drive(st)

	if snap.Monitor && l.opts.Monitor != nil {
		if _, err := fmt.Fprintln(l.opts.Monitor, st.Line()); err != nil {
			log.Printf("control: monitor write failed: %v", err)
		}
	}

	l.publish(st)
	return st
}

func (l *Loop) readTemperature() (float64, bool) {
	if l.hw.Thermometer == nil {
		return 0, false
	}
	t, err := l.hw.Thermometer.Celsius()
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		if l.tempOK {
			log.Printf("control: temperature unavailable, holding last value: %v", err)
		}
		l.tempOK = false
		return l.lastTemp, false
	}
	l.tempOK = true
	l.lastTemp = t
	return t, true
}

func (l *Loop) drive(st Status) {
	out := st.Outputs
	if l.hw.Fan != nil {
		if err := l.hw.Fan.SetDuty(out.Fan); err != nil {
			log.Printf("control: fan: %v", err)
		}
	}
	if l.hw.RGB != nil {
		if err := l.hw.RGB.SetRGB(out.Red, out.Green, out.Blue); err != nil {
			log.Printf("control: rgb: %v", err)
		}
	}
	if l.hw.Indicator != nil {
		if err := l.hw.Indicator.SetLocked(out.Locked); err != nil {
			log.Printf("control: indicator: %v", err)
		}
	}
	if l.hw.Display != nil {
		err := l.hw.Display.Show(display.View{
			State:       st.State,
			Masked:      st.Masked,
			Mode:        st.Mode,
			Fan:         out.Fan,
			Temperature: st.Temperature,
		})
		if err != nil {
			log.Printf("control: %v", err)
		}
	}
}

func (l *Loop) publish(st Status) {
	l.mu.Lock()
	l.latest = st
	callbacks := make([]func(Status), len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(st)
	}
}
