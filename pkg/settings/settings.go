package settings

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itohio/keyclimate/pkg/config"
)

// Settings is the block shared by the control loop, the UART shell and the
// HTTP surface. Every setter validates its argument and leaves the previous
// value in place on error.
type Settings struct {
	mu        sync.RWMutex
	s         Snapshot
	callbacks []func(keys []string)
}

// New creates a settings block holding initial.
func New(initial Snapshot) *Settings {
	return &Settings{s: initial}
}

// FromConfig converts configured boot values into a snapshot. Invalid
// values fall back to Defaults with a log line.
func FromConfig(cfg *config.Config) Snapshot {
	snap := Defaults()
	if cfg == nil {
		return snap
	}

	s := New(snap)
	warn := func(err error) {
		if err != nil {
			log.Printf("settings: ignoring configured value: %v", err)
		}
	}

	warn(s.SetDelay(int(cfg.Shell.Delay / time.Millisecond)))
	s.SetPotReport(cfg.Shell.PotReport)
	s.SetMonitor(cfg.Shell.Monitor)

	th := cfg.Thresholds
	for id, c := range map[ChannelID]config.ChannelConfig{
		Red: th.Red, Green: th.Green, Blue: th.Blue, White: th.White, Auto: th.Auto,
	} {
		warn(s.SetChannel(id, Channel{Min: c.Min, Max: c.Max, Band: c.Band}))
	}
	warn(s.SetManualDuty(th.ManualDuty))
	for i, sc := range th.Schedules {
		if i >= NumSchedules {
			break
		}
		warn(s.SetSchedule(i, Schedule{
			Active:    sc.Active,
			StartHour: sc.StartHour,
			EndHour:   sc.EndHour,
			T0:        sc.T0,
			T100:      sc.T100,
		}))
	}

	if m, err := ParseMode(cfg.Control.Mode); err == nil {
		warn(s.SetMode(m))
	} else {
		warn(err)
	}

	return s.Snapshot()
}

// Snapshot returns a copy of every setting.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s
}

// OnChange registers a callback receiving the storage keys of changed values.
func (s *Settings) OnChange(callback func(keys []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

func (s *Settings) notify(keys ...string) {
	s.mu.RLock()
	callbacks := make([]func([]string), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.RUnlock()

	for _, cb := range callbacks {
		cb(keys)
	}
}

// SetDelay sets the update delay in milliseconds.
func (s *Settings) SetDelay(ms int) error {
	if int64(ms) < MinDelay.Milliseconds() || int64(ms) > MaxDelay.Milliseconds() {
		return fmt.Errorf("delay %d ms outside %d..%d: %w", ms, MinDelay.Milliseconds(), MaxDelay.Milliseconds(), ErrInvalidArgument)
	}
	d := time.Duration(ms) * time.Millisecond
	s.mu.Lock()
	s.s.Delay = d
	s.mu.Unlock()
	s.notify(KeyDelay)
	return nil
}

// Delay returns the update delay.
func (s *Settings) Delay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s.Delay
}

// SetPotReport enables or disables the periodic potentiometer report.
func (s *Settings) SetPotReport(on bool) {
	s.mu.Lock()
	s.s.PotReport = on
	s.mu.Unlock()
	s.notify(KeyPotReport)
}

// PotReport reports whether the periodic potentiometer report is enabled.
func (s *Settings) PotReport() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s.PotReport
}

// SetMonitor enables or disables the sensor monitor output.
func (s *Settings) SetMonitor(on bool) {
	s.mu.Lock()
	s.s.Monitor = on
	s.mu.Unlock()
	s.notify(KeyMonitor)
}

// Monitor reports whether the sensor monitor output is enabled.
func (s *Settings) Monitor() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s.Monitor
}

// Channel returns the threshold pair for id.
func (s *Settings) Channel(id ChannelID) Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s.Channel(id)
}

// SetMin changes the lower bound of a channel; it must stay below the upper bound.
func (s *Settings) SetMin(id ChannelID, v float64) error {
	if err := CheckThreshold(v); err != nil {
		return err
	}
	s.mu.Lock()
	c := s.s.channel(id)
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("unknown channel %v: %w", id, ErrInvalidArgument)
	}
	if !(v < c.Max) {
		s.mu.Unlock()
		return fmt.Errorf("%v_MIN must be < %v_MAX: %w", id, id, ErrInvalidArgument)
	}
	c.Min = v
	s.mu.Unlock()
	s.notify(minKey(id))
	return nil
}

// SetMax changes the upper bound of a channel; it must stay above the lower bound.
func (s *Settings) SetMax(id ChannelID, v float64) error {
	if err := CheckThreshold(v); err != nil {
		return err
	}
	s.mu.Lock()
	c := s.s.channel(id)
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("unknown channel %v: %w", id, ErrInvalidArgument)
	}
	if !(v > c.Min) {
		s.mu.Unlock()
		return fmt.Errorf("%v_MAX must be > %v_MIN: %w", id, id, ErrInvalidArgument)
	}
	c.Max = v
	s.mu.Unlock()
	s.notify(maxKey(id))
	return nil
}

// SetChannel replaces both bounds at once.
func (s *Settings) SetChannel(id ChannelID, ch Channel) error {
	if err := CheckThreshold(ch.Min); err != nil {
		return err
	}
	if err := CheckThreshold(ch.Max); err != nil {
		return err
	}
	if !(ch.Min < ch.Max) {
		return fmt.Errorf("%v_MIN must be < %v_MAX: %w", id, id, ErrInvalidArgument)
	}
	s.mu.Lock()
	c := s.s.channel(id)
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("unknown channel %v: %w", id, ErrInvalidArgument)
	}
	*c = ch
	s.mu.Unlock()
	s.notify(minKey(id), maxKey(id))
	return nil
}

// SetMode selects the fan policy.
func (s *Settings) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("unknown mode %d: %w", int(m), ErrInvalidArgument)
	}
	s.mu.Lock()
	s.s.Mode = m
	s.mu.Unlock()
	s.notify(KeyMode)
	return nil
}

// Mode returns the fan policy.
func (s *Settings) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.s.Mode
}

// SetManualDuty sets the fan duty used in manual mode.
func (s *Settings) SetManualDuty(duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("manual duty %d outside 0..100: %w", duty, ErrInvalidArgument)
	}
	s.mu.Lock()
	s.s.ManualDuty = duty
	s.mu.Unlock()
	s.notify(KeyManualDuty)
	return nil
}

// SetSchedule replaces schedule i.
func (s *Settings) SetSchedule(i int, sc Schedule) error {
	if i < 0 || i >= NumSchedules {
		return fmt.Errorf("schedule index %d outside 0..%d: %w", i, NumSchedules-1, ErrInvalidArgument)
	}
	if err := sc.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.s.Schedules[i] = sc
	s.mu.Unlock()
	s.notify(scheduleKeys(i)...)
	return nil
}
