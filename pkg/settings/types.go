package settings

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidArgument is wrapped by every rejected setter.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	MinDelay     = 100 * time.Millisecond
	MaxDelay     = 5000 * time.Millisecond
	NumSchedules = 3

	// ThresholdLimit bounds every temperature threshold in °C so that it
	// persists as int32 hundredths.
	ThresholdLimit = 10000.0
)

// CheckThreshold rejects non-finite temperatures and those beyond ThresholdLimit.
func CheckThreshold(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -ThresholdLimit || v > ThresholdLimit {
		return fmt.Errorf("threshold %v outside -%v..%v: %w", v, ThresholdLimit, ThresholdLimit, ErrInvalidArgument)
	}
	return nil
}

// Channel is a temperature range mapped onto one output.
type Channel struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Band bool    `json:"band,omitempty"` // zero above Max instead of saturating
}

// ChannelID names a threshold pair.
type ChannelID int

const (
	Red ChannelID = iota
	Green
	Blue
	White
	Auto // fan ramp in auto mode
)

var channelNames = [...]string{"R", "G", "B", "W", "AUTO"}

func (c ChannelID) String() string {
	if c >= 0 && int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("channel(%d)", int(c))
}

// ParseChannel accepts the shell prefixes R, G, B and W.
func ParseChannel(s string) (ChannelID, bool) {
	switch strings.ToUpper(s) {
	case "R":
		return Red, true
	case "G":
		return Green, true
	case "B":
		return Blue, true
	case "W":
		return White, true
	case "AUTO":
		return Auto, true
	}
	return 0, false
}

// Mode selects the fan policy.
type Mode int

// Numeric values of Manual, Auto and Scheduled are the ones stored under
// sys_mode and exchanged over HTTP.
const (
	Manual Mode = iota
	AutoMode
	Scheduled
	Presence
)

var modeNames = [...]string{"MANUAL", "AUTO", "PROG", "PIR"}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("MODE(%d)", int(m))
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= 0 && int(m) < len(modeNames)
}

// ParseMode accepts either the display name or the configuration name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual":
		return Manual, nil
	case "auto":
		return AutoMode, nil
	case "prog", "scheduled", "schedule":
		return Scheduled, nil
	case "pir", "presence":
		return Presence, nil
	}
	return 0, fmt.Errorf("unknown mode %q: %w", s, ErrInvalidArgument)
}

// Schedule is a programmed fan window [StartHour, EndHour) with its own ramp.
type Schedule struct {
	Active    bool    `json:"act"`
	StartHour int     `json:"sh"`
	EndHour   int     `json:"eh"`
	T0        float64 `json:"t0"`
	T100      float64 `json:"t100"`
}

// Contains reports whether hour falls inside an active window.
func (s Schedule) Contains(hour int) bool {
	return s.Active && hour >= s.StartHour && hour < s.EndHour
}

func (s Schedule) validate() error {
	if s.StartHour < 0 || s.StartHour > 23 || s.EndHour < 0 || s.EndHour > 24 {
		return fmt.Errorf("schedule hours must be within 0..24: %w", ErrInvalidArgument)
	}
	if s.StartHour >= s.EndHour {
		return fmt.Errorf("schedule start must be before end: %w", ErrInvalidArgument)
	}
	if err := CheckThreshold(s.T0); err != nil {
		return err
	}
	if err := CheckThreshold(s.T100); err != nil {
		return err
	}
	if !(s.T0 < s.T100) {
		return fmt.Errorf("schedule t0 must be < t100: %w", ErrInvalidArgument)
	}
	return nil
}

// Snapshot is a consistent copy of every setting.
type Snapshot struct {
	Delay      time.Duration
	PotReport  bool
	Monitor    bool
	Red        Channel
	Green      Channel
	Blue       Channel
	White      Channel
	Auto       Channel
	Mode       Mode
	ManualDuty int
	Schedules  [NumSchedules]Schedule
}

// Channel returns the pair for id.
func (s *Snapshot) Channel(id ChannelID) Channel {
	if p := s.channel(id); p != nil {
		return *p
	}
	return Channel{}
}

func (s *Snapshot) channel(id ChannelID) *Channel {
	switch id {
	case Red:
		return &s.Red
	case Green:
		return &s.Green
	case Blue:
		return &s.Blue
	case White:
		return &s.White
	case Auto:
		return &s.Auto
	}
	return nil
}

// Defaults returns the boot values.
func Defaults() Snapshot {
	return Snapshot{
		Delay:      500 * time.Millisecond,
		Monitor:    true,
		Red:        Channel{Min: 0, Max: 15},
		Green:      Channel{Min: 10, Max: 30},
		Blue:       Channel{Min: 40, Max: 50},
		White:      Channel{Min: 50, Max: 200},
		Auto:       Channel{Min: 20, Max: 30},
		Mode:       Presence,
		ManualDuty: 50,
		Schedules: [NumSchedules]Schedule{
			{StartHour: 8, EndHour: 12, T0: 20, T100: 30},
			{StartHour: 14, EndHour: 18, T0: 22, T100: 32},
			{StartHour: 20, EndHour: 23, T0: 18, T100: 25},
		},
	}
}
