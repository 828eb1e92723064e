// Package respond maps lock state, presence, temperature and brightness onto
// fan and RGB duty cycles.
package respond

import (
	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/settings"
)

// MaxDuty is full scale for every output.
const MaxDuty = 100

// Inputs is everything the responder looks at in one tick.
type Inputs struct {
	State       gate.State
	Presence    bool
	Temperature float64 // °C
	Brightness  float64 // 0..1
	Hour        int     // local hour, used by scheduled mode
}

// Outputs are duty cycles in percent.
type Outputs struct {
	Fan    int  `json:"fan"`
	Red    int  `json:"r"`
	Green  int  `json:"g"`
	Blue   int  `json:"b"`
	Locked bool `json:"locked"` // drives the lock indicator LEDs
}

// Policy holds the options that are fixed per build.
type Policy struct {
	// PresenceGating zeroes every output when no one is present.
	PresenceGating bool
	// Brightness scales colour duty by Inputs.Brightness; otherwise full brightness.
	Brightness bool
}

// Ramp maps t onto [0,1]: 0 at or below min, 1 at or above max, linear between.
func Ramp(t, min, max float64) float64 {
	if t <= min {
		return 0
	}
	if t >= max {
		return 1
	}
	return (t - min) / (max - min)
}

// Band is Ramp that drops back to 0 above max.
func Band(t, min, max float64) float64 {
	if t > max {
		return 0
	}
	return Ramp(t, min, max)
}

// Intensity applies the channel's ramp to t.
func Intensity(c settings.Channel, t float64) float64 {
	if c.Band {
		return Band(t, c.Min, c.Max)
	}
	return Ramp(t, c.Min, c.Max)
}

// Duty converts an intensity and brightness into a truncated percentage in [0,100].
func Duty(intensity, brightness float64) int {
	d := int(intensity * brightness * MaxDuty)
	if d < 0 {
		return 0
	}
	if d > MaxDuty {
		return MaxDuty
	}
	return d
}

// Compute evaluates one tick.
func Compute(p Policy, s *settings.Snapshot, in Inputs) Outputs {
	if in.State != gate.Unlocked {
		return Outputs{Locked: true}
	}

	out := Outputs{Fan: Fan(s, in)}

	if p.PresenceGating && !in.Presence {
		return out
	}

	brightness := 1.0
	if p.Brightness {
		brightness = clamp01(in.Brightness)
	}

	if w := Intensity(s.White, in.Temperature); w > 0 {
		d := Duty(w, brightness)
		out.Red, out.Green, out.Blue = d, d, d
		return out
	}

	out.Red = Duty(Intensity(s.Red, in.Temperature), brightness)
	out.Green = Duty(Intensity(s.Green, in.Temperature), brightness)
	out.Blue = Duty(Intensity(s.Blue, in.Temperature), brightness)
	return out
}

// Fan evaluates the fan policy for an unlocked gate.
func Fan(s *settings.Snapshot, in Inputs) int {
	switch s.Mode {
	case settings.Manual:
		return clampDuty(s.ManualDuty)
	case settings.AutoMode:
		if !in.Presence {
			return 0
		}
		return Duty(Ramp(in.Temperature, s.Auto.Min, s.Auto.Max), 1)
	case settings.Scheduled:
		if !in.Presence {
			return 0
		}
		for _, sc := range s.Schedules {
			if sc.Contains(in.Hour) {
				return Duty(Ramp(in.Temperature, sc.T0, sc.T100), 1)
			}
		}
		return 0
	default:
		if in.Presence {
			return MaxDuty
		}
		return 0
	}
}

func clampDuty(d int) int {
	if d < 0 {
		return 0
	}
	if d > MaxDuty {
		return MaxDuty
	}
	return d
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
