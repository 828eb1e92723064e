package respond

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/settings"
)

func TestRamp(t *testing.T) {
	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{name: "below min", t: -5, want: 0},
		{name: "at min", t: 10, want: 0},
		{name: "quarter", t: 15, want: 0.25},
		{name: "half", t: 20, want: 0.5},
		{name: "at max", t: 30, want: 1},
		{name: "above max", t: 99, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ramp(tt.t, 10, 30), 1e-9)
		})
	}
}

func TestRamp_Monotone(t *testing.T) {
	prev := Ramp(-20, 0, 15)
	for temp := -20.0; temp <= 40; temp += 0.25 {
		v := Ramp(temp, 0, 15)
		assert.GreaterOrEqual(t, v, prev)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		prev = v
	}
}

func TestBand(t *testing.T) {
	assert.Equal(t, 0.0, Band(10, 10, 30))
	assert.InDelta(t, 0.5, Band(20, 10, 30), 1e-9)
	assert.Equal(t, 1.0, Band(30, 10, 30))
	assert.Equal(t, 0.0, Band(30.1, 10, 30))
}

func TestDuty(t *testing.T) {
	assert.Equal(t, 0, Duty(0, 1))
	assert.Equal(t, 100, Duty(1, 1))
	assert.Equal(t, 33, Duty(0.339, 1), "truncated, not rounded")
	assert.Equal(t, 25, Duty(0.5, 0.5))
	assert.Equal(t, 100, Duty(1.5, 1))
	assert.Equal(t, 0, Duty(-1, 1))
}

func unlocked(temp float64, presence bool) Inputs {
	return Inputs{State: gate.Unlocked, Presence: presence, Temperature: temp, Brightness: 1}
}

func TestCompute_LockedIsDark(t *testing.T) {
	s := settings.Defaults()
	s.Mode = settings.Manual
	s.ManualDuty = 80

	for _, temp := range []float64{-10, 12, 25, 45, 150} {
		out := Compute(Policy{Brightness: true}, &s, Inputs{State: gate.Locked, Presence: true, Temperature: temp, Brightness: 1})
		assert.Equal(t, Outputs{Locked: true}, out)
	}
}

func TestCompute_PresenceGating(t *testing.T) {
	s := settings.Defaults()
	p := Policy{PresenceGating: true}

	out := Compute(p, &s, unlocked(20, false))
	assert.Equal(t, Outputs{}, out)

	out = Compute(p, &s, unlocked(20, true))
	assert.Equal(t, 100, out.Fan)
	assert.Equal(t, 100, out.Red)
	assert.Equal(t, 50, out.Green)
	assert.Equal(t, 0, out.Blue)
	assert.False(t, out.Locked)
}

func TestCompute_NoGatingLightsWithoutPresence(t *testing.T) {
	s := settings.Defaults()
	out := Compute(Policy{}, &s, unlocked(45, false))

	assert.Equal(t, 0, out.Fan)
	assert.Equal(t, 100, out.Red)
	assert.Equal(t, 100, out.Green)
	assert.Equal(t, 50, out.Blue)
}

func TestCompute_WhiteDominates(t *testing.T) {
	s := settings.Defaults()
	out := Compute(Policy{}, &s, unlocked(125, true))

	assert.Equal(t, 50, out.Red)
	assert.Equal(t, out.Red, out.Green)
	assert.Equal(t, out.Red, out.Blue)
}

func TestCompute_Brightness(t *testing.T) {
	s := settings.Defaults()
	in := unlocked(45, true)
	in.Brightness = 0.5

	out := Compute(Policy{Brightness: true}, &s, in)
	assert.Equal(t, 50, out.Red)
	assert.Equal(t, 50, out.Green)
	assert.Equal(t, 25, out.Blue)
	assert.Equal(t, 100, out.Fan, "fan is not dimmed")

	out = Compute(Policy{Brightness: false}, &s, in)
	assert.Equal(t, 100, out.Red, "brightness ignored without a potentiometer")

	in.Brightness = 3
	out = Compute(Policy{Brightness: true}, &s, in)
	assert.Equal(t, 100, out.Red)
}

func TestCompute_BandChannel(t *testing.T) {
	s := settings.Defaults()
	s.Red.Band = true

	out := Compute(Policy{}, &s, unlocked(16, true))
	assert.Equal(t, 0, out.Red)
	out = Compute(Policy{}, &s, unlocked(15, true))
	assert.Equal(t, 100, out.Red)
}

func TestFan(t *testing.T) {
	s := settings.Defaults()
	s.Schedules[1].Active = true // 14..18, 22..32

	tests := []struct {
		name     string
		mode     settings.Mode
		temp     float64
		presence bool
		hour     int
		want     int
	}{
		{name: "presence on", mode: settings.Presence, presence: true, want: 100},
		{name: "presence off", mode: settings.Presence, presence: false, want: 0},
		{name: "manual ignores presence", mode: settings.Manual, presence: false, want: 50},
		{name: "auto below", mode: settings.AutoMode, temp: 19, presence: true, want: 0},
		{name: "auto mid", mode: settings.AutoMode, temp: 25, presence: true, want: 50},
		{name: "auto above", mode: settings.AutoMode, temp: 31, presence: true, want: 100},
		{name: "auto absent", mode: settings.AutoMode, temp: 31, presence: false, want: 0},
		{name: "schedule inside", mode: settings.Scheduled, temp: 27, presence: true, hour: 15, want: 50},
		{name: "schedule end exclusive", mode: settings.Scheduled, temp: 27, presence: true, hour: 18, want: 0},
		{name: "schedule inactive window", mode: settings.Scheduled, temp: 27, presence: true, hour: 9, want: 0},
		{name: "schedule absent", mode: settings.Scheduled, temp: 27, presence: false, hour: 15, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := s
			snap.Mode = tt.mode
			in := unlocked(tt.temp, tt.presence)
			in.Hour = tt.hour
			assert.Equal(t, tt.want, Fan(&snap, in))
		})
	}
}

func TestFan_FirstMatchingScheduleWins(t *testing.T) {
	s := settings.Defaults()
	s.Mode = settings.Scheduled
	s.Schedules[0] = settings.Schedule{Active: true, StartHour: 8, EndHour: 20, T0: 20, T100: 30}
	s.Schedules[1] = settings.Schedule{Active: true, StartHour: 10, EndHour: 12, T0: 0, T100: 10}

	in := unlocked(25, true)
	in.Hour = 11
	assert.Equal(t, 50, Fan(&s, in))
}
