package control

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/settings"
)

// LinePrefix marks telemetry lines on a serial link shared with shell replies.
const LinePrefix = "T,"

const lineFields = 11

// Line formats the status as a telemetry line:
// T,unix_micros,temp,brightness,locked,pir,fan,r,g,b,mode
// Example: T,1700000000000000,24.50,0.750,0,1,100,50,0,0,3
func (s Status) Line() string {
	return fmt.Sprintf("T,%d,%.2f,%.3f,%d,%d,%d,%d,%d,%d,%d",
		s.Time.UnixMicro(),
		s.Temperature,
		s.Brightness,
		b2i(s.State == gate.Locked),
		b2i(s.Presence),
		s.Outputs.Fan, s.Outputs.Red, s.Outputs.Green, s.Outputs.Blue,
		int(s.Mode),
	)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IsLine reports whether a received line is telemetry.
func IsLine(line string) bool {
	return strings.HasPrefix(line, LinePrefix)
}

// ParseLine parses a telemetry line produced by Status.Line.
func ParseLine(line string) (Status, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != lineFields || parts[0] != "T" {
		return Status{}, fmt.Errorf("invalid line format: expected %d comma-separated values, got %d", lineFields, len(parts))
	}

	micros, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Status{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	temp, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Status{}, fmt.Errorf("invalid temperature: %w", err)
	}

	brightness, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return Status{}, fmt.Errorf("invalid brightness: %w", err)
	}
	if brightness < 0 || brightness > 1 {
		return Status{}, fmt.Errorf("brightness out of range: %v", brightness)
	}

	flags := [2]bool{}
	for i, p := range parts[4:6] {
		switch p {
		case "0":
		case "1":
			flags[i] = true
		default:
			return Status{}, fmt.Errorf("invalid flag %q", p)
		}
	}

	var duties [4]int
	for i, p := range parts[6:10] {
		d, err := strconv.Atoi(p)
		if err != nil {
			return Status{}, fmt.Errorf("invalid duty: %w", err)
		}
		if d < 0 || d > 100 {
			return Status{}, fmt.Errorf("duty out of range: %d (max 100)", d)
		}
		duties[i] = d
	}

	mode, err := strconv.Atoi(parts[10])
	if err != nil {
		return Status{}, fmt.Errorf("invalid mode: %w", err)
	}
	if !settings.Mode(mode).Valid() {
		return Status{}, fmt.Errorf("mode out of range: %d", mode)
	}

	st := Status{
		Time:        time.UnixMicro(micros),
		Temperature: temp,
		TempValid:   true,
		Brightness:  brightness,
		State:       gate.Unlocked,
		Presence:    flags[1],
		Mode:        settings.Mode(mode),
	}
	if flags[0] {
		st.State = gate.Locked
	}
	st.Outputs.Fan, st.Outputs.Red, st.Outputs.Green, st.Outputs.Blue = duties[0], duties[1], duties[2], duties[3]
	st.Outputs.Locked = flags[0]
	return st, nil
}
