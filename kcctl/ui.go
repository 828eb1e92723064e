package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/gate"
)

var (
	colorTitle   = color.New(color.FgHiWhite, color.Bold)
	colorKey     = color.New(color.FgHiCyan)
	colorValue   = color.New(color.FgHiYellow)
	colorSuccess = color.New(color.FgHiGreen, color.Bold)
	colorError   = color.New(color.FgHiRed, color.Bold)
	colorWarn    = color.New(color.FgHiYellow, color.Bold)
	colorMuted   = color.New(color.FgHiBlack)
)

// stdout is where command output goes; tests replace it.
var stdout io.Writer = color.Output

func success(msg string) {
	colorSuccess.Fprint(stdout, "✔ ")
	fmt.Fprintln(stdout, msg)
}

func warn(msg string) {
	colorWarn.Fprint(stdout, "! ")
	fmt.Fprintln(stdout, msg)
}

func fail(msg string) {
	colorError.Fprint(stdout, "✖ ")
	fmt.Fprintln(stdout, msg)
}

func step(key, value string) {
	colorKey.Fprintf(stdout, "  %-12s", key)
	colorValue.Fprintln(stdout, value)
}

func title(msg string) {
	colorTitle.Fprintln(stdout, msg)
}

// statusLine formats a telemetry status for the terminal.
func statusLine(st control.Status) string {
	var b strings.Builder
	state := colorSuccess.Sprint(st.State)
	if st.State == gate.Locked {
		state = colorError.Sprint(st.State)
	}
	fmt.Fprintf(&b, "%s %-8s", st.Time.Format("15:04:05.000"), state)
	if st.TempValid {
		fmt.Fprintf(&b, " %5.1f°C", st.Temperature)
	} else {
		b.WriteString(colorMuted.Sprint("  --.-°C"))
	}
	pir := colorMuted.Sprint("idle")
	if st.Presence {
		pir = colorValue.Sprint("pir ")
	}
	fmt.Fprintf(&b, " %s %-8s fan %3d%% rgb %3d/%3d/%3d",
		pir, st.Mode, st.Outputs.Fan, st.Outputs.Red, st.Outputs.Green, st.Outputs.Blue)
	return b.String()
}
