package main

import (
	"fmt"
	"image/color"
	"math"

	"github.com/itohio/keyclimate/pkg/control"
	"github.com/itohio/keyclimate/pkg/display"
	"github.com/itohio/keyclimate/pkg/keypad"
)

// lcdLines renders the character display frame for a status.
func lcdLines(p *display.Presenter, st control.Status) []string {
	return p.Render(display.View{
		State:       st.State,
		Masked:      st.Masked,
		Mode:        st.Mode,
		Fan:         st.Outputs.Fan,
		Temperature: st.Temperature,
	})
}

// ledColor maps RGB duties to the colour the LED shows.
func ledColor(st control.Status) color.NRGBA {
	scale := func(duty int) uint8 {
		return uint8(math.Round(math.Min(math.Max(float64(duty), 0), 100) * 255 / 100))
	}
	return color.NRGBA{
		R: scale(st.Outputs.Red),
		G: scale(st.Outputs.Green),
		B: scale(st.Outputs.Blue),
		A: 0xff,
	}
}

// outputsText summarises the actuator state.
func outputsText(st control.Status) string {
	lock := "unlocked"
	if st.Outputs.Locked {
		lock = "locked"
	}
	pir := "no motion"
	if st.Presence {
		pir = "motion"
	}
	temp := "--.-°C"
	if st.TempValid {
		temp = fmt.Sprintf("%.1f°C", st.Temperature)
	}
	return fmt.Sprintf("%s  %s  fan %d%%  RGB %d/%d/%d  %s",
		temp, pir, st.Outputs.Fan, st.Outputs.Red, st.Outputs.Green, st.Outputs.Blue, lock)
}

// keyLabels lists the keypad characters row by row.
func keyLabels() []rune {
	keys := make([]rune, 0, keypad.Rows*keypad.Cols)
	for _, row := range keypad.DefaultLayout {
		keys = append(keys, row[:]...)
	}
	return keys
}
