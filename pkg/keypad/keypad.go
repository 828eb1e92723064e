// Package keypad scans a 4x4 membrane keypad wired as a row/column matrix.
package keypad

import (
	"fmt"
	"time"

	"github.com/itohio/keyclimate/pkg/config"
)

// NoKey is returned when nothing is pressed.
const NoKey rune = 0

const (
	Rows = 4
	Cols = 4

	DefaultDebounce = 20 * time.Millisecond
	DefaultRelease  = 10 * time.Millisecond
)

// Layout maps matrix positions to characters.
type Layout [Rows][Cols]rune

// DefaultLayout is the common 4x4 membrane keypad.
var DefaultLayout = Layout{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'*', '0', '#', 'D'},
}

// Find returns the matrix position of key.
func (l *Layout) Find(key rune) (row, col int, ok bool) {
	for r := range l {
		for c := range l[r] {
			if l[r][c] == key {
				return r, c, true
			}
		}
	}
	return 0, 0, false
}

// Matrix drives rows and senses columns. Rows are driven low to select them
// and a pressed key pulls its column low; implementations hide the polarity.
type Matrix interface {
	Drive(row int, active bool)
	Sense(col int) bool
}

// Poller returns at most one key per call, or NoKey.
type Poller interface {
	Poll() rune
}

// New returns the scanner selected by cfg.
func New(m Matrix, cfg config.KeypadConfig) (Poller, error) {
	switch cfg.Scanner {
	case "", "edge":
		return NewEdgeScanner(m, DefaultLayout, cfg.Debounce), nil
	case "blocking":
		return NewScanner(m, DefaultLayout, cfg.Debounce, cfg.Release), nil
	}
	return nil, fmt.Errorf("unknown keypad scanner %q", cfg.Scanner)
}

func sense(m Matrix, row, col int) bool {
	m.Drive(row, true)
	v := m.Sense(col)
	m.Drive(row, false)
	return v
}

// Scanner is the blocking scanner: a press is confirmed after the debounce
// delay and Poll does not return until the key is released.
type Scanner struct {
	m        Matrix
	layout   Layout
	debounce time.Duration
	release  time.Duration
	sleep    func(time.Duration)
}

// NewScanner creates a blocking scanner.
func NewScanner(m Matrix, layout Layout, debounce, release time.Duration) *Scanner {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if release <= 0 {
		release = DefaultRelease
	}
	return &Scanner{
		m:        m,
		layout:   layout,
		debounce: debounce,
		release:  release,
		sleep:    time.Sleep,
	}
}

// Poll implements Poller.
func (s *Scanner) Poll() rune {
	for r := 0; r < Rows; r++ {
		s.m.Drive(r, true)
		for c := 0; c < Cols; c++ {
			if !s.m.Sense(c) {
				continue
			}
			s.sleep(s.debounce)
			if !s.m.Sense(c) {
				continue
			}
			for s.m.Sense(c) {
				s.sleep(s.release)
			}
			s.m.Drive(r, false)
			return s.layout[r][c]
		}
		s.m.Drive(r, false)
	}
	return NoKey
}
