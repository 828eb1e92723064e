// Package display renders controller state onto a small character display.
package display

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/itohio/keyclimate/pkg/gate"
	"github.com/itohio/keyclimate/pkg/settings"
)

// DefaultWidth matches a 16x2 character LCD.
const DefaultWidth = 16

// ErrUnavailable is returned by Init when the display did not come up.
var ErrUnavailable = errors.New("display unavailable")

// Sink shows a frame of text lines.
type Sink interface {
	Show(lines []string) error
}

// Initializer is implemented by sinks that must be brought up before use.
type Initializer interface {
	Init() error
}

// Sized is implemented by sinks with a fixed number of rows. Two-row sinks
// get the compact layout.
type Sized interface {
	Height() int
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(lines []string) error

// Show implements Sink.
func (f SinkFunc) Show(lines []string) error { return f(lines) }

// View is the state the display shows.
type View struct {
	State       gate.State
	Masked      string
	Mode        settings.Mode
	Fan         int
	Temperature float64
}

// Presenter formats views and pushes changed frames to a sink.
// A presenter whose sink failed to initialise ignores every Show.
type Presenter struct {
	width   int
	compact bool

	mu        sync.Mutex
	sink      Sink
	available bool
	last      []string
}

// New creates a presenter. The sink is initialised if it needs to be; on
// failure the presenter is returned in the unavailable state.
func New(sink Sink, width int) *Presenter {
	if width <= 0 {
		width = DefaultWidth
	}
	p := &Presenter{width: width, sink: sink, available: sink != nil}
	if sz, ok := sink.(Sized); ok && sz.Height() == 2 {
		p.compact = true
	}
	if in, ok := sink.(Initializer); ok {
		if err := in.Init(); err != nil {
			log.Printf("display: init failed, continuing without display: %v", err)
			p.available = false
		}
	}
	return p
}

// Available reports whether frames reach a sink.
func (p *Presenter) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Render formats a view into display lines: three rows, or two on a
// compact display where the state and PIN share the first row.
func (p *Presenter) Render(v View) []string {
	mask := v.Masked
	if len(mask) > gate.MaxMask {
		mask = mask[:gate.MaxMask]
	}
	fan := fmt.Sprintf("FAN:%d%% %.1fC", v.Fan, v.Temperature)

	var lines []string
	switch {
	case p.compact && v.State == gate.Unlocked:
		lines = []string{v.Mode.String() + " OK", fan}
	case p.compact:
		lines = []string{v.State.String() + " " + mask, fan}
	case v.State == gate.Unlocked:
		lines = []string{"EST: " + v.State.String(), "MODE: " + v.Mode.String() + " OK", fan}
	default:
		lines = []string{"EST: " + v.State.String(), "PASS: " + mask, fan}
	}
	for i, l := range lines {
		lines[i] = fit(l, p.width)
	}
	return lines
}

// Show renders v and sends it to the sink when the frame changed.
func (p *Presenter) Show(v View) error {
	lines := p.Render(v)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.available || equal(lines, p.last) {
		return nil
	}
	if err := p.sink.Show(lines); err != nil {
		return fmt.Errorf("failed to update display: %w", err)
	}
	p.last = lines
	return nil
}

// Last returns the most recent frame that reached the sink.
func (p *Presenter) Last() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.last))
	copy(out, p.last)
	return out
}

func fit(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Writer prints each frame to w, one line per row, followed by a blank line.
type Writer struct {
	W io.Writer
}

// Show implements Sink.
func (w Writer) Show(lines []string) error {
	_, err := fmt.Fprintf(w.W, "%s\n\n", strings.Join(lines, "\n"))
	return err
}

// Log prints each frame through the standard logger.
type Log struct{}

// Show implements Sink.
func (Log) Show(lines []string) error {
	log.Printf("display: %s", strings.Join(lines, " | "))
	return nil
}
