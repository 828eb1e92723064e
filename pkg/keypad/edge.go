package keypad

import "time"

// EventKind distinguishes press and release edges.
type EventKind int

const (
	Press EventKind = iota
	Release
)

func (k EventKind) String() string {
	if k == Release {
		return "release"
	}
	return "press"
}

// Event is a debounced key edge.
type Event struct {
	Key  rune
	Kind EventKind
	Time time.Time
}

// EdgeScanner never blocks. Each Tick samples the whole matrix once and
// reports keys whose level has been stable for the debounce window.
type EdgeScanner struct {
	m        Matrix
	layout   Layout
	debounce time.Duration
	now      func() time.Time

	raw     [Rows][Cols]bool
	stable  [Rows][Cols]bool
	changed [Rows][Cols]time.Time
	pending []rune
}

// NewEdgeScanner creates a non-blocking scanner.
func NewEdgeScanner(m Matrix, layout Layout, debounce time.Duration) *EdgeScanner {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &EdgeScanner{
		m:        m,
		layout:   layout,
		debounce: debounce,
		now:      time.Now,
	}
}

// Tick samples the matrix and returns the edges that became stable.
func (e *EdgeScanner) Tick(now time.Time) []Event {
	var events []Event
	for r := 0; r < Rows; r++ {
		e.m.Drive(r, true)
		for c := 0; c < Cols; c++ {
			v := e.m.Sense(c)
			if v != e.raw[r][c] {
				e.raw[r][c] = v
				e.changed[r][c] = now
			}
			if e.raw[r][c] == e.stable[r][c] || now.Sub(e.changed[r][c]) < e.debounce {
				continue
			}
			e.stable[r][c] = e.raw[r][c]
			kind := Release
			if e.stable[r][c] {
				kind = Press
			}
			events = append(events, Event{Key: e.layout[r][c], Kind: kind, Time: now})
		}
		e.m.Drive(r, false)
	}
	return events
}

// Poll implements Poller: it returns each key once, on its press edge.
// Presses detected in the same tick are returned by subsequent calls.
func (e *EdgeScanner) Poll() rune {
	for _, ev := range e.Tick(e.now()) {
		if ev.Kind == Press {
			e.pending = append(e.pending, ev.Key)
		}
	}
	if len(e.pending) == 0 {
		return NoKey
	}
	k := e.pending[0]
	e.pending = e.pending[1:]
	return k
}

// Held reports whether key is currently (debounced) pressed.
func (e *EdgeScanner) Held(key rune) bool {
	r, c, ok := e.layout.Find(key)
	return ok && e.stable[r][c]
}
