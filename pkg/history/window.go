// Package history keeps a time window of controller statuses for trend
// plots and the history endpoint.
package history

import (
	"sync"
	"time"
)

// DefaultWindow is the default history length.
const DefaultWindow = 5 * time.Minute

// Window is a time-bounded FIFO of points plus the temperature slope
// between consecutive points. Oldest entries come first.
type Window struct {
	duration time.Duration

	mu       sync.RWMutex
	points   []Point
	slopes   []float64 // °C/s; slopes[i] is between points[i] and points[i+1]
	shutdown bool

	cbMu      sync.RWMutex
	callbacks []func(points []Point, slopes []float64)
}

// New creates a window of the given length.
func New(duration time.Duration) *Window {
	if duration <= 0 {
		duration = DefaultWindow
	}
	return &Window{duration: duration}
}

// Process consumes points until input closes. After that no callbacks fire.
func (w *Window) Process(input <-chan Point) {
	for p := range input {
		w.Add(p)
	}
	w.mu.Lock()
	w.shutdown = true
	w.mu.Unlock()
}

// Add appends a point, trims entries older than the window and notifies callbacks.
func (w *Window) Add(p Point) {
	w.mu.Lock()

	w.points = append(w.points, p)

	cutoff := p.Time.Add(-w.duration)
	cut := 0
	for i, q := range w.points {
		if q.Time.After(cutoff) {
			cut = i
			break
		}
	}
	if cut > 0 {
		w.points = w.points[cut:]
		if cut <= len(w.slopes) {
			w.slopes = w.slopes[cut:]
		} else {
			w.slopes = w.slopes[:0]
		}
	}

	if n := len(w.points); n >= 2 {
		prev, curr := w.points[n-2], w.points[n-1]
		if dt := curr.Time.Sub(prev.Time).Seconds(); dt > 0 {
			w.slopes = append(w.slopes, (curr.Temperature-prev.Temperature)/dt)
		} else {
			w.slopes = append(w.slopes, 0)
		}
		if len(w.slopes) > n-1 {
			w.slopes = w.slopes[len(w.slopes)-(n-1):]
		}
	}

	notify := !w.shutdown
	w.mu.Unlock()

	if notify {
		w.notifyCallbacks()
	}
}

// Points returns a copy of the buffered points.
func (w *Window) Points() []Point {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Point, len(w.points))
	copy(out, w.points)
	return out
}

// Slopes returns a copy of the temperature slopes.
func (w *Window) Slopes() []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]float64, len(w.slopes))
	copy(out, w.slopes)
	return out
}

// Trend returns the latest temperature slope in °C per minute.
func (w *Window) Trend() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.slopes) == 0 {
		return 0
	}
	return w.slopes[len(w.slopes)-1] * 60
}

// OnUpdate registers a callback invoked after every added point.
func (w *Window) OnUpdate(callback func(points []Point, slopes []float64)) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Reset clears the buffers and re-enables callbacks.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = nil
	w.slopes = nil
	w.shutdown = false
}

func (w *Window) notifyCallbacks() {
	w.cbMu.RLock()
	callbacks := make([]func([]Point, []float64), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.cbMu.RUnlock()

	points := w.Points()
	slopes := w.Slopes()
	for _, cb := range callbacks {
		cb(points, slopes)
	}
}
