package history

import (
	"log"
	"time"

	"github.com/itohio/keyclimate/pkg/control"
)

// DefaultBufferSize is the default size of converter output channels.
const DefaultBufferSize = 100

// Point is a status reduced to plottable values.
type Point struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temp"`
	Fan         float64   `json:"fan"`
	Red         float64   `json:"r"`
	Green       float64   `json:"g"`
	Blue        float64   `json:"b"`
	Locked      bool      `json:"locked"`
	Presence    bool      `json:"pir"`
}

// FromStatus projects a loop status onto a Point.
func FromStatus(st control.Status) Point {
	return Point{
		Time:        st.Time,
		Temperature: st.Temperature,
		Fan:         float64(st.Outputs.Fan),
		Red:         float64(st.Outputs.Red),
		Green:       float64(st.Outputs.Green),
		Blue:        float64(st.Outputs.Blue),
		Locked:      st.Outputs.Locked,
		Presence:    st.Presence,
	}
}

// Converter transforms a status stream into a point stream.
type Converter func(in <-chan control.Status) <-chan Point

// NewConverter creates a converter that projects every status.
func NewConverter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan control.Status) <-chan Point {
		out := make(chan Point, bufSize)

		go func() {
			defer close(out)

			for st := range in {
				select {
				case out <- FromStatus(st):
				case <-time.After(time.Second):
					log.Printf("history: converter output channel full, dropping point")
				}
			}
		}()

		return out
	}
}

// NewSmoothingConverter averages the temperature over the last windowSize
// statuses. Outputs and flags are taken from the newest status.
func NewSmoothingConverter(windowSize int, bufSize int) Converter {
	if windowSize <= 0 {
		windowSize = 1
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan control.Status) <-chan Point {
		out := make(chan Point, bufSize)

		go func() {
			defer close(out)

			var window []float64
			for st := range in {
				window = append(window, st.Temperature)
				if len(window) > windowSize {
					window = window[1:]
				}

				p := FromStatus(st)
				var sum float64
				for _, t := range window {
					sum += t
				}
				p.Temperature = sum / float64(len(window))

				select {
				case out <- p:
				case <-time.After(time.Second):
					log.Printf("history: smoothing output channel full, dropping point")
				}
			}
		}()

		return out
	}
}

// Source turns status callbacks into a channel. Statuses are dropped when
// the consumer falls behind.
type Source struct {
	ch chan control.Status
}

// NewSource creates a source with the given buffer size.
func NewSource(bufSize int) *Source {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Source{ch: make(chan control.Status, bufSize)}
}

// Push offers a status without blocking. Suitable as a control.Loop callback.
func (s *Source) Push(st control.Status) {
	select {
	case s.ch <- st:
	default:
		log.Printf("history: status channel full, dropping status")
	}
}

// C returns the status channel.
func (s *Source) C() <-chan control.Status {
	return s.ch
}

// Close closes the channel. Push must not be called afterwards.
func (s *Source) Close() {
	close(s.ch)
}

// Downsample decimates points to at most maxPoints for display.
// It reuses dst when it has enough capacity.
func Downsample(dst []Point, points []Point, maxPoints int) []Point {
	if len(points) <= maxPoints {
		if cap(dst) >= len(points) {
			dst = dst[:len(points)]
			copy(dst, points)
			return dst
		}
		result := make([]Point, len(points))
		copy(result, points)
		return result
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Point, 0, maxPoints)
	}

	step := float64(len(points)) / float64(maxPoints)
	for i := 0; i < maxPoints; i++ {
		idx := int(float64(i) * step)
		if idx < len(points) {
			dst = append(dst, points[idx])
		}
	}

	return dst
}
