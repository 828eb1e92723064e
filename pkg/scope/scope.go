// Package scope provides a Fyne widget that plots controller history:
// temperature on the left axis and output duties on the right.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/keyclimate/pkg/history"
)

// DefaultMaxPoints limits how many points are drawn per trace.
const DefaultMaxPoints = 600

// TrendWidget displays temperature and output duty traces.
type TrendWidget struct {
	widget.BaseWidget

	window time.Duration

	mu      sync.RWMutex
	display []history.Point // downsampled, reused between updates
	trend   float64         // °C/min
	yMin    float64
	yMax    float64
	xMin    time.Time
	xMax    time.Time

	maxPoints int
}

// New creates a trend widget showing at least the given time span.
func New(window time.Duration) *TrendWidget {
	if window <= 0 {
		window = history.DefaultWindow
	}
	s := &TrendWidget{
		window:    window,
		display:   make([]history.Point, 0, DefaultMaxPoints),
		maxPoints: DefaultMaxPoints,
	}
	s.yMin, s.yMax, s.xMin, s.xMax = autoScale(nil, window)
	s.ExtendBaseWidget(s)
	return s
}

// UpdateData replaces the plotted points. Call it through fyne.Do from
// non-UI goroutines.
func (s *TrendWidget) UpdateData(points []history.Point, trend float64) {
	s.mu.Lock()
	s.display = history.Downsample(s.display, points, s.maxPoints)
	s.trend = trend
	s.yMin, s.yMax, s.xMin, s.xMax = autoScale(s.display, s.window)
	s.mu.Unlock()

	s.Refresh()
}

// autoScale returns the temperature range with a 10% margin and the time span,
// which is never shorter than window.
func autoScale(points []history.Point, window time.Duration) (yMin, yMax float64, xMin, xMax time.Time) {
	if len(points) == 0 {
		now := time.Now()
		return 15, 35, now, now.Add(window)
	}

	yMin, yMax = points[0].Temperature, points[0].Temperature
	for _, p := range points {
		if p.Temperature < yMin {
			yMin = p.Temperature
		}
		if p.Temperature > yMax {
			yMax = p.Temperature
		}
	}

	span := yMax - yMin
	if span < 1 {
		span = 1
		mid := (yMax + yMin) / 2
		yMin, yMax = mid-0.5, mid+0.5
	}
	margin := span * 0.1
	yMin -= margin
	yMax += margin

	xMin = points[0].Time
	xMax = points[len(points)-1].Time
	if xMax.Sub(xMin) < window {
		xMax = xMin.Add(window)
	}
	return yMin, yMax, xMin, xMax
}

// CreateRenderer creates the widget renderer.
func (s *TrendWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &trendRenderer{
		trend:   s,
		bg:      bg,
		objects: []fyne.CanvasObject{bg},
	}
}
