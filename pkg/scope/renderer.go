package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/keyclimate/pkg/history"
	"github.com/itohio/keyclimate/pkg/respond"
)

var (
	gridColor   = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor  = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	tempColor   = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	fanColor    = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	redColor    = color.RGBA{R: 220, G: 60, B: 60, A: 255}
	greenColor  = color.RGBA{R: 60, G: 200, B: 90, A: 255}
	blueColor   = color.RGBA{R: 70, G: 90, B: 230, A: 255}
	lockedShade = color.RGBA{R: 60, G: 20, B: 20, A: 120}
)

type trendRenderer struct {
	trend *TrendWidget

	bg      *canvas.Rectangle
	objects []fyne.CanvasObject

	lastSize fyne.Size
}

// plotArea is the drawable region inside the axis margins.
type plotArea struct {
	x, y, w, h float32
	yMin, yMax float64
	xMin, xMax time.Time
}

func (a plotArea) px(t time.Time) float32 {
	span := a.xMax.Sub(a.xMin).Seconds()
	if span <= 0 {
		return a.x
	}
	return a.x + float32(t.Sub(a.xMin).Seconds()/span)*a.w
}

func (a plotArea) pyTemp(v float64) float32 {
	return a.y + a.h - float32((v-a.yMin)/(a.yMax-a.yMin))*a.h
}

func (a plotArea) pyDuty(d float64) float32 {
	return a.y + a.h - float32(d/respond.MaxDuty)*a.h
}

func (r *trendRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

func (r *trendRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	if r.lastSize != size {
		r.lastSize = size
		r.trend.BaseWidget.Refresh()
	}
}

func (r *trendRenderer) Refresh() {
	r.trend.mu.RLock()
	points := make([]history.Point, len(r.trend.display))
	copy(points, r.trend.display)
	trend := r.trend.trend
	area := plotArea{
		yMin: r.trend.yMin, yMax: r.trend.yMax,
		xMin: r.trend.xMin, xMax: r.trend.xMax,
	}
	r.trend.mu.RUnlock()

	size := r.trend.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.bg}

	const (
		marginLeft   = 55
		marginRight  = 45
		marginTop    = 20
		marginBottom = 30
	)
	area.x = marginLeft
	area.y = marginTop
	area.w = size.Width - marginLeft - marginRight
	area.h = size.Height - marginTop - marginBottom

	r.drawLocked(area, points)
	r.drawGrid(area)
	r.drawTrace(area, points, blueColor, 1, func(p history.Point) float32 { return area.pyDuty(p.Blue) })
	r.drawTrace(area, points, greenColor, 1, func(p history.Point) float32 { return area.pyDuty(p.Green) })
	r.drawTrace(area, points, redColor, 1, func(p history.Point) float32 { return area.pyDuty(p.Red) })
	r.drawTrace(area, points, fanColor, 2, func(p history.Point) float32 { return area.pyDuty(p.Fan) })
	r.drawTrace(area, points, tempColor, 2.5, func(p history.Point) float32 { return area.pyTemp(p.Temperature) })
	r.drawLegend(area, points, trend)
}

func (r *trendRenderer) drawGrid(a plotArea) {
	const rows = 5
	for i := 0; i < rows+1; i++ {
		y := a.y + float32(i)*a.h/rows
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(a.x, y)
		line.Position2 = fyne.NewPos(a.x+a.w, y)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		temp := a.yMax - float64(i)*(a.yMax-a.yMin)/rows
		r.label(fmt.Sprintf("%.1f°C", temp), fyne.NewPos(a.x-5, y-6), fyne.TextAlignTrailing)

		duty := respond.MaxDuty - i*respond.MaxDuty/rows
		r.label(fmt.Sprintf("%d%%", duty), fyne.NewPos(a.x+a.w+5, y-6), fyne.TextAlignLeading)
	}

	const cols = 6
	span := a.xMax.Sub(a.xMin)
	for i := 0; i < cols+1; i++ {
		x := a.x + float32(i)*a.w/cols
		line := canvas.NewLine(gridColor)
		line.Position1 = fyne.NewPos(x, a.y)
		line.Position2 = fyne.NewPos(x, a.y+a.h)
		line.StrokeWidth = 1
		r.objects = append(r.objects, line)

		offset := span * time.Duration(i) / cols
		r.label(offset.Round(time.Second).String(), fyne.NewPos(x, a.y+a.h+5), fyne.TextAlignCenter)
	}
}

// drawLocked shades spans where the gate was locked.
func (r *trendRenderer) drawLocked(a plotArea, points []history.Point) {
	for i := 0; i < len(points); {
		if !points[i].Locked {
			i++
			continue
		}
		j := i
		for j+1 < len(points) && points[j+1].Locked {
			j++
		}
		x0, x1 := a.px(points[i].Time), a.px(points[j].Time)
		if x1 <= x0 {
			x1 = x0 + 1
		}
		rect := canvas.NewRectangle(lockedShade)
		rect.Move(fyne.NewPos(x0, a.y))
		rect.Resize(fyne.NewSize(x1-x0, a.h))
		r.objects = append(r.objects, rect)
		i = j + 1
	}
}

func (r *trendRenderer) drawTrace(a plotArea, points []history.Point, c color.Color, width float32, y func(history.Point) float32) {
	for i := 0; i < len(points)-1; i++ {
		line := canvas.NewLine(c)
		line.Position1 = fyne.NewPos(a.px(points[i].Time), y(points[i]))
		line.Position2 = fyne.NewPos(a.px(points[i+1].Time), y(points[i+1]))
		line.StrokeWidth = width
		r.objects = append(r.objects, line)
	}
}

func (r *trendRenderer) drawLegend(a plotArea, points []history.Point, trend float64) {
	if len(points) == 0 {
		r.label("no data", fyne.NewPos(a.x+10, a.y+5), fyne.TextAlignLeading)
		return
	}
	last := points[len(points)-1]
	text := canvas.NewText(fmt.Sprintf("%.1f°C  %+.2f°C/min  fan %.0f%%", last.Temperature, trend, last.Fan), tempColor)
	text.TextSize = 12
	text.Move(fyne.NewPos(a.x+10, a.y+5))
	r.objects = append(r.objects, text)
}

func (r *trendRenderer) label(s string, pos fyne.Position, align fyne.TextAlign) {
	text := canvas.NewText(s, labelColor)
	text.TextSize = 10
	text.Alignment = align
	text.Move(pos)
	r.objects = append(r.objects, text)
}

func (r *trendRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *trendRenderer) Destroy() {}
