// Package chart renders labelled point series as inline SVG.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoPoints is returned when a series has nothing to draw.
var ErrNoPoints = errors.New("chart: no data points")

const (
	defaultWidth  = 560
	defaultHeight = 300
)

// Point is one x position. Points that are not Present are skipped by Line
// and drawn as empty bars by Bar.
type Point struct {
	Label   string
	Value   float64
	Present bool
}

// Reference is a horizontal line drawn across a line chart.
type Reference struct {
	Label string
	Value float64
}

// Tick pins a labelled value on the y axis.
type Tick struct {
	Value float64
	Label string
}

// Spec describes one chart.
type Spec struct {
	Title string
	YName string
	// XName labels the x axis, "Week" when empty.
	XName     string
	Points    []Point
	Reference *Reference
	// YMax fixes the top of the y axis; zero picks a rounded bound from
	// the data. The bottom is always zero.
	YMax   float64
	YTicks []Tick
	Width  int
	Height int
}

// Days converts per-day values into points labelled with the day number.
func Days(days []int, values []float64, present []bool) []Point {
	out := make([]Point, len(days))
	for i, d := range days {
		out[i] = Point{Label: fmt.Sprintf("Day %d", d), Value: values[i], Present: present[i]}
	}
	return out
}

// Line draws present points joined in x order with dot markers.
func Line(s Spec) ([]byte, error) {
	var xs, ys []float64
	ticks := make([]gochart.Tick, 0, len(s.Points))
	for i, p := range s.Points {
		x := float64(i + 1)
		ticks = append(ticks, gochart.Tick{Value: x, Label: p.Label})
		if !p.Present {
			continue
		}
		xs = append(xs, x)
		ys = append(ys, p.Value)
	}
	if len(xs) == 0 {
		return nil, ErrNoPoints
	}

	xRange := &gochart.ContinuousRange{Min: 0.5, Max: float64(len(s.Points)) + 0.5}
	series := []gochart.Series{
		gochart.ContinuousSeries{
			Name:    s.YName,
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: gochart.ColorBlue,
				StrokeWidth: 2,
				DotColor:    gochart.ColorBlue,
				DotWidth:    4,
			},
		},
	}

	peak := maxOf(ys)
	if s.Reference != nil {
		peak = math.Max(peak, s.Reference.Value)
		series = append(series, gochart.ContinuousSeries{
			Name:    s.Reference.Label,
			XValues: []float64{xRange.Min, xRange.Max},
			YValues: []float64{s.Reference.Value, s.Reference.Value},
			Style: gochart.Style{
				StrokeColor:     gochart.ColorRed,
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5, 4},
			},
		})
	}

	ch := gochart.Chart{
		Title:      s.Title,
		Width:      orDefault(s.Width, defaultWidth),
		Height:     orDefault(s.Height, defaultHeight),
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Name:  orDefaultName(s.XName),
			Ticks: ticks,
			Range: xRange,
		},
		YAxis:  yAxis(s, peak),
		Series: series,
	}
	if s.Reference != nil {
		ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	}

	var buf bytes.Buffer
	if err := ch.Render(gochart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render %q: %w", s.Title, err)
	}
	return buf.Bytes(), nil
}

// Bar draws one bar per point. Absent points are drawn at zero.
func Bar(s Spec) ([]byte, error) {
	if len(s.Points) == 0 {
		return nil, ErrNoPoints
	}
	bars := make([]gochart.Value, len(s.Points))
	var peak float64
	for i, p := range s.Points {
		v := 0.0
		if p.Present {
			v = p.Value
		}
		peak = math.Max(peak, v)
		bars[i] = gochart.Value{
			Label: p.Label,
			Value: v,
			Style: gochart.Style{
				FillColor:   drawing.ColorFromHex("4c78a8"),
				StrokeColor: drawing.ColorFromHex("4c78a8"),
				StrokeWidth: 1,
			},
		}
	}

	bc := gochart.BarChart{
		Title:      s.Title,
		Width:      orDefault(s.Width, defaultWidth),
		Height:     orDefault(s.Height, defaultHeight),
		BarWidth:   48,
		Background: gochart.Style{Padding: gochart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		YAxis:      yAxis(s, peak),
		Bars:       bars,
	}

	var buf bytes.Buffer
	if err := bc.Render(gochart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render %q: %w", s.Title, err)
	}
	return buf.Bytes(), nil
}

func yAxis(s Spec, peak float64) gochart.YAxis {
	top := s.YMax
	if top <= 0 {
		top = NiceMax(peak)
	}
	axis := gochart.YAxis{
		Name:  s.YName,
		Range: &gochart.ContinuousRange{Min: 0, Max: top},
	}
	for _, t := range s.YTicks {
		axis.Ticks = append(axis.Ticks, gochart.Tick{Value: t.Value, Label: t.Label})
	}
	return axis
}

// NiceMax rounds v up to 1, 2, 2.5 or 5 times a power of ten. Values at or
// below zero give 1 so the axis never collapses.
func NiceMax(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(v)))
	for _, c := range []float64{1, 2, 2.5, 5, 10} {
		if c*mag >= v {
			return c * mag
		}
	}
	return 10 * mag
}

func maxOf(vs []float64) float64 {
	m := 0.0
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}

func orDefault(v, d int) int {
	if v > 0 {
		return v
	}
	return d
}

func orDefaultName(n string) string {
	if n == "" {
		return "Week"
	}
	return n
}
