package bot

import (
	"bytes"
	"fmt"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	sfErrors "github.com/ezoic/salesforecast/pkg/errors"
)

// WeekPoint is the mean daily prediction of one ISO week.
type WeekPoint struct {
	Year, Week int
	Mean       float64
}

// Weekly averages the forecasts per ISO week, in calendar order.
func Weekly(forecasts []Forecast) []WeekPoint {
	type key struct{ year, week int }
	sums := make(map[key]float64)
	counts := make(map[key]int)
	for _, f := range forecasts {
		y, w := f.Date.ISOWeek()
		k := key{y, w}
		sums[k] += f.Prediction
		counts[k]++
	}

	out := make([]WeekPoint, 0, len(sums))
	for k, s := range sums {
		out = append(out, WeekPoint{Year: k.year, Week: k.week, Mean: s / float64(counts[k])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Week < out[j].Week
	})
	return out
}

// WeeklyChart draws the weekly forecast of a store as a PNG line plot.
func WeeklyChart(store int, forecasts []Forecast) ([]byte, error) {
	weeks := Weekly(forecasts)
	if len(weeks) == 0 {
		return nil, sfErrors.Newf("no forecasts to plot for store %d", store)
	}

	// 週番号をX軸に並べる
	pts := make(plotter.XYs, len(weeks))
	for i, w := range weeks {
		pts[i].X = float64(w.Week)
		pts[i].Y = w.Mean
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Weekly Sales Forecast for Store %d", store)
	p.X.Label.Text = "Week of Year"
	p.Y.Label.Text = "Sales Prediction (US$)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(2)
	line.Color = plotter.DefaultLineStyle.Color
	p.Add(line)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	p.Add(scatter)

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
