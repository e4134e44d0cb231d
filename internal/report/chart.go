// Patientflow - Clinic Patient-Flow Load Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/patientflow

package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/wcharczuk/go-chart"

	"github.com/tomtom215/patientflow/internal/models"
)

// Chart names, also the PNG file names without extension.
const (
	ChartWaitingHistogram = "waiting_histogram"
	ChartHourlyWaiting    = "hourly_waiting"
	ChartHourlyCounts     = "hourly_counts"
	ChartWeeklyWaiting    = "weekly_waiting"
	ChartWeeklyLoad       = "weekly_load"
)

// ChartNames lists every chart in render order.
var ChartNames = []string{
	ChartWaitingHistogram,
	ChartHourlyWaiting,
	ChartHourlyCounts,
	ChartWeeklyWaiting,
	ChartWeeklyLoad,
}

var (
	// ErrUnknownChart is returned by Render for a name not in ChartNames.
	ErrUnknownChart = errors.New("unknown chart")

	// ErrNoChartData is returned when a chart would have nothing to plot.
	ErrNoChartData = errors.New("not enough data to draw chart")
)

// ChartRenderer draws PNG charts of an analysis.
type ChartRenderer struct {
	width, height int
}

// NewChartRenderer returns a renderer for width x height pixel charts.
func NewChartRenderer(width, height int) *ChartRenderer {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 512
	}
	return &ChartRenderer{width: width, height: height}
}

// Render draws the named chart to w.
func (r *ChartRenderer) Render(name string, a *models.Analysis, w io.Writer) error {
	switch name {
	case ChartWaitingHistogram:
		return r.waitingHistogram(a.Summary.WaitingHistory, w)
	case ChartHourlyWaiting:
		return r.hourlyWaiting(a.Hourly, w)
	case ChartHourlyCounts:
		return r.hourlyCounts(a.Hourly, w)
	case ChartWeeklyWaiting:
		return r.weekly(a.Weekly, "Mean waiting by weekday", "minutes", weeklyWaiting, w)
	case ChartWeeklyLoad:
		return r.weekly(a.Weekly, "Mean load by weekday", "patients", weeklyLoad, w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
}

func (r *ChartRenderer) waitingHistogram(h models.Histogram, w io.Writer) error {
	if len(h.Counts) == 0 {
		return ErrNoChartData
	}
	bars := make([]chart.Value, len(h.Counts))
	for i, c := range h.Counts {
		bars[i] = chart.Value{Value: float64(c), Label: strconv.FormatFloat(h.BinStart(i), 'f', -1, 64)}
	}

	barWidth := (r.width - 100) / (len(bars) * 2)
	if barWidth < 2 {
		barWidth = 2
	}
	graph := chart.BarChart{
		Title:      "Mean waiting per bucket (minutes)",
		TitleStyle: chart.StyleShow(),
		Width:      r.width,
		Height:     r.height,
		BarWidth:   barWidth,
		XAxis:      chart.StyleShow(),
		YAxis: chart.YAxis{
			Name:      "buckets",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}

func (r *ChartRenderer) hourlyWaiting(t *models.HourlyTable, w io.Writer) error {
	series := chart.TimeSeries{Name: "mean waiting"}
	for _, row := range t.Rows() {
		if m, ok := row.MeanWaiting.Minutes(); ok {
			series.XValues = append(series.XValues, row.Start)
			series.YValues = append(series.YValues, m)
		}
	}
	if len(series.XValues) < 2 {
		return ErrNoChartData
	}
	return r.timeChart("Mean waiting per bucket", "minutes", []chart.Series{series}, w)
}

func (r *ChartRenderer) hourlyCounts(t *models.HourlyTable, w io.Writer) error {
	if t.Len() < 2 {
		return ErrNoChartData
	}
	xs := make([]time.Time, t.Len())
	columns := [4][]float64{}
	for i := range columns {
		columns[i] = make([]float64, t.Len())
	}
	for i, row := range t.Rows() {
		xs[i] = row.Start
		columns[0][i] = float64(row.Arrivals)
		columns[1][i] = float64(row.Treatments)
		columns[2][i] = float64(row.Finishes)
		columns[3][i] = float64(row.Load)
	}

	names := [4]string{"arrivals", "treatments", "finishes", "load"}
	series := make([]chart.Series, len(names))
	for i, name := range names {
		series[i] = chart.TimeSeries{Name: name, XValues: xs, YValues: columns[i]}
	}
	return r.timeChart("Patient flow per bucket", "patients", series, w)
}

func (r *ChartRenderer) timeChart(title, yName string, series []chart.Series, w io.Writer) error {
	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.StyleShow(),
		Width:      r.width,
		Height:     r.height,
		XAxis: chart.XAxis{
			Style:          chart.StyleShow(),
			ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 02 15h"),
		},
		YAxis: chart.YAxis{
			Name:      yName,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: series,
	}
	if len(series) > 1 {
		graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	}
	return graph.Render(chart.PNG, w)
}

func weeklyWaiting(row models.WeeklyRow) (float64, bool) {
	return row.MeanWaiting.Minutes()
}

func weeklyLoad(row models.WeeklyRow) (float64, bool) {
	return row.Load, true
}

// weekly draws one line per weekday over the time of day.
func (r *ChartRenderer) weekly(t *models.WeeklyTable, title, yName string, value func(models.WeeklyRow) (float64, bool), w io.Writer) error {
	var series []chart.Series
	points := 0
	for d := models.Monday; d <= models.Sunday; d++ {
		s := chart.ContinuousSeries{Name: d.String()}
		for _, row := range t.Day(d) {
			if v, ok := value(row); ok {
				s.XValues = append(s.XValues, float64(row.Hour)+float64(row.Minute)/60)
				s.YValues = append(s.YValues, v)
			}
		}
		if len(s.XValues) > 0 {
			series = append(series, s)
			points += len(s.XValues)
		}
	}
	if points < 2 {
		return ErrNoChartData
	}

	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.StyleShow(),
		Width:      r.width,
		Height:     r.height,
		XAxis: chart.XAxis{
			Name:      "time of day",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%02.0f:00", f)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name:      yName,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}
