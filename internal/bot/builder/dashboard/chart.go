package dashboard

import (
	"bytes"
	"fmt"
	"time"

	"github.com/robalyx/wordwatch/internal/watch"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Chart styling.
const (
	titleFontSize   = 12.0
	xAxisFontSize   = 10.0
	yAxisFontSize   = 12.0
	xAxisRotation   = 45.0
	gridLineWidth   = 1.0
	seriesLineWidth = 3.0
	seriesDotWidth  = 4.0
	paddingTop      = 30
	paddingBottom   = 30
	paddingLeft     = 20
	paddingRight    = 20
)

// ChartBuilder plots logged matches per day.
type ChartBuilder struct {
	counts map[string]int
	end    time.Time
	days   int
}

// NewChartBuilder creates a chart of the days days ending on end. counts maps
// watch.DateLayout days to the number of logged matches.
func NewChartBuilder(counts map[string]int, end time.Time, days int) *ChartBuilder {
	return &ChartBuilder{
		counts: counts,
		end:    end.UTC(),
		days:   max(days, 2),
	}
}

// Series returns the plotted day labels and counts, oldest first.
func (b *ChartBuilder) Series() ([]string, []float64) {
	labels := make([]string, b.days)
	values := make([]float64, b.days)
	for i := range b.days {
		day := b.end.AddDate(0, 0, i-(b.days-1))
		labels[i] = day.Format("01-02")
		values[i] = float64(b.counts[day.Format(watch.DateLayout)])
	}
	return labels, values
}

// Build renders the chart as a PNG.
func (b *ChartBuilder) Build() (*bytes.Buffer, error) {
	labels, values := b.Series()

	xValues := make([]float64, len(values))
	gridLines := make([]chart.GridLine, len(values))
	ticks := make([]chart.Tick, len(values))
	for i := range values {
		xValues[i] = float64(i)
		gridLines[i] = chart.GridLine{Value: float64(i)}
		ticks[i] = chart.Tick{Value: float64(i), Label: labels[i]}
	}

	graph := &chart.Chart{
		Title:      fmt.Sprintf("Logged matches (last %d days)", b.days),
		TitleStyle: chart.Style{FontSize: titleFontSize},
		Background: chart.Style{
			Padding: chart.Box{
				Top:    paddingTop,
				Left:   paddingLeft,
				Right:  paddingRight,
				Bottom: paddingBottom,
			},
		},
		XAxis: chart.XAxis{
			Style: chart.Style{
				FontSize:            xAxisFontSize,
				TextRotationDegrees: xAxisRotation,
			},
			GridMajorStyle: gridStyle(),
			GridLines:      gridLines,
			Ticks:          ticks,
			TickPosition:   chart.TickPositionUnderTick,
		},
		YAxis: chart.YAxis{
			Style:          chart.Style{FontSize: yAxisFontSize},
			GridMajorStyle: gridStyle(),
			Range:          yRange(values),
			ValueFormatter: func(v any) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			createSeries("Matches", xValues, values, chart.ColorBlue),
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(graph)}

	buf := new(bytes.Buffer)
	if err := graph.Render(chart.PNG, buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}

func gridStyle() chart.Style {
	return chart.Style{
		StrokeColor: chart.ColorAlternateGray,
		StrokeWidth: gridLineWidth,
	}
}

// yRange keeps the axis valid when every day is zero.
func yRange(values []float64) *chart.ContinuousRange {
	top := 1.0
	for _, v := range values {
		top = max(top, v)
	}
	return &chart.ContinuousRange{Min: 0, Max: top}
}

func createSeries(name string, xValues, yValues []float64, color drawing.Color) chart.Series {
	return chart.ContinuousSeries{
		Name:    name,
		XValues: xValues,
		YValues: yValues,
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: seriesLineWidth,
			DotColor:    color,
			DotWidth:    seriesDotWidth,
		},
	}
}
