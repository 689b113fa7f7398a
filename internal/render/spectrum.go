package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/wavefront.budget/internal/asm"
)

// SpectrumOptions label a per-segment modal series plot.
type SpectrumOptions struct {
	Title  string
	XLabel string
	YLabel string
	// LinearX keeps the mode axis linear; the value axis is always
	// logarithmic.
	LinearX bool
}

// segmentSeries splits values, nMode per segment S1..S7, into one series per
// segment indexed by mode number from 1. Non-positive and non-finite values
// cannot sit on a log axis and are dropped.
func segmentSeries(values []float64, nMode int) ([]plotter.XYs, error) {
	if nMode <= 0 || len(values) != asm.NSegment*nMode {
		return nil, fmt.Errorf("%d values for %d modes per segment: %w", len(values), nMode, ErrNoData)
	}
	series := make([]plotter.XYs, asm.NSegment)
	n := 0
	for sid := range series {
		for i, v := range values[sid*nMode : (sid+1)*nMode] {
			if v > 0 && !math.IsInf(v, 1) {
				series[sid] = append(series[sid], plotter.XY{X: float64(i + 1), Y: v})
				n++
			}
		}
	}
	if n == 0 {
		return nil, ErrNoData
	}
	return series, nil
}

// SpectrumPlot writes a PNG plot of one line per segment to path.
func SpectrumPlot(values []float64, nMode int, o SpectrumOptions, path string) error {
	series, err := segmentSeries(values, nMode)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = o.XLabel
	p.Y.Label.Text = o.YLabel
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	if !o.LinearX {
		p.X.Scale = plot.LogScale{}
		p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	p.Add(plotter.NewGrid())

	for sid, xy := range series {
		if len(xy) == 0 {
			continue
		}
		line, err := plotter.NewLine(xy)
		if err != nil {
			return fmt.Errorf("S%d line: %w", sid+1, err)
		}
		line.Color = plotutil.Color(sid)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("S%d", sid+1), line)
	}
	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save spectrum %s: %w", path, err)
	}
	return nil
}

// SpectrumChart returns an interactive line chart of one series per segment.
func SpectrumChart(values []float64, nMode int, o SpectrumOptions) (*charts.Line, error) {
	series, err := segmentSeries(values, nMode)
	if err != nil {
		return nil, err
	}

	xType := "log"
	if o.LinearX {
		xType = "value"
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: o.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: xType, Name: o.XLabel, NameLocation: "middle", NameGap: 25, Min: 1}),
		charts.WithYAxisOpts(opts.YAxis{Type: "log", Name: o.YLabel, NameLocation: "middle", NameGap: 50}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	for sid, xy := range series {
		data := make([]opts.LineData, 0, len(xy))
		for _, pt := range xy {
			data = append(data, opts.LineData{Value: []interface{}{pt.X, pt.Y}})
		}
		line.AddSeries(fmt.Sprintf("S%d", sid+1), data,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line, nil
}

// WritePage renders the charts on one HTML page.
func WritePage(w io.Writer, title string, lines ...*charts.Line) error {
	page := components.NewPage()
	page.PageTitle = title
	for _, l := range lines {
		page.AddCharts(l)
	}
	return page.Render(w)
}
