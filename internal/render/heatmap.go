// Package render draws OPD maps and modal spectra as PNG plots and HTML
// charts.
package render

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/wavefront.budget/internal/opd"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("render: no data to plot")

// fieldGrid exposes a row-major square map as a plotter.GridXYZ, row 0 at the
// top.
type fieldGrid struct {
	data   []float64
	width  int
	height int
}

func (g fieldGrid) Dims() (c, r int)   { return g.width, g.height }
func (g fieldGrid) Z(c, r int) float64 { return g.data[(g.height-1-r)*g.width+c] }
func (g fieldGrid) X(c int) float64    { return float64(c) }
func (g fieldGrid) Y(r int) float64    { return float64(r) }

// Heatmap writes a PNG heatmap of f.Scaled(exponent) to path. f is a
// row-major map width samples wide; NaN samples are left transparent.
func Heatmap(f opd.Field, width, exponent int, title, path string) error {
	if width <= 0 || f.Len() == 0 || f.Len()%width != 0 {
		return fmt.Errorf("map of %d samples is not %d wide: %w", f.Len(), width, ErrNoData)
	}
	if f.Count() == 0 {
		return fmt.Errorf("map is all NaN: %w", ErrNoData)
	}
	scaled := f.Scaled(exponent)
	g := fieldGrid{data: scaled.Map(), width: width, height: f.Len() / width}

	hm := plotter.NewHeatMap(g, palette.Heat(64, 1))
	x := scaled.NoNaN()
	hm.Min, hm.Max = floats.Min(x), floats.Max(x)
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	hm.NaN = color.Transparent

	p := plot.New()
	p.Title.Text = title
	p.HideAxes()
	p.Add(hm)

	side := vg.Length(6) * vg.Inch
	if err := p.Save(side, side, path); err != nil {
		return fmt.Errorf("failed to save heatmap %s: %w", path, err)
	}
	return nil
}
