// Command fitting-error summarizes the fitting records of dome seeing cases:
// mean wavefront error, segment RSS and modal spectrum slope, with spectrum
// and residual plots per case.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"

	"github.com/banshee-data/wavefront.budget/internal/db"
	"github.com/banshee-data/wavefront.budget/internal/pipeline"
	"github.com/banshee-data/wavefront.budget/internal/record"
	"github.com/banshee-data/wavefront.budget/internal/render"
	"github.com/banshee-data/wavefront.budget/internal/store"
	"github.com/banshee-data/wavefront.budget/internal/version"
)

var errNoRecords = errors.New("nothing to summarize")

type options struct {
	records string
	dbPath  string
	outDir  string
	html    string
	// Case directories, or run IDs when dbPath is set.
	args []string
}

// source is one batch of records to summarize.
type source struct {
	name  string
	batch record.Batch
}

func main() {
	var o options
	flag.StringVar(&o.records, "records", "domeseeing_kl.bin", "Records file name inside each case directory")
	flag.StringVar(&o.dbPath, "db", "", "Read runs from this SQLite database; arguments are run IDs (all runs when none)")
	flag.StringVar(&o.outDir, "out", ".", "Directory for the plots")
	flag.StringVar(&o.html, "html", "", "Also write an interactive HTML page of the spectra to this file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("fitting-error"))
		return
	}
	o.args = flag.Args()

	if err := run(o, os.Stdout); err != nil {
		log.Fatalf("fitting-error: %v", err)
	}
}

func run(o options, w io.Writer) error {
	sources, err := loadSources(o)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return errNoRecords
	}

	var lines []*charts.Line
	for _, s := range sources {
		sum, err := pipeline.Summarize(s.batch)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		fmt.Fprintf(w, "%-20s %6.0f %s %s\n", s.name, sum.MeanStd*1e9, formatSlice(sum.MeanSegmentRSS, 1e9, "%6.0f"), formatSlice(sum.Eta, 1, "%+4.2f"))

		nMode := s.batch.NMode()
		spectrum := render.SpectrumOptions{
			Title:  s.name,
			XLabel: "KL mode #",
			YLabel: "Mean squared coefficient [m²]",
		}
		if err := render.SpectrumPlot(sum.MeanModalCoefsSquare, nMode, spectrum, filepath.Join(o.outDir, s.name+"_modal-spectrum.png")); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		residuals := render.SpectrumOptions{
			Title:   s.name,
			XLabel:  "KL mode #",
			YLabel:  "Segment WFE RSS [nm]",
			LinearX: true,
		}
		residualNM := scaled(sum.MeanSegmentResidualRSS, 1e9)
		if err := render.SpectrumPlot(residualNM, nMode, residuals, filepath.Join(o.outDir, s.name+"_residuals.png")); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}

		if o.html != "" {
			line, err := render.SpectrumChart(sum.MeanModalCoefsSquare, nMode, spectrum)
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			lines = append(lines, line)
		}
	}

	if o.html != "" {
		f, err := os.Create(o.html)
		if err != nil {
			return err
		}
		if err := render.WritePage(f, "Modal spectra", lines...); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return nil
}

func loadSources(o options) ([]source, error) {
	if o.dbPath == "" {
		sources := make([]source, 0, len(o.args))
		for _, dir := range o.args {
			b, err := store.LoadRecords(filepath.Join(dir, o.records))
			if err != nil {
				return nil, err
			}
			sources = append(sources, source{name: filepath.Base(filepath.Clean(dir)), batch: b})
		}
		return sources, nil
	}

	database, err := db.NewDB(o.dbPath)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	runs, err := database.Runs()
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(o.args))
	for _, id := range o.args {
		wanted[id] = true
	}
	explicit := len(wanted) > 0
	var sources []source
	for _, r := range runs {
		if explicit && !wanted[r.RunID] || !explicit && r.NRecord == 0 {
			continue
		}
		delete(wanted, r.RunID)
		b, err := database.Records(r.RunID)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source{name: r.CaseName + "_" + r.Method, batch: b})
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for id := range wanted {
			missing = append(missing, id)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("runs %s: %w", strings.Join(missing, ", "), db.ErrRunNotFound)
	}
	return sources, nil
}

func scaled(x []float64, s float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * s
	}
	return out
}

func formatSlice(x []float64, s float64, format string) string {
	parts := make([]string, len(x))
	for i, v := range x {
		parts[i] = fmt.Sprintf(format, v*s)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
