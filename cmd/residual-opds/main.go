// Command residual-opds fits the last OPD map of each case and writes heatmaps
// of the map and of the fitting residual.
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

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/config"
	"github.com/banshee-data/wavefront.budget/internal/pipeline"
	"github.com/banshee-data/wavefront.budget/internal/render"
	"github.com/banshee-data/wavefront.budget/internal/store"
	"github.com/banshee-data/wavefront.budget/internal/version"
)

var errNoInput = errors.New("no OPD maps")

type options struct {
	basisDir   string
	configPath string
	pattern    string
	outDir     string
	cases      []string
}

func main() {
	var o options
	flag.StringVar(&o.basisDir, "basis", "bases", "Directory of the M2S<id>.bin segment bases")
	flag.StringVar(&o.configPath, "config", "", "Fit configuration JSON (defaults when empty)")
	flag.StringVar(&o.pattern, "pattern", "*.npz", "OPD map file pattern inside a case directory")
	flag.StringVar(&o.outDir, "out", ".", "Directory for the heatmaps")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("residual-opds"))
		return
	}
	o.cases = flag.Args()
	if len(o.cases) == 0 {
		log.Fatal("at least one case directory is required")
	}

	if err := run(o, os.Stdout); err != nil {
		log.Fatalf("residual-opds: %v", err)
	}
}

func run(o options, w io.Writer) error {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return err
	}
	method, err := pipeline.ParseMethod(cfg.GetMethod())
	if err != nil {
		return err
	}
	a, err := store.LoadAssembly(o.basisDir, cfg.SegmentOptions())
	if err != nil {
		return err
	}
	width := cfg.GetGridWidth()
	if a.GridLen() != width*width {
		return fmt.Errorf("bases cover %d samples, not a %dx%d grid", a.GridLen(), width, width)
	}

	for _, dir := range o.cases {
		if err := residualCase(a, dir, o, method, cfg.ReconstructedModes(), width, w); err != nil {
			return fmt.Errorf("case %s: %w", dir, err)
		}
	}
	return nil
}

func residualCase(a *asm.Assembly, dir string, o options, method pipeline.Method, subset asm.ModeSubset, width int, w io.Writer) error {
	files, err := filepath.Glob(filepath.Join(dir, o.pattern))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%s in %s: %w", o.pattern, dir, errNoInput)
	}
	sort.Strings(files)
	last := files[len(files)-1]
	name := filepath.Base(filepath.Clean(dir))
	fmt.Fprintf(w, "case %s: %s\n", name, filepath.Base(last))

	f, err := store.LoadField(last)
	if err != nil {
		return err
	}
	if err := render.Heatmap(f, width, -6, name+" OPD [micron]", filepath.Join(o.outDir, name+"_domeseeing-micron.png")); err != nil {
		return err
	}

	residual, err := pipeline.Residual(a, f, method, subset)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "case %s: OPD std %.1fnm, residual std %.1fnm\n", name, f.Std()*1e9, residual.Std()*1e9)
	return render.Heatmap(residual, width, -9, name+" residual [nm]", filepath.Join(o.outDir, name+"_residuals-opd.png"))
}
