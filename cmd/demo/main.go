// Command demo walks through the fit of a single OPD map on the ASM: map
// statistics, segment wavefront errors, fitting residual and heatmaps.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/banshee-data/wavefront.budget/internal/config"
	"github.com/banshee-data/wavefront.budget/internal/pipeline"
	"github.com/banshee-data/wavefront.budget/internal/record"
	"github.com/banshee-data/wavefront.budget/internal/render"
	"github.com/banshee-data/wavefront.budget/internal/store"
	"github.com/banshee-data/wavefront.budget/internal/synth"
	"github.com/banshee-data/wavefront.budget/internal/version"
)

type options struct {
	basisDir   string
	configPath string
	opdPath    string
	outDir     string
	// synthetic writes generated bases and a map to basisDir and fits those.
	synthetic bool
	seed      uint64
}

func main() {
	var o options
	flag.StringVar(&o.basisDir, "basis", "bases", "Directory of the M2S<id>.bin segment bases")
	flag.StringVar(&o.configPath, "config", "", "Fit configuration JSON (defaults when empty)")
	flag.StringVar(&o.opdPath, "opd", "", "OPD map archive (.npz)")
	flag.StringVar(&o.outDir, "out", ".", "Directory for the heatmaps")
	flag.BoolVar(&o.synthetic, "synthetic", false, "Generate bases and an OPD map in -basis instead of reading them")
	flag.Uint64Var(&o.seed, "seed", 1, "Random seed of -synthetic")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("demo"))
		return
	}
	if err := run(o, os.Stdout); err != nil {
		log.Fatalf("demo: %v", err)
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
	width := cfg.GetGridWidth()

	if o.synthetic {
		if err := os.MkdirAll(o.basisDir, 0o755); err != nil {
			return err
		}
		rng := rand.New(rand.NewPCG(o.seed, o.seed))
		if err := synth.WriteBases(o.basisDir, width, cfg.GetNMode(), rng); err != nil {
			return err
		}
		paths, err := synth.WriteFields(o.basisDir, width, 1, rng)
		if err != nil {
			return err
		}
		o.opdPath = paths[0]
	}
	if o.opdPath == "" {
		return fmt.Errorf("an OPD map is required, set -opd or -synthetic")
	}

	f, err := store.LoadField(o.opdPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "OPD: %d samples, mean %.3fnm, std %.3fnm\n", f.Count(), f.Mean()*1e9, f.Std()*1e9)

	a, err := store.LoadAssembly(o.basisDir, cfg.SegmentOptions())
	if err != nil {
		return err
	}
	if f.Len() != width*width || a.GridLen() != f.Len() {
		return fmt.Errorf("map of %d samples and bases of %d samples on a %d wide grid", f.Len(), a.GridLen(), width)
	}

	f, err = f.MaskWith(a.UnionMask())
	if err != nil {
		return err
	}
	if cfg.GetZeroMean() {
		f = f.ZeroMean()
	}
	fmt.Fprintf(w, "ASM OPD: %d samples, std %.3fnm\n", f.Count(), f.Std()*1e9)

	if err := pipeline.Fit(a, f, method); err != nil {
		return err
	}
	r, err := record.New(filepath.Base(o.opdPath), f, a, a.Coefficients())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "segment WFE RSS [nm]: %s\n", formatNM(sqrtAll(r.SegmentMeanSquare)))
	fmt.Fprintf(w, "coefficient RSS [nm]: %s\n", formatNM(r.CoefficientRSS()))

	subset := cfg.ReconstructedModes()
	shape, err := a.MirrorShape(subset)
	if err != nil {
		return err
	}
	residual, err := a.MirrorShapeSubtract(f, subset)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "residual: std %.3fnm, rms %.3fnm\n", residual.Std()*1e9, residual.RMS()*1e9)

	if err := render.Heatmap(f, width, -6, "OPD [micron]", filepath.Join(o.outDir, "domeseeing-micron.png")); err != nil {
		return err
	}
	if err := render.Heatmap(shape, width, -6, "ASM shape [micron]", filepath.Join(o.outDir, "asmshape-micron.png")); err != nil {
		return err
	}
	return render.Heatmap(residual, width, -9, "Residual [nm]", filepath.Join(o.outDir, "residuals-nm.png"))
}

func sqrtAll(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Sqrt(v)
	}
	return out
}

func formatNM(x []float64) string {
	s := ""
	for i, v := range x {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%.1f", v*1e9)
	}
	return s
}
