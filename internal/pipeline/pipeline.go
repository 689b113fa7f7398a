// Package pipeline fits batches of OPD maps with the mirror and turns them
// into records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/config"
	"github.com/banshee-data/wavefront.budget/internal/monitoring"
	"github.com/banshee-data/wavefront.budget/internal/opd"
	"github.com/banshee-data/wavefront.budget/internal/record"
	"github.com/banshee-data/wavefront.budget/internal/store"
)

// ErrMethod is returned for an unknown fit method.
var ErrMethod = errors.New("pipeline: unknown fit method")

// Method selects how modal coefficients are computed.
type Method string

const (
	LeastSquare Method = config.MethodLeastSquare
	Project     Method = config.MethodProject
)

// ParseMethod returns the method named s.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case LeastSquare, Project:
		return m, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrMethod)
}

// Options tune Process.
type Options struct {
	Method Method
	// ZeroMean removes the mean of each map over the mirror before the fit.
	ZeroMean bool
	// Workers bounds the number of maps processed at once; 0 means 1.
	Workers int
}

// OptionsFromConfig returns the Process options of cfg.
func OptionsFromConfig(cfg *config.FitConfig) (Options, error) {
	m, err := ParseMethod(cfg.GetMethod())
	if err != nil {
		return Options{}, err
	}
	return Options{Method: m, ZeroMean: cfg.GetZeroMean(), Workers: cfg.GetWorkers()}, nil
}

// FitOut returns the coefficients of f on a without touching a.
func FitOut(a *asm.Assembly, f opd.Field, m Method) ([]float64, error) {
	switch m {
	case LeastSquare:
		return a.LeastSquareOut(f)
	case Project:
		return a.ProjectOut(f)
	}
	return nil, fmt.Errorf("%q: %w", m, ErrMethod)
}

// Fit stores the coefficients of f in a.
func Fit(a *asm.Assembly, f opd.Field, m Method) error {
	var err error
	switch m {
	case LeastSquare:
		_, err = a.LeastSquare(f)
	case Project:
		_, err = a.Project(f)
	default:
		err = fmt.Errorf("%q: %w", m, ErrMethod)
	}
	return err
}

// Residual fits f with a and returns what is left once the shape of the modes
// in subset is removed, NaN outside the mirror. It updates the coefficients of
// a; callers sharing a must serialize calls.
func Residual(a *asm.Assembly, f opd.Field, m Method, subset asm.ModeSubset) (opd.Field, error) {
	if err := Fit(a, f, m); err != nil {
		return opd.Field{}, err
	}
	return a.MirrorShapeSubtract(f, subset)
}

// ProcessField masks f to the mirror, fits it and summarizes it as a record.
func ProcessField(a *asm.Assembly, name string, f opd.Field, opts Options) (record.Record, error) {
	f, err := f.MaskWith(a.UnionMask())
	if err != nil {
		return record.Record{}, err
	}
	if opts.ZeroMean {
		f = f.ZeroMean()
	}
	coefs, err := FitOut(a, f, opts.Method)
	if err != nil {
		return record.Record{}, err
	}
	return record.New(name, f, a, coefs)
}

// Process loads and fits every OPD map archive of files on a pool of workers.
// Records come back in the order of files. The first failure cancels the
// remaining work.
func Process(ctx context.Context, a *asm.Assembly, files []string, opts Options) (record.Batch, error) {
	if _, err := ParseMethod(string(opts.Method)); err != nil {
		return nil, err
	}
	start := time.Now()
	out := make(record.Batch, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := store.LoadField(path)
			if err != nil {
				return err
			}
			r, err := ProcessField(a, filepath.Base(path), f, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	monitoring.Logf("processed %d OPD maps (%s) in %s", len(files), opts.Method, time.Since(start).Round(time.Millisecond))
	return out, nil
}
