package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/wavefront.budget/internal/asm"
)

// DefaultConfigPath is the path to the canonical fit defaults file.
const DefaultConfigPath = "config/fit.defaults.json"

// Fit methods.
const (
	MethodLeastSquare = "least_square"
	MethodProject     = "project"
)

// FitConfig holds the parameters of a modal fitting run. Every field is
// optional; the Get* accessors supply the defaults.
type FitConfig struct {
	NMode     *int    `json:"n_mode,omitempty"`
	GridWidth *int    `json:"grid_width,omitempty"`
	Method    *string `json:"method,omitempty"`

	// Pseudo-inverse singular value cut-off, 0 selects the automatic one.
	PinvTolerance *float64 `json:"pinv_tolerance,omitempty"`
	UnitNorm      *bool    `json:"unit_norm,omitempty"`

	// Number of leading modes left out of shape reconstructions.
	ExcludeModes *int `json:"exclude_modes,omitempty"`
	// Worker pool size, 0 selects GOMAXPROCS.
	Workers *int `json:"workers,omitempty"`

	ScaleExponent *int  `json:"scale_exponent,omitempty"`
	ZeroMean      *bool `json:"zero_mean,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyFitConfig returns a FitConfig with every field unset.
func EmptyFitConfig() *FitConfig {
	return &FitConfig{}
}

// DefaultFitConfig returns a FitConfig with every field set to its default.
func DefaultFitConfig() *FitConfig {
	return &FitConfig{
		NMode:         ptrInt(asm.ReferenceNMode),
		GridWidth:     ptrInt(asm.GridWidth),
		Method:        ptrString(MethodLeastSquare),
		PinvTolerance: ptrFloat64(0),
		UnitNorm:      ptrBool(false),
		ExcludeModes:  ptrInt(0),
		Workers:       ptrInt(0),
		ScaleExponent: ptrInt(-9),
		ZeroMean:      ptrBool(true),
	}
}

// LoadFitConfig loads a FitConfig from a JSON file. The file must have a .json
// extension and be under 1MB. Omitted fields keep their defaults.
func LoadFitConfig(path string) (*FitConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFitConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns DefaultFitConfig when path is empty.
func LoadOrDefault(path string) (*FitConfig, error) {
	if path == "" {
		return DefaultFitConfig(), nil
	}
	return LoadFitConfig(path)
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. It panics if the file cannot be found; intended for
// test setup.
func MustLoadDefaultConfig() *FitConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ one level deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadFitConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *FitConfig) Validate() error {
	if c.NMode != nil && *c.NMode <= 0 {
		return fmt.Errorf("n_mode must be positive, got %d", *c.NMode)
	}
	if c.GridWidth != nil && *c.GridWidth <= 0 {
		return fmt.Errorf("grid_width must be positive, got %d", *c.GridWidth)
	}
	if c.Method != nil {
		switch *c.Method {
		case MethodLeastSquare, MethodProject:
		default:
			return fmt.Errorf("method must be %q or %q, got %q", MethodLeastSquare, MethodProject, *c.Method)
		}
	}
	if c.PinvTolerance != nil && *c.PinvTolerance < 0 {
		return fmt.Errorf("pinv_tolerance must be non-negative, got %g", *c.PinvTolerance)
	}
	if c.ExcludeModes != nil {
		if *c.ExcludeModes < 0 {
			return fmt.Errorf("exclude_modes must be non-negative, got %d", *c.ExcludeModes)
		}
		if *c.ExcludeModes >= c.GetNMode() {
			return fmt.Errorf("exclude_modes %d leaves no mode out of %d", *c.ExcludeModes, c.GetNMode())
		}
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	return nil
}

// GetNMode returns the n_mode value or the default.
func (c *FitConfig) GetNMode() int {
	if c.NMode == nil {
		return asm.ReferenceNMode
	}
	return *c.NMode
}

// GetGridWidth returns the grid_width value or the default.
func (c *FitConfig) GetGridWidth() int {
	if c.GridWidth == nil {
		return asm.GridWidth
	}
	return *c.GridWidth
}

// GetMethod returns the method value or the default.
func (c *FitConfig) GetMethod() string {
	if c.Method == nil {
		return MethodLeastSquare
	}
	return *c.Method
}

// GetPinvTolerance returns the pinv_tolerance value or the default.
func (c *FitConfig) GetPinvTolerance() float64 {
	if c.PinvTolerance == nil {
		return 0
	}
	return *c.PinvTolerance
}

// GetUnitNorm returns the unit_norm value or the default.
func (c *FitConfig) GetUnitNorm() bool {
	if c.UnitNorm == nil {
		return false
	}
	return *c.UnitNorm
}

// GetExcludeModes returns the exclude_modes value or the default.
func (c *FitConfig) GetExcludeModes() int {
	if c.ExcludeModes == nil {
		return 0
	}
	return *c.ExcludeModes
}

// GetWorkers returns the worker pool size, resolving 0 to GOMAXPROCS.
func (c *FitConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// GetScaleExponent returns the scale_exponent value or the default.
func (c *FitConfig) GetScaleExponent() int {
	if c.ScaleExponent == nil {
		return -9
	}
	return *c.ScaleExponent
}

// GetZeroMean returns the zero_mean value or the default.
func (c *FitConfig) GetZeroMean() bool {
	if c.ZeroMean == nil {
		return true
	}
	return *c.ZeroMean
}

// SegmentOptions returns the segment construction options.
func (c *FitConfig) SegmentOptions() asm.Options {
	return asm.Options{PinvTolerance: c.GetPinvTolerance(), UnitNorm: c.GetUnitNorm()}
}

// ReconstructedModes returns the mode subset used for shape reconstruction:
// every mode when exclude_modes is 0, the modes from exclude_modes on
// otherwise.
func (c *FitConfig) ReconstructedModes() asm.ModeSubset {
	if c.GetExcludeModes() == 0 {
		return nil
	}
	return asm.ModeRange(c.GetExcludeModes(), c.GetNMode())
}
