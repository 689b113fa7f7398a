package synth

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/banshee-data/wavefront.budget/internal/store"
)

// WriteBases saves Bases(width, nMode, rng) to dir as M2S<id>.bin files.
func WriteBases(dir string, width, nMode int, rng *rand.Rand) error {
	for i, b := range Bases(width, nMode, rng) {
		if err := store.SaveBasis(dir, i+1, b); err != nil {
			return err
		}
	}
	return nil
}

// WriteFields saves n OPD maps of rms about 100nm to dir as opd_NNNN.npz and
// returns their paths in order.
func WriteFields(dir string, width, n int, rng *rand.Rand) ([]string, error) {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("opd_%04d.npz", i))
		if err := store.WriteFieldNPZ(paths[i], Field(width, 1e-7, rng)); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
