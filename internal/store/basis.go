// Package store reads and writes the at-rest data of the fitting tools: the
// per-segment basis files, the OPD map archives and the record batches.
package store

import (
	"bufio"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/monitoring"
)

// BasisFileName returns the name of the basis file of segment id.
func BasisFileName(id int) string {
	return fmt.Sprintf("M2S%d.bin", id)
}

// EncodeBasis writes b as a gzip-compressed gob stream.
func EncodeBasis(w io.Writer, b asm.Basis) error {
	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode(b); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode basis: %w", err)
	}
	return gz.Close()
}

// DecodeBasis reads a basis written by EncodeBasis. The basis is returned as
// stored; it is checked when a segment is built from it.
func DecodeBasis(r io.Reader) (asm.Basis, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return asm.Basis{}, fmt.Errorf("failed to create gzip reader: %v: %w", err, ErrFormat)
	}
	defer gz.Close()

	var b asm.Basis
	if err := gob.NewDecoder(gz).Decode(&b); err != nil {
		return asm.Basis{}, fmt.Errorf("failed to decode basis: %v: %w", err, ErrFormat)
	}
	return b, nil
}

// SaveBasis writes the basis of segment id into dir.
func SaveBasis(dir string, id int, b asm.Basis) error {
	return writeFile(filepath.Join(dir, BasisFileName(id)), func(w io.Writer) error {
		return EncodeBasis(w, b)
	})
}

// LoadBasis reads the basis of segment id from dir.
func LoadBasis(dir string, id int) (asm.Basis, error) {
	path := filepath.Join(dir, BasisFileName(id))
	f, err := os.Open(path)
	if err != nil {
		return asm.Basis{}, err
	}
	defer f.Close()

	b, err := DecodeBasis(bufio.NewReader(f))
	if err != nil {
		return asm.Basis{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// LoadAssembly reads the seven basis files of dir concurrently and builds the
// mirror.
func LoadAssembly(dir string, opts asm.Options) (*asm.Assembly, error) {
	defer monitoring.Timed("Assembling the ASM segments from " + dir)()

	bases := make([]asm.Basis, asm.NSegment)
	var g errgroup.Group
	for i := range bases {
		g.Go(func() error {
			b, err := LoadBasis(dir, i+1)
			if err != nil {
				return err
			}
			bases[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	a, err := asm.Build(bases, opts)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("ASM: %d modes over %d segments, grid of %d samples", a.NMode(), asm.NSegment, a.GridLen())
	return a, nil
}

// writeFile creates path and hands a buffered writer to write. The file is
// removed if write fails.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
