package store

import (
	"archive/zip"
	"fmt"
	"io"
	"math"

	"github.com/sbinet/npyio/npy"
	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/wavefront.budget/internal/opd"
)

// Arrays of an OPD map archive.
const (
	ArrayOPD    = "opd"
	ArrayOPDMax = "opd max"
	ArrayOPDMin = "opd min"
)

// MaxArrayBytes bounds the data of a single archive array.
const MaxArrayBytes = 1 << 30

// LoadField reads an OPD map archive: a zip of NPY arrays holding the map and
// its extrema.
func LoadField(path string) (opd.Field, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return opd.Field{}, err
	}
	defer zr.Close()

	f, err := readField(&zr.Reader)
	if err != nil {
		return opd.Field{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func readField(zr *zip.Reader) (opd.Field, error) {
	data, err := readArray(zr, ArrayOPD)
	if err != nil {
		return opd.Field{}, err
	}
	hi, err := readArray(zr, ArrayOPDMax)
	if err != nil {
		return opd.Field{}, err
	}
	lo, err := readArray(zr, ArrayOPDMin)
	if err != nil {
		return opd.Field{}, err
	}
	if len(hi) == 0 || len(lo) == 0 {
		return opd.Field{}, fmt.Errorf("empty extrema: %w", ErrFormat)
	}
	return opd.FromMap(data, hi[0], lo[0]), nil
}

func readArray(zr *zip.Reader, name string) ([]float64, error) {
	var member *zip.File
	for _, f := range zr.File {
		if f.Name == name+".npy" || f.Name == name {
			member = f
			break
		}
	}
	if member == nil {
		return nil, fmt.Errorf("array %q: not in archive: %w", name, ErrFormat)
	}
	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}
	defer rc.Close()

	x, err := ReadNPY(rc, member.UncompressedSize64)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", name, err)
	}
	return x, nil
}

// WriteFieldNPZ writes f and its extrema as an OPD map archive.
func WriteFieldNPZ(path string, f opd.Field) error {
	return writeFile(path, func(w io.Writer) error {
		zw := npz.NewWriter(w)
		if err := zw.Write(ArrayOPD, f.Map()); err != nil {
			return err
		}
		if err := zw.Write(ArrayOPDMax, []float64{f.Max}); err != nil {
			return err
		}
		if err := zw.Write(ArrayOPDMin, []float64{f.Min}); err != nil {
			return err
		}
		return zw.Close()
	})
}

// ReadNPY reads a little-endian float64 NPY array and returns its samples in
// C order. Arrays whose data would exceed limit bytes, or MaxArrayBytes, are
// rejected before anything is allocated.
func ReadNPY(r io.Reader, limit uint64) ([]float64, error) {
	nr, err := npy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("npy header: %v: %w", err, ErrFormat)
	}
	descr := nr.Header.Descr
	if descr.Type != "<f8" {
		return nil, fmt.Errorf("npy dtype %q, want <f8: %w", descr.Type, ErrFormat)
	}
	n, err := elements(descr.Shape)
	if err != nil {
		return nil, err
	}
	if n > min(limit, MaxArrayBytes)/8 {
		return nil, fmt.Errorf("npy shape %v holds %d samples, at most %d bytes available: %w",
			descr.Shape, n, min(limit, MaxArrayBytes), ErrFormat)
	}
	if n == 0 && len(descr.Shape) > 0 {
		return []float64{}, nil
	}

	switch {
	case len(descr.Shape) == 0:
		var v float64
		if err := nr.Read(&v); err != nil {
			return nil, fmt.Errorf("npy data: %v: %w", err, ErrFormat)
		}
		return []float64{v}, nil
	case len(descr.Shape) == 2:
		var m mat.Dense
		if err := nr.Read(&m); err != nil {
			return nil, fmt.Errorf("npy data: %v: %w", err, ErrFormat)
		}
		rows, cols := m.Dims()
		x := make([]float64, 0, rows*cols)
		for i := 0; i < rows; i++ {
			x = append(x, m.RawRowView(i)...)
		}
		return x, nil
	case descr.Fortran && len(descr.Shape) > 2:
		return nil, fmt.Errorf("fortran order with %d dimensions: %w", len(descr.Shape), ErrFormat)
	}
	var x []float64
	if err := nr.Read(&x); err != nil {
		return nil, fmt.Errorf("npy data: %v: %w", err, ErrFormat)
	}
	return x, nil
}

// elements returns the number of samples of an array of the given shape.
func elements(shape []int) (uint64, error) {
	n := uint64(1)
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("npy shape %v: %w", shape, ErrFormat)
		}
		if d != 0 && n > math.MaxUint64/uint64(d) {
			return 0, fmt.Errorf("npy shape %v overflows: %w", shape, ErrFormat)
		}
		n *= uint64(d)
	}
	return n, nil
}
