package store

import (
	"bufio"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/wavefront.budget/internal/monitoring"
	"github.com/banshee-data/wavefront.budget/internal/record"
)

// EncodeRecords writes a record batch as a gzip-compressed gob stream.
func EncodeRecords(w io.Writer, b record.Batch) error {
	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode([]record.Record(b)); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return gz.Close()
}

// DecodeRecords reads a batch written by EncodeRecords and checks it.
func DecodeRecords(r io.Reader) (record.Batch, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %v: %w", err, ErrFormat)
	}
	defer gz.Close()

	var recs []record.Record
	if err := gob.NewDecoder(gz).Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %v: %w", err, ErrFormat)
	}
	b := record.Batch(recs)
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveRecords writes b to path.
func SaveRecords(path string, b record.Batch) error {
	if err := writeFile(path, func(w io.Writer) error { return EncodeRecords(w, b) }); err != nil {
		return err
	}
	monitoring.Logf("wrote %d records to %s", len(b), path)
	return nil
}

// LoadRecords reads the batch stored at path.
func LoadRecords(path string) (record.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := DecodeRecords(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
