package store

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/record"
)

func sampleBatch() record.Batch {
	var b record.Batch
	for k := 0; k < 3; k++ {
		r := record.Record{File: filepath.Join("case", "opd_"+string(rune('a'+k))+".npz"), Var: float64(k) + 0.5, NMode: 2}
		for i := 0; i < asm.NSegment; i++ {
			r.SegmentMeanSquare = append(r.SegmentMeanSquare, float64(i*k))
			r.Ratios = append(r.Ratios, 1.0/asm.NSegment)
			r.ModalCoefficients = append(r.ModalCoefficients, float64(i), -float64(k))
		}
		b = append(b, r)
	}
	return b
}

func TestRecordsRoundTrip(t *testing.T) {
	t.Parallel()
	want := sampleBatch()

	var buf bytes.Buffer
	require.NoError(t, EncodeRecords(&buf, want))
	got, err := DecodeRecords(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRecords(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "domeseeing.bin")
	want := sampleBatch()
	require.NoError(t, SaveRecords(path, want))

	got, err := LoadRecords(path)
	require.NoError(t, err)
	assert.Equal(t, want.MeanVar(), got.MeanVar())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecords_Invalid(t *testing.T) {
	t.Parallel()
	b := sampleBatch()
	b[1].Ratios = b[1].Ratios[:3]

	var buf bytes.Buffer
	require.NoError(t, EncodeRecords(&buf, b))
	_, err := DecodeRecords(&buf)
	assert.ErrorIs(t, err, record.ErrShape)

	_, err = LoadRecords(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
