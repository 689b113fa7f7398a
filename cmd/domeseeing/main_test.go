package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wavefront.budget/internal/db"
	"github.com/banshee-data/wavefront.budget/internal/store"
	"github.com/banshee-data/wavefront.budget/internal/synth"
	"github.com/banshee-data/wavefront.budget/internal/testutil"
)

const (
	testWidth = 24
	testNMode = 4
)

func setup(t *testing.T, nField int) options {
	t.Helper()
	root := t.TempDir()
	basis := filepath.Join(root, "bases")
	caseDir := filepath.Join(root, "case-a")
	require.NoError(t, os.Mkdir(basis, 0o755))
	require.NoError(t, os.Mkdir(caseDir, 0o755))
	require.NoError(t, synth.WriteBases(basis, testWidth, testNMode, testutil.NewRand(1)))
	_, err := synth.WriteFields(caseDir, testWidth, nField, testutil.NewRand(2))
	require.NoError(t, err)

	cfg := filepath.Join(root, "fit.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"n_mode": 4, "grid_width": 24, "workers": 2}`), 0o644))
	return options{
		basisDir:   basis,
		configPath: cfg,
		out:        "domeseeing_kl.bin",
		pattern:    "*.npz",
		cases:      []string{caseDir},
	}
}

func TestRun(t *testing.T) {
	o := setup(t, 3)
	o.dbPath = filepath.Join(t.TempDir(), "budget.db")

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))
	assert.Contains(t, out.String(), "case-a: 3 records")
	assert.Contains(t, out.String(), "case-a: run ")

	batch, err := store.LoadRecords(filepath.Join(o.cases[0], o.out))
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, testNMode, batch.NMode())
	assert.Equal(t, "opd_0000.npz", batch[0].File)
	assert.Equal(t, "opd_0002.npz", batch[2].File)

	database, err := db.NewDB(o.dbPath)
	require.NoError(t, err)
	defer database.Close()
	runs, err := database.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "case-a", runs[0].CaseName)
	assert.Equal(t, "least_square", runs[0].Method)
	assert.Equal(t, 3, runs[0].NRecord)
	assert.InEpsilon(t, batch.MeanStd(), runs[0].MeanStd, 1e-9)
}

func TestRun_NoMaps(t *testing.T) {
	o := setup(t, 0)
	err := run(context.Background(), o, &bytes.Buffer{})
	assert.ErrorIs(t, err, errNoInput)
}

func TestRun_ModeCountMismatch(t *testing.T) {
	o := setup(t, 1)
	require.NoError(t, os.WriteFile(o.configPath, []byte(`{"n_mode": 5, "grid_width": 24}`), 0o644))
	err := run(context.Background(), o, &bytes.Buffer{})
	assert.ErrorContains(t, err, "M2S1 in ")
	assert.ErrorContains(t, err, "carries 4 modes")
}

func TestRun_MissingBases(t *testing.T) {
	o := setup(t, 1)
	o.basisDir = t.TempDir()
	assert.Error(t, run(context.Background(), o, &bytes.Buffer{}))
}

func TestRun_Cancelled(t *testing.T) {
	o := setup(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, run(ctx, o, &bytes.Buffer{}), context.Canceled)
}
