package db

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/record"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testBatch(n int, v float64) record.Batch {
	var b record.Batch
	for k := 0; k < n; k++ {
		r := record.Record{File: "opd_" + string(rune('0'+k)) + ".npz", Var: v, NMode: 2}
		for i := 0; i < asm.NSegment; i++ {
			r.SegmentMeanSquare = append(r.SegmentMeanSquare, float64(i)+0.25)
			r.Ratios = append(r.Ratios, 1.0/asm.NSegment)
			r.ModalCoefficients = append(r.ModalCoefficients, float64(k), -1e-9*float64(i))
		}
		b = append(b, r)
	}
	return b
}

func TestNewDB_Migrates(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(LatestVersion), version)
	assert.False(t, dirty)

	// already up to date
	require.NoError(t, db.MigrateUp())
}

func TestNewDB_Reopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "records.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	run := &Run{CaseName: "b2019_0z_0az_os_7ms", Method: "least_square", NMode: 2}
	require.NoError(t, db.InsertRun(run))
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)
}

func TestMigrateDown(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	require.NoError(t, db.MigrateDown())

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(LatestVersion-1), version)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(LatestVersion), version)
}

func TestRecordsRoundTrip(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	run := &Run{CaseName: "case", Method: "project", NMode: 2}
	require.NoError(t, db.InsertRun(run))
	assert.NotEmpty(t, run.RunID)
	assert.NotZero(t, run.CreatedAt)

	want := testBatch(3, 4)
	want[1].Var = math.NaN()
	want[2].ModalCoefficients[5] = math.NaN()
	require.NoError(t, db.InsertRecords(run.RunID, want[:2]))
	require.NoError(t, db.InsertRecords(run.RunID, want[2:]))

	got, err := db.Records(run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 3, runs[0].NRecord)
	// AVG skips the NULL variance
	assert.InDelta(t, 2, runs[0].MeanStd, 1e-12)
}

func TestRunsOrder(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	require.NoError(t, db.InsertRun(&Run{RunID: "old", CaseName: "a", Method: "project", NMode: 1, CreatedAt: 1}))
	require.NoError(t, db.InsertRun(&Run{RunID: "new", CaseName: "b", Method: "project", NMode: 1, CreatedAt: 2}))

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, 0.0, runs[0].MeanStd)
	assert.Equal(t, 0, runs[0].NRecord)

	err = db.InsertRun(&Run{RunID: "old", CaseName: "c", Method: "project", NMode: 1})
	assert.Error(t, err)
}

func TestRunNotFound(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	assert.ErrorIs(t, db.InsertRecords("missing", testBatch(1, 1)), ErrRunNotFound)
	_, err := db.Records("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, db.DeleteRun("missing"), ErrRunNotFound)
}

func TestDeleteRunCascades(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	run := &Run{CaseName: "case", Method: "least_square", NMode: 2}
	require.NoError(t, db.InsertRun(run))
	require.NoError(t, db.InsertRecords(run.RunID, testBatch(2, 1)))

	require.NoError(t, db.DeleteRun(run.RunID))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestVectorCodec(t *testing.T) {
	t.Parallel()
	s, err := encodeVector([]float64{1, math.NaN(), math.Inf(1), -2.5})
	require.NoError(t, err)
	assert.Equal(t, "[1,null,null,-2.5]", s)

	x, err := decodeVector(s)
	require.NoError(t, err)
	require.Len(t, x, 4)
	assert.Equal(t, 1.0, x[0])
	assert.True(t, math.IsNaN(x[1]))
	assert.True(t, math.IsNaN(x[2]))
	assert.Equal(t, -2.5, x[3])

	_, err = decodeVector("{")
	assert.Error(t, err)
}
