package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/wavefront.budget/internal/monitoring"
	"github.com/banshee-data/wavefront.budget/internal/record"
)

// Run is one fitting run: a case fitted with one method.
type Run struct {
	RunID     string  `json:"run_id"`
	CaseName  string  `json:"case_name"`
	Method    string  `json:"method"`
	NMode     int     `json:"n_mode"`
	MeanStd   float64 `json:"mean_std"`
	NRecord   int     `json:"n_record"`
	CreatedAt int64   `json:"created_at"`
}

// InsertRun persists run. An empty RunID is replaced by a new UUID and a zero
// CreatedAt by the current time.
func (db *DB) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	_, err := db.Exec(`
		INSERT INTO runs (run_id, case_name, method, n_mode, mean_std, n_record, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CaseName, run.Method, run.NMode, nullable(run.MeanStd), run.NRecord, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertRecords appends the records of b to run runID in one transaction and
// refreshes the run summary.
func (db *DB) InsertRecords(runID string, b record.Batch) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}

	var seq int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq) + 1, 0) FROM records WHERE run_id = ?`, runID).Scan(&seq); err != nil {
		return fmt.Errorf("next record seq: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO records (run_id, seq, file, variance, segment_mean_square, modal_coefficients, ratios)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range b {
		sss, err := encodeVector(r.SegmentMeanSquare)
		if err != nil {
			return err
		}
		coefs, err := encodeVector(r.ModalCoefficients)
		if err != nil {
			return err
		}
		ratios, err := encodeVector(r.Ratios)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(runID, seq+i, r.File, nullable(r.Var), sss, coefs, ratios); err != nil {
			return fmt.Errorf("insert record %s: %w", r.File, err)
		}
	}

	var (
		n       int
		meanVar sql.NullFloat64
	)
	if err := tx.QueryRow(`SELECT COUNT(*), AVG(variance) FROM records WHERE run_id = ?`, runID).Scan(&n, &meanVar); err != nil {
		return fmt.Errorf("run summary: %w", err)
	}
	if _, err := tx.Exec(`UPDATE runs SET n_record = ?, mean_std = ? WHERE run_id = ?`,
		n, nullable(math.Sqrt(fromNull(meanVar))), runID); err != nil {
		return fmt.Errorf("update run summary: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	monitoring.Logf("stored %d records for run %s", len(b), runID)
	return nil
}

// Records returns the records of run runID in insertion order.
func (db *DB) Records(runID string) (record.Batch, error) {
	var nMode int
	err := db.QueryRow(`SELECT n_mode FROM runs WHERE run_id = ?`, runID).Scan(&nMode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT file, variance, segment_mean_square, modal_coefficients, ratios
		FROM records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var b record.Batch
	for rows.Next() {
		var (
			r                  record.Record
			v                  sql.NullFloat64
			sss, coefs, ratios string
		)
		if err := rows.Scan(&r.File, &v, &sss, &coefs, &ratios); err != nil {
			return nil, err
		}
		r.Var = fromNull(v)
		r.NMode = nMode
		if r.SegmentMeanSquare, err = decodeVector(sss); err != nil {
			return nil, err
		}
		if r.ModalCoefficients, err = decodeVector(coefs); err != nil {
			return nil, err
		}
		if r.Ratios, err = decodeVector(ratios); err != nil {
			return nil, err
		}
		b = append(b, r)
	}
	return b, rows.Err()
}

// Runs returns every run, most recent first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, case_name, method, n_mode, mean_std, n_record, created_at
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			meanStd sql.NullFloat64
		)
		if err := rows.Scan(&r.RunID, &r.CaseName, &r.Method, &r.NMode, &meanStd, &r.NRecord, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.MeanStd = fromNull(meanStd)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes run runID and its records.
func (db *DB) DeleteRun(runID string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// SQLite has no NaN: non-finite values are stored as NULL and read back as
// NaN.
func nullable(x float64) interface{} {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return x
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func encodeVector(x []float64) (string, error) {
	v := make([]*float64, len(x))
	for i := range x {
		if !math.IsNaN(x[i]) && !math.IsInf(x[i], 0) {
			v[i] = &x[i]
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode vector: %w", err)
	}
	return string(b), nil
}

func decodeVector(s string) ([]float64, error) {
	var v []*float64
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	x := make([]float64, len(v))
	for i, p := range v {
		if p == nil {
			x[i] = math.NaN()
		} else {
			x[i] = *p
		}
	}
	return x, nil
}
