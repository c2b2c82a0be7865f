package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/inspection.report/internal/rr"
)

// Result is one operator's run through a test.
type Result struct {
	ID         int64 `json:"id"`
	OperatorID int64 `json:"operator_id"`
	// OperatorName is filled by ListResults only.
	OperatorName string    `json:"operator_name,omitempty"`
	TestID       int64     `json:"test_id"`
	Evaluator    string    `json:"evaluator"`
	RecordedAt   time.Time `json:"recorded_at"`
	// Repetition is the cycle number of this run. Zero stores NULL, which
	// readers number chronologically.
	Repetition   int     `json:"repetition,omitempty"`
	Correct      int     `json:"correct"`
	Total        int     `json:"total"`
	AccuracyPct  float64 `json:"accuracy_pct"`
	TotalSeconds float64 `json:"total_seconds"`
	MeanSeconds  float64 `json:"mean_seconds"`
}

// Response is one answer given during a run. CorrectAnswer is the image's
// ground truth at the time of the run.
type Response struct {
	ID            int64   `json:"id"`
	ResultID      int64   `json:"result_id"`
	ImageID       int64   `json:"image_id,omitempty"`
	Filename      string  `json:"filename"`
	UserAnswer    string  `json:"user_answer"`
	CorrectAnswer string  `json:"correct_answer"`
	Seconds       float64 `json:"seconds"`
}

// RecordResult stores a run and its responses in one transaction. The
// correct/total/accuracy and timing columns are computed from responses;
// RecordedAt defaults to now.
func (db *DB) RecordResult(ctx context.Context, res *Result, responses []Response) error {
	if res.RecordedAt.IsZero() {
		res.RecordedAt = time.Now()
	}
	res.Total = len(responses)
	res.Correct = 0
	res.TotalSeconds = 0
	for _, r := range responses {
		answer := rr.NormalizeVerdict(r.UserAnswer)
		if answer.Valid() && answer == rr.NormalizeVerdict(r.CorrectAnswer) {
			res.Correct++
		}
		res.TotalSeconds += r.Seconds
	}
	res.AccuracyPct, res.MeanSeconds = 0, 0
	if res.Total > 0 {
		res.AccuracyPct = float64(res.Correct) / float64(res.Total) * 100
		res.MeanSeconds = res.TotalSeconds / float64(res.Total)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var repetition sql.NullInt64
	if res.Repetition > 0 {
		repetition = sql.NullInt64{Int64: int64(res.Repetition), Valid: true}
	}
	out, err := tx.ExecContext(ctx, `
		INSERT INTO results (
			operator_id, test_id, evaluator, recorded_at, correct, total,
			accuracy_pct, total_seconds, mean_seconds, repetition
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.OperatorID, res.TestID, res.Evaluator, formatTime(res.RecordedAt),
		res.Correct, res.Total, res.AccuracyPct, res.TotalSeconds, res.MeanSeconds, repetition)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	resultID, err := out.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO responses (result_id, image_id, filename, user_answer, correct_answer, seconds)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare response insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, len(responses))
	for i, r := range responses {
		var imageID sql.NullInt64
		if r.ImageID != 0 {
			imageID = sql.NullInt64{Int64: r.ImageID, Valid: true}
		}
		out, err := stmt.ExecContext(ctx, resultID, imageID, r.Filename, r.UserAnswer, r.CorrectAnswer, r.Seconds)
		if err != nil {
			return fmt.Errorf("failed to insert response %d (%s): %w", i, r.Filename, err)
		}
		if ids[i], err = out.LastInsertId(); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	res.ID = resultID
	for i := range responses {
		responses[i].ID = ids[i]
		responses[i].ResultID = resultID
	}
	return nil
}

// NextRepetition returns the cycle number the operator's next run of the
// test should carry: one more than the number of runs already stored.
func (db *DB) NextRepetition(ctx context.Context, operatorID, testID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM results WHERE operator_id = ? AND test_id = ?`,
		operatorID, testID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return n + 1, nil
}

// ResultFilter narrows ListResults. Zero fields match everything.
type ResultFilter struct {
	OperatorID int64
	Evaluator  string
}

// ListResults returns the runs of a test ordered by operator and time.
func (db *DB) ListResults(ctx context.Context, testID int64, f ResultFilter) ([]Result, error) {
	query := `
		SELECT r.id, r.operator_id, COALESCE(o.name, ''), r.test_id, r.evaluator,
		       r.recorded_at, r.repetition, r.correct, r.total, r.accuracy_pct,
		       r.total_seconds, r.mean_seconds
		FROM results r
		LEFT JOIN operators o ON o.id = r.operator_id
		WHERE r.test_id = ?`
	args := []any{testID}
	if f.OperatorID != 0 {
		query += ` AND r.operator_id = ?`
		args = append(args, f.OperatorID)
	}
	if f.Evaluator != "" {
		query += ` AND r.evaluator = ?`
		args = append(args, f.Evaluator)
	}
	query += ` ORDER BY r.operator_id, r.recorded_at, r.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for test %d: %w", testID, err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var (
			r          Result
			recordedAt sql.NullString
			repetition sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.OperatorID, &r.OperatorName, &r.TestID, &r.Evaluator, &recordedAt, &repetition,
			&r.Correct, &r.Total, &r.AccuracyPct, &r.TotalSeconds, &r.MeanSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.RecordedAt = parseTime(recordedAt.String)
		if repetition.Valid {
			r.Repetition = int(repetition.Int64)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
