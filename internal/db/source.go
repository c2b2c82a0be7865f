package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/banshee-data/inspection.report/internal/rr"
)

var _ rr.Source = (*DB)(nil)

// ResultResponses implements rr.Source. A result without responses yields a
// single row with HasResponse false.
func (db *DB) ResultResponses(ctx context.Context, testID int64) ([]rr.RawResponse, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.operator_id, COALESCE(o.name, ''), r.repetition, r.recorded_at,
		       COALESCE(r.evaluator, ''),
		       resp.id, resp.image_id, COALESCE(resp.filename, ''),
		       COALESCE(resp.user_answer, ''), COALESCE(resp.correct_answer, '')
		FROM results r
		LEFT JOIN responses resp ON resp.result_id = r.id
		LEFT JOIN operators o ON o.id = r.operator_id
		WHERE r.test_id = ?
		ORDER BY r.operator_id, r.recorded_at, r.id, resp.id`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var out []rr.RawResponse
	for rows.Next() {
		var (
			raw        rr.RawResponse
			repetition sql.NullInt64
			recordedAt sql.NullString
			responseID sql.NullInt64
			imageID    sql.NullInt64
		)
		if err := rows.Scan(&raw.ResultID, &raw.OperatorID, &raw.OperatorName, &repetition, &recordedAt,
			&raw.Evaluator, &responseID, &imageID, &raw.Filename, &raw.Answer, &raw.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		raw.Timestamp = parseTime(recordedAt.String)
		raw.HasResponse = responseID.Valid
		if repetition.Valid {
			n := int(repetition.Int64)
			raw.Repetition = &n
		}
		if imageID.Valid {
			id := imageID.Int64
			raw.ImageID = &id
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read responses: %w", err)
	}
	return out, nil
}

// TestImages implements rr.Source.
func (db *DB) TestImages(ctx context.Context, testID int64) ([]rr.CatalogImage, error) {
	images, err := db.ListImages(ctx, testID)
	if err != nil {
		return nil, err
	}
	out := make([]rr.CatalogImage, len(images))
	for i, img := range images {
		out[i] = rr.CatalogImage{
			ID:          img.ID,
			TestID:      img.TestID,
			Filename:    img.Filename,
			GroundTruth: img.GroundTruth,
		}
	}
	return out, nil
}
