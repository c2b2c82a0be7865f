package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/inspection.report/internal/monitoring"
	"github.com/banshee-data/inspection.report/internal/rr"
)

// seedMixedHistory stores two legacy runs for Ana (NULL repetition, the
// first keyed by filename only, the second aborted with no responses), a
// current run for Ana, and one run for Bruno.
func seedMixedHistory(t *testing.T, db *DB, f *testFixture) {
	t.Helper()
	ctx := context.Background()
	ana, bruno := f.Operators[0].ID, f.Operators[1].ID

	_, err := db.Exec(`
		INSERT INTO results (id, operator_id, test_id, evaluator, recorded_at) VALUES
			(100, ?, ?, 'Carla', '2024-03-04 08:00:00'),
			(101, ?, ?, 'Carla', '2024-03-04 09:00:00');
		INSERT INTO responses (result_id, filename, user_answer, correct_answer) VALUES
			(100, 'seam_01.png', 'OK', 'OK'),
			(100, 'seam_02.png', 'nok', 'NOK');`,
		ana, f.Test.ID, ana, f.Test.ID)
	require.NoError(t, err)

	require.NoError(t, db.RecordResult(ctx, &Result{
		OperatorID: ana, TestID: f.Test.ID, RecordedAt: fixtureEpoch.Add(2 * time.Hour),
	}, []Response{
		{ImageID: f.Images[0].ID, Filename: "seam_01.png", UserAnswer: "OK", CorrectAnswer: "OK"},
		{ImageID: f.Images[1].ID, Filename: "seam_02.png", UserAnswer: "OK", CorrectAnswer: "NOK"},
	}))
	require.NoError(t, db.RecordResult(ctx, &Result{
		OperatorID: bruno, TestID: f.Test.ID, RecordedAt: fixtureEpoch, Repetition: 1,
	}, []Response{
		{ImageID: f.Images[0].ID, Filename: "seam_01.png", UserAnswer: "OK", CorrectAnswer: "OK"},
		{ImageID: f.Images[1].ID, Filename: "seam_02.png", UserAnswer: "NOK", CorrectAnswer: "NOK"},
	}))
}

func TestResultResponses(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	seedMixedHistory(t, db, f)

	rows, err := db.ResultResponses(context.Background(), f.Test.ID)
	require.NoError(t, err)
	require.Len(t, rows, 7)

	first := rows[0]
	assert.Equal(t, int64(100), first.ResultID)
	assert.Equal(t, "Ana", first.OperatorName)
	assert.Equal(t, "Carla", first.Evaluator)
	assert.Nil(t, first.Repetition)
	assert.Nil(t, first.ImageID)
	assert.True(t, first.HasResponse)
	assert.Equal(t, "seam_01.png", first.Filename)
	assert.True(t, first.Timestamp.Equal(fixtureEpoch))

	aborted := rows[2]
	assert.Equal(t, int64(101), aborted.ResultID)
	assert.False(t, aborted.HasResponse)

	current := rows[3]
	require.NotNil(t, current.ImageID)
	assert.Equal(t, f.Images[0].ID, *current.ImageID)
	assert.Nil(t, current.Repetition)

	last := rows[6]
	require.NotNil(t, last.Repetition)
	assert.Equal(t, 1, *last.Repetition)
	assert.Equal(t, "Bruno", last.OperatorName)

	empty, err := db.ResultResponses(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTestImages(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)

	images, err := db.TestImages(context.Background(), f.Test.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, rr.CatalogImage{ID: f.Images[1].ID, TestID: f.Test.ID, Filename: "seam_02.png", GroundTruth: rr.VerdictNOK}, images[1])
}

func TestEngineOverStore(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)
	seedMixedHistory(t, db, f)

	rec, restore := monitoring.Capture()
	defer restore()

	a, err := rr.NewEngine(db).Analyze(context.Background(), f.Test.ID)
	require.NoError(t, err)

	assert.Equal(t, 6, a.Records)
	assert.Equal(t, rr.ResolutionStats{ByID: 4, ByFilename: 2}, a.Resolution)
	assert.NotEmpty(t, rec.Lines(), "filename fallback is logged")

	require.Len(t, a.Repeatability, 2)
	ana := a.Repeatability[0]
	assert.Equal(t, "Ana", ana.OperatorName)
	assert.Equal(t, 2, ana.TotalImages)
	assert.Equal(t, 1, ana.ConsistentImages)
	assert.InDelta(t, 50.0, ana.ConsistencyPct, 1e-9)
	require.Len(t, ana.Inconsistent, 1)
	item := ana.Inconsistent[0]
	assert.Equal(t, rr.ImageByID(f.Images[1].ID), item.Image)
	// The aborted run takes repetition 2, so the current run is 3.
	assert.Equal(t, map[int]rr.Verdict{1: rr.VerdictNOK, 3: rr.VerdictOK}, item.Representative)

	assert.InDelta(t, 100.0, a.Repeatability[1].ConsistencyPct, 1e-9)

	repro := a.Reproducibility
	require.NotNil(t, repro)
	anaID, brunoID := f.Operators[0].ID, f.Operators[1].ID
	require.NotNil(t, repro.ConcordanceMatrix[anaID][brunoID])
	assert.InDelta(t, 100.0, *repro.ConcordanceMatrix[anaID][brunoID], 1e-9)

	_, err = rr.NewEngine(db).Analyze(context.Background(), 999)
	assert.True(t, errors.Is(err, rr.ErrNoData))
}
