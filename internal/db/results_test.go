package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db)

	got, err := db.GetTest(ctx, f.Test.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Test, *got)

	_, err = db.GetTest(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	dup := Test{Name: f.Test.Name}
	assert.Error(t, db.CreateTest(ctx, &dup), "test names are unique")

	tests, err := db.ListTests(ctx)
	require.NoError(t, err)
	assert.Len(t, tests, 1)

	images, err := db.ListImages(ctx, f.Test.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "seam_01.png", images[0].Filename)
	assert.EqualValues(t, "NOK", images[1].GroundTruth)

	bad := Image{TestID: f.Test.ID, Filename: "x.png", GroundTruth: "maybe"}
	assert.Error(t, db.CreateImage(ctx, &bad))

	lower := Image{TestID: f.Test.ID, Filename: "seam_03.png", GroundTruth: " ok ", Data: []byte{0x89, 'P', 'N', 'G'}}
	require.NoError(t, db.CreateImage(ctx, &lower))
	stored, err := db.GetImage(ctx, lower.ID)
	require.NoError(t, err)
	assert.EqualValues(t, "OK", stored.GroundTruth)
	assert.Equal(t, lower.Data, stored.Data)

	ops, err := db.ListOperators(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.Operators, ops)

	for _, name := range []string{"Zoe", "Carla"} {
		require.NoError(t, db.CreateEvaluator(ctx, &Evaluator{Name: name}))
	}
	evs, err := db.ListEvaluators(ctx)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "Carla", evs[0].Name)
}

func TestRecordResult(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db)

	res := &Result{
		OperatorID: f.Operators[0].ID,
		TestID:     f.Test.ID,
		Evaluator:  "Carla",
		RecordedAt: time.Date(2024, 3, 4, 9, 30, 0, 0, time.FixedZone("BRT", -3*3600)),
		Repetition: 1,
	}
	responses := []Response{
		{ImageID: f.Images[0].ID, Filename: "seam_01.png", UserAnswer: "OK", CorrectAnswer: "OK", Seconds: 2},
		{ImageID: f.Images[1].ID, Filename: "seam_02.png", UserAnswer: "ok", CorrectAnswer: "NOK", Seconds: 4},
	}
	require.NoError(t, db.RecordResult(ctx, res, responses))

	assert.NotZero(t, res.ID)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 2, res.Total)
	assert.InDelta(t, 50.0, res.AccuracyPct, 1e-9)
	assert.InDelta(t, 6.0, res.TotalSeconds, 1e-9)
	assert.InDelta(t, 3.0, res.MeanSeconds, 1e-9)
	for _, r := range responses {
		assert.NotZero(t, r.ID)
		assert.Equal(t, res.ID, r.ResultID)
	}

	var recordedAt string
	require.NoError(t, db.QueryRow(`SELECT recorded_at FROM results WHERE id = ?`, res.ID).Scan(&recordedAt))
	assert.Equal(t, "2024-03-04T12:30:00.000000000Z", recordedAt)

	results, err := db.ListResults(ctx, f.Test.ID, ResultFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Repetition)
	assert.Equal(t, "Ana", results[0].OperatorName)
	assert.True(t, results[0].RecordedAt.Equal(res.RecordedAt))

	next, err := db.NextRepetition(ctx, f.Operators[0].ID, f.Test.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestListResults_Filter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db)

	runs := []struct {
		op        int64
		evaluator string
	}{
		{f.Operators[0].ID, "Carla"},
		{f.Operators[1].ID, "Carla"},
		{f.Operators[0].ID, "Davi"},
	}
	for i, run := range runs {
		res := &Result{OperatorID: run.op, TestID: f.Test.ID, Evaluator: run.evaluator, RecordedAt: fixtureEpoch.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, db.RecordResult(ctx, res, []Response{{ImageID: f.Images[0].ID, Filename: "seam_01.png", UserAnswer: "OK", CorrectAnswer: "OK"}}))
	}

	all, err := db.ListResults(ctx, f.Test.ID, ResultFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by operator, then time.
	assert.Equal(t, []string{"Ana", "Ana", "Bruno"}, []string{all[0].OperatorName, all[1].OperatorName, all[2].OperatorName})
	assert.Equal(t, "Davi", all[1].Evaluator)

	ana, err := db.ListResults(ctx, f.Test.ID, ResultFilter{OperatorID: f.Operators[0].ID})
	require.NoError(t, err)
	assert.Len(t, ana, 2)

	anaByCarla, err := db.ListResults(ctx, f.Test.ID, ResultFilter{OperatorID: f.Operators[0].ID, Evaluator: "Carla"})
	require.NoError(t, err)
	require.Len(t, anaByCarla, 1)
	assert.Equal(t, all[0].ID, anaByCarla[0].ID)

	none, err := db.ListResults(ctx, f.Test.ID+1, ResultFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)
}

func TestRecordResult_IsAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db)

	_, err := db.Exec(`
		CREATE TRIGGER reject_boom BEFORE INSERT ON responses
		WHEN NEW.filename = 'boom.png'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END;`)
	require.NoError(t, err)

	res := &Result{OperatorID: f.Operators[0].ID, TestID: f.Test.ID}
	err = db.RecordResult(ctx, res, []Response{
		{Filename: "seam_01.png", UserAnswer: "OK", CorrectAnswer: "OK"},
		{Filename: "boom.png", UserAnswer: "OK", CorrectAnswer: "OK"},
	})
	require.Error(t, err)
	assert.Zero(t, res.ID)

	var results, responses int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&results))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&responses))
	assert.Zero(t, results)
	assert.Zero(t, responses)
}

func TestRecordResult_UnknownOperator(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixture(t, db)

	err := db.RecordResult(context.Background(), &Result{OperatorID: 999, TestID: f.Test.ID}, nil)
	assert.Error(t, err, "foreign keys are enforced")
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{
		"2024-01-02T03:04:05.000000000Z",
		"2024-01-02T03:04:05Z",
		"2024-01-02T01:04:05-02:00",
		"2024-01-02 03:04:05",
		"2024-01-02T03:04:05",
	} {
		assert.True(t, parseTime(s).Equal(want), s)
	}
	assert.True(t, parseTime("").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.Equal(t, "2024-01-02T03:04:05.000000000Z", formatTime(want.In(time.FixedZone("X", 3600))))
}
