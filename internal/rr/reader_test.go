package rr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/inspection.report/internal/monitoring"
)

func TestInferRepetitions(t *testing.T) {
	runs := []ResultRun{
		{OperatorID: 2, ResultID: 20, Timestamp: t0},
		{OperatorID: 1, ResultID: 12, Timestamp: t0.Add(2 * time.Hour)},
		{OperatorID: 1, ResultID: 11, Timestamp: t0},
		{OperatorID: 1, ResultID: 11, Timestamp: t0},
		{OperatorID: 1, ResultID: 10, Timestamp: t0.Add(time.Hour)},
		// Same timestamp as result 11: the lower id goes first.
		{OperatorID: 1, ResultID: 9, Timestamp: t0},
		{OperatorID: 2, ResultID: 21, Timestamp: t0.Add(-time.Hour)},
	}
	want := map[int64]int{
		9: 1, 11: 2, 10: 3, 12: 4,
		21: 1, 20: 2,
	}
	if diff := cmp.Diff(want, InferRepetitions(runs)); diff != "" {
		t.Errorf("InferRepetitions mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, InferRepetitions(nil))
}

func TestNormalize_ExplicitRepetitionsKept(t *testing.T) {
	// Explicit numbers that disagree with chronology are never renumbered.
	rows := []RawResponse{
		{ResultID: 1, OperatorID: 1, Repetition: intPtr(3), Timestamp: t0, HasResponse: true, ImageID: idPtr(5), Answer: "ok"},
		{ResultID: 2, OperatorID: 1, Repetition: intPtr(1), Timestamp: t0.Add(time.Hour), HasResponse: true, ImageID: idPtr(5), Answer: "NOK"},
	}
	recs, stats := Normalize(1, rows, nil)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].Repetition)
	assert.Equal(t, 1, recs[1].Repetition)
	assert.Equal(t, ResolutionStats{ByID: 2}, stats)

	again, _ := Normalize(1, rows, nil)
	assert.Empty(t, cmp.Diff(recs, again))
}

func TestNormalize_InfersMissingRepetitions(t *testing.T) {
	_, restore := monitoring.Capture()
	defer restore()

	catalog := []CatalogImage{{ID: 50, TestID: 7, Filename: "part_a.png", GroundTruth: VerdictOK}}
	rows := []RawResponse{
		// Out of order on purpose; Normalize sorts by operator, time, result.
		{ResultID: 3, OperatorID: 1, OperatorName: "Ana", Timestamp: t0.Add(2 * time.Hour), HasResponse: true, Filename: "part_a.png", Answer: " nok", CorrectAnswer: "ok"},
		{ResultID: 1, OperatorID: 1, OperatorName: "Ana", Timestamp: t0, HasResponse: true, ImageID: idPtr(50), Answer: "OK", CorrectAnswer: "OK"},
		// An aborted run with no responses still takes repetition 2.
		{ResultID: 2, OperatorID: 1, OperatorName: "Ana", Timestamp: t0.Add(time.Hour)},
		{ResultID: 4, OperatorID: 2, OperatorName: "Bia", Repetition: intPtr(0), Timestamp: t0, HasResponse: true, Filename: "ghost.png", Answer: "maybe"},
	}

	recs, stats := Normalize(7, rows, catalog)
	assert.Equal(t, ResolutionStats{ByID: 1, ByFilename: 1, Unresolved: 1}, stats)
	want := []Record{
		{ResultID: 1, OperatorID: 1, OperatorName: "Ana", Repetition: 1, Timestamp: t0,
			Image: ImageByID(50), ImageName: "part_a.png", Resolution: ResolvedByID, Answer: VerdictOK, GroundTruth: VerdictOK},
		{ResultID: 3, OperatorID: 1, OperatorName: "Ana", Repetition: 3, Timestamp: t0.Add(2 * time.Hour),
			Image: ImageByID(50), ImageName: "part_a.png", Resolution: ResolvedByFilename, Answer: VerdictNOK, GroundTruth: VerdictOK},
		{ResultID: 4, OperatorID: 2, OperatorName: "Bia", Repetition: 1, Timestamp: t0,
			Image: ImageByFilename("ghost.png"), ImageName: "ghost.png", Resolution: Unresolved, Answer: VerdictNone, GroundTruth: VerdictNone},
	}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_ExampleFilenameResolvesToID(t *testing.T) {
	_, restore := monitoring.Capture()
	defer restore()

	catalog := []CatalogImage{
		{ID: 70, TestID: 7, Filename: "part_a.png"},
		{ID: 71, TestID: 8, Filename: "part_a.png"},
	}
	rows := []RawResponse{{ResultID: 1, OperatorID: 1, Repetition: intPtr(1), HasResponse: true, Filename: "part_a.png", Answer: "OK"}}
	recs, stats := Normalize(7, rows, catalog)
	require.Len(t, recs, 1)
	assert.Equal(t, ResolutionStats{ByFilename: 1}, stats)
	assert.Equal(t, ImageByID(70), recs[0].Image)
}

func TestReader_Read(t *testing.T) {
	_, restore := monitoring.Capture()
	defer restore()

	src := &fakeSource{
		rows: []RawResponse{
			{ResultID: 1, OperatorID: 1, Repetition: intPtr(1), HasResponse: true, ImageID: idPtr(1), Answer: "OK"},
			{ResultID: 1, OperatorID: 1, Repetition: intPtr(1), HasResponse: true, Filename: "b.png", Answer: "OK"},
			{ResultID: 1, OperatorID: 1, Repetition: intPtr(1), HasResponse: true, Filename: "c.png", Answer: "NOK"},
		},
		catalog: []CatalogImage{{ID: 1, TestID: 3, Filename: "a.png"}, {ID: 2, TestID: 3, Filename: "b.png"}},
	}
	ds, err := NewReader(src).Read(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ds.TestID)
	assert.Len(t, ds.Records, 3)
	assert.Equal(t, ResolutionStats{ByID: 1, ByFilename: 1, Unresolved: 1}, ds.Resolution)
}

func TestReader_NoResults(t *testing.T) {
	src := &fakeSource{catalogErr: errors.New("catalog must not be read")}
	recs, err := NewReader(src).Records(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestReader_SourceErrorsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")

	_, err := NewReader(&fakeSource{rowsErr: boom}).Records(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	src := &fakeSource{
		rows:       []RawResponse{{ResultID: 1, OperatorID: 1, HasResponse: true, Answer: "OK"}},
		catalogErr: boom,
	}
	_, err = NewReader(src).Records(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "catalog")
}
