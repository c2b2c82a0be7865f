package rr

import (
	"context"
	"time"
)

var t0 = time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC)

// vote builds a normalized record for a catalogued image.
func vote(op int64, rep int, img int64, answer string) Record {
	return Record{
		ResultID:     op*100 + int64(rep),
		OperatorID:   op,
		OperatorName: opName(op),
		Repetition:   rep,
		Timestamp:    t0.Add(time.Duration(rep) * time.Hour),
		Image:        ImageByID(img),
		ImageName:    imgName(img),
		Answer:       NormalizeVerdict(answer),
	}
}

func opName(op int64) string {
	return map[int64]string{1: "O1", 2: "O2", 3: "O3", 4: "O4"}[op]
}

func imgName(img int64) string {
	return map[int64]string{1: "IMG_1", 2: "IMG_2", 3: "IMG_3", 4: "IMG_4", 5: "IMG_5"}[img]
}

func intPtr(n int) *int { return &n }

func idPtr(n int64) *int64 { return &n }

func pct(f float64) *float64 { return &f }

// fakeSource serves canned rows.
type fakeSource struct {
	rows       []RawResponse
	catalog    []CatalogImage
	rowsErr    error
	catalogErr error
	calls      int
}

func (f *fakeSource) ResultResponses(ctx context.Context, testID int64) ([]RawResponse, error) {
	f.calls++
	if f.rowsErr != nil {
		return nil, f.rowsErr
	}
	return f.rows, nil
}

func (f *fakeSource) TestImages(ctx context.Context, testID int64) ([]CatalogImage, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog, nil
}
