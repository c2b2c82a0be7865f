package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB returns a migrated database in a temp dir.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// testFixture is a small catalog: one test with two images and two operators.
type testFixture struct {
	Test      Test
	Images    []Image
	Operators []Operator
}

func seedFixture(t *testing.T, db *DB) *testFixture {
	t.Helper()
	ctx := context.Background()
	f := &testFixture{Test: Test{Name: "Weld seams", Description: "visual weld inspection"}}
	if err := db.CreateTest(ctx, &f.Test); err != nil {
		t.Fatalf("CreateTest failed: %v", err)
	}
	for _, img := range []Image{
		{TestID: f.Test.ID, Filename: "seam_01.png", GroundTruth: "OK"},
		{TestID: f.Test.ID, Filename: "seam_02.png", GroundTruth: "NOK"},
	} {
		img := img
		if err := db.CreateImage(ctx, &img); err != nil {
			t.Fatalf("CreateImage failed: %v", err)
		}
		f.Images = append(f.Images, img)
	}
	for _, op := range []Operator{{Name: "Ana", Badge: "B-17", Shift: "A"}, {Name: "Bruno", Badge: "B-22", Shift: "B"}} {
		op := op
		if err := db.CreateOperator(ctx, &op); err != nil {
			t.Fatalf("CreateOperator failed: %v", err)
		}
		f.Operators = append(f.Operators, op)
	}
	return f
}

var fixtureEpoch = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
