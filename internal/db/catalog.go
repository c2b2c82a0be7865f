package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/inspection.report/internal/rr"
)

// ErrNotFound is returned by single-row getters when no row matches.
var ErrNotFound = errors.New("not found")

// Test is one inspection proficiency test: a named set of reference images.
type Test struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Image is a reference image with its ground-truth answer. Data holds the
// image bytes and is only loaded by GetImage.
type Image struct {
	ID          int64      `json:"id"`
	TestID      int64      `json:"test_id"`
	Filename    string     `json:"filename"`
	GroundTruth rr.Verdict `json:"ground_truth"`
	Data        []byte     `json:"-"`
}

type Operator struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Badge string `json:"badge"`
	Shift string `json:"shift"`
}

type Evaluator struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateTest inserts t and sets t.ID.
func (db *DB) CreateTest(ctx context.Context, t *Test) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO tests (name, description) VALUES (?, ?)`, t.Name, t.Description)
	if err != nil {
		return fmt.Errorf("failed to create test %q: %w", t.Name, err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (db *DB) GetTest(ctx context.Context, id int64) (*Test, error) {
	var t Test
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description FROM tests WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("test %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test %d: %w", id, err)
	}
	return &t, nil
}

func (db *DB) ListTests(ctx context.Context) ([]Test, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, description FROM tests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	defer rows.Close()

	tests := []Test{}
	for rows.Next() {
		var t Test
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan test: %w", err)
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// CreateImage adds an image to a test's catalog. The ground truth must be
// OK or NOK after normalization.
func (db *DB) CreateImage(ctx context.Context, img *Image) error {
	gt := rr.NormalizeVerdict(string(img.GroundTruth))
	if !gt.Valid() {
		return fmt.Errorf("invalid ground truth %q for image %q", img.GroundTruth, img.Filename)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO images (test_id, filename, ground_truth, data) VALUES (?, ?, ?, ?)`,
		img.TestID, img.Filename, string(gt), img.Data)
	if err != nil {
		return fmt.Errorf("failed to create image %q: %w", img.Filename, err)
	}
	img.GroundTruth = gt
	img.ID, err = res.LastInsertId()
	return err
}

func (db *DB) GetImage(ctx context.Context, id int64) (*Image, error) {
	var img Image
	var gt string
	err := db.QueryRowContext(ctx,
		`SELECT id, test_id, filename, ground_truth, data FROM images WHERE id = ?`, id).
		Scan(&img.ID, &img.TestID, &img.Filename, &gt, &img.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image %d: %w", id, err)
	}
	img.GroundTruth = rr.NormalizeVerdict(gt)
	return &img, nil
}

// ListImages returns a test's catalog by ascending id, without image data.
func (db *DB) ListImages(ctx context.Context, testID int64) ([]Image, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, test_id, filename, ground_truth FROM images WHERE test_id = ? ORDER BY id`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images for test %d: %w", testID, err)
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		var img Image
		var gt string
		if err := rows.Scan(&img.ID, &img.TestID, &img.Filename, &gt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		img.GroundTruth = rr.NormalizeVerdict(gt)
		images = append(images, img)
	}
	return images, rows.Err()
}

func (db *DB) CreateOperator(ctx context.Context, op *Operator) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO operators (name, badge, shift) VALUES (?, ?, ?)`, op.Name, op.Badge, op.Shift)
	if err != nil {
		return fmt.Errorf("failed to create operator %q: %w", op.Name, err)
	}
	op.ID, err = res.LastInsertId()
	return err
}

func (db *DB) ListOperators(ctx context.Context) ([]Operator, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, badge, shift FROM operators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	defer rows.Close()

	ops := []Operator{}
	for rows.Next() {
		var op Operator
		if err := rows.Scan(&op.ID, &op.Name, &op.Badge, &op.Shift); err != nil {
			return nil, fmt.Errorf("failed to scan operator: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func (db *DB) CreateEvaluator(ctx context.Context, ev *Evaluator) error {
	res, err := db.ExecContext(ctx, `INSERT INTO evaluators (name) VALUES (?)`, ev.Name)
	if err != nil {
		return fmt.Errorf("failed to create evaluator %q: %w", ev.Name, err)
	}
	ev.ID, err = res.LastInsertId()
	return err
}

func (db *DB) ListEvaluators(ctx context.Context) ([]Evaluator, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM evaluators ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluators: %w", err)
	}
	defer rows.Close()

	evs := []Evaluator{}
	for rows.Next() {
		var ev Evaluator
		if err := rows.Scan(&ev.ID, &ev.Name); err != nil {
			return nil, fmt.Errorf("failed to scan evaluator: %w", err)
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}
