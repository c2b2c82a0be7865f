package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/inspection.report/internal/config"
	"github.com/banshee-data/inspection.report/internal/db"
)

// answerRow is one line of an answers file.
type answerRow struct {
	filename string
	answer   string
	seconds  float64
}

// readAnswers parses a CSV with a header naming at least "filename" and
// "answer" columns; "seconds" is optional. Column order is free.
func readAnswers(r io.Reader) ([]answerRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("answers file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read answers header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	fileCol, ok := col["filename"]
	if !ok {
		return nil, errors.New(`answers header has no "filename" column`)
	}
	answerCol, ok := col["answer"]
	if !ok {
		return nil, errors.New(`answers header has no "answer" column`)
	}
	secondsCol, hasSeconds := col["seconds"]

	var rows []answerRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read answers: %w", err)
		}
		field := func(i int) string {
			if i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		row := answerRow{filename: field(fileCol), answer: field(answerCol)}
		if row.filename == "" {
			return nil, fmt.Errorf("line %d: missing filename", line)
		}
		if hasSeconds {
			if v := field(secondsCol); v != "" {
				if row.seconds, err = strconv.ParseFloat(v, 64); err != nil {
					return nil, fmt.Errorf("line %d: invalid seconds %q", line, v)
				}
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("answers file has no rows")
	}
	return rows, nil
}

// runImport records one run of an operator through a test from an answers
// file. The run gets the operator's next repetition number and each answer
// carries the image's current ground truth.
func runImport(ctx context.Context, cfg *config.AppConfig, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(out)
	operatorID := fs.Int64("operator", 0, "Operator id (required)")
	evaluator := fs.String("evaluator", "", "Evaluator name; created if unknown")
	file := fs.String("file", "-", "Answers CSV (filename,answer[,seconds]); - reads stdin")
	testID, err := parseTestID(fs, args)
	if err != nil {
		return err
	}
	if *operatorID < 1 {
		return fmt.Errorf("import: -operator is required: %w", errUsage)
	}

	src := in
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open answers file: %w", err)
		}
		defer f.Close()
		src = f
	}
	rows, err := readAnswers(src)
	if err != nil {
		return err
	}

	d, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	if _, err := d.GetTest(ctx, testID); err != nil {
		return err
	}
	if err := requireOperator(ctx, d, *operatorID); err != nil {
		return err
	}
	if err := ensureEvaluator(ctx, d, *evaluator); err != nil {
		return err
	}

	images, err := d.ListImages(ctx, testID)
	if err != nil {
		return err
	}
	byName := make(map[string]db.Image, len(images))
	for _, img := range images {
		if _, dup := byName[img.Filename]; !dup {
			byName[img.Filename] = img
		}
	}
	responses := make([]db.Response, 0, len(rows))
	for _, row := range rows {
		img, ok := byName[row.filename]
		if !ok {
			return fmt.Errorf("image %q is not in test %d", row.filename, testID)
		}
		responses = append(responses, db.Response{
			ImageID:       img.ID,
			Filename:      img.Filename,
			UserAnswer:    row.answer,
			CorrectAnswer: string(img.GroundTruth),
			Seconds:       row.seconds,
		})
	}

	rep, err := d.NextRepetition(ctx, *operatorID, testID)
	if err != nil {
		return err
	}
	res := &db.Result{OperatorID: *operatorID, TestID: testID, Evaluator: *evaluator, Repetition: rep}
	if err := d.RecordResult(ctx, res, responses); err != nil {
		return err
	}
	fmt.Fprintf(out, "Recorded result %d (repetition %d): %d/%d correct (%.1f%%)\n",
		res.ID, res.Repetition, res.Correct, res.Total, res.AccuracyPct)
	return nil
}

func requireOperator(ctx context.Context, d *db.DB, id int64) error {
	ops, err := d.ListOperators(ctx)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.ID == id {
			return nil
		}
	}
	return fmt.Errorf("operator %d: %w", id, db.ErrNotFound)
}

func ensureEvaluator(ctx context.Context, d *db.DB, name string) error {
	if name == "" {
		return nil
	}
	evs, err := d.ListEvaluators(ctx)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		if ev.Name == name {
			return nil
		}
	}
	return d.CreateEvaluator(ctx, &db.Evaluator{Name: name})
}
