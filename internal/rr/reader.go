package rr

import (
	"context"
	"fmt"
	"sort"
)

// Dataset is the normalized response set of one test.
type Dataset struct {
	TestID     int64
	Records    []Record
	Resolution ResolutionStats
}

// Reader turns stored results and responses into normalized records.
type Reader struct {
	src Source
}

// NewReader returns a reader over src.
func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// Records returns the normalized responses of a test. A test with no
// results yields an empty slice and a nil error.
func (r *Reader) Records(ctx context.Context, testID int64) ([]Record, error) {
	ds, err := r.Read(ctx, testID)
	if err != nil {
		return nil, err
	}
	return ds.Records, nil
}

// Read is like Records but also reports how image identities were resolved.
func (r *Reader) Read(ctx context.Context, testID int64) (*Dataset, error) {
	rows, err := r.src.ResultResponses(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to read responses for test %d: %w", testID, err)
	}
	ds := &Dataset{TestID: testID, Records: []Record{}}
	if len(rows) == 0 {
		return ds, nil
	}

	catalog, err := r.src.TestImages(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to read image catalog for test %d: %w", testID, err)
	}

	ds.Records, ds.Resolution = Normalize(testID, rows, catalog)
	return ds, nil
}

// Normalize applies ordering, image resolution, repetition inference and
// answer normalization to raw rows. Rows without a response contribute to
// repetition numbering only. The returned stats count one entry per record.
func Normalize(testID int64, rows []RawResponse, catalog []CatalogImage) ([]Record, ResolutionStats) {
	ordered := make([]RawResponse, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.OperatorID != b.OperatorID {
			return a.OperatorID < b.OperatorID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ResultID < b.ResultID
	})

	var inferred map[int64]int
	for _, row := range ordered {
		if !hasExplicitRepetition(row) {
			runs := make([]ResultRun, 0, len(ordered))
			for _, r := range ordered {
				runs = append(runs, ResultRun{OperatorID: r.OperatorID, ResultID: r.ResultID, Timestamp: r.Timestamp})
			}
			inferred = InferRepetitions(runs)
			break
		}
	}

	resolver := NewImageResolver(testID, catalog)
	records := make([]Record, 0, len(ordered))
	for _, row := range ordered {
		if !row.HasResponse {
			continue
		}
		rep := 1
		if hasExplicitRepetition(row) {
			rep = *row.Repetition
		} else if n, ok := inferred[row.ResultID]; ok {
			rep = n
		}
		key, name, how := resolver.Resolve(row.ImageID, row.Filename)
		records = append(records, Record{
			ResultID:     row.ResultID,
			OperatorID:   row.OperatorID,
			OperatorName: row.OperatorName,
			Repetition:   rep,
			Timestamp:    row.Timestamp,
			Image:        key,
			ImageName:    name,
			Resolution:   how,
			Answer:       NormalizeVerdict(row.Answer),
			GroundTruth:  NormalizeVerdict(row.CorrectAnswer),
		})
	}
	return records, resolver.Stats()
}

func hasExplicitRepetition(row RawResponse) bool {
	return row.Repetition != nil && *row.Repetition >= 1
}
