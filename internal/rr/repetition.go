package rr

import (
	"sort"
	"time"
)

// ResultRun identifies one test run for repetition numbering.
type ResultRun struct {
	OperatorID int64
	ResultID   int64
	Timestamp  time.Time
}

// InferRepetitions numbers each operator's runs 1, 2, 3, ... in
// chronological order, breaking timestamp ties by result id. Duplicate
// entries for the same result are collapsed. The returned map is keyed by
// result id.
func InferRepetitions(runs []ResultRun) map[int64]int {
	seen := make(map[int64]bool, len(runs))
	uniq := make([]ResultRun, 0, len(runs))
	for _, run := range runs {
		if seen[run.ResultID] {
			continue
		}
		seen[run.ResultID] = true
		uniq = append(uniq, run)
	}

	sort.SliceStable(uniq, func(i, j int) bool {
		a, b := uniq[i], uniq[j]
		if a.OperatorID != b.OperatorID {
			return a.OperatorID < b.OperatorID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ResultID < b.ResultID
	})

	reps := make(map[int64]int, len(uniq))
	var (
		lastOp  int64
		counter int
	)
	for i, run := range uniq {
		if i == 0 || run.OperatorID != lastOp {
			lastOp = run.OperatorID
			counter = 0
		}
		counter++
		reps[run.ResultID] = counter
	}
	return reps
}
