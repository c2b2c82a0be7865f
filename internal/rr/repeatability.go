package rr

import "sort"

// InconsistentItem is an image an operator answered differently across
// repetitions.
type InconsistentItem struct {
	Image     ImageKey `json:"image"`
	ImageName string   `json:"image_name"`
	// Answers holds the valid answers given in each repetition.
	Answers map[int][]Verdict `json:"answers"`
	// Representative holds the per-repetition majority answer.
	Representative map[int]Verdict `json:"representative"`
}

// RepeatabilityResult is the within-operator agreement for one test.
type RepeatabilityResult struct {
	OperatorID       int64              `json:"operator_id"`
	OperatorName     string             `json:"operator_name"`
	TotalImages      int                `json:"total_images"`
	ConsistentImages int                `json:"consistent_images"`
	ConsistencyPct   float64            `json:"consistency_pct"`
	Inconsistent     []InconsistentItem `json:"inconsistent_items"`
}

// Repeatability reports whether the operator gave the same answer to each
// image in every repetition. Each repetition is first reduced to its
// majority answer so duplicate rows within a repetition cannot create a
// disagreement on their own. Images that never received a valid answer are
// not counted. It returns nil when the operator has no countable answers.
func Repeatability(records []Record, operatorID int64) *RepeatabilityResult {
	type imageReps struct {
		key   ImageKey
		name  string
		order []int
		votes map[int][]Verdict
	}

	var (
		name   string
		order  []ImageKey
		images = make(map[ImageKey]*imageReps)
	)
	for _, rec := range records {
		if rec.OperatorID != operatorID {
			continue
		}
		if rec.OperatorName != "" {
			name = rec.OperatorName
		}
		if !rec.Answer.Valid() {
			continue
		}
		im, ok := images[rec.Image]
		if !ok {
			im = &imageReps{key: rec.Image, name: rec.ImageName, votes: make(map[int][]Verdict)}
			images[rec.Image] = im
			order = append(order, rec.Image)
		}
		if _, ok := im.votes[rec.Repetition]; !ok {
			im.order = append(im.order, rec.Repetition)
		}
		im.votes[rec.Repetition] = append(im.votes[rec.Repetition], rec.Answer)
	}
	if len(order) == 0 {
		return nil
	}

	res := &RepeatabilityResult{
		OperatorID:   operatorID,
		OperatorName: name,
		TotalImages:  len(order),
		Inconsistent: []InconsistentItem{},
	}
	for _, key := range order {
		im := images[key]
		reps := append([]int(nil), im.order...)
		sort.Ints(reps)

		representative := make(map[int]Verdict, len(reps))
		distinct := make(map[Verdict]bool, 2)
		for _, rep := range reps {
			if v, ok := majority(im.votes[rep]); ok {
				representative[rep] = v
				distinct[v] = true
			}
		}
		if len(distinct) <= 1 {
			res.ConsistentImages++
			continue
		}
		res.Inconsistent = append(res.Inconsistent, InconsistentItem{
			Image:          im.key,
			ImageName:      im.name,
			Answers:        im.votes,
			Representative: representative,
		})
	}
	res.ConsistencyPct = percent(res.ConsistentImages, res.TotalImages)
	return res
}

// RepeatabilityAll runs Repeatability for every operator in records, in
// operator id order. Operators without countable answers are omitted.
func RepeatabilityAll(records []Record) []RepeatabilityResult {
	var out []RepeatabilityResult
	for _, op := range operatorIDs(records) {
		if r := Repeatability(records, op); r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// operatorIDs returns the distinct operator ids of records in ascending order.
func operatorIDs(records []Record) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, rec := range records {
		if !seen[rec.OperatorID] {
			seen[rec.OperatorID] = true
			ids = append(ids, rec.OperatorID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
