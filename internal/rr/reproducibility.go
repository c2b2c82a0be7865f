package rr

import "encoding/json"

// ReproducibilityResult is the between-operator agreement for one test.
type ReproducibilityResult struct {
	// Operators lists every operator with records, by ascending id.
	Operators     []int64          `json:"operators"`
	OperatorNames map[int64]string `json:"operator_names"`
	// Images lists every image with records, in first-seen order.
	Images     []ImageKey          `json:"images"`
	ImageNames map[ImageKey]string `json:"image_names"`

	// MajorityPerOperator holds each operator's majority answer per image,
	// collapsed over all repetitions. Images the operator never answered
	// validly are absent.
	MajorityPerOperator map[int64]map[ImageKey]Verdict `json:"majority_per_operator"`
	// ConcordanceMatrix[a][b] is the percentage of common images on which
	// a and b have the same majority answer, nil with no common image.
	ConcordanceMatrix map[int64]map[int64]*float64 `json:"concordance_matrix"`
	// ConcordanceVsConsensus is each operator's agreement with
	// GlobalConsensus, nil with no eligible image.
	ConcordanceVsConsensus map[int64]*float64 `json:"concordance_vs_consensus"`
	// GlobalConsensus is the majority of operator majorities per image;
	// VerdictNone when nobody voted, encoded as null.
	GlobalConsensus ConsensusMap `json:"global_consensus"`
}

// ConsensusMap holds the consensus verdict of each image.
type ConsensusMap map[ImageKey]Verdict

// MarshalJSON encodes images without a consensus as null. Decoding null
// back yields VerdictNone.
func (m ConsensusMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	out := make(map[ImageKey]*Verdict, len(m))
	for img, v := range m {
		if v.Valid() {
			out[img] = &v
		} else {
			out[img] = nil
		}
	}
	return json.Marshal(out)
}

// Reproducibility compares operators with each other and with the
// consensus. Repetitions are collapsed to one majority answer per operator
// and image before any comparison. It returns nil when records is empty.
func Reproducibility(records []Record) *ReproducibilityResult {
	if len(records) == 0 {
		return nil
	}

	res := &ReproducibilityResult{
		Operators:              operatorIDs(records),
		OperatorNames:          make(map[int64]string),
		ImageNames:             make(map[ImageKey]string),
		MajorityPerOperator:    make(map[int64]map[ImageKey]Verdict),
		ConcordanceMatrix:      make(map[int64]map[int64]*float64),
		ConcordanceVsConsensus: make(map[int64]*float64),
		GlobalConsensus:        make(ConsensusMap),
	}

	votes := make(map[int64]map[ImageKey][]Verdict)
	for _, rec := range records {
		if _, ok := res.OperatorNames[rec.OperatorID]; !ok || rec.OperatorName != "" {
			res.OperatorNames[rec.OperatorID] = rec.OperatorName
		}
		if _, ok := res.ImageNames[rec.Image]; !ok {
			res.ImageNames[rec.Image] = rec.ImageName
			res.Images = append(res.Images, rec.Image)
		}
		if votes[rec.OperatorID] == nil {
			votes[rec.OperatorID] = make(map[ImageKey][]Verdict)
		}
		votes[rec.OperatorID][rec.Image] = append(votes[rec.OperatorID][rec.Image], rec.Answer)
	}

	for _, op := range res.Operators {
		maj := make(map[ImageKey]Verdict)
		for img, vs := range votes[op] {
			if v, ok := majority(vs); ok {
				maj[img] = v
			}
		}
		res.MajorityPerOperator[op] = maj
		res.ConcordanceMatrix[op] = make(map[int64]*float64, len(res.Operators))
	}

	for i, a := range res.Operators {
		for _, b := range res.Operators[i:] {
			pct := pairConcordance(res.MajorityPerOperator[a], res.MajorityPerOperator[b])
			res.ConcordanceMatrix[a][b] = pct
			if a != b {
				res.ConcordanceMatrix[b][a] = copyPct(pct)
			}
		}
	}

	for _, img := range res.Images {
		var vs []Verdict
		for _, op := range res.Operators {
			if v, ok := res.MajorityPerOperator[op][img]; ok {
				vs = append(vs, v)
			}
		}
		consensus, _ := majority(vs)
		res.GlobalConsensus[img] = consensus
	}

	for _, op := range res.Operators {
		var total, match int
		for img, maj := range res.MajorityPerOperator[op] {
			consensus := res.GlobalConsensus[img]
			if !consensus.Valid() {
				continue
			}
			total++
			if maj == consensus {
				match++
			}
		}
		if total > 0 {
			pct := percent(match, total)
			res.ConcordanceVsConsensus[op] = &pct
		} else {
			res.ConcordanceVsConsensus[op] = nil
		}
	}
	return res
}

func pairConcordance(a, b map[ImageKey]Verdict) *float64 {
	var common, same int
	for img, va := range a {
		vb, ok := b[img]
		if !ok {
			continue
		}
		common++
		if va == vb {
			same++
		}
	}
	if common == 0 {
		return nil
	}
	pct := percent(same, common)
	return &pct
}

func copyPct(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// OperatorTendency counts an operator's majority answers by verdict.
type OperatorTendency struct {
	OperatorID   int64  `json:"operator_id"`
	OperatorName string `json:"operator_name"`
	OK           int    `json:"ok"`
	NOK          int    `json:"nok"`
}

// Tendency returns, per operator, how many images they called OK and NOK
// after collapsing repetitions.
func (r *ReproducibilityResult) Tendency() []OperatorTendency {
	out := make([]OperatorTendency, 0, len(r.Operators))
	for _, op := range r.Operators {
		t := OperatorTendency{OperatorID: op, OperatorName: r.OperatorNames[op]}
		for _, v := range r.MajorityPerOperator[op] {
			switch v {
			case VerdictOK:
				t.OK++
			case VerdictNOK:
				t.NOK++
			}
		}
		out = append(out, t)
	}
	return out
}
