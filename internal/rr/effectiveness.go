package rr

// OperatorEffectiveness scores an operator's answers against the ground
// truth recorded with each response.
type OperatorEffectiveness struct {
	OperatorID   int64  `json:"operator_id"`
	OperatorName string `json:"operator_name"`
	// Judged counts answers where both the answer and the ground truth are
	// valid verdicts.
	Judged           int     `json:"judged"`
	Correct          int     `json:"correct"`
	EffectivenessPct float64 `json:"effectiveness_pct"`
	// Misses are NOK parts passed as OK.
	Misses      int      `json:"misses"`
	MissRatePct *float64 `json:"miss_rate_pct"`
	// FalseAlarms are OK parts rejected as NOK.
	FalseAlarms       int      `json:"false_alarms"`
	FalseAlarmRatePct *float64 `json:"false_alarm_rate_pct"`
}

// Effectiveness returns one entry per operator with at least one judged
// answer, in operator id order.
func Effectiveness(records []Record) []OperatorEffectiveness {
	type tally struct {
		OperatorEffectiveness
		truthOK, truthNOK int
	}
	byOp := make(map[int64]*tally)
	for _, rec := range records {
		if !rec.Answer.Valid() || !rec.GroundTruth.Valid() {
			continue
		}
		t, ok := byOp[rec.OperatorID]
		if !ok {
			t = &tally{OperatorEffectiveness: OperatorEffectiveness{OperatorID: rec.OperatorID}}
			byOp[rec.OperatorID] = t
		}
		if rec.OperatorName != "" {
			t.OperatorName = rec.OperatorName
		}
		t.Judged++
		if rec.Answer == rec.GroundTruth {
			t.Correct++
		}
		switch rec.GroundTruth {
		case VerdictOK:
			t.truthOK++
			if rec.Answer == VerdictNOK {
				t.FalseAlarms++
			}
		case VerdictNOK:
			t.truthNOK++
			if rec.Answer == VerdictOK {
				t.Misses++
			}
		}
	}

	out := []OperatorEffectiveness{}
	for _, op := range operatorIDs(records) {
		t, ok := byOp[op]
		if !ok {
			continue
		}
		t.EffectivenessPct = percent(t.Correct, t.Judged)
		t.MissRatePct = ratePct(t.Misses, t.truthNOK)
		t.FalseAlarmRatePct = ratePct(t.FalseAlarms, t.truthOK)
		out = append(out, t.OperatorEffectiveness)
	}
	return out
}

func ratePct(n, total int) *float64 {
	if total == 0 {
		return nil
	}
	p := percent(n, total)
	return &p
}
