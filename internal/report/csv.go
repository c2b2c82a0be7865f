package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/banshee-data/inspection.report/internal/db"
	"github.com/banshee-data/inspection.report/internal/rr"
)

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func fmtOptFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return fmtFloat(*p)
}

// WriteConfusionCSV writes the full confusion ranking, most confusing first.
func WriteConfusionCSV(w io.Writer, items []rr.ConfusionItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "image", "image_name", "ok_votes", "nok_votes", "total_responses", "discordance"}); err != nil {
		return err
	}
	for i, it := range items {
		row := []string{
			strconv.Itoa(i + 1),
			it.Image.String(),
			it.ImageName,
			strconv.Itoa(it.Votes.OK),
			strconv.Itoa(it.Votes.NOK),
			strconv.Itoa(it.TotalResponses),
			strconv.FormatFloat(it.Discordance, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write confusion csv: %w", err)
	}
	return nil
}

// WriteOperatorsCSV writes one row per operator seen by the analysis.
// Columns without a value are left empty.
func WriteOperatorsCSV(w io.Writer, a *rr.Analysis) error {
	cw := csv.NewWriter(w)
	header := []string{
		"operator_id", "operator_name",
		"repeatability_pct", "consistent_images", "total_images",
		"concordance_vs_consensus_pct", "tendency_ok", "tendency_nok",
		"effectiveness_pct", "miss_rate_pct", "false_alarm_rate_pct",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	names := operatorNames(a)
	rep := make(map[int64]rr.RepeatabilityResult, len(a.Repeatability))
	for _, r := range a.Repeatability {
		rep[r.OperatorID] = r
	}
	eff := make(map[int64]rr.OperatorEffectiveness, len(a.Effectiveness))
	for _, e := range a.Effectiveness {
		eff[e.OperatorID] = e
	}

	var ops []int64
	tend := map[int64]rr.OperatorTendency{}
	if a.Reproducibility != nil {
		ops = a.Reproducibility.Operators
		for _, t := range a.Reproducibility.Tendency() {
			tend[t.OperatorID] = t
		}
	}

	for _, op := range ops {
		row := make([]string, len(header))
		row[0] = strconv.FormatInt(op, 10)
		row[1] = names[op]
		if r, ok := rep[op]; ok {
			row[2] = fmtFloat(r.ConsistencyPct)
			row[3] = strconv.Itoa(r.ConsistentImages)
			row[4] = strconv.Itoa(r.TotalImages)
		}
		row[5] = fmtOptFloat(a.Reproducibility.ConcordanceVsConsensus[op])
		if t, ok := tend[op]; ok {
			row[6] = strconv.Itoa(t.OK)
			row[7] = strconv.Itoa(t.NOK)
		}
		if e, ok := eff[op]; ok {
			row[8] = fmtFloat(e.EffectivenessPct)
			row[9] = fmtOptFloat(e.MissRatePct)
			row[10] = fmtOptFloat(e.FalseAlarmRatePct)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write operators csv: %w", err)
	}
	return nil
}

// WriteResultsCSV writes one row per stored run. Repetition is empty for
// runs stored without one.
func WriteResultsCSV(w io.Writer, results []db.Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"result_id", "operator_id", "operator_name", "evaluator", "recorded_at",
		"repetition", "correct", "total", "accuracy_pct", "total_seconds", "mean_seconds",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		rep := ""
		if r.Repetition > 0 {
			rep = strconv.Itoa(r.Repetition)
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.OperatorID, 10),
			r.OperatorName,
			r.Evaluator,
			r.RecordedAt.UTC().Format(time.RFC3339),
			rep,
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Total),
			fmtFloat(r.AccuracyPct),
			fmtFloat(r.TotalSeconds),
			fmtFloat(r.MeanSeconds),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write results csv: %w", err)
	}
	return nil
}
