// Package report renders an rr.Analysis as text, charts, a PDF, an
// interactive HTML dashboard and CSV tables, and writes them to a run
// directory.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/inspection.report/internal/rr"
)

// operatorLabel returns the display name of an operator, falling back to
// its id when the name is blank.
func operatorLabel(names map[int64]string, id int64) string {
	if n := names[id]; n != "" {
		return n
	}
	return fmt.Sprintf("operator #%d", id)
}

func imageLabel(key rr.ImageKey, name string) string {
	if name != "" {
		return name
	}
	return key.String()
}

func formatPct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *p)
}

// operatorNames collects every operator name the analysis knows about.
func operatorNames(a *rr.Analysis) map[int64]string {
	names := make(map[int64]string)
	if a.Reproducibility != nil {
		for id, n := range a.Reproducibility.OperatorNames {
			names[id] = n
		}
	}
	for _, r := range a.Repeatability {
		if r.OperatorName != "" {
			names[r.OperatorID] = r.OperatorName
		}
	}
	return names
}

// Summary renders the plain-text report: repeatability and concordance per
// operator, the topN most confusing images, operators ordered from least
// to most aligned with the consensus, and effectiveness.
func Summary(a *rr.Analysis, topN int) string {
	if a == nil {
		return "No data found for this test.\n"
	}
	var b strings.Builder
	names := operatorNames(a)

	fmt.Fprintf(&b, "Attribute R&R analysis, test %d\n", a.TestID)
	fmt.Fprintf(&b, "Generated %s from %d responses\n", a.GeneratedAt.UTC().Format(time.RFC3339), a.Records)
	if a.Resolution.ByFilename > 0 || a.Resolution.Unresolved > 0 {
		fmt.Fprintf(&b, "Image identity: %d by id, %d by filename, %d unresolved\n",
			a.Resolution.ByID, a.Resolution.ByFilename, a.Resolution.Unresolved)
	}

	var operators []int64
	if a.Reproducibility != nil {
		operators = a.Reproducibility.Operators
	}
	repByOp := make(map[int64]rr.RepeatabilityResult, len(a.Repeatability))
	for _, r := range a.Repeatability {
		repByOp[r.OperatorID] = r
	}

	b.WriteString("\nRepeatability per operator:\n")
	for _, op := range operators {
		r, ok := repByOp[op]
		if !ok {
			fmt.Fprintf(&b, " - %s: not enough data\n", operatorLabel(names, op))
			continue
		}
		fmt.Fprintf(&b, " - %s: %d/%d consistent (%.1f%%)\n",
			operatorLabel(names, op), r.ConsistentImages, r.TotalImages, r.ConsistencyPct)
	}

	b.WriteString("\nReproducibility (between operators):\n")
	fmt.Fprintf(&b, "Operators analysed: %d\n", len(operators))
	if a.Reproducibility != nil {
		for _, op := range operators {
			fmt.Fprintf(&b, " - %s: %s vs consensus\n",
				operatorLabel(names, op), formatPct(a.Reproducibility.ConcordanceVsConsensus[op]))
		}
	}

	b.WriteString("\nMost confusing items:\n")
	items := a.Confusion
	if topN >= 0 && len(items) > topN {
		items = items[:topN]
	}
	if len(items) == 0 {
		b.WriteString(" (none)\n")
	}
	for _, it := range items {
		fmt.Fprintf(&b, " - %s: discordance %.2f, responses %d (OK %d / NOK %d)\n",
			imageLabel(it.Image, it.ImageName), it.Discordance, it.TotalResponses, it.Votes.OK, it.Votes.NOK)
	}

	if a.Reproducibility != nil {
		b.WriteString("\nLeast aligned operators:\n")
		for _, op := range leastAligned(a.Reproducibility) {
			fmt.Fprintf(&b, " - %s: %s\n", operatorLabel(names, op),
				formatPct(a.Reproducibility.ConcordanceVsConsensus[op]))
		}
	}

	if len(a.Effectiveness) > 0 {
		b.WriteString("\nEffectiveness against recorded answers:\n")
		for _, e := range a.Effectiveness {
			fmt.Fprintf(&b, " - %s: %.1f%% (%d/%d), miss rate %s, false alarm rate %s\n",
				operatorLabel(names, e.OperatorID), e.EffectivenessPct, e.Correct, e.Judged,
				formatPct(e.MissRatePct), formatPct(e.FalseAlarmRatePct))
		}
	}
	return b.String()
}

// leastAligned orders operators by ascending concordance with the
// consensus. Operators without a value go last.
func leastAligned(r *rr.ReproducibilityResult) []int64 {
	ops := append([]int64(nil), r.Operators...)
	sort.SliceStable(ops, func(i, j int) bool {
		pi, pj := r.ConcordanceVsConsensus[ops[i]], r.ConcordanceVsConsensus[ops[j]]
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return *pi < *pj
		}
	})
	return ops
}
