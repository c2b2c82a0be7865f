package rr

import "strings"

// Verdict is a normalized operator answer.
type Verdict string

const (
	VerdictOK  Verdict = "OK"
	VerdictNOK Verdict = "NOK"
	// VerdictNone marks a blank or malformed answer. It never counts as a vote.
	VerdictNone Verdict = ""
)

// NormalizeVerdict upper-cases and trims a stored answer. Anything other than
// OK or NOK becomes VerdictNone.
func NormalizeVerdict(s string) Verdict {
	switch v := Verdict(strings.ToUpper(strings.TrimSpace(s))); v {
	case VerdictOK, VerdictNOK:
		return v
	default:
		return VerdictNone
	}
}

// Valid reports whether v is a countable vote.
func (v Verdict) Valid() bool {
	return v == VerdictOK || v == VerdictNOK
}

// majority returns the most frequent valid verdict in votes. Among tied
// counts the verdict first seen in votes wins. ok is false when votes holds
// no valid verdict.
func majority(votes []Verdict) (winner Verdict, ok bool) {
	counts := make(map[Verdict]int, 2)
	order := make([]Verdict, 0, 2)
	for _, v := range validVotes(votes) {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	best := 0
	for _, v := range order {
		if counts[v] > best {
			winner, best = v, counts[v]
		}
	}
	return winner, best > 0
}

// validVotes returns the valid verdicts of votes in their original order.
func validVotes(votes []Verdict) []Verdict {
	out := make([]Verdict, 0, len(votes))
	for _, v := range votes {
		if v.Valid() {
			out = append(out, v)
		}
	}
	return out
}
