// Package rr implements the attribute agreement (Gage R&R) analysis for
// OK/NOK visual-inspection tests.
//
// The package is split into a reader, which turns stored results and
// responses into a flat, normalized slice of Record values, and a set of
// pure calculators over that slice:
//
//   - Repeatability: agreement of one operator with themselves across
//     repetitions of the same image.
//   - Reproducibility: agreement between operators, the pairwise
//     concordance matrix and the consensus answer per image.
//   - ConfusionRanking: images ranked by how evenly split the raw votes are.
//   - Effectiveness: agreement of each operator with the ground-truth answer
//     recorded at the time of the test.
//
// Calculators never mutate their input and share no state, so they can be
// run concurrently over the same dataset (see Engine.Analyze).
package rr
