// Package analysis characterises recorded runs.
//
// [Compute] returns the one-sided amplitude spectrum of a sampled signal,
// such as a joint angle column of a stored trace:
//
//	s, err := analysis.Compute(trace.Column("q:hinge"), 1/controlDt)
//	peak := s.Dominant()
//
// A dominant peak that grows between runs is the usual sign of a policy
// exciting a resonance.
package analysis
