package domain

import "fmt"

// Ranking is one voter's ordered preference over a candidate set: a
// permutation of 0..K-1 with the most-preferred candidate first.
type Ranking []int

// Validate checks the permutation invariant: the ranking must contain
// exactly numCandidates entries and every index in 0..numCandidates-1
// exactly once. A ranking that fails validation must never reach
// ComputeSchulze.
func (r Ranking) Validate(numCandidates int) error {
	if len(r) != numCandidates {
		return fmt.Errorf("ranking has %d entries, want %d", len(r), numCandidates)
	}
	seen := make([]bool, numCandidates)
	for _, c := range r {
		if c < 0 || c >= numCandidates {
			return fmt.Errorf("ranking entry %d out of range [0,%d)", c, numCandidates)
		}
		if seen[c] {
			return fmt.Errorf("ranking contains candidate %d twice", c)
		}
		seen[c] = true
	}
	return nil
}

// Position returns the rank position of candidate c, or -1 if absent.
// Position 0 is most preferred.
func (r Ranking) Position(c int) int {
	for i, v := range r {
		if v == c {
			return i
		}
	}
	return -1
}
