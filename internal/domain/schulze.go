package domain

import "fmt"

// ComputeSchulze determines the Condorcet winner among numCandidates
// candidates using the Schulze method. It returns the winning candidate
// index together with the pairwise-preference matrix and the strongest-path
// matrix so callers can report the full computation.
//
// The algorithm is the standard three-step Schulze procedure:
//
//  1. Tally pairwise preferences: for every voter, every candidate ranked
//     earlier beats every candidate ranked later.
//  2. Propagate path strengths with a widest-path Floyd-Warshall pass,
//     O(K^3) in the candidate count.
//  3. A candidate is eliminated if some other candidate holds a strictly
//     stronger path against it. The winner is the lowest-indexed survivor.
//
// Tie-breaking is lowest-index and therefore deterministic: identical
// inputs always produce identical outputs. True ties are possible and the
// lowest-index rule is arbitrary but load-bearing for reproducibility;
// changing it changes observable outcomes.
//
// Every ranking must be a full permutation of 0..numCandidates-1. A ranking
// violating that invariant is a caller contract breach and panics rather
// than producing a silently wrong tally.
func ComputeSchulze(rankings map[int]Ranking, numCandidates int) (winner int, pairwise, strongestPaths [][]int) {
	if numCandidates < 1 {
		panic(fmt.Sprintf("schulze: numCandidates must be >= 1, got %d", numCandidates))
	}

	pairwise = newMatrix(numCandidates)
	for voterID, ranking := range rankings {
		if err := ranking.Validate(numCandidates); err != nil {
			panic(fmt.Sprintf("schulze: voter %d supplied an invalid ranking: %v", voterID, err))
		}
		for i := 0; i < len(ranking); i++ {
			for j := i + 1; j < len(ranking); j++ {
				pairwise[ranking[i]][ranking[j]]++
			}
		}
	}

	strongestPaths = newMatrix(numCandidates)
	for i := 0; i < numCandidates; i++ {
		for j := 0; j < numCandidates; j++ {
			if i != j {
				strongestPaths[i][j] = pairwise[i][j]
			}
		}
	}

	// Widest-path propagation: the strength of a path is its weakest edge,
	// and the best path is the one whose weakest edge is strongest.
	for i := 0; i < numCandidates; i++ {
		for j := 0; j < numCandidates; j++ {
			if j == i {
				continue
			}
			for k := 0; k < numCandidates; k++ {
				if k == i || k == j {
					continue
				}
				if through := min(strongestPaths[j][i], strongestPaths[i][k]); through > strongestPaths[j][k] {
					strongestPaths[j][k] = through
				}
			}
		}
	}

	winner = -1
	for i := 0; i < numCandidates; i++ {
		beaten := false
		for j := 0; j < numCandidates; j++ {
			if j != i && strongestPaths[j][i] > strongestPaths[i][j] {
				beaten = true
				break
			}
		}
		if !beaten {
			winner = i
			break
		}
	}
	// A preference cycle with no survivor should not occur with full
	// rankings, but a defined answer beats an undefined one.
	if winner < 0 {
		winner = 0
	}

	return winner, pairwise, strongestPaths
}

func newMatrix(n int) [][]int {
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
	}
	return m
}
