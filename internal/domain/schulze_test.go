package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSchulze_PairwiseConstruction(t *testing.T) {
	// One voter preferring candidate 1, then 0, then 2.
	rankings := map[int]Ranking{0: {1, 0, 2}}

	_, pairwise, _ := ComputeSchulze(rankings, 3)

	assert.Equal(t, 1, pairwise[1][0])
	assert.Equal(t, 1, pairwise[1][2])
	assert.Equal(t, 1, pairwise[0][2])
	assert.Equal(t, 0, pairwise[0][1])
	assert.Equal(t, 0, pairwise[2][0])
	assert.Equal(t, 0, pairwise[2][1])
}

func TestComputeSchulze_CondorcetWinner(t *testing.T) {
	// Candidate 2 pairwise-beats every other candidate directly,
	// so it must win regardless of index order.
	rankings := map[int]Ranking{
		0: {2, 0, 1},
		1: {2, 1, 0},
		2: {2, 0, 1},
		3: {0, 1, 2},
	}

	winner, pairwise, _ := ComputeSchulze(rankings, 3)

	require.Greater(t, pairwise[2][0], pairwise[0][2])
	require.Greater(t, pairwise[2][1], pairwise[1][2])
	assert.Equal(t, 2, winner)
}

func TestComputeSchulze_Determinism(t *testing.T) {
	rankings := map[int]Ranking{
		0: {0, 1, 2, 3},
		1: {1, 2, 3, 0},
		2: {2, 3, 0, 1},
		3: {3, 0, 1, 2},
		4: {0, 2, 1, 3},
	}

	firstWinner, firstPairwise, firstPaths := ComputeSchulze(rankings, 4)
	for i := 0; i < 10; i++ {
		winner, pairwise, paths := ComputeSchulze(rankings, 4)
		assert.Equal(t, firstWinner, winner)
		assert.Equal(t, firstPairwise, pairwise)
		assert.Equal(t, firstPaths, paths)
	}
}

func TestComputeSchulze_StrongestPathMonotonicity(t *testing.T) {
	rankings := map[int]Ranking{
		0: {0, 2, 1, 4, 3},
		1: {1, 0, 3, 2, 4},
		2: {4, 3, 2, 1, 0},
		3: {2, 1, 4, 0, 3},
		4: {3, 4, 0, 1, 2},
		5: {0, 1, 2, 3, 4},
		6: {1, 3, 0, 4, 2},
	}

	_, pairwise, paths := ComputeSchulze(rankings, 5)

	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if i == j {
				continue
			}
			assert.GreaterOrEqual(t, paths[i][j], pairwise[i][j],
				"strongestPaths[%d][%d] must be >= pairwise[%d][%d]", i, j, i, j)
		}
	}
}

func TestComputeSchulze_WikipediaExample(t *testing.T) {
	// The canonical five-candidate Schulze example: 45 voters across eight
	// ballot shapes, where E wins only through indirect path strength.
	// Candidates A..E map to indices 0..4.
	ballots := []struct {
		count   int
		ranking Ranking
	}{
		{5, Ranking{0, 2, 1, 4, 3}}, // ACBED
		{5, Ranking{0, 3, 4, 2, 1}}, // ADECB
		{8, Ranking{1, 4, 3, 0, 2}}, // BEDAC
		{3, Ranking{2, 0, 1, 4, 3}}, // CABED
		{7, Ranking{2, 0, 4, 1, 3}}, // CAEBD
		{2, Ranking{2, 1, 0, 3, 4}}, // CBADE
		{7, Ranking{3, 2, 4, 1, 0}}, // DCEBA
		{8, Ranking{4, 1, 0, 3, 2}}, // EBADC
	}

	rankings := make(map[int]Ranking)
	voter := 0
	for _, b := range ballots {
		for i := 0; i < b.count; i++ {
			rankings[voter] = b.ranking
			voter++
		}
	}
	require.Len(t, rankings, 45)

	winner, pairwise, _ := ComputeSchulze(rankings, 5)

	// Spot-check the published pairwise tallies.
	assert.Equal(t, 20, pairwise[0][1]) // d[A,B]
	assert.Equal(t, 26, pairwise[0][2]) // d[A,C]
	assert.Equal(t, 25, pairwise[1][0]) // d[B,A]

	assert.Equal(t, 4, winner, "E is the Schulze winner in this profile")
}

func TestComputeSchulze_LowestIndexTieBreak(t *testing.T) {
	// Two voters with exactly opposed preferences: neither candidate beats
	// the other, so both survive and the lowest index wins.
	rankings := map[int]Ranking{
		0: {0, 1},
		1: {1, 0},
	}

	winner, _, _ := ComputeSchulze(rankings, 2)
	assert.Equal(t, 0, winner)
}

func TestComputeSchulze_NoVoters(t *testing.T) {
	winner, pairwise, paths := ComputeSchulze(map[int]Ranking{}, 3)

	assert.Equal(t, 0, winner)
	assert.Equal(t, newMatrix(3), pairwise)
	assert.Equal(t, newMatrix(3), paths)
}

func TestComputeSchulze_PanicsOnInvalidRanking(t *testing.T) {
	tests := []struct {
		name     string
		rankings map[int]Ranking
		num      int
	}{
		{"wrong length", map[int]Ranking{0: {0, 1}}, 3},
		{"duplicate entry", map[int]Ranking{0: {0, 0, 1}}, 3},
		{"out of range", map[int]Ranking{0: {0, 1, 3}}, 3},
		{"zero candidates", map[int]Ranking{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() {
				ComputeSchulze(tt.rankings, tt.num)
			})
		})
	}
}
