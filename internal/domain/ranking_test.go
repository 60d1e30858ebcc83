package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRanking_Validate(t *testing.T) {
	tests := []struct {
		name      string
		ranking   Ranking
		num       int
		wantError string
	}{
		{
			name:    "valid permutation",
			ranking: Ranking{2, 0, 1},
			num:     3,
		},
		{
			name:    "single candidate",
			ranking: Ranking{0},
			num:     1,
		},
		{
			name:      "too short",
			ranking:   Ranking{0, 1},
			num:       3,
			wantError: "has 2 entries, want 3",
		},
		{
			name:      "too long",
			ranking:   Ranking{0, 1, 2, 3},
			num:       3,
			wantError: "has 4 entries, want 3",
		},
		{
			name:      "duplicate",
			ranking:   Ranking{0, 1, 1},
			num:       3,
			wantError: "contains candidate 1 twice",
		},
		{
			name:      "negative entry",
			ranking:   Ranking{0, -1, 2},
			num:       3,
			wantError: "out of range",
		},
		{
			name:      "entry beyond range",
			ranking:   Ranking{0, 1, 3},
			num:       3,
			wantError: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ranking.Validate(tt.num)
			if tt.wantError == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantError)
		})
	}
}

func TestRanking_Position(t *testing.T) {
	r := Ranking{2, 0, 1}

	assert.Equal(t, 0, r.Position(2))
	assert.Equal(t, 1, r.Position(0))
	assert.Equal(t, 2, r.Position(1))
	assert.Equal(t, -1, r.Position(5))
}

func TestGroupMapping_Union(t *testing.T) {
	gm := GroupMapping{
		0: {0, 1},
		1: {2},
		2: {1, 3},
	}

	merged := gm.Union([]int{0, 2, 1})
	assert.Equal(t, []int{0, 1, 3, 2}, merged)
}

func TestIdentityMapping(t *testing.T) {
	gm := IdentityMapping(3)

	assert.Len(t, gm, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, []int{i}, gm[i])
	}
}

func TestVotingStrategy_Valid(t *testing.T) {
	assert.True(t, StrategyOwnGroups.Valid())
	assert.True(t, StrategyAllVoters.Valid())
	assert.False(t, VotingStrategy("majority").Valid())
	assert.False(t, VotingStrategy("").Valid())
}
