package deliberation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptSet_CandidatePrompt(t *testing.T) {
	ps := DefaultPromptSet()

	prompt, err := ps.CandidatePrompt(CandidatePromptData{
		Question:   "How should the park budget be spent?",
		Statements: []string{"More trees.", "Fix the playground."},
	})

	require.NoError(t, err)
	assert.Contains(t, prompt, "How should the park budget be spent?")
	assert.Contains(t, prompt, "1. More trees.")
	assert.Contains(t, prompt, "2. Fix the playground.")
}

func TestPromptSet_RankingPrompt(t *testing.T) {
	ps := DefaultPromptSet()

	prompt, err := ps.RankingPrompt(RankingPromptData{
		Question:       "How should the park budget be spent?",
		VoterStatement: "More trees.",
		VoterNumber:    2,
		NumCandidates:  3,
		Candidates:     []string{"alpha", "beta", "gamma"},
	})

	require.NoError(t, err)
	assert.Contains(t, prompt, "participant 2")
	assert.Contains(t, prompt, `"More trees."`)
	assert.Contains(t, prompt, "1. alpha")
	assert.Contains(t, prompt, "3. gamma")
}

func TestNewPromptSet_CustomTemplates(t *testing.T) {
	ps, err := NewPromptSet("Q: {{.Question}}", "V{{.VoterNumber}}: {{.VoterStatement}}")
	require.NoError(t, err)

	cp, err := ps.CandidatePrompt(CandidatePromptData{Question: "why"})
	require.NoError(t, err)
	assert.Equal(t, "Q: why", cp)

	rp, err := ps.RankingPrompt(RankingPromptData{VoterNumber: 3, VoterStatement: "hm"})
	require.NoError(t, err)
	assert.Equal(t, "V3: hm", rp)
}

func TestNewPromptSet_InvalidTemplate(t *testing.T) {
	_, err := NewPromptSet("{{.Question", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate template")
}

func TestRankingSystemPrompt_ExampleCountDiffersFromActual(t *testing.T) {
	tests := []struct {
		numCandidates int
		exampleCount  int
	}{
		{2, 3},
		{3, 4},
		{5, 6},
		{6, 5},
		{9, 8},
	}

	for _, tt := range tests {
		prompt := RankingSystemPrompt(tt.numCandidates)

		assert.Contains(t, prompt, `"ranking"`)
		// The example must be a parseable ranking over the example count,
		// proving the format demonstration is itself well-formed.
		start := strings.Index(prompt, `{"ranking"`)
		require.NotEqual(t, -1, start)
		parsed, err := ParseRanking(prompt[start:], tt.exampleCount, nil)
		require.NoError(t, err)
		assert.Len(t, parsed, tt.exampleCount)
	}
}
