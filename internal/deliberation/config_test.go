package deliberation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxGroupSize, cfg.MaxGroupSize)
	assert.Equal(t, DefaultNumCandidates, cfg.NumCandidates)
	assert.Equal(t, domain.StrategyOwnGroups, cfg.Strategy)
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		groupSize int
		want      int
	}{
		{"below minimum clamps up", 1, MinGroupSize},
		{"above limit clamps down", 500, MaxGroupSizeLimit},
		{"in range untouched", 9, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxGroupSize = tt.groupSize
			cfg.GroupConcurrency = 0

			cfg.Normalize()

			assert.Equal(t, tt.want, cfg.MaxGroupSize)
			assert.Equal(t, 1, cfg.GroupConcurrency)
		})
	}
}

func TestConfig_ValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "plurality"

	err := cfg.Validate()

	require.Error(t, err)
}

func TestConfig_ValidateRejectsOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumCandidates = 1

	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxRankingRetries = 0
	require.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deliberation.yaml")
	content := `
max_group_size: 5
num_candidates: 4
voting_strategy: all_elections
group_concurrency: 4
ranking_sampling:
  temperature: 0.1
  top_p: 0.9
  max_tokens: 256
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxGroupSize)
	assert.Equal(t, 4, cfg.NumCandidates)
	assert.Equal(t, domain.StrategyAllVoters, cfg.Strategy)
	assert.Equal(t, 4, cfg.GroupConcurrency)
	assert.InDelta(t, 0.1, cfg.RankingSampling.Temperature, 1e-9)
	// Omitted fields keep their defaults.
	assert.Equal(t, DefaultMaxRankingRetries, cfg.MaxRankingRetries)
	assert.InDelta(t, 0.7, cfg.CandidateSampling.Temperature, 1e-9)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_group_size: [not, a, number]"), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("voting_strategy: plurality"), 0o600))
	_, err = LoadConfig(path)
	require.Error(t, err)
}
