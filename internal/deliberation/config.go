package deliberation

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// Bounds and defaults for deliberation configuration.
const (
	// MinGroupSize is the smallest meaningful election group.
	MinGroupSize = 2
	// MaxGroupSizeLimit caps group size; one election prompt must stay
	// within a reasonable context budget.
	MaxGroupSizeLimit = 50

	// DefaultMaxGroupSize matches the reference deployment's group bound.
	DefaultMaxGroupSize = 9
	// DefaultNumCandidates is the number of candidate statements generated
	// per election.
	DefaultNumCandidates = 3
	// DefaultMaxRankingRetries bounds ranking-prediction attempts per voter
	// before the random fallback.
	DefaultMaxRankingRetries = 3
)

// SamplingConfig mirrors ports.SamplingParams with validation tags for
// YAML-driven configuration.
type SamplingConfig struct {
	// Temperature controls generation randomness.
	Temperature float64 `yaml:"temperature" validate:"min=0.0,max=2.0"`
	// TopP is the nucleus-sampling threshold.
	TopP float64 `yaml:"top_p" validate:"min=0.0,max=1.0"`
	// TopK limits sampling to the K most likely tokens.
	TopK int `yaml:"top_k" validate:"min=0,max=500"`
	// MaxTokens caps generated text length.
	MaxTokens int `yaml:"max_tokens" validate:"min=0,max=16000"`
}

// Params converts the config into the request parameters used on every
// generator call.
func (sc SamplingConfig) Params() ports.SamplingParams {
	return ports.SamplingParams{
		Temperature: sc.Temperature,
		TopP:        sc.TopP,
		TopK:        sc.TopK,
		MaxTokens:   sc.MaxTokens,
	}
}

// Config holds every tunable of a deliberation run. All fields are
// validated before use; Normalize clamps the group size into its legal
// range first, per the partitioner's caller contract.
type Config struct {
	// MaxGroupSize bounds how many statements one election handles.
	MaxGroupSize int `yaml:"max_group_size" validate:"required,min=2,max=50"`

	// NumCandidates is how many candidate statements to generate per
	// election.
	NumCandidates int `yaml:"num_candidates" validate:"required,min=2,max=10"`

	// MaxRankingRetries bounds per-voter ranking attempts before the
	// random fallback.
	MaxRankingRetries int `yaml:"max_ranking_retries" validate:"required,min=1,max=10"`

	// Strategy selects the electorate for each group's election.
	Strategy domain.VotingStrategy `yaml:"voting_strategy" validate:"required,oneof=own_groups_only all_elections"`

	// GroupConcurrency bounds simultaneous group elections per level.
	// 1 preserves the sequential reference behavior.
	GroupConcurrency int `yaml:"group_concurrency" validate:"min=1,max=16"`

	// VoterConcurrency bounds simultaneous ranking predictions per
	// election.
	VoterConcurrency int `yaml:"voter_concurrency" validate:"min=1,max=16"`

	// CandidateConcurrency bounds simultaneous candidate generations.
	CandidateConcurrency int `yaml:"candidate_concurrency" validate:"min=1,max=16"`

	// SimilarityThreshold, when > 0, drops near-duplicate candidates whose
	// normalized Levenshtein similarity meets the threshold.
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"min=0.0,max=1.0"`

	// CandidateSampling configures generation of candidate statements.
	CandidateSampling SamplingConfig `yaml:"candidate_sampling"`

	// RankingSampling configures ranking-prediction calls. Lower
	// temperature gives more consistent rankings.
	RankingSampling SamplingConfig `yaml:"ranking_sampling"`

	// CandidateTemplate and RankingTemplate override the built-in prompt
	// templates; empty values use the defaults.
	CandidateTemplate string `yaml:"candidate_template"`
	RankingTemplate   string `yaml:"ranking_template"`
}

// configValidator is the shared validator instance for Config.
var configValidator = validator.New()

// DefaultConfig returns a Config with the reference deployment's defaults:
// sequential execution, nine-statement groups, three candidates, and three
// ranking attempts per voter.
func DefaultConfig() Config {
	return Config{
		MaxGroupSize:         DefaultMaxGroupSize,
		NumCandidates:        DefaultNumCandidates,
		MaxRankingRetries:    DefaultMaxRankingRetries,
		Strategy:             domain.StrategyOwnGroups,
		GroupConcurrency:     1,
		VoterConcurrency:     1,
		CandidateConcurrency: 1,
		SimilarityThreshold:  0,
		CandidateSampling:    SamplingConfig{Temperature: 0.7, TopP: 0.9, MaxTokens: 1024},
		RankingSampling:      SamplingConfig{Temperature: 0.2, TopP: 0.9, MaxTokens: 512},
	}
}

// Normalize clamps MaxGroupSize into [MinGroupSize, MaxGroupSizeLimit] and
// raises concurrency knobs to at least 1. The partitioner assumes a valid
// group size and does not re-validate.
func (c *Config) Normalize() {
	if c.MaxGroupSize < MinGroupSize {
		c.MaxGroupSize = MinGroupSize
	}
	if c.MaxGroupSize > MaxGroupSizeLimit {
		c.MaxGroupSize = MaxGroupSizeLimit
	}
	if c.GroupConcurrency < 1 {
		c.GroupConcurrency = 1
	}
	if c.VoterConcurrency < 1 {
		c.VoterConcurrency = 1
	}
	if c.CandidateConcurrency < 1 {
		c.CandidateConcurrency = 1
	}
}

// Validate checks the configuration against its constraints.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if !c.Strategy.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStrategy, c.Strategy)
	}
	return nil
}

// LoadConfig reads a YAML configuration file, applies defaults for omitted
// fields, normalizes, and validates.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
