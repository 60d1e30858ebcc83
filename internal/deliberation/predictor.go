package deliberation

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// RankingPredictor obtains one predicted ranking per voter by prompting the
// text generator and parsing its output. Parse failures and transient
// generator failures consume retry attempts; after the attempt budget is
// exhausted the predictor falls back to a uniformly random permutation.
// The random fallback is a defined success path, not an error: callers can
// always proceed with the returned ranking, and the attempt log records
// that the fallback occurred so failure telemetry stays inspectable.
type RankingPredictor struct {
	generator  ports.TextGenerator
	prompts    *PromptSet
	params     ports.SamplingParams
	maxRetries int
}

// NewRankingPredictor creates a RankingPredictor. prompts may be nil to use
// the defaults. maxRetries must be at least 1.
func NewRankingPredictor(
	generator ports.TextGenerator,
	prompts *PromptSet,
	params ports.SamplingParams,
	maxRetries int,
) (*RankingPredictor, error) {
	if generator == nil {
		return nil, fmt.Errorf("text generator cannot be nil")
	}
	if maxRetries < 1 {
		return nil, fmt.Errorf("maxRetries must be >= 1, got %d", maxRetries)
	}
	if prompts == nil {
		prompts = DefaultPromptSet()
	}

	return &RankingPredictor{
		generator:  generator,
		prompts:    prompts,
		params:     params,
		maxRetries: maxRetries,
	}, nil
}

// Predict returns the ranking the given voter is predicted to assign to the
// candidates. The first structurally valid ranking wins; retries stop
// immediately on success. Cancellation is checked before every generator
// call and aborts the prediction with the context's error; it is never
// converted into a random fallback.
func (rp *RankingPredictor) Predict(
	ctx context.Context,
	question string,
	voter domain.Voter,
	candidates []string,
) (domain.Ranking, AttemptLog, error) {
	if len(candidates) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 candidates, got %d",
			domain.ErrElectionImpossible, len(candidates))
	}

	numCandidates := len(candidates)
	var log AttemptLog

	prompt, err := rp.prompts.RankingPrompt(RankingPromptData{
		Question:       question,
		VoterStatement: voter.Statement,
		VoterNumber:    voter.ID + 1,
		NumCandidates:  numCandidates,
		Candidates:     candidates,
	})
	if err != nil {
		return nil, log, err
	}

	for attempt := 1; attempt <= rp.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			log.Add("attempt %d aborted: %v", attempt, err)
			return nil, log, fmt.Errorf("ranking prediction for voter %d cancelled: %w", voter.ID, err)
		}

		// A fresh system prompt per attempt re-randomizes the format
		// example.
		result, err := rp.generator.Generate(ctx, ports.GenerateRequest{
			Prompt: prompt,
			System: RankingSystemPrompt(numCandidates),
			Params: rp.params,
		})
		if err != nil {
			if ctx.Err() != nil {
				log.Add("attempt %d aborted: %v", attempt, ctx.Err())
				return nil, log, fmt.Errorf("ranking prediction for voter %d cancelled: %w", voter.ID, ctx.Err())
			}
			log.Add("attempt %d: generator call failed: %v", attempt, err)
			continue
		}

		ranking, err := ParseRanking(result.Text, numCandidates, &log)
		if err != nil {
			log.Add("attempt %d: %v", attempt, err)
			continue
		}

		log.Add("attempt %d succeeded", attempt)
		return ranking, log, nil
	}

	fallback := domain.Ranking(rand.Perm(numCandidates))
	log.Add("all %d attempts failed; falling back to random ranking %v", rp.maxRetries, []int(fallback))
	return fallback, log, nil
}
