package deliberation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/agnivade/levenshtein"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-conclave/internal/ports"
)

// foldCaser is a package-level Unicode case folder used when comparing
// candidate texts for near-duplicates.
var foldCaser = cases.Fold()

// CandidateGenerator produces candidate consensus statements for one group
// by driving the text generator once per candidate. It is stateless and
// safe for concurrent use.
type CandidateGenerator struct {
	generator ports.TextGenerator
	prompts   *PromptSet
	params    ports.SamplingParams

	// maxConcurrency bounds simultaneous generator calls. 1 preserves the
	// strictly sequential single-active-request mode.
	maxConcurrency int

	// similarityThreshold, when > 0, drops candidates whose case-folded
	// Levenshtein similarity to an earlier candidate meets the threshold.
	similarityThreshold float64
}

// NewCandidateGenerator creates a CandidateGenerator. prompts may be nil to
// use the defaults; maxConcurrency values below 1 are treated as 1.
func NewCandidateGenerator(
	generator ports.TextGenerator,
	prompts *PromptSet,
	params ports.SamplingParams,
	maxConcurrency int,
	similarityThreshold float64,
) (*CandidateGenerator, error) {
	if generator == nil {
		return nil, fmt.Errorf("text generator cannot be nil")
	}
	if prompts == nil {
		prompts = DefaultPromptSet()
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	return &CandidateGenerator{
		generator:           generator,
		prompts:             prompts,
		params:              params,
		maxConcurrency:      maxConcurrency,
		similarityThreshold: similarityThreshold,
	}, nil
}

// Generate produces up to count candidate statements from the given
// participant statements. Each candidate's prompt sees an independently
// shuffled copy of the statements, which decorrelates candidate wording
// from input order and reduces primacy bias in the generator.
//
// Partial-failure policy: the first generator error (or cancellation)
// stops further calls, and whatever candidates were already produced are
// returned together with the triggering error. onCandidate, when non-nil,
// fires once per accepted candidate in slot order.
func (cg *CandidateGenerator) Generate(
	ctx context.Context,
	question string,
	statements []string,
	count int,
	onCandidate func(index int, text string),
) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("candidate count must be >= 1, got %d", count)
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("cannot generate candidates from zero statements")
	}

	slots := make([]string, count)
	var mu sync.Mutex
	var firstErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cg.maxConcurrency)

	for i := 0; i < count; i++ {
		idx := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			prompt, err := cg.buildPrompt(question, statements)
			if err != nil {
				return err
			}

			result, err := cg.generator.Generate(gctx, ports.GenerateRequest{
				Prompt: prompt,
				Params: cg.params,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("candidate %d generation failed: %w", idx+1, err)
				}
				mu.Unlock()
				return err
			}

			text := StripReasoning(result.Text)
			if text == "" {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("candidate %d: %w", idx+1, ports.ErrInvalidResponse)
				}
				mu.Unlock()
				return ports.ErrInvalidResponse
			}

			slots[idx] = text
			return nil
		})
	}

	err := g.Wait()
	if firstErr != nil {
		err = firstErr
	}

	candidates := make([]string, 0, count)
	for _, text := range slots {
		if text != "" {
			candidates = append(candidates, text)
		}
	}

	if err == nil {
		candidates = cg.dropNearDuplicates(candidates, onCandidate)
		return candidates, nil
	}

	// Report what survived even on failure; the caller decides whether a
	// shortfall is fatal.
	candidates = cg.dropNearDuplicates(candidates, onCandidate)
	return candidates, err
}

// buildPrompt renders the candidate prompt over a freshly shuffled copy of
// the statements.
func (cg *CandidateGenerator) buildPrompt(question string, statements []string) (string, error) {
	shuffled := make([]string, len(statements))
	copy(shuffled, statements)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	return cg.prompts.CandidatePrompt(CandidatePromptData{
		Question:   question,
		Statements: shuffled,
	})
}

// dropNearDuplicates filters candidates that are near-identical to an
// earlier one, never reducing the set below two candidates. It also fires
// the onCandidate callback for each kept candidate.
func (cg *CandidateGenerator) dropNearDuplicates(candidates []string, onCandidate func(int, string)) []string {
	kept := candidates
	if cg.similarityThreshold > 0 && len(candidates) > 2 {
		filtered := make([]string, 0, len(candidates))
		for _, c := range candidates {
			duplicate := false
			for _, prev := range filtered {
				if textSimilarity(prev, c) >= cg.similarityThreshold {
					duplicate = true
					break
				}
			}
			if !duplicate {
				filtered = append(filtered, c)
			}
		}
		// An election needs at least two candidates; filtering must never
		// take the set below that.
		if len(filtered) >= 2 {
			kept = filtered
		}
	}

	if onCandidate != nil {
		for i, c := range kept {
			onCandidate(i, c)
		}
	}
	return kept
}

// textSimilarity returns a normalized similarity in [0,1] between two texts
// using Levenshtein distance over case-folded forms.
func textSimilarity(a, b string) float64 {
	fa := foldCaser.String(a)
	fb := foldCaser.String(b)
	if fa == fb {
		return 1.0
	}

	longest := max(len([]rune(fa)), len([]rune(fb)))
	if longest == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(fa, fb)
	return 1.0 - float64(dist)/float64(longest)
}
