package deliberation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// Election describes one election to run: a candidate set, an electorate,
// and its position in the recursion for progress reporting.
type Election struct {
	// Level is the recursion level this election belongs to.
	Level int
	// Group is the group index within the level.
	Group int
	// Question is the deliberation question.
	Question string
	// Candidates are the candidate statement texts, in index order.
	Candidates []string
	// Voters are the participants eligible to vote.
	Voters []domain.Voter
}

// ElectionRunner runs one election: it obtains a predicted ranking per
// voter and feeds the collected rankings into the Schulze computation.
// Voter-to-ranking attribution is preserved exactly even under concurrent
// prediction; results land in voter-indexed slots, never append-order
// collections.
type ElectionRunner struct {
	predictor      *RankingPredictor
	maxConcurrency int
	observer       ports.ProgressObserver
	tracer         trace.Tracer
}

// NewElectionRunner creates an ElectionRunner. observer may be nil;
// maxConcurrency values below 1 are treated as 1 (strictly sequential).
func NewElectionRunner(predictor *RankingPredictor, maxConcurrency int, observer ports.ProgressObserver) (*ElectionRunner, error) {
	if predictor == nil {
		return nil, fmt.Errorf("ranking predictor cannot be nil")
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}

	return &ElectionRunner{
		predictor:      predictor,
		maxConcurrency: maxConcurrency,
		observer:       observer,
		tracer:         otel.Tracer("election-runner"),
	}, nil
}

// voterOutcome is one voter's slot in the election.
type voterOutcome struct {
	ranking domain.Ranking
	log     AttemptLog
	failed  bool
}

// Run executes the election and returns the complete structured result
// plus the per-voter attempt logs keyed by voter ID.
//
// At least two candidates and one voter are required; otherwise the
// election is impossible and no fallback exists. A voter whose prediction
// fails outright is excluded from the rankings map; the election proceeds
// with the remaining voters. Cancellation aborts the whole election.
func (er *ElectionRunner) Run(ctx context.Context, e Election) (*domain.ElectionResult, map[int]AttemptLog, error) {
	ctx, span := er.tracer.Start(ctx, "ElectionRunner.Run",
		trace.WithAttributes(
			attribute.Int("level", e.Level),
			attribute.Int("group", e.Group),
			attribute.Int("candidates", len(e.Candidates)),
			attribute.Int("voters", len(e.Voters)),
		))
	defer span.End()

	if len(e.Candidates) < 2 {
		err := fmt.Errorf("%w: need at least 2 candidates, got %d", domain.ErrElectionImpossible, len(e.Candidates))
		span.RecordError(err)
		return nil, nil, err
	}
	if len(e.Voters) == 0 {
		err := fmt.Errorf("%w: no eligible voters", domain.ErrElectionImpossible)
		span.RecordError(err)
		return nil, nil, err
	}

	outcomes := make([]voterOutcome, len(e.Voters))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(er.maxConcurrency)

	for i, voter := range e.Voters {
		idx, v := i, voter
		g.Go(func() error {
			ranking, log, err := er.predictor.Predict(gctx, e.Question, v, e.Candidates)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				mu.Lock()
				outcomes[idx] = voterOutcome{log: log, failed: true}
				mu.Unlock()
				return nil
			}

			mu.Lock()
			outcomes[idx] = voterOutcome{ranking: ranking, log: log}
			mu.Unlock()

			er.observer.RankingPredicted(e.Level, e.Group, v.ID, ranking)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	rankings := make(map[int]domain.Ranking, len(e.Voters))
	logs := make(map[int]AttemptLog, len(e.Voters))
	for i, out := range outcomes {
		voterID := e.Voters[i].ID
		logs[voterID] = out.log
		if !out.failed {
			rankings[voterID] = out.ranking
		}
	}

	if len(rankings) == 0 {
		err := fmt.Errorf("%w: every voter's prediction failed", domain.ErrElectionImpossible)
		span.RecordError(err)
		return nil, logs, err
	}

	winner, pairwise, paths := domain.ComputeSchulze(rankings, len(e.Candidates))
	span.SetAttributes(attribute.Int("winner", winner))

	return &domain.ElectionResult{
		Winner:         winner,
		Rankings:       rankings,
		Pairwise:       pairwise,
		StrongestPaths: paths,
	}, logs, nil
}
