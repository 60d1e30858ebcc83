package deliberation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
)

// Orchestrator drives the recursive consensus process: it partitions the
// statement pool into bounded groups, runs one election per group, collects
// the winners, and recurses until a single statement remains.
//
// Groups at the same level are independent and may run concurrently; the
// owner mapping for the next level is assembled only after every group has
// finished, never updated in place by running groups.
type Orchestrator struct {
	cfg        Config
	candidates *CandidateGenerator
	elections  *ElectionRunner
	observer   ports.ProgressObserver
	metrics    ports.MetricsCollector
	tracer     trace.Tracer
}

// Option customizes an Orchestrator.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	observer ports.ProgressObserver
	metrics  ports.MetricsCollector
	prompts  *PromptSet
}

// WithObserver installs a progress observer. The orchestrator works
// correctly without one.
func WithObserver(observer ports.ProgressObserver) Option {
	return func(o *orchestratorOptions) { o.observer = observer }
}

// WithMetrics installs a metrics collector for operational telemetry.
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(o *orchestratorOptions) { o.metrics = collector }
}

// WithPrompts overrides the prompt set derived from the configuration.
func WithPrompts(prompts *PromptSet) Option {
	return func(o *orchestratorOptions) { o.prompts = prompts }
}

// NewOrchestrator assembles the full pipeline around the given generator
// and configuration. The configuration is normalized and validated here;
// downstream components assume valid inputs.
func NewOrchestrator(generator ports.TextGenerator, cfg Config, opts ...Option) (*Orchestrator, error) {
	if generator == nil {
		return nil, fmt.Errorf("text generator cannot be nil")
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var options orchestratorOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.observer == nil {
		options.observer = ports.NopObserver{}
	}

	prompts := options.prompts
	if prompts == nil {
		var err error
		prompts, err = NewPromptSet(cfg.CandidateTemplate, cfg.RankingTemplate)
		if err != nil {
			return nil, err
		}
	}

	candGen, err := NewCandidateGenerator(generator, prompts,
		cfg.CandidateSampling.Params(), cfg.CandidateConcurrency, cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}

	predictor, err := NewRankingPredictor(generator, prompts,
		cfg.RankingSampling.Params(), cfg.MaxRankingRetries)
	if err != nil {
		return nil, err
	}

	elections, err := NewElectionRunner(predictor, cfg.VoterConcurrency, options.observer)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:        cfg,
		candidates: candGen,
		elections:  elections,
		observer:   options.observer,
		metrics:    options.metrics,
		tracer:     otel.Tracer("consensus-orchestrator"),
	}, nil
}

// Run executes the full deliberation over the participant statements and
// returns the final consensus statement with the complete transcript.
//
// Level zero operates directly on participant statements; every later
// level operates on the previous level's group winners. The recursion
// terminates when a level holds a single statement, or when a level's
// statement count fits one group and that final election completes. The
// number of levels is bounded by ceil(log_M(N)) for M = MaxGroupSize.
func (o *Orchestrator) Run(ctx context.Context, question string, statements []string) (*ConsensusResult, error) {
	if len(statements) == 0 {
		return nil, domain.ErrNoStatements
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(
			attribute.Int("statements", len(statements)),
			attribute.String("strategy", string(o.cfg.Strategy)),
		))
	defer span.End()

	participants := make([]domain.Voter, len(statements))
	for i, s := range statements {
		participants[i] = domain.Voter{ID: i, Statement: s}
	}

	current := statements
	mapping := domain.IdentityMapping(len(statements))
	result := &ConsensusResult{}

	for level := 0; ; level++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("deliberation cancelled at level %d: %w", level, err)
		}

		// Recursing with a single statement is meaningless: it already won
		// its election, so it is the consensus.
		if len(current) == 1 {
			result.Statement = current[0]
			return result, nil
		}

		var groups [][]int
		if len(current) <= o.cfg.MaxGroupSize {
			// Base case: everything fits one final election. No shuffle is
			// needed when there is only one group.
			all := make([]int, len(current))
			for i := range all {
				all[i] = i
			}
			groups = [][]int{all}
		} else {
			groups = PartitionIndices(len(current), o.cfg.MaxGroupSize)
		}

		levelStart := time.Now()
		levelTrace, winners, nextMapping, err := o.runLevel(ctx, level, question, current, mapping, groups, participants)
		result.Levels = append(result.Levels, levelTrace)
		o.recordLevel(level, len(groups), time.Since(levelStart))
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		current = winners
		mapping = nextMapping
	}
}

// groupOutcome is one group's slot at a recursion level.
type groupOutcome struct {
	trace  ElectionTrace
	winner string
	owners []int
	failed bool
}

// runLevel executes every group election at one level and merges the
// results at a single synchronization point after all groups complete.
func (o *Orchestrator) runLevel(
	ctx context.Context,
	level int,
	question string,
	current []string,
	mapping domain.GroupMapping,
	groups [][]int,
	participants []domain.Voter,
) (LevelTrace, []string, domain.GroupMapping, error) {
	levelTrace := LevelTrace{Level: level, InputCount: len(current)}

	outcomes := make([]groupOutcome, len(groups))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.GroupConcurrency)

	for gi, group := range groups {
		groupIdx, memberIdxs := gi, group
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			members := make([]string, len(memberIdxs))
			for i, idx := range memberIdxs {
				members[i] = current[idx]
			}
			owners := mapping.Union(memberIdxs)
			voters := o.electorate(owners, participants)

			outcome := o.runGroup(gctx, level, groupIdx, question, members, voters)
			outcome.owners = owners

			mu.Lock()
			outcomes[groupIdx] = outcome
			mu.Unlock()

			if outcome.failed && isCancellation(outcome.trace.Error) {
				// Cancellation aborts the whole level, not just this group.
				if err := gctx.Err(); err != nil {
					return err
				}
				return context.Canceled
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, out := range outcomes {
			levelTrace.Groups = append(levelTrace.Groups, out.trace)
		}
		return levelTrace, nil, nil, fmt.Errorf("deliberation cancelled at level %d: %w", level, err)
	}

	// Merge point: winners and the next level's owner mapping are built
	// only after every group has finished.
	var winners []string
	nextMapping := make(domain.GroupMapping)
	var firstFailure string

	for _, out := range outcomes {
		levelTrace.Groups = append(levelTrace.Groups, out.trace)
		if out.failed {
			if firstFailure == "" {
				firstFailure = out.trace.Error
			}
			continue
		}
		nextMapping[len(winners)] = out.owners
		winners = append(winners, out.winner)
	}

	if len(winners) == 0 {
		return levelTrace, nil, nil, fmt.Errorf("%w at level %d: %s", domain.ErrNoConsensus, level, firstFailure)
	}

	return levelTrace, winners, nextMapping, nil
}

// runGroup generates candidates for one group and runs its election.
// Non-cancellation failures are recorded in the outcome rather than
// returned, so sibling groups keep running.
func (o *Orchestrator) runGroup(
	ctx context.Context,
	level, groupIdx int,
	question string,
	members []string,
	voters []domain.Voter,
) groupOutcome {
	outcome := groupOutcome{
		trace: ElectionTrace{
			Group:    groupIdx,
			Members:  members,
			VoterIDs: voterIDs(voters),
		},
	}

	candidates, err := o.candidates.Generate(ctx, question, members, o.cfg.NumCandidates,
		func(index int, text string) {
			o.observer.CandidateGenerated(level, groupIdx, index, text)
		})
	outcome.trace.Candidates = candidates
	if err != nil {
		if ctx.Err() != nil {
			outcome.failed = true
			outcome.trace.Error = cancellationMarker(ctx.Err())
			return outcome
		}
		// A shortfall still permits an election if at least two candidates
		// survived; candidate generation is never retried.
		if len(candidates) < 2 {
			outcome.failed = true
			outcome.trace.Error = fmt.Sprintf("candidate generation failed: %v", err)
			o.recordGroupFailure(level)
			return outcome
		}
		o.recordCounter("candidate_shortfall_total", map[string]string{"level": fmt.Sprint(level)})
	}

	electionResult, logs, err := o.elections.Run(ctx, Election{
		Level:      level,
		Group:      groupIdx,
		Question:   question,
		Candidates: candidates,
		Voters:     voters,
	})
	outcome.trace.AttemptLogs = logs
	if err != nil {
		outcome.failed = true
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome.trace.Error = cancellationMarker(err)
		} else {
			outcome.trace.Error = fmt.Sprintf("election failed: %v", err)
			o.recordGroupFailure(level)
		}
		return outcome
	}

	outcome.trace.Result = electionResult
	outcome.trace.WinnerText = candidates[electionResult.Winner]
	outcome.winner = outcome.trace.WinnerText

	o.observer.GroupWinnerChosen(level, groupIdx, electionResult.Winner, outcome.winner)
	o.recordCounter("elections_total", map[string]string{"level": fmt.Sprint(level)})

	return outcome
}

// electorate resolves the voter set for one group under the configured
// strategy.
func (o *Orchestrator) electorate(owners []int, participants []domain.Voter) []domain.Voter {
	if o.cfg.Strategy == domain.StrategyAllVoters {
		return participants
	}
	voters := make([]domain.Voter, 0, len(owners))
	for _, id := range owners {
		voters = append(voters, participants[id])
	}
	return voters
}

func voterIDs(voters []domain.Voter) []int {
	ids := make([]int, len(voters))
	for i, v := range voters {
		ids[i] = v.ID
	}
	return ids
}

// cancellationMarker produces the trace error string for a cancelled group.
const cancelledPrefix = "cancelled: "

func cancellationMarker(err error) string {
	return cancelledPrefix + err.Error()
}

func isCancellation(traceErr string) bool {
	return len(traceErr) >= len(cancelledPrefix) && traceErr[:len(cancelledPrefix)] == cancelledPrefix
}

func (o *Orchestrator) recordLevel(level, groups int, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	labels := map[string]string{"level": fmt.Sprint(level)}
	o.metrics.RecordLatency("consensus_level", elapsed, labels)
	o.metrics.RecordGauge("consensus_level_groups", float64(groups), labels)
}

func (o *Orchestrator) recordGroupFailure(level int) {
	o.recordCounter("group_failures_total", map[string]string{"level": fmt.Sprint(level)})
}

func (o *Orchestrator) recordCounter(metric string, labels map[string]string) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordCounter(metric, 1, labels)
}
