package deliberation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/ports"
	"github.com/ahrav/go-conclave/internal/testutils"
)

// scriptedGenerator answers ranking calls (recognized by their system
// prompt) with a fixed preference order, and candidate calls with a unique
// numbered text so winners can be traced back to specific generations.
func scriptedGenerator(prefOrder ...int) *testutils.MockGenerator {
	mock := testutils.NewMockGenerator()
	var candidateCalls atomic.Int32
	mock.GenerateFn = func(_ context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
		if req.System != "" {
			return ports.GenerateResult{Text: testutils.RankingResponse(prefOrder...)}, nil
		}
		return ports.GenerateResult{Text: fmt.Sprintf("consensus draft %d", candidateCalls.Add(1))}, nil
	}
	return mock
}

// rankingCallCount counts generator calls carrying a ranking system prompt.
func rankingCallCount(mock *testutils.MockGenerator) int {
	n := 0
	for _, call := range mock.Calls() {
		if call.System != "" {
			n++
		}
	}
	return n
}

func statementPool(n int) []string {
	statements := make([]string, n)
	for i := range statements {
		statements[i] = fmt.Sprintf("participant %d holds opinion %d", i, i)
	}
	return statements
}

func TestOrchestrator_SingleStatementShortCircuits(t *testing.T) {
	mock := testutils.NewMockGenerator()
	o, err := NewOrchestrator(mock, DefaultConfig())
	require.NoError(t, err)

	result, err := o.Run(context.Background(), "q", []string{"the lone view"})

	require.NoError(t, err)
	assert.Equal(t, "the lone view", result.Statement)
	assert.Empty(t, result.Levels)
	assert.Zero(t, mock.CallCount(), "a single statement needs no election")
}

func TestOrchestrator_SingleElection(t *testing.T) {
	mock := scriptedGenerator(2, 1, 3)
	o, err := NewOrchestrator(mock, DefaultConfig())
	require.NoError(t, err)

	result, err := o.Run(context.Background(), "q", statementPool(5))

	require.NoError(t, err)
	// Every simulated voter prefers candidate 2 (1-indexed), so candidate
	// index 1 wins the one and only election.
	assert.Equal(t, "consensus draft 2", result.Statement)

	require.Len(t, result.Levels, 1)
	level := result.Levels[0]
	assert.Equal(t, 5, level.InputCount)
	require.Len(t, level.Groups, 1)

	tr := level.Groups[0]
	require.NotNil(t, tr.Result)
	assert.Equal(t, 1, tr.Result.Winner)
	assert.Len(t, tr.Candidates, 3)
	assert.Len(t, tr.Members, 5)
	assert.Len(t, tr.Result.Rankings, 5)
	assert.Len(t, tr.AttemptLogs, 5)
	assert.Equal(t, tr.Candidates[1], tr.WinnerText)

	assert.Equal(t, 5, rankingCallCount(mock))
	assert.Equal(t, 3+5, mock.CallCount())
}

func TestOrchestrator_TwoLevelRecursion(t *testing.T) {
	mock := scriptedGenerator(1, 2, 3)
	o, err := NewOrchestrator(mock, DefaultConfig())
	require.NoError(t, err)

	result, err := o.Run(context.Background(), "q", statementPool(20))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Statement, "consensus draft"))

	require.Len(t, result.Levels, 2)

	level0 := result.Levels[0]
	assert.Equal(t, 20, level0.InputCount)
	require.Len(t, level0.Groups, 3, "20 statements at group size 9 split into 3 groups")
	for _, tr := range level0.Groups {
		assert.GreaterOrEqual(t, len(tr.Members), 6)
		assert.LessOrEqual(t, len(tr.Members), 7)
		require.NotNil(t, tr.Result)
	}

	level1 := result.Levels[1]
	assert.Equal(t, 3, level1.InputCount)
	require.Len(t, level1.Groups, 1)
	assert.Equal(t, result.Statement, level1.Groups[0].WinnerText)

	// Under own-groups voting, level 0 has each of the 20 participants vote
	// once; at level 1 the final group's owners cover all 20 again.
	assert.Equal(t, 40, rankingCallCount(mock))
	// 4 elections, 3 candidate generations each.
	assert.Equal(t, 40+12, mock.CallCount())
}

func TestOrchestrator_LevelCountStaysLogarithmic(t *testing.T) {
	mock := scriptedGenerator(1, 2)
	cfg := DefaultConfig()
	cfg.MaxGroupSize = 3
	cfg.NumCandidates = 2

	o, err := NewOrchestrator(mock, cfg)
	require.NoError(t, err)

	result, err := o.Run(context.Background(), "q", statementPool(30))

	require.NoError(t, err)
	// 30 -> 10 -> 4 -> 2 -> 1 at group size 3.
	assert.Len(t, result.Levels, 4)
	assert.Equal(t, 30, result.Levels[0].InputCount)
	assert.Equal(t, 10, result.Levels[1].InputCount)
	assert.Equal(t, 4, result.Levels[2].InputCount)
	assert.Equal(t, 2, result.Levels[3].InputCount)
}

func TestOrchestrator_VotingStrategies(t *testing.T) {
	// 4 statements at group size 2: two level-0 groups, then one final
	// election over the two winners.
	countRankingCalls := func(strategy domain.VotingStrategy) int {
		mock := scriptedGenerator(1, 2)
		cfg := DefaultConfig()
		cfg.MaxGroupSize = 2
		cfg.NumCandidates = 2
		cfg.Strategy = strategy

		o, err := NewOrchestrator(mock, cfg)
		require.NoError(t, err)

		_, err = o.Run(context.Background(), "q", statementPool(4))
		require.NoError(t, err)
		return rankingCallCount(mock)
	}

	// Own groups: 2+2 voters at level 0, all 4 owners in the final.
	assert.Equal(t, 8, countRankingCalls(domain.StrategyOwnGroups))
	// All voters: every participant votes in every election.
	assert.Equal(t, 12, countRankingCalls(domain.StrategyAllVoters))
}

func TestOrchestrator_EmptyStatements(t *testing.T) {
	o, err := NewOrchestrator(testutils.NewMockGenerator(), DefaultConfig())
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "q", nil)

	assert.ErrorIs(t, err, domain.ErrNoStatements)
}

func TestOrchestrator_Cancellation(t *testing.T) {
	o, err := NewOrchestrator(scriptedGenerator(1, 2, 3), DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = o.Run(ctx, "q", statementPool(5))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "deliberation cancelled")
}

func TestOrchestrator_AllGroupsFailingIsNoConsensus(t *testing.T) {
	mock := testutils.NewMockGenerator()
	mock.GenerateFn = func(_ context.Context, _ ports.GenerateRequest) (ports.GenerateResult, error) {
		return ports.GenerateResult{}, errors.New("backend down")
	}

	o, err := NewOrchestrator(mock, DefaultConfig())
	require.NoError(t, err)

	result, err := o.Run(context.Background(), "q", statementPool(5))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoConsensus)
	assert.Nil(t, result)
}

func TestOrchestrator_CandidateShortfallStillElects(t *testing.T) {
	// The third candidate generation fails, but two candidates survive, so
	// the election proceeds with the reduced field.
	mock := testutils.NewMockGenerator()
	var candidateCalls atomic.Int32
	mock.GenerateFn = func(_ context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
		if req.System != "" {
			return ports.GenerateResult{Text: testutils.RankingResponse(2, 1)}, nil
		}
		n := candidateCalls.Add(1)
		if n == 3 {
			return ports.GenerateResult{}, errors.New("backend hiccup")
		}
		return ports.GenerateResult{Text: fmt.Sprintf("consensus draft %d", n)}, nil
	}

	cfg := DefaultConfig()
	cfg.NumCandidates = 3
	o, err := NewOrchestrator(mock, cfg)
	require.NoError(t, err)

	result, err := o.Run(context.Background(), "q", statementPool(4))

	require.NoError(t, err)
	assert.Equal(t, "consensus draft 2", result.Statement)
	require.Len(t, result.Levels, 1)
	assert.Len(t, result.Levels[0].Groups[0].Candidates, 2)
}

func TestOrchestrator_ObserverReceivesProgress(t *testing.T) {
	obs := &recordingObserver{}
	o, err := NewOrchestrator(scriptedGenerator(1, 2, 3), DefaultConfig(), WithObserver(obs))
	require.NoError(t, err)

	result, err := o.Run(context.Background(), "q", statementPool(5))

	require.NoError(t, err)
	assert.Len(t, obs.candidates, 3)
	assert.Len(t, obs.rankings, 5)
	require.Len(t, obs.winners, 1)
	assert.Equal(t, result.Statement, obs.winners[0].text)
	assert.Equal(t, 0, obs.winners[0].winner)
}

// countingCollector records metric names for assertions.
type countingCollector struct {
	counters map[string]float64
	gauges   map[string]float64
	timings  map[string]int
}

func newCountingCollector() *countingCollector {
	return &countingCollector{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
		timings:  make(map[string]int),
	}
}

func (c *countingCollector) RecordCounter(name string, value float64, _ map[string]string) {
	c.counters[name] += value
}

func (c *countingCollector) RecordGauge(name string, value float64, _ map[string]string) {
	c.gauges[name] = value
}

func (c *countingCollector) RecordLatency(name string, _ time.Duration, _ map[string]string) {
	c.timings[name]++
}

func (c *countingCollector) RecordHistogram(string, float64, map[string]string) {}

func TestOrchestrator_MetricsRecorded(t *testing.T) {
	collector := newCountingCollector()
	o, err := NewOrchestrator(scriptedGenerator(1, 2, 3), DefaultConfig(), WithMetrics(collector))
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "q", statementPool(5))

	require.NoError(t, err)
	assert.Equal(t, 1.0, collector.counters["elections_total"])
	assert.Equal(t, 1, collector.timings["consensus_level"])
	assert.Equal(t, 1.0, collector.gauges["consensus_level_groups"])
}
