package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ahrav/go-conclave/internal/ports"
)

// ErrBudgetExceeded indicates that a generation budget limit was reached
// and the request was rejected without calling the provider.
var ErrBudgetExceeded = errors.New("generation budget exceeded")

// Budget defines resource consumption limits for generation requests.
// Recursive deliberations multiply request volume quickly; a budget caps
// runaway cost. Zero values mean unlimited.
type Budget struct {
	// MaxTokens limits the total tokens consumed and produced.
	MaxTokens int64

	// MaxCalls limits the total number of generation requests.
	MaxCalls int64
}

// BudgetTracker accumulates usage against a budget. It is safe for
// concurrent use and may be shared across clients so one budget covers an
// entire pipeline run.
type BudgetTracker struct {
	budget Budget
	tokens atomic.Int64
	calls  atomic.Int64
}

// NewBudgetTracker creates a tracker with the given limits.
func NewBudgetTracker(budget Budget) *BudgetTracker {
	return &BudgetTracker{budget: budget}
}

// Usage returns the tokens and calls consumed so far.
func (bt *BudgetTracker) Usage() (tokens, calls int64) {
	return bt.tokens.Load(), bt.calls.Load()
}

// check validates the current usage against the limits.
func (bt *BudgetTracker) check() error {
	if bt.budget.MaxCalls > 0 && bt.calls.Load() >= bt.budget.MaxCalls {
		return fmt.Errorf("%w: %d of %d calls used", ErrBudgetExceeded, bt.calls.Load(), bt.budget.MaxCalls)
	}
	if bt.budget.MaxTokens > 0 && bt.tokens.Load() >= bt.budget.MaxTokens {
		return fmt.Errorf("%w: %d of %d tokens used", ErrBudgetExceeded, bt.tokens.Load(), bt.budget.MaxTokens)
	}
	return nil
}

// budgetGenerator rejects requests once the shared budget is exhausted.
type budgetGenerator struct {
	next    CoreGenerator
	tracker *BudgetTracker
}

// BudgetMiddleware creates middleware that enforces the given budget. All
// clients wrapped by the returned middleware draw from the same budget.
func BudgetMiddleware(budget Budget) Middleware {
	return BudgetMiddlewareWithTracker(NewBudgetTracker(budget))
}

// BudgetMiddlewareWithTracker creates budget middleware around an existing
// tracker, letting callers inspect usage after the run.
func BudgetMiddlewareWithTracker(tracker *BudgetTracker) Middleware {
	return func(next CoreGenerator) CoreGenerator {
		return &budgetGenerator{
			next:    next,
			tracker: tracker,
		}
	}
}

// DoGenerate executes the request if budget remains, then charges the
// tokens the provider reported.
func (b *budgetGenerator) DoGenerate(ctx context.Context, req ports.GenerateRequest) (ports.GenerateResult, error) {
	if err := b.tracker.check(); err != nil {
		return ports.GenerateResult{}, err
	}

	b.tracker.calls.Add(1)

	result, err := b.next.DoGenerate(ctx, req)
	if err != nil {
		return ports.GenerateResult{}, err
	}

	b.tracker.tokens.Add(int64(result.TokensIn + result.TokensOut))
	return result, nil
}

// GetModel returns the model name from the wrapped implementation.
func (b *budgetGenerator) GetModel() string { return b.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (b *budgetGenerator) SetModel(m string) { b.next.SetModel(m) }
