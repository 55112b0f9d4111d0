package wait

import (
	"context"
	"errors"
	"time"
)

// MultiStrategy runs several strategies one after another under a shared deadline.
type MultiStrategy struct {
	base
	strategies []Strategy
}

// ForAll waits until every strategy is satisfied, in order.
func ForAll(strategies ...Strategy) *MultiStrategy {
	return &MultiStrategy{
		base:       newBase("all"),
		strategies: strategies,
	}
}

// WithStartupTimeout sets the deadline shared by all strategies.
func (s *MultiStrategy) WithStartupTimeout(d time.Duration) *MultiStrategy {
	s.setTimeout(d)
	return s
}

func (s *MultiStrategy) WaitUntilReady(ctx context.Context, target Target) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	for _, strategy := range s.strategies {
		if strategy == nil {
			continue
		}
		if err := strategy.WaitUntilReady(ctx, target); err != nil {
			if !errors.Is(err, ErrTimedOut) && !errors.Is(err, ErrFailed) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &TimeoutError{Strategy: s.label(), Timeout: s.Timeout(), Attempts: 1, Last: err}
			}
			return err
		}
	}
	return nil
}
