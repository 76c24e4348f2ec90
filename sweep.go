package custos

import (
	"context"
	"fmt"
)

// SweepResult reports how many rows a sweep transitioned.
type SweepResult struct {
	ExpiredAssignments int64 `json:"expired_assignments"`
	ExpiredRequests    int64 `json:"expired_requests"`
}

// SweepExpired physically transitions overdue ACTIVE assignments and
// PENDING requests to EXPIRED. This is a reporting convenience:
// validity is always re-derived lazily at read time, so correctness
// never depends on the sweep having run.
func (e *Engine) SweepExpired(ctx context.Context) (SweepResult, error) {
	now := e.now().UTC()
	var res SweepResult

	n, err := e.store.MarkExpiredAssignments(ctx, now)
	if err != nil {
		return res, fmt.Errorf("custos: sweep assignments: %w", err)
	}
	res.ExpiredAssignments = n

	n, err = e.store.MarkExpiredRequests(ctx, now)
	if err != nil {
		return res, fmt.Errorf("custos: sweep requests: %w", err)
	}
	res.ExpiredRequests = n

	if res.ExpiredAssignments > 0 {
		e.invalidateAll(ctx)
	}
	return res, nil
}
