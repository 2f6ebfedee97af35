package videogen

import (
	"context"
	"fmt"
)

// QuotaGuard enforces per-user daily and concurrent task limits. It is a
// pure read-only check against the store; the check-then-create sequence is
// not atomic, so concurrent submissions from one user may briefly
// over-admit. That race is accepted rather than masked with a global lock.
type QuotaGuard struct {
	store         Store
	maxConcurrent int
	maxDailyTasks int
}

func NewQuotaGuard(store Store, maxConcurrent, maxDaily int) *QuotaGuard {
	return &QuotaGuard{store: store, maxConcurrent: maxConcurrent, maxDailyTasks: maxDaily}
}

// CheckEligibility reports whether the user may create a new task. When not
// eligible, reason holds a user-facing explanation.
func (g *QuotaGuard) CheckEligibility(ctx context.Context, userId int64) (bool, string, error) {
	active, err := g.store.GetUserActiveTaskCount(ctx, userId)
	if err != nil {
		return false, "", err
	}
	if active >= int64(g.maxConcurrent) {
		return false, fmt.Sprintf(
			"you already have %d video tasks in progress (limit %d), use /status to check them or /cancel to cancel",
			active, g.maxConcurrent), nil
	}

	daily, err := g.store.GetUserDailyTaskCount(ctx, userId)
	if err != nil {
		return false, "", err
	}
	if daily >= int64(g.maxDailyTasks) {
		return false, fmt.Sprintf(
			"you have reached the daily limit of %d video generations, try again tomorrow", g.maxDailyTasks), nil
	}

	return true, "", nil
}
