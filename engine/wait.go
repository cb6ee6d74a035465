package engine

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// ErrWaitTimeout is returned by Waiter.Await when the condition did not
// hold before the deadline.
var ErrWaitTimeout = errors.New("wait condition timed out")

// Clock abstracts time so waits can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Condition reports whether an observable state holds. A non-nil error
// aborts the wait.
type Condition func(ctx context.Context) (bool, error)

// Waiter polls conditions until they hold or a deadline passes.
type Waiter struct {
	interval time.Duration
	clock    Clock
}

// NewWaiter creates a Waiter polling every interval. A nil clock means
// SystemClock.
func NewWaiter(interval time.Duration, clock Clock) *Waiter {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Waiter{interval: interval, clock: clock}
}

// Clock returns the clock the waiter measures deadlines with.
func (w *Waiter) Clock() Clock {
	return w.clock
}

// Await evaluates cond until it holds, it fails, ctx ends, or timeout
// elapses. The condition is always evaluated at least once.
func (w *Waiter) Await(ctx context.Context, cond Condition, timeout time.Duration) error {
	deadline := w.clock.Now().Add(timeout)
	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		remaining := deadline.Sub(w.clock.Now())
		if remaining <= 0 {
			return ErrWaitTimeout
		}
		pause := w.interval
		if pause > remaining {
			pause = remaining
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(pause):
		}
	}
}

// ElementVisible holds when loc resolves to a visible element.
func ElementVisible(page Page, loc Locator) Condition {
	return visibleElement(page, loc, nil)
}

// visibleElement is ElementVisible that also stores the element it found.
func visibleElement(page Page, loc Locator, found *Element) Condition {
	return func(ctx context.Context) (bool, error) {
		el, err := page.Find(ctx, loc)
		if errors.Is(err, ErrElementNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		visible, err := el.Visible(ctx)
		if err != nil || !visible {
			// Nodes detached by a re-render report errors here; poll again.
			return false, nil
		}
		if found != nil {
			*found = el
		}
		return true, nil
	}
}

// PendingRequestsZero holds when the page reports no in-flight
// application requests.
func PendingRequestsZero(page Page) Condition {
	return func(ctx context.Context) (bool, error) {
		n, err := page.PendingRequests(ctx)
		if err != nil {
			return false, nil
		}
		return n == 0, nil
	}
}

// URLMatches holds when the page location matches re.
func URLMatches(page Page, re *regexp.Regexp) Condition {
	return func(ctx context.Context) (bool, error) {
		u, err := page.URL(ctx)
		if err != nil {
			return false, nil
		}
		return re.MatchString(u), nil
	}
}

// Not inverts cond.
func Not(cond Condition) Condition {
	return func(ctx context.Context) (bool, error) {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// All holds when every condition holds. Evaluation stops at the first
// condition that does not.
func All(conds ...Condition) Condition {
	return func(ctx context.Context) (bool, error) {
		for _, c := range conds {
			ok, err := c(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Any holds when at least one condition holds.
func Any(conds ...Condition) Condition {
	return func(ctx context.Context) (bool, error) {
		for _, c := range conds {
			ok, err := c(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}
