package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// AttemptObserver receives one observation per locator attempt.
type AttemptObserver interface {
	ObserveAttempt(step string, locator int, latency time.Duration, ok bool)
}

// Operation is one guarded "locate and act" transition.
type Operation struct {
	// Name identifies the transition in logs and metrics.
	Name string

	// Chain lists the alternative locators, tried in order.
	Chain Chain

	// Action runs on the first visible element. Nil only waits.
	Action Action

	// MaxAttempts bounds whole-chain retries. Zero uses the orchestrator default.
	MaxAttempts int

	// Timeout bounds each locator attempt. Zero uses the orchestrator default.
	Timeout time.Duration
}

// Result is the outcome of Perform. Failure is a value: Err is set and OK
// is false, Perform itself never panics on a missing element.
type Result struct {
	OK       bool
	Attempts int
	Locator  int // index into the chain that succeeded, -1 on failure
	Err      error
}

// OrchestratorConfig holds the defaults applied to every Operation.
type OrchestratorConfig struct {
	MaxAttempts int           // default: 3
	Timeout     time.Duration // default: 10s
	Backoff     time.Duration // initial pause between chain retries; 0 retries immediately
	Observer    AttemptObserver
}

// Orchestrator runs locator chains with bounded retries.
type Orchestrator struct {
	waiter   *Waiter
	cfg      OrchestratorConfig
	observer AttemptObserver
}

// NewOrchestrator creates an Orchestrator waiting through w.
func NewOrchestrator(w *Waiter, cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Orchestrator{waiter: w, cfg: cfg, observer: cfg.Observer}
}

// Perform tries each locator of op.Chain in order, waiting up to the
// per-attempt timeout for the element to become visible and then running
// op.Action on it. The first success returns immediately. When the whole
// chain fails it is retried, with backoff, until MaxAttempts is reached.
func (o *Orchestrator) Perform(ctx context.Context, page Page, op Operation) Result {
	maxAttempts := op.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = o.cfg.MaxAttempts
	}
	timeout := op.Timeout
	if timeout <= 0 {
		timeout = o.cfg.Timeout
	}
	action := op.Action
	if action == nil {
		action = func(context.Context, Element) error { return nil }
	}

	if len(op.Chain) == 0 {
		return Result{Locator: -1, Err: fmt.Errorf("%s: empty locator chain: %w", op.Name, ErrElementNotFound)}
	}

	policy := o.policy(maxAttempts)
	clock := o.waiter.Clock()

	for attempt := 1; ; attempt++ {
		for i, loc := range op.Chain {
			start := clock.Now()
			err := o.try(ctx, page, loc, action, timeout)
			o.record(op.Name, i, loc, attempt, clock.Now().Sub(start), err)
			if err == nil {
				return Result{OK: true, Attempts: attempt, Locator: i}
			}
			if ctx.Err() != nil {
				return Result{Attempts: attempt, Locator: -1, Err: ctx.Err()}
			}
		}

		pause := policy.NextBackOff()
		if pause == backoff.Stop {
			return Result{
				Attempts: attempt,
				Locator:  -1,
				Err:      fmt.Errorf("%s: %w after %d attempts", op.Name, ErrElementNotFound, attempt),
			}
		}
		select {
		case <-ctx.Done():
			return Result{Attempts: attempt, Locator: -1, Err: ctx.Err()}
		case <-clock.After(pause):
		}
	}
}

// try makes one attempt with one locator.
func (o *Orchestrator) try(ctx context.Context, page Page, loc Locator, action Action, timeout time.Duration) error {
	var el Element
	if err := o.waiter.Await(ctx, visibleElement(page, loc, &el), timeout); err != nil {
		return err
	}

	actCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return action(actCtx, el)
}

// policy builds the retry schedule between whole-chain attempts.
func (o *Orchestrator) policy(maxAttempts int) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if o.cfg.Backoff > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = o.cfg.Backoff
		eb.MaxInterval = 4 * o.cfg.Backoff
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	}
	return backoff.WithMaxRetries(b, uint64(maxAttempts-1))
}

func (o *Orchestrator) record(step string, index int, loc Locator, attempt int, latency time.Duration, err error) {
	ok := err == nil
	if ok {
		slog.Debug("locator succeeded",
			"step", step,
			"locator", index,
			"selector", loc.String(),
			"attempt", attempt,
			"latency_ms", latency.Milliseconds(),
		)
	} else {
		slog.Debug("locator failed",
			"step", step,
			"locator", index,
			"selector", loc.String(),
			"attempt", attempt,
			"latency_ms", latency.Milliseconds(),
			"error", err,
		)
	}
	if o.observer != nil {
		o.observer.ObserveAttempt(step, index, latency, ok)
	}
}
