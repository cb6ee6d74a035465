package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/anvisa/engine"
)

// ErrAborted is returned when a required step of a flow failed.
var ErrAborted = errors.New("search strategy aborted")

// Outcome describes the listing a flow reached.
type Outcome struct {
	// Empty is true when the listing shows no rows.
	Empty bool
}

// Runner executes flows on a page.
type Runner struct {
	orch    *engine.Orchestrator
	waiter  *engine.Waiter
	listing Listing

	// NavigationTimeout bounds page loads and the wait for the listing.
	NavigationTimeout time.Duration

	// IdleTimeout bounds the best-effort wait for in-flight requests
	// after each step.
	IdleTimeout time.Duration
}

// NewRunner creates a Runner.
func NewRunner(orch *engine.Orchestrator, waiter *engine.Waiter, listing Listing) *Runner {
	return &Runner{
		orch:              orch,
		waiter:            waiter,
		listing:           listing,
		NavigationTimeout: 30 * time.Second,
		IdleTimeout:       5 * time.Second,
	}
}

// Run executes the flow of s for term. A failed required step aborts the
// flow with an error wrapping ErrAborted; the page is left where it failed.
func (r *Runner) Run(ctx context.Context, page engine.Page, s Strategy, term string) (Outcome, error) {
	log := slog.With("strategy", s.Name(), "term", term)

	for _, step := range s.Steps(term) {
		if step.NeedsRows && !r.hasRows(ctx, page) {
			log.Debug("skipping step on empty listing", "step", step.Name)
			continue
		}

		if err := r.runStep(ctx, page, step); err != nil {
			if step.Optional {
				log.Info("optional step failed, continuing", "step", step.Name, "error", err)
				continue
			}
			log.Warn("strategy aborted", "step", step.Name, "error", err)
			return Outcome{}, fmt.Errorf("%w: %s: %w", ErrAborted, step.Name, err)
		}
	}

	return Outcome{Empty: !r.hasRows(ctx, page)}, nil
}

func (r *Runner) runStep(ctx context.Context, page engine.Page, step Step) error {
	// ── 1. Navigate ──────────────────────────────────────────────────
	if step.Navigate != "" {
		navCtx, cancel := context.WithTimeout(ctx, r.NavigationTimeout)
		err := page.Navigate(navCtx, step.Navigate)
		cancel()
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
	}

	// ── 2. Act ───────────────────────────────────────────────────────
	if len(step.Chain) > 0 {
		res := r.orch.Perform(ctx, page, engine.Operation{
			Name:   step.Name,
			Chain:  step.Chain,
			Action: step.Action,
		})
		if !res.OK {
			return res.Err
		}
	}

	// ── 3. Settle ────────────────────────────────────────────────────
	r.Settle(ctx, page)

	// ── 4. Listing ───────────────────────────────────────────────────
	if step.Listing {
		if err := r.waiter.Await(ctx, r.listing.Displayed(page), r.NavigationTimeout); err != nil {
			return fmt.Errorf("listing not displayed: %w", err)
		}
	}
	return nil
}

// Settle waits, best-effort, until the application has no requests in
// flight.
func (r *Runner) Settle(ctx context.Context, page engine.Page) {
	if err := r.waiter.Await(ctx, engine.PendingRequestsZero(page), r.IdleTimeout); err != nil {
		slog.Debug("page did not go idle, proceeding", "error", err)
	}
}

func (r *Runner) hasRows(ctx context.Context, page engine.Page) bool {
	ok, err := r.listing.HasRows(page)(ctx)
	return err == nil && ok
}
