// Package navigator runs one search end to end: it opens a browser
// session, reaches a listing through a search strategy, visits every
// listing row in turn and aggregates the extracted records.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/use-agent/anvisa/config"
	"github.com/use-agent/anvisa/egress"
	"github.com/use-agent/anvisa/engine"
	"github.com/use-agent/anvisa/extract"
	"github.com/use-agent/anvisa/models"
	"github.com/use-agent/anvisa/strategy"
	"github.com/use-agent/anvisa/summary"
	"github.com/use-agent/anvisa/translate"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrListingDesync is reported when the listing does not come back after
// leaving a detail view.
var ErrListingDesync = errors.New("listing did not re-render")

// Session is a browser session holding a single page.
type Session interface {
	Page() engine.Page
	Close() error
}

// Opener creates a browser session. cred is nil for a direct connection.
// ctx bounds the launch only; the session lives until Close.
type Opener interface {
	Open(ctx context.Context, cred *egress.Credential) (Session, error)
}

// Options wires a Navigator.
type Options struct {
	Opener       Opener
	Translator   translate.Translator
	Rotator      *egress.Rotator // nil disables proxies
	Catalogue    *config.Catalogue
	Waiter       *engine.Waiter
	Orchestrator *engine.Orchestrator

	MaxRows           int           // default: 50
	SearchTimeout     time.Duration // default: 5m
	NavigationTimeout time.Duration // default: 30s
	IdleTimeout       time.Duration // default: 5s

	// MaxConcurrent bounds simultaneous sessions. Default: 1.
	MaxConcurrent int

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// Navigator performs searches. It is safe for concurrent use; each search
// owns its own browser session.
type Navigator struct {
	opts     Options
	runner   *strategy.Runner
	listing  strategy.Listing
	rowOpts  extract.RowOptions
	detailRe *regexp.Regexp
	sem      *semaphore.Weighted
	active   atomic.Int32
}

// New creates a Navigator.
func New(opts Options) (*Navigator, error) {
	if opts.Opener == nil || opts.Catalogue == nil || opts.Waiter == nil || opts.Orchestrator == nil {
		return nil, fmt.Errorf("navigator: opener, catalogue, waiter and orchestrator are required")
	}
	if opts.Translator == nil {
		opts.Translator = translate.Identity{}
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = extract.DefaultMaxRows
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Minute
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 5 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}

	detailRe, err := regexp.Compile(opts.Catalogue.Detail.URLPattern)
	if err != nil {
		return nil, fmt.Errorf("navigator: detail url pattern: %w", err)
	}

	listing := strategy.NewListing(opts.Catalogue)
	runner := strategy.NewRunner(opts.Orchestrator, opts.Waiter, listing)
	runner.NavigationTimeout = opts.NavigationTimeout
	runner.IdleTimeout = opts.IdleTimeout

	return &Navigator{
		opts:    opts,
		runner:  runner,
		listing: listing,
		rowOpts: extract.RowOptions{
			RowSelector:  opts.Catalogue.Listing.RowSelector,
			CellSelector: opts.Catalogue.Listing.CellSelector,
			StatusTokens: opts.Catalogue.Listing.StatusTokens,
			MaxRows:      opts.MaxRows,
		},
		detailRe: detailRe,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}, nil
}

// Active returns the number of searches holding a session.
func (n *Navigator) Active() int {
	return int(n.active.Load())
}

// Capacity returns the maximum number of concurrent searches.
func (n *Navigator) Capacity() int {
	return n.opts.MaxConcurrent
}

// search is the state of one Search call.
type search struct {
	n     *Navigator
	state State
	log   *slog.Logger
}

func (s *search) transition(to State) {
	from := s.state
	s.state = to
	s.log.Debug("search state", "from", from.String(), "to", to.String())
	if s.n.opts.OnTransition != nil {
		s.n.opts.OnTransition(from, to)
	}
}

// Search runs one query. The result is always well-formed. The error is
// non-nil only when no browser session could be started, in which case it
// is a *models.SearchError with code SESSION_FATAL.
func (n *Navigator) Search(ctx context.Context, q models.Query, opts models.SearchOptions) (*models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, n.opts.SearchTimeout)
	defer cancel()

	s := &search{n: n, log: slog.With("substance", q.Substance, "brand", q.Brand)}
	result := &models.SearchResult{
		Records: []models.ProductRecord{},
		SearchTerms: models.SearchTerms{
			Original:   models.TranslatedQuery{Substance: q.Substance, Brand: q.Brand},
			Translated: models.TranslatedQuery{Substance: q.Substance, Brand: q.Brand},
		},
	}

	// ── 1. Acquire a session slot ────────────────────────────────────
	if err := n.sem.Acquire(ctx, 1); err != nil {
		return n.fail(s, result, models.NewSearchError(models.ErrCodeTimeout, "no session slot available", err))
	}
	defer n.sem.Release(1)

	// ── 2. Translate while the browser starts ────────────────────────
	s.transition(StateTranslate)
	var translated models.TranslatedQuery
	var session Session
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		translated = n.translate(gctx, q, opts)
		return nil
	})
	g.Go(func() error {
		var err error
		session, err = n.open(gctx, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		if session != nil {
			_ = session.Close()
		}
		return n.fail(s, result, models.NewSearchError(models.ErrCodeSessionFatal, "could not start a browser session", err))
	}
	result.SearchTerms.Translated = translated

	n.active.Add(1)
	defer n.active.Add(-1)
	defer func() {
		if err := session.Close(); err != nil {
			s.log.Warn("failed to close browser session", "error", err)
		}
	}()
	page := session.Page()

	// ── 3. Strategy selection and visit loop ─────────────────────────
	s.transition(StateStrategySelect)
	var (
		records     []models.ProductRecord
		lastErr     error
		interrupted bool
	)
	for _, st := range n.strategies(translated) {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		term := st.Term(translated)
		out, err := n.runner.Run(ctx, page, st, term)
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		s.transition(StateListingReady)
		if out.Empty {
			s.log.Info("listing has no rows", "strategy", st.Name(), "term", term)
			continue
		}

		s.transition(StateVisitLoop)
		found, cut := n.visitLoop(ctx, page, s.log.With("strategy", st.Name()))
		records = append(records, found...)
		interrupted = interrupted || cut
		if len(records) > 0 {
			break
		}
	}

	// ── 4. Aggregate ─────────────────────────────────────────────────
	s.transition(StateAggregate)
	result.Records = append(result.Records, records...)
	result.Found = len(result.Records) > 0
	result.Summary = summary.Build(result.Records)

	switch {
	case result.Found && interrupted:
		result.Status = models.StatusPartial
	case result.Found:
		result.Status = models.StatusComplete
	case lastErr != nil || interrupted:
		result.Status = models.StatusFailed
	default:
		result.Status = models.StatusComplete
	}

	if result.Status == models.StatusFailed {
		s.transition(StateFailed)
		s.log.Warn("search failed", "error", lastErr)
	} else {
		s.transition(StateDone)
	}
	s.log.Info("search finished",
		"status", result.Status,
		"records", len(result.Records),
	)
	return result, nil
}

// fail finishes a search that never reached the site.
func (n *Navigator) fail(s *search, result *models.SearchResult, err *models.SearchError) (*models.SearchResult, error) {
	s.transition(StateFailed)
	s.log.Error("search could not start", "error", err)
	result.Status = models.StatusFailed
	result.Summary = summary.Build(nil)
	return result, err
}

// strategies returns the flows to try, in order: by brand when a brand
// term exists, then by ingredient.
func (n *Navigator) strategies(q models.TranslatedQuery) []strategy.Strategy {
	var out []strategy.Strategy
	if q.Brand != "" {
		out = append(out, strategy.ByBrand{Catalogue: n.opts.Catalogue})
	}
	if q.Substance != "" {
		out = append(out, strategy.ByIngredient{Catalogue: n.opts.Catalogue})
	}
	return out
}

func (n *Navigator) translate(ctx context.Context, q models.Query, opts models.SearchOptions) models.TranslatedQuery {
	if !opts.Translate {
		return translate.Identity{}.Translate(ctx, q, "")
	}
	return n.opts.Translator.Translate(ctx, q, opts.TranslatorAPIKey)
}

func (n *Navigator) open(ctx context.Context, opts models.SearchOptions) (Session, error) {
	var cred *egress.Credential
	if opts.UseProxy {
		if n.opts.Rotator == nil {
			slog.Warn("proxy requested but no proxies are configured")
		} else if c, ok := n.opts.Rotator.Next(); ok {
			cred = &c
		}
	}
	return n.opts.Opener.Open(ctx, cred)
}
