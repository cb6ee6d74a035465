package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/use-agent/anvisa/engine"
	"github.com/use-agent/anvisa/extract"
	"github.com/use-agent/anvisa/models"
	"github.com/use-agent/anvisa/strategy"
)

// visitLoop opens every listing row in turn and extracts its detail view.
// Row identities are recomputed on every iteration since the listing is
// re-rendered after each return from a detail view. incomplete is true
// when a row could not be visited or the loop ended before the listing
// was exhausted.
func (n *Navigator) visitLoop(ctx context.Context, page engine.Page, log *slog.Logger) (records []models.ProductRecord, incomplete bool) {
	for i := 0; ; i++ {
		if ctx.Err() != nil {
			log.Warn("visit loop interrupted", "row", i, "error", ctx.Err())
			return records, true
		}

		rendered, err := page.HTML(ctx)
		if err != nil {
			log.Warn("failed to read listing", "row", i, "error", err)
			return records, true
		}
		rows, err := extract.LocateRows(rendered, n.rowOpts)
		if err != nil {
			log.Warn("failed to locate listing rows", "row", i, "error", err)
			return records, true
		}
		if i >= len(rows) {
			log.Debug("listing exhausted", "rows", len(rows))
			return records, incomplete
		}

		rec, err := n.visitRow(ctx, page, rows[i], rows)
		switch {
		case err == nil:
			records = append(records, *rec)
		case errors.Is(err, extract.ErrExtractionIncomplete):
			log.Info("dropping incomplete record", "row", i, "label", rows[i].Label)
		default:
			log.Warn("failed to visit row", "row", i, "label", rows[i].Label, "error", err)
			incomplete = true
		}

		if err := n.returnToListing(ctx, page); err != nil {
			log.Warn("ending visit loop", "row", i, "error", err)
			return records, true
		}
	}
}

// visitRow opens row and extracts the record it leads to.
func (n *Navigator) visitRow(ctx context.Context, page engine.Page, row extract.RowIdentity, rows []extract.RowIdentity) (*models.ProductRecord, error) {
	// ── 1. Open the detail view ──────────────────────────────────────
	res := n.opts.Orchestrator.Perform(ctx, page, engine.Operation{
		Name:   "open_row",
		Chain:  rowChain(n.rowOpts, row, uniqueLabel(rows, row.Label)),
		Action: engine.Click(),
	})
	if !res.OK {
		return nil, fmt.Errorf("open row %d: %w", row.Ordinal, res.Err)
	}

	// ── 2. Wait for it to render ─────────────────────────────────────
	ready := engine.All(
		engine.URLMatches(page, n.detailRe),
		strategy.AnyVisible(page, n.opts.Catalogue.Detail.Ready),
	)
	if err := n.opts.Waiter.Await(ctx, ready, n.opts.NavigationTimeout); err != nil {
		return nil, fmt.Errorf("detail view of row %d: %w", row.Ordinal, err)
	}
	n.runner.Settle(ctx, page)

	// ── 3. Extract ───────────────────────────────────────────────────
	rendered, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read detail view: %w", err)
	}
	base, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read detail url: %w", err)
	}
	return extract.ExtractDetail(rendered, base)
}

// returnToListing leaves a detail view and waits for the listing rows to
// be rendered again.
func (n *Navigator) returnToListing(ctx context.Context, page engine.Page) error {
	onDetail, err := engine.URLMatches(page, n.detailRe)(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListingDesync, err)
	}
	if onDetail {
		if err := page.NavigateBack(ctx); err != nil {
			return fmt.Errorf("%w: navigate back: %w", ErrListingDesync, err)
		}
	}

	back := engine.All(engine.Not(engine.URLMatches(page, n.detailRe)), n.listing.HasRows(page))
	if err := n.opts.Waiter.Await(ctx, back, n.opts.NavigationTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrListingDesync, err)
	}
	n.runner.Settle(ctx, page)
	return nil
}

// rowChain locates the primary action cell of row. The positional script
// is exact for the current render; the text locator is only added when
// the cell label identifies a single row.
func rowChain(opts extract.RowOptions, row extract.RowIdentity, unique bool) engine.Chain {
	rowSelector := opts.RowSelector
	if rowSelector == "" {
		rowSelector = "tbody tr"
	}
	chain := engine.Chain{engine.JS(fmt.Sprintf(
		`() => { const row = document.querySelectorAll(%q)[%d]; if (!row) return null; `+
			`return Array.from(row.children).filter(c => c.tagName === "TD")[%d] || null; }`,
		rowSelector, row.RowIndex, row.CellIndex,
	))}
	if unique && row.Label != "" {
		chain = append(chain, engine.Text("td", `^\s*`+regexp.QuoteMeta(row.Label)+`\s*$`))
	}
	return chain
}

func uniqueLabel(rows []extract.RowIdentity, label string) bool {
	n := 0
	for _, r := range rows {
		if r.Label == label {
			n++
		}
	}
	return n == 1
}
