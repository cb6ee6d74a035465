// Package strategy encodes the UI flows that lead from an empty browser
// page to a search listing. A flow is a finite sequence of steps, each a
// guarded transition run through an engine.Orchestrator.
package strategy

import (
	"net/url"
	"strings"

	"github.com/use-agent/anvisa/config"
	"github.com/use-agent/anvisa/engine"
	"github.com/use-agent/anvisa/models"
)

// Step is one transition of a search flow.
type Step struct {
	Name string

	// Navigate, when set, is loaded before the step acts.
	Navigate string

	// Chain and Action describe the element interaction, if any.
	Chain  engine.Chain
	Action engine.Action

	// Optional steps may fail without aborting the flow.
	Optional bool

	// NeedsRows skips the step when the listing shows no rows.
	NeedsRows bool

	// Listing requires the listing to be displayed after the step.
	Listing bool
}

// Strategy is a search flow for one kind of query term.
type Strategy interface {
	Name() string

	// Term picks the query term the flow searches for.
	Term(q models.TranslatedQuery) string

	// Steps returns the flow for term.
	Steps(term string) []Step
}

// ByBrand opens the brand-filtered listing URL directly.
type ByBrand struct {
	Catalogue *config.Catalogue
}

func (ByBrand) Name() string { return "by_brand" }

func (ByBrand) Term(q models.TranslatedQuery) string { return q.Brand }

func (s ByBrand) Steps(term string) []Step {
	return []Step{
		{
			Name:     "open_brand_listing",
			Navigate: BrandURL(s.Catalogue.Site.BrandURL, term),
			Listing:  true,
		},
		widenPageSize(s.Catalogue),
	}
}

// ByIngredient goes through the advanced search panel and its active
// ingredient dialog.
type ByIngredient struct {
	Catalogue *config.Catalogue
}

func (ByIngredient) Name() string { return "by_ingredient" }

func (ByIngredient) Term(q models.TranslatedQuery) string { return q.Substance }

func (s ByIngredient) Steps(term string) []Step {
	c := s.Catalogue
	return []Step{
		{Name: "open_home", Navigate: c.Site.HomeURL},
		{Name: config.StepOpenAdvancedSearch, Chain: c.Chain(config.StepOpenAdvancedSearch), Action: engine.Click()},
		{Name: config.StepOpenIngredientDialog, Chain: c.Chain(config.StepOpenIngredientDialog), Action: engine.Click()},
		{Name: config.StepTypeIngredient, Chain: c.Chain(config.StepTypeIngredient), Action: engine.Input(term)},
		{Name: config.StepSubmitIngredientSearch, Chain: c.Chain(config.StepSubmitIngredientSearch), Action: engine.Click()},
		{Name: config.StepSelectIngredient, Chain: c.Chain(config.StepSelectIngredient), Action: engine.Click()},
		{Name: config.StepConfirmQuery, Chain: c.Chain(config.StepConfirmQuery), Action: engine.Click(), Listing: true},
		widenPageSize(c),
	}
}

func widenPageSize(c *config.Catalogue) Step {
	return Step{
		Name:      config.StepWidenPageSize,
		Chain:     c.Chain(config.StepWidenPageSize),
		Action:    engine.Click(),
		Optional:  true,
		NeedsRows: true,
		Listing:   true,
	}
}

// BrandURL fills the {brand} placeholder of pattern.
func BrandURL(pattern, brand string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(strings.TrimSpace(brand)), "+", "%20")
	return strings.ReplaceAll(pattern, "{brand}", escaped)
}

// Listing describes how to recognise the results view.
type Listing struct {
	// Ready locates listing rows.
	Ready engine.Chain

	// Empty locates the "no results" notice.
	Empty engine.Chain
}

// NewListing builds a Listing from the catalogue.
func NewListing(c *config.Catalogue) Listing {
	return Listing{Ready: c.Listing.Ready, Empty: c.Listing.Empty}
}

// HasRows holds when listing rows are visible.
func (l Listing) HasRows(page engine.Page) engine.Condition {
	return AnyVisible(page, l.Ready)
}

// Displayed holds when the listing shows rows or the empty notice.
func (l Listing) Displayed(page engine.Page) engine.Condition {
	return engine.Any(AnyVisible(page, l.Ready), AnyVisible(page, l.Empty))
}

// AnyVisible holds when any locator of chain resolves to a visible element.
func AnyVisible(page engine.Page, chain engine.Chain) engine.Condition {
	conds := make([]engine.Condition, len(chain))
	for i, loc := range chain {
		conds[i] = engine.ElementVisible(page, loc)
	}
	return engine.Any(conds...)
}
