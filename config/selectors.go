package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/anvisa/engine"
	"gopkg.in/yaml.v3"
)

//go:embed selectors.yaml
var defaultSelectors []byte

// Site-flow step names. Each must have a chain in the catalogue.
const (
	StepOpenAdvancedSearch     = "open_advanced_search"
	StepOpenIngredientDialog   = "open_ingredient_dialog"
	StepTypeIngredient         = "type_ingredient"
	StepSubmitIngredientSearch = "submit_ingredient_search"
	StepSelectIngredient       = "select_ingredient"
	StepConfirmQuery           = "confirm_query"
	StepWidenPageSize          = "widen_page_size"
)

var requiredSteps = []string{
	StepOpenAdvancedSearch,
	StepOpenIngredientDialog,
	StepTypeIngredient,
	StepSubmitIngredientSearch,
	StepSelectIngredient,
	StepConfirmQuery,
	StepWidenPageSize,
}

// Catalogue is the declarative description of the target site: its
// entry URLs and the locator chain of every step.
type Catalogue struct {
	Site    SiteSelectors           `yaml:"site"`
	Listing ListingSelectors        `yaml:"listing"`
	Detail  DetailSelectors         `yaml:"detail"`
	Steps   map[string]engine.Chain `yaml:"steps"`
}

// SiteSelectors holds the entry URLs.
type SiteSelectors struct {
	HomeURL string `yaml:"home_url"`

	// BrandURL contains a {brand} placeholder for the query term.
	BrandURL string `yaml:"brand_url"`
}

// ListingSelectors describes the search results view.
type ListingSelectors struct {
	RowSelector  string       `yaml:"row_selector"`
	CellSelector string       `yaml:"cell_selector"`
	StatusTokens []string     `yaml:"status_tokens"`
	Ready        engine.Chain `yaml:"ready"`
	Empty        engine.Chain `yaml:"empty"`
}

// DetailSelectors describes the per-record view.
type DetailSelectors struct {
	URLPattern string       `yaml:"url_pattern"`
	Ready      engine.Chain `yaml:"ready"`
}

// LoadCatalogue reads the catalogue at path, or the embedded default when
// path is empty, and validates it.
func LoadCatalogue(path string) (*Catalogue, error) {
	data := defaultSelectors
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read selector catalogue: %w", err)
		}
		data = b
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes and validates a YAML catalogue.
func ParseCatalogue(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode selector catalogue: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every URL, pattern and selector is usable.
func (c *Catalogue) Validate() error {
	if c.Site.HomeURL == "" {
		return fmt.Errorf("selector catalogue: site.home_url is required")
	}
	if !strings.Contains(c.Site.BrandURL, "{brand}") {
		return fmt.Errorf("selector catalogue: site.brand_url must contain {brand}")
	}
	if _, err := regexp.Compile(c.Detail.URLPattern); err != nil || c.Detail.URLPattern == "" {
		return fmt.Errorf("selector catalogue: invalid detail.url_pattern %q", c.Detail.URLPattern)
	}
	for _, sel := range []string{c.Listing.RowSelector, c.Listing.CellSelector} {
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return fmt.Errorf("selector catalogue: listing selector %q: %w", sel, err)
		}
	}

	chains := map[string]engine.Chain{
		"listing.ready": c.Listing.Ready,
		"listing.empty": c.Listing.Empty,
		"detail.ready":  c.Detail.Ready,
	}
	for _, name := range requiredSteps {
		chains["steps."+name] = c.Steps[name]
	}
	for name, chain := range chains {
		if len(chain) == 0 {
			return fmt.Errorf("selector catalogue: %s has no locators", name)
		}
		for i, loc := range chain {
			if err := validateLocator(loc); err != nil {
				return fmt.Errorf("selector catalogue: %s[%d]: %w", name, i, err)
			}
		}
	}
	return nil
}

func validateLocator(loc engine.Locator) error {
	if strings.TrimSpace(loc.Selector) == "" {
		return fmt.Errorf("empty selector")
	}
	switch loc.Kind {
	case engine.KindCSS:
		_, err := cascadia.ParseGroup(loc.Selector)
		return err
	case engine.KindText:
		if _, err := cascadia.ParseGroup(loc.Selector); err != nil {
			return err
		}
		_, err := regexp.Compile(loc.Pattern)
		return err
	case engine.KindXPath, engine.KindJS:
		return nil
	default:
		return fmt.Errorf("unknown locator kind %q", loc.Kind)
	}
}

// Chain returns the locator chain of a step.
func (c *Catalogue) Chain(step string) engine.Chain {
	return c.Steps[step]
}
