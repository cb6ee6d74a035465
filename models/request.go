package models

import "strings"

// SearchRequest is the payload for POST /api/v1/search.
type SearchRequest struct {
	// Substance is the active ingredient in the caller's language. Required.
	Substance string `json:"substance" binding:"required,min=2,max=200"`

	// Brand is the commercial product name. Optional; when present the
	// brand listing is tried before the ingredient search.
	Brand string `json:"brand,omitempty" binding:"omitempty,max=200"`

	// Translate maps the terms into Brazilian Portuguese before searching.
	// Default: true.
	Translate *bool `json:"translate,omitempty"`

	// UseProxy routes the browser session through the next egress proxy.
	// Default: false.
	UseProxy bool `json:"use_proxy,omitempty"`

	// TranslatorAPIKey overrides the configured translator key for this request.
	TranslatorAPIKey string `json:"translator_api_key,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults() {
	if r.Translate == nil {
		t := true
		r.Translate = &t
	}
	r.Substance = strings.TrimSpace(r.Substance)
	r.Brand = strings.TrimSpace(r.Brand)
}

// Query returns the immutable query carried by the request.
func (r *SearchRequest) Query() Query {
	return Query{Substance: r.Substance, Brand: r.Brand}
}

// Options returns the per-search options carried by the request.
func (r *SearchRequest) Options() SearchOptions {
	translate := true
	if r.Translate != nil {
		translate = *r.Translate
	}
	return SearchOptions{
		Translate:        translate,
		UseProxy:         r.UseProxy,
		TranslatorAPIKey: r.TranslatorAPIKey,
	}
}

// Query is the immutable input of one search.
type Query struct {
	Substance string
	Brand     string
}

// SearchOptions controls optional collaborators for one search.
type SearchOptions struct {
	Translate        bool
	UseProxy         bool
	TranslatorAPIKey string
}

// TranslatedQuery holds the query terms in the target locale.
type TranslatedQuery struct {
	Substance string `json:"substance"`
	Brand     string `json:"brand"`
}
