// Package translate maps query terms into Brazilian Portuguese before a
// search. Translation is best-effort: any failure yields the original terms.
package translate

import (
	"context"
	"errors"

	"github.com/use-agent/anvisa/models"
)

// ErrTranslationUnavailable is returned when no credential is configured
// or the translation service failed.
var ErrTranslationUnavailable = errors.New("translation unavailable")

// Translator maps a query into the target locale. Implementations never
// fail: on error they return the input terms unchanged.
type Translator interface {
	// Translate translates q. apiKey, when non-empty, overrides the
	// configured credential for this call.
	Translate(ctx context.Context, q models.Query, apiKey string) models.TranslatedQuery
}

// Identity returns the query terms unchanged.
type Identity struct{}

func (Identity) Translate(_ context.Context, q models.Query, _ string) models.TranslatedQuery {
	return original(q)
}

func original(q models.Query) models.TranslatedQuery {
	return models.TranslatedQuery{Substance: q.Substance, Brand: q.Brand}
}
