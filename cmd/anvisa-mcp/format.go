package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/use-agent/anvisa/models"
)

// formatResult renders a short human summary followed by the full result
// as indented JSON.
func formatResult(r *models.SearchResult) (string, error) {
	var sb strings.Builder

	terms := r.SearchTerms.Translated
	fmt.Fprintf(&sb, "Search: substance=%q brand=%q (status: %s)\n", terms.Substance, terms.Brand, r.Status)

	if !r.Found {
		sb.WriteString("No registrations found.\n")
	} else {
		sum := r.Summary
		fmt.Fprintf(&sb, "Registrations: %d, presentations: %d\n", sum.TotalProducts, sum.TotalPresentations)
		if sum.EarliestApprovalDate != nil {
			fmt.Fprintf(&sb, "Earliest approval: %s\n", *sum.EarliestApprovalDate)
		}
		fmt.Fprintf(&sb, "Reference: %d, generic: %d\n", sum.ReferenceDrugCount, sum.GenericDrugCount)
		if len(sum.DistinctCompanies) > 0 {
			fmt.Fprintf(&sb, "Companies: %s\n", strings.Join(sum.DistinctCompanies, "; "))
		}
		for i, rec := range r.Records {
			fmt.Fprintf(&sb, "--- [%d] %s (%s) %s ---\n", i+1, rec.Name, rec.ActiveIngredient, rec.RegistrationNumber)
		}
	}

	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	sb.WriteString("\n")
	sb.Write(raw)
	return sb.String(), nil
}
