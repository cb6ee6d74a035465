// Package summary computes aggregate statistics over extracted records.
package summary

import (
	"sort"
	"strings"
	"time"

	"github.com/use-agent/anvisa/extract"
	"github.com/use-agent/anvisa/models"
)

// Category tokens searched for in the reference drug marker, folded.
const (
	referenceToken = "REFERENCIA"
	genericToken   = "GENERICO"
)

const (
	dateLayout = "2/1/2006"
	isoLayout  = "2006-01-02"
)

// Build summarises records. It is a pure function of its input.
func Build(records []models.ProductRecord) models.Summary {
	s := models.Summary{
		TotalProducts:     len(records),
		DistinctCompanies: []string{},
	}

	companies := make(map[string]struct{})
	var earliest time.Time

	for _, r := range records {
		s.TotalPresentations += len(r.Presentations)

		marker := extract.Fold(r.ReferenceDrugFlag)
		if strings.Contains(marker, referenceToken) {
			s.ReferenceDrugCount++
		} else if strings.Contains(marker, genericToken) {
			s.GenericDrugCount++
		}

		if c := strings.TrimSpace(r.Company); c != "" {
			companies[c] = struct{}{}
		}

		if d, ok := ParseDate(r.RegistrationDate); ok && (earliest.IsZero() || d.Before(earliest)) {
			earliest = d
		}

		if r.Links.LeafletURL != "" {
			s.DocumentAvailability.Leaflet++
		}
		if r.Links.PublicReportURL != "" {
			s.DocumentAvailability.PublicReport++
		}
		if len(r.Links.LabelingFiles) > 0 {
			s.DocumentAvailability.Labeling++
		}
	}

	for c := range companies {
		s.DistinctCompanies = append(s.DistinctCompanies, c)
	}
	sort.Strings(s.DistinctCompanies)

	if !earliest.IsZero() {
		iso := earliest.Format(isoLayout)
		s.EarliestApprovalDate = &iso
	}
	return s
}

// ParseDate parses a DD/MM/YYYY date.
func ParseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
