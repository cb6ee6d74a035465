package models

// Search outcome values reported in SearchResult.Status.
const (
	StatusComplete = "complete"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
)

// SearchResult is the response for POST /api/v1/search.
type SearchResult struct {
	// Found is true when at least one record was extracted.
	Found bool `json:"found"`

	// Records holds one entry per product detail page that yielded
	// both a name and an active ingredient.
	Records []ProductRecord `json:"records"`

	// Summary is computed from Records once the visit loop ends.
	Summary Summary `json:"summary"`

	// SearchTerms reports the terms as received and as searched.
	SearchTerms SearchTerms `json:"search_terms"`

	// Status distinguishes a finished search from one cut short
	// ("partial") or one that never produced a listing ("failed").
	Status string `json:"status"`
}

// SearchTerms pairs the original query terms with the translated ones.
type SearchTerms struct {
	Original   TranslatedQuery `json:"original"`
	Translated TranslatedQuery `json:"translated"`
}

// ProductRecord is one regulatory registration as shown on its detail page.
type ProductRecord struct {
	Name               string         `json:"name"`
	Complement         string         `json:"complement"`
	ProcessNumber      string         `json:"process_number"`
	RegistrationNumber string         `json:"registration_number"`
	RegistrationDate   string         `json:"registration_date"`
	ExpiryDate         string         `json:"expiry_date"`
	Company            string         `json:"company"`
	TaxID              string         `json:"tax_id"`
	LicenseNumber      string         `json:"license_number"`
	ActiveIngredient   string         `json:"active_ingredient"`
	RegulatoryCategory string         `json:"regulatory_category"`
	ReferenceDrugFlag  string         `json:"reference_drug"`
	TherapeuticClass   string         `json:"therapeutic_class"`
	ATCCode            string         `json:"atc_code"`
	PriorityType       string         `json:"priority_type"`
	Links              DocumentLinks  `json:"links"`
	Presentations      []Presentation `json:"presentations"`
}

// DocumentLinks are the documents attached to a registration.
type DocumentLinks struct {
	LeafletURL      string         `json:"leaflet_url,omitempty"`
	PublicReportURL string         `json:"public_report_url,omitempty"`
	LabelingFiles   []LabelingFile `json:"labeling_files"`
}

// LabelingFile is one labeling artwork document.
type LabelingFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Presentation is one row of the presentations sub-table.
type Presentation struct {
	Ordinal            string `json:"ordinal"`
	Description        string `json:"description"`
	RegistrationCode   string `json:"registration_code"`
	PharmaceuticalForm string `json:"pharmaceutical_form"`
	PublicationDate    string `json:"publication_date"`
	ValidityPeriod     string `json:"validity_period"`
}

// Summary holds aggregate statistics over a record list.
type Summary struct {
	TotalProducts        int            `json:"total_products"`
	TotalPresentations   int            `json:"total_presentations"`
	EarliestApprovalDate *string        `json:"earliest_approval_date"`
	ReferenceDrugCount   int            `json:"reference_drug_count"`
	GenericDrugCount     int            `json:"generic_drug_count"`
	DistinctCompanies    []string       `json:"distinct_companies"`
	DocumentAvailability DocumentCounts `json:"document_availability_counts"`
}

// DocumentCounts counts records exposing each document category.
type DocumentCounts struct {
	Leaflet      int `json:"leaflet"`
	PublicReport int `json:"public_report"`
	Labeling     int `json:"labeling"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	ActiveSearches int    `json:"active_searches"`
	MaxSearches    int    `json:"max_searches"`
	Version        string `json:"version"`
}

// ServiceInfo is the response for GET /.
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// ErrorResponse wraps an ErrorDetail for non-2xx responses.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}
