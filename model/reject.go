package model

// RejectReason classifies why a raw record was dropped before persistence.
type RejectReason string

const (
	RejectMissingRequired    RejectReason = "missing_required_fields"
	RejectNonDomainMatch     RejectReason = "non_domain_match"
	RejectMissingYearOrModel RejectReason = "missing_year_or_model"
	RejectSchemaValidation   RejectReason = "schema_validation_failed"
	RejectNotActive          RejectReason = "not_active"
	RejectNotSold            RejectReason = "not_sold"
	RejectMissingSaleDate    RejectReason = "missing_sale_date"
	RejectOutsideSoldWindow  RejectReason = "outside_sold_window"
)

// NormalizeReject records one raw record that failed canonicalization or
// business filtering. Rejects are written to the run's reject log only,
// never to the primary store.
type NormalizeReject struct {
	Source  Source         `json:"source"`
	Reason  RejectReason   `json:"reason"`
	Raw     map[string]any `json:"raw,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
