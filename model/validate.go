package model

import (
	"net/url"
	"strings"
	"time"
)

// TrackedMake is the single marque this pipeline ingests.
const TrackedMake = "Porsche"

// EarliestModelYear bounds the plausible manufacturing range. The marque's
// first production year; anything older is upstream garbage.
const EarliestModelYear = 1948

// validStatuses guards against adapters smuggling unmapped status strings
// past the normalizer.
var validStatuses = map[ListingStatus]bool{
	StatusActive:   true,
	StatusSold:     true,
	StatusUnsold:   true,
	StatusDelisted: true,
	StatusDraft:    true,
}

// Validate checks the assembled listing against the canonical schema and
// returns the list of violated field names. An empty slice means the listing
// is persistable. Validation never panics on malformed input.
func (l *CanonicalListing) Validate(now time.Time) []string {
	var violations []string

	if _, err := ParseSource(string(l.Source)); err != nil {
		violations = append(violations, "source")
	}
	if strings.TrimSpace(l.SourceID) == "" {
		violations = append(violations, "source_id")
	}
	if !isWellFormedURL(l.SourceURL) {
		violations = append(violations, "source_url")
	}
	if !strings.EqualFold(l.Make, TrackedMake) {
		violations = append(violations, "make")
	}
	if strings.TrimSpace(l.Model) == "" {
		violations = append(violations, "model")
	}
	if l.Year < EarliestModelYear || l.Year > now.Year()+1 {
		violations = append(violations, "year")
	}
	if strings.TrimSpace(l.Title) == "" {
		violations = append(violations, "title")
	}
	if !validStatuses[l.Status] {
		violations = append(violations, "status")
	}
	if l.Mileage != nil && *l.Mileage < 0 {
		violations = append(violations, "mileage")
	}
	if l.MileageUnit != "" && l.MileageUnit != MileageMiles && l.MileageUnit != MileageKilometers {
		violations = append(violations, "mileage_unit")
	}
	for _, p := range []*float64{l.HammerPrice, l.CurrentBid, l.FinalPrice} {
		if p != nil && *p < 0 {
			violations = append(violations, "price")
			break
		}
	}
	for _, img := range l.ImageURLs {
		if !isWellFormedURL(img) {
			violations = append(violations, "image_urls")
			break
		}
	}

	return violations
}

func isWellFormedURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
