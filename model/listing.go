// Package model defines the canonical data structures shared across the
// ingestion pipeline: raw marketplace records, the canonical listing schema,
// normalization rejects and run reports.
package model

import (
	"fmt"
	"time"
)

// Source identifies one supported auction marketplace.
type Source string

const (
	SourceBaT            Source = "bat"
	SourceCarsAndBids    Source = "carsandbids"
	SourcePCarMarket     Source = "pcarmarket"
	SourceCollectingCars Source = "collectingcars"
)

// AllSources lists every supported marketplace in ingestion order.
var AllSources = []Source{SourceBaT, SourceCarsAndBids, SourcePCarMarket, SourceCollectingCars}

// ParseSource validates a source name from the CLI or config.
func ParseSource(s string) (Source, error) {
	for _, src := range AllSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// ListingStatus is the canonical lifecycle status of a listing.
type ListingStatus string

const (
	StatusActive   ListingStatus = "active"
	StatusSold     ListingStatus = "sold"
	StatusUnsold   ListingStatus = "unsold"
	StatusDelisted ListingStatus = "delisted"
	StatusDraft    ListingStatus = "draft"
)

// StatusRank orders statuses for forward-only transitions: a persisted row
// never moves from a terminal status back to active or draft.
func StatusRank(s ListingStatus) int {
	switch s {
	case StatusDraft:
		return 0
	case StatusActive:
		return 1
	case StatusSold, StatusUnsold, StatusDelisted:
		return 2
	default:
		return 0
	}
}

// RawRecord is one untyped record as returned by a source adapter. It is
// ephemeral: it either becomes a CanonicalListing or a NormalizeReject.
type RawRecord struct {
	Source Source         `json:"source"`
	Fields map[string]any `json:"fields"`
}

// MileageUnit is the unit attached to an odometer reading.
type MileageUnit string

const (
	MileageMiles      MileageUnit = "mi"
	MileageKilometers MileageUnit = "km"
)

// CanonicalListing is the normalized unit of work and persistence.
// It is uniquely identified by (Source, SourceID, SourceURL).
type CanonicalListing struct {
	Source    Source `json:"source"`
	SourceID  string `json:"source_id"`
	SourceURL string `json:"source_url"`

	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	Title string `json:"title"`
	VIN   string `json:"vin,omitempty"`
	Trim  string `json:"trim,omitempty"`

	Status   ListingStatus `json:"status"`
	SaleDate *time.Time    `json:"sale_date,omitempty"`

	HammerPrice *float64 `json:"hammer_price,omitempty"`
	CurrentBid  *float64 `json:"current_bid,omitempty"`
	FinalPrice  *float64 `json:"final_price,omitempty"`
	BidCount    *int     `json:"bid_count,omitempty"`
	Currency    string   `json:"currency,omitempty"`

	Mileage     *int        `json:"mileage,omitempty"`
	MileageUnit MileageUnit `json:"mileage_unit,omitempty"`

	LocationCity    string `json:"location_city,omitempty"`
	LocationState   string `json:"location_state,omitempty"`
	LocationCountry string `json:"location_country,omitempty"`

	AuctionHouse string   `json:"auction_house,omitempty"`
	Description  string   `json:"description,omitempty"`
	ImageURLs    []string `json:"image_urls,omitempty"`

	ScrapedAt time.Time `json:"scraped_at,omitempty"`

	// Raw retains the original payload for forensic reprocessing.
	Raw map[string]any `json:"raw,omitempty"`
}

// IdentityKey is the dedup and upsert-targeting key for a listing.
type IdentityKey struct {
	Source    Source
	SourceID  string
	SourceURL string
}

// Identity returns the listing's identity-key triple.
func (l *CanonicalListing) Identity() IdentityKey {
	return IdentityKey{Source: l.Source, SourceID: l.SourceID, SourceURL: l.SourceURL}
}
