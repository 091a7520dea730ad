package ingest

import (
	"strings"
	"time"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// Verdict is the outcome of a business filter over one listing.
type Verdict struct {
	Keep   bool
	Reason model.RejectReason
}

var keep = Verdict{Keep: true}

// soldTextMarkers are raw-payload status fragments treated as sold-equivalent
// when the canonical status never resolved past draft. Several sources only
// expose the sold signal in fields the alias tables do not cover.
// notSoldTextMarkers are checked first: "unsold" and "not sold" contain
// "sold" as a substring and must never count as a sale.
var (
	soldTextMarkers    = []string{"sold", "ended", "complete", "closed"}
	notSoldTextMarkers = []string{"no sale", "not sold", "unsold", "reserve not met"}
)

// rawDateAliases are tried in order when the canonical sale_date is absent.
var rawDateAliases = []string{"sale_date", "sold_at", "end_date", "auction_end", "ended_at", "closed_at", "scraped_at"}

// SoldWindow filters listings by sale status and recency.
// The zero value keeps everything.
type SoldWindow struct {
	SoldOnly         bool
	SoldWithinMonths int

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

// Evaluate applies the sold-window rules to one listing.
func (w SoldWindow) Evaluate(l *model.CanonicalListing) Verdict {
	if !w.SoldOnly && w.SoldWithinMonths <= 0 {
		return keep
	}

	if w.SoldOnly && !isSoldLike(l) {
		return Verdict{Keep: false, Reason: model.RejectNotSold}
	}

	if w.SoldWithinMonths > 0 {
		saleDate, ok := resolveSaleDate(l)
		if !ok {
			return Verdict{Keep: false, Reason: model.RejectMissingSaleDate}
		}
		now := time.Now()
		if w.Now != nil {
			now = w.Now()
		}
		cutoff := now.AddDate(0, -w.SoldWithinMonths, 0)
		if saleDate.Before(cutoff) {
			return Verdict{Keep: false, Reason: model.RejectOutsideSoldWindow}
		}
	}

	return keep
}

// ActiveOnly rejects any listing that is not canonically active.
func ActiveOnly(l *model.CanonicalListing) Verdict {
	if l.Status != model.StatusActive {
		return Verdict{Keep: false, Reason: model.RejectNotActive}
	}
	return keep
}

func isSoldLike(l *model.CanonicalListing) bool {
	switch l.Status {
	case model.StatusSold:
		return true
	case model.StatusUnsold, model.StatusDelisted:
		// Canonicalization already resolved a terminal non-sale outcome;
		// the raw-text fallback must not overrule it.
		return false
	}
	raw := strings.ToLower(rawStatusText(l))
	for _, marker := range notSoldTextMarkers {
		if strings.Contains(raw, marker) {
			return false
		}
	}
	for _, marker := range soldTextMarkers {
		if strings.Contains(raw, marker) {
			return true
		}
	}
	return false
}

func rawStatusText(l *model.CanonicalListing) string {
	if l.Raw == nil {
		return ""
	}
	for _, key := range []string{"status", "auctionStatus", "auction_status", "sale_status", "state"} {
		if s, ok := l.Raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// resolveSaleDate tries the canonical sale date, then raw-payload date
// aliases, then the scrape timestamp.
func resolveSaleDate(l *model.CanonicalListing) (time.Time, bool) {
	if l.SaleDate != nil && !l.SaleDate.IsZero() {
		return *l.SaleDate, true
	}
	if l.Raw != nil {
		for _, key := range rawDateAliases {
			v, ok := l.Raw[key]
			if !ok {
				continue
			}
			if t, ok := parseRawDate(v); ok {
				return t, true
			}
		}
	}
	if !l.ScrapedAt.IsZero() {
		return l.ScrapedAt, true
	}
	return time.Time{}, false
}

var rawDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func parseRawDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range rawDateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	case float64:
		if t > 0 {
			secs := int64(t)
			if secs > 1e12 {
				secs /= 1000
			}
			return time.Unix(secs, 0).UTC(), true
		}
	}
	return time.Time{}, false
}
