// Package normalize converts raw marketplace records into the canonical
// listing schema. Expected malformed input is returned as a reason-coded
// reject value, never as an error; only programming bugs surface as panics.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/monza-lab/monza-Cars-marketplace-sub001/model"
)

// yearToken matches a 4-digit model-year token inside free text.
var yearToken = regexp.MustCompile(`\b(19[4-9]\d|20\d{2})\b`)

// Normalizer maps raw records to canonical listings for one tracked marque.
type Normalizer struct {
	marque string
	now    func() time.Time
}

// New returns a Normalizer scoped to the given marque. A nil clock defaults
// to time.Now.
func New(marque string, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{marque: marque, now: now}
}

// Normalize canonicalizes one raw record. Exactly one of the return values
// is non-nil: the listing on success, the reject otherwise.
func (n *Normalizer) Normalize(source model.Source, raw model.RawRecord) (*model.CanonicalListing, *model.NormalizeReject) {
	aliases := aliasesFor(source)
	fields := raw.Fields

	title := firstString(fields, aliases.Title)
	sourceURL := firstString(fields, aliases.URL)
	if title == "" || sourceURL == "" {
		return nil, n.reject(source, fields, model.RejectMissingRequired, map[string]any{
			"has_title": title != "",
			"has_url":   sourceURL != "",
		})
	}

	// Domain scope: an explicit non-matching make wins over any title text.
	explicitMake := firstString(fields, aliases.Make)
	modelName := firstString(fields, aliases.Model)
	if explicitMake != "" {
		if !containsFold(explicitMake, n.marque) {
			return nil, n.reject(source, fields, model.RejectNonDomainMatch, map[string]any{"make": explicitMake})
		}
	} else {
		combined := strings.Join([]string{explicitMake, title, modelName}, " ")
		if !containsFold(combined, n.marque) {
			return nil, n.reject(source, fields, model.RejectNonDomainMatch, map[string]any{"text": combined})
		}
	}

	year := n.deriveYear(fields, aliases, title)
	if year == 0 {
		return nil, n.reject(source, fields, model.RejectMissingYearOrModel, map[string]any{"missing": "year"})
	}
	if modelName == "" {
		modelName = n.deriveModelFromTitle(title, year)
	}
	if modelName == "" {
		return nil, n.reject(source, fields, model.RejectMissingYearOrModel, map[string]any{"missing": "model"})
	}

	listing := model.CanonicalListing{
		Source:    source,
		SourceID:  n.deriveSourceID(source, fields, aliases, sourceURL),
		SourceURL: sourceURL,
		Make:      model.TrackedMake,
		Model:     modelName,
		Year:      year,
		Title:     title,
		Status:    mapStatus(firstString(fields, aliases.Status)),
		Raw:       fields,
	}

	n.populateOptional(&listing, fields, aliases)

	if violations := listing.Validate(n.now()); len(violations) > 0 {
		log.Debug().
			Str("source", string(source)).
			Strs("fields", violations).
			Msg("Candidate failed schema validation")
		return nil, n.reject(source, fields, model.RejectSchemaValidation, map[string]any{"fields": violations})
	}

	return &listing, nil
}

func (n *Normalizer) reject(source model.Source, raw map[string]any, reason model.RejectReason, details map[string]any) *model.NormalizeReject {
	return &model.NormalizeReject{Source: source, Reason: reason, Raw: raw, Details: details}
}

// deriveYear prefers an explicit in-range numeric field and falls back to a
// 4-digit token in the title. Returns 0 when no plausible year exists.
func (n *Normalizer) deriveYear(fields map[string]any, aliases fieldAliases, title string) int {
	maxYear := n.now().Year() + 1
	if y, ok := firstInt(fields, aliases.Year); ok && y >= model.EarliestModelYear && y <= maxYear {
		return y
	}
	if m := yearToken.FindString(title); m != "" {
		var y int
		fmt.Sscanf(m, "%d", &y)
		if y >= model.EarliestModelYear && y <= maxYear {
			return y
		}
	}
	return 0
}

// deriveModelFromTitle strips a leading year token and the marque token from
// the title and takes the first remaining word.
func (n *Normalizer) deriveModelFromTitle(title string, year int) string {
	rest := strings.TrimSpace(title)
	rest = strings.TrimSpace(strings.TrimPrefix(rest, fmt.Sprintf("%d", year)))
	for _, word := range strings.Fields(rest) {
		if strings.EqualFold(word, n.marque) {
			continue
		}
		return strings.Trim(word, ",.:;")
	}
	return ""
}

// deriveSourceID prefers an explicit identifier and otherwise hashes
// source+url so repeat runs against the same URL collapse to one identity.
func (n *Normalizer) deriveSourceID(source model.Source, fields map[string]any, aliases fieldAliases, sourceURL string) string {
	if id := firstString(fields, aliases.ID); id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(string(source) + sourceURL))
	return fmt.Sprintf("%s-%s", source, hex.EncodeToString(sum[:])[:12])
}

// mapStatus translates engine-specific status vocabulary into the canonical
// enum via substring heuristics. Unmatched text maps to draft.
func mapStatus(raw string) model.ListingStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return model.StatusDraft
	case strings.Contains(s, "no sale"), strings.Contains(s, "not sold"),
		strings.Contains(s, "unsold"), strings.Contains(s, "reserve not met"):
		return model.StatusUnsold
	case strings.Contains(s, "withdrawn"), strings.Contains(s, "cancel"),
		strings.Contains(s, "delist"), strings.Contains(s, "removed"):
		return model.StatusDelisted
	case strings.Contains(s, "sold"), strings.Contains(s, "ended"),
		strings.Contains(s, "complete"), strings.Contains(s, "closed"):
		return model.StatusSold
	case strings.Contains(s, "active"), strings.Contains(s, "live"),
		strings.Contains(s, "open"), strings.Contains(s, "bidding"):
		return model.StatusActive
	default:
		return model.StatusDraft
	}
}

// populateOptional fills the nullable canonical fields from the alias table.
func (n *Normalizer) populateOptional(l *model.CanonicalListing, fields map[string]any, aliases fieldAliases) {
	if v, ok := firstNumber(fields, aliases.CurrentBid); ok {
		l.CurrentBid = floatPtr(v)
	}
	if v, ok := firstNumber(fields, aliases.HammerPrice); ok {
		l.HammerPrice = floatPtr(v)
	}
	if v, ok := firstNumber(fields, aliases.FinalPrice); ok {
		l.FinalPrice = floatPtr(v)
	}
	if v, ok := firstInt(fields, aliases.BidCount); ok {
		l.BidCount = intPtr(v)
	}
	l.Currency = strings.ToUpper(firstString(fields, aliases.Currency))

	if v, ok := firstInt(fields, aliases.Mileage); ok {
		l.Mileage = intPtr(v)
		l.MileageUnit = mapMileageUnit(firstString(fields, aliases.MileageUnit))
	}

	if vin := firstString(fields, aliases.VIN); vin != "" {
		l.VIN = strings.ToUpper(strings.Join(strings.Fields(vin), ""))
	}
	l.Trim = strings.TrimSpace(firstString(fields, aliases.Trim))

	for _, img := range firstStringList(fields, aliases.Images) {
		if u, err := url.Parse(img); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			l.ImageURLs = append(l.ImageURLs, img)
		}
	}

	l.LocationCity = firstString(fields, aliases.City)
	l.LocationState = firstString(fields, aliases.State)
	l.LocationCountry = firstString(fields, aliases.Country)
	l.AuctionHouse = firstString(fields, aliases.AuctionHouse)
	l.Description = firstString(fields, aliases.Description)

	if t, ok := firstTime(fields, aliases.SaleDate); ok {
		utc := t.UTC()
		l.SaleDate = &utc
	}
	if t, ok := firstTime(fields, aliases.ScrapedAt); ok {
		l.ScrapedAt = t.UTC()
	}
}

func mapMileageUnit(raw string) model.MileageUnit {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "km", "kms", "kilometers", "kilometres":
		return model.MileageKilometers
	default:
		return model.MileageMiles
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
