// Package ingest holds the pure in-run record policies: identity-key
// deduplication and the sold-window business filter.
package ingest

import "github.com/monza-lab/monza-Cars-marketplace-sub001/model"

// Dedupe collapses listings sharing an identity key, keeping the first
// occurrence per key and preserving input order. Pure function, no I/O.
func Dedupe(listings []model.CanonicalListing) []model.CanonicalListing {
	seen := make(map[model.IdentityKey]struct{}, len(listings))
	out := make([]model.CanonicalListing, 0, len(listings))
	for _, l := range listings {
		key := l.Identity()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
